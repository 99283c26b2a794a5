package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/campus-tf/trove/internal/auth"
	"github.com/campus-tf/trove/internal/domain"
	"github.com/campus-tf/trove/internal/service"
)

// AuthHandler handles registration, login and identity lookups.
type AuthHandler struct {
	users  *service.UserService
	tokens *auth.TokenService
	logger zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users *service.UserService, tokens *auth.TokenService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
		logger: logger.With().Str("handler", "auth").Logger(),
	}
}

// RegisterPublicRoutes registers routes that need no authentication.
func (h *AuthHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
}

// RegisterProtectedRoutes registers routes behind the auth middleware.
func (h *AuthHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/me", h.handleMe)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expires_at"`
	User      *domain.UserSummary `json:"user"`
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	output, err := h.users.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	issued, err := h.tokens.Issue(output.User)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		User:      output.User.Summary(),
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	issued, err := h.tokens.Issue(user)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, authResponse{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		User:      user.Summary(),
	})
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		respondMessage(w, http.StatusUnauthorized, "Not authorized, no token")
		return
	}

	user, err := h.users.GetByID(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, user.Summary())
}
