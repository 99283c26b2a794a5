package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/campus-tf/trove/internal/auth"
	"github.com/campus-tf/trove/internal/domain"
	"github.com/campus-tf/trove/internal/repository"
	"github.com/campus-tf/trove/internal/service"
)

// ItemHandler handles found item endpoints.
type ItemHandler struct {
	items        *service.ItemService
	maxImageSize int64
	logger       zerolog.Logger
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(items *service.ItemService, maxImageSize int64, logger zerolog.Logger) *ItemHandler {
	return &ItemHandler{
		items:        items,
		maxImageSize: maxImageSize,
		logger:       logger.With().Str("handler", "item").Logger(),
	}
}

// RegisterPublicRoutes registers the read-only item routes.
func (h *ItemHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
}

// RegisterProtectedRoutes registers the mutating item routes. These must be
// mounted behind the auth middleware.
func (h *ItemHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/", h.handleReport)
	r.Put("/{id}/claim", h.handleClaim)
	r.Delete("/{id}", h.handleRemove)
}

// handleReport accepts a multipart form with the item fields and an
// "image" file part. A missing part is passed through as a nil upload and
// rejected by the service.
func (h *ItemHandler) handleReport(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		respondMessage(w, http.StatusUnauthorized, "Not authorized, no token")
		return
	}

	// Some headroom over the image cap for the text fields.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageSize+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	input := service.ReportInput{
		Name:          r.FormValue("name"),
		Description:   r.FormValue("description"),
		LocationFound: r.FormValue("location_found"),
		ContactInfo:   r.FormValue("contact_info"),
		FoundByID:     identity.UserID,
	}

	file, header, err := r.FormFile("image")
	if err == nil {
		defer file.Close()
		input.Image = &service.ImageUpload{
			Reader:      file,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
		}
	} else if err != http.ErrMissingFile {
		respondMessage(w, http.StatusBadRequest, "invalid image upload")
		return
	}

	view, err := h.items.Report(r.Context(), input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, view)
}

func (h *ItemHandler) handleList(w http.ResponseWriter, r *http.Request) {
	opts := repository.ItemListOptions{}

	query := r.URL.Query()
	switch query.Get("state") {
	case "open":
		opts.State = domain.ItemStateOpen
	case "claimed":
		opts.State = domain.ItemStateClaimed
	}
	if v, err := strconv.Atoi(query.Get("limit")); err == nil && v > 0 {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(query.Get("offset")); err == nil && v > 0 {
		opts.Offset = v
	}

	result, err := h.items.List(r.Context(), opts)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *ItemHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid item id")
		return
	}

	view, err := h.items.Get(r.Context(), itemID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (h *ItemHandler) handleClaim(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		respondMessage(w, http.StatusUnauthorized, "Not authorized, no token")
		return
	}

	itemID, err := itemIDParam(r)
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid item id")
		return
	}

	view, err := h.items.Claim(r.Context(), itemID, identity.UserID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (h *ItemHandler) handleRemove(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		respondMessage(w, http.StatusUnauthorized, "Not authorized, no token")
		return
	}

	itemID, err := itemIDParam(r)
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := h.items.Remove(r.Context(), itemID, identity.UserID); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondMessage(w, http.StatusOK, "Item removed")
}

func itemIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
