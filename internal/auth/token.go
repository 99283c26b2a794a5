package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/campus-tf/trove/internal/domain"
)

// Claims represents the custom JWT claims carried by a Trove identity token.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Identity is the authenticated caller extracted from a verified token.
// It is passed through the request context so that every operation receives
// an explicit, request-scoped credential.
type Identity struct {
	UserID   int64
	Username string
}

// TokenConfig contains token service settings.
type TokenConfig struct {
	// Secret is the HMAC secret used for signing.
	Secret string

	// TTL is how long issued tokens stay valid.
	TTL time.Duration

	// Issuer is the "iss" claim value.
	Issuer string
}

// TokenService issues and verifies signed identity tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenService creates a new TokenService.
func NewTokenService(cfg TokenConfig) *TokenService {
	return &TokenService{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
	}
}

// IssuedToken is a signed token together with its expiry.
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issue creates a signed token identifying the given user.
func (s *TokenService) Issue(user *domain.User) (*IssuedToken, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username: user.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	return &IssuedToken{
		Token:     signed,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify validates a token string and returns the identity it carries.
func (s *TokenService) Verify(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, ErrInvalidClaims
	}

	return &Identity{
		UserID:   userID,
		Username: claims.Username,
	}, nil
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}
