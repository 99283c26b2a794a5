// Package auth provides token-based authentication for the Trove API.
package auth

import "errors"

// Token verification errors. All of them map to a 401 at the HTTP surface;
// the distinction is for logs and tests only.
var (
	// ErrInvalidToken indicates the token is malformed or its signature is wrong.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token has expired.
	ErrExpiredToken = errors.New("token has expired")

	// ErrTokenNotYetValid indicates the token is not yet valid.
	ErrTokenNotYetValid = errors.New("token is not yet valid")

	// ErrInvalidClaims indicates the token claims are missing or malformed.
	ErrInvalidClaims = errors.New("invalid token claims")

	// ErrMissingToken indicates no bearer token was supplied.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrNoIdentity indicates no identity is attached to the request context.
	ErrNoIdentity = errors.New("no identity in context")
)
