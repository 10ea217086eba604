// Package http provides the HTTP handlers and router of the crop tracker API.
package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// AuthService defines the interface for authentication operations
// required by the HTTP handlers.
type AuthService interface {
	// Register creates an account. A taken username yields common.ErrConflict.
	Register(ctx context.Context, username, password string) error
	// Login returns an access token or common.ErrInvalidCredentials.
	Login(ctx context.Context, username, password string) (string, error)
	// VerifyToken returns the claims of a valid token.
	VerifyToken(token string) (map[string]any, error)
}

// AuthHandler handles HTTP requests for user registration and login.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	Logger      *zap.Logger
}

// CredentialsRequest represents the JSON payload for registration and login.
type CredentialsRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

// loginRequest skips the format rules so that any malformed username simply
// fails to log in.
type loginRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=128"`
}

// Register handles POST /api/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	logger := orNop(h.Logger)
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, logger, err)
		return
	}

	if err := h.AuthService.Register(r.Context(), req.Username, req.Password); err != nil {
		writeError(w, r, logger, err)
		return
	}

	writeMessage(w, http.StatusCreated, "User registered successfully")
}

// Login handles POST /api/login and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	logger := orNop(h.Logger)
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, logger, err)
		return
	}

	token, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Login successful",
		"access_token": token,
		"token_type":   "bearer",
		"success":      true,
	})
}

type verifyRequest struct {
	Token string `json:"token"`
}

// VerifyToken handles POST /api/verify-token. Invalid tokens are reported
// in the body with status 200.
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, orNop(h.Logger), err)
		return
	}

	claims, err := h.AuthService.VerifyToken(req.Token)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"message": "Invalid token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Token is valid",
		"payload": claims,
	})
}
