package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sectorfolio/sectorfolio/internal/auth"
	"github.com/sectorfolio/sectorfolio/internal/logging"
)

// AuthHandler handles authentication requests.
type AuthHandler struct {
	auth   *auth.Authenticator
	logger *slog.Logger
}

func NewAuthHandler(a *auth.Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: a, logger: logging.Component(logger, "auth")}
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse represents a login response.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, expires, err := h.auth.Login(req.Password)
	switch {
	case errors.Is(err, auth.ErrLoginDisabled):
		writeError(w, h.logger, http.StatusServiceUnavailable, "admin login is not configured")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.logger.Warn("failed login attempt", "ip", r.RemoteAddr)
		writeError(w, h.logger, http.StatusUnauthorized, "Invalid credentials")
		return
	case err != nil:
		h.logger.Error("failed to generate token", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("successful login", "ip", r.RemoteAddr)
	writeJSON(w, h.logger, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expires})
}
