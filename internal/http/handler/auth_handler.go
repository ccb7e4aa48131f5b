package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/service"
	"go.uber.org/zap"
)

// SessionService interface for dependency injection
type SessionService interface {
	Me(ctx context.Context) (*domain.UserDTO, error)
	RecordLogin(ctx context.Context, method string) error
	RecordLogout(ctx context.Context, method string) error
}

type AuthHandler struct {
	sessions SessionService
	logger   *zap.Logger
}

func NewAuthHandler(sessionService *service.SessionService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		sessions: sessionService,
		logger:   logger,
	}
}

// NewAuthHandlerWithMocks creates an auth handler with mock dependencies for testing
func NewAuthHandlerWithMocks(sessions SessionService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// Me godoc
// @Summary Get current authenticated user
// @Description Returns the caller with role and zone
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.UserDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessions.Me(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, "get current user", err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Login godoc
// @Summary Record a sign-in
// @Description Called by the front end after it obtains a token. Stamps the last login and writes USER_LOGIN to the activity log.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body domain.SessionRequest false "Sign-in method"
// @Success 200 {object} domain.UserDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := h.sessionRequest(w, r)
	if !ok {
		return
	}

	if err := h.sessions.RecordLogin(r.Context(), req.Method); err != nil {
		handleServiceError(w, h.logger, "record login", err)
		return
	}

	user, err := h.sessions.Me(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, "get current user", err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Logout godoc
// @Summary Record a sign-out
// @Tags Auth
// @Accept json
// @Param request body domain.SessionRequest false "Sign-out method"
// @Success 204
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	req, ok := h.sessionRequest(w, r)
	if !ok {
		return
	}

	if err := h.sessions.RecordLogout(r.Context(), req.Method); err != nil {
		handleServiceError(w, h.logger, "record logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionRequest tolerates an empty body
func (h *AuthHandler) sessionRequest(w http.ResponseWriter, r *http.Request) (domain.SessionRequest, bool) {
	var req domain.SessionRequest
	if r.ContentLength == 0 {
		return req, true
	}
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	req.Method = strings.TrimSpace(req.Method)
	return req, true
}
