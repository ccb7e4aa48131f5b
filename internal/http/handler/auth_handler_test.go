package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/http/handler"
	"github.com/straye-as/offer-pipeline-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockSessionService records calls instead of touching the database
type MockSessionService struct {
	user    *domain.UserDTO
	err     error
	logins  []string
	logouts []string
}

func (m *MockSessionService) Me(ctx context.Context) (*domain.UserDTO, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

func (m *MockSessionService) RecordLogin(ctx context.Context, method string) error {
	if m.err != nil {
		return m.err
	}
	m.logins = append(m.logins, method)
	return nil
}

func (m *MockSessionService) RecordLogout(ctx context.Context, method string) error {
	if m.err != nil {
		return m.err
	}
	m.logouts = append(m.logouts, method)
	return nil
}

func TestAuthHandler(t *testing.T) {
	user := &domain.UserDTO{ID: uuid.New(), Name: "Sam Seller", Role: domain.RoleZoneManager}

	t.Run("me", func(t *testing.T) {
		h := handler.NewAuthHandlerWithMocks(&MockSessionService{user: user}, zap.NewNop())
		rr := httptest.NewRecorder()
		h.Me(rr, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		var got domain.UserDTO
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, "Sam Seller", got.Name)
	})

	t.Run("login with method", func(t *testing.T) {
		mock := &MockSessionService{user: user}
		h := handler.NewAuthHandlerWithMocks(mock, zap.NewNop())
		rr := httptest.NewRecorder()
		h.Login(rr, newRequest(t, context.Background(), http.MethodPost, "/auth/login", map[string]string{"method": " sso "}))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []string{"sso"}, mock.logins)
	})

	t.Run("logout without body", func(t *testing.T) {
		mock := &MockSessionService{user: user}
		h := handler.NewAuthHandlerWithMocks(mock, zap.NewNop())
		rr := httptest.NewRecorder()
		h.Logout(rr, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, []string{""}, mock.logouts)
	})

	t.Run("anonymous", func(t *testing.T) {
		h := handler.NewAuthHandlerWithMocks(&MockSessionService{err: service.ErrUnauthorized}, zap.NewNop())
		rr := httptest.NewRecorder()
		h.Login(rr, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
