package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/offer-pipeline-api/internal/auth"
	"github.com/straye-as/offer-pipeline-api/internal/config"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"github.com/straye-as/offer-pipeline-api/internal/service"
	"github.com/straye-as/offer-pipeline-api/internal/stage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func createOfferService(db *gorm.DB, recorder service.Recorder) *service.OfferService {
	logger := zap.NewNop()
	if recorder == nil {
		recorder = service.NewAuditRecorder(
			repository.NewActivityRepository(db),
			repository.NewStageRemarkRepository(db),
			logger,
		)
	}
	return service.NewOfferService(
		service.NewTxRunner(db, &config.PipelineConfig{MaxRetries: 1, RetryBaseDelayMs: 1}, logger),
		repository.NewOfferRepository(db),
		repository.NewCustomerRepository(db),
		repository.NewContactRepository(db),
		repository.NewZoneRepository(db),
		repository.NewAssetRepository(db),
		repository.NewSparePartRepository(db),
		service.NewNumberSequenceService(repository.NewNumberSequenceRepository(db), logger),
		recorder,
		stage.DefaultPolicy,
		nil,
		logger,
	)
}

func userContext(user *domain.User) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:      user.ID,
		DisplayName: user.Name,
		Email:       user.Email,
		Role:        user.Role,
		ZoneID:      user.ZoneID,
	})
}

// withChiContext adds Chi route context with the given URL parameters
func withChiContext(ctx context.Context, params map[string]string) context.Context {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return context.WithValue(ctx, chi.RouteCtxKey, rctx)
}

// newRequest builds a request carrying ctx, JSON-encoding body when it is not nil
func newRequest(t *testing.T, ctx context.Context, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(ctx)
}

func decodeAPIError(t *testing.T, rr *httptest.ResponseRecorder) domain.APIError {
	t.Helper()
	var apiErr domain.APIError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &apiErr))
	return apiErr
}
