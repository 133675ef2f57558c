package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/config"
	"storefront/internal/dto"
	"storefront/internal/middleware"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type nopCatalog struct{}

func (nopCatalog) Pricing(context.Context, uuid.UUID) (*dto.PricingResponse, error) {
	return &dto.PricingResponse{Variants: []dto.VariantResponse{}}, nil
}

func (nopCatalog) CheckSelection(context.Context, uuid.UUID, string) (*dto.SelectionResponse, error) {
	return &dto.SelectionResponse{Valid: true}, nil
}

func (nopCatalog) PriceHistory(context.Context, uuid.UUID, int, int) (*dto.PriceChangeListResponse, error) {
	return &dto.PriceChangeListResponse{}, nil
}

func TestRoutesAreMounted(t *testing.T) {
	r := New(&config.Config{Env: "test"}, Deps{Catalog: nopCatalog{}})
	id := uuid.NewString()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/products/" + id + "/pricing"},
		{http.MethodGet, "/v1/products/" + id + "/price-changes"},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusOK, w.Code, tc.path)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	}
}

func TestHealthWithoutBackends(t *testing.T) {
	r := New(&config.Config{Env: "test"}, Deps{Catalog: nopCatalog{}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":false`)
}

func TestRateLimiterIsApplied(t *testing.T) {
	r := New(&config.Config{Env: "test"}, Deps{Catalog: nopCatalog{}, Limiter: middleware.NewIPRateLimiter(1, 1)})
	path := "/v1/products/" + uuid.NewString() + "/pricing"

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
