package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsub/subsync/internal/api"
	v1 "github.com/cloudsub/subsync/internal/api/v1"
	"github.com/cloudsub/subsync/internal/config"
	"github.com/cloudsub/subsync/internal/events"
	"github.com/cloudsub/subsync/internal/sync"
)

type stubConfigService struct{}

func (stubConfigService) Snapshot() config.Config                  { return *config.Default() }
func (stubConfigService) Update(context.Context, config.Config) error { return nil }

type stubBackfillService struct{}

func (stubBackfillService) Trigger(context.Context) bool { return false }
func (stubBackfillService) Status() sync.Status          { return sync.Status{State: sync.StateIdle} }

type stubEventPublisher struct{}

func (stubEventPublisher) Publish(context.Context, events.Event) {}

func newTestServer(opts ...api.ServerOption) http.Handler {
	routes := v1.NewRoutes(stubConfigService{}, stubBackfillService{}, stubEventPublisher{})
	return api.NewServer(routes, opts...)
}

func TestNewServer_RoutesMounted(t *testing.T) {
	t.Parallel()

	server := newTestServer()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "version", method: http.MethodGet, path: "/version", wantStatus: http.StatusOK},
		{name: "config", method: http.MethodGet, path: "/api/v1/config", wantStatus: http.StatusOK},
		{name: "status", method: http.MethodGet, path: "/api/v1/status", wantStatus: http.StatusOK},
		{name: "unknown route", method: http.MethodGet, path: "/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestNewServer_MiddlewareApplied(t *testing.T) {
	t.Parallel()

	called := false
	marker := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	}

	server := newTestServer(api.WithMiddlewares(marker, api.LoggingMiddleware))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}
