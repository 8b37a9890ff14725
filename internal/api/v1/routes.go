// Package v1 provides the REST API handlers for the subscription sync bridge.
package v1

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloudsub/subsync/internal/config"
	"github.com/cloudsub/subsync/internal/events"
	"github.com/cloudsub/subsync/internal/sync"
	"github.com/cloudsub/subsync/pkg/versions"
)

// ConfigService exposes the live bridge configuration.
type ConfigService interface {
	Snapshot() config.Config
	Update(ctx context.Context, cfg config.Config) error
}

// BackfillService exposes the backfill reconciler.
type BackfillService interface {
	Trigger(ctx context.Context) bool
	Status() sync.Status
}

// EventPublisher accepts subscription lifecycle events from the host.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event)
}

// Routes defines the routes for the bridge API with dependency injection
type Routes struct {
	config   ConfigService
	backfill BackfillService
	bus      EventPublisher
}

// NewRoutes creates a new Routes instance with the provided services
func NewRoutes(cfg ConfigService, backfill BackfillService, bus EventPublisher) *Routes {
	return &Routes{
		config:   cfg,
		backfill: backfill,
		bus:      bus,
	}
}

// Router creates a new router for the bridge API
func Router(routes *Routes) http.Handler {
	r := chi.NewRouter()

	r.Get("/config", routes.getConfig)
	r.Put("/config", routes.putConfig)
	r.Get("/status", routes.getStatus)

	r.Post("/events/subscribe-added", routes.postSubscribeAdded)
	r.Post("/events/subscribe-deleted", routes.postSubscribeDeleted)

	return r
}

// getConfig handles GET /api/v1/config
func (rr *Routes) getConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, rr.config.Snapshot(), http.StatusOK)
}

// putConfig handles PUT /api/v1/config. Arming sync_history in the saved
// configuration starts a backfill run.
func (rr *Routes) putConfig(w http.ResponseWriter, r *http.Request) {
	var cfg config.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeErrorResponse(w, "Invalid configuration payload", http.StatusBadRequest)
		return
	}

	if err := rr.config.Update(r.Context(), cfg); err != nil {
		slog.Error("Failed to update configuration", "error", err)
		writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if cfg.SyncHistory {
		// The run outlives this request; detach it from the request context.
		rr.backfill.Trigger(context.WithoutCancel(r.Context()))
	}

	writeJSONResponse(w, rr.config.Snapshot(), http.StatusOK)
}

// StatusResponse represents the bridge status response
type StatusResponse struct {
	Enabled  bool        `json:"enabled"`
	Backfill sync.Status `json:"backfill"`
}

// getStatus handles GET /api/v1/status
func (rr *Routes) getStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, StatusResponse{
		Enabled:  rr.config.Snapshot().Enabled,
		Backfill: rr.backfill.Status(),
	}, http.StatusOK)
}

// SubscribeAddedRequest carries the id of a newly created subscription.
type SubscribeAddedRequest struct {
	SubscribeID int64 `json:"subscribe_id"`
}

// postSubscribeAdded handles POST /api/v1/events/subscribe-added
func (rr *Routes) postSubscribeAdded(w http.ResponseWriter, r *http.Request) {
	var req SubscribeAddedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, "Invalid event payload", http.StatusBadRequest)
		return
	}
	if req.SubscribeID <= 0 {
		writeErrorResponse(w, "subscribe_id is required", http.StatusBadRequest)
		return
	}

	rr.bus.Publish(r.Context(), events.NewSubscribeAdded(req.SubscribeID))
	w.WriteHeader(http.StatusAccepted)
}

// postSubscribeDeleted handles POST /api/v1/events/subscribe-deleted. The
// store copy is already gone, so the full record rides in the event body.
func (rr *Routes) postSubscribeDeleted(w http.ResponseWriter, r *http.Request) {
	event := events.Event{}
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeErrorResponse(w, "Invalid event payload", http.StatusBadRequest)
		return
	}
	if event.Subscription == nil {
		writeErrorResponse(w, "subscribe_info is required", http.StatusBadRequest)
		return
	}

	deleted := events.NewSubscribeDeleted(event.Subscription)
	rr.bus.Publish(r.Context(), deleted)
	w.WriteHeader(http.StatusAccepted)
}

// HealthRouter creates a router for health check endpoints
func HealthRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler)

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// versionHandler handles version information requests
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	info := versions.GetVersionInfo()

	response := map[string]string{
		"version":    info.Version,
		"commit":     info.Commit,
		"build_date": info.BuildDate,
		"go_version": info.GoVersion,
		"platform":   info.Platform,
	}

	writeJSONResponse(w, response, http.StatusOK)
}

// writeJSONResponse writes a JSON response with the given data
func writeJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, map[string]string{"error": message}, statusCode)
}
