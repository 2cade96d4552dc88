package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vidpress/orchestrator/internal/ws"
)

func NewRouter(h *Handlers, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// Health & Info
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)

	// Jobs API
	r.Post("/api/jobs", h.SubmitJobs)
	r.Get("/api/jobs", h.ListJobs)
	r.Delete("/api/jobs", h.ClearJobs)
	r.Get("/api/jobs/{id}", h.GetJob)
	r.Post("/api/jobs/{id}/cancel", h.CancelJob)
	r.Post("/api/jobs/{id}/retry", h.RetryJob)
	r.Get("/api/jobs/{id}/download", h.DownloadOutput)

	// Event polling (incremental; the WebSocket feed is the live path)
	r.Get("/api/events", h.ListEvents)

	// History API
	r.Get("/api/history", h.ListHistory)
	r.Delete("/api/history", h.ClearHistory)
	r.Get("/api/history/export.csv", h.ExportHistoryCSV)
	r.Get("/api/history/export.xlsx", h.ExportHistoryXLSX)

	// Settings & presets
	r.Get("/api/settings", h.GetSettings)
	r.Put("/api/settings", h.PutSettings)
	r.Get("/api/presets", h.ListPresets)

	// WebSocket event feed
	r.Get("/ws/events", wsServer.HandleEvents)

	return r
}
