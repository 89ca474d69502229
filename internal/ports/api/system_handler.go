package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ConnectionStatsSource постачає миттєві кількості з'єднань за ролями
type ConnectionStatsSource interface {
	Stats() map[string]int
}

// SystemHandler обробляє службові HTTP-запити
type SystemHandler struct {
	connections ConnectionStatsSource
	db          *sql.DB
	startedAt   time.Time
}

// NewSystemHandler створює новий SystemHandler
func NewSystemHandler(connections ConnectionStatsSource, db *sql.DB) *SystemHandler {
	return &SystemHandler{
		connections: connections,
		db:          db,
		startedAt:   time.Now(),
	}
}

// RegisterRoutes реєструє маршрути для SystemHandler
func (h *SystemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/stats", h.GetStats)
}

// Health обробляє GET /health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbOK := h.db != nil && h.db.PingContext(ctx) == nil

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"uptime":      time.Since(h.startedAt).String(),
		"database":    dbOK,
		"connections": h.connections.Stats(),
	})
}

// GetStats обробляє GET /stats
func (h *SystemHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connections": h.connections.Stats(),
		"timestamp":   time.Now().UTC(),
	})
}
