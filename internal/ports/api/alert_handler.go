package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"drone-alert-system/internal/application"
	"drone-alert-system/internal/domain"
)

// AlertHandler обробляє HTTP-запити, пов'язані з тривогами
type AlertHandler struct {
	alertService *application.AlertService
}

// NewAlertHandler створює новий AlertHandler
func NewAlertHandler(alertService *application.AlertService) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
	}
}

// RegisterRoutes реєструє маршрути для AlertHandler
func (h *AlertHandler) RegisterRoutes(r chi.Router) {
	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", h.ListAlerts)
		r.Post("/", h.CreateAlert)
		r.Get("/{id}", h.GetAlert)
		r.Put("/{id}/response", h.RecordResponse)
		r.Put("/{id}/image", h.RecordImage)
	})
}

// ListAlerts обробляє GET /alerts
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	alerts, err := h.alertService.RecentAlerts(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []*domain.Alert{}
	}

	writeJSON(w, http.StatusOK, alerts)
}

// CreateAlert обробляє POST /alerts
func (h *AlertHandler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var request struct {
		AlertType   string          `json:"alert_type"`
		Score       float64         `json:"score"`
		Location    domain.Location `json:"location"`
		DroneID     string          `json:"drone_id"`
		Description string          `json:"description"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	alert := &domain.Alert{
		AlertType:   domain.AlertType(request.AlertType),
		Score:       request.Score,
		Location:    request.Location,
		DroneID:     request.DroneID,
		Description: request.Description,
	}

	if err := h.alertService.CreateAlert(r.Context(), alert); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, alert)
}

// GetAlert обробляє GET /alerts/{id}
func (h *AlertHandler) GetAlert(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid alert ID", http.StatusBadRequest)
		return
	}

	alert, err := h.alertService.GetAlert(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// RecordResponse обробляє PUT /alerts/{id}/response
func (h *AlertHandler) RecordResponse(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid alert ID", http.StatusBadRequest)
		return
	}

	var request struct {
		Actions []string `json:"actions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	alert, err := h.alertService.RecordResponse(r.Context(), id, request.Actions)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// RecordImage обробляє PUT /alerts/{id}/image
func (h *AlertHandler) RecordImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid alert ID", http.StatusBadRequest)
		return
	}

	var request struct {
		ImageURL string `json:"image_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	alert, err := h.alertService.RecordImage(r.Context(), id, request.ImageURL)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeDomainError відображає помилки домену на HTTP статуси
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAlertNotFound),
		errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrAlertImageNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrResponseConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
