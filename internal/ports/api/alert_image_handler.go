package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"drone-alert-system/internal/application"
	"drone-alert-system/internal/domain"
)

// AlertImageHandler обробляє HTTP-запити, пов'язані із зображеннями тривог
type AlertImageHandler struct {
	imageService *application.AlertImageService
}

// NewAlertImageHandler створює новий AlertImageHandler
func NewAlertImageHandler(imageService *application.AlertImageService) *AlertImageHandler {
	return &AlertImageHandler{
		imageService: imageService,
	}
}

// RegisterRoutes реєструє маршрути для AlertImageHandler
func (h *AlertImageHandler) RegisterRoutes(r chi.Router) {
	r.Route("/alert-images", func(r chi.Router) {
		r.Post("/", h.CreateAlertImage)
		r.Get("/{id}", h.GetAlertImage)
		r.Delete("/{id}", h.DeleteAlertImage)
	})
}

// CreateAlertImage обробляє POST /alert-images
func (h *AlertImageHandler) CreateAlertImage(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Found        bool            `json:"found"`
		Name         string          `json:"name"`
		DroneID      string          `json:"drone_id"`
		Location     domain.Location `json:"location"`
		ActualImage  string          `json:"actual_image"`
		MatchedFrame string          `json:"matched_frame"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	image := &domain.AlertImage{
		Found:    request.Found,
		Name:     request.Name,
		DroneID:  request.DroneID,
		Location: request.Location,
	}

	if err := h.imageService.CreateAlertImage(r.Context(), image, request.ActualImage, request.MatchedFrame); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, image)
}

// GetAlertImage обробляє GET /alert-images/{id}
func (h *AlertImageHandler) GetAlertImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid alert image ID", http.StatusBadRequest)
		return
	}

	image, actual, matched, err := h.imageService.GetAlertImage(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alert_image":   image,
		"actual_image":  actual,
		"matched_frame": matched,
	})
}

// DeleteAlertImage обробляє DELETE /alert-images/{id}
func (h *AlertImageHandler) DeleteAlertImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid alert image ID", http.StatusBadRequest)
		return
	}

	if err := h.imageService.DeleteAlertImage(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
