package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"drone-alert-system/internal/application"
	"drone-alert-system/internal/domain"
)

// TaskHandler обробляє HTTP-запити, пов'язані із завданнями обробки
type TaskHandler struct {
	dispatcher *application.TaskDispatcher
}

// NewTaskHandler створює новий TaskHandler
func NewTaskHandler(dispatcher *application.TaskDispatcher) *TaskHandler {
	return &TaskHandler{
		dispatcher: dispatcher,
	}
}

// RegisterRoutes реєструє маршрути для TaskHandler
func (h *TaskHandler) RegisterRoutes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", h.CreateTask)
		r.Get("/{id}", h.GetTask)
		r.Get("/{id}/result", h.GetTaskResult)
		r.Put("/{id}/status", h.UpdateTaskStatus)
	})
	r.Post("/results", h.ReportResult)
	r.Get("/drones/{drone_id}/tasks/pending", h.ListPendingForDrone)
}

// CreateTask обробляє POST /tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var request struct {
		AppID     string                 `json:"app_id"`
		DroneID   string                 `json:"drone_id"`
		TaskType  string                 `json:"task_type"`
		InputData map[string]interface{} `json:"input_data"`
		Priority  int                    `json:"priority"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	task := &domain.ProcessingTask{
		AppID:     request.AppID,
		DroneID:   request.DroneID,
		TaskType:  request.TaskType,
		InputData: request.InputData,
		Priority:  request.Priority,
	}

	if err := h.dispatcher.Enqueue(r.Context(), task); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// GetTask обробляє GET /tasks/{id}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid task ID", http.StatusBadRequest)
		return
	}

	task, err := h.dispatcher.GetTask(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// GetTaskResult обробляє GET /tasks/{id}/result
func (h *TaskHandler) GetTaskResult(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid task ID", http.StatusBadRequest)
		return
	}

	result, err := h.dispatcher.GetResultForTask(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// UpdateTaskStatus обробляє PUT /tasks/{id}/status
func (h *TaskHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid task ID", http.StatusBadRequest)
		return
	}

	var request struct {
		Status         string                 `json:"status"`
		AdditionalData map[string]interface{} `json:"additional_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	task, err := h.dispatcher.UpdateStatus(r.Context(), id, domain.TaskStatus(request.Status), request.AdditionalData)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// ReportResult обробляє POST /results
func (h *TaskHandler) ReportResult(w http.ResponseWriter, r *http.Request) {
	var request struct {
		TaskID         string                 `json:"task_id"`
		ResultData     map[string]interface{} `json:"result_data"`
		ProcessingTime float64                `json:"processing_time"`
		Success        bool                   `json:"success"`
		ErrorMessage   string                 `json:"error_message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	taskID, err := uuid.Parse(request.TaskID)
	if err != nil {
		http.Error(w, "Invalid task ID", http.StatusBadRequest)
		return
	}

	result := &domain.ProcessingResult{
		TaskID:         taskID,
		ResultData:     request.ResultData,
		ProcessingTime: request.ProcessingTime,
		Success:        request.Success,
		ErrorMessage:   request.ErrorMessage,
	}

	if err := h.dispatcher.ReportResult(r.Context(), result); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// ListPendingForDrone обробляє GET /tasks/pending/{drone_id}
func (h *TaskHandler) ListPendingForDrone(w http.ResponseWriter, r *http.Request) {
	droneID := chi.URLParam(r, "drone_id")
	if droneID == "" {
		http.Error(w, "drone_id is required", http.StatusBadRequest)
		return
	}

	tasks, err := h.dispatcher.PendingForDrone(r.Context(), droneID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []*domain.ProcessingTask{}
	}

	writeJSON(w, http.StatusOK, tasks)
}
