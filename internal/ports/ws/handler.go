package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"drone-alert-system/internal/application"
	"drone-alert-system/internal/domain"
	"drone-alert-system/internal/ports"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // В продакшені тут має бути перевірка походження запиту
	},
}

// ChannelHandler обробляє WebSocket з'єднання дронів та застосунків.
// Кожне вхідне повідомлення несе дискримінатор "type"; невідомі типи
// та некоректні дані відповідаються конвертом помилки без розриву каналу.
type ChannelHandler struct {
	alertService *application.AlertService
	imageService *application.AlertImageService
	dispatcher   *application.TaskDispatcher
	registry     *Registry
	logger       zerolog.Logger
}

// NewChannelHandler створює новий ChannelHandler
func NewChannelHandler(
	alertService *application.AlertService,
	imageService *application.AlertImageService,
	dispatcher *application.TaskDispatcher,
	registry *Registry,
	logger zerolog.Logger,
) *ChannelHandler {
	return &ChannelHandler{
		alertService: alertService,
		imageService: imageService,
		dispatcher:   dispatcher,
		registry:     registry,
		logger:       logger,
	}
}

// RegisterRoutes реєструє WebSocket маршрути
func (h *ChannelHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/drones/{drone_id}", h.HandleDroneConnection)
	r.Get("/ws/applications/{app_id}", h.HandleApplicationConnection)
}

// HandleDroneConnection обробляє WebSocket з'єднання дрона
func (h *ChannelHandler) HandleDroneConnection(w http.ResponseWriter, r *http.Request) {
	droneID := chi.URLParam(r, "drone_id")
	if droneID == "" {
		http.Error(w, "drone_id is required", http.StatusBadRequest)
		return
	}
	h.handleConnection(w, r, ports.RoleDrone, droneID)
}

// HandleApplicationConnection обробляє WebSocket з'єднання застосунку
func (h *ChannelHandler) HandleApplicationConnection(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "app_id")
	if appID == "" {
		http.Error(w, "app_id is required", http.StatusBadRequest)
		return
	}
	h.handleConnection(w, r, ports.RoleApplication, appID)
}

func (h *ChannelHandler) handleConnection(w http.ResponseWriter, r *http.Request, role ports.Role, clientID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).
			Str("role", string(role)).
			Str("client_id", clientID).
			Msg("failed to upgrade connection")
		return
	}

	h.registry.Register(role, clientID, conn)

	// Контекст запиту скасовується одразу після повернення обробника,
	// тому цикл читання живе на власному контексті
	go h.readLoop(context.Background(), role, clientID, conn)
}

// readLoop читає вхідні повідомлення до розриву з'єднання. Прибирання
// прив'язане до власного каналу циклу: після реконекту цикл витісненого
// з'єднання не має знести свіжу реєстрацію під тим самим client_id.
func (h *ChannelHandler) readLoop(ctx context.Context, role ports.Role, clientID string, conn *websocket.Conn) {
	defer h.registry.UnregisterChannel(role, clientID, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Error().Err(err).
					Str("role", string(role)).
					Str("client_id", clientID).
					Msg("websocket read error")
			}
			return
		}

		var envelope map[string]interface{}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			h.sendError(role, clientID, "invalid JSON message")
			continue
		}

		messageType, _ := envelope["type"].(string)
		if messageType == "" {
			h.sendError(role, clientID, "message type is required")
			continue
		}

		// Навантаження повідомлення живе під ключем "data"
		switch role {
		case ports.RoleDrone:
			h.handleDroneMessage(ctx, clientID, messageType, envelope)
		case ports.RoleApplication:
			h.handleApplicationMessage(ctx, clientID, messageType, envelope)
		}
	}
}

// handleDroneMessage маршрутизує повідомлення від дрона
func (h *ChannelHandler) handleDroneMessage(ctx context.Context, droneID, messageType string, envelope map[string]interface{}) {
	switch messageType {
	case "ping":
		h.registry.Send(ports.RoleDrone, droneID, map[string]interface{}{"type": "pong"})
	case "alert":
		h.handleDroneAlert(ctx, droneID, envelope)
	case "image":
		h.handleDroneImage(ctx, droneID, envelope)
	case "processing_result":
		h.handleDroneResult(ctx, droneID, envelope)
	case "task_status_update":
		h.handleDroneStatusUpdate(ctx, droneID, envelope)
	case "alert_image":
		h.handleDroneAlertImage(ctx, droneID, envelope)
	default:
		h.sendError(ports.RoleDrone, droneID, "unknown message type: "+messageType)
	}
}

// handleApplicationMessage маршрутизує повідомлення від застосунку
func (h *ChannelHandler) handleApplicationMessage(ctx context.Context, appID, messageType string, envelope map[string]interface{}) {
	switch messageType {
	case "ping":
		h.registry.Send(ports.RoleApplication, appID, map[string]interface{}{"type": "pong"})
	case "response":
		h.handleApplicationResponse(ctx, appID, envelope)
	case "processing_task":
		h.handleApplicationTask(ctx, appID, envelope)
	default:
		h.sendError(ports.RoleApplication, appID, "unknown message type: "+messageType)
	}
}

func (h *ChannelHandler) handleDroneAlert(ctx context.Context, droneID string, envelope map[string]interface{}) {
	data := mapField(envelope, "data")
	alert := &domain.Alert{
		AlertType:   domain.AlertType(stringField(data, "alert_type")),
		Score:       floatField(data, "score"),
		Location:    locationField(data, "location"),
		DroneID:     droneID,
		Description: stringField(data, "description"),
	}

	if err := h.alertService.CreateAlert(ctx, alert); err != nil {
		h.sendError(ports.RoleDrone, droneID, err.Error())
		return
	}

	h.registry.Send(ports.RoleDrone, droneID, map[string]interface{}{
		"type":     "alert_created",
		"alert_id": alert.ID,
	})
}

func (h *ChannelHandler) handleDroneImage(ctx context.Context, droneID string, envelope map[string]interface{}) {
	data := mapField(envelope, "data")
	alertID, err := uuid.Parse(stringField(data, "alert_id"))
	if err != nil {
		h.sendError(ports.RoleDrone, droneID, "valid alert_id is required")
		return
	}

	if _, err := h.alertService.RecordImage(ctx, alertID, stringField(data, "image_url")); err != nil {
		h.sendError(ports.RoleDrone, droneID, err.Error())
	}
}

func (h *ChannelHandler) handleDroneResult(ctx context.Context, droneID string, envelope map[string]interface{}) {
	data := mapField(envelope, "data")
	taskID, err := uuid.Parse(stringField(data, "task_id"))
	if err != nil {
		h.sendError(ports.RoleDrone, droneID, "valid task_id is required")
		return
	}

	result := &domain.ProcessingResult{
		TaskID:         taskID,
		ResultData:     mapField(data, "result_data"),
		ProcessingTime: floatField(data, "processing_time"),
		Success:        boolField(data, "success"),
		ErrorMessage:   stringField(data, "error_message"),
	}

	if err := h.dispatcher.ReportResult(ctx, result); err != nil {
		h.sendError(ports.RoleDrone, droneID, err.Error())
		return
	}

	h.registry.Send(ports.RoleDrone, droneID, map[string]interface{}{
		"type":    "result_received",
		"task_id": taskID,
	})
}

func (h *ChannelHandler) handleDroneStatusUpdate(ctx context.Context, droneID string, envelope map[string]interface{}) {
	data := mapField(envelope, "data")
	taskID, err := uuid.Parse(stringField(data, "task_id"))
	if err != nil {
		h.sendError(ports.RoleDrone, droneID, "valid task_id is required")
		return
	}

	status := domain.TaskStatus(stringField(data, "status"))
	if _, err := h.dispatcher.UpdateStatus(ctx, taskID, status, mapField(data, "additional_data")); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			h.sendError(ports.RoleDrone, droneID, "illegal status transition to "+string(status))
			return
		}
		h.sendError(ports.RoleDrone, droneID, err.Error())
	}
}

func (h *ChannelHandler) handleDroneAlertImage(ctx context.Context, droneID string, envelope map[string]interface{}) {
	data := mapField(envelope, "data")
	image := &domain.AlertImage{
		Found:    boolField(data, "found"),
		Name:     stringField(data, "name"),
		DroneID:  droneID,
		Location: locationField(data, "location"),
	}

	err := h.imageService.CreateAlertImage(ctx, image,
		stringField(data, "actual_image"),
		stringField(data, "matched_frame"))
	if err != nil {
		h.sendError(ports.RoleDrone, droneID, err.Error())
		return
	}

	h.registry.Send(ports.RoleDrone, droneID, map[string]interface{}{
		"type":           "alert_image_created",
		"alert_image_id": image.ID,
	})
}

// handleApplicationResponse обробляє відповідь застосунку; alert_id живе
// на верхньому рівні конверта, набір дій у data
func (h *ChannelHandler) handleApplicationResponse(ctx context.Context, appID string, envelope map[string]interface{}) {
	alertID, err := uuid.Parse(stringField(envelope, "alert_id"))
	if err != nil {
		h.sendError(ports.RoleApplication, appID, "valid alert_id is required")
		return
	}

	actions := stringSliceField(mapField(envelope, "data"), "actions")
	alert, err := h.alertService.RecordResponse(ctx, alertID, actions)
	if err != nil {
		if errors.Is(err, domain.ErrResponseConflict) {
			h.sendError(ports.RoleApplication, appID, "alert already has a different response")
			return
		}
		h.sendError(ports.RoleApplication, appID, err.Error())
		return
	}

	// Команда дрону, що здійняв тривогу; офлайн-дрон її не отримає,
	// стан відповіді вже збережено
	h.registry.Send(ports.RoleDrone, alert.DroneID, map[string]interface{}{
		"type":      "drone_command",
		"alert_id":  alert.ID,
		"actions":   actions,
		"timestamp": time.Now().UTC(),
	})
}

func (h *ChannelHandler) handleApplicationTask(ctx context.Context, appID string, envelope map[string]interface{}) {
	data := mapField(envelope, "data")
	task := &domain.ProcessingTask{
		AppID:     appID,
		DroneID:   stringField(data, "drone_id"),
		TaskType:  stringField(data, "task_type"),
		InputData: mapField(data, "input_data"),
		Priority:  int(floatField(data, "priority")),
	}

	if err := h.dispatcher.Enqueue(ctx, task); err != nil {
		h.sendError(ports.RoleApplication, appID, err.Error())
		return
	}

	h.registry.Send(ports.RoleApplication, appID, map[string]interface{}{
		"type":    "task_created",
		"task_id": task.ID,
	})
}

func (h *ChannelHandler) sendError(role ports.Role, clientID, message string) {
	h.registry.Send(role, clientID, map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func floatField(m map[string]interface{}, key string) float64 {
	f, _ := m[key].(float64)
	return f
}

func boolField(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func mapField(m map[string]interface{}, key string) map[string]interface{} {
	v, _ := m[key].(map[string]interface{})
	return v
}

func stringSliceField(m map[string]interface{}, key string) []string {
	raw, _ := m[key].([]interface{})
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func locationField(m map[string]interface{}, key string) domain.Location {
	loc := mapField(m, key)
	l := domain.Location{
		Lat: floatField(loc, "lat"),
		Lng: floatField(loc, "lng"),
	}
	if alt, ok := loc["altitude"].(float64); ok {
		l.Altitude = &alt
	}
	return l
}
