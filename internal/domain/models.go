package domain

import (
	"github.com/google/uuid"
	"time"
)

// Enums для статусів
type AlertType string
type AlertStatus string
type TaskStatus string

const (
	// Типи тривог
	AlertTypeIntrusion      AlertType = "intrusion"
	AlertTypeFire           AlertType = "fire"
	AlertTypeAccident       AlertType = "accident"
	AlertTypeSecurityBreach AlertType = "security_breach"
	AlertTypeEnvironmental  AlertType = "environmental"
	AlertTypeOther          AlertType = "other"

	// Статуси тривог
	AlertStatusPending   AlertStatus = "pending"
	AlertStatusResponded AlertStatus = "responded"
	AlertStatusCompleted AlertStatus = "completed"

	// Статуси завдань обробки
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

const (
	// Межі пріоритету завдань (5 найтерміновіше)
	TaskPriorityMin = 1
	TaskPriorityMax = 5
)

// Location представляє GPS-координати тривоги
type Location struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Altitude *float64 `json:"altitude,omitempty"`
}

// Alert представляє тривогу, надіслану дроном
type Alert struct {
	ID            uuid.UUID   `json:"id"`
	AlertType     AlertType   `json:"alert_type"`
	Score         float64     `json:"score"`
	Location      Location    `json:"location"`
	DroneID       string      `json:"drone_id"`
	CreatedAt     time.Time   `json:"created_at"`
	Response      int         `json:"response"`
	ImageReceived int         `json:"image_received"`
	Status        AlertStatus `json:"status"`
	Actions       []string    `json:"actions,omitempty"`
	Description   string      `json:"description,omitempty"`
	ImageURL      string      `json:"image_url,omitempty"`
}

// ProcessingTask представляє завдання обробки, призначене конкретному дрону
type ProcessingTask struct {
	ID        uuid.UUID              `json:"id"`
	AppID     string                 `json:"app_id"`
	DroneID   string                 `json:"drone_id"`
	TaskType  string                 `json:"task_type"`
	InputData map[string]interface{} `json:"input_data"`
	Priority  int                    `json:"priority"`
	Status    TaskStatus             `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// ProcessingResult представляє результат виконання завдання (1:1 із завданням)
type ProcessingResult struct {
	ID             uuid.UUID              `json:"id"`
	TaskID         uuid.UUID              `json:"task_id"`
	DroneID        string                 `json:"drone_id"`
	ResultData     map[string]interface{} `json:"result_data"`
	ProcessingTime float64                `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// AlertImage представляє зображення тривоги, незалежне від самої тривоги
type AlertImage struct {
	ID              uuid.UUID `json:"id"`
	Found           bool      `json:"found"`
	Name            string    `json:"name"`
	DroneID         string    `json:"drone_id"`
	ActualImageKey  string    `json:"actual_image_key"`
	MatchedFrameKey string    `json:"matched_frame_key"`
	Location        Location  `json:"location"`
	CreatedAt       time.Time `json:"created_at"`
}

// ValidAlertType перевіряє, чи належить тип тривоги до дозволеного переліку
func ValidAlertType(t AlertType) bool {
	switch t {
	case AlertTypeIntrusion, AlertTypeFire, AlertTypeAccident,
		AlertTypeSecurityBreach, AlertTypeEnvironmental, AlertTypeOther:
		return true
	}
	return false
}

// ValidTaskPriority перевіряє, чи знаходиться пріоритет у дозволених межах
func ValidTaskPriority(p int) bool {
	return p >= TaskPriorityMin && p <= TaskPriorityMax
}
