package ports

import (
	"context"
	"time"
)

// Назви колекцій (таблиць), за якими стежить потік змін
const (
	CollectionAlerts            = "alerts"
	CollectionProcessingTasks   = "processing_tasks"
	CollectionProcessingResults = "processing_results"
	CollectionAlertImages       = "alert_images"
)

// Типи операцій потоку змін
const (
	OperationInsert = "insert"
	OperationUpdate = "update"
)

// ChangeEvent представляє одну зафіксовану зміну у сховищі документів
type ChangeEvent struct {
	Operation    string                 `json:"operation"`
	Collection   string                 `json:"collection"`
	DocumentKey  string                 `json:"document_key"`
	FullDocument map[string]interface{} `json:"full_document,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// ChangeFeed визначає живий упорядкований потік змін сховища документів.
// Events доставляє кожен зафіксований запис щонайменше один раз, у порядку
// фіксації; після обриву з'єднання потік сам перепідключається.
type ChangeFeed interface {
	// Start відкриває потік; канал закривається після скасування контексту
	Start(ctx context.Context) (<-chan ChangeEvent, error)

	// Close закриває сам потік, а не лише читання з нього
	Close() error
}
