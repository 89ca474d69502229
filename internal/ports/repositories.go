package ports

import (
	"context"
	"github.com/google/uuid"

	"drone-alert-system/internal/domain"
)

// AlertRepository визначає методи для роботи з тривогами
type AlertRepository interface {
	Save(ctx context.Context, alert *domain.Alert) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Alert, error)
	FindRecent(ctx context.Context, limit int) ([]*domain.Alert, error)
	Update(ctx context.Context, alert *domain.Alert) error
}

// ProcessingTaskRepository визначає методи для роботи із завданнями обробки.
// UpdateStatus застосовує перехід атомарно: статус змінюється лише якщо
// збережений статус досі дорівнює from, інакше повертається
// domain.ErrInvalidTransition. Конкурентний переможець фіксує свій
// перехід першим, той хто програв отримує відмову без мутації.
type ProcessingTaskRepository interface {
	Save(ctx context.Context, task *domain.ProcessingTask) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ProcessingTask, error)
	FindPendingByDroneID(ctx context.Context, droneID string) ([]*domain.ProcessingTask, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.TaskStatus) error
}

// ProcessingResultRepository визначає методи для роботи з результатами обробки
type ProcessingResultRepository interface {
	Save(ctx context.Context, result *domain.ProcessingResult) error
	FindByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.ProcessingResult, error)
}

// AlertImageRepository визначає методи для роботи із зображеннями тривог
type AlertImageRepository interface {
	Save(ctx context.Context, image *domain.AlertImage) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.AlertImage, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
