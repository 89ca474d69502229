package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"drone-alert-system/internal/domain"
)

// PostgresTaskRepository імплементує ProcessingTaskRepository для PostgreSQL
type PostgresTaskRepository struct {
	db *sql.DB
}

// NewPostgresTaskRepository створює новий екземпляр PostgresTaskRepository
func NewPostgresTaskRepository(db *sql.DB) *PostgresTaskRepository {
	return &PostgresTaskRepository{
		db: db,
	}
}

func (r *PostgresTaskRepository) Save(ctx context.Context, task *domain.ProcessingTask) error {
	query := `
        INSERT INTO processing_tasks (id, app_id, drone_id, task_type, input_data, priority, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `

	inputJSON, err := json.Marshal(task.InputData)
	if err != nil {
		return fmt.Errorf("failed to marshal input_data: %w", err)
	}

	_, err = r.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.AppID,
		task.DroneID,
		task.TaskType,
		inputJSON,
		task.Priority,
		task.Status,
		task.CreatedAt,
		task.UpdatedAt,
	)

	return err
}

func (r *PostgresTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ProcessingTask, error) {
	query := `
        SELECT id, app_id, drone_id, task_type, input_data, priority, status, created_at, updated_at
        FROM processing_tasks
        WHERE id = $1
    `

	return r.scanTask(r.db.QueryRowContext(ctx, query, id))
}

// FindPendingByDroneID повертає очікуючі завдання дрона у порядку
// відправлення: пріоритет спаданням, при рівності раніші першими
func (r *PostgresTaskRepository) FindPendingByDroneID(ctx context.Context, droneID string) ([]*domain.ProcessingTask, error) {
	query := `
        SELECT id, app_id, drone_id, task_type, input_data, priority, status, created_at, updated_at
        FROM processing_tasks
        WHERE drone_id = $1 AND status = $2
        ORDER BY priority DESC, created_at ASC
    `

	rows, err := r.db.QueryContext(ctx, query, droneID, domain.TaskStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.ProcessingTask
	for rows.Next() {
		task, err := r.scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// UpdateStatus застосовує перехід статусу умовно: рядок оновлюється лише
// якщо збережений статус досі дорівнює from. Два конкурентні записувачі
// не можуть обидва пройти цю умову, тож термінальний статус неможливо
// перезаписати пізнішим записом зі застарілим читанням.
func (r *PostgresTaskRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.TaskStatus) error {
	query := `
        UPDATE processing_tasks
        SET status = $3, updated_at = $4
        WHERE id = $1 AND status = $2
    `

	result, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Рядок відсутній або статус уже змінив конкурентний записувач
		var current domain.TaskStatus
		err := r.db.QueryRowContext(ctx, `SELECT status FROM processing_tasks WHERE id = $1`, id).Scan(&current)
		if err == sql.ErrNoRows {
			return domain.ErrTaskNotFound
		}
		if err != nil {
			return err
		}
		return domain.ErrInvalidTransition
	}

	return nil
}

func (r *PostgresTaskRepository) scanTask(row rowScanner) (*domain.ProcessingTask, error) {
	var task domain.ProcessingTask
	var inputJSON []byte

	err := row.Scan(
		&task.ID,
		&task.AppID,
		&task.DroneID,
		&task.TaskType,
		&inputJSON,
		&task.Priority,
		&task.Status,
		&task.CreatedAt,
		&task.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(inputJSON) > 0 {
		if err := json.Unmarshal(inputJSON, &task.InputData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal input_data: %w", err)
		}
	}

	return &task, nil
}
