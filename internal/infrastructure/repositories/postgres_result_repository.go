package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"drone-alert-system/internal/domain"
)

// PostgresResultRepository імплементує ProcessingResultRepository для PostgreSQL
type PostgresResultRepository struct {
	db *sql.DB
}

// NewPostgresResultRepository створює новий екземпляр PostgresResultRepository
func NewPostgresResultRepository(db *sql.DB) *PostgresResultRepository {
	return &PostgresResultRepository{
		db: db,
	}
}

func (r *PostgresResultRepository) Save(ctx context.Context, result *domain.ProcessingResult) error {
	query := `
        INSERT INTO processing_results (id, task_id, drone_id, result_data, processing_time, success, error_message, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `

	resultJSON, err := json.Marshal(result.ResultData)
	if err != nil {
		return fmt.Errorf("failed to marshal result_data: %w", err)
	}

	_, err = r.db.ExecContext(
		ctx,
		query,
		result.ID,
		result.TaskID,
		result.DroneID,
		resultJSON,
		result.ProcessingTime,
		result.Success,
		result.ErrorMessage,
		result.CreatedAt,
	)

	return err
}

func (r *PostgresResultRepository) FindByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.ProcessingResult, error) {
	query := `
        SELECT id, task_id, drone_id, result_data, processing_time, success, error_message, created_at
        FROM processing_results
        WHERE task_id = $1
    `

	var result domain.ProcessingResult
	var resultJSON []byte

	err := r.db.QueryRowContext(ctx, query, taskID).Scan(
		&result.ID,
		&result.TaskID,
		&result.DroneID,
		&resultJSON,
		&result.ProcessingTime,
		&result.Success,
		&result.ErrorMessage,
		&result.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &result.ResultData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result_data: %w", err)
		}
	}

	return &result, nil
}
