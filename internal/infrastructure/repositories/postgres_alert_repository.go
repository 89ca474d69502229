package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"drone-alert-system/internal/domain"
)

// PostgresAlertRepository імплементує AlertRepository для PostgreSQL
type PostgresAlertRepository struct {
	db *sql.DB
}

// NewPostgresAlertRepository створює новий екземпляр PostgresAlertRepository
func NewPostgresAlertRepository(db *sql.DB) *PostgresAlertRepository {
	return &PostgresAlertRepository{
		db: db,
	}
}

func (r *PostgresAlertRepository) Save(ctx context.Context, alert *domain.Alert) error {
	query := `
        INSERT INTO alerts (id, alert_type, score, location, drone_id, created_at, response, image_received, status, actions, description, image_url)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `

	locationJSON, err := json.Marshal(alert.Location)
	if err != nil {
		return fmt.Errorf("failed to marshal location: %w", err)
	}
	actionsJSON, err := json.Marshal(alert.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	_, err = r.db.ExecContext(
		ctx,
		query,
		alert.ID,
		alert.AlertType,
		alert.Score,
		locationJSON,
		alert.DroneID,
		alert.CreatedAt,
		alert.Response,
		alert.ImageReceived,
		alert.Status,
		actionsJSON,
		alert.Description,
		alert.ImageURL,
	)

	return err
}

func (r *PostgresAlertRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	query := `
        SELECT id, alert_type, score, location, drone_id, created_at, response, image_received, status, actions, description, image_url
        FROM alerts
        WHERE id = $1
    `

	return r.scanAlert(r.db.QueryRowContext(ctx, query, id))
}

// FindRecent повертає останні тривоги, найновіші першими
func (r *PostgresAlertRepository) FindRecent(ctx context.Context, limit int) ([]*domain.Alert, error) {
	query := `
        SELECT id, alert_type, score, location, drone_id, created_at, response, image_received, status, actions, description, image_url
        FROM alerts
        ORDER BY created_at DESC
        LIMIT $1
    `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		alert, err := r.scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

func (r *PostgresAlertRepository) Update(ctx context.Context, alert *domain.Alert) error {
	query := `
        UPDATE alerts
        SET score = $2, location = $3, response = $4, image_received = $5, status = $6, actions = $7, description = $8, image_url = $9
        WHERE id = $1
    `

	locationJSON, err := json.Marshal(alert.Location)
	if err != nil {
		return fmt.Errorf("failed to marshal location: %w", err)
	}
	actionsJSON, err := json.Marshal(alert.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	result, err := r.db.ExecContext(
		ctx,
		query,
		alert.ID,
		alert.Score,
		locationJSON,
		alert.Response,
		alert.ImageReceived,
		alert.Status,
		actionsJSON,
		alert.Description,
		alert.ImageURL,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrAlertNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PostgresAlertRepository) scanAlert(row rowScanner) (*domain.Alert, error) {
	var alert domain.Alert
	var locationJSON, actionsJSON []byte

	err := row.Scan(
		&alert.ID,
		&alert.AlertType,
		&alert.Score,
		&locationJSON,
		&alert.DroneID,
		&alert.CreatedAt,
		&alert.Response,
		&alert.ImageReceived,
		&alert.Status,
		&actionsJSON,
		&alert.Description,
		&alert.ImageURL,
	)

	if err == sql.ErrNoRows {
		return nil, domain.ErrAlertNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(locationJSON, &alert.Location); err != nil {
		return nil, fmt.Errorf("failed to unmarshal location: %w", err)
	}
	if len(actionsJSON) > 0 {
		if err := json.Unmarshal(actionsJSON, &alert.Actions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
		}
	}

	return &alert, nil
}
