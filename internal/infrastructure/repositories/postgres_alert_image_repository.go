package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"drone-alert-system/internal/domain"
)

// PostgresAlertImageRepository імплементує AlertImageRepository для PostgreSQL
type PostgresAlertImageRepository struct {
	db *sql.DB
}

// NewPostgresAlertImageRepository створює новий екземпляр PostgresAlertImageRepository
func NewPostgresAlertImageRepository(db *sql.DB) *PostgresAlertImageRepository {
	return &PostgresAlertImageRepository{
		db: db,
	}
}

func (r *PostgresAlertImageRepository) Save(ctx context.Context, image *domain.AlertImage) error {
	query := `
        INSERT INTO alert_images (id, found, name, drone_id, actual_image_key, matched_frame_key, location, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `

	locationJSON, err := json.Marshal(image.Location)
	if err != nil {
		return fmt.Errorf("failed to marshal location: %w", err)
	}

	_, err = r.db.ExecContext(
		ctx,
		query,
		image.ID,
		image.Found,
		image.Name,
		image.DroneID,
		image.ActualImageKey,
		image.MatchedFrameKey,
		locationJSON,
		image.CreatedAt,
	)

	return err
}

func (r *PostgresAlertImageRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.AlertImage, error) {
	query := `
        SELECT id, found, name, drone_id, actual_image_key, matched_frame_key, location, created_at
        FROM alert_images
        WHERE id = $1
    `

	var image domain.AlertImage
	var locationJSON []byte

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&image.ID,
		&image.Found,
		&image.Name,
		&image.DroneID,
		&image.ActualImageKey,
		&image.MatchedFrameKey,
		&locationJSON,
		&image.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, domain.ErrAlertImageNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(locationJSON, &image.Location); err != nil {
		return nil, fmt.Errorf("failed to unmarshal location: %w", err)
	}

	return &image, nil
}

func (r *PostgresAlertImageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM alert_images WHERE id = $1", id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrAlertImageNotFound
	}

	return nil
}
