package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"drone-alert-system/internal/domain"
	"drone-alert-system/internal/ports"
)

// AlertImageService відповідає за зображення тривог: бінарні дані живуть
// в об'єктному сховищі, документ у базі несе лише метадані та ключі
type AlertImageService struct {
	imageRepo ports.AlertImageRepository
	blobs     ports.ImageStorage
	logger    zerolog.Logger
}

// NewAlertImageService створює новий екземпляр AlertImageService
func NewAlertImageService(imageRepo ports.AlertImageRepository, blobs ports.ImageStorage, logger zerolog.Logger) *AlertImageService {
	return &AlertImageService{
		imageRepo: imageRepo,
		blobs:     blobs,
		logger:    logger,
	}
}

// CreateAlertImage зберігає бінарні дані в об'єктне сховище,
// після чого фіксує документ зображення у базі
func (s *AlertImageService) CreateAlertImage(ctx context.Context, image *domain.AlertImage, actualImage, matchedFrame string) error {
	if image.ID == uuid.Nil {
		image.ID = uuid.New()
	}
	if image.CreatedAt.IsZero() {
		image.CreatedAt = time.Now().UTC()
	}

	if actualImage != "" {
		key, err := s.blobs.SaveImageBlob(ctx, image.ID, "actual", actualImage)
		if err != nil {
			return fmt.Errorf("failed to store actual image: %w", err)
		}
		image.ActualImageKey = key
	}

	if matchedFrame != "" {
		key, err := s.blobs.SaveImageBlob(ctx, image.ID, "matched", matchedFrame)
		if err != nil {
			return fmt.Errorf("failed to store matched frame: %w", err)
		}
		image.MatchedFrameKey = key
	}

	if err := s.imageRepo.Save(ctx, image); err != nil {
		return err
	}

	s.logger.Info().
		Str("alert_image_id", image.ID.String()).
		Str("drone_id", image.DroneID).
		Bool("found", image.Found).
		Msg("alert image created")
	return nil
}

// GetAlertImage отримує документ зображення разом з бінарними даними
func (s *AlertImageService) GetAlertImage(ctx context.Context, id uuid.UUID) (*domain.AlertImage, string, string, error) {
	image, err := s.imageRepo.FindByID(ctx, id)
	if err != nil {
		return nil, "", "", err
	}

	var actual, matched string
	if image.ActualImageKey != "" {
		actual, err = s.blobs.GetImageBlob(ctx, image.ActualImageKey)
		if err != nil {
			return nil, "", "", fmt.Errorf("failed to load actual image: %w", err)
		}
	}
	if image.MatchedFrameKey != "" {
		matched, err = s.blobs.GetImageBlob(ctx, image.MatchedFrameKey)
		if err != nil {
			return nil, "", "", fmt.Errorf("failed to load matched frame: %w", err)
		}
	}

	return image, actual, matched, nil
}

// DeleteAlertImage видаляє документ зображення та його бінарні дані
func (s *AlertImageService) DeleteAlertImage(ctx context.Context, id uuid.UUID) error {
	if err := s.imageRepo.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.blobs.DeleteImageBlobs(ctx, id); err != nil {
		// Документ уже видалено; осиротілі об'єкти лише логуються
		s.logger.Error().Err(err).
			Str("alert_image_id", id.String()).
			Msg("failed to delete image blobs")
	}

	s.logger.Info().
		Str("alert_image_id", id.String()).
		Msg("alert image deleted")
	return nil
}
