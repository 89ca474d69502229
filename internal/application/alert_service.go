package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"drone-alert-system/internal/domain"
	"drone-alert-system/internal/ports"
)

// AlertService відповідає за бізнес-логіку життєвого циклу тривог
type AlertService struct {
	alertRepo ports.AlertRepository
	logger    zerolog.Logger
}

// NewAlertService створює новий екземпляр AlertService
func NewAlertService(alertRepo ports.AlertRepository, logger zerolog.Logger) *AlertService {
	return &AlertService{
		alertRepo: alertRepo,
		logger:    logger,
	}
}

// CreateAlert зберігає нову тривогу з початковими значеннями.
// Розсилка new_alert відбувається через потік змін, а не тут.
func (s *AlertService) CreateAlert(ctx context.Context, alert *domain.Alert) error {
	if !domain.ValidAlertType(alert.AlertType) {
		return errors.New("unknown alert type")
	}
	if alert.Score < 0.0 || alert.Score > 1.0 {
		return errors.New("score must be within [0.0, 1.0]")
	}
	if alert.DroneID == "" {
		return errors.New("drone_id is required")
	}

	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	alert.NewAlertDefaults(time.Now().UTC())

	if err := s.alertRepo.Save(ctx, alert); err != nil {
		return err
	}

	s.logger.Info().
		Str("alert_id", alert.ID.String()).
		Str("alert_type", string(alert.AlertType)).
		Str("drone_id", alert.DroneID).
		Float64("score", alert.Score).
		Msg("alert created")
	return nil
}

// RecordResponse фіксує відповідь застосунку на тривогу (pending -> responded).
// Конфліктна повторна відповідь повертає domain.ErrResponseConflict.
func (s *AlertService) RecordResponse(ctx context.Context, alertID uuid.UUID, actions []string) (*domain.Alert, error) {
	alert, err := s.alertRepo.FindByID(ctx, alertID)
	if err != nil {
		return nil, err
	}

	if err := alert.ApplyResponse(actions); err != nil {
		return nil, err
	}

	if err := s.alertRepo.Update(ctx, alert); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("alert_id", alertID.String()).
		Strs("actions", actions).
		Str("status", string(alert.Status)).
		Msg("alert response recorded")
	return alert, nil
}

// RecordImage фіксує отримання зображення для тривоги
func (s *AlertService) RecordImage(ctx context.Context, alertID uuid.UUID, imageURL string) (*domain.Alert, error) {
	if imageURL == "" {
		return nil, errors.New("image_url is required")
	}

	alert, err := s.alertRepo.FindByID(ctx, alertID)
	if err != nil {
		return nil, err
	}

	alert.ApplyImage(imageURL)

	if err := s.alertRepo.Update(ctx, alert); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("alert_id", alertID.String()).
		Str("status", string(alert.Status)).
		Msg("alert image recorded")
	return alert, nil
}

// GetAlert отримує тривогу за ID
func (s *AlertService) GetAlert(ctx context.Context, alertID uuid.UUID) (*domain.Alert, error) {
	return s.alertRepo.FindByID(ctx, alertID)
}

// RecentAlerts отримує останні тривоги, найновіші першими
func (s *AlertService) RecentAlerts(ctx context.Context, limit int) ([]*domain.Alert, error) {
	return s.alertRepo.FindRecent(ctx, limit)
}
