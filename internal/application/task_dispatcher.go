package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"drone-alert-system/internal/domain"
	"drone-alert-system/internal/ports"
)

// TaskDispatcher володіє порядком очікуючих завдань кожного дрона та
// кореляцією між завданням, його результатом і застосунком-замовником.
// Доставлення processing_task дрону виконує міст потоку змін,
// спостерігаючи вставку завдання; диспетчер лише персистить і впорядковує.
type TaskDispatcher struct {
	taskRepo   ports.ProcessingTaskRepository
	resultRepo ports.ProcessingResultRepository
	sender     ports.ChannelSender
	logger     zerolog.Logger
}

// NewTaskDispatcher створює новий екземпляр TaskDispatcher
func NewTaskDispatcher(
	taskRepo ports.ProcessingTaskRepository,
	resultRepo ports.ProcessingResultRepository,
	sender ports.ChannelSender,
	logger zerolog.Logger,
) *TaskDispatcher {
	return &TaskDispatcher{
		taskRepo:   taskRepo,
		resultRepo: resultRepo,
		sender:     sender,
		logger:     logger,
	}
}

// Enqueue зберігає нове завдання зі статусом pending. Якщо цільовий дрон
// підключений, завдання буде доставлено негайно: вставку спостерігає
// міст потоку змін; інакше дрон забере його на підключенні або через pull.
func (d *TaskDispatcher) Enqueue(ctx context.Context, task *domain.ProcessingTask) error {
	if !domain.ValidTaskPriority(task.Priority) {
		return fmt.Errorf("priority must be within [%d, %d]", domain.TaskPriorityMin, domain.TaskPriorityMax)
	}
	if task.DroneID == "" {
		return errors.New("drone_id is required")
	}
	if task.AppID == "" {
		return errors.New("app_id is required")
	}

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	now := time.Now().UTC()
	task.Status = domain.TaskStatusPending
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	if err := d.taskRepo.Save(ctx, task); err != nil {
		return err
	}

	d.logger.Info().
		Str("task_id", task.ID.String()).
		Str("drone_id", task.DroneID).
		Str("app_id", task.AppID).
		Int("priority", task.Priority).
		Msg("processing task enqueued")
	return nil
}

// PendingForDrone повертає очікуючі завдання дрона у порядку відправлення:
// пріоритет спаданням, при рівності раніші першими
func (d *TaskDispatcher) PendingForDrone(ctx context.Context, droneID string) ([]*domain.ProcessingTask, error) {
	tasks, err := d.taskRepo.FindPendingByDroneID(ctx, droneID)
	if err != nil {
		return nil, err
	}

	domain.SortTasksForDispatch(tasks)
	return tasks, nil
}

// ReportResult зберігає результат виконання завдання. Перехід статусу
// завдання та сповіщення застосунку виконує міст потоку змін,
// спостерігаючи вставку результату.
func (d *TaskDispatcher) ReportResult(ctx context.Context, result *domain.ProcessingResult) error {
	task, err := d.taskRepo.FindByID(ctx, result.TaskID)
	if err != nil {
		return err
	}
	if task.Status.Terminal() {
		return domain.ErrInvalidTransition
	}
	if !result.Success && result.ErrorMessage == "" {
		return errors.New("error_message is required for a failed result")
	}
	if result.ProcessingTime < 0 {
		return errors.New("processing_time must be non-negative")
	}

	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	result.DroneID = task.DroneID

	if err := d.resultRepo.Save(ctx, result); err != nil {
		return err
	}

	d.logger.Info().
		Str("task_id", result.TaskID.String()).
		Str("result_id", result.ID.String()).
		Bool("success", result.Success).
		Msg("processing result recorded")
	return nil
}

// UpdateStatus перевіряє та застосовує перехід статусу завдання.
// Дозволені лише прямі переходи; спроба виходу з термінального статусу
// відхиляється без мутації. Оновлення доставляється застосунку-власнику.
func (d *TaskDispatcher) UpdateStatus(ctx context.Context, taskID uuid.UUID, status domain.TaskStatus, extra map[string]interface{}) (*domain.ProcessingTask, error) {
	task, err := d.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !task.Status.CanTransitionTo(status) {
		d.logger.Warn().
			Str("task_id", taskID.String()).
			Str("from", string(task.Status)).
			Str("to", string(status)).
			Msg("rejected illegal task status transition")
		return nil, domain.ErrInvalidTransition
	}

	// Умовне оновлення: якщо конкурентний записувач встиг змінити статус
	// між читанням та записом, перехід відхиляється репозиторієм
	if err := d.taskRepo.UpdateStatus(ctx, taskID, task.Status, status); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			d.logger.Warn().
				Str("task_id", taskID.String()).
				Str("to", string(status)).
				Msg("task status changed concurrently, transition rejected")
		}
		return nil, err
	}
	task.Status = status
	task.UpdatedAt = time.Now().UTC()

	message := map[string]interface{}{
		"type":      "task_status_update",
		"task_id":   task.ID,
		"status":    string(status),
		"drone_id":  task.DroneID,
		"timestamp": time.Now().UTC(),
	}
	if len(extra) > 0 {
		message["additional_data"] = extra
	}
	if !d.sender.Send(ports.RoleApplication, task.AppID, message) {
		// Застосунок офлайн: стан уже збережено, він дочитає через REST
		d.logger.Debug().
			Str("task_id", taskID.String()).
			Str("app_id", task.AppID).
			Msg("owning application not connected for status update")
	}

	d.logger.Info().
		Str("task_id", taskID.String()).
		Str("status", string(status)).
		Msg("task status updated")
	return task, nil
}

// FinalizeFromResult переводить завдання у термінальний статус за
// прапорцем успішності результату. Викликається мостом потоку змін.
// Результат для ще не підтвердженого завдання неявно зараховує processing.
// Програш конкурентному нетермінальному переходу (дрон встиг поставити
// processing) повторюється зі свіжим читанням; уже термінальне завдання
// дає ErrInvalidTransition.
func (d *TaskDispatcher) FinalizeFromResult(ctx context.Context, taskID uuid.UUID, success bool) (*domain.ProcessingTask, error) {
	target := domain.TaskStatusCompleted
	if !success {
		target = domain.TaskStatusFailed
	}

	for attempt := 0; attempt < 3; attempt++ {
		task, err := d.taskRepo.FindByID(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if task.Status.Terminal() {
			return nil, domain.ErrInvalidTransition
		}

		err = d.taskRepo.UpdateStatus(ctx, taskID, task.Status, target)
		if errors.Is(err, domain.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return nil, err
		}
		task.Status = target
		task.UpdatedAt = time.Now().UTC()

		d.logger.Info().
			Str("task_id", taskID.String()).
			Str("status", string(target)).
			Msg("task finalized from result")
		return task, nil
	}

	return nil, domain.ErrInvalidTransition
}

// GetTask отримує завдання за ID
func (d *TaskDispatcher) GetTask(ctx context.Context, taskID uuid.UUID) (*domain.ProcessingTask, error) {
	return d.taskRepo.FindByID(ctx, taskID)
}

// GetResultForTask отримує результат за ID завдання
func (d *TaskDispatcher) GetResultForTask(ctx context.Context, taskID uuid.UUID) (*domain.ProcessingResult, error) {
	return d.resultRepo.FindByTaskID(ctx, taskID)
}
