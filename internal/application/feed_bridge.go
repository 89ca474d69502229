package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"drone-alert-system/internal/domain"
	"drone-alert-system/internal/ports"
	"drone-alert-system/pkg/metrics"
)

// FeedBridge споживає живий упорядкований потік змін сховища документів
// та перетворює кожну подію рівно на одну вихідну доставку. Це єдиний
// рушій push-доставлення: REST-записи та WebSocket-записи проходять
// однаковий шлях через потік змін.
type FeedBridge struct {
	sender     ports.ChannelSender
	dispatcher *TaskDispatcher
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// NewFeedBridge створює новий екземпляр FeedBridge
func NewFeedBridge(sender ports.ChannelSender, dispatcher *TaskDispatcher, logger zerolog.Logger, m *metrics.Metrics) *FeedBridge {
	return &FeedBridge{
		sender:     sender,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
	}
}

// Run читає події потоку до скасування контексту. Події обробляються
// строго послідовно, у порядку надходження, без пакетування, яке могло б
// переставити два оновлення однієї тривоги.
func (b *FeedBridge) Run(ctx context.Context, feed ports.ChangeFeed) error {
	events, err := feed.Start(ctx)
	if err != nil {
		return err
	}

	b.logger.Info().Msg("change feed bridge started")

	for event := range events {
		b.handleEvent(ctx, event)
	}

	b.logger.Info().Msg("change feed bridge stopped")
	return nil
}

// handleEvent перетворює одну подію потоку на вихідну доставку.
// Некоректна подія логується та відкидається: одна погана подія
// не має зупинити потік.
func (b *FeedBridge) handleEvent(ctx context.Context, event ports.ChangeEvent) {
	if event.Collection == "" || event.Operation == "" {
		b.logger.Error().
			Str("collection", event.Collection).
			Str("operation", event.Operation).
			Msg("dropping malformed change event")
		b.metrics.FeedEventDropped()
		return
	}

	b.metrics.FeedEvent(event.Collection)

	switch event.Collection {
	case ports.CollectionAlerts:
		b.handleAlertEvent(event)
	case ports.CollectionProcessingTasks:
		b.handleTaskEvent(event)
	case ports.CollectionProcessingResults:
		b.handleResultEvent(ctx, event)
	case ports.CollectionAlertImages:
		b.handleAlertImageEvent(event)
	default:
		b.logger.Warn().
			Str("collection", event.Collection).
			Msg("change event for unwatched collection")
	}
}

// handleAlertEvent розсилає new_alert або alert_update застосункам
func (b *FeedBridge) handleAlertEvent(event ports.ChangeEvent) {
	messageType := "alert_update"
	if event.Operation == ports.OperationInsert {
		messageType = "new_alert"
	}

	sent := b.sender.Broadcast(ports.RoleApplication, map[string]interface{}{
		"type":      messageType,
		"alert":     event.FullDocument,
		"alert_id":  event.DocumentKey,
		"timestamp": time.Now().UTC(),
	})

	b.logger.Info().
		Str("type", messageType).
		Str("alert_id", event.DocumentKey).
		Int("recipients", sent).
		Msg("alert event broadcast")
}

// handleTaskEvent виконує адресне доставлення нового завдання його дрону.
// Це не розсилка: завдання отримує лише цільовий дрон.
func (b *FeedBridge) handleTaskEvent(event ports.ChangeEvent) {
	if event.Operation != ports.OperationInsert {
		return
	}

	droneID, _ := event.FullDocument["drone_id"].(string)
	if droneID == "" {
		b.logger.Error().
			Str("task_id", event.DocumentKey).
			Msg("dropping task event without drone_id")
		b.metrics.FeedEventDropped()
		return
	}

	if !b.sender.IsConnected(ports.RoleDrone, droneID) {
		// Дрон офлайн: завдання дочекається підключення або pull-запиту
		b.logger.Info().
			Str("task_id", event.DocumentKey).
			Str("drone_id", droneID).
			Msg("target drone not connected, task stays pending")
		return
	}

	if b.sender.Send(ports.RoleDrone, droneID, map[string]interface{}{
		"type":      "processing_task",
		"task_id":   event.DocumentKey,
		"task_data": event.FullDocument,
		"timestamp": time.Now().UTC(),
	}) {
		b.metrics.TaskDispatched()
		b.logger.Info().
			Str("task_id", event.DocumentKey).
			Str("drone_id", droneID).
			Msg("processing task dispatched to drone")
	}
}

// handleResultEvent завершує завдання за результатом та сповіщає
// застосунок-замовник
func (b *FeedBridge) handleResultEvent(ctx context.Context, event ports.ChangeEvent) {
	if event.Operation != ports.OperationInsert {
		return
	}

	taskIDRaw, _ := event.FullDocument["task_id"].(string)
	taskID, err := uuid.Parse(taskIDRaw)
	if err != nil {
		b.logger.Error().
			Str("result_id", event.DocumentKey).
			Msg("dropping result event without valid task_id")
		b.metrics.FeedEventDropped()
		return
	}

	success, _ := event.FullDocument["success"].(bool)

	task, err := b.dispatcher.FinalizeFromResult(ctx, taskID, success)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Повторна доставка події: завдання вже термінальне
			b.logger.Warn().
				Str("task_id", taskID.String()).
				Msg("result event for already finalized task")
			return
		}
		b.logger.Error().Err(err).
			Str("task_id", taskID.String()).
			Msg("failed to finalize task from result")
		return
	}

	message := map[string]interface{}{
		"type":        "processing_result_received",
		"result_id":   event.DocumentKey,
		"task_id":     taskID,
		"result_data": event.FullDocument,
		"drone_id":    task.DroneID,
		"app_id":      task.AppID,
		"timestamp":   time.Now().UTC(),
	}
	if !b.sender.Send(ports.RoleApplication, task.AppID, message) {
		// Замовник офлайн: результат уже збережено, він дочитає через REST
		b.logger.Info().
			Str("task_id", taskID.String()).
			Str("app_id", task.AppID).
			Msg("originating application not connected for result")
	}
}

// handleAlertImageEvent розсилає alert_image_received застосункам
func (b *FeedBridge) handleAlertImageEvent(event ports.ChangeEvent) {
	if event.Operation != ports.OperationInsert {
		return
	}

	sent := b.sender.Broadcast(ports.RoleApplication, map[string]interface{}{
		"type":           "alert_image_received",
		"alert_image_id": event.DocumentKey,
		"alert_image":    event.FullDocument,
		"timestamp":      time.Now().UTC(),
	})

	b.logger.Info().
		Str("alert_image_id", event.DocumentKey).
		Int("recipients", sent).
		Msg("alert image broadcast")
}
