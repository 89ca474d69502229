package application

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drone-alert-system/internal/domain"
	"drone-alert-system/internal/ports"
)

type fakeFeed struct {
	events chan ports.ChangeEvent
	closed bool
}

func (f *fakeFeed) Start(context.Context) (<-chan ports.ChangeEvent, error) {
	return f.events, nil
}

func (f *fakeFeed) Close() error {
	f.closed = true
	return nil
}

func newBridge(sender ports.ChannelSender) (*FeedBridge, *TaskDispatcher, *memTaskRepo) {
	dispatcher, taskRepo, _ := newDispatcher(sender)
	return NewFeedBridge(sender, dispatcher, zerolog.Nop(), nil), dispatcher, taskRepo
}

func TestBridgeBroadcastsNewAlert(t *testing.T) {
	sender := newFakeSender("application:app-1", "application:app-2", "drone:drone-1")
	bridge, _, _ := newBridge(sender)

	bridge.handleEvent(context.Background(), ports.ChangeEvent{
		Operation:    ports.OperationInsert,
		Collection:   ports.CollectionAlerts,
		DocumentKey:  "a-1",
		FullDocument: map[string]interface{}{"id": "a-1", "alert_type": "fire"},
	})

	msgs := sender.broadcastsOf("new_alert")
	require.Len(t, msgs, 1)
	assert.Equal(t, ports.RoleApplication, msgs[0].Role)
	assert.Equal(t, "a-1", msgs[0].Message["alert_id"])
}

func TestBridgeBroadcastsAlertUpdate(t *testing.T) {
	sender := newFakeSender("application:app-1")
	bridge, _, _ := newBridge(sender)

	bridge.handleEvent(context.Background(), ports.ChangeEvent{
		Operation:    ports.OperationUpdate,
		Collection:   ports.CollectionAlerts,
		DocumentKey:  "a-1",
		FullDocument: map[string]interface{}{"id": "a-1", "status": "responded"},
	})

	require.Len(t, sender.broadcastsOf("alert_update"), 1)
	assert.Empty(t, sender.broadcastsOf("new_alert"))
}

func TestBridgeDispatchesTaskToTargetDrone(t *testing.T) {
	sender := newFakeSender("drone:drone-1", "application:app-1")
	bridge, _, _ := newBridge(sender)

	bridge.handleEvent(context.Background(), ports.ChangeEvent{
		Operation:    ports.OperationInsert,
		Collection:   ports.CollectionProcessingTasks,
		DocumentKey:  "t-1",
		FullDocument: map[string]interface{}{"id": "t-1", "drone_id": "drone-1"},
	})

	msgs := sender.sentTo(ports.RoleDrone, "drone-1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "processing_task", msgs[0].Message["type"])
	// завдання не розсилається, лише адресна доставка
	assert.Empty(t, sender.broadcast)
}

func TestBridgeSkipsTaskForOfflineDrone(t *testing.T) {
	sender := newFakeSender("application:app-1")
	bridge, _, _ := newBridge(sender)

	bridge.handleEvent(context.Background(), ports.ChangeEvent{
		Operation:    ports.OperationInsert,
		Collection:   ports.CollectionProcessingTasks,
		DocumentKey:  "t-1",
		FullDocument: map[string]interface{}{"id": "t-1", "drone_id": "drone-offline"},
	})

	assert.Empty(t, sender.sent)
}

func TestBridgeFinalizesTaskAndNotifiesOriginator(t *testing.T) {
	sender := newFakeSender("drone:drone-1", "application:app-1")
	bridge, dispatcher, taskRepo := newBridge(sender)
	ctx := context.Background()

	task := makeTask("drone-1", "app-1", 3)
	require.NoError(t, dispatcher.Enqueue(ctx, task))

	bridge.handleEvent(ctx, ports.ChangeEvent{
		Operation:   ports.OperationInsert,
		Collection:  ports.CollectionProcessingResults,
		DocumentKey: "r-1",
		FullDocument: map[string]interface{}{
			"id":      "r-1",
			"task_id": task.ID.String(),
			"success": true,
		},
	})

	stored, err := taskRepo.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, stored.Status)

	msgs := sender.sentTo(ports.RoleApplication, "app-1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "processing_result_received", msgs[0].Message["type"])
}

func TestBridgeDropsResultWithoutTaskID(t *testing.T) {
	sender := newFakeSender("application:app-1")
	bridge, _, _ := newBridge(sender)

	bridge.handleEvent(context.Background(), ports.ChangeEvent{
		Operation:    ports.OperationInsert,
		Collection:   ports.CollectionProcessingResults,
		DocumentKey:  "r-1",
		FullDocument: map[string]interface{}{"id": "r-1"},
	})

	assert.Empty(t, sender.sent)
}

func TestBridgeDuplicateResultEventIsNoop(t *testing.T) {
	sender := newFakeSender("application:app-1")
	bridge, dispatcher, _ := newBridge(sender)
	ctx := context.Background()

	task := makeTask("drone-1", "app-1", 3)
	require.NoError(t, dispatcher.Enqueue(ctx, task))

	event := ports.ChangeEvent{
		Operation:   ports.OperationInsert,
		Collection:  ports.CollectionProcessingResults,
		DocumentKey: "r-1",
		FullDocument: map[string]interface{}{
			"task_id": task.ID.String(),
			"success": false,
		},
	}
	bridge.handleEvent(ctx, event)
	bridge.handleEvent(ctx, event)

	// повторна подія не породжує друге сповіщення
	assert.Len(t, sender.sentTo(ports.RoleApplication, "app-1"), 1)
}

func TestBridgeBroadcastsAlertImage(t *testing.T) {
	sender := newFakeSender("application:app-1")
	bridge, _, _ := newBridge(sender)

	bridge.handleEvent(context.Background(), ports.ChangeEvent{
		Operation:    ports.OperationInsert,
		Collection:   ports.CollectionAlertImages,
		DocumentKey:  "img-1",
		FullDocument: map[string]interface{}{"id": "img-1", "found": true},
	})

	require.Len(t, sender.broadcastsOf("alert_image_received"), 1)
}

func TestBridgeRunProcessesInOrderUntilFeedCloses(t *testing.T) {
	sender := newFakeSender("application:app-1")
	bridge, _, _ := newBridge(sender)

	feed := &fakeFeed{events: make(chan ports.ChangeEvent, 3)}
	feed.events <- ports.ChangeEvent{
		Operation:    ports.OperationInsert,
		Collection:   ports.CollectionAlerts,
		DocumentKey:  "a-1",
		FullDocument: map[string]interface{}{"id": "a-1"},
	}
	feed.events <- ports.ChangeEvent{
		Operation:    ports.OperationUpdate,
		Collection:   ports.CollectionAlerts,
		DocumentKey:  "a-1",
		FullDocument: map[string]interface{}{"id": "a-1", "status": "responded"},
	}
	close(feed.events)

	done := make(chan error, 1)
	go func() { done <- bridge.Run(context.Background(), feed) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop after feed closed")
	}

	// порядок подій збережено: спершу new_alert, потім alert_update
	require.Len(t, sender.broadcast, 2)
	assert.Equal(t, "new_alert", sender.broadcast[0].Message["type"])
	assert.Equal(t, "alert_update", sender.broadcast[1].Message["type"])
}
