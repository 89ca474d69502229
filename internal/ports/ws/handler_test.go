package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drone-alert-system/internal/application"
	"drone-alert-system/internal/domain"
)

type memAlertRepo struct {
	mu     sync.Mutex
	alerts map[uuid.UUID]*domain.Alert
}

func (r *memAlertRepo) Save(_ context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *alert
	r.alerts[alert.ID] = &cp
	return nil
}

func (r *memAlertRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, domain.ErrAlertNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAlertRepo) FindRecent(_ context.Context, limit int) ([]*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Alert
	for _, a := range r.alerts {
		if len(out) == limit {
			break
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memAlertRepo) Update(_ context.Context, alert *domain.Alert) error {
	return r.Save(context.Background(), alert)
}

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.ProcessingTask
}

func (r *memTaskRepo) Save(_ context.Context, task *domain.ProcessingTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *memTaskRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.ProcessingTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memTaskRepo) FindPendingByDroneID(_ context.Context, droneID string) ([]*domain.ProcessingTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ProcessingTask
	for _, t := range r.tasks {
		if t.DroneID == droneID && t.Status == domain.TaskStatusPending {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memTaskRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to domain.TaskStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if t.Status != from {
		return domain.ErrInvalidTransition
	}
	t.Status = to
	return nil
}

type memResultRepo struct {
	mu      sync.Mutex
	results map[uuid.UUID]*domain.ProcessingResult
}

func (r *memResultRepo) Save(_ context.Context, result *domain.ProcessingResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *result
	r.results[result.TaskID] = &cp
	return nil
}

func (r *memResultRepo) FindByTaskID(_ context.Context, taskID uuid.UUID) (*domain.ProcessingResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	cp := *res
	return &cp, nil
}

type memImageRepo struct {
	mu     sync.Mutex
	images map[uuid.UUID]*domain.AlertImage
}

func (r *memImageRepo) Save(_ context.Context, image *domain.AlertImage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *image
	r.images[image.ID] = &cp
	return nil
}

func (r *memImageRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.AlertImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok {
		return nil, domain.ErrAlertImageNotFound
	}
	cp := *img
	return &cp, nil
}

func (r *memImageRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.images, id)
	return nil
}

type memBlobStore struct {
	mu    sync.Mutex
	blobs map[string]string
}

func (s *memBlobStore) SaveImageBlob(_ context.Context, imageID uuid.UUID, kind, blob string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := imageID.String() + "/" + kind
	s.blobs[key] = blob
	return key, nil
}

func (s *memBlobStore) GetImageBlob(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blobs[key], nil
}

func (s *memBlobStore) DeleteImageBlobs(_ context.Context, imageID uuid.UUID) error {
	return nil
}

type testServer struct {
	srv       *httptest.Server
	registry  *Registry
	alertRepo *memAlertRepo
	taskRepo  *memTaskRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	alertRepo := &memAlertRepo{alerts: make(map[uuid.UUID]*domain.Alert)}
	taskRepo := &memTaskRepo{tasks: make(map[uuid.UUID]*domain.ProcessingTask)}
	resultRepo := &memResultRepo{results: make(map[uuid.UUID]*domain.ProcessingResult)}
	imageRepo := &memImageRepo{images: make(map[uuid.UUID]*domain.AlertImage)}
	blobs := &memBlobStore{blobs: make(map[string]string)}

	logger := zerolog.Nop()
	registry := NewRegistry(alertRepo, 0, logger, nil)
	alertService := application.NewAlertService(alertRepo, logger)
	imageService := application.NewAlertImageService(imageRepo, blobs, logger)
	dispatcher := application.NewTaskDispatcher(taskRepo, resultRepo, registry, logger)

	handler := NewChannelHandler(alertService, imageService, dispatcher, registry, logger)
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, registry: registry, alertRepo: alertRepo, taskRepo: taskRepo}
}

func (ts *testServer) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestDroneHandshake(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "/ws/drones/drone-1")

	msg := readMessage(t, conn)
	assert.Equal(t, "connection_established", msg["type"])
	assert.Equal(t, "drone-1", msg["client_id"])
	assert.Equal(t, "drone", msg["client_type"])
}

func TestApplicationHandshakeWithSnapshot(t *testing.T) {
	ts := newTestServer(t)
	alert := &domain.Alert{ID: uuid.New(), AlertType: domain.AlertTypeFire, DroneID: "drone-1", Status: domain.AlertStatusPending, CreatedAt: time.Now()}
	require.NoError(t, ts.alertRepo.Save(context.Background(), alert))

	conn := ts.dial(t, "/ws/applications/app-1")

	msg := readMessage(t, conn)
	assert.Equal(t, "connection_established", msg["type"])

	msg = readMessage(t, conn)
	assert.Equal(t, "initial_alerts", msg["type"])
	assert.Equal(t, float64(1), msg["count"])
}

func TestDronePingPong(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "/ws/drones/drone-1")
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "ping"}))
	msg := readMessage(t, conn)
	assert.Equal(t, "pong", msg["type"])
}

func TestDroneCreatesAlert(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "/ws/drones/drone-1")
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "alert",
		"data": map[string]interface{}{
			"alert_type": "fire",
			"score":      0.91,
			"location":   map[string]interface{}{"lat": 50.45, "lng": 30.52},
		},
	}))

	msg := readMessage(t, conn)
	require.Equal(t, "alert_created", msg["type"])

	alertID, err := uuid.Parse(msg["alert_id"].(string))
	require.NoError(t, err)
	stored, err := ts.alertRepo.FindByID(context.Background(), alertID)
	require.NoError(t, err)
	assert.Equal(t, "drone-1", stored.DroneID)
	assert.Equal(t, domain.AlertStatusPending, stored.Status)
}

func TestDroneInvalidAlertGetsError(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "/ws/drones/drone-1")
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "alert",
		"data": map[string]interface{}{
			"alert_type": "tsunami",
			"score":      0.5,
		},
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg["type"])
}

func TestMalformedJSONGetsError(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "/ws/drones/drone-1")
	readMessage(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg["type"])
}

func TestRoleScopedMessageTypes(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "/ws/applications/app-1")
	readMessage(t, conn)
	readMessage(t, conn)

	// тип дрона на каналі застосунку відхиляється
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "processing_result"}))
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg["type"])
}

func TestApplicationEnqueuesTask(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "/ws/applications/app-1")
	readMessage(t, conn)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "processing_task",
		"data": map[string]interface{}{
			"drone_id":  "drone-1",
			"task_type": "image_analysis",
			"priority":  4,
		},
	}))

	msg := readMessage(t, conn)
	require.Equal(t, "task_created", msg["type"])

	taskID, err := uuid.Parse(msg["task_id"].(string))
	require.NoError(t, err)
	stored, err := ts.taskRepo.FindByID(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, "app-1", stored.AppID)
	assert.Equal(t, domain.TaskStatusPending, stored.Status)
}

func TestApplicationRespondsToAlert(t *testing.T) {
	ts := newTestServer(t)
	alert := &domain.Alert{ID: uuid.New(), AlertType: domain.AlertTypeFire, DroneID: "drone-1", Status: domain.AlertStatusPending, CreatedAt: time.Now()}
	require.NoError(t, ts.alertRepo.Save(context.Background(), alert))

	conn := ts.dial(t, "/ws/applications/app-1")
	readMessage(t, conn)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":     "response",
		"alert_id": alert.ID.String(),
		"data":     map[string]interface{}{"actions": []string{"dispatch_team"}},
	}))

	// конфліктна повторна відповідь дає конверт помилки
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":     "response",
		"alert_id": alert.ID.String(),
		"data":     map[string]interface{}{"actions": []string{"ignore"}},
	}))
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg["type"])

	stored, err := ts.alertRepo.FindByID(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusResponded, stored.Status)
	assert.Equal(t, []string{"dispatch_team"}, stored.Actions)
}

func TestResponseForwardsCommandToDrone(t *testing.T) {
	ts := newTestServer(t)
	alert := &domain.Alert{ID: uuid.New(), AlertType: domain.AlertTypeFire, DroneID: "drone-1", Status: domain.AlertStatusPending, CreatedAt: time.Now()}
	require.NoError(t, ts.alertRepo.Save(context.Background(), alert))

	droneConn := ts.dial(t, "/ws/drones/drone-1")
	readMessage(t, droneConn)

	appConn := ts.dial(t, "/ws/applications/app-1")
	readMessage(t, appConn)
	readMessage(t, appConn)

	require.NoError(t, appConn.WriteJSON(map[string]interface{}{
		"type":     "response",
		"alert_id": alert.ID.String(),
		"data":     map[string]interface{}{"actions": []string{"dispatch_team"}},
	}))

	msg := readMessage(t, droneConn)
	assert.Equal(t, "drone_command", msg["type"])
	assert.Equal(t, alert.ID.String(), msg["alert_id"])
}

func TestReconnectReplacesChannel(t *testing.T) {
	ts := newTestServer(t)
	first := ts.dial(t, "/ws/drones/drone-1")
	readMessage(t, first)

	second := ts.dial(t, "/ws/drones/drone-1")
	readMessage(t, second)

	assert.Equal(t, 1, ts.registry.Stats()["drone"])

	// старий канал закрито сервером
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	var discard map[string]interface{}
	err := first.ReadJSON(&discard)
	assert.Error(t, err)

	// цикл читання першого з'єднання завершується і не має знести
	// свіжу реєстрацію; новий канал лишається доступним для доставлення
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, ts.registry.Stats()["drone"])

	require.NoError(t, second.WriteJSON(map[string]interface{}{"type": "ping"}))
	msg := readMessage(t, second)
	assert.Equal(t, "pong", msg["type"])
}
