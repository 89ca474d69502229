package application

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"drone-alert-system/internal/domain"
	"drone-alert-system/internal/ports"
)

type memAlertRepo struct {
	mu     sync.Mutex
	alerts map[uuid.UUID]*domain.Alert
	order  []uuid.UUID
}

func newMemAlertRepo() *memAlertRepo {
	return &memAlertRepo{alerts: make(map[uuid.UUID]*domain.Alert)}
}

func (r *memAlertRepo) Save(_ context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *alert
	r.alerts[alert.ID] = &cp
	r.order = append(r.order, alert.ID)
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
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *r.alerts[r.order[i]]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memAlertRepo) Update(_ context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[alert.ID]; !ok {
		return domain.ErrAlertNotFound
	}
	cp := *alert
	r.alerts[alert.ID] = &cp
	return nil
}

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.ProcessingTask
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[uuid.UUID]*domain.ProcessingTask)}
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

func newMemResultRepo() *memResultRepo {
	return &memResultRepo{results: make(map[uuid.UUID]*domain.ProcessingResult)}
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

func newMemImageRepo() *memImageRepo {
	return &memImageRepo{images: make(map[uuid.UUID]*domain.AlertImage)}
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
	if _, ok := r.images[id]; !ok {
		return domain.ErrAlertImageNotFound
	}
	delete(r.images, id)
	return nil
}

type memBlobStore struct {
	mu    sync.Mutex
	blobs map[string]string
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string]string)}
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
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, imageID.String()+"/actual")
	delete(s.blobs, imageID.String()+"/matched")
	return nil
}

type sentMessage struct {
	Role     ports.Role
	ClientID string
	Message  map[string]interface{}
}

// fakeSender записує всі доставлення та імітує набір підключених клієнтів
type fakeSender struct {
	mu        sync.Mutex
	connected map[string]bool
	sent      []sentMessage
	broadcast []sentMessage
}

func newFakeSender(connected ...string) *fakeSender {
	s := &fakeSender{connected: make(map[string]bool)}
	for _, id := range connected {
		s.connected[id] = true
	}
	return s
}

func (s *fakeSender) key(role ports.Role, clientID string) string {
	return string(role) + ":" + clientID
}

func (s *fakeSender) Send(role ports.Role, clientID string, message map[string]interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected[s.key(role, clientID)] {
		return false
	}
	s.sent = append(s.sent, sentMessage{Role: role, ClientID: clientID, Message: message})
	return true
}

func (s *fakeSender) Broadcast(role ports.Role, message map[string]interface{}) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcast = append(s.broadcast, sentMessage{Role: role, Message: message})
	count := 0
	for k, ok := range s.connected {
		if ok && len(k) > len(role) && k[:len(role)] == string(role) {
			count++
		}
	}
	return count
}

func (s *fakeSender) IsConnected(role ports.Role, clientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected[s.key(role, clientID)]
}

func (s *fakeSender) sentTo(role ports.Role, clientID string) []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentMessage
	for _, m := range s.sent {
		if m.Role == role && m.ClientID == clientID {
			out = append(out, m)
		}
	}
	return out
}

func (s *fakeSender) broadcastsOf(messageType string) []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentMessage
	for _, m := range s.broadcast {
		if m.Message["type"] == messageType {
			out = append(out, m)
		}
	}
	return out
}
