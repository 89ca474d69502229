package ws

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"drone-alert-system/internal/application"
	"drone-alert-system/internal/domain"
	"drone-alert-system/internal/ports"
	"drone-alert-system/pkg/metrics"
	"drone-alert-system/pkg/wire"
)

// Channel визначає мінімальний контракт каналу, яким володіє реєстр.
// *websocket.Conn задовольняє цей інтерфейс.
type Channel interface {
	WriteJSON(v interface{}) error
	Close() error
}

// RecentAlertsSource постачає знімок останніх тривог для нових застосунків
type RecentAlertsSource interface {
	FindRecent(ctx context.Context, limit int) ([]*domain.Alert, error)
}

// DefaultSnapshotLimit визначає кількість тривог у знімку для нового застосунку
const DefaultSnapshotLimit = 50

// entry описує запис реєстру; реєстр є єдиним власником каналу
type entry struct {
	ch          Channel
	connectedAt time.Time

	// gorilla/websocket дозволяє лише один конкурентний запис на з'єднання
	writeMu sync.Mutex
}

// Registry володіє множиною живих каналів, ключованих парою (роль, client_id).
// Усі мутації атомарні відносно конкурентних операцій над іншими ключами.
type Registry struct {
	mu    sync.RWMutex
	conns map[ports.Role]map[string]*entry

	alerts        RecentAlertsSource
	snapshotLimit int

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewRegistry створює новий реєстр з'єднань
func NewRegistry(alerts RecentAlertsSource, snapshotLimit int, logger zerolog.Logger, m *metrics.Metrics) *Registry {
	if snapshotLimit <= 0 {
		snapshotLimit = DefaultSnapshotLimit
	}
	return &Registry{
		conns: map[ports.Role]map[string]*entry{
			ports.RoleDrone:       {},
			ports.RoleApplication: {},
		},
		alerts:        alerts,
		snapshotLimit: snapshotLimit,
		logger:        logger,
		metrics:       m,
	}
}

// Register реєструє канал для пари (роль, client_id). Повторна реєстрація
// з тим самим ключем витісняє попередній канал (останній переможець):
// стара реєстрація закривається першою. Новому застосунку одразу
// надсилається знімок останніх тривог.
func (r *Registry) Register(role ports.Role, clientID string, ch Channel) {
	r.mu.Lock()
	if old, exists := r.conns[role][clientID]; exists {
		_ = old.ch.Close()
		r.logger.Warn().
			Str("role", string(role)).
			Str("client_id", clientID).
			Msg("replacing stale channel for reconnected client")
	}
	r.conns[role][clientID] = &entry{ch: ch, connectedAt: time.Now()}
	count := len(r.conns[role])
	r.mu.Unlock()

	r.metrics.SetConnections(string(role), count)
	r.logger.Info().
		Str("role", string(role)).
		Str("client_id", clientID).
		Int("connections", count).
		Msg("channel registered")

	// Підтвердження рукостискання
	r.Send(role, clientID, map[string]interface{}{
		"type":        "connection_established",
		"client_id":   clientID,
		"client_type": string(role),
		"timestamp":   time.Now().UTC(),
	})

	// Новий застосунок не має лишатися сліпим до наступної події
	if role == ports.RoleApplication && r.alerts != nil {
		r.sendInitialAlerts(clientID)
	}
}

// sendInitialAlerts надсилає застосунку знімок останніх тривог
func (r *Registry) sendInitialAlerts(clientID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alerts, err := r.alerts.FindRecent(ctx, r.snapshotLimit)
	if err != nil {
		r.logger.Error().Err(err).
			Str("client_id", clientID).
			Msg("failed to load initial alerts snapshot")
		return
	}

	docs := make([]map[string]interface{}, 0, len(alerts))
	for _, alert := range alerts {
		docs = append(docs, application.AlertDocument(alert))
	}

	r.Send(ports.RoleApplication, clientID, map[string]interface{}{
		"type":      "initial_alerts",
		"alerts":    docs,
		"count":     len(docs),
		"timestamp": time.Now().UTC(),
	})
}

// Unregister вилучає запис, якщо він присутній; операція ідемпотентна
func (r *Registry) Unregister(role ports.Role, clientID string) {
	r.mu.Lock()
	e, exists := r.conns[role][clientID]
	if exists {
		delete(r.conns[role], clientID)
	}
	count := len(r.conns[role])
	r.mu.Unlock()

	if !exists {
		return
	}

	_ = e.ch.Close()
	r.metrics.SetConnections(string(role), count)
	r.logger.Info().
		Str("role", string(role)).
		Str("client_id", clientID).
		Int("connections", count).
		Msg("channel unregistered")
}

// UnregisterChannel вилучає запис лише якщо реєстр досі тримає саме цей
// канал. Цикл читання завершеного з'єднання прибирає себе через цей
// метод: під тим самим client_id вже міг зареєструватися новий канал,
// і його витіснений попередник не має права чіпати чужий запис.
func (r *Registry) UnregisterChannel(role ports.Role, clientID string, ch Channel) {
	r.mu.Lock()
	current, exists := r.conns[role][clientID]
	owned := exists && current.ch == ch
	if owned {
		delete(r.conns[role], clientID)
	}
	count := len(r.conns[role])
	r.mu.Unlock()

	_ = ch.Close()
	if !owned {
		return
	}

	r.metrics.SetConnections(string(role), count)
	r.logger.Info().
		Str("role", string(role)).
		Str("client_id", clientID).
		Int("connections", count).
		Msg("channel unregistered")
}

// Send відправляє повідомлення конкретному клієнту. При невдачі запису
// канал вважається мертвим і вилучається з реєстру; повторних спроб немає.
func (r *Registry) Send(role ports.Role, clientID string, message map[string]interface{}) bool {
	r.mu.RLock()
	e, exists := r.conns[role][clientID]
	r.mu.RUnlock()

	if !exists {
		return false
	}

	if !r.write(role, clientID, e, wire.Serialize(message)) {
		return false
	}

	r.metrics.MessageSent(string(role))
	return true
}

// Broadcast відправляє повідомлення всім каналам ролі. Невдача на одному
// каналі ніколи не блокує доставлення іншим; мертві канали вилучаються.
// Розсилка для ролі без жодного каналу є no-op, що повертає 0.
func (r *Registry) Broadcast(role ports.Role, message map[string]interface{}) int {
	payload := wire.Serialize(message)

	r.mu.RLock()
	targets := make(map[string]*entry, len(r.conns[role]))
	for id, e := range r.conns[role] {
		targets[id] = e
	}
	r.mu.RUnlock()

	sent := 0
	for id, e := range targets {
		if r.write(role, id, e, payload) {
			sent++
			r.metrics.MessageSent(string(role))
		}
	}

	r.metrics.BroadcastDone(string(role))
	return sent
}

// write виконує запис у канал та витісняє його при помилці
func (r *Registry) write(role ports.Role, clientID string, e *entry, payload interface{}) bool {
	e.writeMu.Lock()
	err := e.ch.WriteJSON(payload)
	e.writeMu.Unlock()

	if err == nil {
		return true
	}

	r.logger.Warn().Err(err).
		Str("role", string(role)).
		Str("client_id", clientID).
		Msg("send failed, evicting dead channel")
	r.evict(role, clientID, e)
	return false
}

// evict вилучає запис лише якщо реєстр досі тримає саме цей канал:
// клієнт міг устигнути перепідключитися під тим самим client_id
func (r *Registry) evict(role ports.Role, clientID string, e *entry) {
	r.mu.Lock()
	current, exists := r.conns[role][clientID]
	if exists && current == e {
		delete(r.conns[role], clientID)
	}
	count := len(r.conns[role])
	r.mu.Unlock()

	_ = e.ch.Close()
	r.metrics.SetConnections(string(role), count)
	r.metrics.ConnectionEvicted(string(role))
}

// IsConnected повідомляє, чи має клієнт живий канал
func (r *Registry) IsConnected(role ports.Role, clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.conns[role][clientID]
	return exists
}

// Stats повертає миттєві кількості з'єднань за ролями
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		string(ports.RoleDrone):       len(r.conns[ports.RoleDrone]),
		string(ports.RoleApplication): len(r.conns[ports.RoleApplication]),
	}
}
