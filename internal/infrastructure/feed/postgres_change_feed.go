package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"drone-alert-system/internal/ports"
	"drone-alert-system/pkg/metrics"
)

const (
	notifyChannel = "document_changes"

	minReconnectInterval = 1 * time.Second
	maxReconnectInterval = 30 * time.Second

	// Період контрольного ping для виявлення мовчазного обриву
	pingInterval = 90 * time.Second
)

// PostgresChangeFeed імплементує ChangeFeed поверх LISTEN/NOTIFY.
// Тригери сховища документів публікують кожну зафіксовану зміну в канал
// document_changes; pq.Listener сам перепідключається з наростаючою
// затримкою після обриву з'єднання.
type PostgresChangeFeed struct {
	listener *pq.Listener
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// NewPostgresChangeFeed створює новий екземпляр PostgresChangeFeed
func NewPostgresChangeFeed(connStr string, logger zerolog.Logger, m *metrics.Metrics) *PostgresChangeFeed {
	f := &PostgresChangeFeed{
		logger:  logger,
		metrics: m,
	}

	f.listener = pq.NewListener(connStr, minReconnectInterval, maxReconnectInterval, f.onListenerEvent)
	return f
}

// onListenerEvent логує життєвий цикл з'єднання слухача
func (f *PostgresChangeFeed) onListenerEvent(event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventConnected:
		f.logger.Info().Msg("change feed connected")
	case pq.ListenerEventDisconnected:
		f.logger.Warn().Err(err).Msg("change feed disconnected")
	case pq.ListenerEventReconnected:
		f.logger.Info().Msg("change feed reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		f.logger.Error().Err(err).Msg("change feed connection attempt failed")
	}
}

// Start відкриває потік подій. Канал закривається після скасування
// контексту; події доставляються у порядку фіксації.
func (f *PostgresChangeFeed) Start(ctx context.Context) (<-chan ports.ChangeEvent, error) {
	if err := f.listener.Listen(notifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
	}

	events := make(chan ports.ChangeEvent)
	go f.run(ctx, events)
	return events, nil
}

func (f *PostgresChangeFeed) run(ctx context.Context, events chan<- ports.ChangeEvent) {
	defer close(events)

	for {
		select {
		case <-ctx.Done():
			return

		case n := <-f.listener.Notify:
			// nil-сповіщення означає перепідключення: сповіщення,
			// видані за час обриву, втрачено
			if n == nil {
				f.metrics.FeedReconnect()
				f.logger.Warn().Msg("change feed resumed after reconnect, notifications may have been missed")
				continue
			}

			event, err := parseEvent(n.Extra)
			if err != nil {
				f.metrics.FeedEventDropped()
				f.logger.Error().Err(err).
					Str("payload", n.Extra).
					Msg("dropping unparseable change notification")
				continue
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}

		case <-time.After(pingInterval):
			if err := f.listener.Ping(); err != nil {
				f.logger.Error().Err(err).Msg("change feed ping failed")
			}
		}
	}
}

// parseEvent розбирає навантаження pg_notify у подію потоку
func parseEvent(payload string) (ports.ChangeEvent, error) {
	var event ports.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal change payload: %w", err)
	}
	if event.Collection == "" || event.Operation == "" || event.DocumentKey == "" {
		return event, fmt.Errorf("change payload misses required fields")
	}
	return event, nil
}

// Close закриває слухача; відкритий канал подій завершиться слідом
func (f *PostgresChangeFeed) Close() error {
	return f.listener.Close()
}
