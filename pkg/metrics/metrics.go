package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics агрегує лічильники та датчики системи ретрансляції тривог
type Metrics struct {
	// Метрики з'єднань
	connectionsActive  *prometheus.GaugeVec
	connectionsEvicted *prometheus.CounterVec

	// Метрики доставлення
	messagesSent    *prometheus.CounterVec
	broadcastsTotal *prometheus.CounterVec

	// Метрики потоку змін
	feedEventsTotal   *prometheus.CounterVec
	feedEventsDropped prometheus.Counter
	feedReconnects    prometheus.Counter

	// Метрики завдань
	tasksDispatched prometheus.Counter
}

// NewMetrics створює та реєструє метрики у глобальному реєстрі prometheus.
// Викликається рівно один раз при старті процесу.
func NewMetrics() *Metrics {
	return &Metrics{
		connectionsActive: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_connections_active",
				Help: "Number of currently registered channels per role",
			},
			[]string{"role"},
		),
		connectionsEvicted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_connections_evicted_total",
				Help: "Number of channels evicted after a failed send",
			},
			[]string{"role"},
		),
		messagesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_messages_sent_total",
				Help: "Number of messages delivered to channels",
			},
			[]string{"role"},
		),
		broadcastsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_broadcasts_total",
				Help: "Number of broadcast operations per role",
			},
			[]string{"role"},
		),
		feedEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_feed_events_total",
				Help: "Number of change feed events processed per collection",
			},
			[]string{"collection"},
		),
		feedEventsDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_feed_events_dropped_total",
				Help: "Number of change feed events dropped as malformed",
			},
		),
		feedReconnects: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_feed_reconnects_total",
				Help: "Number of change feed reconnections",
			},
		),
		tasksDispatched: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_tasks_dispatched_total",
				Help: "Number of processing tasks delivered to drones",
			},
		),
	}
}

// SetConnections встановлює кількість активних з'єднань для ролі
func (m *Metrics) SetConnections(role string, count int) {
	if m == nil {
		return
	}
	m.connectionsActive.WithLabelValues(role).Set(float64(count))
}

// ConnectionEvicted фіксує вилучення мертвого каналу
func (m *Metrics) ConnectionEvicted(role string) {
	if m == nil {
		return
	}
	m.connectionsEvicted.WithLabelValues(role).Inc()
}

// MessageSent фіксує успішне доставлення повідомлення
func (m *Metrics) MessageSent(role string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(role).Inc()
}

// BroadcastDone фіксує завершену операцію розсилки
func (m *Metrics) BroadcastDone(role string) {
	if m == nil {
		return
	}
	m.broadcastsTotal.WithLabelValues(role).Inc()
}

// FeedEvent фіксує опрацьовану подію потоку змін
func (m *Metrics) FeedEvent(collection string) {
	if m == nil {
		return
	}
	m.feedEventsTotal.WithLabelValues(collection).Inc()
}

// FeedEventDropped фіксує відкинуту некоректну подію
func (m *Metrics) FeedEventDropped() {
	if m == nil {
		return
	}
	m.feedEventsDropped.Inc()
}

// FeedReconnect фіксує перепідключення потоку змін
func (m *Metrics) FeedReconnect() {
	if m == nil {
		return
	}
	m.feedReconnects.Inc()
}

// TaskDispatched фіксує доставлення завдання дрону
func (m *Metrics) TaskDispatched() {
	if m == nil {
		return
	}
	m.tasksDispatched.Inc()
}
