package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/splitmate-app/splitmate-sync/logger"
	"github.com/splitmate-app/splitmate-sync/types"
)

// Config holds configuration for the Broker.
type Config struct {
	PublishTimeout  time.Duration
	EventBufferSize int
}

// DefaultConfig returns default configuration values.
func DefaultConfig() Config {
	return Config{
		PublishTimeout:  5 * time.Second,
		EventBufferSize: 100,
	}
}

// metrics holds Prometheus metrics for the broker
type metrics struct {
	publishLatency    prometheus.Histogram
	errorCount        *prometheus.CounterVec
	eventCount        *prometheus.CounterVec
	activeSubscribers prometheus.Gauge
}

var (
	metricsInstance *metrics
	metricsOnce     sync.Once
	defaultRegistry = prometheus.DefaultRegisterer
)

// newMetrics initializes and registers Prometheus metrics using a singleton pattern.
func newMetrics() *metrics {
	metricsOnce.Do(func() {
		metricsInstance = &metrics{
			publishLatency: promauto.With(defaultRegistry).NewHistogram(prometheus.HistogramOpts{
				Name:    "event_publish_duration_seconds",
				Help:    "Time taken to publish events",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			}),
			errorCount: promauto.With(defaultRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "event_errors_total",
				Help: "Total number of event-related errors",
			}, []string{"operation", "type"}),
			eventCount: promauto.With(defaultRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "events_total",
				Help: "Total number of events by operation and type",
			}, []string{"operation", "type"}),
			activeSubscribers: promauto.With(defaultRegistry).NewGauge(prometheus.GaugeOpts{
				Name: "event_active_subscribers",
				Help: "Current number of active subscribers",
			}),
		}
	})
	return metricsInstance
}

// For testing purposes - reset metrics
func resetMetricsForTesting() {
	reg := prometheus.NewRegistry()
	defaultRegistry = reg

	metricsInstance = nil
	metricsOnce = sync.Once{}
}

// Broker implements types.EventPublisher as an in-process broadcast bus.
// Fan-out is synchronous to each subscriber's buffered channel and never
// blocks: if a subscriber's buffer is full the event is dropped for that
// subscriber. There is no replay; a subscriber added after an event was
// published never receives it.
type Broker struct {
	log     *zap.SugaredLogger
	metrics *metrics
	config  Config
	mu      sync.RWMutex
	subs    map[string]*subscription
	closed  bool
}

type subscription struct {
	ch        chan types.Event
	filters   []types.EventType
	closeOnce sync.Once
}

func (s *subscription) close() {
	s.closeOnce.Do(func() {
		close(s.ch)
	})
}

// wants reports whether the subscription's filters match the event type.
// No filters means every event.
func (s *subscription) wants(t types.EventType) bool {
	if len(s.filters) == 0 {
		return true
	}
	for _, f := range s.filters {
		if f == t {
			return true
		}
	}
	return false
}

// NewBroker creates a new in-process event broker.
func NewBroker(cfg ...Config) *Broker {
	config := DefaultConfig()
	if len(cfg) > 0 {
		config = cfg[0]
	}

	return &Broker{
		log:     logger.GetLogger().Named("events"),
		metrics: newMetrics(),
		config:  config,
		subs:    make(map[string]*subscription),
	}
}

// Publish broadcasts an event to all current subscribers whose filters match.
func (b *Broker) Publish(ctx context.Context, event types.Event) error {
	start := time.Now()
	defer func() {
		b.metrics.publishLatency.Observe(time.Since(start).Seconds())
	}()

	// Set defaults if needed
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Version == 0 {
		event.Version = 1
	}

	if err := event.Validate(); err != nil {
		b.metrics.errorCount.WithLabelValues("publish", "validation").Inc()
		return fmt.Errorf("invalid event: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.metrics.errorCount.WithLabelValues("publish", "closed").Inc()
		return fmt.Errorf("broker is shut down")
	}

	for subID, sub := range b.subs {
		if !sub.wants(event.Type) {
			continue
		}
		// Never block the publisher; drop if the subscriber is behind.
		select {
		case sub.ch <- event:
			b.metrics.eventCount.WithLabelValues("deliver", string(event.Type)).Inc()
		default:
			b.metrics.errorCount.WithLabelValues("deliver", "channel_full").Inc()
			b.log.Warnw("Dropped event due to full channel",
				"subscriberID", subID,
				"eventType", event.Type,
			)
		}
	}

	b.metrics.eventCount.WithLabelValues("publish", string(event.Type)).Inc()
	return nil
}

// PublishBatch broadcasts multiple events in order.
func (b *Broker) PublishBatch(ctx context.Context, events []types.Event) error {
	for _, event := range events {
		if err := b.Publish(ctx, event); err != nil {
			return fmt.Errorf("publish batch: %w", err)
		}
	}
	return nil
}

// Subscribe registers a subscriber and returns its event channel. The channel
// is closed on Unsubscribe or Shutdown. Passing filters narrows delivery to
// those event types; no filters delivers everything.
func (b *Broker) Subscribe(ctx context.Context, subscriberID string, filters ...types.EventType) (<-chan types.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		b.metrics.errorCount.WithLabelValues("subscribe", "closed").Inc()
		return nil, fmt.Errorf("broker is shut down")
	}
	if _, exists := b.subs[subscriberID]; exists {
		b.metrics.errorCount.WithLabelValues("subscribe", "duplicate").Inc()
		return nil, fmt.Errorf("subscription already exists for %s", subscriberID)
	}

	sub := &subscription{
		ch:      make(chan types.Event, b.config.EventBufferSize),
		filters: filters,
	}
	b.subs[subscriberID] = sub
	b.metrics.activeSubscribers.Inc()

	b.log.Debugw("Subscriber registered", "subscriberID", subscriberID, "filters", filters)
	return sub.ch, nil
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broker) Unsubscribe(ctx context.Context, subscriberID string) error {
	b.mu.Lock()
	sub, exists := b.subs[subscriberID]
	if !exists {
		b.mu.Unlock()
		return fmt.Errorf("no subscription found for %s", subscriberID)
	}
	delete(b.subs, subscriberID)
	b.mu.Unlock()

	sub.close()
	b.metrics.activeSubscribers.Dec()
	b.log.Debugw("Subscriber removed", "subscriberID", subscriberID)
	return nil
}

// Shutdown closes every subscriber channel and rejects further publishes.
func (b *Broker) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	localSubs := b.subs
	b.subs = make(map[string]*subscription)
	b.mu.Unlock()

	for subID, sub := range localSubs {
		sub.close()
		b.metrics.activeSubscribers.Dec()
		b.log.Debugw("Subscription closed during shutdown", "subscriberID", subID)
	}

	b.log.Info("Event broker shutdown complete")
	return nil
}
