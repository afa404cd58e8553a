package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/splitmate-app/splitmate-sync/logger"
	"github.com/splitmate-app/splitmate-sync/types"
)

// Service coordinates event publishing and handling. It routes every
// published event to registered handlers and broadcasts it to channel
// subscribers through the broker.
type Service struct {
	log      *zap.SugaredLogger
	broker   *Broker
	router   *Router
	mu       sync.RWMutex
	handlers map[string]types.EventHandler // key: handler name
}

// NewService creates a new event service
func NewService(cfg ...Config) *Service {
	return &Service{
		log:      logger.GetLogger().Named("event_service"),
		broker:   NewBroker(cfg...),
		router:   NewRouter(),
		handlers: make(map[string]types.EventHandler),
	}
}

// RegisterHandler registers an event handler with both the router and service
func (s *Service) RegisterHandler(name string, handler types.EventHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.handlers[name]; exists {
		return fmt.Errorf("handler with name %s already registered", name)
	}

	s.handlers[name] = handler
	s.router.RegisterHandler(handler)

	s.log.Infow("Registered event handler",
		"name", name,
		"type", fmt.Sprintf("%T", handler),
		"supportedEvents", handler.SupportedEvents(),
	)

	return nil
}

// UnregisterHandler removes a handler by name
func (s *Service) UnregisterHandler(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handler, exists := s.handlers[name]
	if !exists {
		return fmt.Errorf("handler %s not found", name)
	}

	s.router.UnregisterHandler(handler)
	delete(s.handlers, name)

	s.log.Infow("Unregistered event handler", "name", name)
	return nil
}

// Publish routes an event to handlers and broadcasts it to subscribers.
// Handlers run detached: a slow handler never stalls the publisher, the same
// way a full subscriber channel never does.
func (s *Service) Publish(ctx context.Context, event types.Event) error {
	s.dispatch(ctx, event)
	return s.broker.Publish(ctx, event)
}

// PublishBatch publishes multiple events in order.
func (s *Service) PublishBatch(ctx context.Context, events []types.Event) error {
	for _, event := range events {
		s.dispatch(ctx, event)
	}
	return s.broker.PublishBatch(ctx, events)
}

// dispatch hands an event to the router without waiting on its handlers.
// The handler context is detached from the publisher's so cancellation after
// publishing does not abort in-flight handlers.
func (s *Service) dispatch(ctx context.Context, event types.Event) {
	hctx := context.WithoutCancel(ctx)
	go func() {
		if err := s.router.HandleEvent(hctx, event); err != nil {
			s.log.Errorw("Error handling event locally",
				"error", err,
				"groupID", event.GroupID,
				"eventType", event.Type,
			)
		}
	}()
}

// Subscribe returns a channel of events, optionally filtered by type.
func (s *Service) Subscribe(ctx context.Context, subscriberID string, filters ...types.EventType) (<-chan types.Event, error) {
	return s.broker.Subscribe(ctx, subscriberID, filters...)
}

// Unsubscribe removes a subscription
func (s *Service) Unsubscribe(ctx context.Context, subscriberID string) error {
	return s.broker.Unsubscribe(ctx, subscriberID)
}

// Shutdown gracefully shuts down the service
func (s *Service) Shutdown(ctx context.Context) error {
	if err := s.broker.Shutdown(ctx); err != nil {
		s.log.Errorw("Error shutting down broker", "error", err)
		// Continue to unregister handlers even if broker shutdown fails
	}

	// Collect handler names to unregister
	handlersToUnregister := make([]string, 0)
	s.mu.RLock()
	for name := range s.handlers {
		handlersToUnregister = append(handlersToUnregister, name)
	}
	s.mu.RUnlock()

	for _, name := range handlersToUnregister {
		if unregErr := s.UnregisterHandler(name); unregErr != nil {
			s.log.Errorw("Error unregistering handler during shutdown",
				"error", unregErr,
				"handler", name,
			)
		}
	}

	s.mu.Lock()
	s.handlers = make(map[string]types.EventHandler)
	s.mu.Unlock()

	s.log.Info("Event service shutdown complete")
	return nil
}

// GetHandlerNames returns a list of registered handler names
func (s *Service) GetHandlerNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	return names
}
