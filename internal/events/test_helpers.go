package events

import (
	"context"
	"sync"

	"github.com/splitmate-app/splitmate-sync/types"
)

// mockHandler is a test helper that records handled events.
type mockHandler struct {
	mu        sync.Mutex
	supported []types.EventType
	events    []types.Event
	err       error
}

func newMockHandler(supported ...types.EventType) *mockHandler {
	return &mockHandler{supported: supported}
}

func (h *mockHandler) HandleEvent(ctx context.Context, event types.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *mockHandler) SupportedEvents() []types.EventType {
	return h.supported
}

func (h *mockHandler) handledEvents() []types.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]types.Event, len(h.events))
	copy(out, h.events)
	return out
}
