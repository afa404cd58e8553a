package sync

import (
	"context"
	"net/http"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/splitmate-app/splitmate-sync/config"
	"github.com/splitmate-app/splitmate-sync/logger"
)

// ConnectivityMonitor reports whether the remote store is reachable by
// probing a lightweight HTTP endpoint on an interval. Transitions are
// published on Changes so the coordinator can drain the queue the moment
// connectivity returns.
type ConnectivityMonitor struct {
	cfg    config.SyncConfig
	log    *zap.SugaredLogger
	client *http.Client

	mu      stdsync.Mutex
	online  bool
	started bool

	changes chan bool
	cancel  context.CancelFunc
	wg      stdsync.WaitGroup
}

func NewConnectivityMonitor(cfg config.SyncConfig) *ConnectivityMonitor {
	return &ConnectivityMonitor{
		cfg: cfg,
		log: logger.GetLogger().Named("connectivity"),
		client: &http.Client{
			Timeout: cfg.ProbeTimeout(),
		},
		// Buffered by one and coalesced: a slow consumer sees the latest
		// transition, not a backlog.
		changes: make(chan bool, 1),
		online:  true,
	}
}

// IsOnline returns the result of the most recent probe. Before the first
// probe completes the monitor assumes online, so a cold start attempts a
// drain rather than sitting idle.
func (m *ConnectivityMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Changes delivers connectivity transitions: true when the probe starts
// succeeding after failures, false on the reverse.
func (m *ConnectivityMonitor) Changes() <-chan bool {
	return m.changes
}

// Start begins periodic probing. A monitor with no probe URL configured is
// inert and permanently reports online.
func (m *ConnectivityMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.cfg.ProbeURL == "" {
		return
	}
	m.started = true

	pctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(pctx)
	}()
}

func (m *ConnectivityMonitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.started = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *ConnectivityMonitor) run(ctx context.Context) {
	interval := m.cfg.ProbeInterval()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *ConnectivityMonitor) probe(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.cfg.ProbeURL, nil)
	if err != nil {
		m.log.Errorw("Invalid probe URL", "url", m.cfg.ProbeURL, "error", err)
		return
	}

	online := false
	resp, err := m.client.Do(req)
	if err == nil {
		resp.Body.Close()
		online = resp.StatusCode < http.StatusInternalServerError
	}

	m.mu.Lock()
	changed := online != m.online
	m.online = online
	m.mu.Unlock()

	if !changed {
		return
	}
	m.log.Infow("Connectivity changed", "online", online)
	select {
	case m.changes <- online:
	default:
		// Replace the stale pending transition with the latest one.
		select {
		case <-m.changes:
		default:
		}
		m.changes <- online
	}
}
