package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/splitmate-app/splitmate-sync/config"
	"github.com/splitmate-app/splitmate-sync/logger"
	"github.com/splitmate-app/splitmate-sync/types"
)

const coordinatorSubscriberID = "sync-coordinator"

// Coordinator glues the engine together: it funnels every drain trigger
// (periodic timer, connectivity regained, app foregrounded, a fresh outbox
// entry) into the uploader and owns the lifecycle of the reconciler and the
// connectivity monitor.
type Coordinator struct {
	uploader   *Uploader
	reconciler *Reconciler
	monitor    *ConnectivityMonitor
	publisher  types.EventPublisher
	cfg        config.SyncConfig
	log        *zap.SugaredLogger
	metrics    *metrics

	kicks chan string

	mu         stdsync.Mutex
	started    bool
	userID     string
	cancel     context.CancelFunc
	lastRun    time.Time
	lastResult *types.ProcessResult
	lastError  string

	wg stdsync.WaitGroup
}

func NewCoordinator(up *Uploader, rec *Reconciler, mon *ConnectivityMonitor, publisher types.EventPublisher, cfg config.SyncConfig) *Coordinator {
	return &Coordinator{
		uploader:   up,
		reconciler: rec,
		monitor:    mon,
		publisher:  publisher,
		cfg:        cfg,
		log:        logger.GetLogger().Named("coordinator"),
		metrics:    newMetrics(),
		kicks:      make(chan string, 4),
	}
}

// Start brings the whole engine up for one user: the global group watch, the
// connectivity probe, and the trigger loop.
func (c *Coordinator) Start(ctx context.Context, userID string) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already started")
	}
	c.started = true
	c.userID = userID
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	if err := c.reconciler.Start(runCtx, userID); err != nil {
		c.abortStart()
		return err
	}
	c.monitor.Start(runCtx)

	queueEvents, err := c.publisher.Subscribe(runCtx, coordinatorSubscriberID, types.EventTypeQueueItemAdded)
	if err != nil {
		c.abortStart()
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(runCtx, queueEvents)
	}()

	c.log.Infow("Sync coordinator started", "userId", userID)
	return nil
}

// Stop shuts the engine down and waits for in-flight work to finish.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	c.mu.Unlock()

	c.teardown()
	c.wg.Wait()
	c.log.Info("Sync coordinator stopped")
}

func (c *Coordinator) abortStart() {
	c.mu.Lock()
	c.started = false
	c.mu.Unlock()
	c.teardown()
}

func (c *Coordinator) teardown() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := c.publisher.Unsubscribe(context.Background(), coordinatorSubscriberID); err != nil {
		c.log.Debugw("Coordinator unsubscribe", "error", err)
	}
	c.monitor.Stop()
	c.reconciler.Stop()
}

// Focus switches the focused expense watch; the UI calls this when the user
// opens a group.
func (c *Coordinator) Focus(groupID string) error {
	return c.reconciler.Focus(groupID)
}

// NotifyForegrounded requests a drain because the app returned to the
// foreground. Non-blocking; bursts coalesce into the pending kick.
func (c *Coordinator) NotifyForegrounded() {
	c.kick("foreground")
}

// TriggerSync requests an immediate drain, e.g. from a pull-to-refresh.
func (c *Coordinator) TriggerSync() {
	c.kick("manual")
}

func (c *Coordinator) kick(source string) {
	select {
	case c.kicks <- source:
	default:
	}
}

func (c *Coordinator) run(ctx context.Context, queueEvents <-chan types.Event) {
	interval := c.cfg.ProcessInterval()
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.drain(ctx, "interval")
		case _, ok := <-queueEvents:
			if !ok {
				return
			}
			c.drain(ctx, "queue_item")
		case online := <-c.monitor.Changes():
			if online {
				c.drain(ctx, "connectivity")
			}
		case source := <-c.kicks:
			c.drain(ctx, source)
		}
	}
}

func (c *Coordinator) drain(ctx context.Context, source string) {
	c.metrics.syncTriggers.WithLabelValues(source).Inc()
	if !c.monitor.IsOnline() {
		c.log.Debugw("Skipping drain while offline", "trigger", source)
		return
	}

	result, err := c.uploader.ProcessQueue(ctx, c.userID)

	c.mu.Lock()
	c.lastRun = time.Now()
	c.lastResult = result
	if err != nil {
		c.lastError = err.Error()
	} else {
		c.lastError = ""
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Errorw("Queue drain failed", "trigger", source, "error", err)
	}
}

// Status returns a diagnostic snapshot of the engine.
func (c *Coordinator) Status(ctx context.Context) map[string]interface{} {
	c.mu.Lock()
	status := map[string]interface{}{
		"running":   c.started,
		"userId":    c.userID,
		"lastRunAt": c.lastRun,
		"lastError": c.lastError,
	}
	if c.lastResult != nil {
		status["lastBatch"] = *c.lastResult
	}
	userID := c.userID
	c.mu.Unlock()

	status["online"] = c.monitor.IsOnline()
	status["focusedGroup"] = c.reconciler.FocusedGroup()
	if pending, err := c.uploader.PendingCount(ctx, userID); err == nil {
		status["pendingUploads"] = pending
	}
	return status
}
