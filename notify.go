package goIdentity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type notification struct {
	To       string
	Template string
	Data     map[string]any
}

// notifyDispatcher decouples email delivery from the operation critical path.
// Sends are queued to a single worker, attempted with a per-send timeout and
// a bounded retry count, and dropped with a log line when everything fails.
// At-most-once, best-effort.
type notifyDispatcher struct {
	cfg      NotifyConfig
	gateway  NotificationGateway
	logger   *zap.Logger
	metrics  *metrics
	ch       chan notification
	done     chan struct{}
	wg       sync.WaitGroup
	dropped  atomic.Uint64
	closed   atomic.Bool
	closeOne sync.Once
}

func newNotifyDispatcher(cfg NotifyConfig, gateway NotificationGateway, logger *zap.Logger, m *metrics) *notifyDispatcher {
	if gateway == nil {
		return nil
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}

	d := &notifyDispatcher{
		cfg:     cfg,
		gateway: gateway,
		logger:  logger,
		metrics: m,
		ch:      make(chan notification, cfg.QueueSize),
		done:    make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *notifyDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case n := <-d.ch:
			d.deliver(n)
		case <-d.done:
			for {
				select {
				case n := <-d.ch:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *notifyDispatcher) deliver(n notification) {
	var err error
	for attempt := 0; attempt <= d.cfg.Retries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		err = d.gateway.Send(ctx, n.To, n.Template, n.Data)
		cancel()
		if err == nil {
			return
		}
	}

	d.metrics.inc(MetricNotifyFailed)
	d.logger.Warn("notification delivery failed",
		zap.String("template", n.Template),
		zap.String("to", n.To),
		zap.Int("attempts", d.cfg.Retries+1),
		zap.Error(err),
	)
}

// Enqueue never blocks the caller. A full queue drops the notification.
func (d *notifyDispatcher) Enqueue(n notification) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- n:
	case <-d.done:
	default:
		d.dropped.Add(1)
		d.metrics.inc(MetricNotifyDropped)
		d.logger.Warn("notification queue full, dropping",
			zap.String("template", n.Template),
			zap.String("to", n.To),
		)
	}
}

// Close stops the worker after draining queued notifications.
func (d *notifyDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOne.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *notifyDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// settle blocks until queued notifications at call time are handed to the
// gateway. Test hook.
func (d *notifyDispatcher) settle(timeout time.Duration) {
	if d == nil {
		return
	}
	deadline := time.Now().Add(timeout)
	for len(d.ch) > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
}
