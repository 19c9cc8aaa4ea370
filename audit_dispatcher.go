package goSession

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
)

// dropLogEvery spaces out the warnings logged for dropped events.
const dropLogEvery = 100

var jwtShape = regexp.MustCompile(`[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}`)

// auditDispatcher moves audit events off the request path onto a single sink
// goroutine. A nil dispatcher (audit disabled) accepts and ignores every call.
type auditDispatcher struct {
	cfg    AuditConfig
	sink   AuditSink
	logger hclog.Logger

	// mu guards closing events against concurrent sends.
	mu     sync.RWMutex
	closed bool
	events chan AuditEvent
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	dropped atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger hclog.Logger) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	d := &auditDispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		events: make(chan AuditEvent, cfg.BufferSize),
		stop:   make(chan struct{}),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for event := range d.events {
			d.sink.Emit(context.Background(), event)
		}
	}()

	return d
}

// Emit queues event for the sink. With DropIfFull a full buffer drops the event
// and counts it; otherwise Emit blocks until there is room, ctx ends or the
// dispatcher closes.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	event = redactEvent(event)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.events <- event:
		default:
			d.drop(event)
		}
		return
	}

	select {
	case d.events <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

func (d *auditDispatcher) drop(event AuditEvent) {
	n := d.dropped.Add(1)
	if n == 1 || n%dropLogEvery == 0 {
		d.logger.Warn("audit buffer full, dropping events", "dropped", n, "event_type", event.EventType)
	}
}

// Close stops accepting events and waits for queued ones to reach the sink.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		close(d.stop)
		d.mu.Lock()
		d.closed = true
		close(d.events)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// redactEvent stamps the event and masks anything shaped like a JWT that
// reached it through an error message or metadata.
func redactEvent(event AuditEvent) AuditEvent {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.Error = jwtShape.ReplaceAllString(event.Error, "[redacted]")
	if len(event.Metadata) > 0 {
		meta := make(map[string]string, len(event.Metadata))
		for k, v := range event.Metadata {
			meta[k] = jwtShape.ReplaceAllString(v, "[redacted]")
		}
		event.Metadata = meta
	}
	return event
}
