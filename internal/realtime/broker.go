package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrLagged closes a handle whose buffer overflowed. The consumer must
	// reopen and resync.
	ErrLagged = errors.New("realtime: subscriber lagged behind")

	// ErrClosed is reported by handles closed by their owner or by the broker.
	ErrClosed = errors.New("realtime: handle closed")
)

// DefaultBuffer is the per-handle event buffer.
const DefaultBuffer = 64

// Broker fans committed events out to open handles.
type Broker interface {
	// Publish delivers ev to every handle whose filter matches. It returns
	// once the event is ordered after every previously published event.
	Publish(ctx context.Context, ev Event) error

	// Open registers a handle. Events published after Open returns are
	// delivered to it.
	Open(ctx context.Context, filter Filter) (*Handle, error)

	// Close closes every handle and releases the broker.
	Close() error
}

// Option configures a broker.
type Option func(*hub)

// WithBuffer sets the per-handle buffer size.
func WithBuffer(n int) Option {
	return func(h *hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithSubscriberGauge tracks the number of open handles.
func WithSubscriberGauge(g prometheus.Gauge) Option {
	return func(h *hub) { h.gauge = g }
}

// Handle is an open subscription channel.
type Handle struct {
	filter Filter
	ch     chan Event
	hub    *hub

	once sync.Once
	err  error
}

// Events returns the delivery channel. It is closed when the handle closes.
func (h *Handle) Events() <-chan Event { return h.ch }

// Filter returns the filter the handle was opened with.
func (h *Handle) Filter() Filter { return h.filter }

// Err reports why the handle closed: ErrClosed or ErrLagged.
// It must only be read after Events is drained.
func (h *Handle) Err() error { return h.err }

// Close unregisters the handle. When Close returns no further event is
// delivered, so a new handle for another account can be opened safely.
func (h *Handle) Close() {
	h.hub.remove(h, ErrClosed)
}

// hub is the in-process fan-out shared by every broker implementation.
type hub struct {
	mu      sync.RWMutex
	handles map[*Handle]struct{}
	buffer  int
	gauge   prometheus.Gauge
	closed  bool
}

func newHub(opts ...Option) *hub {
	h := &hub{handles: make(map[*Handle]struct{}), buffer: DefaultBuffer}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *hub) open(filter Filter) (*Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	handle := &Handle{filter: filter, ch: make(chan Event, h.buffer), hub: h}
	h.handles[handle] = struct{}{}
	if h.gauge != nil {
		h.gauge.Inc()
	}
	return handle, nil
}

// deliver never blocks: a full buffer closes the handle with ErrLagged.
func (h *hub) deliver(ev Event) {
	var lagging []*Handle

	h.mu.RLock()
	for handle := range h.handles {
		if !handle.filter.Match(ev) {
			continue
		}
		select {
		case handle.ch <- ev:
		default:
			lagging = append(lagging, handle)
		}
	}
	h.mu.RUnlock()

	for _, handle := range lagging {
		h.remove(handle, ErrLagged)
	}
}

// remove closes the handle channel while holding the write lock, so no
// sender can race with the close.
func (h *hub) remove(handle *Handle, reason error) {
	handle.once.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.handles, handle)
		handle.err = reason
		close(handle.ch)
		if h.gauge != nil {
			h.gauge.Dec()
		}
	})
}

func (h *hub) closeAll() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.dropAll(ErrClosed)
}

// dropAll closes every open handle with reason. New handles may still be
// opened unless the hub is closed.
func (h *hub) dropAll(reason error) {
	h.mu.RLock()
	handles := make([]*Handle, 0, len(h.handles))
	for handle := range h.handles {
		handles = append(handles, handle)
	}
	h.mu.RUnlock()

	for _, handle := range handles {
		h.remove(handle, reason)
	}
}

// MemoryBroker delivers events within one process.
type MemoryBroker struct {
	hub *hub

	// pub serializes Publish so events are enqueued in publish order.
	pub sync.Mutex
}

// NewMemoryBroker creates an in-process broker.
func NewMemoryBroker(opts ...Option) *MemoryBroker {
	return &MemoryBroker{hub: newHub(opts...)}
}

// Publish delivers ev synchronously to the matching handles.
func (b *MemoryBroker) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.pub.Lock()
	defer b.pub.Unlock()
	b.hub.deliver(ev)
	return nil
}

// Open registers a handle.
func (b *MemoryBroker) Open(_ context.Context, filter Filter) (*Handle, error) {
	return b.hub.open(filter)
}

// Close closes every open handle.
func (b *MemoryBroker) Close() error {
	b.hub.closeAll()
	return nil
}
