package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// ErrQueueClosed is returned by Publish after Close.
var ErrQueueClosed = errors.New("events: queue closed")

// Task is a queued delivery of an event to one endpoint. An empty Endpoint
// means the task still has to be fanned out.
type Task struct {
	Event     LifecycleEvent
	Endpoint  string
	Attempt   int
	NotBefore time.Time
}

type queuedTask struct {
	task       Task
	enqueuedAt time.Time
}

type historyEntry struct {
	event      LifecycleEvent
	enqueuedAt time.Time
}

// QueueOption adjusts the behaviour of the queue.
type QueueOption func(*queueConfig)

type queueConfig struct {
	taskCapacity    int
	historyCapacity int
	ttl             time.Duration
	now             func() time.Time
}

const (
	defaultTaskCapacity    = 1024
	defaultHistoryCapacity = 256
	defaultQueueTTL        = 15 * time.Minute
	subscriberBuffer       = 32
)

// WithTaskCapacity sets the maximum number of pending delivery tasks.
func WithTaskCapacity(capacity int) QueueOption {
	return func(cfg *queueConfig) {
		if capacity > 0 {
			cfg.taskCapacity = capacity
		}
	}
}

// WithHistoryCapacity sets the number of events retained for replay.
func WithHistoryCapacity(capacity int) QueueOption {
	return func(cfg *queueConfig) {
		if capacity > 0 {
			cfg.historyCapacity = capacity
		}
	}
}

// WithTTL configures how long queued items remain eligible for delivery.
func WithTTL(ttl time.Duration) QueueOption {
	return func(cfg *queueConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithClock overrides the clock used for TTL evaluation.
func WithClock(now func() time.Time) QueueOption {
	return func(cfg *queueConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// Queue is a bounded, non-blocking Publisher. Published events are kept in
// a replay history, broadcast to live subscribers and queued for delivery.
// When full, the oldest task is dropped.
type Queue struct {
	mu      sync.Mutex
	tasks   ring[queuedTask]
	history ring[historyEntry]
	ttl     time.Duration
	now     func() time.Time
	metrics *queueMetrics
	closed  bool

	seq    uint64
	nextID uint64
	subs   map[uint64]chan LifecycleEvent
}

var _ Publisher = (*Queue)(nil)

// NewQueue constructs a bounded queue with optional customisation.
func NewQueue(opts ...QueueOption) *Queue {
	cfg := queueConfig{
		taskCapacity:    defaultTaskCapacity,
		historyCapacity: defaultHistoryCapacity,
		ttl:             defaultQueueTTL,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Queue{
		tasks:   newRing[queuedTask](cfg.taskCapacity),
		history: newRing[historyEntry](cfg.historyCapacity),
		ttl:     cfg.ttl,
		now:     cfg.now,
		metrics: sharedQueueMetrics(),
		subs:    make(map[uint64]chan LifecycleEvent),
	}
}

// Publish records the event, assigning it the next sequence number. It never blocks.
func (q *Queue) Publish(_ context.Context, evt LifecycleEvent) error {
	now := q.now()
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.seq++
	evt.Sequence = q.seq
	q.evictExpiredLocked(now)
	q.recordHistoryLocked(historyEntry{event: evt, enqueuedAt: now})
	q.recordTaskLocked(queuedTask{task: Task{Event: evt}, enqueuedAt: now})
	slow := 0
	for _, ch := range q.subs {
		select {
		case ch <- evt:
		default:
			slow++
		}
	}
	q.mu.Unlock()

	q.metrics.recordPublished(string(evt.Type))
	q.metrics.recordDropped("slow_subscriber", slow)
	return nil
}

// Requeue schedules a task again, typically for a retry.
func (q *Queue) Requeue(task Task) {
	now := q.now()
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.evictExpiredLocked(now)
	q.recordTaskLocked(queuedTask{task: task, enqueuedAt: now})
}

// Events returns a snapshot of the retained history.
func (q *Queue) Events() []LifecycleEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.evictExpiredLocked(q.now())
	snapshot := make([]LifecycleEvent, 0, q.history.len())
	q.history.forEach(func(entry historyEntry) {
		snapshot = append(snapshot, entry.event)
	})
	return snapshot
}

// Subscribe registers a live subscriber and returns the retained events with
// a sequence greater than since.
func (q *Queue) Subscribe(ctx context.Context, since uint64) (<-chan LifecycleEvent, func(), []LifecycleEvent) {
	updates := make(chan LifecycleEvent, subscriberBuffer)

	q.mu.Lock()
	id := q.nextID
	q.nextID++
	q.subs[id] = updates
	backlog := make([]LifecycleEvent, 0, q.history.len())
	q.history.forEach(func(entry historyEntry) {
		if entry.event.Sequence > since {
			backlog = append(backlog, entry.event)
		}
	})
	q.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			q.mu.Lock()
			if sub, ok := q.subs[id]; ok {
				delete(q.subs, id)
				close(sub)
			}
			q.mu.Unlock()
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog
}

// Dequeue waits for the next deliverable task. It returns false once ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (Task, bool) {
	for {
		q.mu.Lock()
		q.evictExpiredLocked(q.now())
		queued, ok := q.tasks.pop()
		q.mu.Unlock()
		if !ok {
			select {
			case <-ctx.Done():
				return Task{}, false
			case <-time.After(25 * time.Millisecond):
				continue
			}
		}

		if delay := queued.task.NotBefore.Sub(q.now()); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Task{}, false
			case <-timer.C:
			}
		}

		if q.ttl > 0 {
			if age := q.now().Sub(queued.enqueuedAt); age > q.ttl {
				q.metrics.recordDropped("ttl", 1)
				continue
			}
		}
		return queued.task, true
	}
}

// Close stops accepting events and disconnects subscribers.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for id, ch := range q.subs {
		delete(q.subs, id)
		close(ch)
	}
}

func (q *Queue) recordTaskLocked(task queuedTask) {
	if q.tasks.capacity() == 0 {
		q.metrics.recordDropped("overflow", 1)
		return
	}
	if _, dropped := q.tasks.push(task); dropped {
		q.metrics.recordDropped("overflow", 1)
	}
}

func (q *Queue) recordHistoryLocked(entry historyEntry) {
	if q.history.capacity() == 0 {
		return
	}
	if _, dropped := q.history.push(entry); dropped {
		q.metrics.recordDropped("history_overflow", 1)
	}
}

func (q *Queue) evictExpiredLocked(now time.Time) {
	if q.ttl <= 0 {
		return
	}
	expired := 0
	for {
		queued, ok := q.tasks.peek()
		if !ok || now.Sub(queued.enqueuedAt) <= q.ttl {
			break
		}
		q.tasks.pop()
		expired++
	}
	q.metrics.recordDropped("ttl", expired)

	historyExpired := 0
	for {
		entry, ok := q.history.peek()
		if !ok || now.Sub(entry.enqueuedAt) <= q.ttl {
			break
		}
		q.history.pop()
		historyExpired++
	}
	q.metrics.recordDropped("history_ttl", historyExpired)
}

// ring is a fixed-size buffer that overwrites the oldest element on overflow.
type ring[T any] struct {
	buf  []T
	head int
	size int
}

func newRing[T any](capacity int) ring[T] {
	if capacity <= 0 {
		return ring[T]{}
	}
	return ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) (T, bool) {
	var zero T
	if len(r.buf) == 0 {
		return zero, true
	}
	if r.size == len(r.buf) {
		dropped := r.buf[r.head]
		r.buf[r.head] = v
		r.head = (r.head + 1) % len(r.buf)
		return dropped, true
	}
	r.buf[(r.head+r.size)%len(r.buf)] = v
	r.size++
	return zero, false
}

func (r *ring[T]) pop() (T, bool) {
	var zero T
	if r.size == 0 || len(r.buf) == 0 {
		return zero, false
	}
	v := r.buf[r.head]
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.size--
	return v, true
}

func (r *ring[T]) peek() (T, bool) {
	if r.size == 0 || len(r.buf) == 0 {
		var zero T
		return zero, false
	}
	return r.buf[r.head], true
}

func (r *ring[T]) len() int      { return r.size }
func (r *ring[T]) capacity() int { return len(r.buf) }

func (r *ring[T]) forEach(fn func(T)) {
	for i := 0; i < r.size; i++ {
		fn(r.buf[(r.head+i)%len(r.buf)])
	}
}

var (
	metricsOnce     sync.Once
	queueMetricsVal *queueMetrics
)

type queueMetrics struct {
	published metric.Int64Counter
	dropped   metric.Int64Counter
}

func sharedQueueMetrics() *queueMetrics {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("anchorplatform/events")
		published, err := meter.Int64Counter("anchor.events.published")
		if err != nil {
			published, _ = noop.NewMeterProvider().Meter("anchorplatform/events").Int64Counter("anchor.events.published")
		}
		dropped, err := meter.Int64Counter("anchor.events.dropped")
		if err != nil {
			dropped, _ = noop.NewMeterProvider().Meter("anchorplatform/events").Int64Counter("anchor.events.dropped")
		}
		queueMetricsVal = &queueMetrics{published: published, dropped: dropped}
	})
	return queueMetricsVal
}

func (m *queueMetrics) recordPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", eventType)))
}

func (m *queueMetrics) recordDropped(reason string, count int) {
	if m == nil || m.dropped == nil || count <= 0 {
		return
	}
	m.dropped.Add(context.Background(), int64(count), metric.WithAttributes(attribute.String("reason", reason)))
}
