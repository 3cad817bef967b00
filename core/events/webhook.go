package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultMaxAttempts = 5
	maxBackoff         = 5 * time.Minute
	signatureHeader    = "X-Anchor-Signature"
)

// Endpoint is a webhook subscriber.
type Endpoint struct {
	URL    string
	Secret string
	// Types restricts delivery to the listed event types. Empty means all.
	Types []Type
}

func (e Endpoint) accepts(t Type) bool {
	if len(e.Types) == 0 {
		return true
	}
	for _, allowed := range e.Types {
		if allowed == t {
			return true
		}
	}
	return false
}

// DeliveryRecorder observes webhook delivery attempts.
type DeliveryRecorder interface {
	RecordDelivery(ok bool)
}

// DelivererConfig configures webhook delivery.
type DelivererConfig struct {
	Endpoints   []Endpoint
	MaxAttempts int
	BaseBackoff time.Duration
	Timeout     time.Duration
	HTTPClient  *http.Client
	Recorder    DeliveryRecorder
	Logger      *slog.Logger
	Now         func() time.Time
}

// Deliverer drains a Queue and POSTs each event to every matching endpoint.
// Delivery is at-least-once; failed posts are retried with exponential backoff.
type Deliverer struct {
	queue     *Queue
	endpoints map[string]Endpoint
	order     []string
	client    *http.Client
	attempts  int
	backoff   time.Duration
	recorder  DeliveryRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewDeliverer wires a deliverer to queue.
func NewDeliverer(queue *Queue, cfg DelivererConfig) (*Deliverer, error) {
	if queue == nil {
		return nil, fmt.Errorf("events: queue required")
	}
	d := &Deliverer{
		queue:     queue,
		endpoints: make(map[string]Endpoint, len(cfg.Endpoints)),
		client:    cfg.HTTPClient,
		attempts:  cfg.MaxAttempts,
		backoff:   cfg.BaseBackoff,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	for _, ep := range cfg.Endpoints {
		if ep.URL == "" {
			return nil, fmt.Errorf("events: webhook url required")
		}
		if _, ok := d.endpoints[ep.URL]; ok {
			return nil, fmt.Errorf("events: duplicate webhook %s", ep.URL)
		}
		d.endpoints[ep.URL] = ep
		d.order = append(d.order, ep.URL)
	}
	if d.client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		d.client = &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if d.attempts <= 0 {
		d.attempts = defaultMaxAttempts
	}
	if d.backoff <= 0 {
		d.backoff = time.Second
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d, nil
}

// Run processes delivery tasks until ctx is cancelled.
func (d *Deliverer) Run(ctx context.Context) {
	for {
		task, ok := d.queue.Dequeue(ctx)
		if !ok {
			return
		}
		if task.Endpoint == "" {
			d.fanOut(task)
			continue
		}
		d.deliver(ctx, task)
	}
}

func (d *Deliverer) fanOut(task Task) {
	for _, url := range d.order {
		if !d.endpoints[url].accepts(task.Event.Type) {
			continue
		}
		d.queue.Requeue(Task{Event: task.Event, Endpoint: url})
	}
}

func (d *Deliverer) deliver(ctx context.Context, task Task) {
	ep, ok := d.endpoints[task.Endpoint]
	if !ok {
		return
	}
	payload, err := json.Marshal(task.Event)
	if err != nil {
		d.logger.Error("encode lifecycle event", slog.String("event_id", task.Event.ID), slog.Any("error", err))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(payload))
	if err != nil {
		d.logger.Error("build webhook request", slog.String("url", ep.URL), slog.Any("error", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if ep.Secret != "" {
		req.Header.Set(signatureHeader, Sign(ep.Secret, payload))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.record(false)
		d.retryLater(task, err.Error())
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.record(false)
		d.retryLater(task, resp.Status)
		return
	}
	d.record(true)
	d.logger.Debug("webhook delivered",
		slog.String("event_id", task.Event.ID),
		slog.String("url", ep.URL),
		slog.Int("attempt", task.Attempt+1))
}

func (d *Deliverer) record(ok bool) {
	if d.recorder != nil {
		d.recorder.RecordDelivery(ok)
	}
}

func (d *Deliverer) retryLater(task Task, reason string) {
	attempt := task.Attempt + 1
	if attempt >= d.attempts {
		d.logger.Warn("webhook delivery abandoned",
			slog.String("event_id", task.Event.ID),
			slog.String("url", task.Endpoint),
			slog.Int("attempts", attempt),
			slog.String("reason", reason))
		return
	}
	task.Attempt = attempt
	task.NotBefore = d.now().Add(d.backoffDuration(attempt))
	d.queue.Requeue(task)
}

func (d *Deliverer) backoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	delay := d.backoff * time.Duration(1<<uint(attempt-1))
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
