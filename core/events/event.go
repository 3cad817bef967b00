package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"anchorplatform/core/types"
)

// Type names a lifecycle event.
type Type string

const (
	TypeTransactionCreated       Type = "transaction_created"
	TypeTransactionStatusChanged Type = "transaction_status_changed"
	TypeCustomerUpdated          Type = "customer_updated"
)

// Valid reports whether t is a known event type.
func (t Type) Valid() bool {
	switch t {
	case TypeTransactionCreated, TypeTransactionStatusChanged, TypeCustomerUpdated:
		return true
	}
	return false
}

// SepCustomer tags customer events.
const SepCustomer = "12"

// Customer is the customer snapshot carried by customer_updated events.
type Customer struct {
	ID     string `json:"id"`
	Type   string `json:"type,omitempty"`
	Status string `json:"status,omitempty"`
}

// LifecycleEvent is a record describing a transaction creation, status
// change or customer update.
type LifecycleEvent struct {
	ID          string                 `json:"id"`
	Sequence    uint64                 `json:"sequence"`
	Type        Type                   `json:"type"`
	Sep         string                 `json:"sep"`
	Timestamp   time.Time              `json:"timestamp"`
	Transaction *types.TransactionView `json:"transaction,omitempty"`
	Customer    *Customer              `json:"customer,omitempty"`
}

// NewTransactionEvent builds an event of the given type for a transaction projection.
func NewTransactionEvent(kind Type, view *types.TransactionView, at time.Time) LifecycleEvent {
	evt := LifecycleEvent{
		ID:          uuid.NewString(),
		Type:        kind,
		Timestamp:   at.UTC(),
		Transaction: view,
	}
	if view != nil {
		evt.Sep = string(view.Sep)
	}
	return evt
}

// NewCustomerEvent builds a customer_updated event.
func NewCustomerEvent(customer Customer, at time.Time) LifecycleEvent {
	return LifecycleEvent{
		ID:        uuid.NewString(),
		Type:      TypeCustomerUpdated,
		Sep:       SepCustomer,
		Timestamp: at.UTC(),
		Customer:  &customer,
	}
}

// Publisher hands lifecycle events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt LifecycleEvent) error
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, LifecycleEvent) error { return nil }

// PublishRecorder observes successfully published events.
type PublishRecorder interface {
	RecordPublished(eventType string)
}

// RecordingPublisher forwards to Next and reports every accepted event.
type RecordingPublisher struct {
	Next     Publisher
	Recorder PublishRecorder
}

// Publish implements Publisher.
func (p RecordingPublisher) Publish(ctx context.Context, evt LifecycleEvent) error {
	if err := p.Next.Publish(ctx, evt); err != nil {
		return err
	}
	if p.Recorder != nil {
		p.Recorder.RecordPublished(string(evt.Type))
	}
	return nil
}
