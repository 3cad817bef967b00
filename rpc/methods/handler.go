// Package methods implements the JSON-RPC methods that drive a transaction
// through its lifecycle.
package methods

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"anchorplatform/core/events"
	"anchorplatform/core/types"
	"anchorplatform/observability/logging"
)

// Handler serves one RPC method.
type Handler interface {
	Method() string
	Handle(ctx context.Context, params json.RawMessage) (any, error)
}

// RequestBase carries the fields shared by every state-changing request.
type RequestBase struct {
	TransactionID        string     `json:"transaction_id"`
	Message              string     `json:"message,omitempty"`
	UserActionRequiredBy *time.Time `json:"user_action_required_by,omitempty"`
}

func (r *RequestBase) base() *RequestBase { return r }

// Validate checks the shared fields.
func (r *RequestBase) Validate() error {
	if strings.TrimSpace(r.TransactionID) == "" {
		return fmt.Errorf("transaction_id is required")
	}
	return nil
}

type request interface {
	base() *RequestBase
}

// transition is the per-method part of a state-changing call. The base
// dispatch owns loading, guarding, persisting and publishing.
type transition[R request] interface {
	method() string
	supportedStatuses(tx *types.Transaction) []types.Status
	validate(ctx context.Context, tx *types.Transaction, req R) error
	nextStatus(ctx context.Context, tx *types.Transaction, req R) (types.Status, error)
	update(ctx context.Context, tx *types.Transaction, req R) error
}

// afterSaver is implemented by transitions that publish extra events once
// the transaction is persisted.
type afterSaver[R request] interface {
	afterSave(ctx context.Context, tx *types.Transaction, req R) error
}

type statusHandler[R request] struct {
	deps       *Deps
	newRequest func() R
	t          transition[R]
}

func newStatusHandler[R request](deps *Deps, newRequest func() R, t transition[R]) *statusHandler[R] {
	return &statusHandler[R]{deps: deps, newRequest: newRequest, t: t}
}

func (h *statusHandler[R]) Method() string { return h.t.method() }

func (h *statusHandler[R]) Handle(ctx context.Context, params json.RawMessage) (any, error) {
	req := h.newRequest()
	if err := decodeParams(params, req); err != nil {
		return nil, err
	}
	return h.handle(ctx, req)
}

func (h *statusHandler[R]) handle(ctx context.Context, req R) (*types.TransactionView, error) {
	base := req.base()
	tx, store, err := h.deps.findTransaction(ctx, base.TransactionID)
	if err != nil {
		return nil, err
	}
	if !containsStatus(h.t.supportedStatuses(tx), tx.Status) {
		return nil, unsupported(h.t.method(), tx)
	}
	if err := h.deps.Validator.Validate(req); err != nil {
		return nil, invalidParams(err)
	}
	if err := h.t.validate(ctx, tx.Clone(), req); err != nil {
		return nil, invalidParams(err)
	}

	work := tx.Clone()
	next, err := h.t.nextStatus(ctx, work, req)
	if err != nil {
		return nil, invalidParams(err)
	}
	if next.IsError() && strings.TrimSpace(base.Message) == "" {
		return nil, InvalidParamsf("message is required")
	}
	if work.Status.IsError() && !next.IsError() {
		work.Message = ""
	}
	if base.Message != "" {
		work.Message = base.Message
	}
	if err := h.t.update(ctx, work, req); err != nil {
		return nil, AsError(err)
	}
	if base.UserActionRequiredBy != nil {
		by := base.UserActionRequiredBy.UTC()
		work.UserActionRequiredBy = &by
	}

	now := h.deps.Now().UTC()
	work.Status = next
	work.UpdatedAt = now
	if next.IsFinal() && work.CompletedAt == nil {
		work.CompletedAt = &now
	}
	if err := store.Save(ctx, work); err != nil {
		return nil, Internal(err, "Failed to save transaction with id[%s]", work.ID)
	}

	view := types.NewTransactionView(work)
	if hook, ok := h.t.(afterSaver[R]); ok {
		// The transaction is already persisted, so hook failures are only logged.
		if err := hook.afterSave(ctx, work, req); err != nil {
			h.deps.Logger.Warn("post-save hook failed",
				slog.String("method", h.t.method()),
				slog.String("transaction_id", work.ID),
				slog.Any("error", err))
		}
	}
	evt := events.NewTransactionEvent(events.TypeTransactionStatusChanged, view, now)
	if err := h.deps.Events.Publish(ctx, evt); err != nil {
		return nil, Internal(err, "Failed to publish event for transaction with id[%s]", work.ID)
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.TransactionHandled(work.Protocol, h.t.method())
	}
	h.deps.Logger.Info("transaction updated",
		slog.String("method", h.t.method()),
		slog.String("transaction_id", work.ID),
		slog.String("sep", string(work.Protocol)),
		slog.String("from", string(tx.Status)),
		slog.String("to", string(next)),
		logging.MaskField("destination_account", work.DestinationAccount),
		logging.MaskField("memo", work.Memo))
	return view, nil
}

func unsupported(method string, tx *types.Transaction) *Error {
	kind := "null"
	if tx.Protocol.Valid() {
		kind = string(tx.Kind)
	}
	return InvalidRequestf("RPC method[%s] is not supported. Status[%s], kind[%s], protocol[%s], funds received[%t]",
		method, tx.Status, kind, tx.Protocol, tx.FundsReceived())
}

func containsStatus(set []types.Status, status types.Status) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

// decodeParams accepts either a params object or a single element array
// holding one.
func decodeParams(raw json.RawMessage, into any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return InvalidParamsf("parameter object required")
	}
	if trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return InvalidParamsf("invalid params: %v", err)
		}
		if len(list) != 1 {
			return InvalidParamsf("parameter object required")
		}
		trimmed = bytes.TrimSpace(list[0])
	}
	if err := json.Unmarshal(trimmed, into); err != nil {
		return InvalidParamsf("invalid params: %v", err)
	}
	return nil
}

// kindLabel renders a kind the way refund errors name it, e.g. RECEIVE.
func kindLabel(kind types.Kind) string {
	return strings.ToUpper(strings.ReplaceAll(string(kind), "-", "_"))
}
