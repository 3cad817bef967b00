package methods

import (
	"context"

	"anchorplatform/core/types"
)

type notifyTrustSet struct {
	deps *Deps
}

func (t *notifyTrustSet) method() string { return MethodNotifyTrustSet }

func (t *notifyTrustSet) supportedStatuses(tx *types.Transaction) []types.Status {
	if tx.Protocol == types.ProtocolSEP24 && tx.Kind == types.KindDeposit {
		return statuses(types.StatusPendingTrust)
	}
	return nil
}

func (t *notifyTrustSet) validate(context.Context, *types.Transaction, *NotifyTrustSetRequest) error {
	return nil
}

func (t *notifyTrustSet) nextStatus(_ context.Context, _ *types.Transaction, req *NotifyTrustSetRequest) (types.Status, error) {
	if t.deps.custodyEnabled() && req.Success {
		return types.StatusPendingStellar, nil
	}
	return types.StatusPendingAnchor, nil
}

func (t *notifyTrustSet) update(ctx context.Context, tx *types.Transaction, req *NotifyTrustSetRequest) error {
	if !t.deps.custodyEnabled() || !req.Success {
		return nil
	}
	if err := t.deps.Custody.CreateTransactionPayment(ctx, tx.ID); err != nil {
		return Internal(err, "Failed to create custody payment for transaction with id[%s]", tx.ID)
	}
	return nil
}

type notifyTransactionOnHold struct {
	deps *Deps
}

func (t *notifyTransactionOnHold) method() string { return MethodNotifyTransactionOnHold }

func (t *notifyTransactionOnHold) supportedStatuses(tx *types.Transaction) []types.Status {
	withdrawal := false
	switch tx.Protocol {
	case types.ProtocolSEP6:
		withdrawal = tx.Kind.IsWithdrawal()
	case types.ProtocolSEP24:
		withdrawal = tx.Kind == types.KindWithdrawal
	default:
		return nil
	}
	out := statuses(types.StatusPendingUserTransferStart)
	if withdrawal {
		out = append(out, types.StatusPendingAnchor)
	}
	return out
}

func (t *notifyTransactionOnHold) validate(context.Context, *types.Transaction, *NotifyTransactionOnHoldRequest) error {
	return nil
}

func (t *notifyTransactionOnHold) nextStatus(context.Context, *types.Transaction, *NotifyTransactionOnHoldRequest) (types.Status, error) {
	return types.StatusOnHold, nil
}

func (t *notifyTransactionOnHold) update(_ context.Context, tx *types.Transaction, _ *NotifyTransactionOnHoldRequest) error {
	if tx.TransferReceivedAt == nil {
		now := t.deps.Now().UTC()
		tx.TransferReceivedAt = &now
	}
	return nil
}

type notifyTransactionRecovery struct {
	deps *Deps
}

func (t *notifyTransactionRecovery) method() string { return MethodNotifyTransactionRecovery }

func (t *notifyTransactionRecovery) supportedStatuses(tx *types.Transaction) []types.Status {
	if !tx.Protocol.Valid() || !tx.FundsReceived() {
		return nil
	}
	return statuses(types.StatusError, types.StatusExpired)
}

func (t *notifyTransactionRecovery) validate(context.Context, *types.Transaction, *NotifyTransactionRecoveryRequest) error {
	return nil
}

func (t *notifyTransactionRecovery) nextStatus(_ context.Context, tx *types.Transaction, _ *NotifyTransactionRecoveryRequest) (types.Status, error) {
	if tx.Protocol == types.ProtocolSEP31 {
		return types.StatusPendingReceiver, nil
	}
	return types.StatusPendingAnchor, nil
}

func (t *notifyTransactionRecovery) update(context.Context, *types.Transaction, *NotifyTransactionRecoveryRequest) error {
	return nil
}

type notifyTransactionError struct {
	deps *Deps
}

func (t *notifyTransactionError) method() string { return MethodNotifyTransactionError }

func (t *notifyTransactionError) supportedStatuses(tx *types.Transaction) []types.Status {
	if !tx.Protocol.Valid() {
		return nil
	}
	var out []types.Status
	for _, s := range types.Statuses {
		if !s.IsFinal() && !s.IsError() {
			out = append(out, s)
		}
	}
	return out
}

func (t *notifyTransactionError) validate(context.Context, *types.Transaction, *NotifyTransactionErrorRequest) error {
	return nil
}

func (t *notifyTransactionError) nextStatus(context.Context, *types.Transaction, *NotifyTransactionErrorRequest) (types.Status, error) {
	return types.StatusError, nil
}

func (t *notifyTransactionError) update(context.Context, *types.Transaction, *NotifyTransactionErrorRequest) error {
	return nil
}
