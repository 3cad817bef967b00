package methods

import (
	"context"

	"anchorplatform/core/types"
)

type notifyOffchainFundsSent struct {
	deps *Deps
}

func (t *notifyOffchainFundsSent) method() string { return MethodNotifyOffchainFundsSent }

func (t *notifyOffchainFundsSent) supportedStatuses(tx *types.Transaction) []types.Status {
	switch tx.Protocol {
	case types.ProtocolSEP6:
		return offchainSentStatuses(tx, tx.Kind.IsDeposit(), tx.Kind.IsWithdrawal())
	case types.ProtocolSEP24:
		return offchainSentStatuses(tx, tx.Kind == types.KindDeposit, tx.Kind == types.KindWithdrawal)
	case types.ProtocolSEP31:
		return statuses(types.StatusPendingReceiver, types.StatusPendingExternal)
	}
	return nil
}

func offchainSentStatuses(tx *types.Transaction, deposit, withdrawal bool) []types.Status {
	switch {
	case deposit:
		return statuses(types.StatusPendingUserTransferStart)
	case withdrawal:
		out := statuses(types.StatusPendingUserTransferComplete, types.StatusPendingExternal)
		if tx.FundsReceived() {
			out = append(out, types.StatusPendingAnchor)
		}
		return out
	}
	return nil
}

func (t *notifyOffchainFundsSent) validate(context.Context, *types.Transaction, *NotifyOffchainFundsSentRequest) error {
	return nil
}

func (t *notifyOffchainFundsSent) nextStatus(_ context.Context, tx *types.Transaction, _ *NotifyOffchainFundsSentRequest) (types.Status, error) {
	if tx.Protocol != types.ProtocolSEP31 && tx.Kind.IsDeposit() {
		return types.StatusPendingExternal, nil
	}
	return types.StatusCompleted, nil
}

func (t *notifyOffchainFundsSent) update(_ context.Context, tx *types.Transaction, req *NotifyOffchainFundsSentRequest) error {
	if req.ExternalTransactionID != "" {
		tx.ExternalTransactionID = req.ExternalTransactionID
	}
	if tx.Protocol != types.ProtocolSEP31 && tx.Kind.IsDeposit() {
		at := t.deps.Now().UTC()
		if req.FundsSentAt != nil {
			at = req.FundsSentAt.UTC()
		}
		tx.TransferReceivedAt = &at
	}
	return nil
}
