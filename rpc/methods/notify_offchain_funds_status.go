package methods

import (
	"context"

	"anchorplatform/core/types"
)

// withdrawalFunded reports whether tx is a withdrawal whose ledger funds
// arrived, the precondition of every off-ledger payout notification.
func withdrawalFunded(tx *types.Transaction) bool {
	if !tx.FundsReceived() {
		return false
	}
	switch tx.Protocol {
	case types.ProtocolSEP6:
		return tx.Kind.IsWithdrawal()
	case types.ProtocolSEP24:
		return tx.Kind == types.KindWithdrawal
	}
	return false
}

type notifyOffchainFundsPending struct {
	deps *Deps
}

func (t *notifyOffchainFundsPending) method() string { return MethodNotifyOffchainFundsPending }

func (t *notifyOffchainFundsPending) supportedStatuses(tx *types.Transaction) []types.Status {
	if tx.Protocol == types.ProtocolSEP31 {
		return statuses(types.StatusPendingReceiver)
	}
	if withdrawalFunded(tx) {
		return statuses(types.StatusPendingAnchor)
	}
	return nil
}

func (t *notifyOffchainFundsPending) validate(context.Context, *types.Transaction, *NotifyOffchainFundsPendingRequest) error {
	return nil
}

func (t *notifyOffchainFundsPending) nextStatus(context.Context, *types.Transaction, *NotifyOffchainFundsPendingRequest) (types.Status, error) {
	return types.StatusPendingExternal, nil
}

func (t *notifyOffchainFundsPending) update(_ context.Context, tx *types.Transaction, req *NotifyOffchainFundsPendingRequest) error {
	if req.ExternalTransactionID != "" {
		tx.ExternalTransactionID = req.ExternalTransactionID
	}
	return nil
}

type notifyOffchainFundsAvailable struct {
	deps *Deps
}

func (t *notifyOffchainFundsAvailable) method() string { return MethodNotifyOffchainFundsAvailable }

func (t *notifyOffchainFundsAvailable) supportedStatuses(tx *types.Transaction) []types.Status {
	if withdrawalFunded(tx) {
		return statuses(types.StatusPendingAnchor, types.StatusOnHold)
	}
	return nil
}

func (t *notifyOffchainFundsAvailable) validate(context.Context, *types.Transaction, *NotifyOffchainFundsAvailableRequest) error {
	return nil
}

func (t *notifyOffchainFundsAvailable) nextStatus(context.Context, *types.Transaction, *NotifyOffchainFundsAvailableRequest) (types.Status, error) {
	return types.StatusPendingUserTransferComplete, nil
}

func (t *notifyOffchainFundsAvailable) update(_ context.Context, tx *types.Transaction, req *NotifyOffchainFundsAvailableRequest) error {
	if req.ExternalTransactionID != "" {
		tx.ExternalTransactionID = req.ExternalTransactionID
	}
	return nil
}
