package methods

import (
	"context"

	"anchorplatform/core/types"
)

type notifyOnchainFundsSent struct {
	deps *Deps
}

func (t *notifyOnchainFundsSent) method() string { return MethodNotifyOnchainFundsSent }

func (t *notifyOnchainFundsSent) supportedStatuses(tx *types.Transaction) []types.Status {
	deposit := false
	switch tx.Protocol {
	case types.ProtocolSEP6:
		deposit = tx.Kind.IsDeposit()
	case types.ProtocolSEP24:
		deposit = tx.Kind == types.KindDeposit
	}
	if !deposit {
		return nil
	}
	out := statuses(types.StatusPendingStellar)
	if tx.FundsReceived() {
		out = append(out, types.StatusPendingAnchor)
	}
	return out
}

func (t *notifyOnchainFundsSent) validate(context.Context, *types.Transaction, *NotifyOnchainFundsSentRequest) error {
	return nil
}

func (t *notifyOnchainFundsSent) nextStatus(context.Context, *types.Transaction, *NotifyOnchainFundsSentRequest) (types.Status, error) {
	return types.StatusCompleted, nil
}

// update records the outgoing ledger payment. transfer_received_at keeps the
// time the off-ledger funds arrived.
func (t *notifyOnchainFundsSent) update(ctx context.Context, tx *types.Transaction, req *NotifyOnchainFundsSentRequest) error {
	stx, err := t.deps.ledgerTransaction(ctx, req.StellarTransactionID)
	if err != nil {
		return err
	}
	tx.AddStellarTransaction(*stx)
	return nil
}
