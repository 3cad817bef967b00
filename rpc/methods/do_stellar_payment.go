package methods

import (
	"context"

	"anchorplatform/core/types"
)

// fundedDeposit lists pending_anchor for deposits whose off-ledger funds
// arrived, the point where the anchor pays out on the ledger.
func fundedDeposit(tx *types.Transaction, sep6 bool) []types.Status {
	if !tx.FundsReceived() {
		return nil
	}
	switch tx.Protocol {
	case types.ProtocolSEP6:
		if sep6 && tx.Kind.IsDeposit() {
			return statuses(types.StatusPendingAnchor)
		}
	case types.ProtocolSEP24:
		if tx.Kind == types.KindDeposit {
			return statuses(types.StatusPendingAnchor)
		}
	}
	return nil
}

type doStellarPayment struct {
	deps *Deps
}

func (t *doStellarPayment) method() string { return MethodDoStellarPayment }

func (t *doStellarPayment) supportedStatuses(tx *types.Transaction) []types.Status {
	return fundedDeposit(tx, true)
}

func (t *doStellarPayment) validate(context.Context, *types.Transaction, *DoStellarPaymentRequest) error {
	if !t.deps.custodyEnabled() {
		return InvalidParamsf("RPC method[%s] requires enabled custody integration", MethodDoStellarPayment)
	}
	return nil
}

// nextStatus parks the payment in pending_trust until the receiving account
// trusts the asset. A failed lookup counts as a missing trustline.
func (t *doStellarPayment) nextStatus(ctx context.Context, tx *types.Transaction, req *DoStellarPaymentRequest) (types.Status, error) {
	req.trustlineConfigured = t.deps.trustlineConfigured(ctx, tx.DestinationAccount, tx.AmountOut.Asset)
	if req.trustlineConfigured {
		return types.StatusPendingStellar, nil
	}
	return types.StatusPendingTrust, nil
}

func (t *doStellarPayment) update(ctx context.Context, tx *types.Transaction, req *DoStellarPaymentRequest) error {
	if !req.trustlineConfigured {
		return nil
	}
	if err := t.deps.Custody.CreateTransactionPayment(ctx, tx.ID); err != nil {
		return Internal(err, "Failed to create custody payment for transaction with id[%s]", tx.ID)
	}
	return nil
}

type requestTrust struct {
	deps *Deps
}

func (t *requestTrust) method() string { return MethodRequestTrust }

func (t *requestTrust) supportedStatuses(tx *types.Transaction) []types.Status {
	return fundedDeposit(tx, false)
}

func (t *requestTrust) validate(context.Context, *types.Transaction, *RequestTrustRequest) error {
	if t.deps.custodyEnabled() {
		return InvalidParamsf("RPC method[%s] requires disabled custody integration", MethodRequestTrust)
	}
	return nil
}

func (t *requestTrust) nextStatus(context.Context, *types.Transaction, *RequestTrustRequest) (types.Status, error) {
	return types.StatusPendingTrust, nil
}

func (t *requestTrust) update(context.Context, *types.Transaction, *RequestTrustRequest) error {
	return nil
}
