package methods

import (
	"context"
	"errors"
	"fmt"

	"anchorplatform/core/types"
)

type notifyRefundPending struct {
	deps *Deps
}

func (t *notifyRefundPending) method() string { return MethodNotifyRefundPending }

func (t *notifyRefundPending) supportedStatuses(tx *types.Transaction) []types.Status {
	if tx.Protocol != types.ProtocolSEP6 && tx.Protocol != types.ProtocolSEP24 {
		return nil
	}
	if refundsOffLedger(tx) {
		return statuses(types.StatusPendingAnchor)
	}
	return statuses(types.StatusPendingUserTransferComplete, types.StatusPendingExternal)
}

// refundsOffLedger reports whether the refund goes back to the off-ledger
// account, which is the case for deposits.
func refundsOffLedger(tx *types.Transaction) bool {
	if tx.Protocol == types.ProtocolSEP24 {
		return tx.Kind == types.KindDeposit
	}
	return tx.Kind.IsDeposit()
}

// validate only inspects the refund of deposits. A withdrawal refund is
// reported later through notify_refund_sent once its ledger payment exists.
func (t *notifyRefundPending) validate(_ context.Context, tx *types.Transaction, req *NotifyRefundPendingRequest) error {
	if !refundsOffLedger(tx) {
		return nil
	}
	if req.Refund == nil {
		return errors.New("refund must not be null")
	}
	if req.Refund.ID == "" {
		return errors.New("refund.id is required")
	}
	if err := validateRefund(t.deps.Assets, req.Refund, tx); err != nil {
		return err
	}
	if _, exists := tx.Refunds.Find(req.Refund.ID); exists {
		return fmt.Errorf("Refund with id[%s] is already recorded", req.Refund.ID)
	}
	total := tx.Refunds.Refunded().
		Add(types.MustDecimal(req.Refund.Amount.Amount)).
		Add(types.MustDecimal(req.Refund.AmountFee.Amount))
	if total.GreaterThan(types.MustDecimal(tx.AmountIn.Amount)) {
		return errors.New("Refund amount exceeds amount_in")
	}
	return nil
}

func (t *notifyRefundPending) nextStatus(_ context.Context, tx *types.Transaction, _ *NotifyRefundPendingRequest) (types.Status, error) {
	if refundsOffLedger(tx) {
		return types.StatusPendingExternal, nil
	}
	return types.StatusPendingAnchor, nil
}

func (t *notifyRefundPending) update(_ context.Context, tx *types.Transaction, req *NotifyRefundPendingRequest) error {
	if !refundsOffLedger(tx) {
		return nil
	}
	if tx.Refunds == nil {
		tx.Refunds = &types.Refunds{}
	}
	tx.Refunds.Append(types.RefundPayment{
		ID:     req.Refund.ID,
		IDType: types.RefundIDExternal,
		Amount: types.Amount{Amount: req.Refund.Amount.Amount, Asset: tx.AmountIn.Asset},
		Fee:    types.Amount{Amount: req.Refund.AmountFee.Amount, Asset: tx.AmountFee.Asset},
	}, tx.AmountIn.Asset, tx.AmountFee.Asset)
	return nil
}
