package methods

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"anchorplatform/core/types"
)

type doStellarRefund struct {
	deps *Deps
}

func (t *doStellarRefund) method() string { return MethodDoStellarRefund }

func (t *doStellarRefund) supportedStatuses(tx *types.Transaction) []types.Status {
	if !tx.FundsReceived() {
		return nil
	}
	switch tx.Protocol {
	case types.ProtocolSEP6:
		if tx.Kind.IsWithdrawal() {
			return statuses(types.StatusPendingAnchor)
		}
	case types.ProtocolSEP24:
		if tx.Kind == types.KindWithdrawal {
			return statuses(types.StatusPendingAnchor)
		}
	case types.ProtocolSEP31:
		return statuses(types.StatusPendingReceiver)
	}
	return nil
}

func (t *doStellarRefund) validate(_ context.Context, tx *types.Transaction, req *DoStellarRefundRequest) error {
	if !t.deps.custodyEnabled() {
		return InvalidParamsf("RPC method[%s] requires enabled custody integration", MethodDoStellarRefund)
	}
	if req.Refund == nil {
		return errors.New("refund is required")
	}
	if err := validateRefund(t.deps.Assets, req.Refund, tx); err != nil {
		return err
	}
	if tx.Protocol == types.ProtocolSEP31 && tx.HasRefundPayments() {
		return multipleRefunds(tx, MethodDoStellarRefund)
	}
	if _, exists := tx.Refunds.Find(req.Refund.ID); req.Refund.ID != "" && exists {
		return fmt.Errorf("Refund with id[%s] is already recorded", req.Refund.ID)
	}

	total := tx.Refunds.Refunded().
		Add(types.MustDecimal(req.Refund.Amount.Amount)).
		Add(types.MustDecimal(req.Refund.AmountFee.Amount))
	amountIn := types.MustDecimal(tx.AmountIn.Amount)
	if total.GreaterThan(amountIn) {
		return errors.New("Refund amount exceeds amount_in")
	}
	if tx.Protocol == types.ProtocolSEP31 && total.LessThan(amountIn) {
		return errors.New("Refund amount is less than amount_in")
	}
	return nil
}

func (t *doStellarRefund) nextStatus(context.Context, *types.Transaction, *DoStellarRefundRequest) (types.Status, error) {
	return types.StatusPendingStellar, nil
}

func (t *doStellarRefund) update(ctx context.Context, tx *types.Transaction, req *DoStellarRefundRequest) error {
	id := req.Refund.ID
	if id == "" {
		id = uuid.NewString()
	}
	payment := types.RefundPayment{
		ID:     id,
		IDType: types.RefundIDStellar,
		Amount: types.Amount{Amount: req.Refund.Amount.Amount, Asset: tx.AmountIn.Asset},
		Fee:    types.Amount{Amount: req.Refund.AmountFee.Amount, Asset: tx.AmountFee.Asset},
	}
	if tx.Refunds == nil {
		tx.Refunds = &types.Refunds{}
	}
	tx.Refunds.Append(payment, tx.AmountIn.Asset, tx.AmountFee.Asset)

	if err := t.deps.Custody.CreateTransactionRefund(ctx, tx, payment); err != nil {
		return Internal(err, "Failed to create custody refund for transaction with id[%s]", tx.ID)
	}
	return nil
}

func multipleRefunds(tx *types.Transaction, method string) *Error {
	return InvalidParamsf("Multiple refunds aren't supported for kind[%s], protocol[%s] and action[%s]",
		kindLabel(tx.Kind), tx.Protocol, method)
}
