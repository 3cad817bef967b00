package methods

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"anchorplatform/core/types"
)

type notifyRefundSent struct {
	deps *Deps
}

func (t *notifyRefundSent) method() string { return MethodNotifyRefundSent }

func (t *notifyRefundSent) supportedStatuses(tx *types.Transaction) []types.Status {
	switch tx.Protocol {
	case types.ProtocolSEP6:
		return refundSentStatuses(tx, tx.Kind.IsDeposit(), tx.Kind.IsWithdrawal())
	case types.ProtocolSEP24:
		return refundSentStatuses(tx, tx.Kind == types.KindDeposit, tx.Kind == types.KindWithdrawal)
	case types.ProtocolSEP31:
		return statuses(types.StatusPendingStellar, types.StatusPendingReceiver)
	}
	return nil
}

// refundSentStatuses lists the refund confirmation points. A deposit refund
// is only possible once the off-ledger funds arrived.
func refundSentStatuses(tx *types.Transaction, deposit, withdrawal bool) []types.Status {
	fr := tx.FundsReceived()
	switch {
	case deposit:
		if fr {
			return statuses(types.StatusPendingExternal, types.StatusPendingAnchor)
		}
	case withdrawal:
		out := statuses(types.StatusPendingStellar)
		if fr {
			out = append(out, types.StatusPendingAnchor)
		}
		return out
	}
	return nil
}

func (t *notifyRefundSent) validate(_ context.Context, tx *types.Transaction, req *NotifyRefundSentRequest) error {
	if req.Refund == nil {
		if tx.Protocol == types.ProtocolSEP31 || tx.Status == types.StatusPendingAnchor {
			return errors.New("refund is required")
		}
		return nil
	}
	if req.Refund.ID == "" {
		return errors.New("refund.id is required")
	}
	if err := validateRefund(t.deps.Assets, req.Refund, tx); err != nil {
		return err
	}
	switch {
	case tx.Protocol == types.ProtocolSEP31 && tx.Status == types.StatusPendingReceiver && tx.HasRefundPayments():
		return multipleRefunds(tx, MethodNotifyRefundSent)
	case tx.Protocol != types.ProtocolSEP31 && tx.Status == types.StatusPendingStellar:
		if _, ok := tx.Refunds.Find(req.Refund.ID); !ok {
			return errors.New("Invalid refund id")
		}
	case tx.Protocol != types.ProtocolSEP31 && tx.Status == types.StatusPendingAnchor:
		if _, ok := tx.Refunds.Find(req.Refund.ID); ok {
			return fmt.Errorf("Refund with id[%s] is already recorded", req.Refund.ID)
		}
	}
	if _, err := t.refundedTotal(tx, req); err != nil {
		return err
	}
	return nil
}

func (t *notifyRefundSent) nextStatus(_ context.Context, tx *types.Transaction, req *NotifyRefundSentRequest) (types.Status, error) {
	total, err := t.refundedTotal(tx, req)
	if err != nil {
		return "", err
	}
	if total.Equal(types.MustDecimal(tx.AmountIn.Amount)) {
		return types.StatusRefunded, nil
	}
	return types.StatusPendingAnchor, nil
}

// refundedTotal is the refunded amount once the request payment is applied.
func (t *notifyRefundSent) refundedTotal(tx *types.Transaction, req *NotifyRefundSentRequest) (decimal.Decimal, error) {
	var total decimal.Decimal
	if req.Refund == nil {
		total = tx.Refunds.Refunded()
	} else {
		refunds := t.applyRefund(tx.Clone(), req)
		total = refunds.Refunded()
	}
	if total.GreaterThan(types.MustDecimal(tx.AmountIn.Amount)) {
		return decimal.Zero, errors.New("Refund amount exceeds amount_in")
	}
	return total, nil
}

func (t *notifyRefundSent) update(_ context.Context, tx *types.Transaction, req *NotifyRefundSentRequest) error {
	if req.Refund != nil {
		tx.Refunds = t.applyRefund(tx, req)
	}
	return nil
}

// applyRefund records the request payment on tx and returns its refunds.
func (t *notifyRefundSent) applyRefund(tx *types.Transaction, req *NotifyRefundSentRequest) *types.Refunds {
	idType := types.RefundIDStellar
	if tx.Kind.IsDeposit() {
		idType = types.RefundIDExternal
	}
	payment := types.RefundPayment{
		ID:     req.Refund.ID,
		IDType: idType,
		Amount: types.Amount{Amount: req.Refund.Amount.Amount, Asset: tx.AmountIn.Asset},
		Fee:    types.Amount{Amount: req.Refund.AmountFee.Amount, Asset: tx.AmountFee.Asset},
	}
	if tx.Refunds == nil || tx.Protocol == types.ProtocolSEP31 {
		tx.Refunds = &types.Refunds{}
	}
	tx.Refunds.Upsert(payment, tx.AmountIn.Asset, tx.AmountFee.Asset)
	return tx.Refunds
}
