package methods

import (
	"context"
	"errors"

	"anchorplatform/core/types"
)

type notifyInteractiveFlowCompleted struct {
	deps *Deps
}

func (t *notifyInteractiveFlowCompleted) method() string { return MethodNotifyInteractiveFlowCompleted }

func (t *notifyInteractiveFlowCompleted) supportedStatuses(tx *types.Transaction) []types.Status {
	if tx.Protocol == types.ProtocolSEP24 {
		return statuses(types.StatusIncomplete)
	}
	return nil
}

// validate checks each amount against the side of the ledger it lives on:
// a deposit takes off-ledger funds in and pays ledger funds out, a
// withdrawal the reverse. The fee is charged in the incoming asset.
func (t *notifyInteractiveFlowCompleted) validate(_ context.Context, tx *types.Transaction, req *NotifyInteractiveFlowCompletedRequest) error {
	catalog := t.deps.Assets
	deposit := tx.Kind == types.KindDeposit

	if err := catalog.ValidateAmount("amount_in", *req.AmountIn, false); err != nil {
		return err
	}
	if err := checkLedgerSide(catalog, "amount_in", req.AmountIn.Asset, !deposit); err != nil {
		return err
	}
	if err := catalog.ValidateAmount("amount_out", *req.AmountOut, false); err != nil {
		return err
	}
	if err := checkLedgerSide(catalog, "amount_out", req.AmountOut.Asset, deposit); err != nil {
		return err
	}
	if err := catalog.ValidateAmount("amount_fee", *req.AmountFee, true); err != nil {
		return err
	}
	if err := checkLedgerSide(catalog, "amount_fee", req.AmountFee.Asset, !deposit); err != nil {
		return err
	}
	if req.AmountExpected != nil {
		expected := types.Amount{Amount: req.AmountExpected.Amount, Asset: req.AmountIn.Asset}
		if err := catalog.ValidateAmount("amount_expected", expected, false); err != nil {
			return err
		}
	}
	return nil
}

func checkLedgerSide(catalog AssetResolver, field, asset string, stellar bool) error {
	switch {
	case stellar && !catalog.IsStellar(asset):
		return errors.New(field + ".asset should be stellar asset")
	case !stellar && catalog.IsStellar(asset):
		return errors.New(field + ".asset should be non-stellar asset")
	}
	return nil
}

func (t *notifyInteractiveFlowCompleted) nextStatus(context.Context, *types.Transaction, *NotifyInteractiveFlowCompletedRequest) (types.Status, error) {
	return types.StatusPendingAnchor, nil
}

func (t *notifyInteractiveFlowCompleted) update(_ context.Context, tx *types.Transaction, req *NotifyInteractiveFlowCompletedRequest) error {
	tx.AmountIn = *req.AmountIn
	tx.AmountOut = *req.AmountOut
	tx.AmountFee = *req.AmountFee
	tx.FeeDetails = nil
	tx.AmountExpected = req.AmountIn.Amount
	if req.AmountExpected != nil {
		tx.AmountExpected = req.AmountExpected.Amount
	}
	return nil
}
