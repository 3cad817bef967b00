package methods

import (
	"context"
	"errors"

	"anchorplatform/core/types"
)

type notifyAmountsUpdated struct {
	deps *Deps
}

func (t *notifyAmountsUpdated) method() string { return MethodNotifyAmountsUpdated }

func (t *notifyAmountsUpdated) supportedStatuses(tx *types.Transaction) []types.Status {
	if !tx.FundsReceived() {
		return nil
	}
	switch {
	case tx.Protocol == types.ProtocolSEP6 && tx.Kind.IsWithdrawal():
		return statuses(types.StatusPendingAnchor)
	case tx.Protocol == types.ProtocolSEP24 && tx.Kind == types.KindWithdrawal:
		return statuses(types.StatusPendingAnchor)
	}
	return nil
}

func (t *notifyAmountsUpdated) validate(_ context.Context, tx *types.Transaction, req *NotifyAmountsUpdatedRequest) error {
	if (req.AmountFee == nil) == (req.FeeDetails == nil) {
		return errors.New("Either amount_fee or fee_details must be set")
	}
	catalog := t.deps.Assets
	if err := catalog.ValidateAmount("amount_out", types.Amount{Amount: req.AmountOut.Amount, Asset: tx.AmountOut.Asset}, true); err != nil {
		return err
	}
	if req.AmountFee != nil {
		return catalog.ValidateAmount("amount_fee", types.Amount{Amount: req.AmountFee.Amount, Asset: tx.AmountFee.Asset}, true)
	}
	return validateFeeDetails(catalog, req.FeeDetails, tx)
}

func (t *notifyAmountsUpdated) nextStatus(context.Context, *types.Transaction, *NotifyAmountsUpdatedRequest) (types.Status, error) {
	return types.StatusPendingAnchor, nil
}

func (t *notifyAmountsUpdated) update(_ context.Context, tx *types.Transaction, req *NotifyAmountsUpdatedRequest) error {
	tx.AmountOut.Amount = req.AmountOut.Amount
	if req.AmountFee != nil {
		tx.AmountFee.Amount = req.AmountFee.Amount
		tx.FeeDetails = nil
		return nil
	}
	applyFee(tx, req.FeeDetails)
	return nil
}

// notifyAmountsAssetsUpdated replaces amounts together with their assets,
// which SEP-6 allows while the quote is still being negotiated.
type notifyAmountsAssetsUpdated struct {
	deps *Deps
}

func (t *notifyAmountsAssetsUpdated) method() string { return MethodNotifyAmountsAssetsUpdated }

func (t *notifyAmountsAssetsUpdated) supportedStatuses(tx *types.Transaction) []types.Status {
	if tx.Protocol != types.ProtocolSEP6 {
		return nil
	}
	return statuses(types.StatusIncomplete, types.StatusPendingAnchor, types.StatusPendingCustomerInfoUpdate)
}

func (t *notifyAmountsAssetsUpdated) validate(_ context.Context, _ *types.Transaction, req *NotifyAmountsAssetsUpdatedRequest) error {
	catalog := t.deps.Assets
	if err := catalog.ValidateAmount("amount_in", *req.AmountIn, false); err != nil {
		return err
	}
	if err := catalog.ValidateAmount("amount_out", *req.AmountOut, false); err != nil {
		return err
	}
	return catalog.ValidateAmount("amount_fee", *req.AmountFee, true)
}

func (t *notifyAmountsAssetsUpdated) nextStatus(context.Context, *types.Transaction, *NotifyAmountsAssetsUpdatedRequest) (types.Status, error) {
	return types.StatusPendingAnchor, nil
}

func (t *notifyAmountsAssetsUpdated) update(_ context.Context, tx *types.Transaction, req *NotifyAmountsAssetsUpdatedRequest) error {
	tx.AmountIn = *req.AmountIn
	tx.AmountOut = *req.AmountOut
	tx.AmountFee = *req.AmountFee
	tx.FeeDetails = nil
	return nil
}
