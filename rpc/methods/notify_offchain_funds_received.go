package methods

import (
	"context"
	"errors"

	"anchorplatform/core/types"
)

type notifyOffchainFundsReceived struct {
	deps *Deps
}

func (t *notifyOffchainFundsReceived) method() string { return MethodNotifyOffchainFundsReceived }

func (t *notifyOffchainFundsReceived) supportedStatuses(tx *types.Transaction) []types.Status {
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
	return statuses(types.StatusPendingUserTransferStart, types.StatusOnHold, types.StatusPendingExternal)
}

func (t *notifyOffchainFundsReceived) validate(_ context.Context, tx *types.Transaction, req *NotifyOffchainFundsReceivedRequest) error {
	hasFee := req.AmountFee != nil || req.FeeDetails != nil
	none := req.AmountIn == nil && req.AmountOut == nil && !hasFee
	all := req.AmountIn != nil && req.AmountOut != nil && hasFee
	onlyIn := req.AmountIn != nil && req.AmountOut == nil && !hasFee
	if !none && !all && !onlyIn {
		return errors.New("Invalid amounts combination provided: all, none or only amount_in should be set")
	}
	if req.AmountFee != nil && req.FeeDetails != nil {
		return errors.New("Either amount_fee or fee_details should be set")
	}

	catalog := t.deps.Assets
	if req.AmountIn != nil {
		if err := catalog.ValidateAmount("amount_in", types.Amount{Amount: req.AmountIn.Amount, Asset: tx.AmountIn.Asset}, false); err != nil {
			return err
		}
	}
	if req.AmountOut != nil {
		if err := catalog.ValidateAmount("amount_out", types.Amount{Amount: req.AmountOut.Amount, Asset: tx.AmountOut.Asset}, false); err != nil {
			return err
		}
	}
	if req.AmountFee != nil {
		if err := catalog.ValidateAmount("amount_fee", types.Amount{Amount: req.AmountFee.Amount, Asset: tx.AmountFee.Asset}, true); err != nil {
			return err
		}
	}
	if req.FeeDetails != nil {
		return validateFeeDetails(catalog, req.FeeDetails, tx)
	}
	return nil
}

func (t *notifyOffchainFundsReceived) nextStatus(context.Context, *types.Transaction, *NotifyOffchainFundsReceivedRequest) (types.Status, error) {
	return types.StatusPendingAnchor, nil
}

func (t *notifyOffchainFundsReceived) update(ctx context.Context, tx *types.Transaction, req *NotifyOffchainFundsReceivedRequest) error {
	if req.ExternalTransactionID != "" {
		tx.ExternalTransactionID = req.ExternalTransactionID
	}
	switch {
	case req.FundsReceivedAt != nil:
		at := req.FundsReceivedAt.UTC()
		tx.TransferReceivedAt = &at
	case tx.TransferReceivedAt == nil:
		now := t.deps.Now().UTC()
		tx.TransferReceivedAt = &now
	}

	if req.AmountIn != nil {
		tx.AmountIn.Amount = req.AmountIn.Amount
	}
	if req.AmountOut != nil {
		tx.AmountOut.Amount = req.AmountOut.Amount
	}
	if req.AmountFee != nil {
		tx.AmountFee.Amount = req.AmountFee.Amount
		tx.FeeDetails = nil
	}
	if req.FeeDetails != nil {
		applyFee(tx, req.FeeDetails)
	}

	if t.deps.custodyEnabled() {
		if err := t.deps.Custody.CreateTransaction(ctx, tx); err != nil {
			return Internal(err, "Failed to create custody transaction for id[%s]", tx.ID)
		}
	}
	return nil
}
