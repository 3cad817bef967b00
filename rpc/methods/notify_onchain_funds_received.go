package methods

import (
	"context"
	"errors"

	"anchorplatform/core/types"
)

type notifyOnchainFundsReceived struct {
	deps *Deps
}

func (t *notifyOnchainFundsReceived) method() string { return MethodNotifyOnchainFundsReceived }

func (t *notifyOnchainFundsReceived) supportedStatuses(tx *types.Transaction) []types.Status {
	if tx.FundsReceived() {
		return nil
	}
	switch tx.Protocol {
	case types.ProtocolSEP6:
		if tx.Kind.IsWithdrawal() {
			return statuses(types.StatusPendingUserTransferStart, types.StatusOnHold)
		}
	case types.ProtocolSEP24:
		if tx.Kind == types.KindWithdrawal {
			return statuses(types.StatusPendingUserTransferStart, types.StatusOnHold)
		}
	case types.ProtocolSEP31:
		return statuses(types.StatusPendingSender)
	}
	return nil
}

func (t *notifyOnchainFundsReceived) validate(_ context.Context, tx *types.Transaction, req *NotifyOnchainFundsReceivedRequest) error {
	all := req.AmountIn != nil && req.AmountOut != nil && req.FeeDetails != nil
	none := req.AmountIn == nil && req.AmountOut == nil && req.FeeDetails == nil
	onlyIn := req.AmountIn != nil && req.AmountOut == nil && req.FeeDetails == nil
	if !all && !none && !onlyIn {
		return errors.New("Invalid amounts combination provided: all, none or only amount_in should be set")
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
	if req.FeeDetails != nil {
		if err := validateFeeDetails(catalog, req.FeeDetails, tx); err != nil {
			return err
		}
	}
	return nil
}

func (t *notifyOnchainFundsReceived) nextStatus(_ context.Context, tx *types.Transaction, _ *NotifyOnchainFundsReceivedRequest) (types.Status, error) {
	if tx.Protocol == types.ProtocolSEP31 {
		return types.StatusPendingReceiver, nil
	}
	return types.StatusPendingAnchor, nil
}

func (t *notifyOnchainFundsReceived) update(ctx context.Context, tx *types.Transaction, req *NotifyOnchainFundsReceivedRequest) error {
	stx, err := t.deps.ledgerTransaction(ctx, req.StellarTransactionID)
	if err != nil {
		return err
	}
	tx.AddStellarTransaction(*stx)
	received := stx.CreatedAt.UTC()
	tx.TransferReceivedAt = &received
	if tx.Protocol == types.ProtocolSEP31 && len(stx.Payments) > 0 {
		tx.SourceAccount = stx.Payments[0].SourceAccount
	}

	if req.AmountIn != nil {
		tx.AmountIn.Amount = req.AmountIn.Amount
	}
	if req.AmountOut != nil {
		tx.AmountOut.Amount = req.AmountOut.Amount
	}
	if req.FeeDetails != nil {
		applyFee(tx, req.FeeDetails)
	}
	return nil
}
