package methods

import (
	"context"
	"errors"
	"fmt"

	"anchorplatform/core/types"
)

type requestOnchainFunds struct {
	deps *Deps
}

func (t *requestOnchainFunds) method() string { return MethodRequestOnchainFunds }

func (t *requestOnchainFunds) supportedStatuses(tx *types.Transaction) []types.Status {
	fr := tx.FundsReceived()
	switch tx.Protocol {
	case types.ProtocolSEP6:
		if !tx.Kind.IsWithdrawal() {
			return nil
		}
		out := statuses(types.StatusIncomplete, types.StatusPendingCustomerInfoUpdate)
		if !fr {
			out = append(out, types.StatusPendingAnchor)
		}
		return out
	case types.ProtocolSEP24:
		if tx.Kind != types.KindWithdrawal {
			return nil
		}
		out := statuses(types.StatusIncomplete)
		if !fr {
			out = append(out, types.StatusPendingAnchor)
		}
		return out
	case types.ProtocolSEP31:
		if !fr {
			return statuses(types.StatusPendingReceiver)
		}
	}
	return nil
}

func (t *requestOnchainFunds) validate(_ context.Context, tx *types.Transaction, req *RequestOnchainFundsRequest) error {
	catalog := t.deps.Assets
	if req.AmountIn != nil {
		if !catalog.IsStellar(req.AmountIn.Asset) {
			return errors.New("amount_in.asset should be stellar asset")
		}
		if err := catalog.ValidateAmount("amount_in", *req.AmountIn, false); err != nil {
			return err
		}
	}
	if req.AmountOut != nil {
		if catalog.IsStellar(req.AmountOut.Asset) {
			return errors.New("amount_out.asset should be non-stellar asset")
		}
		if err := catalog.ValidateAmount("amount_out", *req.AmountOut, false); err != nil {
			return err
		}
	}
	if req.AmountFee != nil {
		if !catalog.IsStellar(req.AmountFee.Asset) {
			return errors.New("amount_fee.asset should be stellar asset")
		}
		if err := catalog.ValidateAmount("amount_fee", *req.AmountFee, true); err != nil {
			return err
		}
	}
	if req.FeeDetails != nil {
		if !catalog.IsStellar(req.FeeDetails.Asset) {
			return errors.New("fee_details.asset should be stellar asset")
		}
		if err := validateFeeDetails(catalog, req.FeeDetails, nil); err != nil {
			return err
		}
	}
	fee, err := feeFromRequest(req.AmountFee, req.FeeDetails)
	if err != nil {
		return err
	}
	if req.AmountExpected != nil {
		asset := tx.AmountIn.Asset
		if req.AmountIn != nil {
			asset = req.AmountIn.Asset
		}
		if err := catalog.ValidateAmount("amount_expected", types.Amount{Amount: req.AmountExpected.Amount, Asset: asset}, false); err != nil {
			return err
		}
	}

	if req.AmountIn == nil && tx.AmountIn.Amount == "" {
		return errors.New("amount_in is required")
	}
	if tx.Protocol != types.ProtocolSEP31 && req.AmountOut == nil && tx.AmountOut.Amount == "" {
		if tx.QuoteID != "" {
			return errors.New("amount_out is required for transactions with firm quotes")
		}
		if !tx.Kind.IsExchange() || tx.AmountIn.Asset == tx.AmountOut.Asset {
			return errors.New("amount_out is required for non-exchange transactions")
		}
	}
	none := req.AmountIn == nil && req.AmountOut == nil && fee == nil && req.AmountExpected == nil
	all := req.AmountIn != nil && fee != nil
	if !none && !all {
		return errors.New("All (amount_out is optional) or none of the amount_in, amount_out, and (fee_details or amount_fee) should be set")
	}
	if fee == nil && tx.AmountFee.Amount == "" {
		return errors.New("fee_details or amount_fee is required")
	}

	return t.validateInstructions(tx, req)
}

// validateInstructions checks memo and destination. They are only accepted
// when no generator is configured for the family.
func (t *requestOnchainFunds) validateInstructions(tx *types.Transaction, req *RequestOnchainFundsRequest) error {
	if t.deps.generator(tx.Protocol) != nil {
		if req.Memo != "" || req.MemoType != "" || req.DestinationAccount != "" {
			return notConfiguredForInstructions()
		}
		return nil
	}
	memo, memoType, err := types.ParseMemo(req.Memo, req.MemoType)
	if err != nil {
		return fmt.Errorf("Invalid memo or memo_type: %w", err)
	}
	if memo == "" || memoType == "" {
		return errors.New("memo and memo_type are required")
	}
	if req.DestinationAccount == "" {
		return errors.New("destination_account is required")
	}
	if !t.deps.memoTypeSupported(memoType) {
		return fmt.Errorf("Memo type[%s] is not supported for custody type[%s]", memoType, t.deps.custodyType())
	}
	return nil
}

func (t *requestOnchainFunds) nextStatus(_ context.Context, tx *types.Transaction, _ *RequestOnchainFundsRequest) (types.Status, error) {
	if tx.Protocol == types.ProtocolSEP31 {
		return types.StatusPendingSender, nil
	}
	return types.StatusPendingUserTransferStart, nil
}

func (t *requestOnchainFunds) update(ctx context.Context, tx *types.Transaction, req *RequestOnchainFundsRequest) error {
	if req.AmountIn != nil {
		tx.AmountIn = *req.AmountIn
	}
	if req.AmountOut != nil {
		tx.AmountOut = *req.AmountOut
	}
	fee, err := feeFromRequest(req.AmountFee, req.FeeDetails)
	if err != nil {
		return invalidParams(err)
	}
	if fee != nil {
		applyFee(tx, fee)
	}
	switch {
	case req.AmountExpected != nil:
		tx.AmountExpected = req.AmountExpected.Amount
	case req.AmountIn != nil:
		tx.AmountExpected = req.AmountIn.Amount
	}

	var destination string
	if gen := t.deps.generator(tx.Protocol); gen == nil {
		memo, memoType, err := types.ParseMemo(req.Memo, req.MemoType)
		if err != nil {
			return InvalidParamsf("Invalid memo or memo_type: %v", err)
		}
		tx.Memo, tx.MemoType = memo, memoType
		destination = req.DestinationAccount
	} else {
		info, err := gen.Generate(ctx, tx)
		if err != nil {
			return Internal(err, "Failed to generate deposit info for transaction with id[%s]", tx.ID)
		}
		tx.Memo, tx.MemoType = info.Memo, info.MemoType
		destination = info.StellarAddress
	}
	switch tx.Protocol {
	case types.ProtocolSEP31:
		tx.DestinationAccount = destination
	case types.ProtocolSEP24:
		tx.WithdrawAnchorAccount = destination
		tx.DestinationAccount = destination
	default:
		tx.WithdrawAnchorAccount = destination
	}

	if !t.deps.memoTypeSupported(tx.MemoType) {
		return InvalidParamsf("Memo type[%s] is not supported for custody type[%s]", tx.MemoType, t.deps.custodyType())
	}
	if t.deps.custodyEnabled() {
		if err := t.deps.Custody.CreateTransaction(ctx, tx); err != nil {
			return Internal(err, "Failed to create custody transaction for id[%s]", tx.ID)
		}
	}
	return nil
}

func notConfiguredForInstructions() error {
	return fmt.Errorf("Anchor is not configured to accept memo, memo_type and destination_account. " +
		"Please set configuration deposit_info_generator_type to 'none' if you want to enable this feature")
}
