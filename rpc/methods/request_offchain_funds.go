package methods

import (
	"context"
	"errors"

	"anchorplatform/core/types"
)

type requestOffchainFunds struct {
	deps *Deps
}

func (t *requestOffchainFunds) method() string { return MethodRequestOffchainFunds }

func (t *requestOffchainFunds) supportedStatuses(tx *types.Transaction) []types.Status {
	fr := tx.FundsReceived()
	switch tx.Protocol {
	case types.ProtocolSEP6:
		if !tx.Kind.IsDeposit() {
			return nil
		}
		out := statuses(types.StatusIncomplete)
		if !fr {
			out = append(out, types.StatusPendingAnchor, types.StatusPendingCustomerInfoUpdate)
		}
		return out
	case types.ProtocolSEP24:
		if tx.Kind != types.KindDeposit {
			return nil
		}
		out := statuses(types.StatusIncomplete)
		if !fr {
			out = append(out, types.StatusPendingAnchor)
		}
		return out
	}
	return nil
}

func (t *requestOffchainFunds) validate(_ context.Context, tx *types.Transaction, req *RequestOffchainFundsRequest) error {
	none := req.AmountIn == nil && req.AmountFee == nil && req.FeeDetails == nil && req.AmountExpected == nil
	all := req.AmountIn != nil && (req.AmountFee != nil || req.FeeDetails != nil)
	if !none && !all {
		return errors.New("All (amount_out is optional) or none of the amount_in, amount_out, and (fee_details or amount_fee) should be set")
	}
	if req.AmountFee != nil && req.FeeDetails != nil {
		return errors.New("Either fee_details or amount_fee should be set")
	}

	catalog := t.deps.Assets
	if req.AmountIn != nil {
		if catalog.IsStellar(req.AmountIn.Asset) {
			return errors.New("amount_in.asset should be non-stellar asset")
		}
		if err := catalog.ValidateAmount("amount_in", *req.AmountIn, true); err != nil {
			return err
		}
	}
	if req.AmountOut != nil {
		if !catalog.IsStellar(req.AmountOut.Asset) {
			return errors.New("amount_out.asset should be stellar asset")
		}
		if err := catalog.ValidateAmount("amount_out", *req.AmountOut, true); err != nil {
			return err
		}
	}
	if req.AmountFee != nil {
		if catalog.IsStellar(req.AmountFee.Asset) {
			return errors.New("amount_fee.asset should be non-stellar asset")
		}
		if err := catalog.ValidateAmount("amount_fee", *req.AmountFee, true); err != nil {
			return err
		}
	}
	if req.FeeDetails != nil {
		if catalog.IsStellar(req.FeeDetails.Asset) {
			return errors.New("fee_details.asset should be non-stellar asset")
		}
		if err := validateFeeDetails(catalog, req.FeeDetails, tx); err != nil {
			return err
		}
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
	if req.AmountOut == nil && tx.AmountOut.Amount == "" {
		if tx.QuoteID != "" {
			return errors.New("amount_out is required for transactions with firm quotes")
		}
		if !tx.Kind.IsExchange() || tx.AmountIn.Asset == tx.AmountOut.Asset {
			return errors.New("amount_out is required for non-exchange transactions")
		}
	}
	if req.AmountFee == nil && req.FeeDetails == nil && tx.AmountFee.Amount == "" {
		return errors.New("fee_details or amount_fee is required")
	}
	return nil
}

func (t *requestOffchainFunds) nextStatus(context.Context, *types.Transaction, *RequestOffchainFundsRequest) (types.Status, error) {
	return types.StatusPendingUserTransferStart, nil
}

func (t *requestOffchainFunds) update(_ context.Context, tx *types.Transaction, req *RequestOffchainFundsRequest) error {
	if req.AmountIn != nil {
		tx.AmountIn = *req.AmountIn
	}
	if req.AmountOut != nil {
		tx.AmountOut = *req.AmountOut
	}
	if req.AmountFee != nil {
		tx.AmountFee = *req.AmountFee
		tx.FeeDetails = nil
	}
	if req.FeeDetails != nil {
		applyFee(tx, req.FeeDetails)
	}
	switch {
	case req.AmountExpected != nil:
		tx.AmountExpected = req.AmountExpected.Amount
	case req.AmountIn != nil:
		tx.AmountExpected = req.AmountIn.Amount
	}
	return nil
}
