package methods

import (
	"fmt"

	"anchorplatform/core/types"
)

// validateFeeDetails checks the fee total, its asset against the stored fee
// asset and that the components add up to the total.
func validateFeeDetails(assets AssetResolver, fee *types.FeeDetails, tx *types.Transaction) error {
	if err := assets.ValidateAmount("fee_details", types.Amount{Amount: fee.Total, Asset: fee.Asset}, true); err != nil {
		return err
	}
	if tx != nil && tx.AmountFee.Asset != "" && fee.Asset != tx.AmountFee.Asset {
		return fmt.Errorf("fee_details.asset is different from expected database asset (%s)", tx.AmountFee.Asset)
	}
	if len(fee.Details) == 0 {
		return nil
	}
	sum, err := types.SumFeeDetails(fee.Details)
	if err != nil {
		return fmt.Errorf("fee_details.details.amount is invalid")
	}
	if !types.MustDecimal(fee.Total).Equal(sum) {
		return fmt.Errorf("fee_details.total is not equal to the sum of (fee_details.details.amount)")
	}
	return nil
}

// validateRefund checks a refund payment against the transaction it refunds.
// Amounts are measured in the amount_in asset.
func validateRefund(assets AssetResolver, refund *RefundRequest, tx *types.Transaction) error {
	if err := assets.ValidateAmount("refund.amount", types.Amount{Amount: refund.Amount.Amount, Asset: tx.AmountIn.Asset}, false); err != nil {
		return err
	}
	if err := assets.ValidateAmount("refund.amountFee", types.Amount{Amount: refund.AmountFee.Amount, Asset: tx.AmountIn.Asset}, true); err != nil {
		return err
	}
	if tx.AmountIn.Asset != refund.Amount.Asset {
		return fmt.Errorf("refund.amount.asset does not match transaction amount_in_asset")
	}
	if tx.AmountFee.Asset != refund.AmountFee.Asset {
		return fmt.Errorf("refund.amount_fee.asset does not match match transaction amount_fee_asset")
	}
	return nil
}

// feeFromRequest merges the two accepted fee forms. fee_details wins when
// both are present, in which case they must agree.
func feeFromRequest(amountFee *types.Amount, details *types.FeeDetails) (*types.FeeDetails, error) {
	switch {
	case details != nil && amountFee != nil:
		if amountFee.Asset != details.Asset || !types.MustDecimal(amountFee.Amount).Equal(types.MustDecimal(details.Total)) {
			return nil, fmt.Errorf("amount_fee does not match fee_details")
		}
		return details, nil
	case details != nil:
		return details, nil
	case amountFee != nil:
		return &types.FeeDetails{Total: amountFee.Amount, Asset: amountFee.Asset}, nil
	default:
		return nil, nil
	}
}

func applyFee(tx *types.Transaction, fee *types.FeeDetails) {
	tx.AmountFee = types.Amount{Amount: fee.Total, Asset: fee.Asset}
	tx.FeeDetails = append([]types.FeeDescription(nil), fee.Details...)
}

func statuses(list ...types.Status) []types.Status { return list }
