package methods

import (
	"errors"
	"strings"
	"time"

	"anchorplatform/core/types"
)

// AmountRequest is an amount whose asset is implied by the transaction.
type AmountRequest struct {
	Amount string `json:"amount"`
}

type RequestOnchainFundsRequest struct {
	RequestBase
	AmountIn           *types.Amount     `json:"amount_in,omitempty"`
	AmountOut          *types.Amount     `json:"amount_out,omitempty"`
	AmountFee          *types.Amount     `json:"amount_fee,omitempty"`
	FeeDetails         *types.FeeDetails `json:"fee_details,omitempty"`
	AmountExpected     *AmountRequest    `json:"amount_expected,omitempty"`
	Memo               string            `json:"memo,omitempty"`
	MemoType           string            `json:"memo_type,omitempty"`
	DestinationAccount string            `json:"destination_account,omitempty"`
}

type NotifyOnchainFundsReceivedRequest struct {
	RequestBase
	StellarTransactionID string            `json:"stellar_transaction_id"`
	AmountIn             *AmountRequest    `json:"amount_in,omitempty"`
	AmountOut            *AmountRequest    `json:"amount_out,omitempty"`
	FeeDetails           *types.FeeDetails `json:"fee_details,omitempty"`
}

func (r *NotifyOnchainFundsReceivedRequest) Validate() error {
	if err := r.RequestBase.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.StellarTransactionID) == "" {
		return errors.New("stellar_transaction_id is required")
	}
	return nil
}

type NotifyOffchainFundsSentRequest struct {
	RequestBase
	FundsSentAt           *time.Time `json:"funds_sent_at,omitempty"`
	ExternalTransactionID string     `json:"external_transaction_id,omitempty"`
}

// RefundRequest describes one refund payment.
type RefundRequest struct {
	ID        string       `json:"id,omitempty"`
	Amount    types.Amount `json:"amount"`
	AmountFee types.Amount `json:"amount_fee"`
}

type DoStellarRefundRequest struct {
	RequestBase
	Refund *RefundRequest `json:"refund"`
}

type NotifyRefundSentRequest struct {
	RequestBase
	Refund *RefundRequest `json:"refund,omitempty"`
}

type NotifyAmountsUpdatedRequest struct {
	RequestBase
	AmountOut  *AmountRequest    `json:"amount_out"`
	AmountFee  *AmountRequest    `json:"amount_fee,omitempty"`
	FeeDetails *types.FeeDetails `json:"fee_details,omitempty"`
}

func (r *NotifyAmountsUpdatedRequest) Validate() error {
	if err := r.RequestBase.Validate(); err != nil {
		return err
	}
	if r.AmountOut == nil {
		return errors.New("amount_out is required")
	}
	return nil
}

type NotifyCustomerInfoUpdatedRequest struct {
	RequestBase
	CustomerID   string `json:"customer_id,omitempty"`
	CustomerType string `json:"customer_type,omitempty"`

	customerStatus string
}

type RequestCustomerInfoUpdateRequest struct {
	RequestBase
	RequiredCustomerInfoMessage string   `json:"required_customer_info_message,omitempty"`
	RequiredCustomerInfoUpdates []string `json:"required_customer_info_updates,omitempty"`
}

type NotifyTrustSetRequest struct {
	RequestBase
	Success bool `json:"success"`
}

type NotifyTransactionOnHoldRequest struct {
	RequestBase
}

type NotifyTransactionRecoveryRequest struct {
	RequestBase
}

type NotifyTransactionErrorRequest struct {
	RequestBase
}

type RequestOffchainFundsRequest struct {
	RequestBase
	AmountIn       *types.Amount     `json:"amount_in,omitempty"`
	AmountOut      *types.Amount     `json:"amount_out,omitempty"`
	AmountFee      *types.Amount     `json:"amount_fee,omitempty"`
	FeeDetails     *types.FeeDetails `json:"fee_details,omitempty"`
	AmountExpected *AmountRequest    `json:"amount_expected,omitempty"`
}

type NotifyOffchainFundsReceivedRequest struct {
	RequestBase
	FundsReceivedAt       *time.Time        `json:"funds_received_at,omitempty"`
	ExternalTransactionID string            `json:"external_transaction_id,omitempty"`
	AmountIn              *AmountRequest    `json:"amount_in,omitempty"`
	AmountOut             *AmountRequest    `json:"amount_out,omitempty"`
	AmountFee             *AmountRequest    `json:"amount_fee,omitempty"`
	FeeDetails            *types.FeeDetails `json:"fee_details,omitempty"`
}

type NotifyOnchainFundsSentRequest struct {
	RequestBase
	StellarTransactionID string `json:"stellar_transaction_id"`
}

func (r *NotifyOnchainFundsSentRequest) Validate() error {
	if err := r.RequestBase.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.StellarTransactionID) == "" {
		return errors.New("stellar_transaction_id is required")
	}
	return nil
}

type DoStellarPaymentRequest struct {
	RequestBase

	trustlineConfigured bool
}

type RequestTrustRequest struct {
	RequestBase
}

type NotifyInteractiveFlowCompletedRequest struct {
	RequestBase
	AmountIn       *types.Amount  `json:"amount_in"`
	AmountOut      *types.Amount  `json:"amount_out"`
	AmountFee      *types.Amount  `json:"amount_fee"`
	AmountExpected *AmountRequest `json:"amount_expected,omitempty"`
}

func (r *NotifyInteractiveFlowCompletedRequest) Validate() error {
	if err := r.RequestBase.Validate(); err != nil {
		return err
	}
	return requireAmounts(r.AmountIn, r.AmountOut, r.AmountFee)
}

type NotifyOffchainFundsPendingRequest struct {
	RequestBase
	ExternalTransactionID string `json:"external_transaction_id,omitempty"`
}

type NotifyOffchainFundsAvailableRequest struct {
	RequestBase
	ExternalTransactionID string `json:"external_transaction_id,omitempty"`
}

type NotifyRefundPendingRequest struct {
	RequestBase
	Refund *RefundRequest `json:"refund,omitempty"`
}

type NotifyAmountsAssetsUpdatedRequest struct {
	RequestBase
	AmountIn  *types.Amount `json:"amount_in"`
	AmountOut *types.Amount `json:"amount_out"`
	AmountFee *types.Amount `json:"amount_fee"`
}

func (r *NotifyAmountsAssetsUpdatedRequest) Validate() error {
	if err := r.RequestBase.Validate(); err != nil {
		return err
	}
	return requireAmounts(r.AmountIn, r.AmountOut, r.AmountFee)
}

func requireAmounts(in, out, fee *types.Amount) error {
	switch {
	case in == nil:
		return errors.New("amount_in is required")
	case out == nil:
		return errors.New("amount_out is required")
	case fee == nil:
		return errors.New("amount_fee is required")
	}
	return nil
}

type GetTransactionRequest struct {
	TransactionID string `json:"transaction_id"`
}

type GetTransactionsRequest struct {
	Sep        string   `json:"sep"`
	OrderBy    string   `json:"order_by,omitempty"`
	Order      string   `json:"order,omitempty"`
	Statuses   []string `json:"statuses,omitempty"`
	PageNumber *int     `json:"page_number,omitempty"`
	PageSize   *int     `json:"page_size,omitempty"`
}

type GetQuoteRequest struct {
	QuoteID string `json:"quote_id"`
}
