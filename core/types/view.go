package types

import "time"

// TransactionView is the read model returned by RPC calls and embedded in
// lifecycle events.
type TransactionView struct {
	ID                    string               `json:"id"`
	Sep                   Protocol             `json:"sep"`
	Kind                  Kind                 `json:"kind"`
	Status                Status               `json:"status"`
	AmountExpected        *Amount              `json:"amount_expected,omitempty"`
	AmountIn              *Amount              `json:"amount_in,omitempty"`
	AmountOut             *Amount              `json:"amount_out,omitempty"`
	AmountFee             *Amount              `json:"amount_fee,omitempty"`
	FeeDetails            *FeeDetails          `json:"fee_details,omitempty"`
	QuoteID               string               `json:"quote_id,omitempty"`
	Message               string               `json:"message,omitempty"`
	Refunds               *Refunds             `json:"refunds,omitempty"`
	StellarTransactions   []StellarTransaction `json:"stellar_transactions,omitempty"`
	SourceAccount         string               `json:"source_account,omitempty"`
	DestinationAccount    string               `json:"destination_account,omitempty"`
	ExternalTransactionID string               `json:"external_transaction_id,omitempty"`
	Memo                  string               `json:"memo,omitempty"`
	MemoType              MemoType             `json:"memo_type,omitempty"`
	RefundMemo            string               `json:"refund_memo,omitempty"`
	RefundMemoType        MemoType             `json:"refund_memo_type,omitempty"`
	ClientDomain          string               `json:"client_domain,omitempty"`
	Customers             *Customers           `json:"customers,omitempty"`
	RequiredInfoMessage   string               `json:"required_info_message,omitempty"`
	RequiredInfoUpdates   []string             `json:"required_info_updates,omitempty"`
	StartedAt             time.Time            `json:"started_at"`
	UpdatedAt             time.Time            `json:"updated_at"`
	CompletedAt           *time.Time           `json:"completed_at,omitempty"`
	TransferReceivedAt    *time.Time           `json:"transfer_received_at,omitempty"`
	UserActionRequiredBy  *time.Time           `json:"user_action_required_by,omitempty"`
}

// NewTransactionView projects a stored transaction. The view never shares
// mutable state with tx.
func NewTransactionView(tx *Transaction) *TransactionView {
	if tx == nil {
		return nil
	}
	tx = tx.Clone()
	view := &TransactionView{
		ID:                    tx.ID,
		Sep:                   tx.Protocol,
		Kind:                  tx.Kind,
		Status:                tx.Status,
		AmountIn:              optionalAmount(tx.AmountIn),
		AmountOut:             optionalAmount(tx.AmountOut),
		AmountFee:             optionalAmount(tx.AmountFee),
		QuoteID:               tx.QuoteID,
		Message:               tx.Message,
		Refunds:               tx.Refunds,
		StellarTransactions:   tx.StellarTransactions,
		SourceAccount:         tx.SourceAccount,
		DestinationAccount:    tx.DestinationAccount,
		ExternalTransactionID: tx.ExternalTransactionID,
		Memo:                  tx.Memo,
		MemoType:              tx.MemoType,
		RefundMemo:            tx.RefundMemo,
		RefundMemoType:        tx.RefundMemoType,
		ClientDomain:          tx.ClientDomain,
		Customers:             tx.Customers,
		RequiredInfoMessage:   tx.RequiredInfoMessage,
		RequiredInfoUpdates:   tx.RequiredInfoUpdates,
		StartedAt:             tx.StartedAt,
		UpdatedAt:             tx.UpdatedAt,
		CompletedAt:           tx.CompletedAt,
		TransferReceivedAt:    tx.TransferReceivedAt,
		UserActionRequiredBy:  tx.UserActionRequiredBy,
	}
	if tx.AmountExpected != "" {
		view.AmountExpected = &Amount{Amount: tx.AmountExpected, Asset: tx.AmountIn.Asset}
	}
	if !tx.AmountFee.IsZero() {
		view.FeeDetails = &FeeDetails{
			Total:   tx.AmountFee.Amount,
			Asset:   tx.AmountFee.Asset,
			Details: tx.FeeDetails,
		}
	}
	if tx.Protocol.Valid() && tx.Kind.IsWithdrawal() && tx.WithdrawAnchorAccount != "" {
		view.DestinationAccount = tx.WithdrawAnchorAccount
	}
	return view
}

func optionalAmount(a Amount) *Amount {
	if a.IsZero() {
		return nil
	}
	return &a
}
