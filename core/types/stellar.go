package types

import "time"

// PaymentType classifies a ledger payment operation.
type PaymentType string

const (
	PaymentTypePayment     PaymentType = "payment"
	PaymentTypePathPayment PaymentType = "path_payment"
)

// StellarPayment is one payment operation of a ledger transaction.
type StellarPayment struct {
	ID                 string      `json:"id"`
	Amount             Amount      `json:"amount"`
	PaymentType        PaymentType `json:"payment_type"`
	SourceAccount      string      `json:"source_account"`
	DestinationAccount string      `json:"destination_account"`
}

// StellarTransaction is a ledger transaction linked to an anchor transaction.
type StellarTransaction struct {
	ID        string           `json:"id"`
	Memo      string           `json:"memo,omitempty"`
	MemoType  MemoType         `json:"memo_type,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	Envelope  string           `json:"envelope,omitempty"`
	Payments  []StellarPayment `json:"payments"`
}

func (s StellarTransaction) clone() StellarTransaction {
	s.Payments = append([]StellarPayment(nil), s.Payments...)
	return s
}
