package types

import "github.com/shopspring/decimal"

// RefundIDType tells which ledger the refund payment id belongs to.
type RefundIDType string

const (
	RefundIDStellar  RefundIDType = "stellar"
	RefundIDExternal RefundIDType = "external"
)

// RefundPayment is a single refund leg.
type RefundPayment struct {
	ID     string       `json:"id"`
	IDType RefundIDType `json:"id_type"`
	Amount Amount       `json:"amount"`
	Fee    Amount       `json:"fee"`
}

// Refunds tracks every refund payment of a transaction and the running totals.
type Refunds struct {
	AmountRefunded Amount          `json:"amount_refunded"`
	AmountFee      Amount          `json:"amount_fee"`
	Payments       []RefundPayment `json:"payments,omitempty"`
}

// Find returns the payment with the given id.
func (r *Refunds) Find(id string) (RefundPayment, bool) {
	if r == nil {
		return RefundPayment{}, false
	}
	for _, p := range r.Payments {
		if p.ID == id {
			return p, true
		}
	}
	return RefundPayment{}, false
}

// Upsert replaces the payment with the same id or appends a new one, then
// recalculates the totals.
func (r *Refunds) Upsert(payment RefundPayment, amountAsset, feeAsset string) {
	replaced := false
	for i := range r.Payments {
		if r.Payments[i].ID == payment.ID {
			r.Payments[i] = payment
			replaced = true
			break
		}
	}
	if !replaced {
		r.Payments = append(r.Payments, payment)
	}
	r.Recalculate(amountAsset, feeAsset)
}

// Append records a new payment and recalculates the totals. Callers reject
// ids that are already recorded.
func (r *Refunds) Append(payment RefundPayment, amountAsset, feeAsset string) {
	r.Payments = append(r.Payments, payment)
	r.Recalculate(amountAsset, feeAsset)
}

// Recalculate derives amount_fee as the sum of fees and amount_refunded as
// the sum of amounts plus fees.
func (r *Refunds) Recalculate(amountAsset, feeAsset string) {
	amount, fee := r.Totals()
	r.AmountFee = Amount{Amount: fee.String(), Asset: feeAsset}
	r.AmountRefunded = Amount{Amount: amount.Add(fee).String(), Asset: amountAsset}
}

// Totals returns the summed amount and fee of every recorded payment.
func (r *Refunds) Totals() (amount, fee decimal.Decimal) {
	amount, fee = decimal.Zero, decimal.Zero
	if r == nil {
		return amount, fee
	}
	for _, p := range r.Payments {
		amount = amount.Add(MustDecimal(p.Amount.Amount))
		fee = fee.Add(MustDecimal(p.Fee.Amount))
	}
	return amount, fee
}

// Refunded returns the refunded total, amount plus fee.
func (r *Refunds) Refunded() decimal.Decimal {
	amount, fee := r.Totals()
	return amount.Add(fee)
}
