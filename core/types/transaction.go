package types

import (
	"sort"
	"time"
)

// Protocol identifies the transaction family a record belongs to.
type Protocol string

const (
	ProtocolSEP6  Protocol = "6"
	ProtocolSEP24 Protocol = "24"
	ProtocolSEP31 Protocol = "31"
)

// Protocols lists the supported families in store lookup priority order.
var Protocols = []Protocol{ProtocolSEP6, ProtocolSEP24, ProtocolSEP31}

// Valid reports whether the protocol is one of the supported families.
func (p Protocol) Valid() bool {
	switch p {
	case ProtocolSEP6, ProtocolSEP24, ProtocolSEP31:
		return true
	}
	return false
}

// Label renders the protocol the way metrics and events tag it ("sep24").
func (p Protocol) Label() string { return "sep" + string(p) }

// Kind is the transaction sub-type within a family.
type Kind string

const (
	KindDeposit            Kind = "deposit"
	KindDepositExchange    Kind = "deposit-exchange"
	KindWithdrawal         Kind = "withdrawal"
	KindWithdrawalExchange Kind = "withdrawal-exchange"
	KindReceive            Kind = "receive"
)

// IsDeposit reports whether the kind moves value onto the ledger.
func (k Kind) IsDeposit() bool { return k == KindDeposit || k == KindDepositExchange }

// IsWithdrawal reports whether the kind moves value off the ledger.
func (k Kind) IsWithdrawal() bool { return k == KindWithdrawal || k == KindWithdrawalExchange }

// IsExchange reports whether the kind converts between two assets.
func (k Kind) IsExchange() bool { return k == KindDepositExchange || k == KindWithdrawalExchange }

// StellarID references a customer by anchor id and, optionally, ledger account.
type StellarID struct {
	ID      string `json:"id,omitempty"`
	Account string `json:"account,omitempty"`
	Memo    string `json:"memo,omitempty"`
}

// Customers holds the identity references of the parties of a transaction.
type Customers struct {
	Sender   StellarID `json:"sender"`
	Receiver StellarID `json:"receiver"`
}

// Transaction is the shared record of every protocol family. Family specific
// fields are only populated for the families that use them.
type Transaction struct {
	ID       string
	Protocol Protocol
	Kind     Kind
	Status   Status

	AmountIn       Amount
	AmountOut      Amount
	AmountFee      Amount
	FeeDetails     []FeeDescription
	AmountExpected string

	Memo                  string
	MemoType              MemoType
	RefundMemo            string
	RefundMemoType        MemoType
	SourceAccount         string
	DestinationAccount    string
	WithdrawAnchorAccount string

	StellarTransactionID  string
	StellarTransactions   []StellarTransaction
	ExternalTransactionID string

	Refunds   *Refunds
	Customers *Customers
	QuoteID   string

	ClientDomain string

	StartedAt            time.Time
	UpdatedAt            time.Time
	CompletedAt          *time.Time
	TransferReceivedAt   *time.Time
	UserActionRequiredBy *time.Time

	Message             string
	RequiredInfoMessage string
	RequiredInfoUpdates []string

	// Version is the optimistic concurrency token maintained by the store.
	Version int64
}

// FundsReceived reports whether the incoming leg has been registered.
func (t *Transaction) FundsReceived() bool {
	return t != nil && t.TransferReceivedAt != nil
}

// HasRefundPayments reports whether at least one refund payment was recorded.
func (t *Transaction) HasRefundPayments() bool {
	return t != nil && t.Refunds != nil && len(t.Refunds.Payments) > 0
}

// AddStellarTransaction appends a ledger transaction, replacing any earlier
// record with the same id, and keeps the list ordered by creation time.
func (t *Transaction) AddStellarTransaction(stx StellarTransaction) {
	kept := t.StellarTransactions[:0]
	for _, existing := range t.StellarTransactions {
		if existing.ID != stx.ID {
			kept = append(kept, existing)
		}
	}
	kept = append(kept, stx)
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].CreatedAt.Before(kept[j].CreatedAt)
	})
	t.StellarTransactions = kept
	t.StellarTransactionID = stx.ID
}

// Clone returns a deep copy so callers can mutate without touching the
// original record.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	out := *t
	out.FeeDetails = append([]FeeDescription(nil), t.FeeDetails...)
	if t.StellarTransactions != nil {
		out.StellarTransactions = make([]StellarTransaction, len(t.StellarTransactions))
		for i, stx := range t.StellarTransactions {
			out.StellarTransactions[i] = stx.clone()
		}
	}
	if t.Refunds != nil {
		refunds := *t.Refunds
		refunds.Payments = append([]RefundPayment(nil), t.Refunds.Payments...)
		out.Refunds = &refunds
	}
	if t.Customers != nil {
		customers := *t.Customers
		out.Customers = &customers
	}
	out.CompletedAt = cloneTime(t.CompletedAt)
	out.TransferReceivedAt = cloneTime(t.TransferReceivedAt)
	out.UserActionRequiredBy = cloneTime(t.UserActionRequiredBy)
	out.RequiredInfoUpdates = append([]string(nil), t.RequiredInfoUpdates...)
	return &out
}

func cloneTime(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	v := *ts
	return &v
}

// TransactionFilter narrows a family listing.
type TransactionFilter struct {
	Protocol   Protocol
	Statuses   []Status
	OrderBy    string
	Descending bool
	PageNumber int
	PageSize   int
}

// Order-by columns accepted by listings.
const (
	OrderByCreatedAt            = "created_at"
	OrderByTransferReceivedAt   = "transfer_received_at"
	OrderByUserActionRequiredBy = "user_action_required_by"
)
