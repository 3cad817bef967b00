package methods

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"anchorplatform/core/events"
	"anchorplatform/core/types"
)

// TransactionStore loads and saves the transactions of one protocol family.
// FindByID returns (nil, nil) when the id is unknown.
type TransactionStore interface {
	Protocol() types.Protocol
	FindByID(ctx context.Context, id string) (*types.Transaction, error)
	Save(ctx context.Context, tx *types.Transaction) error
	List(ctx context.Context, filter types.TransactionFilter) ([]*types.Transaction, error)
}

// QuoteStore loads quotes by id. FindQuote returns (nil, nil) when the id is unknown.
type QuoteStore interface {
	FindQuote(ctx context.Context, id string) (*types.Quote, error)
}

// RequestValidator performs structural validation of a decoded request.
type RequestValidator interface {
	Validate(req any) error
}

// AssetResolver knows the anchor's asset catalog.
type AssetResolver interface {
	IsStellar(asset string) bool
	ValidateAmount(field string, amount types.Amount, allowZero bool) error
}

// LedgerReconciler fetches a ledger transaction with its payment operations.
type LedgerReconciler interface {
	Transaction(ctx context.Context, id string) (*types.StellarTransaction, error)
}

// TrustlineChecker reports whether a ledger account can receive an asset.
type TrustlineChecker interface {
	TrustlineConfigured(ctx context.Context, account, asset string) (bool, error)
}

// CustodyGateway delegates payment execution to an external custodian.
type CustodyGateway interface {
	Type() string
	SupportsMemoType(memoType types.MemoType) bool
	CreateTransaction(ctx context.Context, tx *types.Transaction) error
	CreateTransactionPayment(ctx context.Context, txID string) error
	CreateTransactionRefund(ctx context.Context, tx *types.Transaction, refund types.RefundPayment) error
}

// CustomerService resolves the KYC status of a customer.
type CustomerService interface {
	CustomerStatus(ctx context.Context, txID, customerID, customerType string) (string, error)
}

// DepositInfo is the payment instruction handed to the user.
type DepositInfo struct {
	StellarAddress string
	Memo           string
	MemoType       types.MemoType
}

// DepositInfoGenerator produces payment instructions for a transaction.
type DepositInfoGenerator interface {
	Generate(ctx context.Context, tx *types.Transaction) (DepositInfo, error)
}

// Metrics counts successfully handled transactions.
type Metrics interface {
	TransactionHandled(protocol types.Protocol, method string)
}

// Deps bundles the collaborators shared by every handler.
type Deps struct {
	// Stores are searched in order; the first store that knows the id owns it.
	Stores     []TransactionStore
	Quotes     QuoteStore
	Validator  RequestValidator
	Assets     AssetResolver
	Reconciler LedgerReconciler
	Trustlines TrustlineChecker
	// Custody is nil when custody integration is disabled.
	Custody   CustodyGateway
	Customers CustomerService
	// DepositInfo holds the generator per family. A missing entry means the
	// caller must supply memo and destination explicitly.
	DepositInfo map[types.Protocol]DepositInfoGenerator
	Events      events.Publisher
	Metrics     Metrics
	Logger      *slog.Logger
	Now         func() time.Time
}

func (d *Deps) withDefaults() {
	if d.Validator == nil {
		d.Validator = StructValidator{}
	}
	if d.Events == nil {
		d.Events = events.NoopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

func (d *Deps) custodyEnabled() bool { return d.Custody != nil }

func (d *Deps) custodyType() string {
	if d.Custody == nil {
		return "none"
	}
	return d.Custody.Type()
}

// ledgerTransaction loads a ledger transaction through the reconciler. An
// unknown id is a failure like any other lookup error.
func (d *Deps) ledgerTransaction(ctx context.Context, id string) (*types.StellarTransaction, error) {
	if d.Reconciler == nil {
		return nil, Internal(errors.New("ledger reconciler not configured"), "Failed to retrieve Stellar transaction by ID[%s]", id)
	}
	stx, err := d.Reconciler.Transaction(ctx, id)
	if err != nil || stx == nil {
		return nil, Internal(err, "Failed to retrieve Stellar transaction by ID[%s]", id)
	}
	return stx, nil
}

// trustlineConfigured treats a missing checker or a lookup failure as an
// absent trustline.
func (d *Deps) trustlineConfigured(ctx context.Context, account, asset string) bool {
	if d.Trustlines == nil {
		return false
	}
	ok, err := d.Trustlines.TrustlineConfigured(ctx, account, asset)
	if err != nil {
		d.Logger.Warn("trustline lookup failed",
			slog.String("asset", asset),
			slog.Any("error", err))
		return false
	}
	return ok
}

func (d *Deps) memoTypeSupported(memoType types.MemoType) bool {
	if d.Custody == nil || memoType == "" {
		return true
	}
	return d.Custody.SupportsMemoType(memoType)
}

func (d *Deps) generator(protocol types.Protocol) DepositInfoGenerator {
	if d.DepositInfo == nil {
		return nil
	}
	return d.DepositInfo[protocol]
}

func (d *Deps) findTransaction(ctx context.Context, id string) (*types.Transaction, TransactionStore, error) {
	for _, store := range d.Stores {
		tx, err := store.FindByID(ctx, id)
		if err != nil {
			return nil, nil, Internal(err, "Failed to load transaction with id[%s]", id)
		}
		if tx != nil {
			return tx, store, nil
		}
	}
	return nil, nil, NotFoundf("Transaction with id[%s] is not found", id)
}

func (d *Deps) store(protocol types.Protocol) TransactionStore {
	for _, store := range d.Stores {
		if store.Protocol() == protocol {
			return store
		}
	}
	return nil
}

// StructValidator validates requests that implement Validate() error.
type StructValidator struct{}

// Validate implements RequestValidator.
func (StructValidator) Validate(req any) error {
	if v, ok := req.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}
