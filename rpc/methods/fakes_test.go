package methods

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"anchorplatform/core/assets"
	"anchorplatform/core/events"
	"anchorplatform/core/types"
)

const (
	usdc        = "stellar:USDC:GDQOE23CFSUMSVQK4Y5JHPPYK73VYCNHZHA7ENKCV37P6SUEO6XQBKPP"
	fiatUSD     = "iso4217:USD"
	distributor = "GBN4NNCDGJO4XW4KQU3CBIESUJWFVBUZPOKUZHT7W7WRB7CWOA7BXVQF"
	userAccount = "GAIUIZPHLIHQEMNJGSZKCEUWHAZVGUZDBDMO2JXNAJZZZVNSVHQCEWJ4"
)

type fakeStore struct {
	mu       sync.Mutex
	protocol types.Protocol
	txs      map[string]*types.Transaction
	saved    []*types.Transaction
	saveErr  error
	filter   types.TransactionFilter
}

func newFakeStore(protocol types.Protocol) *fakeStore {
	return &fakeStore{protocol: protocol, txs: make(map[string]*types.Transaction)}
}

func (s *fakeStore) Protocol() types.Protocol { return s.protocol }

func (s *fakeStore) FindByID(_ context.Context, id string) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return nil, nil
	}
	return tx.Clone(), nil
}

func (s *fakeStore) Save(_ context.Context, tx *types.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, tx.Clone())
	s.txs[tx.ID] = tx.Clone()
	return nil
}

func (s *fakeStore) List(_ context.Context, filter types.TransactionFilter) ([]*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = filter
	out := make([]*types.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		out = append(out, tx.Clone())
	}
	return out, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.LifecycleEvent
	err    error
	// failOn limits err to one event type when set.
	failOn events.Type
}

func (p *fakePublisher) Publish(_ context.Context, evt events.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil && (p.failOn == "" || p.failOn == evt.Type) {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

type fakeReconciler struct {
	stx *types.StellarTransaction
	err error
}

func (r *fakeReconciler) Transaction(context.Context, string) (*types.StellarTransaction, error) {
	return r.stx, r.err
}

type fakeTrustlines struct {
	configured bool
	err        error
	asked      []string
}

func (c *fakeTrustlines) TrustlineConfigured(_ context.Context, account, asset string) (bool, error) {
	c.asked = append(c.asked, account+"/"+asset)
	return c.configured, c.err
}

type fakeCustody struct {
	kind        string
	unsupported map[types.MemoType]bool
	err         error
	created     []string
	payments    []string
	refunds     []types.RefundPayment
}

func (c *fakeCustody) Type() string { return c.kind }

func (c *fakeCustody) SupportsMemoType(memoType types.MemoType) bool {
	return !c.unsupported[memoType]
}

func (c *fakeCustody) CreateTransaction(_ context.Context, tx *types.Transaction) error {
	if c.err != nil {
		return c.err
	}
	c.created = append(c.created, tx.ID)
	return nil
}

func (c *fakeCustody) CreateTransactionPayment(_ context.Context, txID string) error {
	if c.err != nil {
		return c.err
	}
	c.payments = append(c.payments, txID)
	return nil
}

func (c *fakeCustody) CreateTransactionRefund(_ context.Context, _ *types.Transaction, refund types.RefundPayment) error {
	if c.err != nil {
		return c.err
	}
	c.refunds = append(c.refunds, refund)
	return nil
}

type fakeCustomers struct {
	status string
	err    error
}

func (c *fakeCustomers) CustomerStatus(context.Context, string, string, string) (string, error) {
	return c.status, c.err
}

type fakeQuotes struct {
	quotes map[string]*types.Quote
}

func (q *fakeQuotes) FindQuote(_ context.Context, id string) (*types.Quote, error) {
	return q.quotes[id], nil
}

type fakeMetrics struct {
	calls []string
}

func (m *fakeMetrics) TransactionHandled(protocol types.Protocol, method string) {
	m.calls = append(m.calls, protocol.Label()+":"+method)
}

type fixture struct {
	stores  map[types.Protocol]*fakeStore
	events  *fakePublisher
	metrics *fakeMetrics
	now     time.Time
	deps    Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := assets.NewCatalog([]assets.Asset{
		{Name: usdc, DistributionAccount: distributor},
		{Name: fiatUSD},
	})
	require.NoError(t, err)
	f := &fixture{
		stores:  make(map[types.Protocol]*fakeStore),
		events:  &fakePublisher{},
		metrics: &fakeMetrics{},
		now:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	var stores []TransactionStore
	for _, p := range types.Protocols {
		store := newFakeStore(p)
		f.stores[p] = store
		stores = append(stores, store)
	}
	f.deps = Deps{
		Stores:  stores,
		Quotes:  &fakeQuotes{quotes: map[string]*types.Quote{}},
		Assets:  catalog,
		Events:  f.events,
		Metrics: f.metrics,
		Now:     func() time.Time { return f.now },
	}
	return f
}

func (f *fixture) put(tx *types.Transaction) {
	f.stores[tx.Protocol].txs[tx.ID] = tx.Clone()
}

func (f *fixture) saves() int {
	total := 0
	for _, s := range f.stores {
		total += len(s.saved)
	}
	return total
}

func (f *fixture) call(t *testing.T, method string, params any) (any, error) {
	t.Helper()
	reg, err := NewRegistry(f.deps)
	require.NoError(t, err)
	h, ok := reg.Lookup(method)
	require.True(t, ok, "method %s not registered", method)
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return h.Handle(context.Background(), raw)
}

func (f *fixture) callView(t *testing.T, method string, params any) *types.TransactionView {
	t.Helper()
	out, err := f.call(t, method, params)
	require.NoError(t, err)
	view, ok := out.(*types.TransactionView)
	require.True(t, ok)
	return view
}

func requireMethodError(t *testing.T, err error, kind ErrorKind, message string) {
	t.Helper()
	require.Error(t, err)
	var methodErr *Error
	require.ErrorAs(t, err, &methodErr)
	require.Equal(t, kind, methodErr.Kind, methodErr.Message)
	require.Equal(t, message, methodErr.Message)
}

func received(at time.Time) *time.Time { return &at }

func sep24Withdrawal(status types.Status) *types.Transaction {
	return &types.Transaction{
		ID:        "tx-24",
		Protocol:  types.ProtocolSEP24,
		Kind:      types.KindWithdrawal,
		Status:    status,
		StartedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func sep31Receive(status types.Status) *types.Transaction {
	return &types.Transaction{
		ID:        "tx-31",
		Protocol:  types.ProtocolSEP31,
		Kind:      types.KindReceive,
		Status:    status,
		AmountIn:  types.Amount{Amount: "10", Asset: usdc},
		AmountOut: types.Amount{Amount: "9", Asset: fiatUSD},
		AmountFee: types.Amount{Amount: "1", Asset: usdc},
		StartedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func sep24Deposit(status types.Status) *types.Transaction {
	tx := sep24Withdrawal(status)
	tx.Kind = types.KindDeposit
	tx.DestinationAccount = userAccount
	return tx
}

// fundedDeposit24 is a SEP-24 deposit whose off-ledger funds arrived.
func fundedDeposit24() *types.Transaction {
	tx := sep24Deposit(types.StatusPendingAnchor)
	tx.AmountIn = types.Amount{Amount: "10", Asset: fiatUSD}
	tx.AmountOut = types.Amount{Amount: "9", Asset: usdc}
	tx.AmountFee = types.Amount{Amount: "1", Asset: fiatUSD}
	tx.TransferReceivedAt = received(time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC))
	return tx
}

func sep6Transaction(kind types.Kind, status types.Status) *types.Transaction {
	return &types.Transaction{
		ID:        "tx-6",
		Protocol:  types.ProtocolSEP6,
		Kind:      kind,
		Status:    status,
		StartedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}
