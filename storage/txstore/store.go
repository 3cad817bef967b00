// Package txstore persists anchor transactions and quotes with gorm. Each
// protocol family owns its own table; rows carry an optimistic version that
// Save checks and bumps.
package txstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"anchorplatform/core/types"
)

// ErrVersionConflict reports that the row changed since it was loaded.
var ErrVersionConflict = errors.New("txstore: version conflict")

// Store is the transaction table of one protocol family.
type Store struct {
	db       *gorm.DB
	protocol types.Protocol
	table    string
}

// TableName returns the table backing protocol.
func TableName(protocol types.Protocol) string {
	return fmt.Sprintf("sep%s_transactions", protocol)
}

// New migrates and returns the store of protocol.
func New(db *gorm.DB, protocol types.Protocol) (*Store, error) {
	if db == nil {
		return nil, errors.New("txstore: db required")
	}
	if !protocol.Valid() {
		return nil, fmt.Errorf("txstore: unsupported protocol %q", protocol)
	}
	table := TableName(protocol)
	if err := db.Table(table).AutoMigrate(&transactionRecord{}); err != nil {
		return nil, fmt.Errorf("txstore: migrate %s: %w", table, err)
	}
	return &Store{db: db, protocol: protocol, table: table}, nil
}

// NewFamilies returns one store per supported family in lookup priority order.
func NewFamilies(db *gorm.DB) ([]*Store, error) {
	stores := make([]*Store, 0, len(types.Protocols))
	for _, protocol := range types.Protocols {
		store, err := New(db, protocol)
		if err != nil {
			return nil, err
		}
		stores = append(stores, store)
	}
	return stores, nil
}

// Protocol returns the family the store serves.
func (s *Store) Protocol() types.Protocol { return s.protocol }

// FindByID loads a transaction. Unknown ids return (nil, nil).
func (s *Store) FindByID(ctx context.Context, id string) (*types.Transaction, error) {
	var rec transactionRecord
	err := s.db.WithContext(ctx).Table(s.table).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("txstore: find %s: %w", id, err)
	}
	return rec.toTransaction(s.protocol), nil
}

// Save inserts a new transaction (Version 0) or updates an existing one at
// the version it was loaded with. On success tx.Version holds the new value.
func (s *Store) Save(ctx context.Context, tx *types.Transaction) error {
	if tx == nil || tx.ID == "" {
		return errors.New("txstore: transaction id required")
	}
	rec := toRecord(tx)
	rec.Protocol = string(s.protocol)
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if tx.Version == 0 {
			var count int64
			if err := db.Table(s.table).Where("id = ?", tx.ID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrVersionConflict
			}
			rec.Version = 1
			return db.Table(s.table).Create(&rec).Error
		}
		rec.Version = tx.Version + 1
		res := db.Table(s.table).
			Where("id = ? AND version = ?", tx.ID, tx.Version).
			Select("*").
			Updates(&rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return fmt.Errorf("%w: %s", ErrVersionConflict, tx.ID)
		}
		return fmt.Errorf("txstore: save %s: %w", tx.ID, err)
	}
	tx.Version = rec.Version
	return nil
}

// List returns the transactions matching filter.
func (s *Store) List(ctx context.Context, filter types.TransactionFilter) ([]*types.Transaction, error) {
	query := s.db.WithContext(ctx).Table(s.table)
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			statuses[i] = string(status)
		}
		query = query.Where("status IN ?", statuses)
	}
	query = query.
		Order(clause.OrderByColumn{Column: clause.Column{Name: orderColumn(filter.OrderBy)}, Desc: filter.Descending}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: filter.Descending})
	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize).Offset(filter.PageNumber * filter.PageSize)
	}
	var records []transactionRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("txstore: list %s: %w", s.table, err)
	}
	return s.convert(records), nil
}

// ListLedgerLinked returns transactions updated in [from, to) that reference
// a ledger transaction.
func (s *Store) ListLedgerLinked(ctx context.Context, from, to time.Time) ([]*types.Transaction, error) {
	var records []transactionRecord
	err := s.db.WithContext(ctx).Table(s.table).
		Where("stellar_transaction_id <> ''").
		Where("updated_at >= ? AND updated_at < ?", from.UTC(), to.UTC()).
		Order("updated_at").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("txstore: list ledger linked %s: %w", s.table, err)
	}
	return s.convert(records), nil
}

func (s *Store) convert(records []transactionRecord) []*types.Transaction {
	out := make([]*types.Transaction, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.toTransaction(s.protocol))
	}
	return out
}

func orderColumn(orderBy string) string {
	switch orderBy {
	case types.OrderByTransferReceivedAt:
		return "transfer_received_at"
	case types.OrderByUserActionRequiredBy:
		return "user_action_required_by"
	default:
		return "started_at"
	}
}

// QuoteStore persists quotes.
type QuoteStore struct {
	db *gorm.DB
}

// NewQuoteStore migrates and returns the quote store.
func NewQuoteStore(db *gorm.DB) (*QuoteStore, error) {
	if db == nil {
		return nil, errors.New("txstore: db required")
	}
	if err := db.AutoMigrate(&quoteRecord{}); err != nil {
		return nil, fmt.Errorf("txstore: migrate quotes: %w", err)
	}
	return &QuoteStore{db: db}, nil
}

// FindQuote loads a quote. Unknown ids return (nil, nil).
func (s *QuoteStore) FindQuote(ctx context.Context, id string) (*types.Quote, error) {
	var rec quoteRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("txstore: find quote %s: %w", id, err)
	}
	return rec.toQuote(), nil
}

// SaveQuote inserts or replaces a quote.
func (s *QuoteStore) SaveQuote(ctx context.Context, quote *types.Quote) error {
	if quote == nil || quote.ID == "" {
		return errors.New("txstore: quote id required")
	}
	rec := quoteToRecord(quote)
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("txstore: save quote %s: %w", quote.ID, err)
	}
	return nil
}
