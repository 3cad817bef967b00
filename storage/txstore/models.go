package txstore

import (
	"time"

	"anchorplatform/core/types"
)

// transactionRecord is the row layout shared by every family table.
type transactionRecord struct {
	ID       string `gorm:"primaryKey;size:64"`
	Kind     string `gorm:"size:32;index"`
	Status   string `gorm:"size:48;index"`
	Protocol string `gorm:"size:4"`

	AmountIn       types.Amount           `gorm:"embedded;embeddedPrefix:amount_in_"`
	AmountOut      types.Amount           `gorm:"embedded;embeddedPrefix:amount_out_"`
	AmountFee      types.Amount           `gorm:"embedded;embeddedPrefix:amount_fee_"`
	FeeDetails     []types.FeeDescription `gorm:"serializer:json"`
	AmountExpected string                 `gorm:"size:64"`

	Memo                  string `gorm:"size:128"`
	MemoType              string `gorm:"size:16"`
	RefundMemo            string `gorm:"size:128"`
	RefundMemoType        string `gorm:"size:16"`
	SourceAccount         string `gorm:"size:128"`
	DestinationAccount    string `gorm:"size:128"`
	WithdrawAnchorAccount string `gorm:"size:128"`

	StellarTransactionID  string                     `gorm:"size:128;index"`
	StellarTransactions   []types.StellarTransaction `gorm:"serializer:json"`
	ExternalTransactionID string                     `gorm:"size:128"`

	Refunds   *types.Refunds   `gorm:"serializer:json"`
	Customers *types.Customers `gorm:"serializer:json"`
	QuoteID   string           `gorm:"size:64"`

	ClientDomain string `gorm:"size:255"`

	StartedAt            time.Time `gorm:"index"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime:false;index"`
	CompletedAt          *time.Time
	TransferReceivedAt   *time.Time
	UserActionRequiredBy *time.Time

	Message             string   `gorm:"type:text"`
	RequiredInfoMessage string   `gorm:"type:text"`
	RequiredInfoUpdates []string `gorm:"serializer:json"`

	Version int64 `gorm:"not null;default:0"`
}

func toRecord(tx *types.Transaction) transactionRecord {
	return transactionRecord{
		ID:                    tx.ID,
		Kind:                  string(tx.Kind),
		Status:                string(tx.Status),
		Protocol:              string(tx.Protocol),
		AmountIn:              tx.AmountIn,
		AmountOut:             tx.AmountOut,
		AmountFee:             tx.AmountFee,
		FeeDetails:            tx.FeeDetails,
		AmountExpected:        tx.AmountExpected,
		Memo:                  tx.Memo,
		MemoType:              string(tx.MemoType),
		RefundMemo:            tx.RefundMemo,
		RefundMemoType:        string(tx.RefundMemoType),
		SourceAccount:         tx.SourceAccount,
		DestinationAccount:    tx.DestinationAccount,
		WithdrawAnchorAccount: tx.WithdrawAnchorAccount,
		StellarTransactionID:  tx.StellarTransactionID,
		StellarTransactions:   tx.StellarTransactions,
		ExternalTransactionID: tx.ExternalTransactionID,
		Refunds:               tx.Refunds,
		Customers:             tx.Customers,
		QuoteID:               tx.QuoteID,
		ClientDomain:          tx.ClientDomain,
		StartedAt:             tx.StartedAt.UTC(),
		UpdatedAt:             tx.UpdatedAt.UTC(),
		CompletedAt:           utc(tx.CompletedAt),
		TransferReceivedAt:    utc(tx.TransferReceivedAt),
		UserActionRequiredBy:  utc(tx.UserActionRequiredBy),
		Message:               tx.Message,
		RequiredInfoMessage:   tx.RequiredInfoMessage,
		RequiredInfoUpdates:   tx.RequiredInfoUpdates,
		Version:               tx.Version,
	}
}

func (r transactionRecord) toTransaction(protocol types.Protocol) *types.Transaction {
	return &types.Transaction{
		ID:                    r.ID,
		Protocol:              protocol,
		Kind:                  types.Kind(r.Kind),
		Status:                types.Status(r.Status),
		AmountIn:              r.AmountIn,
		AmountOut:             r.AmountOut,
		AmountFee:             r.AmountFee,
		FeeDetails:            r.FeeDetails,
		AmountExpected:        r.AmountExpected,
		Memo:                  r.Memo,
		MemoType:              types.MemoType(r.MemoType),
		RefundMemo:            r.RefundMemo,
		RefundMemoType:        types.MemoType(r.RefundMemoType),
		SourceAccount:         r.SourceAccount,
		DestinationAccount:    r.DestinationAccount,
		WithdrawAnchorAccount: r.WithdrawAnchorAccount,
		StellarTransactionID:  r.StellarTransactionID,
		StellarTransactions:   r.StellarTransactions,
		ExternalTransactionID: r.ExternalTransactionID,
		Refunds:               r.Refunds,
		Customers:             r.Customers,
		QuoteID:               r.QuoteID,
		ClientDomain:          r.ClientDomain,
		StartedAt:             r.StartedAt.UTC(),
		UpdatedAt:             r.UpdatedAt.UTC(),
		CompletedAt:           utc(r.CompletedAt),
		TransferReceivedAt:    utc(r.TransferReceivedAt),
		UserActionRequiredBy:  utc(r.UserActionRequiredBy),
		Message:               r.Message,
		RequiredInfoMessage:   r.RequiredInfoMessage,
		RequiredInfoUpdates:   r.RequiredInfoUpdates,
		Version:               r.Version,
	}
}

// quoteRecord persists firm quotes.
type quoteRecord struct {
	ID                 string           `gorm:"primaryKey;size:64"`
	Price              string           `gorm:"size:64"`
	TotalPrice         string           `gorm:"size:64"`
	ExpiresAt          time.Time
	CreatedAt          time.Time        `gorm:"autoCreateTime:false"`
	SellAsset          string           `gorm:"size:128"`
	SellAmount         string           `gorm:"size:64"`
	SellDeliveryMethod string           `gorm:"size:64"`
	BuyAsset           string           `gorm:"size:128"`
	BuyAmount          string           `gorm:"size:64"`
	BuyDeliveryMethod  string           `gorm:"size:64"`
	Fee                types.FeeDetails `gorm:"serializer:json"`
	CreatorAccountID   string           `gorm:"size:128"`
	CreatorMemo        string           `gorm:"size:128"`
	TransactionID      string           `gorm:"size:64;index"`
}

func (quoteRecord) TableName() string { return "quotes" }

func quoteToRecord(q *types.Quote) quoteRecord {
	return quoteRecord{
		ID:                 q.ID,
		Price:              q.Price,
		TotalPrice:         q.TotalPrice,
		ExpiresAt:          q.ExpiresAt.UTC(),
		CreatedAt:          q.CreatedAt.UTC(),
		SellAsset:          q.SellAsset,
		SellAmount:         q.SellAmount,
		SellDeliveryMethod: q.SellDeliveryMethod,
		BuyAsset:           q.BuyAsset,
		BuyAmount:          q.BuyAmount,
		BuyDeliveryMethod:  q.BuyDeliveryMethod,
		Fee:                q.Fee,
		CreatorAccountID:   q.CreatorAccountID,
		CreatorMemo:        q.CreatorMemo,
		TransactionID:      q.TransactionID,
	}
}

func (r quoteRecord) toQuote() *types.Quote {
	return &types.Quote{
		ID:                 r.ID,
		Price:              r.Price,
		TotalPrice:         r.TotalPrice,
		ExpiresAt:          r.ExpiresAt.UTC(),
		CreatedAt:          r.CreatedAt.UTC(),
		SellAsset:          r.SellAsset,
		SellAmount:         r.SellAmount,
		SellDeliveryMethod: r.SellDeliveryMethod,
		BuyAsset:           r.BuyAsset,
		BuyAmount:          r.BuyAmount,
		BuyDeliveryMethod:  r.BuyDeliveryMethod,
		Fee:                r.Fee,
		CreatorAccountID:   r.CreatorAccountID,
		CreatorMemo:        r.CreatorMemo,
		TransactionID:      r.TransactionID,
	}
}

func utc(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	v := ts.UTC()
	return &v
}
