package types

import "time"

// Quote is a pre-agreed price between an on-ledger and an off-ledger asset.
type Quote struct {
	ID                 string     `json:"id"`
	Price              string     `json:"price"`
	TotalPrice         string     `json:"total_price"`
	ExpiresAt          time.Time  `json:"expires_at"`
	CreatedAt          time.Time  `json:"created_at"`
	SellAsset          string     `json:"sell_asset"`
	SellAmount         string     `json:"sell_amount"`
	SellDeliveryMethod string     `json:"sell_delivery_method,omitempty"`
	BuyAsset           string     `json:"buy_asset"`
	BuyAmount          string     `json:"buy_amount"`
	BuyDeliveryMethod  string     `json:"buy_delivery_method,omitempty"`
	Fee                FeeDetails `json:"fee"`
	CreatorAccountID   string     `json:"creator_account_id,omitempty"`
	CreatorMemo        string     `json:"creator_memo,omitempty"`
	TransactionID      string     `json:"transaction_id,omitempty"`
}

// Expired reports whether the quote can no longer be used at now.
func (q *Quote) Expired(now time.Time) bool {
	return !q.ExpiresAt.IsZero() && now.After(q.ExpiresAt)
}
