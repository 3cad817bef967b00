package types

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRefundsUpsertRecalculates(t *testing.T) {
	refunds := &Refunds{}
	refunds.Upsert(RefundPayment{
		ID:     "r1",
		IDType: RefundIDStellar,
		Amount: Amount{Amount: "1", Asset: "stellar:USDC"},
		Fee:    Amount{Amount: "0.1", Asset: "stellar:USDC"},
	}, "stellar:USDC", "stellar:USDC")
	require.Equal(t, "1.1", refunds.AmountRefunded.Amount)
	require.Equal(t, "0.1", refunds.AmountFee.Amount)

	refunds.Upsert(RefundPayment{
		ID:     "r1",
		Amount: Amount{Amount: "0.5", Asset: "stellar:USDC"},
		Fee:    Amount{Amount: "0", Asset: "stellar:USDC"},
	}, "stellar:USDC", "stellar:USDC")
	require.Len(t, refunds.Payments, 1)
	require.Equal(t, "0.5", refunds.AmountRefunded.Amount)

	refunds.Upsert(RefundPayment{
		ID:     "r2",
		Amount: Amount{Amount: "0.25", Asset: "stellar:USDC"},
		Fee:    Amount{Amount: "0.05", Asset: "stellar:USDC"},
	}, "stellar:USDC", "stellar:USDC")
	require.Len(t, refunds.Payments, 2)
	require.Equal(t, "0.8", refunds.AmountRefunded.Amount)
	require.Equal(t, "0.05", refunds.AmountFee.Amount)
}

func TestRefundsAppendKeepsEveryPayment(t *testing.T) {
	refunds := &Refunds{}
	for _, id := range []string{"r1", "r2"} {
		refunds.Append(RefundPayment{
			ID:     id,
			Amount: Amount{Amount: "0.5", Asset: "stellar:USDC"},
			Fee:    Amount{Amount: "0", Asset: "iso4217:USD"},
		}, "stellar:USDC", "iso4217:USD")
	}
	require.Len(t, refunds.Payments, 2)
	require.Equal(t, Amount{Amount: "1", Asset: "stellar:USDC"}, refunds.AmountRefunded)
	require.Equal(t, Amount{Amount: "0", Asset: "iso4217:USD"}, refunds.AmountFee)
}

func TestTransactionCloneIsDeep(t *testing.T) {
	received := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tx := &Transaction{
		ID:                 "tx-1",
		TransferReceivedAt: &received,
		Refunds:            &Refunds{Payments: []RefundPayment{{ID: "r1"}}},
		StellarTransactions: []StellarTransaction{{
			ID:       "stx",
			Payments: []StellarPayment{{ID: "p1"}},
		}},
		RequiredInfoUpdates: []string{"first_name"},
	}
	clone := tx.Clone()
	clone.Refunds.Payments[0].ID = "changed"
	clone.StellarTransactions[0].Payments[0].ID = "changed"
	*clone.TransferReceivedAt = received.Add(time.Hour)
	clone.RequiredInfoUpdates[0] = "changed"

	require.Equal(t, "r1", tx.Refunds.Payments[0].ID)
	require.Equal(t, "p1", tx.StellarTransactions[0].Payments[0].ID)
	require.Equal(t, received, *tx.TransferReceivedAt)
	require.Equal(t, "first_name", tx.RequiredInfoUpdates[0])
}

func TestAddStellarTransactionReplacesByID(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tx := &Transaction{}
	tx.AddStellarTransaction(StellarTransaction{ID: "b", CreatedAt: base.Add(time.Minute)})
	tx.AddStellarTransaction(StellarTransaction{ID: "a", CreatedAt: base})
	tx.AddStellarTransaction(StellarTransaction{ID: "b", CreatedAt: base.Add(time.Minute), Envelope: "AAAA"})

	require.Len(t, tx.StellarTransactions, 2)
	require.Equal(t, "a", tx.StellarTransactions[0].ID)
	require.Equal(t, "AAAA", tx.StellarTransactions[1].Envelope)
	require.Equal(t, "b", tx.StellarTransactionID)
}

func TestParseMemo(t *testing.T) {
	hash := strings.Repeat("0", 63) + "1"
	tests := []struct {
		name     string
		memo     string
		memoType string
		wantType MemoType
		wantErr  string
	}{
		{name: "text", memo: "hello", memoType: "text", wantType: MemoTypeText},
		{name: "id", memo: "12345", memoType: "id", wantType: MemoTypeID},
		{name: "hash hex", memo: hash, memoType: "hash", wantType: MemoTypeHash},
		{name: "bad id", memo: "abc", memoType: "id", wantErr: "Invalid memo abc of type:id"},
		{name: "unknown type", memo: "x", memoType: "invalid", wantErr: "Invalid memo type: invalid"},
		{name: "long text", memo: "12345678901234567890123456789", memoType: "text", wantErr: "text memo must be at most 28 bytes"},
		{name: "empty", memo: "", memoType: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, memoType, err := ParseMemo(tc.memo, tc.memoType)
			if tc.wantErr != "" {
				require.EqualError(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantType, memoType)
		})
	}
}

func TestNewTransactionViewOmitsUnsetAmounts(t *testing.T) {
	tx := &Transaction{
		ID:             "tx-1",
		Protocol:       ProtocolSEP24,
		Kind:           KindWithdrawal,
		Status:         StatusPendingAnchor,
		AmountIn:       Amount{Amount: "10", Asset: "stellar:USDC"},
		AmountFee:      Amount{Amount: "1", Asset: "stellar:USDC"},
		AmountExpected: "10",
	}
	view := NewTransactionView(tx)
	require.Nil(t, view.AmountOut)
	require.Equal(t, "10", view.AmountIn.Amount)
	require.Equal(t, "stellar:USDC", view.AmountExpected.Asset)
	require.Equal(t, "1", view.FeeDetails.Total)

	view.AmountIn.Amount = "99"
	require.Equal(t, "10", tx.AmountIn.Amount)
}

func TestStatusClassification(t *testing.T) {
	require.True(t, StatusCompleted.IsFinal())
	require.True(t, StatusRefunded.IsFinal())
	require.False(t, StatusError.IsFinal())
	require.True(t, StatusExpired.IsError())
	_, ok := ParseStatus("pending_anchor")
	require.True(t, ok)
	_, ok = ParseStatus("bogus")
	require.False(t, ok)
}
