package methods

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"anchorplatform/core/types"
)

func TestDepositLifecycle(t *testing.T) {
	f := newFixture(t)
	custody := &fakeCustody{kind: "fireblocks"}
	trust := &fakeTrustlines{configured: true}
	f.deps.Custody = custody
	f.deps.Trustlines = trust
	f.deps.Reconciler = &fakeReconciler{stx: &types.StellarTransaction{
		ID:        "stx-9",
		CreatedAt: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		Payments: []types.StellarPayment{{
			ID:                 "op-9",
			Amount:             types.Amount{Amount: "9", Asset: usdc},
			PaymentType:        types.PaymentTypePayment,
			SourceAccount:      distributor,
			DestinationAccount: userAccount,
		}},
	}}
	f.put(sep24Deposit(types.StatusIncomplete))

	view := f.callView(t, MethodRequestOffchainFunds, map[string]any{
		"transaction_id": "tx-24",
		"amount_in":      map[string]any{"amount": "10", "asset": fiatUSD},
		"amount_out":     map[string]any{"amount": "9", "asset": usdc},
		"amount_fee":     map[string]any{"amount": "1", "asset": fiatUSD},
	})
	require.Equal(t, types.StatusPendingUserTransferStart, view.Status)
	require.Equal(t, &types.Amount{Amount: "10", Asset: fiatUSD}, view.AmountExpected)
	require.Equal(t, &types.Amount{Amount: "9", Asset: usdc}, view.AmountOut)

	view = f.callView(t, MethodNotifyOffchainFundsReceived, map[string]any{
		"transaction_id":          "tx-24",
		"external_transaction_id": "wire-7",
	})
	require.Equal(t, types.StatusPendingAnchor, view.Status)
	require.Equal(t, "wire-7", view.ExternalTransactionID)
	require.Equal(t, f.now, *view.TransferReceivedAt)
	require.Equal(t, []string{"tx-24"}, custody.created)

	view = f.callView(t, MethodDoStellarPayment, map[string]any{"transaction_id": "tx-24"})
	require.Equal(t, types.StatusPendingStellar, view.Status)
	require.Equal(t, []string{"tx-24"}, custody.payments)
	require.Equal(t, []string{userAccount + "/" + usdc}, trust.asked)

	view = f.callView(t, MethodNotifyOnchainFundsSent, map[string]any{
		"transaction_id":         "tx-24",
		"stellar_transaction_id": "stx-9",
	})
	require.Equal(t, types.StatusCompleted, view.Status)
	require.Equal(t, f.now, *view.CompletedAt)
	require.Len(t, view.StellarTransactions, 1)
	require.Equal(t, f.now, *view.TransferReceivedAt)

	require.Equal(t, 4, f.saves())
	require.Len(t, f.events.events, 4)
	require.Equal(t, []string{
		"sep24:" + MethodRequestOffchainFunds,
		"sep24:" + MethodNotifyOffchainFundsReceived,
		"sep24:" + MethodDoStellarPayment,
		"sep24:" + MethodNotifyOnchainFundsSent,
	}, f.metrics.calls)
}

func TestRequestOffchainFundsValidation(t *testing.T) {
	full := func() map[string]any {
		return map[string]any{
			"transaction_id": "tx-24",
			"amount_in":      map[string]any{"amount": "10", "asset": fiatUSD},
			"amount_out":     map[string]any{"amount": "9", "asset": usdc},
			"amount_fee":     map[string]any{"amount": "1", "asset": fiatUSD},
		}
	}
	tests := []struct {
		name    string
		mutate  func(map[string]any)
		wantErr string
	}{
		{
			name:    "stellar amount_in",
			mutate:  func(p map[string]any) { p["amount_in"] = map[string]any{"amount": "10", "asset": usdc} },
			wantErr: "amount_in.asset should be non-stellar asset",
		},
		{
			name:    "fiat amount_out",
			mutate:  func(p map[string]any) { p["amount_out"] = map[string]any{"amount": "9", "asset": fiatUSD} },
			wantErr: "amount_out.asset should be stellar asset",
		},
		{
			name:    "stellar fee",
			mutate:  func(p map[string]any) { p["amount_fee"] = map[string]any{"amount": "1", "asset": usdc} },
			wantErr: "amount_fee.asset should be non-stellar asset",
		},
		{
			name: "both fee forms",
			mutate: func(p map[string]any) {
				p["fee_details"] = map[string]any{"total": "1", "asset": fiatUSD}
			},
			wantErr: "Either fee_details or amount_fee should be set",
		},
		{
			name:    "missing fee",
			mutate:  func(p map[string]any) { delete(p, "amount_fee") },
			wantErr: "All (amount_out is optional) or none of the amount_in, amount_out, and (fee_details or amount_fee) should be set",
		},
		{
			name: "nothing recorded yet",
			mutate: func(p map[string]any) {
				delete(p, "amount_in")
				delete(p, "amount_out")
				delete(p, "amount_fee")
			},
			wantErr: "amount_in is required",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.put(sep24Deposit(types.StatusIncomplete))
			params := full()
			tc.mutate(params)
			_, err := f.call(t, MethodRequestOffchainFunds, params)
			requireMethodError(t, err, KindInvalidParams, tc.wantErr)
			require.Zero(t, f.saves())
		})
	}
}

func TestRequestOffchainFundsAmountOutRule(t *testing.T) {
	priced := func(tx *types.Transaction) *types.Transaction {
		tx.AmountIn = types.Amount{Amount: "10", Asset: fiatUSD}
		tx.AmountOut = types.Amount{Asset: usdc}
		tx.AmountFee = types.Amount{Amount: "1", Asset: fiatUSD}
		return tx
	}

	t.Run("deposit needs amount_out", func(t *testing.T) {
		f := newFixture(t)
		f.put(priced(sep24Deposit(types.StatusIncomplete)))
		_, err := f.call(t, MethodRequestOffchainFunds, map[string]any{"transaction_id": "tx-24"})
		requireMethodError(t, err, KindInvalidParams, "amount_out is required for non-exchange transactions")
		require.Zero(t, f.saves())
	})

	t.Run("exchange across assets may omit it", func(t *testing.T) {
		f := newFixture(t)
		f.put(priced(sep6Transaction(types.KindDepositExchange, types.StatusIncomplete)))
		view := f.callView(t, MethodRequestOffchainFunds, map[string]any{"transaction_id": "tx-6"})
		require.Equal(t, types.StatusPendingUserTransferStart, view.Status)
	})
}

func TestNotifyOffchainFundsReceived(t *testing.T) {
	pending := func() *types.Transaction {
		tx := fundedDeposit24()
		tx.Status = types.StatusPendingUserTransferStart
		tx.TransferReceivedAt = nil
		return tx
	}

	t.Run("keeps reported receipt time", func(t *testing.T) {
		f := newFixture(t)
		f.put(pending())
		at := time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)
		view := f.callView(t, MethodNotifyOffchainFundsReceived, map[string]any{
			"transaction_id":    "tx-24",
			"funds_received_at": at,
			"amount_in":         map[string]any{"amount": "11"},
		})
		require.Equal(t, types.StatusPendingAnchor, view.Status)
		require.Equal(t, at, *view.TransferReceivedAt)
		require.Equal(t, &types.Amount{Amount: "11", Asset: fiatUSD}, view.AmountIn)
	})

	t.Run("both fee forms", func(t *testing.T) {
		f := newFixture(t)
		f.put(pending())
		_, err := f.call(t, MethodNotifyOffchainFundsReceived, map[string]any{
			"transaction_id": "tx-24",
			"amount_in":      map[string]any{"amount": "10"},
			"amount_out":     map[string]any{"amount": "9"},
			"amount_fee":     map[string]any{"amount": "1"},
			"fee_details":    map[string]any{"total": "1", "asset": fiatUSD},
		})
		requireMethodError(t, err, KindInvalidParams, "Either amount_fee or fee_details should be set")
	})

	t.Run("custody failure", func(t *testing.T) {
		f := newFixture(t)
		f.deps.Custody = &fakeCustody{kind: "fireblocks", err: errors.New("custodian offline")}
		f.put(pending())
		_, err := f.call(t, MethodNotifyOffchainFundsReceived, map[string]any{"transaction_id": "tx-24"})
		requireMethodError(t, err, KindInternal, "Failed to create custody transaction for id[tx-24]")
		require.Zero(t, f.saves())
		require.Empty(t, f.events.events)
	})
}

func TestDoStellarPaymentTrustline(t *testing.T) {
	t.Run("missing trustline parks in pending_trust", func(t *testing.T) {
		f := newFixture(t)
		custody := &fakeCustody{kind: "fireblocks"}
		f.deps.Custody = custody
		f.deps.Trustlines = &fakeTrustlines{}
		f.put(fundedDeposit24())

		view := f.callView(t, MethodDoStellarPayment, map[string]any{"transaction_id": "tx-24"})
		require.Equal(t, types.StatusPendingTrust, view.Status)
		require.Empty(t, custody.payments)

		view = f.callView(t, MethodNotifyTrustSet, map[string]any{"transaction_id": "tx-24", "success": true})
		require.Equal(t, types.StatusPendingStellar, view.Status)
		require.Equal(t, []string{"tx-24"}, custody.payments)
	})

	t.Run("lookup failure counts as missing", func(t *testing.T) {
		f := newFixture(t)
		f.deps.Custody = &fakeCustody{kind: "fireblocks"}
		f.deps.Trustlines = &fakeTrustlines{configured: true, err: errors.New("horizon down")}
		f.put(fundedDeposit24())
		view := f.callView(t, MethodDoStellarPayment, map[string]any{"transaction_id": "tx-24"})
		require.Equal(t, types.StatusPendingTrust, view.Status)
	})

	t.Run("custody required", func(t *testing.T) {
		f := newFixture(t)
		f.put(fundedDeposit24())
		_, err := f.call(t, MethodDoStellarPayment, map[string]any{"transaction_id": "tx-24"})
		requireMethodError(t, err, KindInvalidParams, "RPC method[do_stellar_payment] requires enabled custody integration")
		require.Zero(t, f.saves())
	})

	t.Run("custody payment failure", func(t *testing.T) {
		f := newFixture(t)
		f.deps.Custody = &fakeCustody{kind: "fireblocks", err: errors.New("boom")}
		f.deps.Trustlines = &fakeTrustlines{configured: true}
		f.put(fundedDeposit24())
		_, err := f.call(t, MethodDoStellarPayment, map[string]any{"transaction_id": "tx-24"})
		requireMethodError(t, err, KindInternal, "Failed to create custody payment for transaction with id[tx-24]")
		require.Zero(t, f.saves())
	})
}

func TestRequestTrust(t *testing.T) {
	f := newFixture(t)
	f.put(fundedDeposit24())
	view := f.callView(t, MethodRequestTrust, map[string]any{"transaction_id": "tx-24"})
	require.Equal(t, types.StatusPendingTrust, view.Status)

	view = f.callView(t, MethodNotifyTrustSet, map[string]any{"transaction_id": "tx-24", "success": true})
	require.Equal(t, types.StatusPendingAnchor, view.Status)

	f.deps.Custody = &fakeCustody{kind: "fireblocks"}
	_, err := f.call(t, MethodRequestTrust, map[string]any{"transaction_id": "tx-24"})
	requireMethodError(t, err, KindInvalidParams, "RPC method[request_trust] requires disabled custody integration")
	require.Equal(t, 2, f.saves())
}

func TestNotifyInteractiveFlowCompleted(t *testing.T) {
	params := func() map[string]any {
		return map[string]any{
			"transaction_id":  "tx-24",
			"amount_in":       map[string]any{"amount": "10", "asset": fiatUSD},
			"amount_out":      map[string]any{"amount": "9", "asset": usdc},
			"amount_fee":      map[string]any{"amount": "1", "asset": fiatUSD},
			"amount_expected": map[string]any{"amount": "12"},
		}
	}

	t.Run("deposit", func(t *testing.T) {
		f := newFixture(t)
		tx := sep24Deposit(types.StatusIncomplete)
		tx.FeeDetails = []types.FeeDescription{{Name: "service", Amount: "1"}}
		f.put(tx)
		view := f.callView(t, MethodNotifyInteractiveFlowCompleted, params())
		require.Equal(t, types.StatusPendingAnchor, view.Status)
		require.Equal(t, &types.Amount{Amount: "12", Asset: fiatUSD}, view.AmountExpected)
		require.Equal(t, &types.Amount{Amount: "1", Asset: fiatUSD}, view.AmountFee)
		require.Equal(t, 1, f.saves())
	})

	t.Run("withdrawal takes ledger funds in", func(t *testing.T) {
		f := newFixture(t)
		f.put(sep24Withdrawal(types.StatusIncomplete))
		_, err := f.call(t, MethodNotifyInteractiveFlowCompleted, params())
		requireMethodError(t, err, KindInvalidParams, "amount_in.asset should be stellar asset")
		require.Zero(t, f.saves())
	})

	t.Run("fee required", func(t *testing.T) {
		f := newFixture(t)
		f.put(sep24Deposit(types.StatusIncomplete))
		p := params()
		delete(p, "amount_fee")
		_, err := f.call(t, MethodNotifyInteractiveFlowCompleted, p)
		requireMethodError(t, err, KindInvalidParams, "amount_fee is required")
	})
}

func TestOffchainFundsPendingAndAvailable(t *testing.T) {
	t.Run("withdrawal payout pending", func(t *testing.T) {
		f := newFixture(t)
		f.put(fundedWithdrawal())
		view := f.callView(t, MethodNotifyOffchainFundsPending, map[string]any{
			"transaction_id":          "tx-24",
			"external_transaction_id": "wire-2",
		})
		require.Equal(t, types.StatusPendingExternal, view.Status)
		require.Equal(t, "wire-2", view.ExternalTransactionID)
	})

	t.Run("receive payout pending", func(t *testing.T) {
		f := newFixture(t)
		f.put(sep31Receive(types.StatusPendingReceiver))
		view := f.callView(t, MethodNotifyOffchainFundsPending, map[string]any{"transaction_id": "tx-31"})
		require.Equal(t, types.StatusPendingExternal, view.Status)
	})

	t.Run("funds available for pickup", func(t *testing.T) {
		f := newFixture(t)
		tx := fundedWithdrawal()
		tx.Status = types.StatusOnHold
		f.put(tx)
		view := f.callView(t, MethodNotifyOffchainFundsAvailable, map[string]any{
			"transaction_id":          "tx-24",
			"external_transaction_id": "cash-1",
		})
		require.Equal(t, types.StatusPendingUserTransferComplete, view.Status)
		require.Equal(t, "cash-1", view.ExternalTransactionID)
	})
}

func depositRefundParams(id, amount, fee string) map[string]any {
	return map[string]any{
		"transaction_id": "tx-24",
		"refund": map[string]any{
			"id":         id,
			"amount":     map[string]any{"amount": amount, "asset": fiatUSD},
			"amount_fee": map[string]any{"amount": fee, "asset": fiatUSD},
		},
	}
}

func TestNotifyRefundPending(t *testing.T) {
	t.Run("deposit refund then confirmation", func(t *testing.T) {
		f := newFixture(t)
		f.put(fundedDeposit24())

		view := f.callView(t, MethodNotifyRefundPending, depositRefundParams("ext-1", "9", "1"))
		require.Equal(t, types.StatusPendingExternal, view.Status)
		require.Len(t, view.Refunds.Payments, 1)
		require.Equal(t, types.RefundIDExternal, view.Refunds.Payments[0].IDType)
		require.Equal(t, types.Amount{Amount: "10", Asset: fiatUSD}, view.Refunds.AmountRefunded)

		view = f.callView(t, MethodNotifyRefundSent, depositRefundParams("ext-1", "9", "1"))
		require.Equal(t, types.StatusRefunded, view.Status)
		require.Len(t, view.Refunds.Payments, 1)
	})

	t.Run("reused id", func(t *testing.T) {
		f := newFixture(t)
		tx := fundedDeposit24()
		tx.Refunds = &types.Refunds{}
		tx.Refunds.Append(types.RefundPayment{
			ID:     "ext-1",
			IDType: types.RefundIDExternal,
			Amount: types.Amount{Amount: "2", Asset: fiatUSD},
			Fee:    types.Amount{Amount: "0", Asset: fiatUSD},
		}, fiatUSD, fiatUSD)
		f.put(tx)
		_, err := f.call(t, MethodNotifyRefundPending, depositRefundParams("ext-1", "2", "0"))
		requireMethodError(t, err, KindInvalidParams, "Refund with id[ext-1] is already recorded")
		require.Zero(t, f.saves())
	})

	t.Run("exceeds amount_in", func(t *testing.T) {
		f := newFixture(t)
		f.put(fundedDeposit24())
		_, err := f.call(t, MethodNotifyRefundPending, depositRefundParams("ext-1", "10", "1"))
		requireMethodError(t, err, KindInvalidParams, "Refund amount exceeds amount_in")
	})

	t.Run("deposit needs refund", func(t *testing.T) {
		f := newFixture(t)
		f.put(fundedDeposit24())
		_, err := f.call(t, MethodNotifyRefundPending, map[string]any{"transaction_id": "tx-24"})
		requireMethodError(t, err, KindInvalidParams, "refund must not be null")
	})

	t.Run("withdrawal returns to anchor", func(t *testing.T) {
		f := newFixture(t)
		tx := fundedWithdrawal()
		tx.Status = types.StatusPendingUserTransferComplete
		f.put(tx)
		view := f.callView(t, MethodNotifyRefundPending, map[string]any{"transaction_id": "tx-24"})
		require.Equal(t, types.StatusPendingAnchor, view.Status)
		require.Nil(t, view.Refunds)
	})
}

func TestNotifyAmountsAssetsUpdated(t *testing.T) {
	params := func() map[string]any {
		return map[string]any{
			"transaction_id": "tx-6",
			"amount_in":      map[string]any{"amount": "100", "asset": fiatUSD},
			"amount_out":     map[string]any{"amount": "95", "asset": usdc},
			"amount_fee":     map[string]any{"amount": "5", "asset": fiatUSD},
		}
	}

	f := newFixture(t)
	tx := sep6Transaction(types.KindDepositExchange, types.StatusPendingAnchor)
	tx.FeeDetails = []types.FeeDescription{{Name: "service", Amount: "4"}}
	f.put(tx)

	p := params()
	p["amount_out"] = map[string]any{"amount": "0", "asset": usdc}
	_, err := f.call(t, MethodNotifyAmountsAssetsUpdated, p)
	requireMethodError(t, err, KindInvalidParams, "amount_out.amount should be positive")

	view := f.callView(t, MethodNotifyAmountsAssetsUpdated, params())
	require.Equal(t, types.StatusPendingAnchor, view.Status)
	require.Equal(t, &types.Amount{Amount: "95", Asset: usdc}, view.AmountOut)
	require.Equal(t, &types.Amount{Amount: "5", Asset: fiatUSD}, view.AmountFee)
	require.Equal(t, &types.FeeDetails{Total: "5", Asset: fiatUSD}, view.FeeDetails)
}
