// Package recon compares stored anchor transactions against the ledger and
// writes nightly mismatch reports.
package recon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"anchorplatform/core/types"
)

// Anomaly types emitted by the reconciler.
const (
	AnomalyMissingLedgerTx = "missing_ledger_transaction"
	AnomalyAmountMismatch  = "amount_mismatch"
	AnomalyLedgerError     = "ledger_error"
)

// TransactionSource lists ledger linked transactions of one family.
type TransactionSource interface {
	Protocol() types.Protocol
	ListLedgerLinked(ctx context.Context, from, to time.Time) ([]*types.Transaction, error)
}

// Ledger fetches a ledger transaction. Unknown ids return (nil, nil).
type Ledger interface {
	Transaction(ctx context.Context, id string) (*types.StellarTransaction, error)
}

// AlertFunc is invoked for every anomaly detected during reconciliation.
type AlertFunc func(ctx context.Context, anomaly Anomaly) error

// Config captures the dependencies required to construct a Reconciler.
type Config struct {
	Sources   []TransactionSource
	Ledger    Ledger
	OutputDir string
	// Index records finished runs. Nil skips run bookkeeping.
	Index  *Index
	DryRun bool
	Now    func() time.Time
	Alert  AlertFunc
	Logger *slog.Logger
}

// RunOptions specifies overrides when executing a reconciliation window.
type RunOptions struct {
	Start  time.Time
	End    time.Time
	DryRun bool
}

// Anomaly captures a reconciliation failure requiring operator review.
type Anomaly struct {
	Type                 string
	TransactionID        string
	Protocol             types.Protocol
	StellarTransactionID string
	Details              string
}

// ReportRow summarises the ledger state of one transaction.
type ReportRow struct {
	TransactionID        string
	Protocol             types.Protocol
	Kind                 types.Kind
	Status               types.Status
	StellarTransactionID string
	ExpectedAmount       string
	ExpectedAsset        string
	LedgerAmount         string
	PaymentCount         int
	MissingLedgerTx      bool
	AmountMismatch       bool
	LedgerError          string
	UpdatedAt            time.Time
}

// Result summarises a reconciliation run.
type Result struct {
	RunID       string
	Start       time.Time
	End         time.Time
	Rows        []*ReportRow
	Anomalies   []Anomaly
	CSVPath     string
	ParquetPath string
}

// Reconciler materialises reports joining stored transactions with the ledger.
type Reconciler struct {
	sources   []TransactionSource
	ledger    Ledger
	outputDir string
	index     *Index
	dryRun    bool
	now       func() time.Time
	alert     AlertFunc
	logger    *slog.Logger
}

// NewReconciler builds a configured reconciler.
func NewReconciler(cfg Config) (*Reconciler, error) {
	if len(cfg.Sources) == 0 {
		return nil, errors.New("recon: at least one transaction source is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("recon: ledger is required")
	}
	outputDir := strings.TrimSpace(cfg.OutputDir)
	if outputDir == "" {
		outputDir = filepath.Join("anchor-data", "recon")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Reconciler{
		sources:   cfg.Sources,
		ledger:    cfg.Ledger,
		outputDir: outputDir,
		index:     cfg.Index,
		dryRun:    cfg.DryRun,
		now:       now,
		alert:     cfg.Alert,
		logger:    logger,
	}, nil
}

// Run executes reconciliation for the supplied window.
func (r *Reconciler) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	start := opts.Start.UTC()
	end := opts.End.UTC()
	if end.Before(start) {
		return nil, fmt.Errorf("recon: end before start")
	}
	dryRun := r.dryRun || opts.DryRun
	result := &Result{RunID: uuid.NewString(), Start: start, End: end}

	for _, source := range r.sources {
		txs, err := source.ListLedgerLinked(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("recon: list sep%s transactions: %w", source.Protocol(), err)
		}
		for _, tx := range txs {
			row, anomaly := r.check(ctx, tx)
			result.Rows = append(result.Rows, row)
			if anomaly != nil {
				result.Anomalies = append(result.Anomalies, r.raise(ctx, *anomaly))
			}
		}
	}

	if dryRun {
		r.logger.Info("recon dry run finished",
			slog.Int("rows", len(result.Rows)),
			slog.Int("anomalies", len(result.Anomalies)))
		return result, nil
	}

	runDir := filepath.Join(r.outputDir, end.Format("2006-01-02"))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("recon: create output dir: %w", err)
	}
	result.CSVPath = filepath.Join(runDir, "ledger_recon.csv")
	if err := writeCSV(result.CSVPath, result.Rows); err != nil {
		return nil, err
	}
	result.ParquetPath = filepath.Join(runDir, "ledger_recon.parquet")
	if err := writeParquet(result.ParquetPath, result.Rows); err != nil {
		return nil, err
	}
	r.logger.Info("recon report written",
		slog.String("csv", result.CSVPath),
		slog.String("parquet", result.ParquetPath),
		slog.Int("rows", len(result.Rows)))

	if r.index != nil {
		record := RunRecord{
			ID:          result.RunID,
			WindowStart: start,
			WindowEnd:   end,
			FinishedAt:  r.now().UTC(),
			Rows:        len(result.Rows),
			Anomalies:   len(result.Anomalies),
			CSVPath:     result.CSVPath,
			ParquetPath: result.ParquetPath,
		}
		if err := r.index.Record(ctx, record); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// check compares one transaction with its ledger record. Incoming legs are
// checked against amount_in; deposits pay out on the ledger, so amount_out
// is the expected value there.
func (r *Reconciler) check(ctx context.Context, tx *types.Transaction) (*ReportRow, *Anomaly) {
	expected := tx.AmountIn
	if tx.Kind.IsDeposit() {
		expected = tx.AmountOut
	}
	row := &ReportRow{
		TransactionID:        tx.ID,
		Protocol:             tx.Protocol,
		Kind:                 tx.Kind,
		Status:               tx.Status,
		StellarTransactionID: tx.StellarTransactionID,
		ExpectedAmount:       expected.Amount,
		ExpectedAsset:        expected.Asset,
		UpdatedAt:            tx.UpdatedAt.UTC(),
	}
	newAnomaly := func(kind, details string) *Anomaly {
		return &Anomaly{
			Type:                 kind,
			TransactionID:        tx.ID,
			Protocol:             tx.Protocol,
			StellarTransactionID: tx.StellarTransactionID,
			Details:              details,
		}
	}

	stx, err := r.ledger.Transaction(ctx, tx.StellarTransactionID)
	if err != nil {
		row.LedgerError = err.Error()
		return row, newAnomaly(AnomalyLedgerError, err.Error())
	}
	if stx == nil {
		row.MissingLedgerTx = true
		return row, newAnomaly(AnomalyMissingLedgerTx, "ledger transaction not found")
	}

	sum := decimal.Zero
	for _, payment := range stx.Payments {
		if payment.Amount.Asset != expected.Asset {
			continue
		}
		value, err := types.ParseDecimal(payment.Amount.Amount)
		if err != nil {
			continue
		}
		sum = sum.Add(value)
		row.PaymentCount++
	}
	row.LedgerAmount = sum.String()
	want, err := types.ParseDecimal(expected.Amount)
	if err != nil || !sum.Equal(want) {
		row.AmountMismatch = true
		return row, newAnomaly(AnomalyAmountMismatch,
			fmt.Sprintf("expected %s %s, ledger paid %s", expected.Amount, expected.Asset, sum.String()))
	}
	return row, nil
}

func (r *Reconciler) raise(ctx context.Context, anomaly Anomaly) Anomaly {
	r.logger.Warn("recon anomaly",
		slog.String("type", anomaly.Type),
		slog.String("transaction_id", anomaly.TransactionID),
		slog.String("details", anomaly.Details))
	if r.alert != nil {
		if err := r.alert(ctx, anomaly); err != nil {
			r.logger.Error("recon alert delivery failed", slog.Any("error", err))
		}
	}
	return anomaly
}
