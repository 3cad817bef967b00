package recon

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

var csvHeader = []string{
	"transaction_id", "protocol", "kind", "status", "stellar_transaction_id",
	"expected_amount", "expected_asset", "ledger_amount", "payment_count",
	"missing_ledger_transaction", "amount_mismatch", "ledger_error", "updated_at",
}

func writeCSV(path string, rows []*ReportRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("recon: create csv: %w", err)
	}
	defer file.Close()
	w := csv.NewWriter(file)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("recon: write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.TransactionID,
			string(row.Protocol),
			string(row.Kind),
			string(row.Status),
			row.StellarTransactionID,
			row.ExpectedAmount,
			row.ExpectedAsset,
			row.LedgerAmount,
			strconv.Itoa(row.PaymentCount),
			strconv.FormatBool(row.MissingLedgerTx),
			strconv.FormatBool(row.AmountMismatch),
			row.LedgerError,
			row.UpdatedAt.Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("recon: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("recon: flush csv: %w", err)
	}
	return nil
}

type parquetRow struct {
	TransactionID        string `parquet:"name=transaction_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Protocol             string `parquet:"name=protocol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Kind                 string `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status               string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	StellarTransactionID string `parquet:"name=stellar_transaction_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ExpectedAmount       string `parquet:"name=expected_amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	ExpectedAsset        string `parquet:"name=expected_asset, type=BYTE_ARRAY, convertedtype=UTF8"`
	LedgerAmount         string `parquet:"name=ledger_amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	PaymentCount         int32  `parquet:"name=payment_count, type=INT32"`
	MissingLedgerTx      bool   `parquet:"name=missing_ledger_transaction, type=BOOLEAN"`
	AmountMismatch       bool   `parquet:"name=amount_mismatch, type=BOOLEAN"`
	LedgerError          string `parquet:"name=ledger_error, type=BYTE_ARRAY, convertedtype=UTF8"`
	UpdatedAt            string `parquet:"name=updated_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func writeParquet(path string, rows []*ReportRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("recon: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("recon: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		pr := &parquetRow{
			TransactionID:        row.TransactionID,
			Protocol:             string(row.Protocol),
			Kind:                 string(row.Kind),
			Status:               string(row.Status),
			StellarTransactionID: row.StellarTransactionID,
			ExpectedAmount:       row.ExpectedAmount,
			ExpectedAsset:        row.ExpectedAsset,
			LedgerAmount:         row.LedgerAmount,
			PaymentCount:         int32(row.PaymentCount),
			MissingLedgerTx:      row.MissingLedgerTx,
			AmountMismatch:       row.AmountMismatch,
			LedgerError:          row.LedgerError,
			UpdatedAt:            row.UpdatedAt.Format(time.RFC3339),
		}
		if err := pw.Write(pr); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("recon: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("recon: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("recon: close parquet file: %w", err)
	}
	return nil
}
