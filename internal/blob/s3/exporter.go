package s3blob

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/stakesim/stakesim/internal/domain"
)

// ledgerColumns is the canonical column order for ledger exports. Downstream
// analysis notebooks depend on this order, so it never changes.
var ledgerColumns = []string{
	"bet_id", "timestamp", "stake", "odds",
	"result", "profit", "category", "running_balance",
}

// Exporter uploads a completed run's artifacts to object storage: the
// resolved ledger as CSV and the metrics snapshot as JSON, both keyed under
// the run id.
//
// Key schema:
//
//	runs/{run_id}/ledger.csv
//	runs/{run_id}/metrics.json
type Exporter struct {
	writer domain.BlobWriter
}

// NewExporter creates an Exporter that uploads through the given writer.
func NewExporter(writer domain.BlobWriter) *Exporter {
	return &Exporter{writer: writer}
}

// ExportLedger serializes the snapshot's history in resolution order and
// uploads it as CSV. An empty history still produces a header-only file so
// the artifact always exists for a completed run.
func (e *Exporter) ExportLedger(ctx context.Context, runID string, snapshot domain.BankrollSnapshot) error {
	buf, err := marshalLedgerCSV(snapshot.History)
	if err != nil {
		return fmt.Errorf("s3blob: export ledger marshal: %w", err)
	}

	path := fmt.Sprintf("runs/%s/ledger.csv", runID)
	if err := e.writer.Put(ctx, path, bytes.NewReader(buf), "text/csv"); err != nil {
		return fmt.Errorf("s3blob: export ledger upload: %w", err)
	}
	return nil
}

// ExportMetrics uploads the run summary, including its metrics snapshot, as
// a JSON artifact.
func (e *Exporter) ExportMetrics(ctx context.Context, run domain.RunSummary) error {
	buf, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: export metrics marshal: %w", err)
	}

	path := fmt.Sprintf("runs/%s/metrics.json", run.RunID)
	if err := e.writer.Put(ctx, path, bytes.NewReader(buf), "application/json"); err != nil {
		return fmt.Errorf("s3blob: export metrics upload: %w", err)
	}
	return nil
}

func marshalLedgerCSV(entries []domain.LedgerEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(ledgerColumns); err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}

	for i, e := range entries {
		row := []string{
			e.BetID,
			e.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(e.Stake, 'f', -1, 64),
			strconv.FormatFloat(e.DecimalOdds, 'f', -1, 64),
			string(e.Outcome),
			strconv.FormatFloat(e.ProfitAndLoss, 'f', -1, 64),
			e.Category,
			strconv.FormatFloat(e.RunningBalance, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("csv row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
