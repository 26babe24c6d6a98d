package s3blob

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/quantfall/backtester/internal/domain"
)

// multipartThreshold is the object size above which the order log upload
// switches to multipart.
const multipartThreshold int64 = 8 * 1024 * 1024

// RunArchiver implements domain.Archiver by uploading the artifacts of a
// finished run under a per-run prefix:
//
//	runs/{id}/equity.csv
//	runs/{id}/metrics.json
//	runs/{id}/orders.csv
type RunArchiver struct {
	writer domain.BlobWriter
}

// NewRunArchiver creates a RunArchiver over the given blob writer.
func NewRunArchiver(writer domain.BlobWriter) *RunArchiver {
	return &RunArchiver{writer: writer}
}

var _ domain.Archiver = (*RunArchiver)(nil)

// ArchiveRun uploads the equity curve as CSV, the run record with metrics as
// JSON, and the order audit log file if one exists. It returns the object
// prefix the artifacts were written under.
func (a *RunArchiver) ArchiveRun(ctx context.Context, run domain.Run, equity []domain.EquityPoint, orderLogPath string) (string, error) {
	prefix := "runs/" + run.ID

	eq, err := equityCSV(equity)
	if err != nil {
		return "", fmt.Errorf("s3blob: encode equity curve: %w", err)
	}
	if err := a.writer.Put(ctx, prefix+"/equity.csv", bytes.NewReader(eq), "text/csv"); err != nil {
		return "", fmt.Errorf("s3blob: archive equity curve: %w", err)
	}

	meta, err := runJSON(run)
	if err != nil {
		return "", fmt.Errorf("s3blob: encode run record: %w", err)
	}
	if err := a.writer.Put(ctx, prefix+"/metrics.json", bytes.NewReader(meta), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive run record: %w", err)
	}

	if orderLogPath != "" {
		if err := a.uploadOrderLog(ctx, prefix, orderLogPath); err != nil {
			return "", err
		}
	}

	return prefix, nil
}

func (a *RunArchiver) uploadOrderLog(ctx context.Context, prefix, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			// A run with no approved orders never creates the log file.
			return nil
		}
		return fmt.Errorf("s3blob: stat order log %s: %w", path, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("s3blob: open order log %s: %w", path, err)
	}
	defer file.Close()

	key := prefix + "/orders.csv"
	if info.Size() > multipartThreshold {
		if err := a.writer.PutMultipart(ctx, key, file, multipartThreshold); err != nil {
			return fmt.Errorf("s3blob: archive order log: %w", err)
		}
		return nil
	}
	if err := a.writer.Put(ctx, key, file, "text/csv"); err != nil {
		return fmt.Errorf("s3blob: archive order log: %w", err)
	}
	return nil
}

func equityCSV(equity []domain.EquityPoint) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"timestamp", "equity"}); err != nil {
		return nil, err
	}
	for _, p := range equity {
		rec := []string{
			p.Timestamp.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(p.Value, 'f', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func runJSON(run domain.Run) ([]byte, error) {
	record := map[string]any{
		"id":          run.ID,
		"strategy":    run.Strategy,
		"symbol":      run.Symbol,
		"started_at":  run.StartedAt.UTC().Format(time.RFC3339Nano),
		"finished_at": run.FinishedAt.UTC().Format(time.RFC3339Nano),
		"bars":        run.Bars,
		"metrics":     run.Metrics.Map(),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
