// Package audit implements append-only audit log sinks for order events.
package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/quantfall/backtester/internal/domain"
)

var header = []string{"timestamp", "event_type", "order_id", "side", "price", "quantity", "details"}

// CSVLog appends order events to a tabular file with the columns
// timestamp, event_type, order_id, side, price, quantity, details. The file
// is created with a header row when absent. A CSVLog is owned by a single
// run's control thread.
type CSVLog struct {
	file *os.File
	w    *csv.Writer
}

// NewCSVLog opens (or creates) the log file at path, writing the header row
// first when the file does not already exist.
func NewCSVLog(path string) (*CSVLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("audit: create log dir: %w", err)
		}
	}

	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open log %s: %w", path, err)
	}

	l := &CSVLog{file: file, w: csv.NewWriter(file)}
	if fresh {
		if err := l.w.Write(header); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("audit: write header: %w", err)
		}
		l.w.Flush()
		if err := l.w.Error(); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("audit: flush header: %w", err)
		}
	}
	return l, nil
}

// Append writes one event row and flushes it to the file before returning.
func (l *CSVLog) Append(_ context.Context, ev domain.AuditEvent) error {
	row := []string{
		ev.Timestamp.Format(time.RFC3339Nano),
		string(ev.Type),
		strconv.FormatInt(ev.OrderID, 10),
		string(ev.Side),
		strconv.FormatFloat(ev.Price, 'f', -1, 64),
		strconv.FormatInt(ev.Quantity, 10),
		ev.Details,
	}
	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("audit: write row: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("audit: flush row: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (l *CSVLog) Close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("audit: flush on close: %w", err)
	}
	return l.file.Close()
}

// Compile-time interface check.
var _ domain.AuditLog = (*CSVLog)(nil)
