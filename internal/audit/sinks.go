package audit

import (
	"context"
	"errors"

	"github.com/quantfall/backtester/internal/domain"
)

// Tee fans each event out to every sink, returning the combined errors.
type Tee []domain.AuditLog

// Append writes the event to all sinks. Every sink is attempted even when an
// earlier one fails.
func (t Tee) Append(ctx context.Context, ev domain.AuditEvent) error {
	var errs []error
	for _, sink := range t {
		if err := sink.Append(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards all events. Useful for tests that only exercise arithmetic.
type Nop struct{}

// Append implements domain.AuditLog.
func (Nop) Append(context.Context, domain.AuditEvent) error { return nil }
