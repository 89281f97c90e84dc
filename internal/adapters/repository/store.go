// Package repository persists visitor records behind a backend-neutral Store.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/metrics"
)

// Predicate selects visitors for CountByPredicate. Zero fields match everything.
type Predicate struct {
	// MinVisitCount matches visitors with at least this many visits.
	MinVisitCount int
	// LastVisitSince matches visitors last seen at or after this instant.
	LastVisitSince time.Time
}

// Matches reports whether r satisfies p.
func (p Predicate) Matches(r model.VisitorRecord) bool {
	if p.MinVisitCount > 0 && r.VisitCount < p.MinVisitCount {
		return false
	}
	if !p.LastVisitSince.IsZero() && r.LastVisit.Before(p.LastVisitSince) {
		return false
	}
	return true
}

// Store provides read/write access to visitor records.
type Store interface {
	// FindByVisitorID returns ErrNotFound for unknown visitors.
	FindByVisitorID(ctx context.Context, id string) (model.VisitorRecord, error)
	// UpsertVisitor creates the record on first sight or folds u into it,
	// and returns the stored result.
	UpsertVisitor(ctx context.Context, id string, u model.VisitorUpdate) (model.VisitorRecord, error)
	// ListRecentVisitors returns up to limit records, most recent last visit first.
	ListRecentVisitors(ctx context.Context, limit int) ([]model.VisitorRecord, error)
	// CountByPredicate counts matching visitors.
	CountByPredicate(ctx context.Context, p Predicate) (int, error)
	// TotalVisits sums visit counts across all visitors.
	TotalVisits(ctx context.Context) (int64, error)
	Close() error
}

// Store operation labels for metrics.
const (
	opFind   = "find"
	opUpsert = "upsert"
	opList   = "list"
	opCount  = "count"
	opTotal  = "total"
)

func observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.RecordStoreError(op)
	}
}
