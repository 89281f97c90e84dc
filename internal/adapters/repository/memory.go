package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/metrics"
)

// MemoryStore keeps records in a map. It is safe for concurrent use and
// loses everything on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]model.VisitorRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.VisitorRecord)}
}

func (s *MemoryStore) FindByVisitorID(_ context.Context, id string) (rec model.VisitorRecord, err error) {
	defer func(start time.Time) { observe(opFind, start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return model.VisitorRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) UpsertVisitor(_ context.Context, id string, u model.VisitorUpdate) (rec model.VisitorRecord, err error) {
	defer func(start time.Time) { observe(opUpsert, start, err) }(time.Now())

	if strings.TrimSpace(id) == "" {
		return model.VisitorRecord{}, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[id]; ok {
		rec = existing.Apply(u)
	} else {
		rec = model.NewVisitorRecord(id, u)
	}
	s.records[id] = rec
	metrics.UpdateVisitorsTotal(len(s.records))
	return rec, nil
}

func (s *MemoryStore) ListRecentVisitors(_ context.Context, limit int) (out []model.VisitorRecord, err error) {
	defer func(start time.Time) { observe(opList, start, err) }(time.Now())

	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	out = make([]model.VisitorRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastVisit.Equal(out[j].LastVisit) {
			return out[i].LastVisit.After(out[j].LastVisit)
		}
		return out[i].VisitorID < out[j].VisitorID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CountByPredicate(_ context.Context, p Predicate) (n int, err error) {
	defer func(start time.Time) { observe(opCount, start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if p.Matches(r) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) TotalVisits(_ context.Context) (total int64, err error) {
	defer func(start time.Time) { observe(opTotal, start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		total += int64(r.VisitCount)
	}
	return total, nil
}

func (s *MemoryStore) Close() error { return nil }
