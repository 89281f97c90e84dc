package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each record as a JSON string and indexes visitors in
// two sorted sets: by last visit (unix ms) and by visit count.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	maxRetries int
}

// NewRedisStore wraps an existing client. The caller keeps ownership of
// client unless Close is called.
func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	s := newSettings(opts)
	return &RedisStore{client: client, prefix: s.keyPrefix, maxRetries: s.maxRetries}
}

func (s *RedisStore) visitorKey(id string) string { return s.prefix + "visitor:" + id }
func (s *RedisStore) byLastVisitKey() string      { return s.prefix + "visitors:by_last_visit" }
func (s *RedisStore) byVisitCountKey() string     { return s.prefix + "visitors:by_visit_count" }
func (s *RedisStore) totalVisitsKey() string      { return s.prefix + "visitors:total_visits" }

func (s *RedisStore) FindByVisitorID(ctx context.Context, id string) (rec model.VisitorRecord, err error) {
	defer func(start time.Time) { observe(opFind, start, err) }(time.Now())

	raw, err := s.client.Get(ctx, s.visitorKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.VisitorRecord{}, ErrNotFound
	}
	if err != nil {
		return model.VisitorRecord{}, fmt.Errorf("get visitor %s: %w", id, err)
	}
	return decodeRecord(raw)
}

// UpsertVisitor reads, folds and writes the record inside a WATCH
// transaction, retrying when another writer touched the key.
func (s *RedisStore) UpsertVisitor(ctx context.Context, id string, u model.VisitorUpdate) (rec model.VisitorRecord, err error) {
	defer func(start time.Time) { observe(opUpsert, start, err) }(time.Now())

	if strings.TrimSpace(id) == "" {
		return model.VisitorRecord{}, ErrInvalidID
	}
	key := s.visitorKey(id)

	txf := func(tx *redis.Tx) error {
		var next model.VisitorRecord
		var added int64

		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			next = model.NewVisitorRecord(id, u)
			added = int64(next.VisitCount)
		case err != nil:
			return err
		default:
			prev, err := decodeRecord(raw)
			if err != nil {
				return err
			}
			next = prev.Apply(u)
			added = int64(next.VisitCount - prev.VisitCount)
		}

		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, s.byLastVisitKey(), redis.Z{Score: float64(next.LastVisit.UnixMilli()), Member: id})
			pipe.ZAdd(ctx, s.byVisitCountKey(), redis.Z{Score: float64(next.VisitCount), Member: id})
			if added != 0 {
				pipe.IncrBy(ctx, s.totalVisitsKey(), added)
			}
			return nil
		})
		if err == nil {
			rec = next
		}
		return err
	}

	for i := 0; i < s.maxRetries; i++ {
		err = s.client.Watch(ctx, txf, key)
		if err == nil {
			if n, cerr := s.client.ZCard(ctx, s.byLastVisitKey()).Result(); cerr == nil {
				metrics.UpdateVisitorsTotal(int(n))
			}
			return rec, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return model.VisitorRecord{}, fmt.Errorf("upsert visitor %s: %w", id, err)
	}
	return model.VisitorRecord{}, fmt.Errorf("upsert visitor %s: %w", id, ErrConflict)
}

func (s *RedisStore) ListRecentVisitors(ctx context.Context, limit int) (out []model.VisitorRecord, err error) {
	defer func(start time.Time) { observe(opList, start, err) }(time.Now())

	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	ids, err := s.client.ZRevRange(ctx, s.byLastVisitKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list recent visitors: %w", err)
	}
	if len(ids) == 0 {
		return []model.VisitorRecord{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.visitorKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load recent visitors: %w", err)
	}

	out = make([]model.VisitorRecord, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedisStore) CountByPredicate(ctx context.Context, p Predicate) (n int, err error) {
	defer func(start time.Time) { observe(opCount, start, err) }(time.Now())

	since := "-inf"
	if !p.LastVisitSince.IsZero() {
		since = strconv.FormatInt(p.LastVisitSince.UnixMilli(), 10)
	}
	minCount := "-inf"
	if p.MinVisitCount > 0 {
		minCount = strconv.Itoa(p.MinVisitCount)
	}

	switch {
	case p.MinVisitCount <= 0:
		c, err := s.client.ZCount(ctx, s.byLastVisitKey(), since, "+inf").Result()
		if err != nil {
			return 0, fmt.Errorf("count visitors: %w", err)
		}
		return int(c), nil
	case p.LastVisitSince.IsZero():
		c, err := s.client.ZCount(ctx, s.byVisitCountKey(), minCount, "+inf").Result()
		if err != nil {
			return 0, fmt.Errorf("count visitors: %w", err)
		}
		return int(c), nil
	}

	ids, err := s.client.ZRangeByScore(ctx, s.byLastVisitKey(), &redis.ZRangeBy{Min: since, Max: "+inf"}).Result()
	if err != nil {
		return 0, fmt.Errorf("count visitors: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	scores, err := s.client.ZMScore(ctx, s.byVisitCountKey(), ids...).Result()
	if err != nil {
		return 0, fmt.Errorf("count visitors: %w", err)
	}
	for _, score := range scores {
		if !math.IsNaN(score) && score >= float64(p.MinVisitCount) {
			n++
		}
	}
	return n, nil
}

func (s *RedisStore) TotalVisits(ctx context.Context) (total int64, err error) {
	defer func(start time.Time) { observe(opTotal, start, err) }(time.Now())

	total, err = s.client.Get(ctx, s.totalVisitsKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("total visits: %w", err)
	}
	return total, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

func decodeRecord(raw []byte) (model.VisitorRecord, error) {
	var rec model.VisitorRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.VisitorRecord{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return rec, nil
}
