package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okian/footprint/internal/domain/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS visitors (
	visitor_id        TEXT PRIMARY KEY,
	first_visit       TIMESTAMPTZ NOT NULL,
	last_visit        TIMESTAMPTZ NOT NULL,
	visit_count       INTEGER     NOT NULL DEFAULT 1,
	browser           TEXT        NOT NULL,
	country           TEXT        NOT NULL,
	country_code      TEXT        NOT NULL,
	screen_resolution TEXT        NOT NULL,
	theme             TEXT        NOT NULL,
	language          TEXT        NOT NULL
);
CREATE INDEX IF NOT EXISTS visitors_last_visit_idx ON visitors (last_visit DESC);
CREATE INDEX IF NOT EXISTS visitors_visit_count_idx ON visitors (visit_count);
`

const visitorColumns = `visitor_id, first_visit, last_visit, visit_count, browser,
	country, country_code, screen_resolution, theme, language`

// PostgresStore keeps one row per visitor.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to url and makes sure the schema exists.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the visitors table and its indexes when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (model.VisitorRecord, error) {
	var rec model.VisitorRecord
	var browser string
	err := row.Scan(&rec.VisitorID, &rec.FirstVisit, &rec.LastVisit, &rec.VisitCount, &browser,
		&rec.Country, &rec.CountryCode, &rec.ScreenResolution, &rec.Preferences.Theme, &rec.Preferences.Language)
	if err != nil {
		return model.VisitorRecord{}, err
	}
	rec.Browser = model.Browser(browser)
	rec.FirstVisit = rec.FirstVisit.UTC()
	rec.LastVisit = rec.LastVisit.UTC()
	rec.TimestampMs = rec.LastVisit.UnixMilli()
	return rec, nil
}

func (s *PostgresStore) FindByVisitorID(ctx context.Context, id string) (rec model.VisitorRecord, err error) {
	defer func(start time.Time) { observe(opFind, start, err) }(time.Now())

	rec, err = scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+visitorColumns+` FROM visitors WHERE visitor_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.VisitorRecord{}, ErrNotFound
	}
	if err != nil {
		return model.VisitorRecord{}, fmt.Errorf("find visitor %s: %w", id, err)
	}
	return rec, nil
}

// UpsertVisitor locks the row, folds u into it in Go and writes it back
// with INSERT ... ON CONFLICT, all in one transaction.
func (s *PostgresStore) UpsertVisitor(ctx context.Context, id string, u model.VisitorUpdate) (rec model.VisitorRecord, err error) {
	defer func(start time.Time) { observe(opUpsert, start, err) }(time.Now())

	if strings.TrimSpace(id) == "" {
		return model.VisitorRecord{}, ErrInvalidID
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		prev, err := scanRecord(tx.QueryRow(ctx,
			`SELECT `+visitorColumns+` FROM visitors WHERE visitor_id = $1 FOR UPDATE`, id))
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			rec = model.NewVisitorRecord(id, u)
		case err != nil:
			return err
		default:
			rec = prev.Apply(u)
		}

		_, err = tx.Exec(ctx, `
INSERT INTO visitors (`+visitorColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (visitor_id) DO UPDATE SET
	last_visit = EXCLUDED.last_visit,
	visit_count = EXCLUDED.visit_count,
	browser = EXCLUDED.browser,
	country = EXCLUDED.country,
	country_code = EXCLUDED.country_code,
	screen_resolution = EXCLUDED.screen_resolution,
	theme = EXCLUDED.theme,
	language = EXCLUDED.language`,
			rec.VisitorID, rec.FirstVisit, rec.LastVisit, rec.VisitCount, string(rec.Browser),
			rec.Country, rec.CountryCode, rec.ScreenResolution, rec.Preferences.Theme, rec.Preferences.Language)
		return err
	})
	if err != nil {
		return model.VisitorRecord{}, fmt.Errorf("upsert visitor %s: %w", id, err)
	}
	return rec, nil
}

func (s *PostgresStore) ListRecentVisitors(ctx context.Context, limit int) (out []model.VisitorRecord, err error) {
	defer func(start time.Time) { observe(opList, start, err) }(time.Now())

	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+visitorColumns+` FROM visitors ORDER BY last_visit DESC, visitor_id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent visitors: %w", err)
	}
	defer rows.Close()

	out = make([]model.VisitorRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visitor: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recent visitors: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountByPredicate(ctx context.Context, p Predicate) (n int, err error) {
	defer func(start time.Time) { observe(opCount, start, err) }(time.Now())

	query := `SELECT COUNT(*) FROM visitors WHERE ($1 <= 0 OR visit_count >= $1) AND ($2::timestamptz IS NULL OR last_visit >= $2)`
	var since *time.Time
	if !p.LastVisitSince.IsZero() {
		since = &p.LastVisitSince
	}
	if err := s.pool.QueryRow(ctx, query, p.MinVisitCount, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count visitors: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) TotalVisits(ctx context.Context) (total int64, err error) {
	defer func(start time.Time) { observe(opTotal, start, err) }(time.Now())

	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(visit_count), 0) FROM visitors`).Scan(&total); err != nil {
		return 0, fmt.Errorf("total visits: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
