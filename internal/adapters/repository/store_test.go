package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/okian/footprint/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

var base = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

type storeFactory func(t testing.TB) Store

func memoryFactory(testing.TB) Store { return NewMemoryStore() }

func redisFactory(t testing.TB) Store {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client, WithKeyPrefix("test:"))
}

func postgresFactory(t testing.TB) Store {
	url := os.Getenv("FOOTPRINT_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("FOOTPRINT_TEST_POSTGRES_URL not set")
	}
	s, err := NewPostgresStore(context.Background(), url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := s.pool.Exec(context.Background(), `TRUNCATE visitors`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return s
}

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory":   memoryFactory,
		"redis":    redisFactory,
		"postgres": postgresFactory,
	}
}

func visit(at time.Time, browser model.Browser, increment bool) model.VisitorUpdate {
	return model.VisitorUpdate{At: at, Browser: browser, Country: "Germany", CountryCode: "DE", IncrementVisit: increment}
}

func TestStore_UpsertAndFind(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			defer store.Close()

			if _, err := store.FindByVisitorID(ctx, "v1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			rec, err := store.UpsertVisitor(ctx, "v1", visit(base, model.BrowserFirefox, true))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.VisitCount != 1 {
				t.Errorf("expected first visit count 1, got %d", rec.VisitCount)
			}
			if rec.Preferences.Theme != model.DefaultTheme || rec.ScreenResolution != model.DefaultScreenResolution {
				t.Errorf("expected defaults, got %+v", rec)
			}

			later := base.Add(time.Hour)
			rec, err = store.UpsertVisitor(ctx, "v1", visit(later, model.BrowserChrome, true))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.VisitCount != 2 || rec.Browser != model.BrowserChrome {
				t.Errorf("expected second visit with Chrome, got %+v", rec)
			}

			rec, err = store.UpsertVisitor(ctx, "v1", visit(later.Add(time.Minute), "", false))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.VisitCount != 2 {
				t.Errorf("expected non-incrementing update to keep count 2, got %d", rec.VisitCount)
			}

			found, err := store.FindByVisitorID(ctx, "v1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !found.FirstVisit.Equal(base) || !found.LastVisit.Equal(later.Add(time.Minute)) {
				t.Errorf("unexpected visit window %v..%v", found.FirstVisit, found.LastVisit)
			}
			if found.Browser != model.BrowserChrome {
				t.Errorf("expected empty browser to keep Chrome, got %s", found.Browser)
			}

			if _, err := store.UpsertVisitor(ctx, " ", visit(base, "", true)); !errors.Is(err, ErrInvalidID) {
				t.Errorf("expected ErrInvalidID, got %v", err)
			}
		})
	}
}

func TestStore_ListRecentAndCount(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			defer store.Close()

			for i := 0; i < 5; i++ {
				id := fmt.Sprintf("v%d", i)
				for j := 0; j <= i; j++ {
					if _, err := store.UpsertVisitor(ctx, id, visit(base.Add(time.Duration(i)*time.Hour), "", true)); err != nil {
						t.Fatalf("upsert: %v", err)
					}
				}
			}

			if _, err := store.ListRecentVisitors(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
				t.Errorf("expected ErrInvalidLimit, got %v", err)
			}

			recent, err := store.ListRecentVisitors(ctx, 3)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(recent) != 3 {
				t.Fatalf("expected 3 records, got %d", len(recent))
			}
			for i, want := range []string{"v4", "v3", "v2"} {
				if recent[i].VisitorID != want {
					t.Errorf("position %d: expected %s, got %s", i, want, recent[i].VisitorID)
				}
			}

			cases := []struct {
				name string
				p    Predicate
				want int
			}{
				{"all", Predicate{}, 5},
				{"returning", Predicate{MinVisitCount: 2}, 4},
				{"recent", Predicate{LastVisitSince: base.Add(2 * time.Hour)}, 3},
				{"recent and frequent", Predicate{MinVisitCount: 4, LastVisitSince: base.Add(2 * time.Hour)}, 2},
				{"nothing", Predicate{LastVisitSince: base.Add(48 * time.Hour)}, 0},
			}
			for _, tc := range cases {
				got, err := store.CountByPredicate(ctx, tc.p)
				if err != nil {
					t.Fatalf("%s: %v", tc.name, err)
				}
				if got != tc.want {
					t.Errorf("%s: expected %d, got %d", tc.name, tc.want, got)
				}
			}

			total, err := store.TotalVisits(ctx)
			if err != nil {
				t.Fatalf("total: %v", err)
			}
			if total != 15 {
				t.Errorf("expected 15 total visits, got %d", total)
			}
		})
	}
}

func TestStore_ConcurrentUpserts(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			defer store.Close()

			const writers = 20
			var wg sync.WaitGroup
			errs := make(chan error, writers)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := store.UpsertVisitor(ctx, "shared", visit(base.Add(time.Duration(i)*time.Second), "", true))
					errs <- err
				}(i)
			}
			wg.Wait()
			close(errs)

			failed := 0
			for err := range errs {
				if err != nil {
					if !errors.Is(err, ErrConflict) {
						t.Fatalf("unexpected error: %v", err)
					}
					failed++
				}
			}

			rec, err := store.FindByVisitorID(ctx, "shared")
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if rec.VisitCount != writers-failed {
				t.Errorf("expected %d visits, got %d", writers-failed, rec.VisitCount)
			}
			if !rec.LastVisit.Equal(base.Add((writers-1)*time.Second)) && failed == 0 {
				t.Errorf("expected latest visit to win, got %v", rec.LastVisit)
			}
		})
	}
}

func TestPredicate_Matches(t *testing.T) {
	rec := model.VisitorRecord{VisitCount: 3, LastVisit: base}
	if !(Predicate{}).Matches(rec) {
		t.Error("zero predicate should match")
	}
	if !(Predicate{MinVisitCount: 3, LastVisitSince: base}).Matches(rec) {
		t.Error("bounds are inclusive")
	}
	if (Predicate{MinVisitCount: 4}).Matches(rec) {
		t.Error("visit count below minimum should not match")
	}
	if (Predicate{LastVisitSince: base.Add(time.Nanosecond)}).Matches(rec) {
		t.Error("older last visit should not match")
	}
}

func TestRedisStore_CorruptRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer store.Close()

	if err := mr.Set("footprint:visitor:bad", "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.FindByVisitorID(context.Background(), "bad"); !errors.Is(err, ErrCorruptRecord) {
		t.Errorf("expected ErrCorruptRecord, got %v", err)
	}
}

func BenchmarkMemoryStore_Upsert(b *testing.B) {
	ctx := context.Background()
	store := NewMemoryStore()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = store.UpsertVisitor(ctx, fmt.Sprintf("v%d", i%1000), visit(base, model.BrowserChrome, true))
			i++
		}
	})
}

func BenchmarkMemoryStore_ListRecent(b *testing.B) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i := 0; i < 10000; i++ {
		_, _ = store.UpsertVisitor(ctx, fmt.Sprintf("v%d", i), visit(base.Add(time.Duration(i)*time.Second), "", true))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.ListRecentVisitors(ctx, 1000)
	}
}
