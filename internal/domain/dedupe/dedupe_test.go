package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/footprint/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, 0)

		Convey("When a visit event is recorded twice", func() {
			first := d.SeenAndRecord(ctx, "evt-1")
			second := d.SeenAndRecord(ctx, "evt-1")

			Convey("Then only the replay is reported as seen", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When an event is unrecorded after a failed visit", func() {
			d.SeenAndRecord(ctx, "evt-1")
			d.Unrecord(ctx, "evt-1")
			d.Unrecord(ctx, "missing")

			Convey("Then it can be processed again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "evt-1"), ShouldBeFalse)
			})
		})

		Convey("When the event ID is empty", func() {
			Convey("Then it is never treated as a duplicate", func() {
				So(d.SeenAndRecord(ctx, ""), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, ""), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a bounded deduper at capacity", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3), dedupe.WithTTL(0))
		for _, id := range []string{"a", "b", "c"} {
			d.SeenAndRecord(ctx, id)
		}

		Convey("When a new event arrives", func() {
			d.SeenAndRecord(ctx, "d")

			Convey("Then the oldest event is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "d"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
			})
		})
	})

	Convey("Given a deduper with a ten minute window", t, func() {
		now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		d := dedupe.NewInMemoryDeduper(dedupe.WithTTL(10*time.Minute), dedupe.WithClock(clock))

		d.SeenAndRecord(ctx, "early")
		now = now.Add(6 * time.Minute)
		d.SeenAndRecord(ctx, "late")

		Convey("When the first event ages out", func() {
			now = now.Add(5 * time.Minute)

			Convey("Then it is accepted again while the newer one is still guarded", func() {
				So(d.SeenAndRecord(ctx, "late"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "early"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 2)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(-1), dedupe.WithTTL(0))
		for i := 0; i < 5000; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("evt-%d", i))
		}
		So(d.Size(), ShouldEqual, 5000)
		So(d.SeenAndRecord(ctx, "evt-0"), ShouldBeTrue)
	})
}

func TestInMemoryDeduper_Concurrent(t *testing.T) {
	Convey("Given many goroutines replaying the same events", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()

		const workers, events = 16, 200
		var wg sync.WaitGroup
		var mu sync.Mutex
		fresh := 0

		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < events; i++ {
					if !d.SeenAndRecord(ctx, fmt.Sprintf("evt-%d", i)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each event is accepted exactly once", func() {
			So(fresh, ShouldEqual, events)
			So(d.Size(), ShouldEqual, events)
		})
	})
}
