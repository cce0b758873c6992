package samplecache_test

import (
	"context"
	"testing"
	"time"

	samplecache "github.com/soundshape/panelsync/internal/adapters/samplecache"
	"github.com/soundshape/panelsync/internal/domain/binning"
	. "github.com/smartystreets/goconvey/convey"
)

// tickingClock returns a clock that advances one second per call.
func tickingClock() func() time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new in-memory cache", t, func() {
		c := samplecache.New(samplecache.WithClock(tickingClock()))

		Convey("When storing a buffer", func() {
			id := c.Store(ctx, "take1.wav", "fp-1", []float32{0.1, 0.2, 0.3})

			Convey("Then the session is retrievable by its handle", func() {
				So(id, ShouldNotBeEmpty)
				So(c.Has(ctx, id), ShouldBeTrue)

				samples, ok := c.Samples(ctx, id)
				So(ok, ShouldBeTrue)
				So(samples, ShouldHaveLength, 3)
			})

			Convey("And the stored buffer is a copy", func() {
				original := []float32{1, 2, 3}
				id2 := c.Store(ctx, "take2.wav", "fp-2", original)
				original[0] = 99

				samples, ok := c.Samples(ctx, id2)
				So(ok, ShouldBeTrue)
				So(samples[0], ShouldEqual, 1)
			})

			Convey("And every store issues a distinct handle", func() {
				id2 := c.Store(ctx, "take1.wav", "fp-1", []float32{0.1, 0.2, 0.3})
				So(id2, ShouldNotEqual, id)
			})
		})

		Convey("When querying an unknown session", func() {
			Convey("Then lookups report a miss", func() {
				So(c.Has(ctx, "nope"), ShouldBeFalse)

				_, ok := c.Samples(ctx, "nope")
				So(ok, ShouldBeFalse)

				_, ok = c.Rebin(ctx, "nope", binning.Params{TargetSlotCount: 4})
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When clearing sessions", func() {
			id1 := c.Store(ctx, "a.wav", "fp-a", []float32{1})
			id2 := c.Store(ctx, "b.wav", "fp-b", []float32{2})

			Convey("And clearing one", func() {
				c.Clear(ctx, id1)

				Convey("Then only that session is gone", func() {
					So(c.Has(ctx, id1), ShouldBeFalse)
					So(c.Has(ctx, id2), ShouldBeTrue)
				})
			})

			Convey("And clearing all", func() {
				c.ClearAll(ctx)

				Convey("Then the cache is empty", func() {
					So(c.Stats(ctx).SessionCount, ShouldEqual, 0)
				})
			})
		})
	})
}

func TestInMemoryCacheEviction(t *testing.T) {
	ctx := context.Background()

	Convey("Given a cache bounded to three sessions", t, func() {
		c := samplecache.New(
			samplecache.WithCapacity(3),
			samplecache.WithClock(tickingClock()),
		)

		id1 := c.Store(ctx, "first.wav", "fp-1", []float32{1})
		id2 := c.Store(ctx, "second.wav", "fp-2", []float32{2})
		id3 := c.Store(ctx, "third.wav", "fp-3", []float32{3})

		Convey("When storing a fourth buffer", func() {
			id4 := c.Store(ctx, "fourth.wav", "fp-4", []float32{4})

			Convey("Then the oldest session is evicted and the rest survive", func() {
				So(c.Has(ctx, id1), ShouldBeFalse)
				So(c.Has(ctx, id2), ShouldBeTrue)
				So(c.Has(ctx, id3), ShouldBeTrue)
				So(c.Has(ctx, id4), ShouldBeTrue)
				So(c.Stats(ctx).SessionCount, ShouldEqual, 3)
			})
		})

		Convey("When sessions share a creation timestamp", func() {
			frozen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
			cf := samplecache.New(
				samplecache.WithCapacity(2),
				samplecache.WithClock(func() time.Time { return frozen }),
			)
			first := cf.Store(ctx, "a.wav", "fp-a", []float32{1})
			second := cf.Store(ctx, "b.wav", "fp-b", []float32{2})
			third := cf.Store(ctx, "c.wav", "fp-c", []float32{3})

			Convey("Then insertion order breaks the tie", func() {
				So(cf.Has(ctx, first), ShouldBeFalse)
				So(cf.Has(ctx, second), ShouldBeTrue)
				So(cf.Has(ctx, third), ShouldBeTrue)
			})
		})
	})
}

func TestInMemoryCacheRehydrate(t *testing.T) {
	ctx := context.Background()

	Convey("Given a cache with one stored session", t, func() {
		c := samplecache.New(samplecache.WithClock(tickingClock()))
		id := c.Store(ctx, "live.wav", "fp-live", []float32{1, 2})

		Convey("When rehydrating an unknown session id", func() {
			c.Rehydrate(ctx, "restored-1", "old.wav", "fp-old", []float32{5, 6, 7}, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC))

			Convey("Then the session appears under the given id", func() {
				So(c.Has(ctx, "restored-1"), ShouldBeTrue)

				samples, ok := c.Samples(ctx, "restored-1")
				So(ok, ShouldBeTrue)
				So(samples, ShouldHaveLength, 3)
			})
		})

		Convey("When rehydrating an id that already exists", func() {
			c.Rehydrate(ctx, id, "stale.wav", "fp-stale", []float32{9}, time.Time{})

			Convey("Then the existing session is left untouched", func() {
				samples, ok := c.Samples(ctx, id)
				So(ok, ShouldBeTrue)
				So(samples, ShouldResemble, []float32{1, 2})
			})
		})
	})

	Convey("Given more persisted sessions than the cache holds", t, func() {
		c := samplecache.New(
			samplecache.WithCapacity(5),
			samplecache.WithClock(tickingClock()),
		)

		// Restore replays records newest first, carrying their original
		// upload timestamps. All predate the cache clock.
		base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
		for i := 5; i >= 0; i-- {
			c.Rehydrate(ctx, sessionName(i), "take.wav", "fp", []float32{1}, base.Add(time.Duration(i)*time.Minute))
		}

		Convey("Then eviction removes the oldest uploads, not the newest", func() {
			So(c.Stats(ctx).SessionCount, ShouldEqual, 5)
			So(c.Has(ctx, sessionName(0)), ShouldBeFalse)
			for i := 1; i <= 5; i++ {
				So(c.Has(ctx, sessionName(i)), ShouldBeTrue)
			}
		})

		Convey("And a zero restore timestamp falls back to the cache clock", func() {
			c.Rehydrate(ctx, "undated", "late.wav", "fp-late", []float32{2}, time.Time{})

			Convey("Then the undated session is the newest and survives the next insert", func() {
				c.Store(ctx, "fresh.wav", "fp-fresh", []float32{3})
				So(c.Has(ctx, "undated"), ShouldBeTrue)
			})
		})
	})
}

func sessionName(i int) string {
	return "restored-" + string(rune('a'+i))
}

func TestInMemoryCacheRemovalHook(t *testing.T) {
	ctx := context.Background()

	Convey("Given a bounded cache with a removal hook", t, func() {
		var removed []string
		c := samplecache.New(
			samplecache.WithCapacity(2),
			samplecache.WithClock(tickingClock()),
			samplecache.WithRemovalHook(func(sessionID string) {
				removed = append(removed, sessionID)
			}),
		)

		id1 := c.Store(ctx, "a.wav", "fp-a", []float32{1})
		id2 := c.Store(ctx, "b.wav", "fp-b", []float32{2})

		Convey("When capacity pressure evicts a session", func() {
			c.Store(ctx, "c.wav", "fp-c", []float32{3})

			Convey("Then the hook reports the evicted id", func() {
				So(removed, ShouldResemble, []string{id1})
			})
		})

		Convey("When a session is cleared", func() {
			c.Clear(ctx, id2)

			Convey("Then the hook reports it", func() {
				So(removed, ShouldResemble, []string{id2})
			})

			Convey("And clearing an unknown id stays silent", func() {
				c.Clear(ctx, "nope")
				So(removed, ShouldResemble, []string{id2})
			})
		})

		Convey("When everything is cleared", func() {
			c.ClearAll(ctx)

			Convey("Then the hook reports every session", func() {
				So(removed, ShouldHaveLength, 2)
				So(removed, ShouldContain, id1)
				So(removed, ShouldContain, id2)
			})
		})
	})
}

func TestInMemoryCacheRebin(t *testing.T) {
	ctx := context.Background()

	Convey("Given a cached session", t, func() {
		c := samplecache.New(samplecache.WithClock(tickingClock()))
		id := c.Store(ctx, "take.wav", "fp", []float32{1, 2, 3, 4})

		Convey("When rebinning with two target slots", func() {
			out, ok := c.Rebin(ctx, id, binning.Params{
				TargetSlotCount: 2,
				Mode:            binning.ModeMinMax,
			})

			Convey("Then the envelope is derived from the cached buffer", func() {
				So(ok, ShouldBeTrue)
				So(out, ShouldHaveLength, 2)
				So(out[0], ShouldAlmostEqual, 0.5)
				So(out[1], ShouldAlmostEqual, 1.0)
			})
		})

		Convey("When rebinning repeatedly with different parameters", func() {
			first, ok1 := c.Rebin(ctx, id, binning.Params{TargetSlotCount: 2, Mode: binning.ModeMeanAbs})
			second, ok2 := c.Rebin(ctx, id, binning.Params{TargetSlotCount: 4, Mode: binning.ModeMeanAbs})

			Convey("Then each call derives a fresh envelope without mutating the session", func() {
				So(ok1, ShouldBeTrue)
				So(ok2, ShouldBeTrue)
				So(first, ShouldHaveLength, 2)
				So(second, ShouldHaveLength, 4)

				samples, ok := c.Samples(ctx, id)
				So(ok, ShouldBeTrue)
				So(samples, ShouldResemble, []float32{1, 2, 3, 4})
			})
		})
	})
}

func TestInMemoryCacheStats(t *testing.T) {
	ctx := context.Background()

	Convey("Given a cache with two sessions", t, func() {
		c := samplecache.New(samplecache.WithClock(tickingClock()))
		c.Store(ctx, "short.wav", "fp-s", make([]float32, 10))
		c.Store(ctx, "long.wav", "fp-l", make([]float32, 100))

		Convey("When reading stats", func() {
			st := c.Stats(ctx)

			Convey("Then counts and byte sizes reflect four bytes per sample", func() {
				So(st.SessionCount, ShouldEqual, 2)
				So(st.TotalBytes, ShouldEqual, int64(110*4))
				So(st.PerSession, ShouldHaveLength, 2)
			})

			Convey("And sessions are listed oldest first", func() {
				So(st.PerSession[0].SourceLabel, ShouldEqual, "short.wav")
				So(st.PerSession[1].SourceLabel, ShouldEqual, "long.wav")
				So(st.PerSession[0].SampleCount, ShouldEqual, 10)
				So(st.PerSession[0].Bytes, ShouldEqual, int64(40))
			})
		})
	})
}
