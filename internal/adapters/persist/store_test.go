package persist_test

import (
	"context"
	"testing"
	"time"

	persist "github.com/soundshape/panelsync/internal/adapters/persist"
	"github.com/soundshape/panelsync/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// waitFor polls until check passes or the deadline expires. Writes are
// fire-and-continue, so reads after a persist need a short settle window.
func waitFor(check func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return check()
}

func TestStoreSnapshot(t *testing.T) {
	ctx := context.Background()

	Convey("Given an in-memory store", t, func() {
		store, err := persist.New(persist.WithInMemory())
		So(err, ShouldBeNil)
		defer func() { _ = store.Close() }()

		Convey("When no snapshot has been written", func() {
			_, found, err := store.LoadSnapshot(ctx)

			Convey("Then the load reports absence without error", func() {
				So(err, ShouldBeNil)
				So(found, ShouldBeFalse)
			})
		})

		Convey("When persisting a snapshot", func() {
			amount := 0.15
			snap := model.CompositionSnapshot{
				SizeClass:      "wide",
				NumberSections: 4,
				NumberSlots:    16,
				Separation:     8.0,
				BinningMode:    "min_max",
				FilterAmount:   &amount,
				SectionMaterials: []model.SectionMaterial{
					{SectionID: 1, Species: "walnut", GrainDirection: model.GrainHorizontal},
				},
				ProcessedAmplitudes: []float64{0.3, 1.0},
			}
			store.PersistSnapshot(snap)

			Convey("Then the snapshot round-trips", func() {
				var loaded model.CompositionSnapshot
				ok := waitFor(func() bool {
					got, found, err := store.LoadSnapshot(ctx)
					if err != nil || !found {
						return false
					}
					loaded = got
					return true
				})
				So(ok, ShouldBeTrue)
				So(loaded.SizeClass, ShouldEqual, "wide")
				So(loaded.NumberSections, ShouldEqual, 4)
				So(*loaded.FilterAmount, ShouldEqual, 0.15)
				So(loaded.SectionMaterials, ShouldResemble, snap.SectionMaterials)
				So(loaded.ProcessedAmplitudes, ShouldResemble, []float64{0.3, 1.0})
			})
		})

		Convey("When persisting a newer snapshot over an old one", func() {
			store.PersistSnapshot(model.CompositionSnapshot{NumberSections: 2})
			store.PersistSnapshot(model.CompositionSnapshot{NumberSections: 6})

			Convey("Then the latest write wins", func() {
				ok := waitFor(func() bool {
					got, found, err := store.LoadSnapshot(ctx)
					return err == nil && found && got.NumberSections == 6
				})
				So(ok, ShouldBeTrue)
			})
		})
	})
}

func TestStoreSessions(t *testing.T) {
	ctx := context.Background()

	Convey("Given an in-memory store", t, func() {
		store, err := persist.New(persist.WithInMemory())
		So(err, ShouldBeNil)
		defer func() { _ = store.Close() }()

		Convey("When persisting sessions with distinct creation times", func() {
			base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
			store.PersistSession(persist.SessionRecord{
				SessionID:   "older",
				SourceLabel: "a.wav",
				Fingerprint: "fp-a",
				Samples:     []float32{0.1, 0.2},
				CreatedAt:   base,
			})
			store.PersistSession(persist.SessionRecord{
				SessionID:   "newer",
				SourceLabel: "b.wav",
				Fingerprint: "fp-b",
				Samples:     []float32{0.3},
				CreatedAt:   base.Add(time.Minute),
			})

			Convey("Then loads return them newest first with samples intact", func() {
				var records []persist.SessionRecord
				ok := waitFor(func() bool {
					got, err := store.LoadSessions(ctx)
					if err != nil || len(got) != 2 {
						return false
					}
					records = got
					return true
				})
				So(ok, ShouldBeTrue)
				So(records[0].SessionID, ShouldEqual, "newer")
				So(records[1].SessionID, ShouldEqual, "older")
				So(records[1].Samples, ShouldResemble, []float32{0.1, 0.2})
			})
		})

		Convey("When deleting a persisted session", func() {
			store.PersistSession(persist.SessionRecord{SessionID: "gone", CreatedAt: time.Now()})
			ok := waitFor(func() bool {
				got, err := store.LoadSessions(ctx)
				return err == nil && len(got) == 1
			})
			So(ok, ShouldBeTrue)

			store.DeleteSession("gone")

			Convey("Then it no longer loads", func() {
				ok := waitFor(func() bool {
					got, err := store.LoadSessions(ctx)
					return err == nil && len(got) == 0
				})
				So(ok, ShouldBeTrue)
			})
		})
	})
}

func TestStoreClose(t *testing.T) {
	Convey("Given an in-memory store with pending writes", t, func() {
		store, err := persist.New(persist.WithInMemory())
		So(err, ShouldBeNil)

		for i := 0; i < 50; i++ {
			store.PersistSession(persist.SessionRecord{
				SessionID: string(rune('a' + i%26)),
				CreatedAt: time.Now(),
			})
		}

		Convey("When closing", func() {
			So(store.Close(), ShouldBeNil)

			Convey("Then a second close is a no-op", func() {
				So(store.Close(), ShouldBeNil)
			})
		})
	})

	Convey("Given a closed store", t, func() {
		store, err := persist.New(persist.WithInMemory())
		So(err, ShouldBeNil)
		So(store.Close(), ShouldBeNil)

		Convey("When persisting after close", func() {
			Convey("Then the write is dropped without panic", func() {
				So(func() {
					store.PersistSnapshot(model.CompositionSnapshot{NumberSections: 1})
				}, ShouldNotPanic)
			})
		})
	})

	Convey("Given on-disk mode without a path", t, func() {
		_, err := persist.New()

		Convey("Then opening fails with ErrOpen", func() {
			So(err, ShouldNotBeNil)
			So(err, ShouldWrap, persist.ErrOpen)
		})
	})
}
