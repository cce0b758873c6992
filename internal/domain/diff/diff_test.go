package diff_test

import (
	"testing"

	diff "github.com/soundshape/panelsync/internal/domain/diff"
	"github.com/soundshape/panelsync/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func floatPtr(v float64) *float64 { return &v }

func baseSnapshot() model.CompositionSnapshot {
	return model.CompositionSnapshot{
		SizeClass:      "standard",
		PatternStyle:   "linear",
		NumberSections: 3,
		NumberSlots:    12,
		Separation:     6.0,
		BinningMode:    "mean_abs",
		FilterAmount:   floatPtr(0.1),
		SectionMaterials: []model.SectionMaterial{
			{SectionID: 1, Species: "oak", GrainDirection: model.GrainVertical},
			{SectionID: 2, Species: "oak", GrainDirection: model.GrainVertical},
			{SectionID: 3, Species: "walnut", GrainDirection: model.GrainHorizontal},
		},
		ProcessedAmplitudes: []float64{0.1, 0.5, 1.0},
		Audio:               model.AudioState{SessionID: "session-1"},
	}
}

func TestDiff(t *testing.T) {
	Convey("Given two identical snapshots", t, func() {
		oldSnap := baseSnapshot()
		newSnap := baseSnapshot()

		Convey("When diffing", func() {
			cs := diff.Diff(oldSnap, newSnap)

			Convey("Then the change set is empty", func() {
				So(cs.Empty(), ShouldBeTrue)
			})
		})

		Convey("When diffing a snapshot against its own clone", func() {
			cs := diff.Diff(oldSnap, oldSnap.Clone())

			Convey("Then the change set is empty", func() {
				So(cs.Empty(), ShouldBeTrue)
			})
		})
	})

	Convey("Given a snapshot with one scalar field changed", t, func() {
		oldSnap := baseSnapshot()
		newSnap := baseSnapshot()
		newSnap.NumberSlots = 16

		Convey("When diffing", func() {
			cs := diff.Diff(oldSnap, newSnap)

			Convey("Then exactly that field is reported", func() {
				So(cs.Sorted(), ShouldResemble, []string{model.FieldNumberSlots})
			})
		})
	})

	Convey("Given a snapshot with several fields changed", t, func() {
		oldSnap := baseSnapshot()
		newSnap := baseSnapshot()
		newSnap.SizeClass = "wide"
		newSnap.BinningMode = "continuous"
		newSnap.Exponent = floatPtr(2.0)

		Convey("When diffing", func() {
			cs := diff.Diff(oldSnap, newSnap)

			Convey("Then all changed fields are reported, sorted", func() {
				So(cs.Sorted(), ShouldResemble, []string{
					model.FieldBinningMode,
					model.FieldExponent,
					model.FieldSizeClass,
				})
			})
		})
	})

	Convey("Given optional fields moving between nil and set", t, func() {
		oldSnap := baseSnapshot()
		newSnap := baseSnapshot()
		newSnap.FilterAmount = nil

		Convey("When diffing", func() {
			cs := diff.Diff(oldSnap, newSnap)

			Convey("Then clearing an optional field counts as a change", func() {
				So(cs.Sorted(), ShouldResemble, []string{model.FieldFilterAmount})
			})
		})

		Convey("When both sides are nil", func() {
			oldSnap.FilterAmount = nil
			cs := diff.Diff(oldSnap, newSnap)

			Convey("Then nothing is reported", func() {
				So(cs.Empty(), ShouldBeTrue)
			})
		})
	})

	Convey("Given a changed audio session", t, func() {
		oldSnap := baseSnapshot()
		newSnap := baseSnapshot()
		newSnap.Audio.SessionID = "session-2"

		Convey("When diffing", func() {
			cs := diff.Diff(oldSnap, newSnap)

			Convey("Then audio_session is reported", func() {
				So(cs.Sorted(), ShouldResemble, []string{model.FieldAudioSession})
			})
		})
	})

	Convey("Given a changed amplitude scale bookkeeping value", t, func() {
		oldSnap := baseSnapshot()
		newSnap := baseSnapshot()
		newSnap.Audio.PreviousMaxAmplitudeLocal = floatPtr(3.7)

		Convey("When diffing", func() {
			cs := diff.Diff(oldSnap, newSnap)

			Convey("Then it is not a diffed field", func() {
				So(cs.Empty(), ShouldBeTrue)
			})
		})
	})
}

func TestDiffSectionMaterials(t *testing.T) {
	Convey("Given material lists in different orders", t, func() {
		oldSnap := baseSnapshot()
		newSnap := baseSnapshot()
		newSnap.SectionMaterials = []model.SectionMaterial{
			{SectionID: 3, Species: "walnut", GrainDirection: model.GrainHorizontal},
			{SectionID: 1, Species: "oak", GrainDirection: model.GrainVertical},
			{SectionID: 2, Species: "oak", GrainDirection: model.GrainVertical},
		}

		Convey("When diffing", func() {
			cs := diff.Diff(oldSnap, newSnap)

			Convey("Then order alone never counts as a change", func() {
				So(cs.Empty(), ShouldBeTrue)
			})
		})
	})

	Convey("Given a single section's grain direction changed", t, func() {
		oldSnap := baseSnapshot()
		newSnap := baseSnapshot()
		newSnap.SectionMaterials[1].GrainDirection = model.GrainHorizontal

		Convey("When diffing", func() {
			cs := diff.Diff(oldSnap, newSnap)

			Convey("Then it folds into the single section_materials identifier", func() {
				So(cs.Sorted(), ShouldResemble, []string{model.FieldSectionMaterials})
			})
		})
	})

	Convey("Given material lists of different lengths", t, func() {
		oldSnap := baseSnapshot()
		newSnap := baseSnapshot()
		newSnap.SectionMaterials = newSnap.SectionMaterials[:2]

		Convey("When diffing", func() {
			cs := diff.Diff(oldSnap, newSnap)

			Convey("Then section_materials is reported", func() {
				So(cs.Has(model.FieldSectionMaterials), ShouldBeTrue)
			})
		})
	})
}
