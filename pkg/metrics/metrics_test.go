package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording cache metrics", func() {
			So(func() {
				UpdateCacheSessions(3)
				UpdateCacheBytes(1 << 20)
				RecordCacheEviction()
				RecordRebin()
				RecordRebinMiss()
				RecordRebinLatency(12.5)
			}, ShouldNotPanic)
		})

		Convey("When recording pipeline metrics", func() {
			So(func() {
				RecordPipelineUpdate("noop")
				RecordPipelineUpdate("materials")
				RecordPipelineUpdate("local_rebin")
				RecordPipelineUpdate("remote")
				RecordPipelineUpdateError("remote_failed")
				RecordStaleResponseDropped()
				RecordAmplitudeRenormalization()
			}, ShouldNotPanic)
		})

		Convey("When recording compute metrics", func() {
			So(func() {
				RecordComputeRequest()
				RecordComputeError()
				RecordComputeLatency(250.0)
			}, ShouldNotPanic)
		})

		Convey("When recording persistence metrics", func() {
			So(func() {
				UpdatePersistQueueSize(5)
				RecordPersistWrite()
				RecordPersistDropped()
				RecordPersistError()
			}, ShouldNotPanic)
		})

		Convey("When recording HTTP metrics", func() {
			So(func() {
				RecordHTTPRequest("composition", "POST", "200")
				RecordHTTPRequestDuration("composition", "POST", "200", 42.0)
			}, ShouldNotPanic)
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the global registry", t, func() {
		registry := GetRegistry()

		Convey("Then it is usable for gathering", func() {
			So(registry, ShouldNotBeNil)

			families, err := registry.Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}
