package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	AssignmentsCreated  prometheus.Counter
	AssignmentsEnded    prometheus.Counter
	AssignmentConflicts prometheus.Counter

	LocationReports    prometheus.Counter
	LocationReportErrs prometheus.Counter
	NATSPublished      prometheus.Counter
	NATSPublishErrs    prometheus.Counter
	NATSConnected      prometheus.Gauge

	TrackingActive  prometheus.Gauge
	SamplesReceived prometheus.Counter
	SamplesDropped  prometheus.Counter
	LocationErrors  prometheus.Counter
	GatewayDuration *prometheus.HistogramVec // op label
	GatewayFailures *prometheus.CounterVec   // op label
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		AssignmentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_assignments_created_total",
			Help: "Driver to bus assignments created.",
		}),
		AssignmentsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_assignments_ended_total",
			Help: "Driver to bus assignments ended.",
		}),
		AssignmentConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_assignment_conflicts_total",
			Help: "Assignment attempts rejected because an active assignment exists.",
		}),
		LocationReports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_location_reports_total",
			Help: "Bus location reports accepted.",
		}),
		LocationReportErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_location_report_errors_total",
			Help: "Bus location reports that failed.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_nats_published_total",
			Help: "Total NATS position messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transit_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		TrackingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "driver_tracking_active",
			Help: "1 while the trip tracking loop holds a live subscription.",
		}),
		SamplesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driver_location_samples_total",
			Help: "Location samples accepted by the tracking loop.",
		}),
		SamplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driver_location_samples_dropped_total",
			Help: "Location samples dropped because they were older than the last one.",
		}),
		LocationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driver_location_errors_total",
			Help: "Errors reported by the geolocation source.",
		}),
		GatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "driver_gateway_request_duration_seconds",
			Help:    "Duration of REST gateway calls.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"op"}),
		GatewayFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "driver_gateway_failures_total",
			Help: "REST gateway calls that failed.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.AssignmentsCreated, c.AssignmentsEnded, c.AssignmentConflicts,
		c.LocationReports, c.LocationReportErrs,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.TrackingActive, c.SamplesReceived, c.SamplesDropped, c.LocationErrors,
		c.GatewayDuration, c.GatewayFailures,
	)
	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
