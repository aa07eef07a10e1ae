package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	SimTicks       prometheus.Counter
	ActiveVehicles prometheus.Gauge
	TickDuration   prometheus.Histogram

	PlanRequests    *prometheus.CounterVec // outcome label: ok|degraded|config_error
	SuggestRequests *prometheus.CounterVec // outcome label: ok|empty

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	WSClients prometheus.Gauge

	TickInterval prometheus.Gauge // seconds
}

func NewCollector(tickInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		SimTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_sim_ticks_total",
			Help: "Total simulation clock ticks.",
		}),
		ActiveVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transit_sim_active_vehicles",
			Help: "Number of vehicles in the latest snapshot.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "transit_sim_tick_duration_seconds",
			Help:    "Duration of simulation tick computations.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		PlanRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transit_plan_requests_total",
			Help: "Route planning requests by outcome.",
		}, []string{"outcome"}),
		SuggestRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transit_suggest_requests_total",
			Help: "Place suggestion requests by outcome.",
		}, []string{"outcome"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transit_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "transit_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transit_ws_clients",
			Help: "Connected websocket vehicle-stream clients.",
		}),
		TickInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transit_sim_tick_interval_seconds",
			Help: "Simulation tick interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.SimTicks, c.ActiveVehicles, c.TickDuration,
		c.PlanRequests, c.SuggestRequests,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.WSClients, c.TickInterval,
	)

	c.TickInterval.Set(tickInterval.Seconds())

	return c
}

// Clock metrics interface (internal/sim.Metrics).

func (c *Collector) TickObserve(d time.Duration) { c.TickDuration.Observe(d.Seconds()) }
func (c *Collector) TicksInc()                   { c.SimTicks.Inc() }
func (c *Collector) SetActiveVehicles(n int)     { c.ActiveVehicles.Set(float64(n)) }

// Publisher metrics interface (internal/publisher.PublisherMetrics).

func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
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
