package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeNoToken = "no_token"
)

// Recorder collects session lifecycle counters
type Recorder interface {
	RefreshAttempt()
	RefreshResult(outcome string)
	UnauthorizedRetry()
	GateRedirect(reason string)
	Request(method string, status int, duration time.Duration)
}

// Collector implements Recorder over prometheus counters
type Collector struct {
	refreshAttempts   prometheus.Counter
	refreshResults    *prometheus.CounterVec
	unauthorizedRetry prometheus.Counter
	gateRedirects     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

// NewCollector creates collector and registers its metrics in reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		refreshAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courierdash_refresh_attempts_total",
			Help: "Token refresh exchanges sent to the backend",
		}),
		refreshResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courierdash_refresh_results_total",
			Help: "Token refresh results by outcome",
		}, []string{"outcome"}),
		unauthorizedRetry: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courierdash_unauthorized_retries_total",
			Help: "Requests replayed after a 401 and a refresh",
		}),
		gateRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courierdash_gate_redirects_total",
			Help: "Protected view redirects by reason",
		}, []string{"reason"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "courierdash_request_duration_seconds",
			Help:    "Backend request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}

	reg.MustRegister(
		c.refreshAttempts,
		c.refreshResults,
		c.unauthorizedRetry,
		c.gateRedirects,
		c.requestDuration,
	)

	return c
}

func (c *Collector) RefreshAttempt() {
	c.refreshAttempts.Inc()
}

func (c *Collector) RefreshResult(outcome string) {
	c.refreshResults.WithLabelValues(outcome).Inc()
}

func (c *Collector) UnauthorizedRetry() {
	c.unauthorizedRetry.Inc()
}

func (c *Collector) GateRedirect(reason string) {
	c.gateRedirects.WithLabelValues(reason).Inc()
}

// Request records latency. status 0 means the request never got a response
func (c *Collector) Request(method string, status int, duration time.Duration) {
	c.requestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(duration.Seconds())
}

// WriteTextfile dumps gathered metrics in the node exporter textfile format
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

// Noop discards everything
type Noop struct{}

func (Noop) RefreshAttempt()                    {}
func (Noop) RefreshResult(string)               {}
func (Noop) UnauthorizedRetry()                 {}
func (Noop) GateRedirect(string)                {}
func (Noop) Request(string, int, time.Duration) {}
