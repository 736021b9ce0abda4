package jbod

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// Collector exports client, pool and circuit breaker statistics to Prometheus.
type Collector struct {
	client *Client

	requests      *prometheus.Desc
	blocks        *prometheus.Desc
	errors        *prometheus.Desc
	retries       *prometheus.Desc
	poolConns     *prometheus.Desc
	poolCreated   *prometheus.Desc
	poolDestroyed *prometheus.Desc
	poolWait      *prometheus.Desc
	circuitState  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for client. Register it with a
// prometheus.Registerer.
func NewCollector(client *Client) *Collector {
	labels := prometheus.Labels{"server": client.Addr()}

	return &Collector{
		client: client,
		requests: prometheus.NewDesc("jbod_client_requests_total",
			"Total number of exchanges attempted", nil, labels),
		blocks: prometheus.NewDesc("jbod_client_blocks_total",
			"Total number of blocks transferred", []string{"direction"}, labels),
		errors: prometheus.NewDesc("jbod_client_errors_total",
			"Total number of failed exchanges", []string{"kind"}, labels),
		retries: prometheus.NewDesc("jbod_client_transfer_retries_total",
			"Total number of transient transfer errors retried", nil, labels),
		poolConns: prometheus.NewDesc("jbod_pool_connections",
			"Connections in the pool", []string{"state"}, labels),
		poolCreated: prometheus.NewDesc("jbod_pool_connections_created_total",
			"Total connections created", nil, labels),
		poolDestroyed: prometheus.NewDesc("jbod_pool_connections_destroyed_total",
			"Total connections destroyed", nil, labels),
		poolWait: prometheus.NewDesc("jbod_pool_acquire_wait_seconds_total",
			"Total time spent waiting for a connection", nil, labels),
		circuitState: prometheus.NewDesc("jbod_circuit_breaker_state",
			"Circuit breaker state (0=closed, 1=half-open, 2=open)", nil, labels),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.blocks
	ch <- c.errors
	ch <- c.retries
	ch <- c.poolConns
	ch <- c.poolCreated
	ch <- c.poolDestroyed
	ch <- c.poolWait
	ch <- c.circuitState
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.client.Stats()
	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}

	counter(c.requests, s.Requests)
	counter(c.blocks, s.BlocksRead, "read")
	counter(c.blocks, s.BlocksWritten, "written")
	counter(c.errors, s.TransportErrors, KindTransport.String())
	counter(c.errors, s.ProtocolErrors, KindProtocol.String())
	counter(c.errors, s.AddressErrors, KindAddress.String())
	var other uint64
	if kinds := s.TransportErrors + s.ProtocolErrors + s.AddressErrors; s.Errors > kinds {
		other = s.Errors - kinds
	}
	counter(c.errors, other, KindOther.String())
	counter(c.retries, s.Retries)

	p := c.client.PoolStats()
	ch <- prometheus.MustNewConstMetric(c.poolConns, prometheus.GaugeValue, float64(p.IdleConns), "idle")
	ch <- prometheus.MustNewConstMetric(c.poolConns, prometheus.GaugeValue, float64(p.ActiveConns), "active")
	counter(c.poolCreated, p.CreatedConns)
	counter(c.poolDestroyed, p.DestroyedConns)
	ch <- prometheus.MustNewConstMetric(c.poolWait, prometheus.CounterValue, float64(p.AcquireWaitTimeNs)/1e9)

	ch <- prometheus.MustNewConstMetric(c.circuitState, prometheus.GaugeValue, circuitStateValue(c.client.CircuitBreakerState()))
}

func circuitStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}
