package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ledgerd"

// Metrics holds the node's Prometheus instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	transfersSubmitted prometheus.Counter
	blocksSealed       prometheus.Counter
	staleTipRetries    prometheus.Counter
	chainReplacements  prometheus.Counter
	peerFetchFailures  *prometheus.CounterVec
	proofSearch        prometheus.Histogram
	chainLength        prometheus.Gauge
}

// NewMetrics registers the instruments on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m, err := NewMetricsWith(reg, reg)
	if err != nil {
		// a fresh registry cannot hold duplicates
		panic(err)
	}
	return m
}

func NewMetricsWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) (*Metrics, error) {
	m := &Metrics{
		gatherer: gatherer,
		transfersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_submitted_total",
			Help:      "Transfers accepted into the pending buffer.",
		}),
		blocksSealed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_sealed_total",
			Help:      "Blocks sealed by this node.",
		}),
		staleTipRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_tip_retries_total",
			Help:      "Proof searches repeated because the tip changed during the search.",
		}),
		chainReplacements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_replacements_total",
			Help:      "Times the local chain was replaced by a longer peer chain.",
		}),
		peerFetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peer_fetch_failures_total",
			Help:      "Peer chains skipped during resolution, by reason.",
		}, []string{"reason"}),
		proofSearch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "proof_search_seconds",
			Help:      "Wall time of a proof-of-work search.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		chainLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chain_length",
			Help:      "Number of blocks in the local chain.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.transfersSubmitted, m.blocksSealed, m.staleTipRetries, m.chainReplacements,
		m.peerFetchFailures, m.proofSearch, m.chainLength,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{MaxRequestsInFlight: 1})
}

func (m *Metrics) TransferSubmitted() {
	if m != nil {
		m.transfersSubmitted.Inc()
	}
}

func (m *Metrics) BlockSealed(chainLength int) {
	if m != nil {
		m.blocksSealed.Inc()
		m.chainLength.Set(float64(chainLength))
	}
}

func (m *Metrics) StaleTipRetry() {
	if m != nil {
		m.staleTipRetries.Inc()
	}
}

func (m *Metrics) ChainReplaced(chainLength int) {
	if m != nil {
		m.chainReplacements.Inc()
		m.chainLength.Set(float64(chainLength))
	}
}

// PeerFetchFailed counts a skipped peer; reason is "unreachable" or "invalid".
func (m *Metrics) PeerFetchFailed(reason string) {
	if m != nil {
		m.peerFetchFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ProofSearched(d time.Duration) {
	if m != nil {
		m.proofSearch.Observe(d.Seconds())
	}
}

func (m *Metrics) SetChainLength(n int) {
	if m != nil {
		m.chainLength.Set(float64(n))
	}
}
