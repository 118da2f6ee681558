package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	opmetrics "github.com/dcSpark/smartcontract-lottery/lottery-service/metrics"
	txmetrics "github.com/dcSpark/smartcontract-lottery/lottery-service/txmgr/metrics"
)

const Namespace = "lottery"

// Lottery variants used as metric labels.
const (
	VariantVRF = "vrf"
	VariantNFT = "nft"
)

type Metricer interface {
	RecordInfo(version string)
	RecordUp()

	RecordDeployment(variant string)
	RecordEntry(variant string)
	RecordLotteryEnded(variant string)
	RecordWinner(variant string, waited time.Duration)

	// Records all tx metrics. Only one account per metricer is expected.
	txmetrics.TxMetricer
}

type Metrics struct {
	ns       string
	registry *prometheus.Registry
	factory  opmetrics.Factory

	txmetrics.TxMetrics

	info prometheus.GaugeVec
	up   prometheus.Gauge

	deployments opmetrics.EventVec
	entries     opmetrics.EventVec
	ends        opmetrics.EventVec
	winners     opmetrics.EventVec
	winnerWait  prometheus.Histogram
}

var _ Metricer = (*Metrics)(nil)

func NewMetrics(procName string) *Metrics {
	if procName == "" {
		procName = "default"
	}
	ns := Namespace + "_" + procName

	registry := opmetrics.NewRegistry()
	factory := opmetrics.With(registry)

	return &Metrics{
		ns:       ns,
		registry: registry,
		factory:  factory,

		TxMetrics: txmetrics.MakeTxMetrics(ns, factory),

		info: *factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "info",
			Help:      "Pseudo-metric tracking version and config info",
		}, []string{
			"version",
		}),
		up: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "up",
			Help:      "1 if the deployer has finished starting up",
		}),

		deployments: opmetrics.NewEventVec(factory, ns, "", "deployments", "lottery deployments", []string{"variant"}),
		entries:     opmetrics.NewEventVec(factory, ns, "", "entries", "lottery entries", []string{"variant"}),
		ends:        opmetrics.NewEventVec(factory, ns, "", "ends", "lottery ends", []string{"variant"}),
		winners:     opmetrics.NewEventVec(factory, ns, "", "winners", "winners picked", []string{"variant"}),
		winnerWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "winner_wait_seconds",
			Help:      "Time between ending a lottery and observing its winner",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 240, 480},
		}),
	}
}

func (m *Metrics) Serve(ctx context.Context, host string, port int) error {
	return opmetrics.ListenAndServe(ctx, m.registry, host, port)
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordInfo sets a pseudo-metric that contains versioning and
// config info for the deployer.
func (m *Metrics) RecordInfo(version string) {
	m.info.WithLabelValues(version).Set(1)
}

// RecordUp sets the up metric to 1.
func (m *Metrics) RecordUp() {
	m.up.Set(1)
}

func (m *Metrics) RecordDeployment(variant string) {
	m.deployments.Record(variant)
}

func (m *Metrics) RecordEntry(variant string) {
	m.entries.Record(variant)
}

func (m *Metrics) RecordLotteryEnded(variant string) {
	m.ends.Record(variant)
}

func (m *Metrics) RecordWinner(variant string, waited time.Duration) {
	m.winners.Record(variant)
	m.winnerWait.Observe(waited.Seconds())
}
