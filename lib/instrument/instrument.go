// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package instrument exports engine activity as Prometheus metrics.
//
// A Metrics value registers its collectors on the Registerer it is
// given and implements both bugsync.Recorder and bugmutate.Recorder,
// so one value is passed to the subscription manager and the mutation
// coordinator.
package instrument

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kweid-platfrom/frontend-sub008/lib/bugerr"
	"github.com/kweid-platfrom/frontend-sub008/lib/bugmutate"
	"github.com/kweid-platfrom/frontend-sub008/lib/bugsync"
)

// Namespace prefixes every metric name.
const Namespace = "bugdash"

// resultOK labels successful mutations.
const resultOK = "ok"

// Metrics holds the engine's collectors.
type Metrics struct {
	mutations          *prometheus.CounterVec
	mutationDuration   *prometheus.HistogramVec
	inFlight           prometheus.Gauge
	snapshots          *prometheus.CounterVec
	snapshotDocuments  *prometheus.GaugeVec
	subscriptionErrors *prometheus.CounterVec
}

var (
	_ bugsync.Recorder   = (*Metrics)(nil)
	_ bugmutate.Recorder = (*Metrics)(nil)
)

// New registers the collectors on registerer. Registering twice on the
// same registerer panics, as with any duplicate Prometheus collector.
func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "mutations_total",
			Help:      "Finished mutations by operation and result.",
		}, []string{"op", "result"}),
		mutationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "mutation_duration_seconds",
			Help:      "Time from mutation request to outcome.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "mutations_in_flight",
			Help:      "Bugs with a write in progress.",
		}),
		snapshots: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "snapshots_total",
			Help:      "Snapshots received per feed.",
		}, []string{"feed"}),
		snapshotDocuments: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "snapshot_documents",
			Help:      "Documents in the latest snapshot per feed.",
		}, []string{"feed"}),
		subscriptionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "subscription_errors_total",
			Help:      "Subscription failures per feed and kind.",
		}, []string{"feed", "kind"}),
	}
}

// MutationFinished implements bugmutate.Recorder.
func (m *Metrics) MutationFinished(op string, kind bugerr.Kind, elapsed time.Duration) {
	result := resultOK
	if kind != "" {
		result = string(kind)
	}
	m.mutations.WithLabelValues(op, result).Inc()
	m.mutationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// InFlightChanged implements bugmutate.Recorder.
func (m *Metrics) InFlightChanged(count int) {
	m.inFlight.Set(float64(count))
}

// SnapshotReceived implements bugsync.Recorder.
func (m *Metrics) SnapshotReceived(feed string, documents int) {
	m.snapshots.WithLabelValues(feed).Inc()
	m.snapshotDocuments.WithLabelValues(feed).Set(float64(documents))
}

// SubscriptionFailed implements bugsync.Recorder.
func (m *Metrics) SubscriptionFailed(feed string, kind bugerr.Kind) {
	m.subscriptionErrors.WithLabelValues(feed, string(kind)).Inc()
}
