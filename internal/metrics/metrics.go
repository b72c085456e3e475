// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ressona"

var (
	IntentionsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intentions_submitted_total",
			Help:      "Intention submissions by result (ok, error).",
		},
		[]string{"result"},
	)

	ManifestToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manifest_toggles_total",
			Help:      "Manifestation toggles by result.",
		},
		[]string{"result"},
	)

	FeedSnapshots = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_snapshots_total",
			Help:      "Full feed snapshots published to listeners.",
		},
	)

	FeedReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_reconnects_total",
			Help:      "Stopped feeds replaced with a fresh subscription.",
		},
	)

	ActiveCaptures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "captures_active",
			Help:      "Capture handles currently acquired.",
		},
	)

	LiveArtifacts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifacts_live",
			Help:      "Materialized artifacts not yet revoked.",
		},
	)

	ActiveWorkspaces = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workspaces_active",
			Help:      "Per-user workspaces held in memory.",
		},
	)
)
