// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type prometheusMetrics struct {
	queuePopulation      prometheus.GaugeVec
	abandonedEntries     prometheus.CounterVec
	matchesFormed        prometheus.CounterVec
	timeToMatch          prometheus.HistogramVec
	cancelledMatches     prometheus.CounterVec
	completedMatches     prometheus.CounterVec
	sessionDuration      prometheus.HistogramVec
	transportFailures    prometheus.CounterVec
	provisionedInstances prometheus.CounterVec
	tickElapsedTime      prometheus.Histogram
}

func setupPrometheusMetrics(registry *prometheus.Registry) prometheusMetrics {
	factory := promauto.With(registry)

	queuePopulation := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ab_smm_queue_population",
			Help: "A gauge of numbers of players waiting per queue category",
		}, []string{"category"})

	abandonedEntries := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_smm_abandoned_entries",
			Help: "A counter of queue entries expired by the queue time limit",
		}, []string{"category"})

	matchesFormed := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_smm_matches_formed",
			Help: "A counter of match groups emitted by the formation engine",
		}, []string{"category", "game_mode", "group_size"})

	//nolint:promlinter
	timeToMatch := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ab_smm_time_to_match_ms",
			Help:    "A histogram of wait time between admission and group formation in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 12),
		}, []string{"category"})

	cancelledMatches := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_smm_cancelled_matches",
			Help: "A counter of matchmaking sessions cancelled before completion",
		}, []string{"reason"})

	completedMatches := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_smm_completed_matches",
			Help: "A counter of matchmaking sessions reported completed",
		}, []string{"game_mode"})

	//nolint:promlinter
	sessionDuration := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ab_smm_session_duration_ms",
			Help:    "A histogram of active session duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1000, 2, 12),
		}, []string{"game_mode"})

	transportFailures := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_smm_transport_failures",
			Help: "A counter of failed player transport handoffs",
		}, []string{"game_mode"})

	provisionedInstances := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_smm_provisioned_instances",
			Help: "A counter of capacity instances provisioned by the registry",
		}, []string{"game_mode", "region"})

	//nolint:promlinter
	tickElapsedTime := factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ab_smm_tick_elapsed_time_ms",
			Help:    "A histogram of scheduler tick elapsed time in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		})

	return prometheusMetrics{
		queuePopulation:      *queuePopulation,
		abandonedEntries:     *abandonedEntries,
		matchesFormed:        *matchesFormed,
		timeToMatch:          *timeToMatch,
		cancelledMatches:     *cancelledMatches,
		completedMatches:     *completedMatches,
		sessionDuration:      *sessionDuration,
		transportFailures:    *transportFailures,
		provisionedInstances: *provisionedInstances,
		tickElapsedTime:      tickElapsedTime,
	}
}

func (metrics prometheusMetrics) SetQueuePopulation(category string, numPlayers int) {
	metrics.queuePopulation.With(prometheus.Labels{"category": category}).Set(float64(numPlayers))
}

func (metrics prometheusMetrics) AddAbandonedEntry(category string) {
	metrics.abandonedEntries.With(prometheus.Labels{"category": category}).Add(float64(1))
}

func (metrics prometheusMetrics) AddMatchFormed(category string, gameMode string, groupSize int) {
	metrics.matchesFormed.With(prometheus.Labels{"category": category, "game_mode": gameMode, "group_size": strconv.Itoa(groupSize)}).Add(float64(1))
}

func (metrics prometheusMetrics) AddTimeToMatchMs(category string, elapsedTime time.Duration) {
	metrics.timeToMatch.With(prometheus.Labels{"category": category}).Observe(float64(elapsedTime.Milliseconds()))
}

func (metrics prometheusMetrics) AddCancelledMatch(reason string) {
	metrics.cancelledMatches.With(prometheus.Labels{"reason": reason}).Add(float64(1))
}

func (metrics prometheusMetrics) AddCompletedMatch(gameMode string, duration time.Duration) {
	metrics.completedMatches.With(prometheus.Labels{"game_mode": gameMode}).Add(float64(1))
	metrics.sessionDuration.With(prometheus.Labels{"game_mode": gameMode}).Observe(float64(duration.Milliseconds()))
}

func (metrics prometheusMetrics) AddTransportFailure(gameMode string) {
	metrics.transportFailures.With(prometheus.Labels{"game_mode": gameMode}).Add(float64(1))
}

func (metrics prometheusMetrics) AddProvisionedInstance(gameMode string, region string) {
	metrics.provisionedInstances.With(prometheus.Labels{"game_mode": gameMode, "region": region}).Add(float64(1))
}

func (metrics prometheusMetrics) AddTickElapsedTimeMs(elapsedTime time.Duration) {
	metrics.tickElapsedTime.Observe(float64(elapsedTime.Milliseconds()))
}
