// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type MatchmakingMetrics interface {
	SetQueuePopulation(category string, numPlayers int)
	AddAbandonedEntry(category string)
	AddMatchFormed(category string, gameMode string, groupSize int)
	AddTimeToMatchMs(category string, elapsedTime time.Duration)
	AddCancelledMatch(reason string)
	AddCompletedMatch(gameMode string, duration time.Duration)
	AddTransportFailure(gameMode string)
	AddProvisionedInstance(gameMode string, region string)
	AddTickElapsedTimeMs(elapsedTime time.Duration)
}

func NewMetrics(registry *prometheus.Registry) MatchmakingMetrics {
	return setupPrometheusMetrics(registry)
}
