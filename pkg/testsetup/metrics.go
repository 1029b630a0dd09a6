package testsetup

import (
	"time"

	"github.com/AccelByte/skill-matchmaker/pkg/metrics"
)

type stubMetricsCollection struct{}

func (s stubMetricsCollection) SetQueuePopulation(category string, numPlayers int) {}

func (s stubMetricsCollection) AddAbandonedEntry(category string) {}

func (s stubMetricsCollection) AddMatchFormed(category string, gameMode string, groupSize int) {}

func (s stubMetricsCollection) AddTimeToMatchMs(category string, elapsedTime time.Duration) {}

func (s stubMetricsCollection) AddCancelledMatch(reason string) {}

func (s stubMetricsCollection) AddCompletedMatch(gameMode string, duration time.Duration) {}

func (s stubMetricsCollection) AddTransportFailure(gameMode string) {}

func (s stubMetricsCollection) AddProvisionedInstance(gameMode string, region string) {}

func (s stubMetricsCollection) AddTickElapsedTimeMs(elapsedTime time.Duration) {}

func NewMetrics() metrics.MatchmakingMetrics {
	return stubMetricsCollection{}
}
