// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package service is the operational surface of the matchmaking core,
// queried by admin tooling and monitoring.
package service

import (
	"github.com/AccelByte/skill-matchmaker/pkg/config"
	"github.com/AccelByte/skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/skill-matchmaker/pkg/models"
	"github.com/AccelByte/skill-matchmaker/pkg/queue"
	"github.com/AccelByte/skill-matchmaker/pkg/session"
)

type MatchmakingService struct {
	cfg   *config.Config
	store *queue.Store
	orch  *session.Orchestrator
}

func New(cfg *config.Config, store *queue.Store, orch *session.Orchestrator) *MatchmakingService {
	return &MatchmakingService{
		cfg:   cfg,
		store: store,
		orch:  orch,
	}
}

func (s *MatchmakingService) JoinQueue(scope *envelope.Scope, playerID string, category models.QueueCategory, preferences models.Preferences, priority models.PriorityClass) (models.QueueEntry, error) {
	return s.store.Join(scope, playerID, category, preferences, priority)
}

func (s *MatchmakingService) LeaveQueue(scope *envelope.Scope, playerID string) error {
	return s.store.Leave(scope, playerID)
}

func (s *MatchmakingService) GetQueueStatus(playerID string) (models.QueueStatus, error) {
	return s.store.Status(playerID)
}

func (s *MatchmakingService) GetActiveSessions() []models.MatchmakingSession {
	return s.orch.ActiveSessions()
}

func (s *MatchmakingService) CancelMatch(scope *envelope.Scope, sessionID string) error {
	return s.orch.CancelMatch(scope, sessionID)
}

func (s *MatchmakingService) ReportMatchResult(scope *envelope.Scope, sessionID string, outcome models.MatchOutcome) error {
	return s.orch.ReportMatchResult(scope, sessionID, outcome)
}

// GetStatistics aggregates the queue and session counters into one snapshot.
func (s *MatchmakingService) GetStatistics() models.Statistics {
	totalJoined, abandoned, averageWait := s.store.Stats()
	matched, created, completed, cancelled, active := s.orch.Stats()

	return models.Statistics{
		QueuedPlayers:    s.store.Population(),
		TotalJoined:      totalJoined,
		TotalMatched:     matched,
		AbandonedEntries: abandoned,
		MatchesFormed:    created,
		CancelledMatches: cancelled,
		CompletedMatches: completed,
		ActiveSessions:   active,
		AverageWait:      averageWait,
	}
}

// GetHealth derives the coarse health signal from abandonment and
// cancellation rates.
func (s *MatchmakingService) GetHealth() models.Health {
	stats := s.GetStatistics()

	var queued int
	for _, count := range stats.QueuedPlayers {
		queued += count
	}

	var abandonRate float64
	if stats.TotalJoined > 0 {
		abandonRate = float64(stats.AbandonedEntries) / float64(stats.TotalJoined)
	}

	var cancelRate float64
	if total := stats.CompletedMatches + stats.CancelledMatches; total > 0 {
		cancelRate = float64(stats.CancelledMatches) / float64(total)
	}

	status := models.HealthStatusHealthy
	if abandonRate > s.cfg.DegradedAbandonRate || cancelRate > s.cfg.DegradedCancelRate {
		status = models.HealthStatusDegraded
	}

	return models.Health{
		Status:         status,
		QueuedPlayers:  queued,
		ActiveSessions: stats.ActiveSessions,
		AbandonRate:    abandonRate,
		CancelRate:     cancelRate,
	}
}
