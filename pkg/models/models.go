// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package models holds the data objects that flow through the matchmaking
// pipeline: waiting queue entries, formed match groups, matchmaking sessions
// and session-hosting capacity instances.
package models

import (
	"time"

	"github.com/mitchellh/copystructure"
	"github.com/sirupsen/logrus"
)

// QueueCategory is a named partition of the waiting pool. Entries are only
// matched within their own category.
type QueueCategory string

const (
	CategoryRanked QueueCategory = "ranked"
	CategoryCasual QueueCategory = "casual"
	CategoryCustom QueueCategory = "custom"
)

// PriorityClass affects advisory wait estimates. It never reorders entries
// across the FIFO guarantee inside a priority band.
type PriorityClass string

const (
	PriorityHigh   PriorityClass = "high"
	PriorityNormal PriorityClass = "normal"
	PriorityLow    PriorityClass = "low"
)

// Rank returns the sort rank of the priority class, lower sorts first.
func (p PriorityClass) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

func (p PriorityClass) Validate() error {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return nil
	}
	return ValidationErrorUnknownPriorityClass
}

// Preferences are supplied by the player at admission time.
type Preferences struct {
	GameMode     string   `json:"game_mode"`
	MapPool      []string `json:"map_pool,omitempty"`
	MaxLatencyMs int      `json:"max_latency_ms,omitempty"`
	Region       string   `json:"region,omitempty"`
	CrossRegion  bool     `json:"cross_region"`
}

func (p Preferences) Validate() error {
	if p.GameMode == "" {
		return ValidationErrorMissingGameMode
	}
	if p.MaxLatencyMs < 0 {
		return ValidationErrorNegativeLatencyBound
	}
	return nil
}

// QueueEntry is one player's waiting record. Entries are immutable after
// admission except for the fields recomputed during maintenance
// (EstimatedWait, SearchRange).
type QueueEntry struct {
	PlayerID      string        `json:"player_id"`
	Category      QueueCategory `json:"category"`
	Priority      PriorityClass `json:"priority"`
	Rating        float64       `json:"rating"`
	Preferences   Preferences   `json:"preferences"`
	Region        string        `json:"region,omitempty"`
	JoinedAt      time.Time     `json:"joined_at"`
	EstimatedWait time.Duration `json:"estimated_wait"`
	SearchRange   float64       `json:"search_range"`
}

// WaitTime returns how long the entry has been queued as of now.
func (e QueueEntry) WaitTime(now time.Time) time.Duration {
	return now.Sub(e.JoinedAt)
}

func (e QueueEntry) Copy() QueueEntry {
	copied, err := copystructure.Copy(e)
	if err != nil {
		logrus.Warn("failed copy queue entry:", err)
		return e
	}
	entry, _ := copied.(QueueEntry)
	return entry
}

// QueueStatus is the admin surface view of a waiting entry.
type QueueStatus struct {
	Entry         QueueEntry    `json:"entry"`
	Position      int           `json:"position"`
	WaitTime      time.Duration `json:"wait_time"`
	EstimatedWait time.Duration `json:"estimated_wait"`
}

// MatchGroup is a finalized, balanced set of entries. It exists only until
// the session orchestrator consumes it.
type MatchGroup struct {
	GroupID        string       `json:"group_id"`
	Entries        []QueueEntry `json:"entries"`
	AverageRating  float64      `json:"average_rating"`
	RatingVariance float64      `json:"rating_variance"`
	BalanceScore   float64      `json:"balance_score"`
	GameMode       string       `json:"game_mode"`
	Region         string       `json:"region,omitempty"`
	FormedAt       time.Time    `json:"formed_at"`
}

func (g MatchGroup) CountPlayer() int {
	return len(g.Entries)
}

func (g MatchGroup) GetPlayerIDs() []string {
	playerIDs := make([]string, 0, len(g.Entries))
	for _, entry := range g.Entries {
		playerIDs = append(playerIDs, entry.PlayerID)
	}
	return playerIDs
}

// OldestJoinTimestamp returns the earliest admission time in the group,
// used for time-to-match observability.
func (g MatchGroup) OldestJoinTimestamp() time.Time {
	oldest := g.FormedAt
	for _, entry := range g.Entries {
		if entry.JoinedAt.Before(oldest) {
			oldest = entry.JoinedAt
		}
	}
	return oldest
}

// SessionStatus is the matchmaking session state machine. Transitions are
// monotonic, completed and cancelled are terminal.
type SessionStatus string

const (
	SessionStatusCreating  SessionStatus = "creating"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// CanTransitionTo reports whether moving to the given status is legal.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionStatusCreating:
		return next == SessionStatusActive || next == SessionStatusCancelled
	case SessionStatusActive:
		return next == SessionStatusCompleted || next == SessionStatusCancelled
	}
	return false
}

// IsTerminal reports whether the status accepts no further transitions.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// MatchmakingSession tracks a formed group from capacity assignment through
// completion. CapacityInstanceID is set exactly once, before the session
// becomes active.
type MatchmakingSession struct {
	SessionID          string        `json:"session_id"`
	Group              MatchGroup    `json:"group"`
	CapacityInstanceID string        `json:"capacity_instance_id,omitempty"`
	Status             SessionStatus `json:"status"`
	CreatedAt          time.Time     `json:"created_at"`
	StartedAt          time.Time     `json:"started_at,omitempty"`
	CompletedAt        time.Time     `json:"completed_at,omitempty"`
	Duration           time.Duration `json:"duration,omitempty"`
}

func (s MatchmakingSession) Copy() MatchmakingSession {
	copied, err := copystructure.Copy(s)
	if err != nil {
		logrus.Warn("failed copy matchmaking session:", err)
		return s
	}
	session, _ := copied.(MatchmakingSession)
	return session
}

// InstanceStatus is the lifecycle of a session-hosting capacity instance.
type InstanceStatus string

const (
	InstanceStatusAvailable InstanceStatus = "available"
	InstanceStatusStarting  InstanceStatus = "starting"
	InstanceStatusActive    InstanceStatus = "active"
	InstanceStatusFull      InstanceStatus = "full"
)

// CapacityInstance is one unit of session-hosting capacity.
type CapacityInstance struct {
	InstanceID     string         `json:"instance_id"`
	GameMode       string         `json:"game_mode"`
	Region         string         `json:"region"`
	MaxPlayers     int            `json:"max_players"`
	CurrentPlayers int            `json:"current_players"`
	Status         InstanceStatus `json:"status"`
}

func (c CapacityInstance) FreeSlots() int {
	return c.MaxPlayers - c.CurrentPlayers
}

// PlayerResult is one player's outcome inside a reported match result.
type PlayerResult struct {
	PlayerID       string  `json:"player_id"`
	Team           int     `json:"team"`
	Score          float64 `json:"score"`
	Won            bool    `json:"won"`
	PreMatchRating float64 `json:"pre_match_rating"`
}

// MatchOutcome is forwarded to the rating provider when a match completes.
type MatchOutcome struct {
	SessionID string         `json:"session_id"`
	GameMode  string         `json:"game_mode"`
	Results   []PlayerResult `json:"results"`
}

// SessionMetadata accompanies the transport handoff of a group to an instance.
type SessionMetadata struct {
	SessionID string  `json:"session_id"`
	GameMode  string  `json:"game_mode"`
	Region    string  `json:"region,omitempty"`
	AvgRating float64 `json:"avg_rating"`
}

// Statistics is the aggregate counters snapshot returned by the admin surface.
type Statistics struct {
	QueuedPlayers    map[QueueCategory]int `json:"queued_players"`
	TotalJoined      int64                 `json:"total_joined"`
	TotalMatched     int64                 `json:"total_matched"`
	AbandonedEntries int64                 `json:"abandoned_entries"`
	MatchesFormed    int64                 `json:"matches_formed"`
	CancelledMatches int64                 `json:"cancelled_matches"`
	CompletedMatches int64                 `json:"completed_matches"`
	ActiveSessions   int                   `json:"active_sessions"`
	AverageWait      time.Duration         `json:"average_wait"`
}

// HealthStatus is the coarse health signal of the pipeline.
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusDegraded HealthStatus = "degraded"
)

// Health aggregates the counts monitoring cares about.
type Health struct {
	Status         HealthStatus `json:"status"`
	QueuedPlayers  int          `json:"queued_players"`
	ActiveSessions int          `json:"active_sessions"`
	AbandonRate    float64      `json:"abandon_rate"`
	CancelRate     float64      `json:"cancel_rate"`
}
