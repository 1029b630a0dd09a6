// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package session turns match groups into matchmaking sessions and tracks
// them from capacity assignment through completion or cancellation.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AccelByte/skill-matchmaker/pkg/capacity"
	"github.com/AccelByte/skill-matchmaker/pkg/config"
	"github.com/AccelByte/skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/skill-matchmaker/pkg/metrics"
	"github.com/AccelByte/skill-matchmaker/pkg/models"
	"github.com/AccelByte/skill-matchmaker/pkg/rating"
	"github.com/AccelByte/skill-matchmaker/pkg/utils"

	"github.com/sethvargo/go-retry"
)

var (
	ErrSessionNotFound   = errors.New("unknown session")
	ErrSessionNotActive  = errors.New("session is not active")
	ErrSessionTerminal   = errors.New("session already completed or cancelled")
	ErrIllegalTransition = errors.New("illegal session status transition")
)

// cancellation reasons recorded in metrics
const (
	CancelReasonTimeout   = "capacity_timeout"
	CancelReasonRequested = "requested"
)

// Orchestrator owns the session table. Session state is mutated only from
// the scheduler tick and from the caller-facing operations, both serialized
// through the orchestrator mutex.
type Orchestrator struct {
	cfg      *config.Config
	registry *capacity.Registry
	client   capacity.Client
	provider rating.Provider
	metrics  metrics.MatchmakingMetrics

	mu       sync.Mutex
	sessions map[string]*models.MatchmakingSession

	created   int64
	cancelled int64
	completed int64
	matched   int64
}

func NewOrchestrator(cfg *config.Config, registry *capacity.Registry, client capacity.Client, provider rating.Provider, mm metrics.MatchmakingMetrics) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		registry: registry,
		client:   client,
		provider: provider,
		metrics:  mm,
		sessions: make(map[string]*models.MatchmakingSession),
	}
}

// CreateSession consumes a match group into a new session in the creating
// state and immediately attempts capacity assignment.
func (o *Orchestrator) CreateSession(scope *envelope.Scope, group models.MatchGroup) models.MatchmakingSession {
	childScope := scope.NewChildScope("Orchestrator.CreateSession")
	defer childScope.Finish()

	session := &models.MatchmakingSession{
		SessionID: utils.GenerateUUID(),
		Group:     group,
		Status:    models.SessionStatusCreating,
		CreatedAt: time.Now().UTC(),
	}

	o.mu.Lock()
	o.sessions[session.SessionID] = session
	o.created++
	o.matched += int64(group.CountPlayer())
	o.mu.Unlock()

	childScope.Log.
		WithField("sessionID", session.SessionID).
		WithField("groupID", group.GroupID).
		Info("session created")

	o.tryAssign(childScope, session.SessionID)
	return o.snapshot(session.SessionID)
}

// ProcessTick advances all live sessions: retries capacity assignment for
// creating sessions, cancels those past the creation timeout, and purges
// terminal sessions past the retention window.
func (o *Orchestrator) ProcessTick(scope *envelope.Scope, now time.Time) {
	childScope := scope.NewChildScope("Orchestrator.ProcessTick")
	defer childScope.Finish()

	for _, sessionID := range o.creatingSessionIDs() {
		o.tryAssign(childScope, sessionID)
	}

	o.mu.Lock()
	var timedOut []string
	for id, session := range o.sessions {
		if session.Status == models.SessionStatusCreating && now.Sub(session.CreatedAt) > o.cfg.MatchCreationTimeout {
			timedOut = append(timedOut, id)
		}
		if session.Status.IsTerminal() && !session.CompletedAt.IsZero() && now.Sub(session.CompletedAt) > o.cfg.SessionRetention {
			delete(o.sessions, id)
		}
	}
	o.mu.Unlock()

	for _, sessionID := range timedOut {
		if err := o.cancel(childScope, sessionID, CancelReasonTimeout); err != nil {
			childScope.Log.WithField("sessionID", sessionID).Warnf("cancel on timeout failed: %s", err)
		}
	}
}

func (o *Orchestrator) creatingSessionIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var ids []string
	for id, session := range o.sessions {
		if session.Status == models.SessionStatusCreating {
			ids = append(ids, id)
		}
	}
	return ids
}

// tryAssign resolves capacity for a creating session. No available instance
// and utilization past the scaling threshold triggers provisioning, anything
// else leaves the session for the next tick.
func (o *Orchestrator) tryAssign(scope *envelope.Scope, sessionID string) {
	childScope := scope.NewChildScope("Orchestrator.tryAssign")
	defer childScope.Finish()

	o.mu.Lock()
	session, ok := o.sessions[sessionID]
	if !ok || session.Status != models.SessionStatusCreating {
		o.mu.Unlock()
		return
	}
	group := session.Group
	o.mu.Unlock()

	instance := o.registry.FindAvailable(group.GameMode, group.Region, group.CountPlayer())
	if instance == nil {
		if !o.registry.ShouldProvision(group.GameMode) {
			return
		}
		provisioned, err := o.registry.Provision(childScope, group.GameMode, group.Region, group.CountPlayer())
		if err != nil || provisioned == nil {
			return
		}
		instance = provisioned
	}

	if err := o.registry.Occupy(instance.InstanceID, group.CountPlayer()); err != nil {
		childScope.Log.WithField("instanceID", instance.InstanceID).Warnf("occupy failed: %s", err)
		return
	}

	o.mu.Lock()
	if session.Status != models.SessionStatusCreating {
		// cancelled between the capacity lookup and now, give the seats back
		o.mu.Unlock()
		o.registry.Release(instance.InstanceID, group.CountPlayer())
		return
	}
	session.CapacityInstanceID = instance.InstanceID
	session.Status = models.SessionStatusActive
	session.StartedAt = time.Now().UTC()
	o.mu.Unlock()

	childScope.Log.
		WithField("sessionID", sessionID).
		WithField("instanceID", instance.InstanceID).
		Info("session active, capacity assigned")

	o.transport(childScope, sessionID, group, instance.InstanceID)
}

// transport hands the players off to the instance. Failure is logged and
// counted, the session stays active: authoritative state never depends on a
// best-effort notification channel.
func (o *Orchestrator) transport(scope *envelope.Scope, sessionID string, group models.MatchGroup, instanceID string) {
	childScope := scope.NewChildScope("Orchestrator.transport")
	defer childScope.Finish()

	metadata := models.SessionMetadata{
		SessionID: sessionID,
		GameMode:  group.GameMode,
		Region:    group.Region,
		AvgRating: group.AverageRating,
	}

	backoff := retry.WithMaxRetries(uint64(o.cfg.TransportMaxRetries), retry.NewConstant(50*time.Millisecond))
	err := retry.Do(childScope.Ctx, backoff, func(ctx context.Context) error {
		if !o.client.TransportPlayers(ctx, group.GetPlayerIDs(), instanceID, metadata) {
			return retry.RetryableError(errors.New("transport rejected"))
		}
		return nil
	})
	if err != nil {
		o.metrics.AddTransportFailure(group.GameMode)
		childScope.Log.
			WithField("sessionID", sessionID).
			WithField("instanceID", instanceID).
			Warnf("player transport failed: %s", err)
	}
}

// ReportMatchResult completes an active session and forwards the outcome to
// the rating provider exactly once. Reporting a second time is rejected.
func (o *Orchestrator) ReportMatchResult(scope *envelope.Scope, sessionID string, outcome models.MatchOutcome) error {
	childScope := scope.NewChildScope("Orchestrator.ReportMatchResult")
	defer childScope.Finish()

	o.mu.Lock()
	session, ok := o.sessions[sessionID]
	if !ok {
		o.mu.Unlock()
		return ErrSessionNotFound
	}
	if session.Status != models.SessionStatusActive {
		terminal := session.Status.IsTerminal()
		o.mu.Unlock()
		if terminal {
			return ErrSessionTerminal
		}
		return ErrSessionNotActive
	}

	session.Status = models.SessionStatusCompleted
	session.CompletedAt = time.Now().UTC()
	session.Duration = session.CompletedAt.Sub(session.StartedAt)
	instanceID := session.CapacityInstanceID
	groupSize := session.Group.CountPlayer()
	gameMode := session.Group.GameMode
	duration := session.Duration
	o.completed++
	o.mu.Unlock()

	if instanceID != "" {
		o.registry.Release(instanceID, groupSize)
	}
	o.metrics.AddCompletedMatch(gameMode, duration)

	outcome.SessionID = sessionID
	if !o.provider.UpdateRating(childScope.Ctx, outcome) {
		childScope.Log.WithField("sessionID", sessionID).Warn("rating update rejected by provider")
	}

	childScope.Log.
		WithField("sessionID", sessionID).
		WithField("duration", duration).
		Info("match result reported, session completed")
	return nil
}

// CancelMatch cancels a creating or active session on caller request.
func (o *Orchestrator) CancelMatch(scope *envelope.Scope, sessionID string) error {
	childScope := scope.NewChildScope("Orchestrator.CancelMatch")
	defer childScope.Finish()
	return o.cancel(childScope, sessionID, CancelReasonRequested)
}

func (o *Orchestrator) cancel(scope *envelope.Scope, sessionID string, reason string) error {
	o.mu.Lock()
	session, ok := o.sessions[sessionID]
	if !ok {
		o.mu.Unlock()
		return ErrSessionNotFound
	}
	if !session.Status.CanTransitionTo(models.SessionStatusCancelled) {
		o.mu.Unlock()
		return ErrIllegalTransition
	}
	session.Status = models.SessionStatusCancelled
	session.CompletedAt = time.Now().UTC()
	instanceID := session.CapacityInstanceID
	groupSize := session.Group.CountPlayer()
	o.cancelled++
	o.mu.Unlock()

	if instanceID != "" {
		o.registry.Release(instanceID, groupSize)
	}
	o.metrics.AddCancelledMatch(reason)
	scope.Log.
		WithField("sessionID", sessionID).
		WithField("reason", reason).
		Info("session cancelled")
	return nil
}

// Get returns a copy of the session.
func (o *Orchestrator) Get(sessionID string) (models.MatchmakingSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	session, ok := o.sessions[sessionID]
	if !ok {
		return models.MatchmakingSession{}, ErrSessionNotFound
	}
	return session.Copy(), nil
}

// ActiveSessions returns copies of all sessions not yet terminal.
func (o *Orchestrator) ActiveSessions() []models.MatchmakingSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	var active []models.MatchmakingSession
	for _, session := range o.sessions {
		if !session.Status.IsTerminal() {
			active = append(active, session.Copy())
		}
	}
	return active
}

// Stats returns the orchestrator's contribution to the aggregate statistics.
func (o *Orchestrator) Stats() (matched int64, created int64, completed int64, cancelled int64, active int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, session := range o.sessions {
		if !session.Status.IsTerminal() {
			active++
		}
	}
	return o.matched, o.created, o.completed, o.cancelled, active
}

func (o *Orchestrator) snapshot(sessionID string) models.MatchmakingSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	if session, ok := o.sessions[sessionID]; ok {
		return session.Copy()
	}
	return models.MatchmakingSession{}
}
