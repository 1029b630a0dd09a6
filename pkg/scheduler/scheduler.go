// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package scheduler drives the matchmaking pipeline on fixed intervals. One
// tick runs queue maintenance, then group formation one category at a time,
// then session processing, always in that order so queue mutation never races
// an in-progress grouping decision.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/AccelByte/skill-matchmaker/pkg/config"
	"github.com/AccelByte/skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/skill-matchmaker/pkg/formation"
	"github.com/AccelByte/skill-matchmaker/pkg/metrics"
	"github.com/AccelByte/skill-matchmaker/pkg/queue"
	"github.com/AccelByte/skill-matchmaker/pkg/session"
)

type Scheduler struct {
	cfg     *config.Config
	store   *queue.Store
	engine  *formation.Engine
	orch    *session.Orchestrator
	metrics metrics.MatchmakingMetrics

	tickID atomic.Int64
}

func New(cfg *config.Config, store *queue.Store, engine *formation.Engine, orch *session.Orchestrator, mm metrics.MatchmakingMetrics) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		store:   store,
		engine:  engine,
		orch:    orch,
		metrics: mm,
	}
}

// Run drives ticks on the configured interval until the context is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			scope := envelope.NewRootScope(ctx, "scheduler.tick", "")
			s.Tick(scope, time.Now().UTC())
			scope.Finish()
		}
	}
}

// Tick advances the pipeline by one step at the given time. Exported so
// tests can feed synthetic ticks instead of sleeping.
func (s *Scheduler) Tick(rootScope *envelope.Scope, now time.Time) {
	scope := rootScope.NewChildScope("Scheduler.Tick")
	defer scope.Finish()

	tickID := s.tickID.Add(1)
	scope.SetAttributes("tickID", tickID)
	started := time.Now()

	// 1) queue maintenance completes before any category is read
	expired := s.store.Maintain(scope, now)
	if len(expired) > 0 {
		scope.Log.WithField("tickID", tickID).Infof("expired %d entries", len(expired))
	}

	// 2) group formation, one category fully processed before the next
	for _, category := range s.store.Categories() {
		entries := s.store.Snapshot(category)
		if len(entries) == 0 {
			continue
		}
		groups := s.engine.FormGroups(scope, category, entries, now)
		for _, group := range groups {
			if err := s.store.RemoveGrouped(scope, category, group.GetPlayerIDs()); err != nil {
				// a member left between snapshot and removal, drop the group
				// and let the remaining entries match next tick
				scope.Log.WithField("groupID", group.GroupID).Warnf("group invalidated: %s", err)
				continue
			}
			s.orch.CreateSession(scope, group)
		}
	}

	// 3) session processing: assignment retries, timeouts, retention purge
	s.orch.ProcessTick(scope, now)

	s.metrics.AddTickElapsedTimeMs(time.Since(started))
}

// TickID returns the id of the last completed tick.
func (s *Scheduler) TickID() int64 {
	return s.tickID.Load()
}
