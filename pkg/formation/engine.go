// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package formation scans a queue category each scheduling tick and groups
// mutually compatible entries into balanced match groups. Greedy
// nearest-rating grouping under a time-expanding search window: balance is
// re-checked explicitly, eventual matching is guaranteed by the window.
package formation

import (
	"io"
	"math/rand"
	"sort"
	"time"

	"github.com/AccelByte/skill-matchmaker/pkg/config"
	"github.com/AccelByte/skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/skill-matchmaker/pkg/metrics"
	"github.com/AccelByte/skill-matchmaker/pkg/models"

	"github.com/elliotchance/pie/v2"
	"github.com/oklog/ulid/v2"
)

type Engine struct {
	cfg     *config.Config
	metrics metrics.MatchmakingMetrics
	entropy io.Reader
}

func NewEngine(cfg *config.Config, mm metrics.MatchmakingMetrics) *Engine {
	return &Engine{
		cfg:     cfg,
		metrics: mm,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// FormGroups runs one formation pass over a category snapshot and returns
// zero or more finalized match groups. Entries consumed by one group are
// never considered for another within the same pass.
func (e *Engine) FormGroups(scope *envelope.Scope, category models.QueueCategory, entries []models.QueueEntry, now time.Time) []models.MatchGroup {
	childScope := scope.NewChildScope("Engine.FormGroups")
	defer childScope.Finish()

	if len(entries) < e.cfg.MinGroupSize {
		return nil
	}

	working := e.sortWorkingList(entries)
	consumed := make(map[string]bool, len(working))

	var groups []models.MatchGroup
	for _, pivot := range working {
		if consumed[pivot.PlayerID] {
			continue
		}

		candidates := e.findCandidates(pivot, working, consumed)
		if len(candidates)+1 < e.cfg.MinGroupSize {
			continue
		}

		members, score, variance := e.bestBalancedGroup(pivot, candidates)
		if members == nil {
			// leave the pivot and its candidates untouched for the next tick
			childScope.Log.
				WithField("pivot", pivot.PlayerID).
				Debug("no candidate group met the balance threshold")
			continue
		}

		group := e.buildGroup(category, members, score, variance, now)
		for _, member := range group.Entries {
			consumed[member.PlayerID] = true
		}
		groups = append(groups, group)

		e.metrics.AddMatchFormed(string(category), group.GameMode, group.CountPlayer())
		e.metrics.AddTimeToMatchMs(string(category), now.Sub(group.OldestJoinTimestamp()))
		childScope.Log.
			WithField("groupID", group.GroupID).
			WithField("players", group.CountPlayer()).
			WithField("balanceScore", group.BalanceScore).
			Info("match group formed")
	}
	return groups
}

// sortWorkingList orders entries by priority band first, strict FIFO inside
// a band. This ordering is the fairness contract: two same-priority entries
// with identical rating and preferences are never reordered.
func (e *Engine) sortWorkingList(entries []models.QueueEntry) []models.QueueEntry {
	working := make([]models.QueueEntry, len(entries))
	copy(working, entries)
	sort.SliceStable(working, func(i, j int) bool {
		if working[i].Priority.Rank() != working[j].Priority.Rank() {
			return working[i].Priority.Rank() < working[j].Priority.Rank()
		}
		return working[i].JoinedAt.Before(working[j].JoinedAt)
	})
	return working
}

// bestBalancedGroup takes the pivot plus its nearest candidates and shrinks
// the group from the maximum size down until the balance gate passes. A wide
// pool can fail at full size yet still hold a balanced core, dropping the
// farthest candidates recovers it. Returns nil members when even the minimum
// size fails.
func (e *Engine) bestBalancedGroup(pivot models.QueueEntry, candidates []models.QueueEntry) ([]models.QueueEntry, float64, float64) {
	largest := min(len(candidates), e.cfg.MaxGroupSize-1)
	for take := largest; take >= e.cfg.MinGroupSize-1; take-- {
		members := append([]models.QueueEntry{pivot}, candidates[:take]...)
		score, variance := e.balanceScore(members)
		if score >= e.cfg.BalanceThreshold {
			return members, score, variance
		}
	}
	return nil, 0, 0
}

// findCandidates returns the unconsumed entries compatible with the pivot,
// sorted by rating proximity to it.
func (e *Engine) findCandidates(pivot models.QueueEntry, working []models.QueueEntry, consumed map[string]bool) []models.QueueEntry {
	candidates := pie.Filter(working, func(candidate models.QueueEntry) bool {
		if candidate.PlayerID == pivot.PlayerID || consumed[candidate.PlayerID] {
			return false
		}
		return Compatible(pivot, candidate)
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		di := ratingDistance(candidates[i], pivot)
		dj := ratingDistance(candidates[j], pivot)
		if di != dj {
			return di < dj
		}
		return candidates[i].JoinedAt.Before(candidates[j].JoinedAt)
	})
	return candidates
}

// Compatible reports whether two entries may share a group: rating inside
// the pivot's search range, same game mode, and region or latency
// preferences mutually satisfiable.
func Compatible(pivot models.QueueEntry, candidate models.QueueEntry) bool {
	if ratingDistance(pivot, candidate) > pivot.SearchRange {
		return false
	}
	if candidate.Preferences.GameMode != pivot.Preferences.GameMode {
		return false
	}
	return regionsCompatible(pivot, candidate)
}

func regionsCompatible(a models.QueueEntry, b models.QueueEntry) bool {
	if a.Region == b.Region {
		return true
	}
	if a.Region == "" || b.Region == "" {
		return true
	}
	// different regions need both sides opted in, and neither holding a
	// latency bound that a cross-region hop cannot honor
	if !a.Preferences.CrossRegion || !b.Preferences.CrossRegion {
		return false
	}
	return a.Preferences.MaxLatencyMs == 0 && b.Preferences.MaxLatencyMs == 0
}

func ratingDistance(a models.QueueEntry, b models.QueueEntry) float64 {
	if a.Rating > b.Rating {
		return a.Rating - b.Rating
	}
	return b.Rating - a.Rating
}

func (e *Engine) buildGroup(category models.QueueCategory, members []models.QueueEntry, score float64, variance float64, now time.Time) models.MatchGroup {
	ratings := pie.Map(members, func(entry models.QueueEntry) float64 { return entry.Rating })

	var total float64
	for _, r := range ratings {
		total += r
	}

	return models.MatchGroup{
		GroupID:        ulid.MustNew(ulid.Timestamp(now), e.entropy).String(),
		Entries:        members,
		AverageRating:  total / float64(len(ratings)),
		RatingVariance: variance,
		BalanceScore:   score,
		GameMode:       members[0].Preferences.GameMode,
		Region:         groupRegion(members),
		FormedAt:       now,
	}
}

// groupRegion picks the shared region when all members agree, empty for a
// cross-region group.
func groupRegion(members []models.QueueEntry) string {
	region := ""
	for _, member := range members {
		if member.Region == "" {
			continue
		}
		if region == "" {
			region = member.Region
			continue
		}
		if region != member.Region {
			return ""
		}
	}
	return region
}
