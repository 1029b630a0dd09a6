// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package queue owns the waiting pool: admission, removal, timeout expiry and
// per-entry search-range expansion. One player is in at most one queue
// category at any time.
package queue

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/AccelByte/skill-matchmaker/pkg/config"
	"github.com/AccelByte/skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/skill-matchmaker/pkg/mathutil"
	"github.com/AccelByte/skill-matchmaker/pkg/metrics"
	"github.com/AccelByte/skill-matchmaker/pkg/models"
	"github.com/AccelByte/skill-matchmaker/pkg/rating"
)

var (
	ErrNotQueued         = errors.New("player is not queued")
	ErrRatingUnavailable = errors.New("rating provider did not return a rating")
)

// Store is the queue repository. All mutation goes through the store mutex,
// the scheduler's tick loop is the only writer during a tick but admission
// and removal arrive from caller goroutines at any time.
type Store struct {
	cfg      *config.Config
	provider rating.Provider
	metrics  metrics.MatchmakingMetrics

	mu         sync.Mutex
	categories map[models.QueueCategory][]*models.QueueEntry
	byPlayer   map[string]models.QueueCategory

	totalJoined   int64
	abandoned     int64
	realizedWaits time.Duration
	realizedCount int64
}

func NewStore(cfg *config.Config, provider rating.Provider, mm metrics.MatchmakingMetrics) *Store {
	categories := make(map[models.QueueCategory][]*models.QueueEntry)
	for _, name := range cfg.Categories() {
		categories[models.QueueCategory(name)] = nil
	}
	return &Store{
		cfg:        cfg,
		provider:   provider,
		metrics:    mm,
		categories: categories,
		byPlayer:   make(map[string]models.QueueCategory),
	}
}

// Join admits a player into a queue category. It validates the request,
// snapshots the player's rating, enforces the one-queue invariant by removing
// the player from any other category first, and computes the advisory wait
// estimate.
func (s *Store) Join(scope *envelope.Scope, playerID string, category models.QueueCategory, preferences models.Preferences, priority models.PriorityClass) (models.QueueEntry, error) {
	childScope := scope.NewChildScope("Store.Join")
	defer childScope.Finish()

	if priority == "" {
		priority = models.PriorityNormal
	}

	if err := s.validateJoin(childScope, playerID, category, preferences, priority); err != nil {
		return models.QueueEntry{}, err
	}

	// rating lookup fails closed, an entry never enters with a default rating
	playerRating, err := s.provider.GetRating(childScope.Ctx, playerID)
	if err != nil {
		childScope.Log.WithField("playerID", playerID).Warnf("rating lookup failed: %s", err)
		return models.QueueEntry{}, fmt.Errorf("%w: %s", ErrRatingUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// one-queue invariant
	if previous, ok := s.byPlayer[playerID]; ok {
		s.removeLocked(playerID, previous)
		childScope.Log.WithField("playerID", playerID).Infof("removed from category %s before re-admission", previous)
	}

	now := time.Now().UTC()
	entry := &models.QueueEntry{
		PlayerID:    playerID,
		Category:    category,
		Priority:    priority,
		Rating:      playerRating,
		Preferences: preferences,
		Region:      preferences.Region,
		JoinedAt:    now,
		SearchRange: s.cfg.InitialSearchRange,
	}
	entry.EstimatedWait = s.estimateWaitLocked(entry)

	s.categories[category] = append(s.categories[category], entry)
	s.byPlayer[playerID] = category
	s.totalJoined++
	s.metrics.SetQueuePopulation(string(category), len(s.categories[category]))

	childScope.Log.
		WithField("playerID", playerID).
		WithField("category", category).
		WithField("rating", playerRating).
		Info("player admitted to queue")
	return *entry, nil
}

func (s *Store) validateJoin(scope *envelope.Scope, playerID string, category models.QueueCategory, preferences models.Preferences, priority models.PriorityClass) error {
	s.mu.Lock()
	_, knownCategory := s.categories[category]
	s.mu.Unlock()
	if !knownCategory {
		return models.ValidationErrorUnknownCategory
	}
	if err := preferences.Validate(); err != nil {
		return err
	}
	if err := priority.Validate(); err != nil {
		return err
	}
	if category == models.CategoryRanked && !s.provider.IsRankedEligible(scope.Ctx, playerID) {
		return models.ValidationErrorRankedIneligible
	}
	return nil
}

// Leave removes the player from whichever category holds it and records the
// realized wait. It reports ErrNotQueued when the player has no entry.
func (s *Store) Leave(scope *envelope.Scope, playerID string) error {
	childScope := scope.NewChildScope("Store.Leave")
	defer childScope.Finish()

	s.mu.Lock()
	defer s.mu.Unlock()

	category, ok := s.byPlayer[playerID]
	if !ok {
		return ErrNotQueued
	}

	entry := s.removeLocked(playerID, category)
	if entry != nil {
		s.recordRealizedWaitLocked(time.Since(entry.JoinedAt))
	}
	s.metrics.SetQueuePopulation(string(category), len(s.categories[category]))
	childScope.Log.WithField("playerID", playerID).WithField("category", category).Info("player left queue")
	return nil
}

// Maintain runs the per-tick maintenance pass: expire entries beyond the
// queue time limit and recompute each survivor's search range and advisory
// estimate. A malformed entry never aborts the pass for the rest.
func (s *Store) Maintain(scope *envelope.Scope, now time.Time) []models.QueueEntry {
	childScope := scope.NewChildScope("Store.Maintain")
	defer childScope.Finish()

	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []models.QueueEntry
	for category, entries := range s.categories {
		kept := entries[:0]
		for _, entry := range entries {
			waitTime := entry.WaitTime(now)
			if waitTime > s.cfg.MaxQueueTime {
				delete(s.byPlayer, entry.PlayerID)
				s.abandoned++
				s.recordRealizedWaitLocked(waitTime)
				s.metrics.AddAbandonedEntry(string(category))
				expired = append(expired, *entry)
				childScope.Log.
					WithField("playerID", entry.PlayerID).
					WithField("waitTime", waitTime).
					Info("entry expired from queue")
				continue
			}
			entry.SearchRange = s.searchRangeFor(waitTime)
			entry.EstimatedWait = s.estimateWaitLocked(entry)
			kept = append(kept, entry)
		}
		s.categories[category] = kept
		s.metrics.SetQueuePopulation(string(category), len(kept))
	}
	return expired
}

// searchRangeFor widens the tolerated rating distance monotonically with
// wait time so a lone entry is never starved while a compatible pool exists.
func (s *Store) searchRangeFor(waitTime time.Duration) float64 {
	steps := math.Floor(float64(waitTime) / float64(s.cfg.ExpansionPeriod))
	expanded := s.cfg.InitialSearchRange + steps*s.cfg.ExpansionStep
	return mathutil.Clamp(expanded, s.cfg.InitialSearchRange, s.cfg.MaxSearchRange)
}

// estimateWaitLocked computes the advisory wait estimate from queue size and
// the density of similarly rated entries. Advisory only, never a fairness
// input.
func (s *Store) estimateWaitLocked(entry *models.QueueEntry) time.Duration {
	entries := s.categories[entry.Category]

	similar := 0
	for _, other := range entries {
		if other.PlayerID == entry.PlayerID {
			continue
		}
		if math.Abs(other.Rating-entry.Rating) <= s.cfg.InitialSearchRange {
			similar++
		}
	}

	base := s.averageWaitLocked()
	if base <= 0 {
		base = s.cfg.ExpansionPeriod
	}

	crowding := float64(len(entries)+1) / float64(similar+1)
	weight := s.cfg.PriorityWeight(string(entry.Priority))
	return time.Duration(float64(base) * crowding / weight)
}

// RemoveGrouped removes the given players from a category as a unit, called
// by the scheduler when the formation engine emits a group. Removal is
// all-or-nothing with respect to the tick: players already gone (raced by a
// Leave) make the group invalid and nothing is removed.
func (s *Store) RemoveGrouped(scope *envelope.Scope, category models.QueueCategory, playerIDs []string) error {
	childScope := scope.NewChildScope("Store.RemoveGrouped")
	defer childScope.Finish()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, playerID := range playerIDs {
		if current, ok := s.byPlayer[playerID]; !ok || current != category {
			return fmt.Errorf("%w: %s", ErrNotQueued, playerID)
		}
	}

	now := time.Now().UTC()
	for _, playerID := range playerIDs {
		entry := s.removeLocked(playerID, category)
		if entry != nil {
			s.recordRealizedWaitLocked(now.Sub(entry.JoinedAt))
		}
	}
	s.metrics.SetQueuePopulation(string(category), len(s.categories[category]))
	return nil
}

// Status returns the admin view of a queued player.
func (s *Store) Status(playerID string) (models.QueueStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	category, ok := s.byPlayer[playerID]
	if !ok {
		return models.QueueStatus{}, ErrNotQueued
	}
	for position, entry := range s.categories[category] {
		if entry.PlayerID == playerID {
			return models.QueueStatus{
				Entry:         entry.Copy(),
				Position:      position + 1,
				WaitTime:      time.Since(entry.JoinedAt),
				EstimatedWait: entry.EstimatedWait,
			}, nil
		}
	}
	return models.QueueStatus{}, ErrNotQueued
}

// Snapshot returns a copy of all entries in a category in admission order.
func (s *Store) Snapshot(category models.QueueCategory) []models.QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]models.QueueEntry, 0, len(s.categories[category]))
	for _, entry := range s.categories[category] {
		entries = append(entries, *entry)
	}
	return entries
}

// Categories returns the configured category names in stable order.
func (s *Store) Categories() []models.QueueCategory {
	categories := make([]models.QueueCategory, 0, len(s.cfg.Categories()))
	for _, name := range s.cfg.Categories() {
		categories = append(categories, models.QueueCategory(name))
	}
	return categories
}

// Population returns the queued player counts per category.
func (s *Store) Population() map[models.QueueCategory]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	population := make(map[models.QueueCategory]int, len(s.categories))
	for category, entries := range s.categories {
		population[category] = len(entries)
	}
	return population
}

// Stats returns the store's contribution to the aggregate statistics.
func (s *Store) Stats() (totalJoined int64, abandoned int64, averageWait time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalJoined, s.abandoned, s.averageWaitLocked()
}

func (s *Store) averageWaitLocked() time.Duration {
	if s.realizedCount == 0 {
		return 0
	}
	return s.realizedWaits / time.Duration(s.realizedCount)
}

func (s *Store) recordRealizedWaitLocked(waitTime time.Duration) {
	s.realizedWaits += waitTime
	s.realizedCount++
}

func (s *Store) removeLocked(playerID string, category models.QueueCategory) *models.QueueEntry {
	entries := s.categories[category]
	for i, entry := range entries {
		if entry.PlayerID == playerID {
			s.categories[category] = append(entries[:i], entries[i+1:]...)
			delete(s.byPlayer, playerID)
			return entry
		}
	}
	delete(s.byPlayer, playerID)
	return nil
}
