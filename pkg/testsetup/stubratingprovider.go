// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package testsetup

import (
	"context"
	"errors"
	"sync"

	"github.com/AccelByte/skill-matchmaker/pkg/models"
)

var ErrStubRatingMissing = errors.New("no rating registered for player")

// StubRatingProvider serves ratings from a fixed map and records the
// outcomes it receives.
type StubRatingProvider struct {
	mu         sync.Mutex
	Ratings    map[string]float64
	Ineligible map[string]bool
	Outcomes   []models.MatchOutcome

	// FailLookups makes every GetRating call error, for fail-closed tests.
	FailLookups bool
}

func NewStubRatingProvider(ratings map[string]float64) *StubRatingProvider {
	if ratings == nil {
		ratings = make(map[string]float64)
	}
	return &StubRatingProvider{
		Ratings:    ratings,
		Ineligible: make(map[string]bool),
	}
}

func (p *StubRatingProvider) GetRating(ctx context.Context, playerID string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailLookups {
		return 0, ErrStubRatingMissing
	}
	rating, ok := p.Ratings[playerID]
	if !ok {
		return 0, ErrStubRatingMissing
	}
	return rating, nil
}

func (p *StubRatingProvider) IsRankedEligible(ctx context.Context, playerID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.Ineligible[playerID]
}

func (p *StubRatingProvider) UpdateRating(ctx context.Context, outcome models.MatchOutcome) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Outcomes = append(p.Outcomes, outcome)
	return true
}

// UpdateCount returns how many outcomes the provider received.
func (p *StubRatingProvider) UpdateCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Outcomes)
}
