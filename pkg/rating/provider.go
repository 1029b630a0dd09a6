// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package rating defines the consumed interface of the external rating
// service. The matchmaking core never computes ratings itself, it snapshots
// them at admission and forwards match outcomes for updates.
package rating

import (
	"context"

	"github.com/AccelByte/skill-matchmaker/pkg/models"
)

// Provider supplies skill ratings and ranked eligibility, and accepts
// post-match rating updates.
type Provider interface {
	// GetRating returns the player's current skill rating. Admission fails
	// closed when this call errors, a stale or default rating never enters
	// the queue.
	GetRating(ctx context.Context, playerID string) (float64, error)

	// IsRankedEligible reports whether the player may join ranked categories.
	IsRankedEligible(ctx context.Context, playerID string) bool

	// UpdateRating forwards a completed match outcome for rating updates.
	// It is best effort from the pipeline's point of view, the session is
	// already completed when this is called.
	UpdateRating(ctx context.Context, outcome models.MatchOutcome) bool
}
