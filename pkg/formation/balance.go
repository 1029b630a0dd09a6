// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package formation

import (
	"sort"

	"github.com/AccelByte/skill-matchmaker/pkg/mathutil"
	"github.com/AccelByte/skill-matchmaker/pkg/models"

	"github.com/elliotchance/pie/v2"
	"gonum.org/v1/gonum/stat"
)

// balanceScore combines a rating-variance term with an optional team-split
// term into the final 0-1 score. The variance is normalized against the
// configured maximum expected variance; the team term applies when the group
// splits into two equal teams.
func (e *Engine) balanceScore(members []models.QueueEntry) (score float64, variance float64) {
	ratings := pie.Map(members, func(entry models.QueueEntry) float64 { return entry.Rating })

	if len(ratings) > 1 {
		variance = stat.Variance(ratings, nil)
	}
	ratingTerm := 1.0 - mathutil.Min(variance/e.cfg.MaxExpectedVariance, 1.0)

	if len(members)%2 != 0 || len(members) < 4 {
		return ratingTerm, variance
	}

	teamTerm := e.teamSplitScore(ratings)
	weight := e.cfg.TeamBalanceWeight
	return (1.0-weight)*ratingTerm + weight*teamTerm, variance
}

// teamSplitScore estimates how evenly the group splits into two teams using
// the alternating-assignment heuristic over the rating-sorted members. Not an
// optimal partition, the achievable minimum difference is approximated.
func (e *Engine) teamSplitScore(ratings []float64) float64 {
	sorted := make([]float64, len(ratings))
	copy(sorted, ratings)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	var sumA, sumB float64
	for i, r := range sorted {
		if i%2 == 0 {
			sumA += r
		} else {
			sumB += r
		}
	}

	gap := sumA - sumB
	if gap < 0 {
		gap = -gap
	}
	return 1.0 - mathutil.Min(gap/e.cfg.MaxTeamRatingGap, 1.0)
}
