// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package formation

import (
	"fmt"
	"testing"
	"time"

	"github.com/AccelByte/skill-matchmaker/pkg/config"
	"github.com/AccelByte/skill-matchmaker/pkg/models"
	"github.com/AccelByte/skill-matchmaker/pkg/testsetup"
	. "github.com/onsi/gomega"
)

func newTestEngine(cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return NewEngine(cfg, testsetup.NewMetrics())
}

func testEntry(playerID string, rating float64, joinedAt time.Time) models.QueueEntry {
	return models.QueueEntry{
		PlayerID:    playerID,
		Category:    models.CategoryCasual,
		Priority:    models.PriorityNormal,
		Rating:      rating,
		Preferences: models.Preferences{GameMode: "5v5"},
		JoinedAt:    joinedAt,
		SearchRange: 100,
	}
}

func TestEngine_FormsGroupFromClosePair(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	engine := newTestEngine(nil)
	now := time.Now().UTC()

	entries := []models.QueueEntry{
		testEntry("p1", 1000, now.Add(-10*time.Second)),
		testEntry("p2", 1020, now.Add(-8*time.Second)),
	}

	groups := engine.FormGroups(g.TestScope, models.CategoryCasual, entries, now)

	g.Expect(len(groups)).To(Equal(1))
	g.Expect(groups[0].GetPlayerIDs()).To(ConsistOf("p1", "p2"))
	g.Expect(groups[0].AverageRating).To(Equal(1010.0))
	g.Expect(groups[0].GroupID).ToNot(BeEmpty())
	g.Expect(groups[0].BalanceScore >= 0.5).To(BeTrue())
}

func TestEngine_NoGroupBelowMinimumSize(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	engine := newTestEngine(nil)
	now := time.Now().UTC()

	groups := engine.FormGroups(g.TestScope, models.CategoryCasual, []models.QueueEntry{
		testEntry("loner", 1000, now),
	}, now)

	g.Expect(groups).To(BeEmpty())
}

func TestEngine_SkipsEntriesOutsideSearchRange(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	engine := newTestEngine(nil)
	now := time.Now().UTC()

	entries := []models.QueueEntry{
		testEntry("p1", 1000, now.Add(-10*time.Second)),
		testEntry("p2", 1500, now.Add(-8*time.Second)),
	}

	groups := engine.FormGroups(g.TestScope, models.CategoryCasual, entries, now)

	g.Expect(groups).To(BeEmpty())
}

func TestEngine_ExpandedRangeEventuallyAdmitsDistantPair(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	engine := newTestEngine(nil)
	now := time.Now().UTC()

	p1 := testEntry("p1", 1000, now.Add(-2*time.Minute))
	p2 := testEntry("p2", 1400, now.Add(-2*time.Minute))
	p1.SearchRange = 700
	p2.SearchRange = 700

	groups := engine.FormGroups(g.TestScope, models.CategoryCasual, []models.QueueEntry{p1, p2}, now)

	g.Expect(len(groups)).To(Equal(1))
	g.Expect(groups[0].GetPlayerIDs()).To(ConsistOf("p1", "p2"))
}

func TestEngine_DifferentGameModesNeverShareGroup(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	engine := newTestEngine(nil)
	now := time.Now().UTC()

	p1 := testEntry("p1", 1000, now)
	p2 := testEntry("p2", 1000, now)
	p2.Preferences.GameMode = "2v2"

	groups := engine.FormGroups(g.TestScope, models.CategoryCasual, []models.QueueEntry{p1, p2}, now)

	g.Expect(groups).To(BeEmpty())
}

func TestEngine_GroupSizeNeverExceedsMaximum(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	engine := newTestEngine(nil)
	now := time.Now().UTC()

	var entries []models.QueueEntry
	for i := 0; i < 12; i++ {
		entries = append(entries, testEntry(fmt.Sprintf("p%d", i), 1000+float64(i), now.Add(time.Duration(i)*time.Second)))
	}

	groups := engine.FormGroups(g.TestScope, models.CategoryCasual, entries, now)

	g.Expect(len(groups)).To(Equal(2))
	g.Expect(groups[0].CountPlayer()).To(Equal(8))
	g.Expect(groups[1].CountPlayer()).To(Equal(4))
}

func TestEngine_EntryConsumedByOneGroupOnly(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	engine := newTestEngine(nil)
	now := time.Now().UTC()

	var entries []models.QueueEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, testEntry(fmt.Sprintf("p%d", i), 1000, now.Add(time.Duration(i)*time.Second)))
	}

	groups := engine.FormGroups(g.TestScope, models.CategoryCasual, entries, now)

	seen := make(map[string]bool)
	for _, group := range groups {
		for _, playerID := range group.GetPlayerIDs() {
			g.Expect(seen[playerID]).To(BeFalse())
			seen[playerID] = true
		}
	}
}

func TestEngine_FIFOWithinPriorityBand(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	cfg := config.Default()
	cfg.MaxGroupSize = 2
	engine := newTestEngine(cfg)
	now := time.Now().UTC()

	first := testEntry("first", 1000, now.Add(-30*time.Second))
	second := testEntry("second", 1000, now.Add(-20*time.Second))
	third := testEntry("third", 1000, now.Add(-10*time.Second))

	groups := engine.FormGroups(g.TestScope, models.CategoryCasual, []models.QueueEntry{third, first, second}, now)

	g.Expect(len(groups)).To(Equal(1))
	g.Expect(groups[0].GetPlayerIDs()).To(Equal([]string{"first", "second"}))
}

func TestEngine_HighPriorityPivotsFirst(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	cfg := config.Default()
	cfg.MaxGroupSize = 2
	engine := newTestEngine(cfg)
	now := time.Now().UTC()

	older := testEntry("older", 1000, now.Add(-30*time.Second))
	urgent := testEntry("urgent", 1000, now.Add(-5*time.Second))
	urgent.Priority = models.PriorityHigh

	groups := engine.FormGroups(g.TestScope, models.CategoryCasual, []models.QueueEntry{older, urgent}, now)

	g.Expect(len(groups)).To(Equal(1))
	g.Expect(groups[0].Entries[0].PlayerID).To(Equal("urgent"))
}

func TestEngine_UnbalancedGroupHeldBack(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	cfg := config.Default()
	cfg.MaxExpectedVariance = 100
	engine := newTestEngine(cfg)
	now := time.Now().UTC()

	entries := []models.QueueEntry{
		testEntry("p1", 1000, now.Add(-10*time.Second)),
		testEntry("p2", 1090, now.Add(-8*time.Second)),
	}

	groups := engine.FormGroups(g.TestScope, models.CategoryCasual, entries, now)

	g.Expect(groups).To(BeEmpty())
}

func TestEngine_CrossRegionRequiresMutualOptIn(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)

	now := time.Now().UTC()
	us := testEntry("us", 1000, now)
	us.Region = "us-east"
	us.Preferences.Region = "us-east"
	eu := testEntry("eu", 1000, now)
	eu.Region = "eu-west"
	eu.Preferences.Region = "eu-west"

	g.Expect(Compatible(us, eu)).To(BeFalse())

	us.Preferences.CrossRegion = true
	g.Expect(Compatible(us, eu)).To(BeFalse())

	eu.Preferences.CrossRegion = true
	g.Expect(Compatible(us, eu)).To(BeTrue())

	// a latency bound forbids the cross-region hop even when opted in
	eu.Preferences.MaxLatencyMs = 50
	g.Expect(Compatible(us, eu)).To(BeFalse())
}

func TestEngine_SameRegionAlwaysCompatible(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)

	now := time.Now().UTC()
	a := testEntry("a", 1000, now)
	a.Region = "us-east"
	b := testEntry("b", 1000, now)
	b.Region = "us-east"
	b.Preferences.MaxLatencyMs = 30

	g.Expect(Compatible(a, b)).To(BeTrue())
}

func TestEngine_GroupRegionEmptyForCrossRegionGroup(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	engine := newTestEngine(nil)
	now := time.Now().UTC()

	us := testEntry("us", 1000, now.Add(-2*time.Second))
	us.Region = "us-east"
	us.Preferences.CrossRegion = true
	eu := testEntry("eu", 1010, now.Add(-1*time.Second))
	eu.Region = "eu-west"
	eu.Preferences.CrossRegion = true

	groups := engine.FormGroups(g.TestScope, models.CategoryCasual, []models.QueueEntry{us, eu}, now)

	g.Expect(len(groups)).To(Equal(1))
	g.Expect(groups[0].Region).To(BeEmpty())
}
