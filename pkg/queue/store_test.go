// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package queue

import (
	"testing"
	"time"

	"github.com/AccelByte/skill-matchmaker/pkg/config"
	"github.com/AccelByte/skill-matchmaker/pkg/models"
	"github.com/AccelByte/skill-matchmaker/pkg/testsetup"
	. "github.com/onsi/gomega"
)

func newTestStore(ratings map[string]float64) (*Store, *testsetup.StubRatingProvider) {
	provider := testsetup.NewStubRatingProvider(ratings)
	store := NewStore(config.Default(), provider, testsetup.NewMetrics())
	return store, provider
}

func casualPrefs() models.Preferences {
	return models.Preferences{GameMode: "5v5"}
}

func TestStore_JoinAdmitsPlayerWithRatingSnapshot(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	store, _ := newTestStore(map[string]float64{"p1": 1200})

	entry, err := store.Join(g.TestScope, "p1", models.CategoryCasual, casualPrefs(), models.PriorityNormal)

	g.Expect(err).To(BeNil())
	g.Expect(entry.Rating).To(Equal(1200.0))
	g.Expect(entry.SearchRange).To(Equal(100.0))
	g.Expect(entry.Category).To(Equal(models.CategoryCasual))
	g.Expect(store.Population()[models.CategoryCasual]).To(Equal(1))
}

func TestStore_JoinFailsClosedWhenRatingUnavailable(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	store, provider := newTestStore(nil)
	provider.FailLookups = true

	_, err := store.Join(g.TestScope, "p1", models.CategoryCasual, casualPrefs(), models.PriorityNormal)

	g.Expect(err).To(MatchError(ErrRatingUnavailable))
	g.Expect(store.Population()[models.CategoryCasual]).To(Equal(0))
}

func TestStore_JoinRejectsUnknownCategory(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	store, _ := newTestStore(map[string]float64{"p1": 1000})

	_, err := store.Join(g.TestScope, "p1", models.QueueCategory("tournament"), casualPrefs(), models.PriorityNormal)

	g.Expect(err).To(MatchError(models.ValidationErrorUnknownCategory))
}

func TestStore_JoinRejectsInvalidPreferences(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	store, _ := newTestStore(map[string]float64{"p1": 1000})

	_, err := store.Join(g.TestScope, "p1", models.CategoryCasual, models.Preferences{}, models.PriorityNormal)
	g.Expect(err).To(MatchError(models.ValidationErrorMissingGameMode))

	_, err = store.Join(g.TestScope, "p1", models.CategoryCasual, models.Preferences{GameMode: "5v5", MaxLatencyMs: -50}, models.PriorityNormal)
	g.Expect(err).To(MatchError(models.ValidationErrorNegativeLatencyBound))

	_, err = store.Join(g.TestScope, "p1", models.CategoryCasual, casualPrefs(), models.PriorityClass("urgent"))
	g.Expect(err).To(MatchError(models.ValidationErrorUnknownPriorityClass))
}

func TestStore_JoinRejectsRankedIneligiblePlayer(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	store, provider := newTestStore(map[string]float64{"p1": 1000})
	provider.Ineligible["p1"] = true

	_, err := store.Join(g.TestScope, "p1", models.CategoryRanked, casualPrefs(), models.PriorityNormal)
	g.Expect(err).To(MatchError(models.ValidationErrorRankedIneligible))

	// same player is still welcome in casual
	_, err = store.Join(g.TestScope, "p1", models.CategoryCasual, casualPrefs(), models.PriorityNormal)
	g.Expect(err).To(BeNil())
}

func TestStore_RejoinMovesPlayerBetweenCategories(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	store, _ := newTestStore(map[string]float64{"p1": 1000})

	_, err := store.Join(g.TestScope, "p1", models.CategoryCasual, casualPrefs(), models.PriorityNormal)
	g.Expect(err).To(BeNil())

	_, err = store.Join(g.TestScope, "p1", models.CategoryRanked, casualPrefs(), models.PriorityNormal)
	g.Expect(err).To(BeNil())

	g.Expect(store.Population()[models.CategoryCasual]).To(Equal(0))
	g.Expect(store.Population()[models.CategoryRanked]).To(Equal(1))
}

func TestStore_LeaveRemovesEntry(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	store, _ := newTestStore(map[string]float64{"p1": 1000})

	_, err := store.Join(g.TestScope, "p1", models.CategoryCasual, casualPrefs(), models.PriorityNormal)
	g.Expect(err).To(BeNil())

	g.Expect(store.Leave(g.TestScope, "p1")).To(BeNil())
	g.Expect(store.Population()[models.CategoryCasual]).To(Equal(0))

	g.Expect(store.Leave(g.TestScope, "p1")).To(MatchError(ErrNotQueued))
}

func TestStore_StatusReportsPositionAndWait(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	store, _ := newTestStore(map[string]float64{"p1": 1000, "p2": 1010})

	_, err := store.Join(g.TestScope, "p1", models.CategoryCasual, casualPrefs(), models.PriorityNormal)
	g.Expect(err).To(BeNil())
	_, err = store.Join(g.TestScope, "p2", models.CategoryCasual, casualPrefs(), models.PriorityNormal)
	g.Expect(err).To(BeNil())

	status, err := store.Status("p2")
	g.Expect(err).To(BeNil())
	g.Expect(status.Position).To(Equal(2))
	g.Expect(status.Entry.PlayerID).To(Equal("p2"))

	_, err = store.Status("ghost")
	g.Expect(err).To(MatchError(ErrNotQueued))
}

func TestStore_MaintainExpiresEntriesPastQueueTimeLimit(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	store, _ := newTestStore(map[string]float64{"p1": 1000, "p2": 1000})

	_, err := store.Join(g.TestScope, "p1", models.CategoryCasual, casualPrefs(), models.PriorityNormal)
	g.Expect(err).To(BeNil())
	_, err = store.Join(g.TestScope, "p2", models.CategoryCasual, casualPrefs(), models.PriorityNormal)
	g.Expect(err).To(BeNil())

	expired := store.Maintain(g.TestScope, time.Now().UTC().Add(6*time.Minute))

	g.Expect(len(expired)).To(Equal(2))
	g.Expect(store.Population()[models.CategoryCasual]).To(Equal(0))

	_, abandoned, _ := store.Stats()
	g.Expect(abandoned).To(Equal(int64(2)))
}

func TestStore_MaintainExpandsSearchRangeWithWaitTime(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	store, _ := newTestStore(map[string]float64{"p1": 1000})

	_, err := store.Join(g.TestScope, "p1", models.CategoryCasual, casualPrefs(), models.PriorityNormal)
	g.Expect(err).To(BeNil())

	// 25s waited with a 10s expansion period is two full steps
	store.Maintain(g.TestScope, time.Now().UTC().Add(25*time.Second))

	entries := store.Snapshot(models.CategoryCasual)
	g.Expect(len(entries)).To(Equal(1))
	g.Expect(entries[0].SearchRange).To(Equal(200.0))
}

func TestStore_SearchRangeNeverExceedsMaximum(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	store, _ := newTestStore(map[string]float64{"p1": 1000})

	_, err := store.Join(g.TestScope, "p1", models.CategoryCasual, casualPrefs(), models.PriorityNormal)
	g.Expect(err).To(BeNil())

	store.Maintain(g.TestScope, time.Now().UTC().Add(4*time.Minute))

	entries := store.Snapshot(models.CategoryCasual)
	g.Expect(len(entries)).To(Equal(1))
	g.Expect(entries[0].SearchRange).To(Equal(1000.0))
}

func TestStore_RemoveGroupedIsAllOrNothing(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	store, _ := newTestStore(map[string]float64{"p1": 1000, "p2": 1000, "p3": 1000})

	for _, playerID := range []string{"p1", "p2", "p3"} {
		_, err := store.Join(g.TestScope, playerID, models.CategoryCasual, casualPrefs(), models.PriorityNormal)
		g.Expect(err).To(BeNil())
	}
	g.Expect(store.Leave(g.TestScope, "p2")).To(BeNil())

	err := store.RemoveGrouped(g.TestScope, models.CategoryCasual, []string{"p1", "p2"})
	g.Expect(err).To(MatchError(ErrNotQueued))
	g.Expect(store.Population()[models.CategoryCasual]).To(Equal(2))

	g.Expect(store.RemoveGrouped(g.TestScope, models.CategoryCasual, []string{"p1", "p3"})).To(BeNil())
	g.Expect(store.Population()[models.CategoryCasual]).To(Equal(0))
}

func TestStore_EstimatedWaitFavorsHighPriority(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	store, _ := newTestStore(map[string]float64{"hi": 1000, "lo": 1000})

	high, err := store.Join(g.TestScope, "hi", models.CategoryCasual, casualPrefs(), models.PriorityHigh)
	g.Expect(err).To(BeNil())
	low, err := store.Join(g.TestScope, "lo", models.CategoryCasual, casualPrefs(), models.PriorityLow)
	g.Expect(err).To(BeNil())

	g.Expect(high.EstimatedWait < low.EstimatedWait).To(BeTrue())
}
