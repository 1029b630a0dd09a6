// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package capacity

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/AccelByte/skill-matchmaker/pkg/config"
	"github.com/AccelByte/skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/skill-matchmaker/pkg/metrics"
	"github.com/AccelByte/skill-matchmaker/pkg/models"

	"github.com/sethvargo/go-retry"
)

var (
	ErrInstanceNotFound = errors.New("capacity instance not found")
	ErrInstanceFull     = errors.New("capacity instance has no free slots")
)

// Registry owns the known-instance table. It is written by the session
// orchestrator (assignment, release) and by the external capacity health
// feed (removal); both paths go through the registry mutex so instance
// state never interleaves inconsistently.
type Registry struct {
	cfg     *config.Config
	client  Client
	metrics metrics.MatchmakingMetrics

	mu        sync.Mutex
	instances map[string]*models.CapacityInstance
}

func NewRegistry(cfg *config.Config, client Client, mm metrics.MatchmakingMetrics) *Registry {
	return &Registry{
		cfg:       cfg,
		client:    client,
		metrics:   mm,
		instances: make(map[string]*models.CapacityInstance),
	}
}

// Register adds or replaces a known instance.
func (r *Registry) Register(instance models.CapacityInstance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[instance.InstanceID] = &instance
}

// RemoveInstance drops an instance reported gone by the capacity health feed.
// Sessions already transported keep their state, only bookkeeping changes.
func (r *Registry) RemoveInstance(instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[instanceID]; !ok {
		return ErrInstanceNotFound
	}
	delete(r.instances, instanceID)
	return nil
}

// FindAvailable returns an instance matching mode and region with enough
// free slots, or nil. Partially occupied instances still accept groups.
// Fuller instances win so groups pack tightly and idle instances can be
// reclaimed.
func (r *Registry) FindAvailable(gameMode string, region string, requiredSlots int) *models.CapacityInstance {
	r.mu.Lock()
	defer r.mu.Unlock()

	var candidates []*models.CapacityInstance
	for _, instance := range r.instances {
		if instance.Status != models.InstanceStatusAvailable && instance.Status != models.InstanceStatusActive {
			continue
		}
		if instance.GameMode != gameMode {
			continue
		}
		if region != "" && instance.Region != "" && instance.Region != region {
			continue
		}
		if instance.FreeSlots() < requiredSlots {
			continue
		}
		candidates = append(candidates, instance)
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].FreeSlots() != candidates[j].FreeSlots() {
			return candidates[i].FreeSlots() < candidates[j].FreeSlots()
		}
		return candidates[i].InstanceID < candidates[j].InstanceID
	})
	found := *candidates[0]
	return &found
}

// Utilization returns the occupied-slot ratio across all instances of a game
// mode. A mode with no instances at all reports full utilization so the very
// first provisioning request is never suppressed by the scaling threshold.
func (r *Registry) Utilization(gameMode string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var occupied, total int
	for _, instance := range r.instances {
		if instance.GameMode != gameMode {
			continue
		}
		occupied += instance.CurrentPlayers
		total += instance.MaxPlayers
	}
	if total == 0 {
		return 1.0
	}
	return float64(occupied) / float64(total)
}

// ShouldProvision reports whether aggregate utilization for the game mode
// has crossed the scaling threshold.
func (r *Registry) ShouldProvision(gameMode string) bool {
	return r.Utilization(gameMode) >= r.cfg.ServerScalingThreshold
}

// Provision asks the external collaborator for a new instance with bounded
// retry and registers the result. A nil instance means no capacity right now,
// the caller retries next tick.
func (r *Registry) Provision(scope *envelope.Scope, gameMode string, region string, requiredSlots int) (*models.CapacityInstance, error) {
	childScope := scope.NewChildScope("Registry.Provision")
	defer childScope.Finish()

	backoff := retry.WithMaxRetries(uint64(r.cfg.TransportMaxRetries), retry.NewConstant(50*time.Millisecond))

	var instance *models.CapacityInstance
	err := retry.Do(childScope.Ctx, backoff, func(ctx context.Context) error {
		found, err := r.client.FindOrProvisionInstance(ctx, gameMode, region, requiredSlots)
		if err != nil {
			return retry.RetryableError(err)
		}
		instance = found
		return nil
	})
	if err != nil {
		childScope.Log.WithField("gameMode", gameMode).Warnf("provisioning failed: %s", err)
		return nil, err
	}
	if instance == nil {
		return nil, nil
	}

	r.Register(*instance)
	r.metrics.AddProvisionedInstance(gameMode, instance.Region)
	childScope.Log.WithField("instanceID", instance.InstanceID).Info("provisioned new capacity instance")
	return instance, nil
}

// Occupy seats players on an instance. The instance leaves the available
// state, full when no slots remain.
func (r *Registry) Occupy(instanceID string, numPlayers int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance, ok := r.instances[instanceID]
	if !ok {
		return ErrInstanceNotFound
	}
	if instance.FreeSlots() < numPlayers {
		return ErrInstanceFull
	}
	instance.CurrentPlayers += numPlayers
	if instance.FreeSlots() == 0 {
		instance.Status = models.InstanceStatusFull
	} else {
		instance.Status = models.InstanceStatusActive
	}
	return nil
}

// Release frees seats when a session ends. An emptied instance becomes
// available again. Releasing an unknown instance is a no-op, the health feed
// may have removed it while the session was running.
func (r *Registry) Release(instanceID string, numPlayers int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance, ok := r.instances[instanceID]
	if !ok {
		return
	}
	instance.CurrentPlayers -= numPlayers
	if instance.CurrentPlayers <= 0 {
		instance.CurrentPlayers = 0
		instance.Status = models.InstanceStatusAvailable
	} else {
		instance.Status = models.InstanceStatusActive
	}
}

// Instances returns a snapshot of the known instances.
func (r *Registry) Instances() []models.CapacityInstance {
	r.mu.Lock()
	defer r.mu.Unlock()

	instances := make([]models.CapacityInstance, 0, len(r.instances))
	for _, instance := range r.instances {
		instances = append(instances, *instance)
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i].InstanceID < instances[j].InstanceID })
	return instances
}
