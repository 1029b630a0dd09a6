// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package testsetup

import (
	"context"
	"fmt"
	"sync"

	"github.com/AccelByte/skill-matchmaker/pkg/models"
)

// StubCapacityClient provisions in-memory instances and records transport
// calls.
type StubCapacityClient struct {
	mu          sync.Mutex
	provisioned int
	Transported [][]string

	// MaxPlayersPerInstance sizes provisioned instances, 10 when unset.
	MaxPlayersPerInstance int

	// DenyProvisioning makes FindOrProvisionInstance return nil, nil.
	DenyProvisioning bool

	// FailTransport makes TransportPlayers report false.
	FailTransport bool
}

func NewStubCapacityClient() *StubCapacityClient {
	return &StubCapacityClient{MaxPlayersPerInstance: 10}
}

func (c *StubCapacityClient) FindOrProvisionInstance(ctx context.Context, gameMode string, region string, requiredSlots int) (*models.CapacityInstance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.DenyProvisioning {
		return nil, nil
	}
	maxPlayers := c.MaxPlayersPerInstance
	if maxPlayers < requiredSlots {
		maxPlayers = requiredSlots
	}
	c.provisioned++
	return &models.CapacityInstance{
		InstanceID: fmt.Sprintf("stub-instance-%d", c.provisioned),
		GameMode:   gameMode,
		Region:     region,
		MaxPlayers: maxPlayers,
		Status:     models.InstanceStatusAvailable,
	}, nil
}

func (c *StubCapacityClient) TransportPlayers(ctx context.Context, playerIDs []string, instanceID string, metadata models.SessionMetadata) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailTransport {
		return false
	}
	c.Transported = append(c.Transported, playerIDs)
	return true
}

// ProvisionedCount returns how many instances were handed out.
func (c *StubCapacityClient) ProvisionedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provisioned
}

// TransportCount returns how many successful transport calls were made.
func (c *StubCapacityClient) TransportCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Transported)
}
