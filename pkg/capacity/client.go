// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package capacity tracks session-hosting instances and decides when to ask
// the external provisioner for more of them.
package capacity

import (
	"context"

	"github.com/AccelByte/skill-matchmaker/pkg/models"
)

// Client is the consumed capacity and transport collaborator. Provisioning
// and player handoff physically happen outside this process.
type Client interface {
	// FindOrProvisionInstance asks the fleet for an instance able to host
	// requiredSlots players of the given mode and region. A nil instance
	// with a nil error means no capacity could be obtained right now.
	FindOrProvisionInstance(ctx context.Context, gameMode string, region string, requiredSlots int) (*models.CapacityInstance, error)

	// TransportPlayers moves the given players into a running instance.
	// Best effort, a false return is logged and counted but never rolls back
	// session state.
	TransportPlayers(ctx context.Context, playerIDs []string, instanceID string, metadata models.SessionMetadata) bool
}
