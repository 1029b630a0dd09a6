// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package mathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinMax(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, Min(1, 2))
	assert.Equal(t, 2.0, Max(1.0, 2.0))
}

func TestClamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5.0, Clamp(3.0, 5.0, 10.0))
	assert.Equal(t, 10.0, Clamp(12.0, 5.0, 10.0))
	assert.Equal(t, 7.0, Clamp(7.0, 5.0, 10.0))
}
