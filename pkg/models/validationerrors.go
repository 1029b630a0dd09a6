// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"errors"
)

var (
	ValidationErrorUnknownCategory      = errors.New("unknown queue category")
	ValidationErrorMissingGameMode      = errors.New("preferences must include a game mode")
	ValidationErrorNegativeLatencyBound = errors.New("max acceptable latency must be positive")
	ValidationErrorUnknownPriorityClass = errors.New("priority class should be one of high, normal, low")
	ValidationErrorRankedIneligible     = errors.New("player is not eligible for ranked queues")
)

var validationErrorCodeMap = map[error]int{
	ValidationErrorUnknownCategory:      510215,
	ValidationErrorMissingGameMode:      510216,
	ValidationErrorNegativeLatencyBound: 510217,
	ValidationErrorUnknownPriorityClass: 510218,
	ValidationErrorRankedIneligible:     510219,
}

// ValidationErrorCode returns a code for the error.
// It returns 20002 if the error is not registered in the map.
func ValidationErrorCode(err error) int {
	code, ok := validationErrorCodeMap[err]
	if !ok {
		return 20002
	}
	return code
}
