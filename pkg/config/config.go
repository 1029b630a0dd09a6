// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env"
)

// Config holds every matchmaking tunable. All values are settable from the
// environment, the defaults are a workable starting point for a mid-size pool.
type Config struct {
	QueueCategories string `env:"QUEUE_CATEGORIES" envDefault:"ranked,casual,custom" envDocs:"comma separated list of queue categories accepted at admission"`

	MaxQueueTime     time.Duration `env:"MAX_QUEUE_TIME"    envDefault:"5m" envDocs:"entries waiting longer than this are expired and counted as abandonment"`
	TickInterval     time.Duration `env:"TICK_INTERVAL"     envDefault:"1s" envDocs:"scheduler tick interval driving maintenance, formation and session processing"`
	SessionRetention time.Duration `env:"SESSION_RETENTION" envDefault:"5m" envDocs:"how long completed/cancelled sessions are kept before purging"`

	InitialSearchRange float64       `env:"INITIAL_SEARCH_RANGE" envDefault:"100"  envDocs:"rating distance tolerated at admission time"`
	ExpansionPeriod    time.Duration `env:"EXPANSION_PERIOD"     envDefault:"10s"  envDocs:"how long an entry waits before widening its search range by 1 step"`
	ExpansionStep      float64       `env:"EXPANSION_STEP"       envDefault:"50"   envDocs:"how much 1 step of search range expansion is"`
	MaxSearchRange     float64       `env:"MAX_SEARCH_RANGE"     envDefault:"1000" envDocs:"maximum rating distance the search range can expand to"`

	MinGroupSize        int     `env:"MIN_GROUP_SIZE"        envDefault:"2"      envDocs:"minimum players in an emitted match group"`
	MaxGroupSize        int     `env:"MAX_GROUP_SIZE"        envDefault:"8"      envDocs:"maximum players in an emitted match group"`
	BalanceThreshold    float64 `env:"BALANCE_THRESHOLD"     envDefault:"0.5"    envDocs:"minimum balance score for a group to leave the formation engine"`
	MaxExpectedVariance float64 `env:"MAX_EXPECTED_VARIANCE" envDefault:"250000" envDocs:"rating variance that normalizes the balance score to 0"`
	MaxTeamRatingGap    float64 `env:"MAX_TEAM_RATING_GAP"   envDefault:"600"    envDocs:"team rating sum difference that normalizes the team balance term to 0"`
	TeamBalanceWeight   float64 `env:"TEAM_BALANCE_WEIGHT"   envDefault:"0.3"    envDocs:"weight of the team-split term in the final balance score"`

	MatchCreationTimeout   time.Duration `env:"MATCH_CREATION_TIMEOUT"   envDefault:"30s" envDocs:"sessions not assigned capacity within this window are cancelled"`
	ServerScalingThreshold float64       `env:"SERVER_SCALING_THRESHOLD" envDefault:"0.7" envDocs:"aggregate utilization per game mode above which a new instance is provisioned"`
	TransportMaxRetries    int           `env:"TRANSPORT_MAX_RETRIES"    envDefault:"3"   envDocs:"bounded retries for transport and provisioning calls"`

	HighPriorityWeight   float64 `env:"HIGH_PRIORITY_WEIGHT"   envDefault:"1.5" envDocs:"advisory wait estimate divisor for high priority entries"`
	NormalPriorityWeight float64 `env:"NORMAL_PRIORITY_WEIGHT" envDefault:"1.0" envDocs:"advisory wait estimate divisor for normal priority entries"`
	LowPriorityWeight    float64 `env:"LOW_PRIORITY_WEIGHT"    envDefault:"0.5" envDocs:"advisory wait estimate divisor for low priority entries"`

	DegradedAbandonRate float64 `env:"DEGRADED_ABANDON_RATE" envDefault:"0.3" envDocs:"abandonment ratio above which health reports degraded"`
	DegradedCancelRate  float64 `env:"DEGRADED_CANCEL_RATE"  envDefault:"0.3" envDocs:"cancelled match ratio above which health reports degraded"`
}

// New parses the config from the environment and validates it.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the config with every default applied, for tests and local runs.
func Default() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.MinGroupSize < 1 {
		return errors.New("min group size must be at least 1")
	}
	if c.MaxGroupSize < c.MinGroupSize {
		return errors.New("max group size must be greater than or equal with min group size")
	}
	if c.InitialSearchRange < 0 || c.ExpansionStep < 0 {
		return errors.New("search range values cannot be negative")
	}
	if c.MaxSearchRange < c.InitialSearchRange {
		return errors.New("max search range must be greater than or equal with initial search range")
	}
	if c.BalanceThreshold < 0 || c.BalanceThreshold > 1 {
		return errors.New("balance threshold must be within 0 and 1")
	}
	if c.TeamBalanceWeight < 0 || c.TeamBalanceWeight > 1 {
		return errors.New("team balance weight must be within 0 and 1")
	}
	if c.MaxExpectedVariance <= 0 {
		return errors.New("max expected variance must be positive")
	}
	if c.ExpansionPeriod <= 0 {
		return errors.New("expansion period must be positive")
	}
	if len(c.Categories()) == 0 {
		return errors.New("at least one queue category is required")
	}
	return nil
}

// Categories returns the configured queue category names.
func (c *Config) Categories() []string {
	var categories []string
	for _, name := range strings.Split(c.QueueCategories, ",") {
		if name = strings.TrimSpace(name); name != "" {
			categories = append(categories, name)
		}
	}
	return categories
}

// PriorityWeight maps a priority class name to its advisory weight.
func (c *Config) PriorityWeight(priority string) float64 {
	switch priority {
	case "high":
		return c.HighPriorityWeight
	case "low":
		return c.LowPriorityWeight
	default:
		return c.NormalPriorityWeight
	}
}
