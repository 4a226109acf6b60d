// Package config holds the planner's own configuration surface —
// PlanGenerationConfig (§6) and the statistics-collection defaults it
// drives — not the host application's configuration. Structs load from
// YAML via yaml.v3 with environment-variable overrides, following the
// tag convention the teacher codebase uses for its own config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PlanGenerationConfig is the fully enumerated option set from §6.
type PlanGenerationConfig struct {
	MaxCandidatePlans     int  `yaml:"max_candidate_plans" env:"RL_MAX_CANDIDATE_PLANS"`
	MaxDNFBranches        int  `yaml:"max_dnf_branches" env:"RL_MAX_DNF_BRANCHES"`
	EnableHeuristicPruning bool `yaml:"enable_heuristic_pruning" env:"RL_ENABLE_HEURISTIC_PRUNING"`
	MaxInValues           int  `yaml:"max_in_values" env:"RL_MAX_IN_VALUES"`

	// MaxRowsInMemory bounds sort-plan materialization (§5); exceeding it is
	// a resourceExhausted error, never a silent spill.
	MaxRowsInMemory int `yaml:"max_rows_in_memory" env:"RL_MAX_ROWS_IN_MEMORY"`
	// MaxGroupsInMemory bounds the GroupBy operator's hash table (§5/§9).
	MaxGroupsInMemory int `yaml:"max_groups_in_memory" env:"RL_MAX_GROUPS_IN_MEMORY"`
	// PlanCacheSize is the plan cache's maxSize (§4.7).
	PlanCacheSize int `yaml:"plan_cache_size" env:"RL_PLAN_CACHE_SIZE"`
}

// Validate enforces the ranges named in §6's table.
func (c *PlanGenerationConfig) Validate() error {
	if c.MaxCandidatePlans < 1 || c.MaxCandidatePlans > 100 {
		return fmt.Errorf("max_candidate_plans out of range [1,100]: %d", c.MaxCandidatePlans)
	}
	if c.MaxDNFBranches < 1 || c.MaxDNFBranches > 50 {
		return fmt.Errorf("max_dnf_branches out of range [1,50]: %d", c.MaxDNFBranches)
	}
	if c.MaxInValues < 1 {
		return fmt.Errorf("max_in_values must be positive: %d", c.MaxInValues)
	}
	if c.MaxRowsInMemory <= 0 {
		return fmt.Errorf("max_rows_in_memory must be positive: %d", c.MaxRowsInMemory)
	}
	if c.MaxGroupsInMemory <= 0 {
		return fmt.Errorf("max_groups_in_memory must be positive: %d", c.MaxGroupsInMemory)
	}
	if c.PlanCacheSize <= 0 {
		return fmt.Errorf("plan_cache_size must be positive: %d", c.PlanCacheSize)
	}
	return nil
}

// Default returns the `default` preset.
func Default() *PlanGenerationConfig {
	return &PlanGenerationConfig{
		MaxCandidatePlans:      20,
		MaxDNFBranches:         10,
		EnableHeuristicPruning: true,
		MaxInValues:            100,
		MaxRowsInMemory:        1_000_000,
		MaxGroupsInMemory:      1_000_000,
		PlanCacheSize:          1000,
	}
}

// Aggressive widens search at planning-time expense: more candidates, a
// larger DNF budget.
func Aggressive() *PlanGenerationConfig {
	c := Default()
	c.MaxCandidatePlans = 50
	c.MaxDNFBranches = 30
	c.MaxInValues = 500
	return c
}

// Conservative narrows search to keep planning latency predictable.
func Conservative() *PlanGenerationConfig {
	c := Default()
	c.MaxCandidatePlans = 8
	c.MaxDNFBranches = 4
	c.MaxInValues = 20
	return c
}

// Minimal disables heuristics and DNF altogether — baseline full scan plus
// at most one single-index candidate.
func Minimal() *PlanGenerationConfig {
	c := Default()
	c.MaxCandidatePlans = 2
	c.MaxDNFBranches = 1
	c.EnableHeuristicPruning = false
	c.MaxInValues = 1
	return c
}

// Exhaustive maximizes candidate coverage for offline plan-quality analysis;
// not recommended for latency-sensitive callers.
func Exhaustive() *PlanGenerationConfig {
	c := Default()
	c.MaxCandidatePlans = 100
	c.MaxDNFBranches = 50
	c.MaxInValues = 1000
	return c
}

// StatisticsConfig governs §4.6 statistics collection.
type StatisticsConfig struct {
	DefaultSampleRate    float64 `yaml:"default_sample_rate" env:"RL_STATS_SAMPLE_RATE"`
	DefaultBucketCount   int     `yaml:"default_bucket_count" env:"RL_STATS_BUCKET_COUNT"`
	DefaultReservoirSize int     `yaml:"default_reservoir_size" env:"RL_STATS_RESERVOIR_SIZE"`
}

func (c *StatisticsConfig) Validate() error {
	if c.DefaultSampleRate <= 0 || c.DefaultSampleRate > 1 {
		return fmt.Errorf("default_sample_rate out of range (0,1]: %g", c.DefaultSampleRate)
	}
	if c.DefaultBucketCount <= 0 || c.DefaultBucketCount > 10000 {
		return fmt.Errorf("default_bucket_count out of range (0,10000]: %d", c.DefaultBucketCount)
	}
	if c.DefaultReservoirSize <= 0 || c.DefaultReservoirSize > 100000 {
		return fmt.Errorf("default_reservoir_size out of range (0,100000]: %d", c.DefaultReservoirSize)
	}
	return nil
}

func DefaultStatistics() *StatisticsConfig {
	return &StatisticsConfig{
		DefaultSampleRate:    0.1,
		DefaultBucketCount:   100,
		DefaultReservoirSize: 10000,
	}
}

// LoadPlanGenerationConfig parses YAML bytes into a PlanGenerationConfig seeded with defaults,
// then applies RL_* environment overrides.
func LoadPlanGenerationConfig(yamlBytes []byte) (*PlanGenerationConfig, error) {
	c := Default()
	if len(yamlBytes) > 0 {
		if err := yaml.Unmarshal(yamlBytes, c); err != nil {
			return nil, fmt.Errorf("parse plan generation config: %w", err)
		}
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *PlanGenerationConfig) applyEnv() {
	if v := os.Getenv("RL_MAX_CANDIDATE_PLANS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxCandidatePlans = n
		}
	}
	if v := os.Getenv("RL_MAX_DNF_BRANCHES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxDNFBranches = n
		}
	}
	if v := os.Getenv("RL_ENABLE_HEURISTIC_PRUNING"); v != "" {
		c.EnableHeuristicPruning = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RL_MAX_IN_VALUES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxInValues = n
		}
	}
	if v := os.Getenv("RL_MAX_ROWS_IN_MEMORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRowsInMemory = n
		}
	}
	if v := os.Getenv("RL_MAX_GROUPS_IN_MEMORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxGroupsInMemory = n
		}
	}
	if v := os.Getenv("RL_PLAN_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PlanCacheSize = n
		}
	}
}
