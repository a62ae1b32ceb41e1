package ensemble

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/ensemble.yaml
var defaultConfigYAML []byte

// FallbackStrategy selects how the ensemble path (more than three
// categories) queries the providers.
type FallbackStrategy string

const (
	// StrategySequential tries operational providers in fixed order and
	// returns the first success.
	StrategySequential FallbackStrategy = "sequential"

	// StrategyParallel fans out to all operational providers concurrently
	// and unions the successful responses.
	StrategyParallel FallbackStrategy = "parallel"

	// StrategyVote fans out like parallel but reconciles by majority vote.
	StrategyVote FallbackStrategy = "vote"
)

// BalancingMode selects the load-balancing policy for categories without a
// dedicated provider mapping.
type BalancingMode string

const (
	// BalanceRoundRobin cycles a shared cursor over the operational set.
	BalanceRoundRobin BalancingMode = "round-robin"

	// BalanceWeighted draws proportionally to static per-kind weights.
	BalanceWeighted BalancingMode = "weighted"

	// BalanceAdaptive is reserved for live latency/error-rate biased
	// selection. The current behavior delegates to weighted selection;
	// see LoadBalancer.selectAdaptive.
	BalanceAdaptive BalancingMode = "adaptive"
)

// VoteConfig carries the majority-vote validation thresholds.
type VoteConfig struct {
	// MinVotes is the number of independent votes that validates a
	// recommendation group on its own.
	MinVotes int `yaml:"min_votes"`

	// ConfidenceOverride validates a group regardless of vote count when
	// any member reaches this confidence score.
	ConfidenceOverride float64 `yaml:"confidence_override"`
}

// Config is the startup configuration of the orchestrator. Invalid
// configuration is a fatal startup error: NewOrchestrator refuses it and
// nothing is ever re-validated at request time.
type Config struct {
	Version     string `yaml:"version"`
	LastUpdated string `yaml:"last_updated"`

	FallbackStrategy FallbackStrategy `yaml:"fallback_strategy"`
	LoadBalancing    BalancingMode    `yaml:"load_balancing"`

	// Weights are static selection percentages per provider kind. They
	// must cover the full kind set and sum to exactly 100.
	Weights map[ProviderKind]int `yaml:"weights"`

	// Routing maps categories to their designated provider kind.
	// Unmapped categories fall through to the load balancer.
	Routing map[AnalysisCategory]ProviderKind `yaml:"routing"`

	Vote VoteConfig `yaml:"vote"`
}

// DefaultConfig returns the embedded configuration. The embedded YAML is
// authored alongside the code, so a decode failure is a build defect and
// panics rather than returning an error.
func DefaultConfig() *Config {
	cfg, err := parseConfig(defaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("ensemble: embedded config is invalid: %v", err))
	}
	return cfg
}

// LoadConfigFromFile reads and validates a configuration override from a
// YAML file, for deployments that tune strategy, weights or vote
// thresholds.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	cfg, err := parseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config file '%s': %w", path, err)
	}
	return cfg, nil
}

func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every configuration invariant. All failures wrap
// ErrInvalidConfig.
func (c *Config) Validate() error {
	switch c.FallbackStrategy {
	case StrategySequential, StrategyParallel, StrategyVote:
	default:
		return fmt.Errorf("%w: unknown fallback_strategy '%s'", ErrInvalidConfig, c.FallbackStrategy)
	}

	switch c.LoadBalancing {
	case BalanceRoundRobin, BalanceWeighted, BalanceAdaptive:
	default:
		return fmt.Errorf("%w: unknown load_balancing mode '%s'", ErrInvalidConfig, c.LoadBalancing)
	}

	// Weights must cover the full kind set and sum to exactly 100,
	// regardless of which balancing mode is active: operators switch modes
	// without re-deploying weights.
	total := 0
	for _, kind := range AllProviderKinds() {
		w, ok := c.Weights[kind]
		if !ok {
			return fmt.Errorf("%w: missing weight for provider '%s'", ErrInvalidConfig, kind)
		}
		if w < 0 {
			return fmt.Errorf("%w: negative weight %d for provider '%s'", ErrInvalidConfig, w, kind)
		}
		total += w
	}
	if total != 100 {
		return fmt.Errorf("%w: weights must sum to 100, got %d", ErrInvalidConfig, total)
	}
	for kind := range c.Weights {
		if !kind.IsValid() {
			return fmt.Errorf("%w: weight for unknown provider '%s'", ErrInvalidConfig, kind)
		}
	}

	for category, kind := range c.Routing {
		if !category.IsValid() {
			return fmt.Errorf("%w: routing entry for unknown category '%s'", ErrInvalidConfig, category)
		}
		if !kind.IsValid() {
			return fmt.Errorf("%w: category '%s' routed to unknown provider '%s'", ErrInvalidConfig, category, kind)
		}
	}

	if c.Vote.MinVotes < 1 {
		return fmt.Errorf("%w: vote.min_votes must be at least 1, got %d", ErrInvalidConfig, c.Vote.MinVotes)
	}
	if c.Vote.ConfidenceOverride < 0.0 || c.Vote.ConfidenceOverride > 1.0 {
		return fmt.Errorf("%w: vote.confidence_override must be in [0,1], got %f", ErrInvalidConfig, c.Vote.ConfidenceOverride)
	}

	return nil
}
