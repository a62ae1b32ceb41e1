package ensemble

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.FallbackStrategy != StrategyParallel {
		t.Errorf("FallbackStrategy = %s, want parallel", cfg.FallbackStrategy)
	}
	if cfg.LoadBalancing != BalanceRoundRobin {
		t.Errorf("LoadBalancing = %s, want round-robin", cfg.LoadBalancing)
	}

	wantWeights := map[ProviderKind]int{
		KindBioMistral:   40,
		KindHippoMistral: 30,
		KindMedFound:     30,
	}
	for kind, want := range wantWeights {
		if got := cfg.Weights[kind]; got != want {
			t.Errorf("Weights[%s] = %d, want %d", kind, got, want)
		}
	}

	wantRouting := map[AnalysisCategory]ProviderKind{
		CategoryDrugInteraction:        KindBioMistral,
		CategoryContraindication:       KindBioMistral,
		CategoryElderlyAppropriateness: KindHippoMistral,
		CategorySideEffectRisk:         KindHippoMistral,
		CategoryDosageAdjustment:       KindMedFound,
		CategoryTherapeuticRedundancy:  KindMedFound,
		CategoryCostOptimization:       KindMedFound,
	}
	for category, want := range wantRouting {
		if got := cfg.Routing[category]; got != want {
			t.Errorf("Routing[%s] = %s, want %s", category, got, want)
		}
	}
	if _, mapped := cfg.Routing[CategoryAdherenceOptimization]; mapped {
		t.Error("adherence_optimization must not have a routing entry")
	}

	if cfg.Vote.MinVotes != 2 {
		t.Errorf("Vote.MinVotes = %d, want 2", cfg.Vote.MinVotes)
	}
	if cfg.Vote.ConfidenceOverride != 0.9 {
		t.Errorf("Vote.ConfidenceOverride = %f, want 0.9", cfg.Vote.ConfidenceOverride)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "default is valid",
			mutate: func(c *Config) {},
		},
		{
			name:   "vote strategy is valid",
			mutate: func(c *Config) { c.FallbackStrategy = StrategyVote },
		},
		{
			name:    "unknown strategy",
			mutate:  func(c *Config) { c.FallbackStrategy = "quorum" },
			wantErr: true,
		},
		{
			name:    "unknown balancing mode",
			mutate:  func(c *Config) { c.LoadBalancing = "fastest" },
			wantErr: true,
		},
		{
			name:    "weights below 100",
			mutate:  func(c *Config) { c.Weights[KindBioMistral] = 39 },
			wantErr: true,
		},
		{
			name:    "weights above 100",
			mutate:  func(c *Config) { c.Weights[KindMedFound] = 31 },
			wantErr: true,
		},
		{
			name:    "negative weight",
			mutate:  func(c *Config) { c.Weights[KindBioMistral] = -10 },
			wantErr: true,
		},
		{
			name:    "missing weight",
			mutate:  func(c *Config) { delete(c.Weights, KindHippoMistral) },
			wantErr: true,
		},
		{
			name:    "weight for unknown provider",
			mutate:  func(c *Config) { c.Weights["gpt4"] = 0 },
			wantErr: true,
		},
		{
			name:    "routing to unknown provider",
			mutate:  func(c *Config) { c.Routing[CategoryDrugInteraction] = "gpt4" },
			wantErr: true,
		},
		{
			name:    "routing for unknown category",
			mutate:  func(c *Config) { c.Routing["billing"] = KindBioMistral },
			wantErr: true,
		},
		{
			name:    "zero min votes",
			mutate:  func(c *Config) { c.Vote.MinVotes = 0 },
			wantErr: true,
		},
		{
			name:    "confidence override above one",
			mutate:  func(c *Config) { c.Vote.ConfidenceOverride = 1.5 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Run("valid override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ensemble.yaml")
		data := `
version: "1.1.0"
fallback_strategy: vote
load_balancing: weighted
weights:
  biomistral: 50
  hippomistral: 25
  medfound: 25
routing:
  drug_interaction: biomistral
vote:
  min_votes: 3
  confidence_override: 0.95
`
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}

		cfg, err := LoadConfigFromFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFromFile() error = %v", err)
		}
		if cfg.FallbackStrategy != StrategyVote {
			t.Errorf("FallbackStrategy = %s, want vote", cfg.FallbackStrategy)
		}
		if cfg.Weights[KindBioMistral] != 50 {
			t.Errorf("Weights[biomistral] = %d, want 50", cfg.Weights[KindBioMistral])
		}
		if cfg.Vote.MinVotes != 3 {
			t.Errorf("Vote.MinVotes = %d, want 3", cfg.Vote.MinVotes)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("LoadConfigFromFile() error = nil, want read failure")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.yaml")
		if err := os.WriteFile(path, []byte("weights: ["), 0o644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
		if _, err := LoadConfigFromFile(path); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("LoadConfigFromFile() error = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("valid yaml failing validation", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "badweights.yaml")
		data := `
fallback_strategy: parallel
load_balancing: round-robin
weights:
  biomistral: 10
  hippomistral: 10
  medfound: 10
vote:
  min_votes: 2
  confidence_override: 0.9
`
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
		if _, err := LoadConfigFromFile(path); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("LoadConfigFromFile() error = %v, want ErrInvalidConfig", err)
		}
	})
}
