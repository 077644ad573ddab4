package orchestrator

import (
	"fmt"
	"time"
)

// Policy decides what a specialist failure does to the whole dispatch.
type Policy string

const (
	// PolicyAllOrNothing fails the request when any specialist fails.
	PolicyAllOrNothing Policy = "all_or_nothing"
	// PolicyPartial drops failed specialists and keeps the rest. The
	// request still fails when every specialist failed.
	PolicyPartial Policy = "partial"
)

// Valid returns true if the policy is a known value.
func (p Policy) Valid() bool {
	return p == PolicyAllOrNothing || p == PolicyPartial
}

// ClassifierConfig tunes the routing call.
type ClassifierConfig struct {
	Temperature float64
	MaxTokens   int64
	// MaxSpecialists keeps only the first N selected ids. 0 means no cap.
	MaxSpecialists int
}

// DispatchConfig tunes the specialist calls.
type DispatchConfig struct {
	Temperature float64
	MaxTokens   int64
	// Concurrency bounds parallel specialist calls. 1 is sequential.
	Concurrency int
	Policy      Policy
}

// SynthesisConfig tunes the merge call.
type SynthesisConfig struct {
	Temperature float64
	MaxTokens   int64
	// Structured asks for {reply, lead_specialist} so the reply can be
	// attributed without parsing prose.
	Structured bool
}

// Config holds pipeline settings.
type Config struct {
	DefaultSpecialist string
	// Model overrides the completer's model for every call.
	Model      string
	Classifier ClassifierConfig
	Dispatch   DispatchConfig
	Synthesis  SynthesisConfig
	// WordBudget is the reply length limit in words.
	WordBudget int
	// Timeout bounds each completion call.
	Timeout time.Duration
}

const (
	DefaultSpecialistID = "strategy"
	DefaultWordBudget   = 200
	DefaultTimeout      = 45 * time.Second
)

// DefaultConfig returns the reference settings.
func DefaultConfig() Config {
	return Config{
		DefaultSpecialist: DefaultSpecialistID,
		Classifier: ClassifierConfig{
			Temperature: 0.2,
			MaxTokens:   300,
		},
		Dispatch: DispatchConfig{
			Temperature: 0.7,
			MaxTokens:   500,
			Concurrency: 4,
			Policy:      PolicyAllOrNothing,
		},
		Synthesis: SynthesisConfig{
			Temperature: 0.7,
			MaxTokens:   1000,
		},
		WordBudget: DefaultWordBudget,
		Timeout:    DefaultTimeout,
	}
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	if c.DefaultSpecialist == "" {
		return fmt.Errorf("default specialist is required")
	}
	if !c.Dispatch.Policy.Valid() {
		return fmt.Errorf("invalid dispatch policy %q", c.Dispatch.Policy)
	}
	if c.Dispatch.Concurrency < 1 {
		return fmt.Errorf("dispatch concurrency must be at least 1, got %d", c.Dispatch.Concurrency)
	}
	if c.WordBudget < 1 {
		return fmt.Errorf("word budget must be positive, got %d", c.WordBudget)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Classifier.MaxSpecialists < 0 {
		return fmt.Errorf("max specialists must not be negative")
	}
	if c.Classifier.MaxTokens < 1 || c.Dispatch.MaxTokens < 1 || c.Synthesis.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be positive")
	}
	return nil
}
