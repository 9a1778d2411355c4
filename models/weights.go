package models

import (
	"fmt"
	"math"
	"strings"
)

// ScoringPolicy selects the hotspot formula.
type ScoringPolicy string

const (
	// PolicyFiveFactor is the log-weighted stars/forks/issues/freshness/activity formula.
	PolicyFiveFactor ScoringPolicy = "five-factor"
	// PolicyVelocity is the log-compressed stars/forks velocity formula.
	PolicyVelocity ScoringPolicy = "velocity"
)

// DefaultPolicy is the formula used when none is configured.
const DefaultPolicy = PolicyFiveFactor

// weightTolerance is how far the sum of weights may drift from 1.0.
const weightTolerance = 0.01

// ParseScoringPolicy converts a configuration string into a ScoringPolicy.
func ParseScoringPolicy(s string) (ScoringPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(PolicyFiveFactor), "a":
		return PolicyFiveFactor, nil
	case string(PolicyVelocity), "b":
		return PolicyVelocity, nil
	default:
		return "", fmt.Errorf("unknown scoring policy %q", s)
	}
}

// WeightConfig holds the weights of one scoring run. Five-factor reads
// Stars, Forks, Issues, Freshness and Activity; velocity reads Stars, Forks
// and Commits.
type WeightConfig struct {
	Policy    ScoringPolicy `json:"policy" yaml:"policy"`
	Stars     float64       `json:"stars" yaml:"stars"`
	Forks     float64       `json:"forks" yaml:"forks"`
	Issues    float64       `json:"issues" yaml:"issues"`
	Freshness float64       `json:"freshness" yaml:"freshness"`
	Activity  float64       `json:"activity" yaml:"activity"`
	Commits   float64       `json:"commits" yaml:"commits"`
}

// DefaultWeights returns the documented defaults for a policy.
func DefaultWeights(policy ScoringPolicy) WeightConfig {
	if policy == PolicyVelocity {
		return WeightConfig{
			Policy:  PolicyVelocity,
			Stars:   0.4,
			Forks:   0.3,
			Commits: 0.3,
		}
	}
	return WeightConfig{
		Policy:    PolicyFiveFactor,
		Stars:     0.35,
		Forks:     0.25,
		Issues:    0.15,
		Freshness: 0.15,
		Activity:  0.10,
	}
}

// active returns pointers to the weights the policy reads.
func (w *WeightConfig) active() []*float64 {
	if w.Policy == PolicyVelocity {
		return []*float64{&w.Stars, &w.Forks, &w.Commits}
	}
	return []*float64{&w.Stars, &w.Forks, &w.Issues, &w.Freshness, &w.Activity}
}

// Active returns the values of the weights the policy reads.
func (w WeightConfig) Active() []float64 {
	ptrs := w.active()
	values := make([]float64, len(ptrs))
	for i, v := range ptrs {
		values[i] = *v
	}
	return values
}

// Sum returns the total of the weights used by the policy.
func (w WeightConfig) Sum() float64 {
	var total float64
	for _, v := range w.active() {
		total += *v
	}
	return total
}

// IsValid reports whether all used weights are non-negative and sum to 1.
func (w WeightConfig) IsValid() bool {
	for _, v := range w.active() {
		if *v < 0 || math.IsNaN(*v) {
			return false
		}
	}
	return math.Abs(w.Sum()-1.0) < weightTolerance
}

// Normalize returns a copy whose used weights are divided by their sum.
// A zero sum leaves the weights unchanged.
func (w WeightConfig) Normalize() WeightConfig {
	total := w.Sum()
	if total == 0 {
		return w
	}
	for _, v := range w.active() {
		*v /= total
	}
	return w
}

// WithPolicyDefault fills an empty policy with the default one.
func (w WeightConfig) WithPolicyDefault() WeightConfig {
	if w.Policy == "" {
		w.Policy = DefaultPolicy
	}
	return w
}
