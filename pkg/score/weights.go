package score

import (
	"fmt"
	"sort"
	"strings"
)

const (
	UniqueChars           = "unique_chars"
	DistinctSequences     = "distinct_sequences"
	Entropy               = "entropy"
	FrequencyAnalysis     = "frequency_analysis"
	LengthConsistency     = "length_consistency"
	Evenness              = "evenness"
	Reversibility         = "reversibility"
	ChangePropagation     = "change_propagation"
	PatternAnalysis       = "pattern_analysis"
	CorrelationAnalysis   = "correlation_analysis"
	Complexity            = "complexity"
	Randomness            = "randomness"
	NormalizedLevenshtein = "normalized_levenshtein"
	EncryptionConsistency = "encryption_consistency"
	RunningTime           = "running_time"
)

// MetricNames lists every recognized metric in evaluation order.
var MetricNames = []string{
	UniqueChars,
	DistinctSequences,
	Entropy,
	FrequencyAnalysis,
	LengthConsistency,
	Evenness,
	Reversibility,
	ChangePropagation,
	PatternAnalysis,
	CorrelationAnalysis,
	Complexity,
	Randomness,
	NormalizedLevenshtein,
	EncryptionConsistency,
	RunningTime,
}

// Weights maps metric name to its weight in the total score.
type Weights map[string]float64

// DefaultWeights returns the weight table of the reference demo run.
func DefaultWeights() Weights {
	return Weights{
		UniqueChars:           0.1,
		DistinctSequences:     1.0,
		Entropy:               1.5,
		FrequencyAnalysis:     0.1,
		LengthConsistency:     0.5,
		Evenness:              1.2,
		Reversibility:         2.0,
		ChangePropagation:     1.5,
		PatternAnalysis:       1.5,
		CorrelationAnalysis:   1.5,
		Complexity:            1.0,
		Randomness:            1.5,
		NormalizedLevenshtein: 1.0,
		EncryptionConsistency: 2.0,
		RunningTime:           0.5,
	}
}

// Validate returns ErrMissingWeight listing every recognized name absent from w.
func (w Weights) Validate() error {
	var missing []string
	for _, name := range MetricNames {
		if _, ok := w[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", ErrMissingWeight, strings.Join(missing, ", "))
	}
	return nil
}

// Sum returns the total of the recognized weights; unknown keys are ignored.
func (w Weights) Sum() float64 {
	var total float64
	for _, name := range MetricNames {
		total += w[name]
	}
	return total
}
