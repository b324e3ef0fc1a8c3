package score

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/mchmarny/cipherbench/pkg/cipher"
)

const (
	// Printable is the reference alphabet: digits, letters, punctuation and whitespace.
	Printable = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ" +
		"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~ \t\n\r\x0b\x0c"

	// propagationSeed replaces the first rune of the original for change_propagation.
	propagationSeed = 'a'
)

var (
	printableRunes = []rune(Printable)
	alphabetSize   = float64(len(printableRunes))
	// pairCount is the number of unordered pairs of distinct printable runes.
	pairCount = alphabetSize * (alphabetSize - 1) / 2
)

type metricFunc func(e *Engine) (float64, error)

var metricFuncs = map[string]metricFunc{
	UniqueChars:           (*Engine).uniqueChars,
	DistinctSequences:     (*Engine).distinctSequences,
	Entropy:               (*Engine).entropy,
	FrequencyAnalysis:     (*Engine).frequencyAnalysis,
	LengthConsistency:     (*Engine).lengthConsistency,
	Evenness:              (*Engine).evenness,
	Reversibility:         (*Engine).reversibility,
	ChangePropagation:     (*Engine).changePropagation,
	PatternAnalysis:       (*Engine).patternAnalysis,
	CorrelationAnalysis:   (*Engine).correlationAnalysis,
	Complexity:            (*Engine).complexity,
	Randomness:            (*Engine).randomness,
	NormalizedLevenshtein: (*Engine).normalizedLevenshtein,
	EncryptionConsistency: (*Engine).encryptionConsistency,
	RunningTime:           (*Engine).runningTime,
}

func degenerate(metric, what string) error {
	return fmt.Errorf("%w: %s: %s is empty", ErrDegenerateInput, metric, what)
}

func (e *Engine) uniqueChars() (float64, error) {
	return float64(len(e.freq)) / alphabetSize, nil
}

func (e *Engine) distinctSequences() (float64, error) {
	seen := make(map[[2]rune]struct{})
	for i := 1; i < len(e.output); i++ {
		seen[[2]rune{e.output[i-1], e.output[i]}] = struct{}{}
	}
	return float64(len(seen)) / pairCount, nil
}

func (e *Engine) entropy() (float64, error) {
	if len(e.output) == 0 {
		return 0, degenerate(Entropy, "output")
	}
	n := float64(len(e.output))
	var h float64
	for _, c := range sortedCounts(e.freq) {
		p := c / n
		h -= p * math.Log2(p)
	}
	return h / math.Log2(alphabetSize), nil
}

func (e *Engine) frequencyAnalysis() (float64, error) {
	if len(e.output) == 0 {
		return 0, degenerate(FrequencyAnalysis, "output")
	}
	top := 0
	for _, c := range e.freq {
		top = max(top, c)
	}
	return 1 - float64(top)/float64(len(e.output)), nil
}

func (e *Engine) lengthConsistency() (float64, error) {
	if len(e.original) == 0 {
		return 0, degenerate(LengthConsistency, "original")
	}
	diff := math.Abs(float64(len(e.output) - len(e.original)))
	return diff / float64(len(e.original)), nil
}

func (e *Engine) evenness() (float64, error) {
	if len(e.output) == 0 {
		return 0, degenerate(Evenness, "output")
	}
	return 1 - stdDev(e.freq)/float64(len(e.output)), nil
}

func (e *Engine) reversibility() (float64, error) {
	got, err := cipher.DecodeRunes(e.output)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", Reversibility, err)
	}
	if slices.Equal(got, e.original) {
		return 1, nil
	}
	return 0, nil
}

func (e *Engine) changePropagation() (float64, error) {
	if len(e.output) == 0 {
		return 0, degenerate(ChangePropagation, "output")
	}

	changed := []rune{propagationSeed}
	if len(e.original) > 1 {
		changed = append(changed, e.original[1:]...)
	}

	aux, err := e.auxTransform(string(changed))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", ChangePropagation, err)
	}
	aux.Encode()

	d := Levenshtein(e.output, aux.OutputRunes())
	return float64(d) / float64(len(e.output)), nil
}

func (e *Engine) patternAnalysis() (float64, error) {
	orig := adjacentRepeats(e.original)
	out := adjacentRepeats(e.output)
	if orig == 0 || out == 0 {
		return 1, nil
	}
	return 1 - float64(out)/float64(orig), nil
}

func (e *Engine) correlationAnalysis() (float64, error) {
	if len(e.original) == 0 {
		return 0, degenerate(CorrelationAnalysis, "original")
	}
	n := min(len(e.original), len(e.output))
	same := 0
	for i := 0; i < n; i++ {
		if e.original[i] == e.output[i] {
			same++
		}
	}
	return 1 - float64(same)/float64(len(e.original)), nil
}

func (e *Engine) complexity() (float64, error) {
	if len(e.original) == 0 {
		return 0, degenerate(Complexity, "original")
	}
	return float64(len(e.output)) / float64(len(e.original)), nil
}

// randomness is a baseline noise estimate: the spread of rune counts in the
// encoding of a random printable string as long as the original.
func (e *Engine) randomness() (float64, error) {
	if len(e.original) == 0 {
		return 0, degenerate(Randomness, "original")
	}

	sample := make([]rune, len(e.original))
	for i := range sample {
		sample[i] = printableRunes[e.src.IntN(len(printableRunes))]
	}

	aux, err := e.auxTransform(string(sample))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", Randomness, err)
	}
	aux.Encode()

	return stdDev(frequencies(aux.OutputRunes())) / alphabetSize, nil
}

func (e *Engine) normalizedLevenshtein() (float64, error) {
	decoded, err := cipher.DecodeRunes(e.output)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", NormalizedLevenshtein, err)
	}

	longest := max(len(e.original), len(decoded))
	if longest == 0 {
		return 0, degenerate(NormalizedLevenshtein, "original and decoded")
	}
	return 1 - float64(Levenshtein(e.original, decoded))/float64(longest), nil
}

// encryptionConsistency re-encodes the engine's own transform. The
// transform restores its output before Reencode returns.
func (e *Engine) encryptionConsistency() (float64, error) {
	again := e.transform.Reencode()
	if slices.Equal(again, e.output) {
		return 1, nil
	}
	return 0, nil
}

func (e *Engine) runningTime() (float64, error) {
	return math.Min(math.Max(1-e.elapsed.Seconds(), 0), 1), nil
}

func (e *Engine) auxTransform(s string) (*cipher.Transform, error) {
	opts := append([]cipher.Option{cipher.WithSource(e.src)}, e.cipherOpts...)
	return cipher.New(s, opts...)
}

func frequencies(s []rune) map[rune]int {
	freq := make(map[rune]int)
	for _, r := range s {
		freq[r]++
	}
	return freq
}

// sortedCounts returns the counts of freq ordered by rune so that float
// sums over them are reproducible.
func sortedCounts(freq map[rune]int) []float64 {
	counts := make([]float64, 0, len(freq))
	for _, r := range slices.Sorted(maps.Keys(freq)) {
		counts = append(counts, float64(freq[r]))
	}
	return counts
}

// stdDev returns the population standard deviation of the counts in freq.
func stdDev(freq map[rune]int) float64 {
	if len(freq) == 0 {
		return 0
	}
	counts := sortedCounts(freq)
	n := float64(len(counts))
	var sum float64
	for _, c := range counts {
		sum += c
	}
	mean := sum / n

	var variance float64
	for _, c := range counts {
		d := c - mean
		variance += d * d
	}
	return math.Sqrt(variance / n)
}

func adjacentRepeats(s []rune) int {
	count := 0
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			count++
		}
	}
	return count
}
