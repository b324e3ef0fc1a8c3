package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/mchmarny/cipherbench/pkg/cipher"
	"github.com/mchmarny/cipherbench/pkg/score"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 4

	// stream ids of the two random sources each sample owns
	transformStream uint64 = 1
	engineStream    uint64 = 2
)

var errNoSamples = errors.New("bench: no samples")

// DefaultSamples returns the sample strings of the reference demo run.
func DefaultSamples() []string {
	return []string{
		"Hello, World!",
		"This is a sample string",
		"Another string for testing",
		"A very very long string that should result in a high score",
		"Short string",
		"abcdefghijklmnopqrstuvwxyz",
		"ABCDEFGHIJKLMNOPQRSTUVWXYZ",
		"1234567890",
		"A string with special characters: !@#$%^&*()",
		"A string with spaces    between     words",
		"A string with a mix of letters, numbers, and special characters: abc123!@#",
	}
}

// Recorder observes encode timings and scored samples.
type Recorder interface {
	ObserveEncode(d time.Duration)
	ObserveResult(r *Result)
}

type Options struct {
	Weights             score.Weights
	MaxLengthMultiplier float64
	Concurrency         int
	// Seed makes a run reproducible; zero draws a random one.
	Seed      uint64
	FillerMax rune
	Logger    *slog.Logger
	Recorder  Recorder
}

// Result is one evaluated sample.
type Result struct {
	Index     int                `json:"index" yaml:"index"`
	Original  string             `json:"original" yaml:"original"`
	Output    string             `json:"output" yaml:"output"`
	Recovered string             `json:"recovered" yaml:"recovered"`
	Success   bool               `json:"success" yaml:"success"`
	Score     float64            `json:"score" yaml:"score"`
	Elapsed   time.Duration      `json:"elapsed" yaml:"elapsed"`
	Outcome   score.Outcome      `json:"outcome" yaml:"outcome"`
	Reason    string             `json:"reason,omitempty" yaml:"reason,omitempty"`
	Summary   map[string]float64 `json:"summary" yaml:"summary"`
}

// Run encodes, decodes and scores every sample. Samples are evaluated
// concurrently, each with its own random streams derived from opts.Seed,
// and results are returned in sample order with 1-based indexes.
func Run(ctx context.Context, samples []string, opts Options) ([]*Result, error) {
	if len(samples) == 0 {
		return nil, errNoSamples
	}
	if err := opts.Weights.Validate(); err != nil {
		return nil, err
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxLengthMultiplier == 0 {
		opts.MaxLengthMultiplier = score.DefaultMaxLengthMultiplier
	}
	if opts.FillerMax == 0 {
		opts.FillerMax = cipher.DefaultFillerMax
	}
	if opts.Seed == 0 {
		opts.Seed = rand.Uint64()
	}

	results := make([]*Result, len(samples))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, s := range samples {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := evaluate(i+1, s, opts)
			if err != nil {
				return fmt.Errorf("sample %d: %w", i+1, err)
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	opts.Logger.Debug("run complete", "samples", len(results), "seed", opts.Seed)
	return results, nil
}

func evaluate(index int, sample string, opts Options) (*Result, error) {
	log := opts.Logger.With("sample", index)
	stream := uint64(index) << 8

	t, err := cipher.New(sample,
		cipher.WithSource(cipher.NewSource(deriveSeed(opts.Seed, stream|transformStream))),
		cipher.WithFillerMax(opts.FillerMax))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	t.Encode()
	elapsed := time.Since(start)

	if opts.Recorder != nil {
		opts.Recorder.ObserveEncode(elapsed)
	}

	e, err := score.NewEngine(t, elapsed, opts.Weights,
		score.WithMaxLengthMultiplier(opts.MaxLengthMultiplier),
		score.WithSource(cipher.NewSource(deriveSeed(opts.Seed, stream|engineStream))),
		score.WithCipherOptions(cipher.WithFillerMax(opts.FillerMax)),
		score.WithLogger(log))
	if err != nil {
		return nil, err
	}

	r := &Result{
		Index:    index,
		Original: sample,
		Output:   t.Output(),
		Score:    e.Score(),
		Elapsed:  elapsed,
		Outcome:  e.Outcome(),
		Summary:  e.Summary(),
	}
	if err := e.Err(); err != nil {
		r.Reason = err.Error()
	}

	recovered, err := t.Decode()
	if err != nil {
		log.Warn("decode failed", "error", err)
	}
	r.Recovered = recovered
	r.Success = err == nil && recovered == sample

	if opts.Recorder != nil {
		opts.Recorder.ObserveResult(r)
	}

	log.Debug("sample scored", "score", r.Score, "outcome", r.Outcome, "elapsed", elapsed)
	return r, nil
}

// Scores returns the score of every result in order.
func Scores(results []*Result) []float64 {
	out := make([]float64, len(results))
	for i, r := range results {
		out[i] = r.Score
	}
	return out
}

// Mean returns the arithmetic mean of scores, or 0 when there are none.
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// deriveSeed mixes a run seed and a stream id into an independent seed
// using the SplitMix64 finalizer.
func deriveSeed(parent, stream uint64) uint64 {
	x := parent ^ (stream + 0x9e3779b97f4a7c15)
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
