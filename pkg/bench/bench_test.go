package bench

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mchmarny/cipherbench/pkg/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	mu       sync.Mutex
	encodes  int
	results  int
	outcomes map[score.Outcome]int
}

func (c *countingRecorder) ObserveEncode(time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.encodes++
}

func (c *countingRecorder) ObserveResult(r *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results++
	if c.outcomes == nil {
		c.outcomes = map[score.Outcome]int{}
	}
	c.outcomes[r.Outcome]++
}

func testOptions() Options {
	return Options{
		Weights: score.DefaultWeights(),
		Seed:    42,
		Logger:  slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}
}

func TestRun_DefaultSamples(t *testing.T) {
	rec := &countingRecorder{}
	opts := testOptions()
	opts.Recorder = rec

	samples := DefaultSamples()
	results, err := Run(context.Background(), samples, opts)
	require.NoError(t, err)
	require.Len(t, results, len(samples))

	for i, r := range results {
		assert.Equal(t, i+1, r.Index)
		assert.Equal(t, samples[i], r.Original)
		assert.Equal(t, samples[i], r.Recovered)
		assert.True(t, r.Success)
		assert.Equal(t, score.Scored, r.Outcome)
		assert.Positive(t, r.Score)
		assert.Len(t, r.Summary, len(score.MetricNames))
	}

	assert.Equal(t, len(samples), rec.encodes)
	assert.Equal(t, len(samples), rec.results)
	assert.Equal(t, len(samples), rec.outcomes[score.Scored])
	assert.Len(t, Scores(results), len(samples))
}

func TestRun_SeedIsReproducible(t *testing.T) {
	samples := []string{"Hello, World!", "1234567890", "Short string"}

	a, err := Run(context.Background(), samples, testOptions())
	require.NoError(t, err)
	b, err := Run(context.Background(), samples, testOptions())
	require.NoError(t, err)

	for i := range samples {
		assert.Equal(t, a[i].Output, b[i].Output)
		for _, name := range score.MetricNames {
			if name == score.RunningTime {
				continue
			}
			assert.Equal(t, a[i].Summary[name], b[i].Summary[name], name)
		}
	}
}

func TestRun_Disqualified(t *testing.T) {
	opts := testOptions()
	opts.MaxLengthMultiplier = 1.0

	results, err := Run(context.Background(), []string{"Hello, World!"}, opts)
	require.NoError(t, err)
	assert.Equal(t, score.Disqualified, results[0].Outcome)
	assert.Equal(t, 0.0, results[0].Score)
	assert.NotEmpty(t, results[0].Reason)
	assert.True(t, results[0].Success)
}

func TestRun_SingleCharacterFailsRoundTrip(t *testing.T) {
	results, err := Run(context.Background(), []string{"x"}, testOptions())
	require.NoError(t, err)
	assert.False(t, results[0].Success)
	assert.Equal(t, "", results[0].Recovered)
}

func TestRun_LowCodePointsRoundTrip(t *testing.T) {
	samples := []string{"\x01\x02\x03abc", "\ue000\ue001"}
	for seed := uint64(1); seed <= 8; seed++ {
		opts := testOptions()
		opts.Seed = seed

		results, err := Run(context.Background(), samples, opts)
		require.NoError(t, err)
		for i, r := range results {
			assert.True(t, r.Success, "seed %d sample %q", seed, samples[i])
			assert.Equal(t, samples[i], r.Recovered)
			assert.Equal(t, 1.0, r.Summary[score.Reversibility])
		}
	}
}

func TestRun_Errors(t *testing.T) {
	_, err := Run(context.Background(), nil, testOptions())
	assert.Error(t, err)

	opts := testOptions()
	opts.Weights = score.Weights{}
	_, err = Run(context.Background(), []string{"abc"}, opts)
	assert.ErrorIs(t, err, score.ErrMissingWeight)

	opts = testOptions()
	opts.FillerMax = ' '
	_, err = Run(context.Background(), []string{"abc"}, opts)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, []string{"abc"}, testOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeriveSeed(t *testing.T) {
	assert.Equal(t, deriveSeed(1, 2), deriveSeed(1, 2))
	assert.NotEqual(t, deriveSeed(1, 2), deriveSeed(1, 3))
	assert.NotEqual(t, deriveSeed(1, 2), deriveSeed(2, 2))
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-12)
}
