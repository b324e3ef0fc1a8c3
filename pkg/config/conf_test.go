package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mchmarny/cipherbench/pkg/cipher"
	"github.com/mchmarny/cipherbench/pkg/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app")

	c1, err := ReadOrCreate(dir)
	require.NoError(t, err)
	require.NotNil(t, c1)
	assert.NoError(t, c1.Validate())
	assert.Equal(t, score.DefaultWeights(), c1.Weights)
	assert.Equal(t, cipher.DefaultFillerMax, c1.FillerRune())

	c1.MaxLengthMultiplier = 3
	c1.Seed = 42
	c1.Samples = []string{"one", "two"}
	c1.Weights[score.Entropy] = 9

	require.NoError(t, Save(dir, c1))

	c2, err := ReadOrCreate(dir)
	require.NoError(t, err)
	assert.Equal(t, c1.MaxLengthMultiplier, c2.MaxLengthMultiplier)
	assert.Equal(t, c1.Seed, c2.Seed)
	assert.Equal(t, c1.Samples, c2.Samples)
	assert.Equal(t, 9.0, c2.Weights[score.Entropy])
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("seed: 7\n"), fileMode))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), c.Seed)
	assert.Equal(t, score.DefaultMaxLengthMultiplier, c.MaxLengthMultiplier)
	assert.Equal(t, score.DefaultWeights(), c.Weights)
	assert.NotEmpty(t, c.Samples)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("weights: [oops"), fileMode))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"multiplier", func(c *Config) { c.MaxLengthMultiplier = 0 }},
		{"concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"filler", func(c *Config) { c.FillerMax = "ab" }},
		{"filler below range", func(c *Config) { c.FillerMax = " " }},
		{"filler above range", func(c *Config) { c.FillerMax = "\U0010FFFF" }},
		{"sample too long", func(c *Config) { c.Samples = []string{strings.Repeat("a", MaxSampleLength+1)} }},
		{"samples", func(c *Config) { c.Samples = nil }},
		{"weights", func(c *Config) { delete(c.Weights, score.Complexity) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())

	c := Default()
	c.FillerMax = "\U0010FFFF"
	assert.ErrorIs(t, c.Validate(), cipher.ErrInvalidFillerRange)

	c = Default()
	c.Samples = []string{strings.Repeat("ж", MaxSampleLength)}
	assert.NoError(t, c.Validate())
}

func TestSave_Errors(t *testing.T) {
	assert.Error(t, Save("", Default()))
	assert.Error(t, Save(t.TempDir(), nil))
	assert.Error(t, SaveFile("", Default()))
	_, err := ReadOrCreate("")
	assert.Error(t, err)
}

func TestSaveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	c := Default()
	c.Concurrency = 7
	require.NoError(t, SaveFile(path, c))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Concurrency)
}

func TestGetOrCreateHomeDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	dir, created, err := GetOrCreateHomeDir("cipherbench-test")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, ".cipherbench-test", filepath.Base(dir))

	_, created, err = GetOrCreateHomeDir(".cipherbench-test")
	require.NoError(t, err)
	assert.False(t, created)

	_, _, err = GetOrCreateHomeDir("")
	assert.Error(t, err)
}
