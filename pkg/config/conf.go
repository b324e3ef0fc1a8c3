package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/mchmarny/cipherbench/pkg/bench"
	"github.com/mchmarny/cipherbench/pkg/cipher"
	"github.com/mchmarny/cipherbench/pkg/score"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	FileName = "config.yaml"

	// MaxSampleLength caps each sample in runes; scoring runs O(n*m) edit
	// distances over it.
	MaxSampleLength = 4096

	dirMode  = 0700
	fileMode = 0600
)

// Config represents the benchmark run configuration.
type Config struct {
	MaxLengthMultiplier float64       `yaml:"max_length_multiplier"`
	Concurrency         int           `yaml:"concurrency"`
	Seed                uint64        `yaml:"seed"`
	FillerMax           string        `yaml:"filler_max"`
	Weights             score.Weights `yaml:"weights"`
	Samples             []string      `yaml:"samples"`
}

// Default returns the configuration of the reference demo run.
func Default() *Config {
	return &Config{
		MaxLengthMultiplier: score.DefaultMaxLengthMultiplier,
		Concurrency:         bench.DefaultConcurrency,
		FillerMax:           string(cipher.DefaultFillerMax),
		Weights:             score.DefaultWeights(),
		Samples:             bench.DefaultSamples(),
	}
}

// Validate checks the values a run depends on.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config required")
	}
	if c.MaxLengthMultiplier <= 0 {
		return errors.Errorf("max_length_multiplier must be positive: %v", c.MaxLengthMultiplier)
	}
	if c.Concurrency < 1 {
		return errors.Errorf("concurrency must be at least 1: %d", c.Concurrency)
	}
	if utf8.RuneCountInString(c.FillerMax) != 1 {
		return errors.Errorf("filler_max must be a single character: %q", c.FillerMax)
	}
	if err := cipher.ValidateFillerMax(c.FillerRune()); err != nil {
		return errors.Wrap(err, "invalid filler_max")
	}
	if len(c.Samples) == 0 {
		return errors.New("at least one sample required")
	}
	for i, s := range c.Samples {
		if n := utf8.RuneCountInString(s); n > MaxSampleLength {
			return errors.Errorf("sample %d is %d characters, max %d", i, n, MaxSampleLength)
		}
	}
	if err := c.Weights.Validate(); err != nil {
		return errors.Wrap(err, "invalid weights")
	}
	return nil
}

// FillerRune returns the filler upper bound as a rune.
func (c *Config) FillerRune() rune {
	r, _ := utf8.DecodeRuneInString(c.FillerMax)
	return r
}

// Save writes c to the default config file in dirPath.
func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	return SaveFile(filepath.Join(dirPath, FileName), c)
}

// SaveFile writes c as YAML to path.
func SaveFile(path string, c *Config) error {
	if path == "" {
		return errors.New("config path required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return errors.Wrapf(err, "failed to write config file: %s", path)
	}
	return nil
}

// ReadOrCreate reads config from directory or creates a default one.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dirPath, dirMode); err != nil {
			return nil, errors.Wrapf(err, "failed to create dir: %s", dirPath)
		}
	}

	path := filepath.Join(dirPath, FileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Save(dirPath, Default()); err != nil {
			return nil, errors.Wrap(err, "failed to create default config")
		}
	}

	return Load(path)
}

// Load reads the config file at path. Fields missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening config file: %s", path)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading config file: %s", path)
	}

	c := Default()
	c.Weights = nil
	c.Samples = nil
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrapf(err, "error unmarshalling config file: %s", path)
	}
	if c.Weights == nil {
		c.Weights = score.DefaultWeights()
	}
	if c.Samples == nil {
		c.Samples = bench.DefaultSamples()
	}
	return c, nil
}

// GetOrCreateHomeDir returns the app directory under the user home.
// The created flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, errors.Wrap(err, "failed to get user home dir")
	}

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, errors.Wrapf(err, "failed to create dir: %s", dir)
		}
		created = true
	}
	return dir, created, nil
}
