package score

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/mchmarny/cipherbench/pkg/cipher"
)

const (
	DefaultMaxLengthMultiplier = 2.0
)

var (
	ErrDisqualified      = errors.New("score: output exceeds allowed length")
	ErrDegenerateInput   = errors.New("score: degenerate input")
	ErrMissingWeight     = errors.New("score: missing weight")
	ErrInvalidMultiplier = errors.New("score: max length multiplier must be positive")
	errNilTransform      = errors.New("score: transform required")
)

// Outcome classifies how the score of an engine was reached.
type Outcome int

const (
	Scored Outcome = iota
	Disqualified
	Degenerate
	Faulted
)

func (o Outcome) String() string {
	switch o {
	case Scored:
		return "scored"
	case Disqualified:
		return "disqualified"
	case Degenerate:
		return "degenerate"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	v, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	for _, o := range []Outcome{Scored, Disqualified, Degenerate, Faulted} {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("score: unknown outcome %q", s)
}

type Option func(*Engine)

func WithMaxLengthMultiplier(m float64) Option {
	return func(e *Engine) {
		e.multiplier = m
	}
}

// WithSource sets the random source of the auxiliary transforms and the
// random baseline string.
func WithSource(src cipher.Source) Option {
	return func(e *Engine) {
		if src != nil {
			e.src = src
		}
	}
}

// WithCipherOptions applies opts to every auxiliary transform.
func WithCipherOptions(opts ...cipher.Option) Option {
	return func(e *Engine) {
		e.cipherOpts = append(e.cipherOpts, opts...)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine scores one encoded transform. All values are computed once by
// NewEngine; Score and Summary read the same stored results.
type Engine struct {
	transform  *cipher.Transform
	original   []rune
	output     []rune
	freq       map[rune]int
	elapsed    time.Duration
	weights    Weights
	multiplier float64
	src        cipher.Source
	cipherOpts []cipher.Option
	log        *slog.Logger

	summary map[string]float64
	score   float64
	outcome Outcome
	err     error
}

// Result is the serializable view of an engine.
type Result struct {
	Score   float64            `json:"score" yaml:"score"`
	Outcome Outcome            `json:"outcome" yaml:"outcome"`
	Reason  string             `json:"reason,omitempty" yaml:"reason,omitempty"`
	Summary map[string]float64 `json:"summary" yaml:"summary"`
}

// NewEngine validates its inputs, then evaluates every metric over t.
// Weight and multiplier problems are returned before any metric runs;
// metric faults only zero the score and are reported by Err.
func NewEngine(t *cipher.Transform, elapsed time.Duration, w Weights, opts ...Option) (*Engine, error) {
	if t == nil {
		return nil, errNilTransform
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		transform:  t,
		elapsed:    elapsed,
		weights:    maps.Clone(w),
		multiplier: DefaultMaxLengthMultiplier,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.multiplier <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMultiplier, e.multiplier)
	}
	if e.src == nil {
		e.src = cipher.NewSource(0)
	}

	e.original = t.OriginalRunes()
	e.output = t.OutputRunes()
	e.freq = frequencies(e.output)

	e.evaluate()
	return e, nil
}

func (e *Engine) evaluate() {
	summary, err := e.computeSummary()
	e.summary = summary

	// An empty original makes the length ratio meaningless, so degenerate
	// input is reported ahead of disqualification.
	switch {
	case err != nil && errors.Is(err, ErrDegenerateInput):
		e.outcome = Degenerate
		e.err = err
		e.log.Warn("degenerate input, score set to 0", "error", err)
		return
	case e.disqualified():
		e.outcome = Disqualified
		e.err = fmt.Errorf("%w: %d > %.2f x %d", ErrDisqualified, len(e.output), e.multiplier, len(e.original))
		e.log.Warn("entry disqualified", "output_len", len(e.output), "original_len", len(e.original), "multiplier", e.multiplier)
		return
	case err != nil:
		e.outcome = Faulted
		e.err = err
		e.log.Error("error calculating score", "error", err)
		return
	}

	var total float64
	for _, name := range MetricNames {
		total += e.weights[name] * summary[name]
	}
	e.score = total
	e.outcome = Scored
}

func (e *Engine) disqualified() bool {
	return float64(len(e.output)) > float64(len(e.original))*e.multiplier
}

// computeSummary runs the metrics in order and stops at the first failure,
// returning the values computed so far.
func (e *Engine) computeSummary() (map[string]float64, error) {
	summary := make(map[string]float64, len(MetricNames))
	for _, name := range MetricNames {
		v, err := e.runMetric(name)
		if err != nil {
			return summary, err
		}
		summary[name] = v
	}
	return summary, nil
}

func (e *Engine) runMetric(name string) (v float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("metric %s panicked: %v", name, r)
		}
	}()
	return metricFuncs[name](e)
}

func (e *Engine) Score() float64 {
	return e.score
}

// Summary returns a copy of the metric values.
func (e *Engine) Summary() map[string]float64 {
	return maps.Clone(e.summary)
}

func (e *Engine) Outcome() Outcome {
	return e.outcome
}

// Err returns the reason the score was zeroed, if any.
func (e *Engine) Err() error {
	return e.err
}

func (e *Engine) Result() *Result {
	r := &Result{
		Score:   e.score,
		Outcome: e.outcome,
		Summary: e.Summary(),
	}
	if e.err != nil {
		r.Reason = e.err.Error()
	}
	return r
}
