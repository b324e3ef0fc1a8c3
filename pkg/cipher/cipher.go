package cipher

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
)

const (
	// ShiftLimit is the exclusive upper bound of the per-encode shift.
	ShiftLimit = 8

	// FillerMin is the lowest filler rune.
	FillerMin rune = '!'

	// DefaultFillerMax is the highest filler rune unless overridden.
	DefaultFillerMax rune = 'য'

	// ParityMarker is appended when the raw ciphertext length is ambiguous.
	ParityMarker rune = 'A'

	maxFillerBound rune = 0xD7FF
	prefixOffset        = 2
)

var (
	ErrMalformedCiphertext = errors.New("cipher: malformed ciphertext")
	ErrInvalidFillerRange  = errors.New("cipher: invalid filler range")
)

// Source is the random source used for shifts and fillers.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

type Option func(*Transform)

func WithSource(src Source) Option {
	return func(t *Transform) {
		if src != nil {
			t.src = src
		}
	}
}

func WithFillerMax(r rune) Option {
	return func(t *Transform) {
		t.fillerMax = r
	}
}

// NewSource returns a seeded PCG source. Zero seeds draw a random one.
func NewSource(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Transform holds one plaintext and the ciphertext last produced for it.
type Transform struct {
	mu        sync.Mutex
	original  []rune
	output    []rune
	src       Source
	fillerMax rune
}

func New(original string, opts ...Option) (*Transform, error) {
	t := &Transform{
		original:  []rune(original),
		fillerMax: DefaultFillerMax,
	}
	for _, opt := range opts {
		opt(t)
	}

	if err := ValidateFillerMax(t.fillerMax); err != nil {
		return nil, err
	}

	if t.src == nil {
		t.src = NewSource(0)
	}

	return t, nil
}

// ValidateFillerMax checks that r can bound the filler range.
func ValidateFillerMax(r rune) error {
	if r < FillerMin || r > maxFillerBound {
		return fmt.Errorf("%w: %U not in [%U, %U]", ErrInvalidFillerRange, r, FillerMin, maxFillerBound)
	}
	return nil
}

func (t *Transform) Original() string {
	return string(t.original)
}

func (t *Transform) OriginalRunes() []rune {
	return append([]rune(nil), t.original...)
}

// Output returns the current ciphertext as text. Runes shifted below zero or
// into the surrogate range become U+FFFD; use OutputRunes to decode.
func (t *Transform) Output() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.output)
}

// OutputRunes returns a copy of the current ciphertext.
func (t *Transform) OutputRunes() []rune {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]rune(nil), t.output...)
}

// SetOutput replaces the ciphertext, e.g. to decode one produced elsewhere.
func (t *Transform) SetOutput(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.output = []rune(s)
}

// Encode draws a fresh shift and fillers and overwrites the output.
func (t *Transform) Encode() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.output = t.encode()
}

// Reencode runs a second encode and returns its output, leaving the
// current output exactly as it was, also when encoding panics.
func (t *Transform) Reencode() []rune {
	t.mu.Lock()
	defer t.mu.Unlock()

	saved := t.output
	defer func() { t.output = saved }()

	t.output = nil
	t.output = t.encode()
	return append([]rune(nil), t.output...)
}

func (t *Transform) encode() []rune {
	reversed := reverse(t.original)
	shift := t.src.IntN(ShiftLimit)

	payload := make([]rune, 0, 2*len(reversed))
	for i, r := range reversed {
		payload = append(payload, r-rune(shift))
		if i > 0 {
			payload = append(payload, t.filler())
		}
	}

	out := make([]rune, 0, len(payload)+2)
	out = append(out, prefixRune(shift))
	out = append(out, payload...)
	return withParityMarker(out, len(reversed))
}

func (t *Transform) filler() rune {
	return FillerMin + rune(t.src.IntN(int(t.fillerMax-FillerMin)+1))
}

// Decode recovers the plaintext from the current output without mutating it.
func (t *Transform) Decode() (string, error) {
	t.mu.Lock()
	out := append([]rune(nil), t.output...)
	t.mu.Unlock()

	r, err := decode(out)
	if err != nil {
		return "", err
	}
	return string(r), nil
}

// DecodeRunes recovers the plaintext runes of a ciphertext produced by
// Encode. Shifted runes that are not valid code points survive here but not
// a conversion to string, so callers holding runes should decode them directly.
func DecodeRunes(ciphertext []rune) ([]rune, error) {
	return decode(ciphertext)
}

// Decode recovers the plaintext of a ciphertext produced by Encode.
func Decode(ciphertext string) (string, error) {
	r, err := decode([]rune(ciphertext))
	if err != nil {
		return "", err
	}
	return string(r), nil
}

func decode(text []rune) ([]rune, error) {
	if len(text)%2 == 0 && len(text) > 0 {
		text = text[:len(text)-1]
	}

	if len(text) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedCiphertext)
	}

	shift, err := parsePrefix(text[0])
	if err != nil {
		return nil, err
	}

	rest := text[1:]
	if len(rest) == 0 {
		return []rune{}, nil
	}

	shifted := make([]rune, 0, len(rest)/2+1)
	shifted = append(shifted, rest[0])
	for i := 1; i < len(rest); i += 2 {
		shifted = append(shifted, rest[i])
	}

	for i := range shifted {
		shifted[i] += rune(shift)
	}
	return reverse(shifted), nil
}

func parsePrefix(r rune) (int, error) {
	if r < '0' || r > '9' {
		return 0, fmt.Errorf("%w: prefix %q is not a digit", ErrMalformedCiphertext, r)
	}
	shift := int(r-'0') - prefixOffset
	if shift < 0 || shift >= ShiftLimit {
		return 0, fmt.Errorf("%w: shift %d out of range", ErrMalformedCiphertext, shift)
	}
	return shift, nil
}

func prefixRune(shift int) rune {
	return rune('0' + shift + prefixOffset)
}

// withParityMarker appends the marker when len(t) == 2n-1 so that decode's
// even-length trim never removes a payload rune.
func withParityMarker(t []rune, n int) []rune {
	if len(t) == 2*n-1 {
		return append(t, ParityMarker)
	}
	return t
}

func reverse(in []rune) []rune {
	out := make([]rune, len(in))
	for i, r := range in {
		out[len(in)-1-i] = r
	}
	return out
}
