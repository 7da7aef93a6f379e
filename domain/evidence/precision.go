package evidence

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// DefaultDigits is the working precision used when none is configured
const DefaultDigits uint32 = 50

// MaxDigits bounds the working precision accepted from configuration
const MaxDigits uint32 = 10000

// DefaultRounding is the rounding mode used when none is configured
const DefaultRounding = "half_even"

// Precision configures the decimal arithmetic used for evidence computation.
// It is passed explicitly to every estimator and classifier so results do not
// depend on process-wide state.
type Precision struct {
	Digits   uint32 `json:"digits" yaml:"digits"`
	Rounding string `json:"rounding" yaml:"rounding"`
}

// DefaultPrecision returns 50 significant digits with banker's rounding
func DefaultPrecision() Precision {
	return Precision{Digits: DefaultDigits, Rounding: DefaultRounding}
}

var rounders = map[string]apd.Rounder{
	"down":      apd.RoundDown,
	"half_up":   apd.RoundHalfUp,
	"half_even": apd.RoundHalfEven,
	"ceiling":   apd.RoundCeiling,
	"floor":     apd.RoundFloor,
	"half_down": apd.RoundHalfDown,
	"up":        apd.RoundUp,
	"05up":      apd.Round05Up,
}

// RoundingModes lists the accepted rounding names
func RoundingModes() []string {
	return []string{"down", "half_up", "half_even", "ceiling", "floor", "half_down", "up", "05up"}
}

// Validate checks the precision can drive transcendental operations
func (p Precision) Validate() error {
	if p.Digits == 0 {
		return fmt.Errorf("precision digits must be positive")
	}
	if p.Digits > MaxDigits {
		return fmt.Errorf("precision digits %d exceeds maximum %d", p.Digits, MaxDigits)
	}
	if _, ok := rounders[p.Rounding]; !ok {
		return fmt.Errorf("unknown rounding mode %q", p.Rounding)
	}
	return nil
}

// Context builds a fresh apd context for one computation.
// Underflow and subnormal results are not trapped: a likelihood that
// underflows to zero is detected and reported by the caller instead.
func (p Precision) Context() (*apd.Context, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ctx := apd.BaseContext.WithPrecision(p.Digits)
	ctx.Rounding = rounders[p.Rounding]
	ctx.Traps = apd.DefaultTraps &^ (apd.Underflow | apd.Subnormal)
	return ctx, nil
}
