// Package estimator computes model evidence from posterior log-likelihood samples.
//
// The harmonic-mean estimator implemented here is simple but statistically
// unstable: its variance can be very large, or formally infinite, when the
// log-likelihood distribution has a heavy left tail. That is a property of the
// method and is intentionally not corrected by clipping or smoothing.
package estimator

import (
	stderrors "errors"
	"math"

	"github.com/RushiGong/ESPEI/domain/evidence"
	"github.com/RushiGong/ESPEI/internal/errors"

	"github.com/cockroachdb/apd/v3"
)

// HarmonicMean estimates evidence as n / Σ(1/exp(lnL_i)) in decimal arithmetic
type HarmonicMean struct {
	precision evidence.Precision
}

// NewHarmonicMean creates an estimator bound to an explicit precision configuration
func NewHarmonicMean(precision evidence.Precision) (*HarmonicMean, error) {
	if err := precision.Validate(); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return &HarmonicMean{precision: precision}, nil
}

// Precision returns the arithmetic configuration the estimator was built with
func (h *HarmonicMean) Precision() evidence.Precision {
	return h.precision
}

// Estimate drops the first burnIn steps of every chain and returns the
// harmonic-mean evidence of the remaining samples, as ln(evidence) when unit is UnitLog.
func (h *HarmonicMean) Estimate(m evidence.LogLikelihoodMatrix, burnIn int, unit evidence.Unit) (evidence.Evidence, error) {
	steps := m.Steps()
	if burnIn < 0 {
		return evidence.Evidence{}, errors.ValidationError("burn-in count must not be negative").
			With("burn_in", burnIn)
	}
	if burnIn >= steps {
		return evidence.Evidence{}, errors.ValidationError("burn-in count must be less than the number of steps").
			With("burn_in", burnIn).
			With("steps", steps)
	}

	samples := m.Flatten(burnIn)
	result, err := h.estimate(samples, unit, func(k int) (int, int) {
		per := steps - burnIn
		return k / per, burnIn + k%per
	})
	if err != nil {
		return evidence.Evidence{}, err
	}
	result.BurnIn = burnIn
	return result, nil
}

// EstimateSamples computes the estimate for an already flattened, post-burn-in sequence
func (h *HarmonicMean) EstimateSamples(samples []float64, unit evidence.Unit) (evidence.Evidence, error) {
	return h.estimate(samples, unit, func(k int) (int, int) { return 0, k })
}

// locator maps a flattened index back to (chain, step) for error reporting
type locator func(k int) (chain, step int)

func (h *HarmonicMean) estimate(samples []float64, unit evidence.Unit, locate locator) (evidence.Evidence, error) {
	if unit != evidence.UnitNatural && unit != evidence.UnitLog {
		return evidence.Evidence{}, errors.ValidationError("unknown evidence unit").With("unit", int(unit))
	}
	if len(samples) == 0 {
		return evidence.Evidence{}, errors.ValidationError("no samples remain after burn-in removal")
	}

	// Validate every input before any decimal work is attempted.
	for k, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 1) {
			chain, step := locate(k)
			return evidence.Evidence{}, errors.ValidationError("log-likelihood is not a finite value").
				With("chain", chain).
				With("step", step).
				With("value", v)
		}
	}

	ctx, err := h.precision.Context()
	if err != nil {
		return evidence.Evidence{}, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	reducer, err := newExpReducer(ctx)
	if err != nil {
		return evidence.Evidence{}, errors.ArithmeticError("computing ln(10) failed").With("cause", err.Error())
	}

	one := apd.New(1, 0)
	sum := new(apd.Decimal)
	lnL := new(apd.Decimal)
	sample := new(apd.Decimal)
	reciprocal := new(apd.Decimal)

	for k, v := range samples {
		chain, step := locate(k)
		if math.IsInf(v, -1) {
			return evidence.Evidence{}, errors.ArithmeticError("likelihood sample is zero").
				With("chain", chain).
				With("step", step).
				With("log_likelihood", v)
		}
		if _, err := lnL.SetFloat64(v); err != nil {
			return evidence.Evidence{}, errors.WithCode(errors.CodeValidationError,
				errors.Wrapf(err, "log-likelihood at chain %d step %d is not representable", chain, step))
		}
		if err := reducer.exp(sample, lnL); err != nil {
			if stderrors.Is(err, errExponentRange) {
				return evidence.Evidence{}, errors.ArithmeticError("likelihood sample is outside the decimal exponent range").
					With("chain", chain).
					With("step", step).
					With("log_likelihood", v)
			}
			return evidence.Evidence{}, errors.ArithmeticError("exponentiating log-likelihood failed").
				With("chain", chain).
				With("step", step).
				With("log_likelihood", v).
				With("cause", err.Error())
		}
		if sample.Sign() <= 0 {
			return evidence.Evidence{}, errors.ArithmeticError("likelihood sample is outside the decimal exponent range").
				With("chain", chain).
				With("step", step).
				With("log_likelihood", v)
		}
		if _, err := ctx.Quo(reciprocal, one, sample); err != nil {
			return evidence.Evidence{}, errors.ArithmeticError("reciprocal of likelihood sample failed").
				With("chain", chain).
				With("step", step).
				With("cause", err.Error())
		}
		if _, err := ctx.Add(sum, sum, reciprocal); err != nil {
			return evidence.Evidence{}, errors.ArithmeticError("accumulating reciprocal likelihoods failed").
				With("cause", err.Error())
		}
	}

	hm := new(apd.Decimal)
	if _, err := ctx.Quo(hm, apd.New(int64(len(samples)), 0), sum); err != nil {
		return evidence.Evidence{}, errors.ArithmeticError("harmonic mean division failed").
			With("cause", err.Error())
	}

	value := hm
	if unit == evidence.UnitLog {
		value = new(apd.Decimal)
		if _, err := ctx.Ln(value, hm); err != nil {
			return evidence.Evidence{}, errors.ArithmeticError("logarithm of harmonic mean failed").
				With("cause", err.Error())
		}
	}

	return evidence.Evidence{
		Value:   value,
		Unit:    unit,
		Samples: len(samples),
	}, nil
}
