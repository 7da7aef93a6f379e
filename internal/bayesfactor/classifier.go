// Package bayesfactor compares two evidence values and grades the result on the Jeffreys scale.
package bayesfactor

import (
	"github.com/RushiGong/ESPEI/domain/evidence"
	"github.com/RushiGong/ESPEI/internal/errors"

	"github.com/cockroachdb/apd/v3"
)

// threshold is the inclusive lower bound of a strength bracket
type threshold struct {
	lower    *apd.Decimal
	strength evidence.Strength
}

// Brackets are ordered strongest first; the first lower bound K meets wins.
var (
	ratioScale = []threshold{
		{apd.New(100, 0), evidence.StrengthDecisive},
		{apd.New(10, 0), evidence.StrengthStrong},
		{apd.New(32, -1), evidence.StrengthSubstantial},
		{apd.New(1, 0), evidence.StrengthNotWorthMention},
	}
	log10Scale = []threshold{
		{apd.New(2, 0), evidence.StrengthDecisive},
		{apd.New(1, 0), evidence.StrengthStrong},
		{apd.New(5, -1), evidence.StrengthSubstantial},
		{apd.New(0, 0), evidence.StrengthNotWorthMention},
	}
)

// Classifier computes Bayes factors under an explicit precision configuration
type Classifier struct {
	precision evidence.Precision
}

// NewClassifier creates a classifier bound to precision
func NewClassifier(precision evidence.Precision) (*Classifier, error) {
	if err := precision.Validate(); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return &Classifier{precision: precision}, nil
}

// Classify computes the Bayes factor of e1 over e2 and grades it.
// With logInput both values must be ln(evidence) and the factor is reported as log10(K);
// otherwise both must be raw evidence and the factor is K itself.
func (c *Classifier) Classify(e1, e2 evidence.Evidence, logInput bool) (evidence.Comparison, error) {
	want := evidence.UnitFor(logInput)
	if e1.Unit != e2.Unit {
		return evidence.Comparison{}, errors.ValidationError("evidence values are in different units").
			With("evidence1_unit", e1.Unit.String()).
			With("evidence2_unit", e2.Unit.String())
	}
	if e1.Unit != want {
		return evidence.Comparison{}, errors.ValidationError("evidence unit does not match requested comparison mode").
			With("evidence_unit", e1.Unit.String()).
			With("mode", want.String())
	}
	if e1.Value == nil || e2.Value == nil {
		return evidence.Comparison{}, errors.ValidationError("evidence value is missing")
	}
	if e1.Value.Form != apd.Finite || e2.Value.Form != apd.Finite {
		return evidence.Comparison{}, errors.ValidationError("evidence value is not finite").
			With("evidence1", e1.Value.String()).
			With("evidence2", e2.Value.String())
	}

	ctx, err := c.precision.Context()
	if err != nil {
		return evidence.Comparison{}, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if logInput {
		return classifyLog(ctx, e1.Value, e2.Value)
	}
	return classifyRatio(ctx, e1.Value, e2.Value)
}

// ClassifyValues tags raw decimals with the unit implied by logInput and classifies them
func (c *Classifier) ClassifyValues(v1, v2 *apd.Decimal, logInput bool) (evidence.Comparison, error) {
	unit := evidence.UnitFor(logInput)
	return c.Classify(
		evidence.Evidence{Value: v1, Unit: unit},
		evidence.Evidence{Value: v2, Unit: unit},
		logInput,
	)
}

func classifyRatio(ctx *apd.Context, z1, z2 *apd.Decimal) (evidence.Comparison, error) {
	if z1.Sign() < 0 || z2.Sign() < 0 {
		return evidence.Comparison{}, errors.ValidationError("evidence must not be negative").
			With("evidence1", z1.String()).
			With("evidence2", z2.String())
	}
	if z2.IsZero() {
		return evidence.Comparison{}, errors.ArithmeticError("Bayes factor denominator is zero").
			With("evidence2", z2.String())
	}

	k := new(apd.Decimal)
	if _, err := ctx.Quo(k, z1, z2); err != nil {
		return evidence.Comparison{}, errors.ArithmeticError("Bayes factor division failed").
			With("cause", err.Error())
	}

	favored, strength := grade(k, ratioScale)
	return evidence.Comparison{
		Ratio:    k,
		Space:    evidence.SpaceRatio,
		Favored:  favored,
		Strength: strength,
	}, nil
}

// classifyLog computes log10(exp(l1)/exp(l2)) as (l1 - l2) / ln(10), which
// never exponentiates the possibly huge log-evidence values.
func classifyLog(ctx *apd.Context, l1, l2 *apd.Decimal) (evidence.Comparison, error) {
	diff := new(apd.Decimal)
	if _, err := ctx.Sub(diff, l1, l2); err != nil {
		return evidence.Comparison{}, errors.ArithmeticError("log-evidence difference failed").
			With("cause", err.Error())
	}

	ln10 := new(apd.Decimal)
	if _, err := ctx.Ln(ln10, apd.New(10, 0)); err != nil {
		return evidence.Comparison{}, errors.ArithmeticError("ln(10) failed").
			With("cause", err.Error())
	}

	log10K := new(apd.Decimal)
	if _, err := ctx.Quo(log10K, diff, ln10); err != nil {
		return evidence.Comparison{}, errors.ArithmeticError("log10 Bayes factor division failed").
			With("cause", err.Error())
	}

	favored, strength := grade(log10K, log10Scale)
	return evidence.Comparison{
		Ratio:    log10K,
		Space:    evidence.SpaceLog10,
		Favored:  favored,
		Strength: strength,
	}, nil
}

// grade places v on a scale; below the weakest bracket Model2 is favored with no strength label
func grade(v *apd.Decimal, scale []threshold) (evidence.FavoredModel, evidence.Strength) {
	for _, t := range scale {
		if v.Cmp(t.lower) >= 0 {
			return evidence.Model1, t.strength
		}
	}
	return evidence.Model2, evidence.StrengthInconclusive
}
