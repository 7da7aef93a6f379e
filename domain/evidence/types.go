package evidence

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// Unit tags whether an evidence value is the raw marginal likelihood or its natural log
type Unit int

const (
	UnitNatural Unit = iota
	UnitLog
)

func (u Unit) String() string {
	switch u {
	case UnitNatural:
		return "natural"
	case UnitLog:
		return "log"
	default:
		return fmt.Sprintf("unit(%d)", int(u))
	}
}

// UnitFor maps the boolean log flag used across the API to a Unit
func UnitFor(log bool) Unit {
	if log {
		return UnitLog
	}
	return UnitNatural
}

// ParseUnit parses the textual form produced by Unit.String
func ParseUnit(s string) (Unit, error) {
	switch s {
	case "natural":
		return UnitNatural, nil
	case "log":
		return UnitLog, nil
	}
	return UnitNatural, fmt.Errorf("unknown evidence unit %q", s)
}

func (u Unit) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *Unit) UnmarshalText(b []byte) error {
	parsed, err := ParseUnit(string(b))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// Evidence is a harmonic-mean estimate of one model's marginal likelihood
type Evidence struct {
	Model   string       `json:"model,omitempty"`
	Value   *apd.Decimal `json:"value"`
	Unit    Unit         `json:"unit"`
	Samples int          `json:"samples"`
	BurnIn  int          `json:"burn_in"`
}

// IsLog reports whether the value is ln(evidence)
func (e Evidence) IsLog() bool {
	return e.Unit == UnitLog
}

// FavoredModel identifies which side of a comparison the data supports
type FavoredModel int

const (
	Model1 FavoredModel = iota + 1
	Model2
)

func (f FavoredModel) String() string {
	switch f {
	case Model1:
		return "model1"
	case Model2:
		return "model2"
	default:
		return "unknown"
	}
}

// ParseFavoredModel parses the textual form produced by FavoredModel.String
func ParseFavoredModel(s string) (FavoredModel, error) {
	switch s {
	case "model1":
		return Model1, nil
	case "model2":
		return Model2, nil
	}
	return 0, fmt.Errorf("unknown favored model %q", s)
}

func (f FavoredModel) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *FavoredModel) UnmarshalText(b []byte) error {
	parsed, err := ParseFavoredModel(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Strength is the Jeffreys-scale strength of evidence, ordered from weakest to strongest.
// StrengthInconclusive carries no label and accompanies a Model2 verdict.
type Strength int

const (
	StrengthInconclusive Strength = iota
	StrengthNotWorthMention
	StrengthSubstantial
	StrengthStrong
	StrengthDecisive
)

var strengthNames = map[Strength]string{
	StrengthInconclusive:    "inconclusive",
	StrengthNotWorthMention: "not_worth_mention",
	StrengthSubstantial:     "substantial",
	StrengthStrong:          "strong",
	StrengthDecisive:        "decisive",
}

func (s Strength) String() string {
	if name, ok := strengthNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strength(%d)", int(s))
}

// Label returns the human-readable wording used in reports, empty when there is none
func (s Strength) Label() string {
	switch s {
	case StrengthNotWorthMention:
		return "Not worth more than a bare mention"
	case StrengthSubstantial:
		return "Substantial"
	case StrengthStrong:
		return "Strong"
	case StrengthDecisive:
		return "Decisive"
	default:
		return ""
	}
}

// HasLabel reports whether the strength is reported alongside the verdict
func (s Strength) HasLabel() bool {
	return s != StrengthInconclusive
}

// ParseStrength parses the textual form produced by Strength.String
func ParseStrength(s string) (Strength, error) {
	for k, v := range strengthNames {
		if v == s {
			return k, nil
		}
	}
	return StrengthInconclusive, fmt.Errorf("unknown evidence strength %q", s)
}

func (s Strength) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Strength) UnmarshalText(b []byte) error {
	parsed, err := ParseStrength(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Space names the scale a Bayes factor is expressed in
type Space string

const (
	SpaceRatio Space = "ratio" // K = Z1 / Z2
	SpaceLog10 Space = "log10" // log10(K)
)

// Comparison is the outcome of classifying a pair of evidence values
type Comparison struct {
	Ratio    *apd.Decimal `json:"ratio"`
	Space    Space        `json:"space"`
	Favored  FavoredModel `json:"favored"`
	Strength Strength     `json:"strength"`
}

// Verdict renders the favored model the way reports phrase it
func (c Comparison) Verdict() string {
	switch c.Favored {
	case Model1:
		return "Model 1 is favored by data"
	case Model2:
		return "Model 2 is favored by data"
	default:
		return "No model is favored"
	}
}
