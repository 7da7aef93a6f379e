package estimator

import (
	"github.com/RushiGong/ESPEI/domain/evidence"
	"github.com/RushiGong/ESPEI/internal/errors"

	"github.com/montanaflynn/stats"
)

// SampleSummary describes the post-burn-in log-likelihood distribution.
// A long left tail (Min far below Median) is what makes the harmonic-mean
// estimate unstable; the summary is informational only.
type SampleSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// Summarize computes float64 diagnostics of the samples the estimator would use
func Summarize(m evidence.LogLikelihoodMatrix, burnIn int) (SampleSummary, error) {
	if burnIn < 0 || burnIn >= m.Steps() {
		return SampleSummary{}, errors.ValidationError("burn-in count must be less than the number of steps").
			With("burn_in", burnIn).
			With("steps", m.Steps())
	}
	return summarize(m.Flatten(burnIn))
}

func summarize(data []float64) (SampleSummary, error) {
	summary := SampleSummary{Count: len(data)}

	mean, err := stats.Mean(data)
	if err != nil {
		return summary, errors.WithCode(errors.CodeValidationError, err)
	}
	stdDev, err := stats.StandardDeviation(data)
	if err != nil {
		return summary, errors.WithCode(errors.CodeValidationError, err)
	}
	min, err := stats.Min(data)
	if err != nil {
		return summary, errors.WithCode(errors.CodeValidationError, err)
	}
	max, err := stats.Max(data)
	if err != nil {
		return summary, errors.WithCode(errors.CodeValidationError, err)
	}
	median, err := stats.Median(data)
	if err != nil {
		return summary, errors.WithCode(errors.CodeValidationError, err)
	}

	summary.Mean = mean
	summary.StdDev = stdDev
	summary.Min = min
	summary.Median = median
	summary.Max = max
	return summary, nil
}
