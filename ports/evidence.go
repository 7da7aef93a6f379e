package ports

import (
	"context"

	"github.com/RushiGong/ESPEI/domain/evidence"
)

// ChainLoader reads sampler output and returns the aligned log-likelihood matrix
type ChainLoader interface {
	// Load reads a trace and log-probability array pair, truncating unwritten steps
	Load(ctx context.Context, tracePath, lnprobPath string) (evidence.LogLikelihoodMatrix, error)
}

// EvidenceEstimator produces a unit-tagged evidence value from log-likelihoods
type EvidenceEstimator interface {
	Estimate(m evidence.LogLikelihoodMatrix, burnIn int, unit evidence.Unit) (evidence.Evidence, error)
	Precision() evidence.Precision
}

// BayesFactorClassifier grades the ratio of two evidence values
type BayesFactorClassifier interface {
	Classify(e1, e2 evidence.Evidence, logInput bool) (evidence.Comparison, error)
}

// ResultRepository persists evidence runs and comparisons.
// SaveComparison stores the record's two runs along with it, atomically.
type ResultRepository interface {
	SaveRun(ctx context.Context, run *evidence.Run) error
	GetRun(ctx context.Context, id string) (*evidence.Run, error)
	SaveComparison(ctx context.Context, rec *evidence.ComparisonRecord) error
	GetComparison(ctx context.Context, id string) (*evidence.ComparisonRecord, error)
	ListComparisons(ctx context.Context, limit int) ([]*evidence.ComparisonRecord, error)
}
