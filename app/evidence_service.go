package app

import (
	"context"
	"time"

	"github.com/RushiGong/ESPEI/domain/evidence"
	"github.com/RushiGong/ESPEI/internal"
	"github.com/RushiGong/ESPEI/internal/errors"
	"github.com/RushiGong/ESPEI/internal/estimator"
	"github.com/RushiGong/ESPEI/internal/metrics"
	"github.com/RushiGong/ESPEI/ports"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ModelInput names one candidate model and where its log-likelihoods come from.
// Matrix takes precedence over the file paths when set.
type ModelInput struct {
	Name       string
	TracePath  string
	LnProbPath string
	Matrix     *evidence.LogLikelihoodMatrix
}

// EstimateResult is one model's evidence plus diagnostics of the samples behind it
type EstimateResult struct {
	Run     *evidence.Run           `json:"run"`
	Summary estimator.SampleSummary `json:"summary"`
}

// ComparisonReport is a full pairwise comparison
type ComparisonReport struct {
	Record   *evidence.ComparisonRecord `json:"record"`
	Summary1 estimator.SampleSummary    `json:"summary1"`
	Summary2 estimator.SampleSummary    `json:"summary2"`
}

// EvidenceService estimates model evidence and compares models
type EvidenceService struct {
	loader     ports.ChainLoader
	estimator  ports.EvidenceEstimator
	classifier ports.BayesFactorClassifier
	repo       ports.ResultRepository
	logger     *internal.Logger
	now        func() time.Time
}

// NewEvidenceService wires the service; repo may be nil to disable persistence
func NewEvidenceService(
	loader ports.ChainLoader,
	est ports.EvidenceEstimator,
	classifier ports.BayesFactorClassifier,
	repo ports.ResultRepository,
	logger *internal.Logger,
) *EvidenceService {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &EvidenceService{
		loader:     loader,
		estimator:  est,
		classifier: classifier,
		repo:       repo,
		logger:     logger,
		now:        time.Now,
	}
}

// EstimateMatrix estimates evidence for an in-memory log-likelihood matrix
func (s *EvidenceService) EstimateMatrix(ctx context.Context, name string, m evidence.LogLikelihoodMatrix, burnIn int, unit evidence.Unit) (*EstimateResult, error) {
	res, err := s.estimateMatrix(ctx, name, m, burnIn, unit)
	if err != nil {
		return nil, err
	}
	if err := s.saveRun(ctx, res.Run); err != nil {
		return nil, err
	}
	return res, nil
}

// EstimateModel loads a model's sampler output if needed and estimates its evidence
func (s *EvidenceService) EstimateModel(ctx context.Context, in ModelInput, burnIn int, unit evidence.Unit) (*EstimateResult, error) {
	res, err := s.estimateModel(ctx, in, burnIn, unit)
	if err != nil {
		return nil, err
	}
	if err := s.saveRun(ctx, res.Run); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *EvidenceService) saveRun(ctx context.Context, run *evidence.Run) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.SaveRun(ctx, run); err != nil {
		return errors.Wrap(err, "failed to save evidence run")
	}
	return nil
}

// estimateMatrix runs the estimator without persisting anything
func (s *EvidenceService) estimateMatrix(ctx context.Context, name string, m evidence.LogLikelihoodMatrix, burnIn int, unit evidence.Unit) (*EstimateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	ev, err := s.estimator.Estimate(m, burnIn, unit)
	metrics.ObserveEstimate(unit.String(), ev.Samples, time.Since(start), err)
	if err != nil {
		metrics.ObserveError("estimate", errors.GetCode(err))
		return nil, errors.Wrapf(err, "evidence estimate for model %q failed", name)
	}
	ev.Model = name

	summary, err := estimator.Summarize(m, burnIn)
	if err != nil {
		return nil, errors.Wrapf(err, "sample summary for model %q failed", name)
	}

	run := &evidence.Run{
		ID:        uuid.NewString(),
		Evidence:  ev,
		Precision: s.estimator.Precision(),
		CreatedAt: s.now(),
	}
	s.logger.Info("estimated %s evidence for %s: %s from %d samples (burn-in %d)",
		unit, name, ev.Value.Text('g'), ev.Samples, burnIn)
	return &EstimateResult{Run: run, Summary: summary}, nil
}

func (s *EvidenceService) estimateModel(ctx context.Context, in ModelInput, burnIn int, unit evidence.Unit) (*EstimateResult, error) {
	if in.Matrix != nil {
		return s.estimateMatrix(ctx, in.Name, *in.Matrix, burnIn, unit)
	}
	if s.loader == nil {
		return nil, errors.InternalError("no chain loader configured")
	}

	m, err := s.loader.Load(ctx, in.TracePath, in.LnProbPath)
	if err != nil {
		metrics.ObserveError("load", errors.GetCode(err))
		return nil, errors.Wrapf(err, "failed to load chains for model %q", in.Name)
	}
	return s.estimateMatrix(ctx, in.Name, m, burnIn, unit)
}

// Compare estimates both models concurrently and classifies their Bayes factor.
// Nothing is persisted unless both estimates and the classification succeed;
// the two runs and the comparison are then saved together.
func (s *EvidenceService) Compare(ctx context.Context, in1, in2 ModelInput, burnIn int, logMode bool) (*ComparisonReport, error) {
	unit := evidence.UnitFor(logMode)
	results := make([]*EstimateResult, 2)

	g, gctx := errgroup.WithContext(ctx)
	for i, in := range []ModelInput{in1, in2} {
		i, in := i, in
		g.Go(func() error {
			res, err := s.estimateModel(gctx, in, burnIn, unit)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cmp, err := s.classify(results[0].Run.Evidence, results[1].Run.Evidence, logMode)
	if err != nil {
		return nil, err
	}

	rec := &evidence.ComparisonRecord{
		ID:         uuid.NewString(),
		Run1:       results[0].Run,
		Run2:       results[1].Run,
		Comparison: cmp,
		CreatedAt:  s.now(),
	}
	if s.repo != nil {
		if err := s.repo.SaveComparison(ctx, rec); err != nil {
			return nil, errors.Wrap(err, "failed to save model comparison")
		}
	}
	return &ComparisonReport{
		Record:   rec,
		Summary1: results[0].Summary,
		Summary2: results[1].Summary,
	}, nil
}

// ClassifyValues grades two evidence values supplied directly by the caller
func (s *EvidenceService) ClassifyValues(v1, v2 *apd.Decimal, logMode bool) (evidence.Comparison, error) {
	unit := evidence.UnitFor(logMode)
	return s.classify(
		evidence.Evidence{Value: v1, Unit: unit},
		evidence.Evidence{Value: v2, Unit: unit},
		logMode,
	)
}

func (s *EvidenceService) classify(e1, e2 evidence.Evidence, logMode bool) (evidence.Comparison, error) {
	cmp, err := s.classifier.Classify(e1, e2, logMode)
	if err != nil {
		metrics.ObserveError("classify", errors.GetCode(err))
		return evidence.Comparison{}, errors.Wrap(err, "Bayes factor classification failed")
	}
	metrics.ObserveComparison(cmp.Favored.String(), cmp.Strength.String())
	s.logger.Debug("classified %s=%s: %s (%s)", cmp.Space, cmp.Ratio.Text('g'), cmp.Favored, cmp.Strength)
	return cmp, nil
}

// GetComparison loads a stored comparison
func (s *EvidenceService) GetComparison(ctx context.Context, id string) (*evidence.ComparisonRecord, error) {
	if s.repo == nil {
		return nil, errors.NotFound("model comparison " + id)
	}
	return s.repo.GetComparison(ctx, id)
}

// ListComparisons returns recent stored comparisons
func (s *EvidenceService) ListComparisons(ctx context.Context, limit int) ([]*evidence.ComparisonRecord, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.ListComparisons(ctx, limit)
}
