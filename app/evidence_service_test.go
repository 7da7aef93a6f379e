package app

import (
	"context"
	"testing"

	"github.com/RushiGong/ESPEI/domain/evidence"
	"github.com/RushiGong/ESPEI/internal/bayesfactor"
	"github.com/RushiGong/ESPEI/internal/errors"
	"github.com/RushiGong/ESPEI/internal/estimator"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock implementations for testing
type MockChainLoader struct {
	mock.Mock
}

func (m *MockChainLoader) Load(ctx context.Context, tracePath, lnprobPath string) (evidence.LogLikelihoodMatrix, error) {
	args := m.Called(ctx, tracePath, lnprobPath)
	return args.Get(0).(evidence.LogLikelihoodMatrix), args.Error(1)
}

type MockResultRepository struct {
	mock.Mock
}

func (m *MockResultRepository) SaveRun(ctx context.Context, run *evidence.Run) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockResultRepository) GetRun(ctx context.Context, id string) (*evidence.Run, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*evidence.Run), args.Error(1)
}

func (m *MockResultRepository) SaveComparison(ctx context.Context, rec *evidence.ComparisonRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockResultRepository) GetComparison(ctx context.Context, id string) (*evidence.ComparisonRecord, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*evidence.ComparisonRecord), args.Error(1)
}

func (m *MockResultRepository) ListComparisons(ctx context.Context, limit int) ([]*evidence.ComparisonRecord, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*evidence.ComparisonRecord), args.Error(1)
}

func newService(t *testing.T, loader *MockChainLoader, repo *MockResultRepository) *EvidenceService {
	t.Helper()
	est, err := estimator.NewHarmonicMean(evidence.DefaultPrecision())
	require.NoError(t, err)
	cls, err := bayesfactor.NewClassifier(evidence.DefaultPrecision())
	require.NoError(t, err)

	if repo == nil {
		return NewEvidenceService(loader, est, cls, nil, nil)
	}
	return NewEvidenceService(loader, est, cls, repo, nil)
}

func matrix(t *testing.T, rows [][]float64) evidence.LogLikelihoodMatrix {
	t.Helper()
	m, err := evidence.NewLogLikelihoodMatrix(rows)
	require.NoError(t, err)
	return m
}

func TestCompare_LoadsBothModelsAndPersists(t *testing.T) {
	loader := &MockChainLoader{}
	repo := &MockResultRepository{}
	ctx := context.Background()

	// Model a is constant at -10, model b at -10 - 3*ln(10): a is favored by three decades.
	loader.On("Load", mock.Anything, "a.trace", "a.lnprob").
		Return(matrix(t, [][]float64{{-99, -10, -10}, {-99, -10, -10}}), nil)
	loader.On("Load", mock.Anything, "b.trace", "b.lnprob").
		Return(matrix(t, [][]float64{{-99, -16.907755278982137, -16.907755278982137}}), nil)
	repo.On("SaveComparison", mock.Anything, mock.AnythingOfType("*evidence.ComparisonRecord")).Return(nil).Once()

	svc := newService(t, loader, repo)
	report, err := svc.Compare(ctx,
		ModelInput{Name: "a", TracePath: "a.trace", LnProbPath: "a.lnprob"},
		ModelInput{Name: "b", TracePath: "b.trace", LnProbPath: "b.lnprob"},
		1, true)
	require.NoError(t, err)

	rec := report.Record
	assert.Equal(t, "a", rec.Run1.Evidence.Model)
	assert.Equal(t, "b", rec.Run2.Evidence.Model)
	assert.Equal(t, 4, rec.Run1.Evidence.Samples)
	assert.Equal(t, 2, rec.Run2.Evidence.Samples)
	assert.Equal(t, evidence.UnitLog, rec.Run1.Evidence.Unit)
	assert.Equal(t, evidence.SpaceLog10, rec.Comparison.Space)
	assert.Equal(t, evidence.Model1, rec.Comparison.Favored)
	assert.Equal(t, evidence.StrengthDecisive, rec.Comparison.Strength)
	assert.Equal(t, 4, report.Summary1.Count)
	assert.InDelta(t, -10, report.Summary1.Mean, 1e-12)

	f, err := rec.Comparison.Ratio.Float64()
	require.NoError(t, err)
	assert.InDelta(t, 3.0, f, 1e-9)

	loader.AssertExpectations(t)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "SaveRun", mock.Anything, mock.Anything)
}

func TestCompare_FailedEstimatePersistsNothing(t *testing.T) {
	repo := &MockResultRepository{}
	svc := newService(t, &MockChainLoader{}, repo)
	m1 := matrix(t, [][]float64{{-1, -2, -3}, {-1, -2, -3}})
	// burn-in 2 leaves no samples in the two-step chain of model b
	m2 := matrix(t, [][]float64{{-1, -2}})

	_, err := svc.Compare(context.Background(),
		ModelInput{Name: "a", Matrix: &m1},
		ModelInput{Name: "b", Matrix: &m2},
		2, true)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	repo.AssertNotCalled(t, "SaveRun", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "SaveComparison", mock.Anything, mock.Anything)
}

func TestCompare_SaveFailureIsReported(t *testing.T) {
	repo := &MockResultRepository{}
	repo.On("SaveComparison", mock.Anything, mock.Anything).
		Return(errors.DatabaseError("failed to insert model comparison", context.DeadlineExceeded)).Once()
	svc := newService(t, &MockChainLoader{}, repo)
	m := matrix(t, [][]float64{{-1, -2, -3}})

	_, err := svc.Compare(context.Background(),
		ModelInput{Name: "a", Matrix: &m},
		ModelInput{Name: "b", Matrix: &m},
		0, true)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeDatabaseError))
	repo.AssertNotCalled(t, "SaveRun", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestEstimateMatrix_SavesStandaloneRun(t *testing.T) {
	repo := &MockResultRepository{}
	repo.On("SaveRun", mock.Anything, mock.AnythingOfType("*evidence.Run")).Return(nil).Once()
	svc := newService(t, nil, repo)

	res, err := svc.EstimateMatrix(context.Background(), "solo", matrix(t, [][]float64{{-5, -5}}), 0, evidence.UnitLog)
	require.NoError(t, err)
	assert.Equal(t, "solo", res.Run.Evidence.Model)
	repo.AssertExpectations(t)
}

func TestCompare_PropagatesValidationError(t *testing.T) {
	svc := newService(t, &MockChainLoader{}, nil)
	m1 := matrix(t, [][]float64{{-1, -2, -3}})
	m2 := matrix(t, [][]float64{{-1, -2}})

	_, err := svc.Compare(context.Background(),
		ModelInput{Name: "a", Matrix: &m1},
		ModelInput{Name: "b", Matrix: &m2},
		2, false)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), `model "b"`)
}

func TestEstimateModel_PropagatesLoaderError(t *testing.T) {
	loader := &MockChainLoader{}
	loader.On("Load", mock.Anything, "x", "y").
		Return(evidence.LogLikelihoodMatrix{}, errors.InvalidInput("trace shape mismatch"))

	svc := newService(t, loader, nil)
	_, err := svc.EstimateModel(context.Background(), ModelInput{Name: "m", TracePath: "x", LnProbPath: "y"}, 0, evidence.UnitNatural)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
	assert.Contains(t, err.Error(), "trace shape mismatch")
}

func TestClassifyValues(t *testing.T) {
	svc := newService(t, nil, nil)

	cmp, err := svc.ClassifyValues(apd.New(5, 0), apd.New(1, 0), false)
	require.NoError(t, err)
	assert.Equal(t, evidence.Model1, cmp.Favored)
	assert.Equal(t, evidence.StrengthSubstantial, cmp.Strength)

	_, err = svc.ClassifyValues(apd.New(5, 0), apd.New(0, 0), false)
	assert.True(t, errors.IsArithmetic(err))
}

func TestClassifyValues_LogDecadeBoundaries(t *testing.T) {
	svc := newService(t, nil, nil)
	ctx, err := evidence.DefaultPrecision().Context()
	require.NoError(t, err)

	ln10 := new(apd.Decimal)
	_, err = ctx.Ln(ln10, apd.New(10, 0))
	require.NoError(t, err)
	lnSqrt10 := new(apd.Decimal)
	_, err = ctx.Quo(lnSqrt10, ln10, apd.New(2, 0))
	require.NoError(t, err)
	ln100 := new(apd.Decimal)
	_, err = ctx.Mul(ln100, ln10, apd.New(2, 0))
	require.NoError(t, err)

	cmp, err := svc.ClassifyValues(lnSqrt10, apd.New(0, 0), true)
	require.NoError(t, err)
	assert.Equal(t, evidence.SpaceLog10, cmp.Space)
	assert.Equal(t, evidence.StrengthSubstantial, cmp.Strength)

	cmp, err = svc.ClassifyValues(ln100, apd.New(0, 0), true)
	require.NoError(t, err)
	assert.Equal(t, evidence.SpaceLog10, cmp.Space)
	assert.Equal(t, evidence.StrengthDecisive, cmp.Strength)

	// evidence 2 favored by ln(100) grades as decisive for model 2
	cmp, err = svc.ClassifyValues(apd.New(0, 0), ln100, true)
	require.NoError(t, err)
	assert.Equal(t, evidence.Model2, cmp.Favored)
}

func TestGetComparison_WithoutRepository(t *testing.T) {
	svc := newService(t, nil, nil)
	_, err := svc.GetComparison(context.Background(), "x")
	assert.True(t, errors.IsNotFound(err))
}
