package evidence

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LogLikelihoodMatrix holds sampler log-likelihoods, one row per chain and one
// column per step. All chains have the same number of steps.
type LogLikelihoodMatrix struct {
	dense *mat.Dense
}

// NewLogLikelihoodMatrix copies rows into a matrix, rejecting empty or ragged input
func NewLogLikelihoodMatrix(rows [][]float64) (LogLikelihoodMatrix, error) {
	if len(rows) == 0 {
		return LogLikelihoodMatrix{}, fmt.Errorf("log-likelihood matrix has no chains")
	}
	steps := len(rows[0])
	if steps == 0 {
		return LogLikelihoodMatrix{}, fmt.Errorf("log-likelihood matrix has no steps")
	}

	data := make([]float64, 0, len(rows)*steps)
	for i, row := range rows {
		if len(row) != steps {
			return LogLikelihoodMatrix{}, fmt.Errorf("chain %d has %d steps, expected %d", i, len(row), steps)
		}
		data = append(data, row...)
	}
	return LogLikelihoodMatrix{dense: mat.NewDense(len(rows), steps, data)}, nil
}

// FromDense wraps an existing gonum matrix without copying
func FromDense(d *mat.Dense) (LogLikelihoodMatrix, error) {
	if d == nil || d.IsEmpty() {
		return LogLikelihoodMatrix{}, fmt.Errorf("log-likelihood matrix is empty")
	}
	return LogLikelihoodMatrix{dense: d}, nil
}

// Chains returns the number of independent chains (rows)
func (m LogLikelihoodMatrix) Chains() int {
	if m.dense == nil {
		return 0
	}
	r, _ := m.dense.Dims()
	return r
}

// Steps returns the number of sampling steps per chain (columns)
func (m LogLikelihoodMatrix) Steps() int {
	if m.dense == nil {
		return 0
	}
	_, c := m.dense.Dims()
	return c
}

// At returns the log-likelihood of chain i at step j
func (m LogLikelihoodMatrix) At(i, j int) float64 {
	return m.dense.At(i, j)
}

// Chain returns a view of one chain's log-likelihoods; callers must not modify it
func (m LogLikelihoodMatrix) Chain(i int) []float64 {
	return m.dense.RawRowView(i)
}

// Flatten returns the post-burn-in values in row-major order.
// burnIn must already be validated against Steps.
func (m LogLikelihoodMatrix) Flatten(burnIn int) []float64 {
	chains, steps := m.Chains(), m.Steps()
	if burnIn >= steps {
		return nil
	}
	out := make([]float64, 0, chains*(steps-burnIn))
	for i := 0; i < chains; i++ {
		out = append(out, m.dense.RawRowView(i)[burnIn:]...)
	}
	return out
}

// Rows returns a copy of the matrix as nested slices
func (m LogLikelihoodMatrix) Rows() [][]float64 {
	rows := make([][]float64, m.Chains())
	for i := range rows {
		rows[i] = append([]float64(nil), m.dense.RawRowView(i)...)
	}
	return rows
}
