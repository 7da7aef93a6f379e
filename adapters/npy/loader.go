// Package npy loads sampler trace and log-probability arrays saved with numpy.save.
package npy

import (
	"context"
	"fmt"
	"os"

	"github.com/RushiGong/ESPEI/domain/evidence"
	"github.com/RushiGong/ESPEI/internal"
	"github.com/RushiGong/ESPEI/internal/errors"

	"github.com/sbinet/npyio"
)

// Array is a dense float64 array in row-major order
type Array struct {
	Shape []int
	Data  []float64
}

// Loader reads trace (chains × steps × params) and lnprob (chains × steps) files
type Loader struct {
	logger *internal.Logger
}

// NewLoader creates a loader
func NewLoader(logger *internal.Logger) *Loader {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Loader{logger: logger}
}

// Load reads both arrays, truncates steps the sampler never wrote and returns the log-likelihoods
func (l *Loader) Load(ctx context.Context, tracePath, lnprobPath string) (evidence.LogLikelihoodMatrix, error) {
	if err := ctx.Err(); err != nil {
		return evidence.LogLikelihoodMatrix{}, err
	}

	trace, err := ReadFile(tracePath)
	if err != nil {
		return evidence.LogLikelihoodMatrix{}, errors.Wrapf(err, "failed to load trace %s", tracePath)
	}
	lnprob, err := ReadFile(lnprobPath)
	if err != nil {
		return evidence.LogLikelihoodMatrix{}, errors.Wrapf(err, "failed to load lnprob %s", lnprobPath)
	}

	rows, err := Truncate(trace, lnprob)
	if err != nil {
		return evidence.LogLikelihoodMatrix{}, err
	}
	l.logger.Debug("loaded %d chains x %d steps from %s (trace shape %v)", len(rows), stepsOf(rows), lnprobPath, trace.Shape)

	m, err := evidence.NewLogLikelihoodMatrix(rows)
	if err != nil {
		return evidence.LogLikelihoodMatrix{}, errors.WithCode(errors.CodeValidationError, err)
	}
	return m, nil
}

func stepsOf(rows [][]float64) int {
	if len(rows) == 0 {
		return 0
	}
	return len(rows[0])
}

// ReadFile decodes a .npy file of float64 values into row-major order
func ReadFile(path string) (*Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}

	shape := append([]int(nil), r.Header.Descr.Shape...)
	size := 1
	for _, dim := range shape {
		size *= dim
	}

	raw := make([]float64, size)
	if err := r.Read(&raw); err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	if r.Header.Descr.Fortran {
		raw = toRowMajor(raw, shape)
	}
	return &Array{Shape: shape, Data: raw}, nil
}

// toRowMajor reorders column-major data into row-major order
func toRowMajor(data []float64, shape []int) []float64 {
	out := make([]float64, len(data))
	idx := make([]int, len(shape))
	for c := range out {
		// c is the row-major offset of idx; compute its column-major offset.
		f, stride := 0, 1
		for d := 0; d < len(shape); d++ {
			f += idx[d] * stride
			stride *= shape[d]
		}
		out[c] = data[f]

		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out
}

// Truncate aligns trace and lnprob and drops trailing steps that no chain wrote.
// A step counts as written when some chain has an all-nonzero parameter vector at it;
// everything after the last written step is discarded from both arrays.
func Truncate(trace, lnprob *Array) ([][]float64, error) {
	if len(lnprob.Shape) != 2 {
		return nil, errors.InvalidInput(fmt.Sprintf("lnprob must be 2-dimensional, got shape %v", lnprob.Shape))
	}
	if len(trace.Shape) != 3 {
		return nil, errors.InvalidInput(fmt.Sprintf("trace must be 3-dimensional, got shape %v", trace.Shape))
	}
	chains, steps, params := trace.Shape[0], trace.Shape[1], trace.Shape[2]
	if lnprob.Shape[0] != chains || lnprob.Shape[1] != steps {
		return nil, errors.InvalidInput(fmt.Sprintf("trace shape %v does not match lnprob shape %v", trace.Shape, lnprob.Shape))
	}

	written := 0
	for i := 0; i < chains; i++ {
		for j := steps - 1; j >= written; j-- {
			base := (i*steps + j) * params
			if params > 0 && allNonZero(trace.Data[base:base+params]) {
				written = j + 1
				break
			}
		}
	}
	if written == 0 {
		return nil, errors.ValidationError("trace contains no written steps")
	}

	rows := make([][]float64, chains)
	for i := range rows {
		rows[i] = append([]float64(nil), lnprob.Data[i*steps:i*steps+written]...)
	}
	return rows, nil
}

func allNonZero(values []float64) bool {
	for _, v := range values {
		if v == 0 {
			return false
		}
	}
	return true
}
