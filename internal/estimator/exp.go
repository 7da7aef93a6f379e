package estimator

import (
	stderrors "errors"
	"math"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

var errExponentRange = stderrors.New("result outside the decimal exponent range")

// guardDigits are carried on top of the caller's precision during reduction
const guardDigits = 5

// expReducer computes e^x for arguments far beyond what apd's Exp accepts.
//
// apd's Exp gives up once |x| exceeds a few tens of thousands, well inside
// the exponent range a Decimal can hold. The argument is therefore split as
// x = n·ln(10) + r with integer n, e^r is computed, and the result is
// shifted by n decimal places. Only an n outside the exponent range fails.
type expReducer struct {
	ctx  *apd.Context
	work *apd.Context
	ln10 *apd.Decimal
	// n must stay within [minShift, maxShift]
	minShift, maxShift int64
}

func newExpReducer(ctx *apd.Context) (*expReducer, error) {
	// The margin keeps the unrounded result and its reciprocal inside apd's exponent limits
	margin := int64(ctx.Precision) + 2*guardDigits + 8
	maxShift := int64(ctx.MaxExponent) - margin
	minShift := int64(ctx.MinExponent) + margin

	// n·ln(10) cancels against x, losing about as many digits as n has
	widest := len(strconv.FormatInt(max(maxShift, -minShift), 10))
	work := ctx.WithPrecision(ctx.Precision + uint32(widest) + guardDigits)

	ln10 := new(apd.Decimal)
	if _, err := work.Ln(ln10, apd.New(10, 0)); err != nil {
		return nil, err
	}
	return &expReducer{ctx: ctx, work: work, ln10: ln10, minShift: minShift, maxShift: maxShift}, nil
}

// exp sets d to e^x rounded under the caller's context
func (e *expReducer) exp(d, x *apd.Decimal) error {
	f, err := x.Float64()
	if err != nil {
		return err
	}
	n := math.Floor(f / math.Ln10)
	if n > float64(e.maxShift) || n < float64(e.minShift) {
		return errExponentRange
	}
	if n == 0 {
		_, err := e.ctx.Exp(d, x)
		return err
	}

	shift := int64(n)
	r := new(apd.Decimal)
	if _, err := e.work.Mul(r, e.ln10, apd.New(shift, 0)); err != nil {
		return err
	}
	if _, err := e.work.Sub(r, x, r); err != nil {
		return err
	}
	if _, err := e.work.Exp(d, r); err != nil {
		return err
	}

	d.Exponent += int32(shift)
	if _, err := e.ctx.Round(d, d); err != nil {
		return stderrors.Join(errExponentRange, err)
	}
	return nil
}
