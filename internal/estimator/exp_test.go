package estimator

import (
	stderrors "errors"
	"testing"

	"github.com/RushiGong/ESPEI/domain/evidence"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpReducer_MatchesDirectExpInItsRange(t *testing.T) {
	ctx, err := evidence.DefaultPrecision().Context()
	require.NoError(t, err)
	reducer, err := newExpReducer(ctx)
	require.NoError(t, err)

	for _, v := range []int64{-15000, -3000, -7, 0, 2, 4321, 15000} {
		want := new(apd.Decimal)
		_, err := ctx.Exp(want, apd.New(v, 0))
		require.NoError(t, err)

		got := new(apd.Decimal)
		require.NoError(t, reducer.exp(got, apd.New(v, 0)), "v=%d", v)
		assertClose(t, want, got, "1E-45")
	}
}

func TestExpReducer_RejectsShiftBeyondExponentRange(t *testing.T) {
	ctx, err := evidence.DefaultPrecision().Context()
	require.NoError(t, err)
	reducer, err := newExpReducer(ctx)
	require.NoError(t, err)

	for _, v := range []int64{-240000, 240000} {
		err := reducer.exp(new(apd.Decimal), apd.New(v, 0))
		assert.True(t, stderrors.Is(err, errExponentRange), "v=%d: %v", v, err)
	}

	// e^-225000 is about 5.5E-97717, still representable along with its reciprocal
	got := new(apd.Decimal)
	require.NoError(t, reducer.exp(got, apd.New(-225000, 0)))
	assert.Equal(t, int64(-97716), int64(got.Exponent)+got.NumDigits())
}
