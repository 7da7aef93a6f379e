package evidence

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogLikelihoodMatrix(t *testing.T) {
	m, err := NewLogLikelihoodMatrix([][]float64{
		{1, 2, 3, 4, 5, 6},
		{7, 8, 9, 10, 11, 12},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Chains())
	assert.Equal(t, 6, m.Steps())
	assert.Equal(t, 9.0, m.At(1, 2))
	assert.Equal(t, []float64{5, 6, 11, 12}, m.Flatten(4))
	assert.Nil(t, m.Flatten(6))

	_, err = NewLogLikelihoodMatrix(nil)
	assert.Error(t, err)
	_, err = NewLogLikelihoodMatrix([][]float64{{}})
	assert.Error(t, err)
	_, err = NewLogLikelihoodMatrix([][]float64{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestComparisonJSON(t *testing.T) {
	c := Comparison{
		Ratio:    apd.New(5, 0),
		Space:    SpaceRatio,
		Favored:  Model1,
		Strength: StrengthSubstantial,
	}
	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ratio":"5","space":"ratio","favored":"model1","strength":"substantial"}`, string(data))

	var back Comparison
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Model1, back.Favored)
	assert.Equal(t, StrengthSubstantial, back.Strength)
	assert.Equal(t, 0, back.Ratio.Cmp(c.Ratio))
}

func TestStrengthOrdering(t *testing.T) {
	assert.Less(t, int(StrengthInconclusive), int(StrengthNotWorthMention))
	assert.Less(t, int(StrengthNotWorthMention), int(StrengthSubstantial))
	assert.Less(t, int(StrengthSubstantial), int(StrengthStrong))
	assert.Less(t, int(StrengthStrong), int(StrengthDecisive))
	assert.Equal(t, "", StrengthInconclusive.Label())
	assert.Equal(t, "Decisive", StrengthDecisive.Label())
}

func TestPrecisionContext(t *testing.T) {
	ctx, err := Precision{Digits: 20, Rounding: "half_up"}.Context()
	require.NoError(t, err)
	assert.Equal(t, uint32(20), ctx.Precision)
	assert.Equal(t, apd.RoundHalfUp, ctx.Rounding)

	_, err = Precision{Digits: 20, Rounding: "nearest"}.Context()
	assert.Error(t, err)
}
