package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveEstimate(t *testing.T) {
	ok := testutil.ToFloat64(estimatesTotal.WithLabelValues("log", "ok"))
	failed := testutil.ToFloat64(estimatesTotal.WithLabelValues("log", "error"))

	ObserveEstimate("log", 100, time.Millisecond, nil)
	ObserveEstimate("log", 0, time.Millisecond, errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(estimatesTotal.WithLabelValues("log", "ok")))
	assert.Equal(t, failed+1, testutil.ToFloat64(estimatesTotal.WithLabelValues("log", "error")))
}

func TestObserveComparisonAndError(t *testing.T) {
	before := testutil.ToFloat64(comparisonsTotal.WithLabelValues("model1", "decisive"))
	ObserveComparison("model1", "decisive")
	assert.Equal(t, before+1, testutil.ToFloat64(comparisonsTotal.WithLabelValues("model1", "decisive")))

	before = testutil.ToFloat64(errorsTotal.WithLabelValues("classify", "ARITHMETIC_ERROR"))
	ObserveError("classify", "ARITHMETIC_ERROR")
	assert.Equal(t, before+1, testutil.ToFloat64(errorsTotal.WithLabelValues("classify", "ARITHMETIC_ERROR")))
}
