package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RushiGong/ESPEI/app"
	"github.com/RushiGong/ESPEI/domain/evidence"
	"github.com/RushiGong/ESPEI/internal/bayesfactor"
	"github.com/RushiGong/ESPEI/internal/estimator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	est, err := estimator.NewHarmonicMean(evidence.DefaultPrecision())
	require.NoError(t, err)
	cls, err := bayesfactor.NewClassifier(evidence.DefaultPrecision())
	require.NoError(t, err)
	return NewServer(app.NewEvidenceService(nil, est, cls, nil, nil), nil)
}

func post(t *testing.T, s *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleClassify(t *testing.T) {
	s := newTestServer(t)

	w := post(t, s, "/api/v1/classify", map[string]interface{}{
		"evidence1": "5", "evidence2": "1", "log": false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Comparison evidence.Comparison `json:"comparison"`
		Summary    string              `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, evidence.Model1, resp.Comparison.Favored)
	assert.Equal(t, evidence.StrengthSubstantial, resp.Comparison.Strength)
	assert.Contains(t, resp.Summary, "Strength of evidence: Substantial")
}

func TestHandleClassify_ErrorStatuses(t *testing.T) {
	s := newTestServer(t)

	w := post(t, s, "/api/v1/classify", map[string]interface{}{"evidence1": "5", "evidence2": "0"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "ARITHMETIC_ERROR")

	w = post(t, s, "/api/v1/classify", map[string]interface{}{"evidence1": "five", "evidence2": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, s, "/api/v1/classify", map[string]interface{}{"evidence1": "5"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEstimate(t *testing.T) {
	s := newTestServer(t)

	w := post(t, s, "/api/v1/evidence", map[string]interface{}{
		"model":           "m",
		"log_likelihoods": [][]float64{{-50, -2, -2}, {-50, -2, -2}},
		"burn_in":         1,
		"log":             true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp app.EstimateResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "m", resp.Run.Evidence.Model)
	assert.Equal(t, evidence.UnitLog, resp.Run.Evidence.Unit)
	assert.Equal(t, 4, resp.Run.Evidence.Samples)

	f, err := resp.Run.Evidence.Value.Float64()
	require.NoError(t, err)
	assert.InDelta(t, -2.0, f, 1e-12)
}

func TestHandleEstimate_BurnInTooLarge(t *testing.T) {
	s := newTestServer(t)

	w := post(t, s, "/api/v1/evidence", map[string]interface{}{
		"model":           "m",
		"log_likelihoods": [][]float64{{-1, -2}},
		"burn_in":         2,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestHandleCompare(t *testing.T) {
	s := newTestServer(t)

	w := post(t, s, "/api/v1/compare", map[string]interface{}{
		"model1":  map[string]interface{}{"model": "a", "log_likelihoods": [][]float64{{-1, -1}}},
		"model2":  map[string]interface{}{"model": "b", "log_likelihoods": [][]float64{{-9, -9}}},
		"burn_in": 0,
		"log":     true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp app.ComparisonReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, evidence.Model1, resp.Record.Comparison.Favored)
	assert.Equal(t, evidence.StrengthDecisive, resp.Record.Comparison.Strength)
}

func TestHandleGetComparison_NotFoundWithoutStore(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/comparisons/abc", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/healthz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
