// Package api exposes evidence estimation and model comparison over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/RushiGong/ESPEI/adapters/report"
	"github.com/RushiGong/ESPEI/app"
	"github.com/RushiGong/ESPEI/domain/evidence"
	"github.com/RushiGong/ESPEI/internal"
	"github.com/RushiGong/ESPEI/internal/errors"

	"github.com/cockroachdb/apd/v3"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service is the application behaviour the HTTP layer needs
type Service interface {
	EstimateMatrix(ctx context.Context, name string, m evidence.LogLikelihoodMatrix, burnIn int, unit evidence.Unit) (*app.EstimateResult, error)
	Compare(ctx context.Context, in1, in2 app.ModelInput, burnIn int, logMode bool) (*app.ComparisonReport, error)
	ClassifyValues(v1, v2 *apd.Decimal, logMode bool) (evidence.Comparison, error)
	GetComparison(ctx context.Context, id string) (*evidence.ComparisonRecord, error)
	ListComparisons(ctx context.Context, limit int) ([]*evidence.ComparisonRecord, error)
}

// Server represents the HTTP API server
type Server struct {
	router  *gin.Engine
	service Service
	logger  *internal.Logger
}

// NewServer creates the router and registers routes
func NewServer(service Service, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	s := &Server{
		router:  gin.New(),
		service: service,
		logger:  logger,
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

// Handler returns the underlying http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts listening on addr
func (s *Server) Run(addr string) error {
	s.logger.Info("starting evidence API on %s", addr)
	return s.router.Run(addr)
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/evidence", s.handleEstimate)
		v1.POST("/compare", s.handleCompare)
		v1.POST("/classify", s.handleClassify)
		v1.GET("/comparisons", s.handleListComparisons)
		v1.GET("/comparisons/:id", s.handleGetComparison)
		v1.GET("/comparisons/:id/report", s.handleComparisonReport)
	}
}

type modelRequest struct {
	Model          string      `json:"model" binding:"required"`
	LogLikelihoods [][]float64 `json:"log_likelihoods" binding:"required"`
}

type estimateRequest struct {
	modelRequest
	BurnIn int  `json:"burn_in"`
	Log    bool `json:"log"`
}

type compareRequest struct {
	Model1 modelRequest `json:"model1" binding:"required"`
	Model2 modelRequest `json:"model2" binding:"required"`
	BurnIn int          `json:"burn_in"`
	Log    bool         `json:"log"`
}

// classifyRequest carries evidence as decimal strings so no digits are lost in transit
type classifyRequest struct {
	Evidence1 string `json:"evidence1" binding:"required"`
	Evidence2 string `json:"evidence2" binding:"required"`
	Log       bool   `json:"log"`
}

func (s *Server) handleEstimate(c *gin.Context) {
	var req estimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}
	m, err := evidence.NewLogLikelihoodMatrix(req.LogLikelihoods)
	if err != nil {
		s.fail(c, errors.WithCode(errors.CodeValidationError, err))
		return
	}

	res, err := s.service.EstimateMatrix(c.Request.Context(), req.Model, m, req.BurnIn, evidence.UnitFor(req.Log))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCompare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}

	inputs := make([]app.ModelInput, 2)
	for i, mr := range []modelRequest{req.Model1, req.Model2} {
		m, err := evidence.NewLogLikelihoodMatrix(mr.LogLikelihoods)
		if err != nil {
			s.fail(c, errors.Wrapf(errors.WithCode(errors.CodeValidationError, err), "model %q", mr.Model))
			return
		}
		inputs[i] = app.ModelInput{Name: mr.Model, Matrix: &m}
	}

	res, err := s.service.Compare(c.Request.Context(), inputs[0], inputs[1], req.BurnIn, req.Log)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleClassify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}

	v1, _, err := apd.NewFromString(req.Evidence1)
	if err != nil {
		s.fail(c, errors.InvalidInput("evidence1 is not a decimal number").With("value", req.Evidence1))
		return
	}
	v2, _, err := apd.NewFromString(req.Evidence2)
	if err != nil {
		s.fail(c, errors.InvalidInput("evidence2 is not a decimal number").With("value", req.Evidence2))
		return
	}

	cmp, err := s.service.ClassifyValues(v1, v2, req.Log)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"comparison": cmp,
		"summary":    report.Summary(cmp),
	})
}

func (s *Server) handleListComparisons(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.service.ListComparisons(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comparisons": records})
}

func (s *Server) handleGetComparison(c *gin.Context) {
	rec, err := s.service.GetComparison(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleComparisonReport(c *gin.Context) {
	rec, err := s.service.GetComparison(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", report.HTML(rec))
}

// fail maps error codes to HTTP statuses
func (s *Server) fail(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch {
	case errors.IsValidation(err), errors.HasCode(err, errors.CodeInvalidInput):
		status = http.StatusBadRequest
	case errors.IsArithmetic(err):
		status = http.StatusUnprocessableEntity
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	} else {
		s.logger.Debug("%s %s rejected: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
