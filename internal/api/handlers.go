package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prisma-miner/internal/domain"
	"github.com/prisma-miner/internal/pipeline"
	"github.com/prisma-miner/internal/prisma"
	"github.com/prisma-miner/internal/quality"
	"github.com/prisma-miner/internal/query"
	"github.com/prisma-miner/internal/store"
	"github.com/prisma-miner/internal/vocabulary"
)

type queryRequest struct {
	Organism   string   `json:"organism"`
	Condition  string   `json:"condition"`
	Experiment string   `json:"experiment"`
	Targets    []string `json:"targets"`
	ExtraTerms []string `json:"extra_terms"`
}

type queryResponse struct {
	Expansion query.Expansion `json:"expansion"`
	Queries   []query.Query   `json:"queries"`
}

type validateRequest struct {
	Query *string `json:"query" binding:"required"`
}

type assessRequest struct {
	Records []domain.Record `json:"records" binding:"required"`
}

type assessResponse struct {
	Records []quality.AssessedRecord `json:"records"`
	Report  quality.Report           `json:"report"`
}

type runsResponse struct {
	Runs   []*store.RunRecord `json:"runs"`
	Total  int64              `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

type startRunRequest struct {
	Organism      string   `json:"organism" binding:"required"`
	Condition     string   `json:"condition" binding:"required"`
	Experiment    string   `json:"experiment"`
	Label         string   `json:"label"`
	Databases     []string `json:"databases"`
	QualityFilter *bool    `json:"quality_filter"`
	MinQuality    *float64 `json:"min_quality"`
}

type startRunResponse struct {
	ID         string                `json:"id"`
	Label      string                `json:"label"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Summary    prisma.FlowSummary    `json:"summary"`
	Screening  prisma.ScreeningStats `json:"screening"`
	Quality    quality.Report        `json:"quality"`
}

func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	deps := make(map[string]string, len(s.checks))
	for name, hc := range s.checks {
		if err := hc.Health(c.Request.Context()); err != nil {
			s.logger.WithError(err).WithField("dependency", name).Warn("Health check failed")
			deps[name] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	health := "healthy"
	if status != http.StatusOK {
		health = "degraded"
	}
	body := gin.H{
		"status":    health,
		"timestamp": time.Now().UTC(),
		"version":   Version,
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	c.JSON(status, body)
}

func (s *Server) handleBuildQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	targets := query.Targets
	if len(req.Targets) > 0 {
		targets = make([]query.Target, 0, len(req.Targets))
		for _, name := range req.Targets {
			t, err := query.ParseTarget(name)
			if err != nil {
				s.abort(c, err)
				return
			}
			targets = append(targets, t)
		}
	}

	fields := query.Fields{
		Organism:   req.Organism,
		Condition:  req.Condition,
		Experiment: req.Experiment,
		ExtraTerms: req.ExtraTerms,
	}
	queries, err := s.builder.BuildAll(fields, targets...)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, queryResponse{Expansion: s.builder.Expand(fields), Queries: queries})
}

func (s *Server) handleValidateQuery(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": *req.Query, "valid": query.Validate(*req.Query)})
}

func (s *Server) handleAssess(c *gin.Context) {
	var req assessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if len(req.Records) == 0 {
		s.abort(c, domain.NewValidationError("records", "at least one record is required", nil))
		return
	}

	assessed := s.assessor.AssessCollection(req.Records)
	c.JSON(http.StatusOK, assessResponse{Records: assessed, Report: s.assessor.Report(assessed)})
}

func (s *Server) handleVocabulary(c *gin.Context) {
	var kind vocabulary.Kind
	switch c.Param("kind") {
	case "conditions":
		kind = vocabulary.KindCondition
	case "experiments":
		kind = vocabulary.KindExperiment
	case "methods":
		kind = vocabulary.KindMethod
	default:
		s.abort(c, domain.ErrNotFound)
		return
	}
	idx, _ := s.vocab.Index(kind)
	c.JSON(http.StatusOK, gin.H{"kind": kind, "categories": idx.Categories()})
}

func (s *Server) handleExpand(c *gin.Context) {
	kind := strings.ToLower(c.Query("kind"))
	term := strings.TrimSpace(c.Query("term"))
	if term == "" {
		s.abort(c, domain.NewValidationError("term", "term is required", term))
		return
	}

	var terms []string
	switch kind {
	case "organism":
		terms = vocabulary.ExpandOrganism(term)
	case string(vocabulary.KindCondition), string(vocabulary.KindExperiment), string(vocabulary.KindMethod):
		idx, _ := s.vocab.Index(vocabulary.Kind(kind))
		terms = idx.Expand(term)
	default:
		s.abort(c, domain.NewValidationError("kind", "must be organism, condition, experiment or method", kind))
		return
	}

	body := gin.H{"kind": kind, "term": term, "terms": terms}
	if kind == "organism" {
		body["domain"] = s.vocab.DetectDomain(term)
	}
	c.JSON(http.StatusOK, body)
}

// handleStartRun runs the pipeline synchronously. Outputs are persisted
// through the run store only; nothing is written to disk.
func (s *Server) handleStartRun(c *gin.Context) {
	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	run := pipeline.RunRequest{
		Organism:      req.Organism,
		Condition:     req.Condition,
		Experiment:    req.Experiment,
		Label:         req.Label,
		Databases:     req.Databases,
		QualityFilter: s.runDefaults.QualityFilter,
		MinQuality:    s.runDefaults.MinQuality,
	}
	if req.QualityFilter != nil {
		run.QualityFilter = *req.QualityFilter
	}
	if req.MinQuality != nil {
		run.MinQuality = *req.MinQuality
	}

	res, err := s.runner.Run(c.Request.Context(), run)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, startRunResponse{
		ID:         res.ID,
		Label:      res.Request.Label,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Summary:    res.Summary,
		Screening:  res.Screening,
		Quality:    res.Quality,
	})
}

func (s *Server) handleListRuns(c *gin.Context) {
	limit, err := intQuery(c, "limit", 50)
	if err != nil {
		s.abort(c, err)
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		s.abort(c, err)
		return
	}

	ctx := c.Request.Context()
	runs, err := s.runs.ListRuns(ctx, store.ListOptions{Limit: limit, Offset: offset, Label: c.Query("label")})
	if err != nil {
		s.abort(c, err)
		return
	}
	if runs == nil {
		runs = []*store.RunRecord{}
	}
	total, err := s.runs.CountRuns(ctx)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, runsResponse{Runs: runs, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) handleGetRun(c *gin.Context) {
	run, err := s.runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(key, "must be a non-negative integer", raw)
	}
	return n, nil
}
