// Package recommend orchestrates the recommendation pipeline. It accepts
// questionnaire answers, generates an insight, embeds the derived query,
// searches the vector index, resolves the matched perfumes from the
// relational store, and records the interaction. Stages run strictly
// sequentially; the first failing stage short-circuits the run.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/scentmatch/scentmatch/engine/domain"
	"github.com/scentmatch/scentmatch/pkg/metrics"
)

// Stage names a pipeline stage for error reporting and metrics.
type Stage string

const (
	StageInsight   Stage = "insight"
	StageVectorize Stage = "vectorize"
	StageSearch    Stage = "search"
	StageResolve   Stage = "resolve"
	StageRecord    Stage = "record"
)

// StageError reports which stage failed and the HTTP status the handler
// should answer with. Message is client-safe; the wrapped error carries the
// raw cause for logs only.
type StageError struct {
	Stage   Stage
	Status  int
	Message string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Message, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageFailed(stage Stage, status int, msg string, err error) *StageError {
	return &StageError{Stage: stage, Status: status, Message: msg, Err: err}
}

// InsightGenerator produces an Insight from questionnaire answers.
type InsightGenerator interface {
	Generate(ctx context.Context, answers domain.QuestionnaireAnswers) (domain.Insight, error)
}

// Embedder converts a search query into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher returns the topK nearest match IDs for a vector, best first.
type Searcher interface {
	Search(ctx context.Context, vector []float32, topK int) ([]string, error)
}

// Service runs the pipeline.
type Service struct {
	insight  InsightGenerator
	embed    Embedder
	search   Searcher
	resolver *Resolver
	recorder *Recorder
	reg      *metrics.Registry
	logger   *slog.Logger
}

// New creates a Service. reg may be nil to disable metrics.
func New(gen InsightGenerator, embed Embedder, search Searcher, resolver *Resolver, recorder *Recorder, reg *metrics.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		insight:  gen,
		embed:    embed,
		search:   search,
		resolver: resolver,
		recorder: recorder,
		reg:      reg,
		logger:   logger,
	}
}

// Recommendation is the successful pipeline output.
type Recommendation struct {
	Insight         domain.Insight         `json:"insight"`
	Recommendations []domain.PerfumeRecord `json:"recommendations"`
}

// Recommend runs all five stages for one request. On failure it returns a
// *StageError; there are no retries, and a stage is never reached after a
// prior one fails. A persistence failure after identity validation passes is
// logged and does not fail the request.
func (s *Service) Recommend(ctx context.Context, answers domain.QuestionnaireAnswers) (*Recommendation, error) {
	s.logger.Info("recommend start", "name", answers.Name, "email", answers.Email)

	in, err := timed(s, StageInsight, func() (domain.Insight, error) {
		return s.insight.Generate(ctx, answers)
	})
	if err != nil {
		return nil, stageFailed(StageInsight, http.StatusInternalServerError, "insight generation failed", err)
	}

	vec, err := timed(s, StageVectorize, func() ([]float32, error) {
		return s.embed.Embed(ctx, in.Query)
	})
	if err == nil && len(vec) == 0 {
		err = domain.ErrEmptyEmbedding
	}
	if err != nil {
		return nil, stageFailed(StageVectorize, http.StatusInternalServerError, "vectorization failed", err)
	}

	ids, err := timed(s, StageSearch, func() ([]string, error) {
		return s.search.Search(ctx, vec, domain.TopK)
	})
	if err != nil {
		return nil, stageFailed(StageSearch, http.StatusInternalServerError, "similarity search failed", err)
	}
	if len(ids) == 0 {
		return nil, stageFailed(StageSearch, http.StatusNotFound, "no matching perfumes found", domain.ErrNoMatches)
	}
	s.logger.Info("matches found", "ids", ids)

	records, err := timed(s, StageResolve, func() ([]domain.PerfumeRecord, error) {
		return s.resolver.Resolve(ctx, ids)
	})
	if err != nil {
		return nil, stageFailed(StageResolve, http.StatusInternalServerError, "perfume lookup failed", err)
	}

	if _, err := timed(s, StageRecord, func() (struct{}, error) {
		return struct{}{}, s.recorder.Record(ctx, answers, in, ids)
	}); err != nil {
		if domain.IsValidation(err) {
			return nil, stageFailed(StageRecord, http.StatusBadRequest, "name and email are required", err)
		}
		// Best-effort: the user still gets their recommendation.
		s.logger.Error("record user response failed", "err", err)
	}

	return &Recommendation{Insight: in, Recommendations: records}, nil
}

// timed runs fn and records a per-stage counter and latency histogram.
func timed[T any](s *Service, stage Stage, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	if s.reg != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		s.reg.Counter(metrics.WithLabels("pipeline_stage_total", "stage", string(stage), "outcome", outcome),
			"Pipeline stage executions by outcome.").Inc()
		s.reg.Histogram(metrics.WithLabels("pipeline_stage_seconds", "stage", string(stage)),
			"Pipeline stage latency.", nil).Since(start)
	}
	return v, err
}
