// Package analysis runs the four text models over a transcript and assembles
// the composite call audit.
package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"call-audit-go/internal/apperr"
	"call-audit-go/internal/cache"
	"call-audit-go/internal/inference"
	"call-audit-go/internal/logger"
	"call-audit-go/internal/metrics"
	"call-audit-go/internal/models"
	"call-audit-go/internal/pipeline"
	"call-audit-go/internal/types"
)

const stageName = "analysis"

var tracer = otel.Tracer("call-audit-go/internal/analysis")

type Options struct {
	Concurrency int
	Timeout     time.Duration
	Categories  []string
	Tones       []string
	SummaryMax  int
	SummaryMin  int
}

type Coordinator struct {
	models  *models.Pool
	workers *pipeline.Pool
	cache   *cache.Guarded
	opts    Options
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewCoordinator(pool *models.Pool, workers *pipeline.Pool, c *cache.Guarded, opts Options, log *logger.Logger) *Coordinator {
	if opts.SummaryMax <= 0 {
		opts.SummaryMax = 130
	}
	if opts.SummaryMin <= 0 {
		opts.SummaryMin = 30
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = len(models.AnalysisModels)
	}
	if workers == nil {
		workers = pipeline.NewPool(opts.Concurrency)
	}
	if c == nil {
		c = cache.NewGuarded(cache.NewMemoryCache(), cache.DefaultTTL, log)
	}
	return &Coordinator{
		models:  pool,
		workers: workers,
		cache:   c,
		opts:    opts,
		log:     log.WithComponent("analysis"),
		metrics: metrics.Default,
		now:     time.Now,
	}
}

// Analyze returns the cached result for text when present. Otherwise it
// requires all four models, runs them concurrently and caches the assembled
// result. Any failed call fails the whole analysis and nothing is cached.
func (c *Coordinator) Analyze(ctx context.Context, text string) (types.AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		return types.AnalysisResult{}, apperr.ErrEmptyText
	}

	if res, ok := c.cache.Lookup(ctx, text); ok {
		c.log.Debug("analysis cache hit")
		return res, nil
	}

	if err := c.models.Require(models.AnalysisModels...); err != nil {
		return types.AnalysisResult{}, err
	}

	ctx, span := tracer.Start(ctx, "analysis.stage")
	span.SetAttributes(attribute.Int("text_length", len(text)))
	defer span.End()

	raw := RawOutputs{Categories: c.opts.Categories, Tones: c.opts.Tones}
	stage := pipeline.NewStage(ctx, stageName, c.opts.Concurrency, c.opts.Timeout, c.workers)

	stage.Go(func(ctx context.Context) error {
		out, err := c.models.Classify(ctx, models.Sentiment, text, inference.Request{Task: inference.TaskClassify})
		if err != nil {
			return &apperr.AnalysisError{Model: models.Sentiment, Err: err}
		}
		raw.Sentiment = out
		return nil
	})
	stage.Go(func(ctx context.Context) error {
		out, err := c.models.Classify(ctx, models.Summarizer, text, inference.Request{
			Task:      inference.TaskSummarize,
			MaxLength: c.opts.SummaryMax,
			MinLength: c.opts.SummaryMin,
		})
		if err != nil {
			return &apperr.AnalysisError{Model: models.Summarizer, Err: err}
		}
		raw.Summary = out
		return nil
	})
	stage.Go(func(ctx context.Context) error {
		out, err := c.models.Classify(ctx, models.Emotion, text, inference.Request{Task: inference.TaskClassify})
		if err != nil {
			return &apperr.AnalysisError{Model: models.Emotion, Err: err}
		}
		raw.Emotion = out
		return nil
	})
	stage.Go(func(ctx context.Context) error {
		category, err := c.models.Classify(ctx, models.ZeroShot, text, inference.Request{
			Task:            inference.TaskZeroShot,
			CandidateLabels: c.opts.Categories,
		})
		if err != nil {
			return &apperr.AnalysisError{Model: models.ZeroShot, Err: err}
		}
		tone, err := c.models.Classify(ctx, models.ZeroShot, text, inference.Request{
			Task:            inference.TaskZeroShot,
			CandidateLabels: c.opts.Tones,
		})
		if err != nil {
			return &apperr.AnalysisError{Model: models.ZeroShot, Err: err}
		}
		raw.Category, raw.Tone = category, tone
		return nil
	})

	if err := stage.Wait(); err != nil {
		var timeout *apperr.TimeoutError
		if errors.As(err, &timeout) {
			c.metrics.RecordStageTimeout(stageName)
		}
		span.RecordError(err)
		c.log.WithError(err).Error("analysis failed")
		return types.AnalysisResult{}, err
	}

	res, err := Assemble(raw, c.now().UTC())
	if err != nil {
		span.RecordError(err)
		c.log.WithError(err).Error("analysis produced an unusable label")
		return types.AnalysisResult{}, err
	}

	c.cache.Store(ctx, text, res)
	c.log.WithField("category", res.Category).
		WithField("satisfaction", res.SatisfactionLevel).
		Info("analysis completed")
	return res, nil
}
