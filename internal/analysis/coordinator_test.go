package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-audit-go/internal/apperr"
	"call-audit-go/internal/cache"
	"call-audit-go/internal/inference"
	"call-audit-go/internal/logger"
	"call-audit-go/internal/models"
	"call-audit-go/internal/models/modelstest"
	"call-audit-go/internal/pipeline"
)

type fakes struct {
	sentiment, summarizer, emotion, zeroShot *modelstest.Text
}

func newFakes(stars string) *fakes {
	return &fakes{
		sentiment:  &modelstest.Text{Out: modelstest.Labels(stars, 0.91)},
		summarizer: &modelstest.Text{Out: inference.Output{Text: "Llamada resuelta."}},
		emotion:    &modelstest.Text{Out: modelstest.Labels("gratitude", 0.7)},
		zeroShot: &modelstest.Text{OutFor: map[inference.Task][]inference.Output{
			inference.TaskZeroShot: {
				modelstest.Labels("CONSULTA", 0.8),
				modelstest.Labels("PROFESIONAL", 0.9),
			},
		}},
	}
}

func (f *fakes) pool(skip ...string) *models.Pool {
	text := map[string]inference.TextModel{
		models.Sentiment:  f.sentiment,
		models.Summarizer: f.summarizer,
		models.Emotion:    f.emotion,
		models.ZeroShot:   f.zeroShot,
	}
	for _, s := range skip {
		delete(text, s)
	}
	return models.New(nil, text)
}

func (f *fakes) calls() int {
	return f.sentiment.Calls() + f.summarizer.Calls() + f.emotion.Calls() + f.zeroShot.Calls()
}

func newAnalyzer(pool *models.Pool, backend cache.Cache, timeout time.Duration) *Coordinator {
	return NewCoordinator(pool, pipeline.NewPool(6), cache.NewGuarded(backend, time.Minute, logger.Nop()), Options{
		Concurrency: 4,
		Timeout:     timeout,
		Categories:  []string{"CONSULTA", "RECLAMO", "SOLICITUD", "INFORMACIÓN", "QUEJA"},
		Tones:       []string{"PROFESIONAL", "EMPÁTICO", "NEUTRAL", "DEFENSIVO", "AGRESIVO"},
	}, logger.Nop())
}

const transcript = "buenos días quería consultar el estado de mi pedido muchas gracias"

func TestAnalyzeFiveStarCall(t *testing.T) {
	f := newFakes("5 stars")
	c := newAnalyzer(f.pool(), cache.NewMemoryCache(), 5*time.Second)

	res, err := c.Analyze(context.Background(), transcript)
	require.NoError(t, err)

	assert.Equal(t, "POSITIVE", string(res.InteractionQuality))
	assert.Equal(t, "LOW", string(res.Urgency))
	assert.Equal(t, "COMPLETAMENTE_RESUELTO", string(res.ResolutionStatus))
	assert.Equal(t, "CONSULTA", res.Category)
	assert.Equal(t, "PROFESIONAL", res.AgentTone)
	assert.Equal(t, 1.0, res.Emotion.Scores.Professionalism)
	assert.Equal(t, "Llamada resuelta.", res.Summary)
	assert.Equal(t, 5, f.calls(), "four tasks, zero-shot runs twice")
}

func TestAnalyzeSecondCallHitsCache(t *testing.T) {
	f := newFakes("4 stars")
	c := newAnalyzer(f.pool(), cache.NewMemoryCache(), 5*time.Second)

	first, err := c.Analyze(context.Background(), transcript)
	require.NoError(t, err)
	before := f.calls()

	second, err := c.Analyze(context.Background(), transcript)
	require.NoError(t, err)

	assert.Equal(t, before, f.calls(), "no model invoked on a hit")
	assert.Equal(t, first, second)
}

func TestAnalyzeCacheHitNeedsNoModels(t *testing.T) {
	f := newFakes("3 stars")
	backend := cache.NewMemoryCache()
	warm := newAnalyzer(f.pool(), backend, 5*time.Second)
	_, err := warm.Analyze(context.Background(), transcript)
	require.NoError(t, err)

	cold := newAnalyzer(models.New(nil, nil), backend, 5*time.Second)
	res, err := cold.Analyze(context.Background(), transcript)
	require.NoError(t, err)
	assert.Equal(t, "NEUTRAL", string(res.InteractionQuality))
}

func TestAnalyzeMissingSummarizer(t *testing.T) {
	f := newFakes("5 stars")
	c := newAnalyzer(f.pool(models.Summarizer), cache.NewMemoryCache(), 5*time.Second)

	_, err := c.Analyze(context.Background(), transcript)

	var unavailable *apperr.ServiceUnavailableError
	require.True(t, errors.As(err, &unavailable), "got %v", err)
	assert.Equal(t, []string{models.Summarizer}, unavailable.Models)
	assert.Zero(t, f.calls(), "fails before any model call")
}

func TestAnalyzeOneFailureCachesNothing(t *testing.T) {
	f := newFakes("1 star")
	f.emotion.Err = errors.New("model crashed")
	backend := cache.NewMemoryCache()
	c := newAnalyzer(f.pool(), backend, 5*time.Second)

	_, err := c.Analyze(context.Background(), transcript)

	var aerr *apperr.AnalysisError
	require.True(t, errors.As(err, &aerr), "got %v", err)
	assert.Equal(t, models.Emotion, aerr.Model)
	assert.Equal(t, 0, backend.Len())
}

func TestAnalyzeUnrecognizedLabelCachesNothing(t *testing.T) {
	f := newFakes("0 stars")
	backend := cache.NewMemoryCache()
	c := newAnalyzer(f.pool(), backend, 5*time.Second)

	_, err := c.Analyze(context.Background(), transcript)

	var lerr *apperr.UnrecognizedLabelError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, 0, backend.Len())
}

func TestAnalyzeEmptyText(t *testing.T) {
	f := newFakes("5 stars")
	c := newAnalyzer(f.pool(), cache.NewMemoryCache(), time.Second)

	_, err := c.Analyze(context.Background(), "   ")
	assert.ErrorIs(t, err, apperr.ErrEmptyText)
	assert.Zero(t, f.calls())
}

type blockingModel struct{ release chan struct{} }

func (b blockingModel) Run(ctx context.Context, text string, req inference.Request) (inference.Output, error) {
	<-b.release
	return inference.Output{}, nil
}

func TestAnalyzeTimeout(t *testing.T) {
	f := newFakes("5 stars")
	release := make(chan struct{})
	defer close(release)
	pool := models.New(nil, map[string]inference.TextModel{
		models.Sentiment:  f.sentiment,
		models.Summarizer: blockingModel{release: release},
		models.Emotion:    f.emotion,
		models.ZeroShot:   f.zeroShot,
	})
	backend := cache.NewMemoryCache()
	c := newAnalyzer(pool, backend, 50*time.Millisecond)

	_, err := c.Analyze(context.Background(), transcript)

	var timeout *apperr.TimeoutError
	require.True(t, errors.As(err, &timeout), "got %v", err)
	assert.Equal(t, "analysis", timeout.Stage)
	assert.Equal(t, 0, backend.Len())
}
