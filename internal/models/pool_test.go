package models_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-audit-go/internal/apperr"
	"call-audit-go/internal/config"
	"call-audit-go/internal/inference"
	"call-audit-go/internal/logger"
	"call-audit-go/internal/models"
	"call-audit-go/internal/models/modelstest"
)

var specs = []models.Spec{
	{Name: models.Speech, ID: "whisper-tiny", Device: "cpu", ComputeType: "int8"},
	{Name: models.Sentiment, ID: "sentiment-id", Device: "cpu", ComputeType: "int8"},
	{Name: models.Summarizer, ID: "summarizer-id", Device: "cpu", ComputeType: "int8"},
	{Name: models.Emotion, ID: "emotion-id", Device: "cpu", ComputeType: "int8"},
	{Name: models.ZeroShot, ID: "zero-shot-id", Device: "cpu", ComputeType: "int8"},
}

func loader(fail ...string) *modelstest.Loader {
	l := &modelstest.Loader{
		Speech: &modelstest.Speech{},
		Text: map[string]inference.TextModel{
			"sentiment-id":  &modelstest.Text{Out: modelstest.Labels("5 stars", 0.9)},
			"summarizer-id": &modelstest.Text{Out: inference.Output{Text: "resumen"}},
			"emotion-id":    &modelstest.Text{Out: modelstest.Labels("joy", 0.8)},
			"zero-shot-id":  &modelstest.Text{Out: modelstest.Labels("CONSULTA", 0.6)},
		},
		Fail: map[string]bool{},
	}
	for _, id := range fail {
		l.Fail[id] = true
	}
	return l
}

func TestLoadAllModels(t *testing.T) {
	pool := models.Load(context.Background(), specs, loader(), logger.Nop())

	assert.Empty(t, pool.Missing(models.Speech, models.Sentiment, models.Summarizer, models.Emotion, models.ZeroShot))
	assert.NoError(t, pool.Require(models.AnalysisModels...))

	status := pool.Status()
	require.Len(t, status, 5)
	for _, s := range status {
		assert.True(t, s.Loaded, s.Name)
		assert.Empty(t, s.Error)
		assert.Equal(t, "cpu", s.Device)
		assert.Equal(t, "int8", s.ComputeType)
	}
}

func TestLoadIsolatesFailures(t *testing.T) {
	pool := models.Load(context.Background(), specs, loader("summarizer-id"), logger.Nop())

	assert.True(t, pool.Available(models.Speech))
	assert.True(t, pool.Available(models.Sentiment))
	assert.True(t, pool.Available(models.Emotion))
	assert.True(t, pool.Available(models.ZeroShot))
	assert.False(t, pool.Available(models.Summarizer))

	err := pool.Require(models.AnalysisModels...)
	var unavailable *apperr.ServiceUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, []string{models.Summarizer}, unavailable.Models)

	_, err = pool.Classify(context.Background(), models.Summarizer, "texto", inference.Request{Task: inference.TaskSummarize})
	assert.True(t, errors.As(err, &unavailable))

	out, err := pool.Classify(context.Background(), models.Sentiment, "texto", inference.Request{})
	require.NoError(t, err)
	top, _ := out.Top()
	assert.Equal(t, "5 stars", top.Label)

	for _, s := range pool.Status() {
		if s.Name == models.Summarizer {
			assert.False(t, s.Loaded)
			assert.Contains(t, s.Error, "failed to load")
		}
	}
}

func TestTranscribeWithoutSpeechModel(t *testing.T) {
	pool := models.Load(context.Background(), specs, loader("whisper-tiny"), logger.Nop())

	_, err := pool.Transcribe(context.Background(), "/tmp/chunk.wav")
	var unavailable *apperr.ServiceUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, []string{models.Speech}, unavailable.Models)
	assert.True(t, apperr.Retryable(err))

	assert.True(t, pool.Available(models.Sentiment), "text models are unaffected")
}

func TestSpecsFromConfigCarriesDevice(t *testing.T) {
	cfg := config.Default().Models
	cfg.Device = "cuda"
	cfg.ComputeType = "float16"

	got := models.SpecsFromConfig(cfg)
	require.Len(t, got, 5)
	assert.Equal(t, models.Speech, got[0].Name)
	assert.Equal(t, cfg.Whisper, got[0].ID)
	for _, s := range got {
		assert.Equal(t, "cuda", s.Device, s.Name)
		assert.Equal(t, "float16", s.ComputeType, s.Name)
	}
}

func TestNewMarksMissingModels(t *testing.T) {
	pool := models.New(nil, map[string]inference.TextModel{
		models.Sentiment: &modelstest.Text{},
	})

	assert.Equal(t,
		[]string{models.Speech, models.Summarizer, models.Emotion, models.ZeroShot},
		pool.Missing(models.Speech, models.Sentiment, models.Summarizer, models.Emotion, models.ZeroShot))
}
