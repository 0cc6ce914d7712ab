package analysis

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-audit-go/internal/apperr"
	"call-audit-go/internal/inference"
	"call-audit-go/internal/models/modelstest"
	"call-audit-go/internal/types"
)

var now = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func raw(sentiment, tone string) RawOutputs {
	return RawOutputs{
		Sentiment:  modelstest.Labels(sentiment, 0.83),
		Summary:    inference.Output{Text: "El cliente reporta un cobro duplicado."},
		Emotion:    modelstest.Labels("annoyance", 0.4, "neutral", 0.3),
		Category:   modelstest.Labels("RECLAMO", 0.7, "CONSULTA", 0.2),
		Tone:       modelstest.Labels(tone, 0.6),
		Categories: []string{"CONSULTA", "RECLAMO", "SOLICITUD", "INFORMACIÓN", "QUEJA"},
		Tones:      []string{"PROFESIONAL", "EMPÁTICO", "NEUTRAL", "DEFENSIVO", "AGRESIVO"},
	}
}

func TestAssembleMappingTable(t *testing.T) {
	tests := []struct {
		label      string
		stars      float64
		level      string
		urgency    types.Urgency
		resolution types.Resolution
		tone       string
		quality    types.InteractionQuality
	}{
		{"1 star", 1, "MUY INSATISFECHO", types.UrgencyHigh, types.ResolutionNotResolved, "NEGATIVO", types.QualityNegative},
		{"2 stars", 2, "INSATISFECHO", types.UrgencyMedium, types.ResolutionPartiallyResolved, "LEVEMENTE_NEGATIVO", types.QualityNegative},
		{"3 stars", 3, "NEUTRAL", types.UrgencyLow, types.ResolutionInProgress, "NEUTRAL", types.QualityNeutral},
		{"4 stars", 4, "SATISFECHO", types.UrgencyLow, types.ResolutionResolved, "POSITIVO", types.QualityPositive},
		{"5 stars", 5, "MUY SATISFECHO", types.UrgencyLow, types.ResolutionFullyResolved, "MUY_POSITIVO", types.QualityPositive},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			res, err := Assemble(raw(tt.label, "PROFESIONAL"), now)
			require.NoError(t, err)

			assert.Equal(t, tt.stars, res.Satisfaction)
			assert.Equal(t, tt.level, res.SatisfactionLevel)
			assert.Equal(t, tt.urgency, res.Urgency)
			assert.Equal(t, tt.resolution, res.ResolutionStatus)
			assert.Equal(t, tt.tone, res.Tone)
			assert.Equal(t, tt.quality, res.InteractionQuality)
		})
	}
}

func TestAssembleFields(t *testing.T) {
	res, err := Assemble(raw("2 stars", "EMPÁTICO"), now)
	require.NoError(t, err)

	assert.Equal(t, "El cliente reporta un cobro duplicado.", res.Summary)
	assert.Equal(t, "annoyance", res.Emotion.Dominant)
	assert.InDelta(t, 0.83, res.Emotion.Scores.Satisfaction, 1e-9)
	assert.Equal(t, 0.0, res.Emotion.Scores.Professionalism)
	assert.Equal(t, 1.0, res.Emotion.Scores.Empathy)
	assert.Equal(t, "RECLAMO", res.Category)
	assert.InDelta(t, 0.7, res.CategoryScore, 1e-9)
	assert.Equal(t, "EMPÁTICO", res.AgentTone)
	assert.Equal(t, now, res.Timestamp)
}

func TestAssembleToneScores(t *testing.T) {
	tests := []struct {
		tone            string
		professionalism float64
		empathy         float64
	}{
		{"PROFESIONAL", 1, 0},
		{"EMPÁTICO", 0, 1},
		{"NEUTRAL", 0.5, 0.5},
		{"DEFENSIVO", 0, 0},
		{"AGRESIVO", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.tone, func(t *testing.T) {
			res, err := Assemble(raw("3 stars", tt.tone), now)
			require.NoError(t, err)
			assert.Equal(t, tt.professionalism, res.Emotion.Scores.Professionalism)
			assert.Equal(t, tt.empathy, res.Emotion.Scores.Empathy)
		})
	}
}

func TestAssembleRejectsUnknownLabels(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *RawOutputs)
		model  string
		label  string
	}{
		{
			name:   "unknown sentiment",
			mutate: func(r *RawOutputs) { r.Sentiment = modelstest.Labels("6 stars", 0.9) },
			model:  "sentiment",
			label:  "6 stars",
		},
		{
			name:   "empty sentiment",
			mutate: func(r *RawOutputs) { r.Sentiment = inference.Output{} },
			model:  "sentiment",
		},
		{
			name:   "empty summary",
			mutate: func(r *RawOutputs) { r.Summary = inference.Output{Text: "  "} },
			model:  "summarizer",
		},
		{
			name:   "no emotion",
			mutate: func(r *RawOutputs) { r.Emotion = inference.Output{} },
			model:  "emotion",
		},
		{
			name:   "category outside candidates",
			mutate: func(r *RawOutputs) { r.Category = modelstest.Labels("VENTA", 0.9) },
			model:  "zero_shot",
			label:  "VENTA",
		},
		{
			name:   "tone outside candidates",
			mutate: func(r *RawOutputs) { r.Tone = modelstest.Labels("SARCÁSTICO", 0.9) },
			model:  "zero_shot",
			label:  "SARCÁSTICO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := raw("4 stars", "PROFESIONAL")
			tt.mutate(&r)

			_, err := Assemble(r, now)
			var lerr *apperr.UnrecognizedLabelError
			require.True(t, errors.As(err, &lerr), "got %v", err)
			assert.Equal(t, tt.model, lerr.Model)
			assert.Equal(t, tt.label, lerr.Label)
			assert.False(t, apperr.Retryable(err))
		})
	}
}

func TestAssembleSentimentLabelCase(t *testing.T) {
	res, err := Assemble(raw(" 5 Stars", "PROFESIONAL"), now)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Satisfaction)
}
