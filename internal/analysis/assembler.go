package analysis

import (
	"strings"
	"time"

	"call-audit-go/internal/apperr"
	"call-audit-go/internal/inference"
	"call-audit-go/internal/models"
	"call-audit-go/internal/types"
)

const (
	toneProfessional = "PROFESIONAL"
	toneEmpathetic   = "EMPÁTICO"
	toneNeutral      = "NEUTRAL"
)

const (
	levelVeryUnsatisfied = "MUY INSATISFECHO"
	levelUnsatisfied     = "INSATISFECHO"
	levelNeutral         = "NEUTRAL"
	levelSatisfied       = "SATISFECHO"
	levelVerySatisfied   = "MUY SATISFECHO"
)

type sentimentRow struct {
	stars      float64
	level      string
	urgency    types.Urgency
	resolution types.Resolution
	tone       string
}

// sentimentTable maps the star-rating sentiment label to the audit fields.
var sentimentTable = map[string]sentimentRow{
	"1 star":  {1, levelVeryUnsatisfied, types.UrgencyHigh, types.ResolutionNotResolved, "NEGATIVO"},
	"2 stars": {2, levelUnsatisfied, types.UrgencyMedium, types.ResolutionPartiallyResolved, "LEVEMENTE_NEGATIVO"},
	"3 stars": {3, levelNeutral, types.UrgencyLow, types.ResolutionInProgress, "NEUTRAL"},
	"4 stars": {4, levelSatisfied, types.UrgencyLow, types.ResolutionResolved, "POSITIVO"},
	"5 stars": {5, levelVerySatisfied, types.UrgencyLow, types.ResolutionFullyResolved, "MUY_POSITIVO"},
}

// RawOutputs are the unprocessed results of the four analysis models. The
// zero-shot model contributes two outputs. When Categories or Tones are set,
// the zero-shot top labels must be among them.
type RawOutputs struct {
	Sentiment inference.Output
	Summary   inference.Output
	Emotion   inference.Output
	Category  inference.Output
	Tone      inference.Output

	Categories []string
	Tones      []string
}

// Assemble applies the mapping table. It performs no I/O and never defaults:
// a missing or unknown label fails with *apperr.UnrecognizedLabelError.
func Assemble(raw RawOutputs, now time.Time) (types.AnalysisResult, error) {
	sentiment, ok := raw.Sentiment.Top()
	if !ok {
		return types.AnalysisResult{}, &apperr.UnrecognizedLabelError{Model: models.Sentiment}
	}
	row, ok := sentimentTable[strings.ToLower(strings.TrimSpace(sentiment.Label))]
	if !ok {
		return types.AnalysisResult{}, &apperr.UnrecognizedLabelError{Model: models.Sentiment, Label: sentiment.Label}
	}

	summary := strings.TrimSpace(raw.Summary.Text)
	if summary == "" {
		return types.AnalysisResult{}, &apperr.UnrecognizedLabelError{Model: models.Summarizer}
	}

	emotion, ok := raw.Emotion.Top()
	if !ok || strings.TrimSpace(emotion.Label) == "" {
		return types.AnalysisResult{}, &apperr.UnrecognizedLabelError{Model: models.Emotion}
	}

	category, err := zeroShotLabel(raw.Category, raw.Categories)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	tone, err := zeroShotLabel(raw.Tone, raw.Tones)
	if err != nil {
		return types.AnalysisResult{}, err
	}

	return types.AnalysisResult{
		Summary:           summary,
		Satisfaction:      row.stars,
		SatisfactionLevel: row.level,
		Urgency:           row.urgency,
		ResolutionStatus:  row.resolution,
		Tone:              row.tone,
		Emotion: types.EmotionAnalysis{
			Dominant: emotion.Label,
			Scores: types.EmotionScores{
				Satisfaction:    sentiment.Score,
				Professionalism: toneScore(tone.Label, toneProfessional),
				Empathy:         toneScore(tone.Label, toneEmpathetic),
			},
		},
		InteractionQuality: Quality(row.level),
		Category:           category.Label,
		CategoryScore:      category.Score,
		AgentTone:          tone.Label,
		Timestamp:          now,
	}, nil
}

func zeroShotLabel(out inference.Output, allowed []string) (inference.LabelScore, error) {
	top, ok := out.Top()
	if !ok || top.Label == "" {
		return inference.LabelScore{}, &apperr.UnrecognizedLabelError{Model: models.ZeroShot}
	}
	if len(allowed) == 0 {
		return top, nil
	}
	for _, a := range allowed {
		if a == top.Label {
			return top, nil
		}
	}
	return inference.LabelScore{}, &apperr.UnrecognizedLabelError{Model: models.ZeroShot, Label: top.Label}
}

// Quality derives the interaction quality from the satisfaction level.
func Quality(level string) types.InteractionQuality {
	switch level {
	case levelSatisfied, levelVerySatisfied:
		return types.QualityPositive
	case levelUnsatisfied, levelVeryUnsatisfied:
		return types.QualityNegative
	default:
		return types.QualityNeutral
	}
}

func toneScore(label, want string) float64 {
	switch label {
	case want:
		return 1.0
	case toneNeutral:
		return 0.5
	default:
		return 0.0
	}
}
