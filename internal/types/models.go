package types

import "time"

type Urgency string

const (
	UrgencyLow    Urgency = "LOW"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyHigh   Urgency = "HIGH"
)

type Resolution string

const (
	ResolutionNotResolved       Resolution = "NO_RESUELTO"
	ResolutionPartiallyResolved Resolution = "PARCIALMENTE_RESUELTO"
	ResolutionInProgress        Resolution = "EN_PROCESO"
	ResolutionResolved          Resolution = "RESUELTO"
	ResolutionFullyResolved     Resolution = "COMPLETAMENTE_RESUELTO"
)

type InteractionQuality string

const (
	QualityPositive InteractionQuality = "POSITIVE"
	QualityNegative InteractionQuality = "NEGATIVE"
	QualityNeutral  InteractionQuality = "NEUTRAL"
)

// Transcript is the per-chunk text joined in chunk index order.
type Transcript struct {
	Text     string        `json:"text"`
	Chunks   int           `json:"chunks"`
	Duration time.Duration `json:"duration_ns"`
}

type EmotionScores struct {
	Satisfaction    float64 `json:"satisfaction"`
	Professionalism float64 `json:"professionalism"`
	Empathy         float64 `json:"empathy"`
}

type EmotionAnalysis struct {
	Dominant string        `json:"dominant"`
	Scores   EmotionScores `json:"scores"`
}

// AnalysisResult is the composite call audit. It is immutable once assembled.
type AnalysisResult struct {
	Summary            string             `json:"summary"`
	Satisfaction       float64            `json:"satisfaction"` // 1–5 stars
	SatisfactionLevel  string             `json:"satisfaction_level"`
	Urgency            Urgency            `json:"urgency"`
	ResolutionStatus   Resolution         `json:"resolution_status"`
	Tone               string             `json:"tone"`
	Emotion            EmotionAnalysis    `json:"emotion"`
	InteractionQuality InteractionQuality `json:"interaction_quality"`
	Category           string             `json:"category"`
	CategoryScore      float64            `json:"category_score"`
	AgentTone          string             `json:"agent_tone"`
	Timestamp          time.Time          `json:"timestamp"`
}

// CallRecord is one row of a batch manifest.
type CallRecord struct {
	CallID    string `json:"call_id"`
	AudioPath string `json:"audio_path"`
	OwnerID   string `json:"owner_id,omitempty"`
	Agent     string `json:"agent,omitempty"`
}

// AuditedCall pairs a manifest row with its outcome.
type AuditedCall struct {
	CallRecord
	RecordID   string          `json:"record_id,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	Analysis   *AnalysisResult `json:"analysis,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	Error      string          `json:"error,omitempty"`
}
