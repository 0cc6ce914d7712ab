// Package actionable turns batch insights into a single recommendation card.
package actionable

import (
	"fmt"

	"call-audit-go/internal/aggregator"
)

// Thresholds above which a batch needs intervention.
const (
	NegativeThreshold    = 0.35
	HighUrgencyThreshold = 0.25
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

func Generate(ins aggregator.Insight) ActionCard {
	if ins.WorstCategory != "" && ins.WorstCategoryNegativeRate >= NegativeThreshold {
		return ActionCard{
			Insight: fmt.Sprintf("Negative interactions concentrated in %s (%.0f%%)", ins.WorstCategory, ins.WorstCategoryNegativeRate*100),
			Action:  "Escalate sampled calls to QA review; refresh agent script for this category",
			Impact:  "Lower repeat contacts and complaint volume",
		}
	}
	if ins.HighUrgencyRate >= HighUrgencyThreshold {
		return ActionCard{
			Insight: fmt.Sprintf("High-urgency calls at %.0f%% of batch", ins.HighUrgencyRate*100),
			Action:  "Route low-satisfaction calls to a supervisor callback queue",
			Impact:  "Faster recovery of dissatisfied customers",
		}
	}
	return ActionCard{
		Insight: "No strong negative pattern detected",
		Action:  "Monitor and collect more data",
		Impact:  "Low immediate intervention",
	}
}
