// Package aggregator summarizes a batch of audited calls.
package aggregator

import "call-audit-go/internal/types"

type Insight struct {
	Total                     int            `json:"total"`
	Failed                    int            `json:"failed"`
	CategoryCounts            map[string]int `json:"category_counts"`
	QualityCounts             map[string]int `json:"interaction_quality_counts"`
	UrgencyCounts             map[string]int `json:"urgency_counts"`
	NegativeRate              float64        `json:"negative_rate"`
	HighUrgencyRate           float64        `json:"high_urgency_rate"`
	AvgSatisfaction           float64        `json:"avg_satisfaction"`
	WorstCategory             string         `json:"worst_category,omitempty"`
	WorstCategoryNegativeRate float64        `json:"worst_category_negative_rate"`
}

// Aggregate counts only calls with an analysis; failures are tallied apart.
func Aggregate(calls []types.AuditedCall) Insight {
	ins := Insight{
		Total:          len(calls),
		CategoryCounts: map[string]int{},
		QualityCounts:  map[string]int{},
		UrgencyCounts:  map[string]int{},
	}
	negByCat := map[string]int{}

	analyzed, negative, high := 0, 0, 0
	satSum := 0.0
	for _, c := range calls {
		if c.Analysis == nil {
			ins.Failed++
			continue
		}
		a := c.Analysis
		analyzed++
		satSum += a.Satisfaction
		ins.CategoryCounts[a.Category]++
		ins.QualityCounts[string(a.InteractionQuality)]++
		ins.UrgencyCounts[string(a.Urgency)]++
		if a.InteractionQuality == types.QualityNegative {
			negative++
			negByCat[a.Category]++
		}
		if a.Urgency == types.UrgencyHigh {
			high++
		}
	}
	if analyzed == 0 {
		return ins
	}

	ins.NegativeRate = float64(negative) / float64(analyzed)
	ins.HighUrgencyRate = float64(high) / float64(analyzed)
	ins.AvgSatisfaction = satSum / float64(analyzed)
	for cat, n := range negByCat {
		rate := float64(n) / float64(ins.CategoryCounts[cat])
		if rate > ins.WorstCategoryNegativeRate || (rate == ins.WorstCategoryNegativeRate && cat < ins.WorstCategory) {
			ins.WorstCategory = cat
			ins.WorstCategoryNegativeRate = rate
		}
	}
	return ins
}
