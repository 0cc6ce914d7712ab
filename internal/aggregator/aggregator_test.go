package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"call-audit-go/internal/types"
)

func audited(cat string, q types.InteractionQuality, u types.Urgency, sat float64) types.AuditedCall {
	return types.AuditedCall{Analysis: &types.AnalysisResult{
		Category: cat, InteractionQuality: q, Urgency: u, Satisfaction: sat,
	}}
}

func TestAggregate(t *testing.T) {
	calls := []types.AuditedCall{
		audited("RECLAMO", types.QualityNegative, types.UrgencyHigh, 1),
		audited("RECLAMO", types.QualityNegative, types.UrgencyHigh, 2),
		audited("RECLAMO", types.QualityPositive, types.UrgencyLow, 5),
		audited("CONSULTA", types.QualityPositive, types.UrgencyLow, 4),
		{Error: "decode failed"},
	}

	ins := Aggregate(calls)
	assert.Equal(t, 5, ins.Total)
	assert.Equal(t, 1, ins.Failed)
	assert.Equal(t, 3, ins.CategoryCounts["RECLAMO"])
	assert.Equal(t, 2, ins.QualityCounts["NEGATIVE"])
	assert.Equal(t, 2, ins.UrgencyCounts["HIGH"])
	assert.InDelta(t, 0.5, ins.NegativeRate, 1e-9)
	assert.InDelta(t, 0.5, ins.HighUrgencyRate, 1e-9)
	assert.InDelta(t, 3.0, ins.AvgSatisfaction, 1e-9)
	assert.Equal(t, "RECLAMO", ins.WorstCategory)
	assert.InDelta(t, 2.0/3.0, ins.WorstCategoryNegativeRate, 1e-9)
}

func TestAggregateAllFailed(t *testing.T) {
	ins := Aggregate([]types.AuditedCall{{Error: "x"}})
	assert.Equal(t, 1, ins.Failed)
	assert.Zero(t, ins.NegativeRate)
	assert.Empty(t, ins.WorstCategory)
}
