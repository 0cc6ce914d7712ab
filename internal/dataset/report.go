package dataset

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"call-audit-go/internal/actionable"
	"call-audit-go/internal/aggregator"
	"call-audit-go/internal/types"
)

const (
	auditSheet   = "Audits"
	summarySheet = "Summary"
)

var auditHeader = []any{
	"call_id", "audio_path", "agent", "record_id", "category", "satisfaction",
	"urgency", "resolution_status", "interaction_quality", "agent_tone",
	"summary", "duration_ms", "error",
}

// WriteReport writes one row per audited call plus a summary sheet with the
// batch insight and its action card.
func WriteReport(path string, calls []types.AuditedCall, ins aggregator.Insight, card actionable.ActionCard) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", auditSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(auditSheet, "A1", &auditHeader); err != nil {
		return err
	}
	for i, c := range calls {
		row := []any{c.CallID, c.AudioPath, c.Agent, c.RecordID}
		if a := c.Analysis; a != nil {
			row = append(row, a.Category, a.Satisfaction, string(a.Urgency), string(a.ResolutionStatus),
				string(a.InteractionQuality), a.AgentTone, a.Summary)
		} else {
			row = append(row, "", "", "", "", "", "", "")
		}
		row = append(row, c.DurationMs, c.Error)
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(auditSheet, cellRef, &row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	summary := [][]any{
		{"total", ins.Total},
		{"failed", ins.Failed},
		{"negative_rate", ins.NegativeRate},
		{"high_urgency_rate", ins.HighUrgencyRate},
		{"avg_satisfaction", ins.AvgSatisfaction},
		{"worst_category", ins.WorstCategory},
		{"insight", card.Insight},
		{"action", card.Action},
		{"impact", card.Impact},
	}
	for i, row := range summary {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}
