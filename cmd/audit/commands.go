package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"call-audit-go/internal/actionable"
	"call-audit-go/internal/aggregator"
	"call-audit-go/internal/dataset"
	"call-audit-go/internal/processor"
	"call-audit-go/internal/types"
)

func newTranscribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Transcribe a recording without analyzing or storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			tr, err := a.Processor.Transcribe(cmd.Context(), data, filepath.Base(args[0]))
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), tr, func(w io.Writer) {
				fmt.Fprintln(w, tr.Text)
			})
		},
	}
}

func newAnalyzeCommand() *cobra.Command {
	var filename string
	cmd := &cobra.Command{
		Use:   "analyze <text|->",
		Short: "Analyze a transcript; pass - to read it from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := args[0]
			if text == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(b)
			}
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Processor.AnalyzeText(cmd.Context(), text, filename, "")
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), res, func(w io.Writer) { printAudit(w, res) })
		},
	}
	cmd.Flags().StringVar(&filename, "filename", "texto", "name stored with the result")
	return cmd
}

func newAuditCommand() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "audit <file>",
		Short: "Transcribe, analyze and store one recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Processor.ProcessCall(cmd.Context(), data, filepath.Base(args[0]), owner)
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), res, func(w io.Writer) { printAudit(w, res) })
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner id stored with the recording")
	return cmd
}

type batchSummary struct {
	Calls   int                   `json:"calls" yaml:"calls"`
	Report  string                `json:"report,omitempty" yaml:"report,omitempty"`
	Insight aggregator.Insight    `json:"insight" yaml:"insight"`
	Action  actionable.ActionCard `json:"action" yaml:"action"`
}

func newBatchCommand() *cobra.Command {
	var (
		manifest string
		report   string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Audit every recording listed in an XLSX manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := dataset.Load(manifest)
			if err != nil {
				return fmt.Errorf("load manifest: %w", err)
			}
			if limit > 0 && len(recs) > limit {
				recs = recs[:limit]
			}

			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			client := &http.Client{Timeout: 2 * time.Minute}
			fetch := func(ctx context.Context, loc string) ([]byte, error) {
				return dataset.Fetch(ctx, client, loc, a.Cfg.Server.MaxFileSize)
			}
			calls := a.Processor.ProcessBatch(cmd.Context(), recs, processor.FetchFunc(fetch))

			ins := aggregator.Aggregate(calls)
			card := actionable.Generate(ins)
			if report != "" {
				if err := dataset.WriteReport(report, calls, ins, card); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}

			out := batchSummary{Calls: len(calls), Report: report, Insight: ins, Action: card}
			return printOutput(cmd.OutOrStdout(), out, func(w io.Writer) { printBatch(w, calls, out) })
		},
	}
	cmd.Flags().StringVar(&manifest, "manifest", "", "XLSX manifest with one recording per row")
	cmd.Flags().StringVar(&report, "report", "", "write an XLSX report to this path")
	cmd.Flags().IntVar(&limit, "limit", 0, "audit at most this many rows")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Load every model and print its availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			status := a.Models.Status()
			return printOutput(cmd.OutOrStdout(), status, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "MODEL\tID\tDEVICE\tCOMPUTE\tLOADED\tLOAD TIME\tERROR")
				for _, s := range status {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
						s.Name, s.ID, s.Device, s.ComputeType, s.Loaded, s.LoadTime.Round(time.Millisecond), s.Error)
				}
				_ = tw.Flush()
			})
		},
	}
}

func printAudit(w io.Writer, res processor.AuditResult) {
	fmt.Fprintf(w, "Record:       %s\n", res.RecordID)
	fmt.Fprintf(w, "File:         %s\n", res.Filename)
	if a := res.Analysis; a != nil {
		fmt.Fprintf(w, "Category:     %s (%.2f)\n", a.Category, a.CategoryScore)
		fmt.Fprintf(w, "Satisfaction: %.0f (%s)\n", a.Satisfaction, a.SatisfactionLevel)
		fmt.Fprintf(w, "Urgency:      %s\n", a.Urgency)
		fmt.Fprintf(w, "Resolution:   %s\n", a.ResolutionStatus)
		fmt.Fprintf(w, "Quality:      %s\n", a.InteractionQuality)
		fmt.Fprintf(w, "Emotion:      %s\n", a.Emotion.Dominant)
		fmt.Fprintf(w, "Agent tone:   %s\n", a.AgentTone)
		fmt.Fprintf(w, "Summary:      %s\n", a.Summary)
	}
	fmt.Fprintf(w, "Took:         %dms\n", res.DurationMs)
}

func printBatch(w io.Writer, calls []types.AuditedCall, sum batchSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CALL\tCATEGORY\tQUALITY\tURGENCY\tERROR")
	for _, c := range calls {
		cat, q, u := "-", "-", "-"
		if c.Analysis != nil {
			cat, q, u = c.Analysis.Category, string(c.Analysis.InteractionQuality), string(c.Analysis.Urgency)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.CallID, cat, q, u, strings.TrimSpace(c.Error))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%s\n  action: %s\n  impact: %s\n", sum.Action.Insight, sum.Action.Action, sum.Action.Impact)
	if sum.Report != "" {
		fmt.Fprintf(w, "report written to %s\n", sum.Report)
	}
}
