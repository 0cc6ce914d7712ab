// Command audit runs the call audit pipeline from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"call-audit-go/internal/app"
	"call-audit-go/internal/config"
	"call-audit-go/internal/logger"
)

var outputFormat string

var rootCmd = &cobra.Command{
	Use:   "audit",
	Short: "Transcribe and audit customer service call recordings",
	Long: `audit transcribes call recordings, analyzes sentiment, emotion, category and
agent tone, and stores the result.

COMMON WORKFLOWS:
  Single call:   audit audit ./llamada.mp3
  Text only:     audit analyze "el cliente pidió un reembolso"
  Batch:         audit batch --manifest calls.xlsx --report report.xlsx
  Check models:  audit models`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json or yaml")
	rootCmd.AddCommand(
		newTranscribeCommand(),
		newAnalyzeCommand(),
		newAuditCommand(),
		newBatchCommand(),
		newModelsCommand(),
	)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadApp builds the application from the environment. Callers must Close it.
func loadApp(ctx context.Context) (*app.Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(ctx, cfg, logger.New())
}

// printOutput writes v in the selected format; text falls back to the given
// renderer.
func printOutput(w io.Writer, v any, text func(io.Writer)) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		return yaml.NewEncoder(w).Encode(v)
	case "text", "":
		text(w)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}
