package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chat-insights/internal/adapters/exporter"
	"chat-insights/internal/adapters/source"
	"chat-insights/internal/app"
	"chat-insights/internal/log"
	"chat-insights/internal/pkg/config"
	"chat-insights/internal/pkg/term"
	"chat-insights/internal/ports"
)

type analyzeOptions struct {
	format    string
	output    string
	dateOrder string
	anonymize bool
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <chat.txt>",
		Short: "Analyze a WhatsApp chat export",
		Long: `Parses a WhatsApp .txt export, scores every message with the configured
inference services and prints activity statistics and emotion distributions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "auto", "output format: auto, table, json or xlsx")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "report.xlsx", "workbook path for --format xlsx")
	cmd.Flags().StringVar(&opts.dateOrder, "date-order", "", "override date order for ambiguous dates (dmy or mdy)")
	cmd.Flags().BoolVar(&opts.anonymize, "anonymize", false, "replace participant names with user_N")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions, path string) error {
	cfg, err := config.LoadConfig(root.configPath)
	if err != nil {
		return err
	}
	if root.logLevel != "" {
		cfg.Logging.Level = root.logLevel
	}
	if opts.dateOrder != "" {
		cfg.Analysis.DateOrder = opts.dateOrder
	}
	if opts.anonymize {
		cfg.Analysis.Anonymize = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	exp, err := newExporter(cmd, opts.format, opts.output, cfg.Analysis.Anonymize)
	if err != nil {
		return err
	}

	secrets := make([]string, 0, len(cfg.Inference.Endpoints))
	for _, e := range cfg.Inference.Endpoints {
		secrets = append(secrets, e.Token)
	}
	logger := log.New(cmd.ErrOrStderr(), cfg.Logging.Level, "text", secrets...)

	text, err := source.ReadText(source.NewFileSource(path, cfg.MaxUploadBytes()))
	if err != nil {
		return err
	}

	pipeline, err := app.NewPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	report, err := pipeline.Analyzer.Analyze(cmd.Context(), text)
	if err != nil {
		return err
	}

	if err := exp.Export(report); err != nil {
		return err
	}
	if opts.format == "xlsx" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Workbook saved to %s\n", opts.output)
	}
	return nil
}

// newExporter выбирает экспортер по формату. В режиме auto таблицы
// печатаются в терминал, а при перенаправлении вывода печатается JSON.
func newExporter(cmd *cobra.Command, format, output string, anonymize bool) (ports.Exporter, error) {
	if format == "auto" {
		format = "json"
		if term.NewTerminal().Width(0) > 0 {
			format = "table"
		}
	}

	switch strings.ToLower(format) {
	case "table":
		return exporter.NewConsoleExporter(cmd.OutOrStdout(), anonymize), nil
	case "json":
		return exporter.NewJSONExporter(cmd.OutOrStdout(), anonymize), nil
	case "xlsx":
		if output == "" {
			return nil, fmt.Errorf("--output is required for xlsx format")
		}
		return exporter.NewExcelExporter(output, anonymize), nil
	default:
		return nil, fmt.Errorf("unknown format %q (auto, table, json, xlsx)", format)
	}
}
