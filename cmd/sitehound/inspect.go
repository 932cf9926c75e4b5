package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mwestcott/sitehound/events"
	"github.com/mwestcott/sitehound/inspect"
	"github.com/mwestcott/sitehound/report"
)

type inspectOptions struct {
	output      string
	maxPages    int
	timeoutSec  int
	headless    bool
	validateSSL bool
	verbose     bool
}

func newInspectCmd() *cobra.Command {
	opts := &inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <url>",
		Short: "Run the headless-browser QA inspection against a site",
		Long: `inspect crawls the site, validates each discovered page, loads the valid
pages in headless Chrome, and writes a QA report with per-page structure,
classification, issues, and hygiene scores.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "qa_report.json", "QA report output file")
	flags.IntVar(&opts.maxPages, "max-pages", 50, "maximum pages to analyze")
	flags.IntVar(&opts.timeoutSec, "timeout", 10, "per-request timeout in seconds")
	flags.BoolVar(&opts.headless, "headless", true, "run the browser headless")
	flags.BoolVar(&opts.validateSSL, "validate-ssl", false, "reject invalid TLS certificates")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	return cmd
}

func runInspect(baseURL string, opts *inspectOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := zerolog.InfoLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	analyzer, err := inspect.NewChromeAnalyzer(inspect.BrowserConfig{
		Headless:    opts.headless,
		ValidateSSL: opts.validateSSL,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer analyzer.Close()

	bus := events.NewBus(0, log)
	orch := inspect.NewOrchestrator(inspect.OrchestratorConfig{
		MaxPages:       opts.maxPages,
		RequestTimeout: time.Duration(opts.timeoutSec) * time.Second,
		Logger:         log,
	}, bus, analyzer)

	scanReport, err := orch.Run(ctx, newCLIScanID(), baseURL)
	if err != nil {
		return err
	}

	f, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()
	if err := report.WriteQAJSON(f, report.NewQAReport(scanReport)); err != nil {
		return err
	}

	log.Info().
		Str("report", opts.output).
		Int("pages", len(scanReport.Pages)).
		Float64("global_score", scanReport.GlobalHygieneScore).
		Msg("inspection complete")
	return nil
}
