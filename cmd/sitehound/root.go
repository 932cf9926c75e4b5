package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mwestcott/sitehound/discover"
	"github.com/mwestcott/sitehound/report"
	"github.com/mwestcott/sitehound/tui"
)

type rootOptions struct {
	domain     string
	depth      int
	threads    int
	timeoutSec int
	techniques string
	wordlist   string
	output     string
	jsonOut    bool
	txtOut     bool
	onlyAlive  bool
	robots     bool
	silent     bool
	quiet      bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sitehound",
		Short: "Discover and inspect the URL surface of a website",
		Long: `sitehound enumerates a domain's URLs through live crawling, JavaScript
endpoint mining, historical archives, path brute forcing, and
robots.txt/sitemap harvesting, then probes every candidate for liveness.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnumerate(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.domain, "domain", "d", "", "target domain or URL (required)")
	flags.IntVar(&opts.depth, "depth", 3, "live crawl depth")
	flags.IntVar(&opts.threads, "threads", 50, "concurrent workers")
	flags.IntVar(&opts.timeoutSec, "timeout", 5, "per-request timeout in seconds")
	flags.StringVar(&opts.techniques, "techniques", "", "comma-separated techniques (live,js,wayback,bruteforce,robots,sitemap); default all")
	flags.StringVar(&opts.wordlist, "wordlist", "", "wordlist file for brute forcing (default built-in)")
	flags.StringVarP(&opts.output, "output", "o", "", "write results to file")
	flags.BoolVar(&opts.jsonOut, "json", false, "output JSON")
	flags.BoolVar(&opts.txtOut, "txt", false, "output plain text")
	flags.BoolVar(&opts.onlyAlive, "only-alive", false, "report only URLs that probed alive")
	flags.BoolVar(&opts.robots, "respect-robots", false, "honor robots.txt during the live crawl")
	flags.BoolVar(&opts.silent, "silent", false, "no TUI, print results to stdout")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "no TUI, no log output")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newInspectCmd(), newServeCmd())
	return cmd
}

func runEnumerate(cmd *cobra.Command, opts *rootOptions) error {
	if strings.TrimSpace(opts.domain) == "" {
		return fmt.Errorf("--domain is required")
	}

	techniques := discover.AllTechniques()
	if opts.techniques != "" {
		techniques = discover.ParseTechniques(opts.techniques)
		if len(techniques) == 0 {
			return fmt.Errorf("no valid techniques in %q", opts.techniques)
		}
	}

	var wordlist []string
	if opts.wordlist != "" {
		words, err := loadWordlist(opts.wordlist)
		if err != nil {
			return err
		}
		wordlist = words
	}

	// Structured output on stdout and the TUI are mutually exclusive.
	wantStdout := (opts.jsonOut || opts.txtOut) && opts.output == ""
	interactive := !opts.silent && !opts.quiet && !wantStdout
	cfg := discover.Config{
		Domain:        opts.domain,
		Depth:         opts.depth,
		Timeout:       time.Duration(opts.timeoutSec) * time.Second,
		Threads:       opts.threads,
		OnlyAlive:     opts.onlyAlive,
		RespectRobots: opts.robots,
		Techniques:    techniques,
		Wordlist:      wordlist,
		Logger:        newLogger(opts, interactive),
	}

	var result *report.EnumResult
	if interactive {
		res, err := runWithTUI(cfg)
		if err != nil {
			return err
		}
		result = res
	} else {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		enum, err := discover.NewEnumerator(cfg)
		if err != nil {
			return err
		}
		result = enum.Run(ctx)
		if ctx.Err() != nil {
			return fmt.Errorf("interrupted")
		}
	}

	return writeResult(cmd, opts, result, interactive)
}

// runWithTUI wires the enumerator's progress callback into a channel the
// Bubble Tea model consumes, runs the program, and returns the final result.
func runWithTUI(cfg discover.Config) (*report.EnumResult, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	progressCh := make(chan discover.Progress, 100)
	cfg.OnProgress = func(p discover.Progress) {
		select {
		case progressCh <- p:
		default:
			// UI updates are advisory; never block the pipeline on them.
		}
	}

	enum, err := discover.NewEnumerator(cfg)
	if err != nil {
		return nil, err
	}

	program := tea.NewProgram(tui.NewModel(ctx, cancel, enum, progressCh))
	finalModel, err := program.Run()
	if err != nil {
		return nil, fmt.Errorf("run tui: %w", err)
	}

	model := finalModel.(tui.Model)
	if model.Interrupted() {
		return nil, fmt.Errorf("interrupted")
	}
	return model.GetResult(), nil
}

// writeResult writes the enumeration result to -o or, in non-interactive
// mode, to stdout. Interactive runs already rendered the styled summary; a
// plain-text dump on top of it would be noise, so stdout output is skipped.
func writeResult(cmd *cobra.Command, opts *rootOptions, result *report.EnumResult, interactive bool) error {
	if result == nil {
		return fmt.Errorf("no results")
	}

	asJSON := opts.jsonOut || (!opts.txtOut && strings.HasSuffix(opts.output, ".json"))

	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		if asJSON {
			return report.WriteEnumJSON(f, result)
		}
		return report.WriteEnumTXT(f, result)
	}

	if !interactive {
		if asJSON {
			return report.WriteEnumJSON(cmd.OutOrStdout(), result)
		}
		return report.WriteEnumTXT(cmd.OutOrStdout(), result)
	}
	return nil
}

func loadWordlist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wordlist: %w", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		words = append(words, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read wordlist: %w", err)
	}
	return words, nil
}

// newLogger builds the CLI logger. Interactive runs log nothing so the TUI
// owns the terminal; quiet runs suppress everything below errors.
func newLogger(opts *rootOptions, interactive bool) zerolog.Logger {
	if interactive {
		return zerolog.Nop()
	}
	level := zerolog.InfoLevel
	switch {
	case opts.quiet:
		level = zerolog.ErrorLevel
	case opts.verbose:
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}
