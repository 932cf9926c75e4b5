package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mwestcott/sitehound/events"
	"github.com/mwestcott/sitehound/server"
)

type serveOptions struct {
	port       int
	timeoutSec int
	threads    int
	headless   bool
	verbose    bool
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scan API server",
		Long: `serve exposes the scan pipeline over HTTP: POST /api/scan starts a scan,
GET /api/scan/{id} polls it, and /ws/scan/{id} streams its events.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.port, "port", 8000, "listen port")
	flags.IntVar(&opts.timeoutSec, "timeout", 10, "per-request timeout in seconds")
	flags.IntVar(&opts.threads, "threads", 50, "enumeration worker count")
	flags.BoolVar(&opts.headless, "headless", true, "run scan browsers headless")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	return cmd
}

func runServe(opts *serveOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := zerolog.InfoLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	srv := server.New(server.Config{
		RequestTimeout: time.Duration(opts.timeoutSec) * time.Second,
		Threads:        opts.threads,
		Headless:       opts.headless,
		Logger:         log,
	}, server.NewMemoryStore(), events.NewBus(0, log))

	return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", opts.port))
}

// newCLIScanID generates a short scan token for one-shot CLI runs.
func newCLIScanID() string {
	id := uuid.New()
	return fmt.Sprintf("scan_%x", id[:4])
}
