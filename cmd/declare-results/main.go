// Command declare-results declares every pending result of one test from
// the command line, or queues the run for the server's worker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/lithammer/shortuuid/v4"
	"github.com/stemsi/exstem-assess/internal/bootstrap"
	"github.com/stemsi/exstem-assess/internal/config"
	"github.com/stemsi/exstem-assess/internal/events"
	"github.com/stemsi/exstem-assess/internal/logger"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/service"
	"github.com/stemsi/exstem-assess/internal/worker"
)

// Exit codes.
const (
	exitOK         = 0
	exitFailure    = 1
	exitUsage      = 2
	exitIncomplete = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run does all the work so deferred cleanup happens before the process exits.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		testID     string
		declaredBy string
		async      bool
	)
	fs := flag.NewFlagSet("declare-results", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&testID, "test", "", "ID of the test whose results are declared")
	fs.StringVar(&declaredBy, "by", "cli", "Recorded as declared_by")
	fs.BoolVar(&async, "async", false, "Queue the run instead of executing it here")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if testID == "" {
		fmt.Fprintln(stderr, "Usage: declare-results -test <id> [-by <user>] [-async]")
		return exitUsage
	}

	cfg := config.Load()
	log := logger.New(stderr, cfg.LogFormat)

	stores, err := bootstrap.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open stores")
		return exitFailure
	}
	defer stores.Close()

	if cfg.StoreDriver == config.StoreDriverMemory && !async {
		log.Warn().Msg("In-memory store is empty in a fresh process; nothing will be declared")
	}

	sender, err := bootstrap.NewSender(cfg.SMTP, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to configure notifications")
		return exitFailure
	}
	publisher, err := events.NewPublisher(cfg.Events, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create event publisher")
		return exitFailure
	}
	defer publisher.Close()

	declarations := service.NewDeclarationService(
		stores.Tests,
		stores.Results,
		service.NewNameResolver(stores.Profiles, log),
		sender,
		publisher,
		nil,
		cfg.Declaration,
		log,
	)

	if async {
		if stores.Redis == nil {
			log.Error().Msg("Redis is required to queue a declaration")
			return exitFailure
		}
		job := model.DeclarationJob{RunID: shortuuid.New(), TestID: testID, DeclaredBy: declaredBy}
		if err := worker.NewDeclarationWorker(stores.Redis, declarations, log).Enqueue(ctx, job); err != nil {
			log.Error().Err(err).Msg("Failed to queue declaration")
			return exitFailure
		}
		fmt.Fprintln(stdout, job.RunID)
		return exitOK
	}

	summary, err := declarations.DeclareAll(ctx, testID, declaredBy)
	if summary != nil {
		fmt.Fprintf(stdout, "run=%s declared=%d emails_sent=%d emails_failed=%d failed_attempts=%d batches=%d\n",
			summary.RunID, summary.DeclaredCount, summary.EmailsSent, summary.EmailsFailed,
			summary.FailedAttempts, summary.Batches)
	}
	if err != nil {
		if errors.Is(err, service.ErrDeclarationStalled) {
			log.Error().Err(err).Msg("Declaration incomplete")
			return exitIncomplete
		}
		log.Error().Err(err).Msg("Declaration failed")
		return exitFailure
	}
	return exitOK
}
