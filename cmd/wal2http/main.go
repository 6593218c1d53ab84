// Command wal2http streams PostgreSQL logical-replication changes decoded
// from the pgoutput plugin and delivers them as JSON events to a
// configured sink (HTTP webhook, Hook0, or stdout).
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wal2http/wal2http/internal/config"
	"github.com/wal2http/wal2http/internal/logging"
	"github.com/wal2http/wal2http/internal/protocol"
	"github.com/wal2http/wal2http/internal/replication"
	"github.com/wal2http/wal2http/internal/sink"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		// Logger isn't built yet; a config error means we don't even know
		// the requested log format reliably, so report to stderr directly.
		os.Stderr.WriteString("wal2http: " + err.Error() + "\n")
		return 1
	}

	logger := logging.New(cfg.LogFormat, os.Stdout)
	logger.Info("starting", "slot", cfg.SlotName, "publication", cfg.PubName, "sink", cfg.Sink())

	s, err := buildSink(*cfg, logger)
	if err != nil {
		logger.Error("invalid sink configuration", "error", err)
		return 1
	}

	sess := replication.New(replication.Config{
		DatabaseURL:      cfg.DatabaseURL,
		SlotName:         cfg.SlotName,
		PubName:          cfg.PubName,
		FeedbackInterval: cfg.FeedbackInterval(),
	}, s, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sess.Run(ctx); err != nil {
		logger.Error("session terminated", "error", err)
		return exitCode(err)
	}

	logger.Info("stopped")
	return 0
}

// buildSink resolves the configured EVENT_SINK into a Sink, wrapping it
// with the retry envelope and an optional SMTP failure notifier.
func buildSink(cfg config.Config, logger *slog.Logger) (sink.Sink, error) {
	var base sink.Sink

	switch cfg.Sink() {
	case config.SinkStdout:
		base = sink.NewStdout(os.Stdout)
	case config.SinkHTTP:
		base = sink.NewHTTP(cfg.HTTPEndpointURL)
	case config.SinkHook0:
		base = sink.NewHook0(cfg.Hook0APIURL, cfg.Hook0ApplicationID, cfg.Hook0APIToken)
	default:
		return nil, errors.New("unknown sink " + cfg.EventSink)
	}

	// Stdout never fails transiently, so retrying it is a no-op; wrapping
	// it anyway keeps the session's call site uniform.
	var notifier sink.Notifier
	if cfg.NotifierConfigured() {
		notifier = sink.NewSMTPNotifier(cfg.EmailSMTPHost, cfg.EmailSMTPPort, cfg.EmailSMTPUsername,
			cfg.EmailSMTPPassword, cfg.EmailFrom, cfg.EmailTo)
	}

	return sink.WithRetry(base, notifier, logger), nil
}

// exitCode maps a fatal session error to the status codes from spec.md §6.
func exitCode(err error) int {
	var preflight *replication.PreflightError
	var protoErr *protocol.ProtocolError
	var unknownRel *protocol.UnknownRelation
	var connErr *replication.ConnectionError

	switch {
	case errors.As(err, &preflight):
		return 2
	case errors.As(err, &protoErr), errors.As(err, &unknownRel):
		return 3
	case errors.As(err, &connErr):
		return 4
	default:
		return 4
	}
}
