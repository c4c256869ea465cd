package commands

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/diffwatch/internal/config"
	"git.home.luguber.info/inful/diffwatch/internal/logfields"
	"git.home.luguber.info/inful/diffwatch/internal/metrics"
	"git.home.luguber.info/inful/diffwatch/internal/report"
	"git.home.luguber.info/inful/diffwatch/internal/server"
	"git.home.luguber.info/inful/diffwatch/internal/source"
)

const shutdownTimeout = 10 * time.Second

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Addr string `help:"Display API listen address, overriding http.addr"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if w.Addr != "" {
		cfg.HTTP.Addr = w.Addr
	}
	logger := configureLogging(cfg, root.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return RunWatch(ctx, cfg, logger)
}

// RunWatch runs one session against the configured source until ctx ends or
// the source fails for good. After a clean end of the source the final views
// stay served until ctx ends.
func RunWatch(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var metricsHandler http.Handler
	if cfg.Monitoring.Metrics.Enabled {
		prom := metrics.NewPrometheusRecorder(nil)
		recorder = prom
		metricsHandler = prom.Handler()
	}

	sess, err := newSession(cfg, logger, recorder)
	if err != nil {
		return err
	}
	defer sess.Dispose()

	inner, err := newSource(cfg.Source, sess.SourceHooks())
	if err != nil {
		return err
	}
	src := source.NewResilient(inner, cfg.Source.RetryPolicy(), logger, recorder)

	var srv *server.Server
	if cfg.HTTP.Addr != "" {
		srv = server.New(server.Config{
			Addr:        cfg.HTTP.Addr,
			Metrics:     metricsHandler,
			MetricsPath: cfg.Monitoring.Metrics.Path,
		}, sess, logger)
		if err := srv.Start(ctx); err != nil {
			return err
		}
	}

	reporter, err := report.New(sess, config.Duration(cfg.Monitoring.ReportInterval, 30*time.Second), logger)
	if err != nil {
		return err
	}
	reporter.Start()
	defer func() { _ = reporter.Stop() }()

	if err := sess.Start(ctx, src); err != nil {
		return err
	}
	logger.Info("Watching for update events",
		logfields.SessionID(sess.ID()),
		logfields.Source(src.Name()))

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping session...")
	case <-sess.Done():
		runErr = sess.Err()
		if runErr == nil && srv != nil {
			logger.Info("Event source finished; serving final views until shutdown")
			<-ctx.Done()
		}
	}

	// Closing the session ends open event streams before the server drains.
	sess.Dispose()
	if srv != nil {
		stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		if err := srv.Shutdown(stopCtx); err != nil {
			logger.Warn("Display API shutdown incomplete", logfields.Error(err))
		}
	}
	reporter.Report()
	return runErr
}
