package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"libcat/internal/catalog"
	"libcat/internal/dblib"
	"libcat/internal/report"
)

// App is everything a command needs once the connection is up.
type App struct {
	Config  Config
	Logger  *zap.Logger
	Gateway *dblib.Gateway
	Catalog *catalog.Catalog
	Reports *report.Engine

	telemetry bool
}

// openApp loads settings, starts telemetry when enabled and connects.
func openApp(ctx context.Context, cfg Config) (*App, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("could not open log: %w", err)
	}
	app := &App{Config: cfg, Logger: logger}

	if settings, err := LoadSettings(); err != nil {
		logger.Warn("could not load settings", zap.Error(err))
	} else if settings.TelemetryEnabled && cfg.SentryDSN != "" {
		if err := InitSentry(cfg.SentryDSN); err != nil {
			logger.Warn("telemetry disabled", zap.Error(err))
		} else {
			InitBreadcrumbs(100)
			app.telemetry = true
		}
	}

	cat, err := cfg.LoadCatalog()
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Catalog = cat

	opts := []dblib.Option{dblib.WithLogger(logger)}
	if app.telemetry {
		opts = append(opts,
			dblib.WithStatementHook(breadcrumbs.RecordDatabase),
			dblib.WithErrorHook(CaptureError))
	}
	debugLog("connecting to %s\n", cfg.Connection().Redacted())
	gw, err := dblib.Connect(ctx, cfg.Connection(), opts...)
	if err != nil {
		if app.telemetry {
			CaptureError(err)
		}
		app.Close()
		return nil, err
	}
	app.Gateway = gw
	app.Reports = report.NewEngine(gw)
	return app, nil
}

// Close releases the connection and flushes telemetry and logs. Safe to
// call more than once.
func (a *App) Close() {
	if err := a.Gateway.Close(); err != nil {
		a.Logger.Warn("close failed", zap.Error(err))
	}
	if a.telemetry {
		FlushAndShutdown()
		a.telemetry = false
	}
	_ = a.Logger.Sync()
}
