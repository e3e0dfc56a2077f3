package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"libcat/internal/dblib"
)

// InitSentry initializes the Sentry client with the given DSN
func InitSentry(dsn string) error {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      getEnvironment(),
		AttachStacktrace: true,
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	if user, err := os.UserCacheDir(); err == nil {
		sentry.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetUser(sentry.User{ID: user})
		})
	}

	return nil
}

// getEnvironment determines the environment (dev or production)
func getEnvironment() string {
	if env := os.Getenv("LIBCAT_ENV"); env != "" {
		return env
	}
	if _, err := os.Stat(".git"); err == nil {
		return "development"
	}
	return "production"
}

// scrubEvent drops request data so connection strings never leave the host.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.Request = nil
	event.ServerName = ""
	return event
}

// FlushAndShutdown flushes pending Sentry events and closes the client
func FlushAndShutdown() {
	sentry.Flush(5 * time.Second)
}

// CaptureError sends an error to Sentry along with any pending breadcrumbs.
// Validation failures are user input, not faults, and are not reported.
func CaptureError(err error) {
	if err == nil {
		return
	}
	var verr *dblib.ValidationError
	if errors.As(err, &verr) {
		return
	}

	if breadcrumbs != nil {
		breadcrumbs.Flush()
	}

	hub := sentry.CurrentHub().Clone()
	var qerr *dblib.QueryExecutionError
	if errors.As(err, &qerr) && qerr.Code != "" {
		hub.Scope().SetTag("db.code", qerr.Code)
	}
	hub.CaptureException(err)
}
