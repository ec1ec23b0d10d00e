// Package observability wires error reporting to Sentry.
package observability

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/noah-isme/internship-portal-api/pkg/config"
)

var enabled bool

// InitSentry configures the global Sentry hub. It returns a flush function that
// must run before the process exits. An empty DSN disables reporting.
func InitSentry(cfg *config.Config) (func(), error) {
	if cfg.Sentry.DSN == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.Env,
		Release:     cfg.Sentry.Release,
	}); err != nil {
		return func() {}, err
	}
	enabled = true
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureErr reports err when Sentry is configured.
func CaptureErr(err error, tags map[string]string) {
	if err == nil || !enabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}
