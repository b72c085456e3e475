package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
)

type Options struct {
	Dev       bool
	SentryDSN string
	App       string
	Version   string
	Env       string
}

// Init installs the default logger.
// Development: text at debug level. Otherwise: JSON at info level.
// With a Sentry DSN, errors are also reported to Sentry.
func Init(opts Options) *slog.Logger {
	var handlers []slog.Handler

	if opts.Dev {
		handlers = append(handlers, slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	} else {
		handlers = append(handlers, slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	if opts.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              opts.SentryDSN,
			Release:          opts.Version,
			Environment:      opts.Env,
			TracesSampleRate: 0.2,
		})
		if err != nil {
			slog.Warn("failed to initialize sentry", "error", err)
		} else {
			handlers = append(handlers, slogsentry.Option{
				Level: slog.LevelError,
			}.NewSentryHandler())
		}
	}

	handler := handlers[0]
	if len(handlers) > 1 {
		handler = slogmulti.Fanout(handlers...)
	}

	log := slog.New(handler)
	if opts.App != "" {
		log = log.With("app", opts.App, "version", opts.Version)
	}
	slog.SetDefault(log)
	return log
}

// Flush waits for buffered Sentry events. Call before exit.
func Flush() {
	sentry.Flush(2 * time.Second)
}
