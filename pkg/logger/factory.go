package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the handler encoding.
type Format string

const (
	// FormatJSON is the default, for log aggregation systems.
	FormatJSON Format = "json"
	// FormatText is for local development.
	FormatText Format = "text"
)

// Config holds logger settings loadable from the environment through
// pkg/config. Unknown level or format values fall back to the defaults.
type Config struct {
	Level   string `env:"LOG_LEVEL" envDefault:"info"`
	Format  string `env:"LOG_FORMAT" envDefault:"json"`
	Service string `env:"LOG_SERVICE"`
}

type settings struct {
	level      slog.Level
	format     Format
	output     io.Writer
	attrs      []slog.Attr
	extractors []ContextExtractor
}

// Option configures New.
type Option func(*settings)

// WithLevel sets the minimum record level.
func WithLevel(l slog.Level) Option {
	return func(s *settings) { s.level = l }
}

// WithFormat sets the handler encoding. Unknown formats keep the default.
func WithFormat(f Format) Option {
	return func(s *settings) {
		if f == FormatJSON || f == FormatText {
			s.format = f
		}
	}
}

// WithOutput redirects log output. Nil writers are ignored.
func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.output = w
		}
	}
}

// WithService stamps every record with a service attribute.
func WithService(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.attrs = append(s.attrs, slog.String("service", name))
		}
	}
}

// WithAttr adds static attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(s *settings) {
		s.attrs = append(s.attrs, attrs...)
	}
}

// WithContextExtractors registers functions that inject attributes pulled
// from the logging context. Nil extractors are ignored.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(s *settings) {
		for _, ex := range extractors {
			if ex != nil {
				s.extractors = append(s.extractors, ex)
			}
		}
	}
}

// WithContextValue injects the context value under key as an attribute named
// name whenever the value is present, for request-scoped data like delivery
// batch ids.
func WithContextValue(name string, key any) Option {
	return func(s *settings) {
		if name == "" || key == nil {
			return
		}
		s.extractors = append(s.extractors, func(ctx context.Context) (slog.Attr, bool) {
			if v := ctx.Value(key); v != nil {
				return slog.Any(name, v), true
			}
			return slog.Attr{}, false
		})
	}
}

// New builds a slog.Logger with context attribute injection. Defaults are
// JSON at info level on stdout.
func New(opts ...Option) *slog.Logger {
	s := &settings{
		level:  slog.LevelInfo,
		format: FormatJSON,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}

	handlerOpts := &slog.HandlerOptions{Level: s.level}

	var handler slog.Handler
	if s.format == FormatText {
		handler = slog.NewTextHandler(s.output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(s.output, handlerOpts)
	}
	if len(s.attrs) > 0 {
		handler = handler.WithAttrs(s.attrs)
	}

	return slog.New(NewLogHandlerDecorator(handler, s.extractors...))
}

// NewFromConfig builds a logger from an env-loaded Config. Extra options are
// applied after the config and may override it.
func NewFromConfig(cfg Config, opts ...Option) *slog.Logger {
	base := []Option{
		WithLevel(ParseLevel(cfg.Level)),
		WithFormat(Format(strings.ToLower(cfg.Format))),
		WithService(cfg.Service),
	}
	return New(append(base, opts...)...)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
