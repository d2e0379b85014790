// Package logging provides the structured logger and failure reporter used
// by the ORM. Failures are written through log/slog and, when a Notifier is
// configured, forwarded to it subject to Dedup rate limiting.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewLogger builds a slog logger. format is "json" or "text"; level is a
// slog level name (debug, info, warn, error), defaulting to info.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Record is one structured failure or diagnostic.
type Record struct {
	Message string
	Stack   string
	Source  string
	Vars    map[string]any
	Err     error
}

// Notification is what a Notifier receives for a sent error record.
type Notification struct {
	ID          string
	Time        time.Time
	Fingerprint string
	Record      Record
	Suppressed  []Instance
}

// Notifier delivers error notifications to developers.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Reporter writes records to a logger and forwards errors to a Notifier.
type Reporter struct {
	logger   *slog.Logger
	notifier Notifier
	dedup    *Dedup
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithNotifier forwards error records to n.
func WithNotifier(n Notifier) Option {
	return func(r *Reporter) { r.notifier = n }
}

// WithDedup replaces the default Dedup.
func WithDedup(d *Dedup) Option {
	return func(r *Reporter) { r.dedup = d }
}

// NewReporter creates a Reporter. A nil logger discards output.
func NewReporter(logger *slog.Logger, opts ...Option) *Reporter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Reporter{logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	if r.dedup == nil {
		r.dedup = NewDedup()
	}
	return r
}

// Discard is a Reporter that drops everything.
func Discard() *Reporter { return NewReporter(nil) }

// Logger returns the underlying slog logger.
func (r *Reporter) Logger() *slog.Logger { return r.logger }

// Info logs rec at info level.
func (r *Reporter) Info(ctx context.Context, rec Record) {
	r.log(ctx, slog.LevelInfo, rec)
}

// Debug logs rec at debug level.
func (r *Reporter) Debug(ctx context.Context, rec Record) {
	r.log(ctx, slog.LevelDebug, rec)
}

// Error logs rec at error level, capturing a stack if rec has none, and
// notifies unless the fingerprint is rate limited. It returns the incident
// id attached to the log line.
func (r *Reporter) Error(ctx context.Context, rec Record) string {
	if rec.Stack == "" {
		rec.Stack = string(debug.Stack())
	}
	id := uuid.NewString()
	r.log(ctx, slog.LevelError, rec, slog.String("incident", id))

	if r.notifier == nil {
		return id
	}
	fp := Fingerprint(rec)
	decision := r.dedup.Admit(fp, rec.Vars)
	if !decision.Send {
		r.logger.DebugContext(ctx, "notification suppressed", slog.String("incident", id))
		return id
	}
	n := Notification{ID: id, Time: time.Now(), Fingerprint: fp, Record: rec, Suppressed: decision.Suppressed}
	if err := r.notifier.Notify(ctx, n); err != nil {
		r.logger.WarnContext(ctx, "notification failed", slog.String("incident", id), slog.Any("error", err))
	}
	return id
}

// UnknownError reports an unexpected failure. The error message becomes
// the record message.
func (r *Reporter) UnknownError(ctx context.Context, err error, vars map[string]any) string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return r.Error(ctx, Record{Message: msg, Err: err, Vars: vars})
}

func (r *Reporter) log(ctx context.Context, level slog.Level, rec Record, extra ...slog.Attr) {
	attrs := make([]slog.Attr, 0, 4+len(extra))
	if rec.Source != "" {
		attrs = append(attrs, slog.String("source", rec.Source))
	}
	if rec.Err != nil {
		attrs = append(attrs, slog.Any("error", rec.Err))
	}
	if len(rec.Vars) > 0 {
		attrs = append(attrs, slog.Any("vars", rec.Vars))
	}
	if rec.Stack != "" && level >= slog.LevelError {
		attrs = append(attrs, slog.String("stack", rec.Stack))
	}
	attrs = append(attrs, extra...)
	r.logger.LogAttrs(ctx, level, rec.Message, attrs...)
}

// Fingerprint identifies "the same error" for deduplication: the message,
// source and error text, excluding per-occurrence variables and stacks.
func Fingerprint(rec Record) string {
	key := struct {
		Message string `json:"message"`
		Source  string `json:"source,omitempty"`
		Err     string `json:"err,omitempty"`
	}{Message: rec.Message, Source: rec.Source}
	if rec.Err != nil {
		key.Err = rec.Err.Error()
	}
	b, err := json.Marshal(key)
	if err != nil {
		return fmt.Sprintf("%s|%s|%s", key.Message, key.Source, key.Err)
	}
	return string(b)
}
