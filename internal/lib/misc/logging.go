package misc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"runtime"
	"slices"
	"time"
)

func Errorf(logger *slog.Logger, format string, args ...any) {
	helperf(logger, slog.LevelError, format, args...)
}

func Warnf(logger *slog.Logger, format string, args ...any) {
	helperf(logger, slog.LevelWarn, format, args...)
}

func Infof(logger *slog.Logger, format string, args ...any) {
	helperf(logger, slog.LevelInfo, format, args...)
}

func Debugf(logger *slog.Logger, format string, args ...any) {
	helperf(logger, slog.LevelDebug, format, args...)
}

func helperf(logger *slog.Logger, level slog.Level, format string, args ...any) {
	if !logger.Enabled(context.Background(), level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // skip [Callers, helperf, [info/warn/debug]f]
	r := slog.NewRecord(time.Now(), level, fmt.Sprintf(format, args...), pcs[0])
	_ = logger.Handler().Handle(context.Background(), r)
}

// NewLogger returns the handler chain used by the cli.  On a terminal output is a bare message followed by
// any attributes as json, otherwise every record is a json object with message/severity keys so it can be
// collected by log shippers when run from CI.
func NewLogger(out io.Writer, level slog.Leveler, isTerminal bool) *slog.Logger {
	if isTerminal {
		return slog.New(NewMinimalHandler(out, MinimalHandlerOptions{SlogOpts: slog.HandlerOptions{Level: level}}))
	}
	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.MessageKey {
				a.Key = "message"
			} else if a.Key == slog.LevelKey && len(groups) == 0 {
				a.Key = "severity"
			}
			return a
		},
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

type MinimalHandlerOptions struct {
	SlogOpts slog.HandlerOptions
}

// MinimalHandler prints just the message (and attributes) - the level filtering of the wrapped json
// handler is still honored.
type MinimalHandler struct {
	slog.Handler
	l     *log.Logger
	attrs []slog.Attr
}

func (h *MinimalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &MinimalHandler{
		Handler: h.Handler.WithAttrs(attrs),
		l:       h.l,
		attrs:   append(slices.Clip(h.attrs), attrs...),
	}
}

// WithGroup keeps the minimal output, group names aren't shown.
func (h *MinimalHandler) WithGroup(name string) slog.Handler {
	return &MinimalHandler{Handler: h.Handler.WithGroup(name), l: h.l, attrs: h.attrs}
}

func (h *MinimalHandler) Handle(ctx context.Context, r slog.Record) error {
	var extra string
	if r.NumAttrs()+len(h.attrs) > 0 {
		fields := make(map[string]any, r.NumAttrs()+len(h.attrs))
		for _, a := range h.attrs {
			fields[a.Key] = fmt.Sprintf("%v", a.Value.Any())
		}
		r.Attrs(func(a slog.Attr) bool {
			fields[a.Key] = fmt.Sprintf("%v", a.Value.Any())
			return true
		})
		b, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		extra = string(b)
	}
	if r.Level >= slog.LevelWarn {
		h.l.Println(r.Level.String()+":", r.Message, extra)
		return nil
	}
	h.l.Println(r.Message, extra)
	return nil
}

func NewMinimalHandler(out io.Writer, opts MinimalHandlerOptions) *MinimalHandler {
	return &MinimalHandler{
		Handler: slog.NewJSONHandler(out, &opts.SlogOpts),
		l:       log.New(out, "", 0),
	}
}
