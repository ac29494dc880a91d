package logging

import (
	"context"
	"errors"
	"log/slog"
)

// TeeHandler duplicates each record to every sink. A failing sink does not
// stop delivery to the others; errors are joined for the caller.
type TeeHandler struct {
	sinks []slog.Handler
}

func NewTeeHandler(sinks ...slog.Handler) *TeeHandler {
	return &TeeHandler{sinks: sinks}
}

func (t *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.sinks {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *TeeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range t.sinks {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sinks := make([]slog.Handler, len(t.sinks))
	for i, h := range t.sinks {
		sinks[i] = h.WithAttrs(attrs)
	}
	return &TeeHandler{sinks: sinks}
}

func (t *TeeHandler) WithGroup(name string) slog.Handler {
	sinks := make([]slog.Handler, len(t.sinks))
	for i, h := range t.sinks {
		sinks[i] = h.WithGroup(name)
	}
	return &TeeHandler{sinks: sinks}
}
