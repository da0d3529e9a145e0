package trace

import (
	"context"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger at Debug level, except
// error events which are logged at Warn.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("handle", event.HandleID),
		slog.String("resource", event.Resource.String()),
		slog.String("category", event.Category.String()),
	}
	if event.ParentID != "" {
		attrs = append(attrs, slog.String("parent", event.ParentID))
	}
	if event.Label != "" {
		attrs = append(attrs, slog.String("label", event.Label))
	}

	level := slog.LevelDebug
	switch {
	case event.Lifecycle != nil:
		attrs = append(attrs, slog.String("action", event.Lifecycle.Action.String()))
	case event.Call != nil:
		attrs = append(attrs,
			slog.String("op", event.Call.Op),
			slog.Bool("ok", event.Call.OK),
			slog.Duration("duration", event.Call.Duration),
		)
		if event.Call.Bytes > 0 {
			attrs = append(attrs, slog.Int("bytes", event.Call.Bytes))
		}
		if event.Call.Offset != nil {
			attrs = append(attrs, slog.Uint64("offset", *event.Call.Offset))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("error_domain", event.Error.Domain),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
		if event.Error.CodeName != "" {
			attrs = append(attrs, slog.String("error_name", event.Error.CodeName))
		}
		if event.Error.Errno != 0 {
			attrs = append(attrs, slog.Int("errno", int(event.Error.Errno)))
		}
		if event.Error.Lock != "" {
			attrs = append(attrs, slog.String("lock", event.Error.Lock))
		}
	}

	a.logger.LogAttrs(context.Background(), level, "nvme", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
