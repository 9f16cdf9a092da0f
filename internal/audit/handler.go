package audit

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/goccy/go-json"
)

// timeLayout is the journal timestamp format.
const timeLayout = "2006-01-02 15:04:05"

// recordHandler writes each record as one flat JSON object per line.
// The message becomes the "event" field; the level is dropped.
type recordHandler struct {
	mu    *sync.Mutex
	out   io.Writer
	attrs []slog.Attr
}

func newRecordHandler(out io.Writer) *recordHandler {
	return &recordHandler{mu: &sync.Mutex{}, out: out}
}

func (h *recordHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]any, r.NumAttrs()+len(h.attrs)+2)
	fields["time"] = r.Time.UTC().Format(timeLayout)
	fields["event"] = r.Message

	add := func(a slog.Attr) bool {
		if a.Key != "" {
			fields[a.Key] = a.Value.Resolve().Any()
		}
		return true
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(add)

	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.out.Write(append(data, '\n'))
	return err
}

func (h *recordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordHandler{mu: h.mu, out: h.out, attrs: append(slices.Clip(h.attrs), attrs...)}
}

// WithGroup is a no-op: journal records are flat.
func (h *recordHandler) WithGroup(_ string) slog.Handler {
	return h
}
