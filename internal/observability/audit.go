package observability

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/workcell-labs/foundry/internal/policy"
)

// AuditWriter persists decision bundles as JSON lines. All methods are
// thread-safe and use fire-and-forget error handling: write failures are
// logged but never propagate, so a full disk cannot block dispatch.
type AuditWriter struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	logger *slog.Logger

	written int
	dropped int
}

// NewAuditWriter writes bundles to w. logger may be nil.
func NewAuditWriter(w io.Writer, logger *slog.Logger) *AuditWriter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AuditWriter{w: w, logger: logger}
}

// OpenAuditFile opens (appending) the audit file at path.
func OpenAuditFile(path string, logger *slog.Logger) (*AuditWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	aw := NewAuditWriter(f, logger)
	aw.closer = f
	return aw, nil
}

// Record appends one decision bundle.
func (a *AuditWriter) Record(d *policy.Decision) {
	if d == nil {
		return
	}

	line, err := json.Marshal(d)
	if err != nil {
		a.note(err)
		return
	}
	line = append(line, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.w.Write(line); err != nil {
		a.dropped++
		a.logger.Warn("audit write failed, bundle dropped", "error", err, "dropped", a.dropped)
		return
	}
	a.written++
}

// Stats returns the written and dropped bundle counts.
func (a *AuditWriter) Stats() (written, dropped int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.written, a.dropped
}

// Close closes the underlying file when the writer owns one.
func (a *AuditWriter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

func (a *AuditWriter) note(err error) {
	a.mu.Lock()
	a.dropped++
	dropped := a.dropped
	a.mu.Unlock()
	a.logger.Warn("audit bundle serialization failed", "error", err, "dropped", dropped)
}
