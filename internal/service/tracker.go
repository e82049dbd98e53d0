package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/Strob0t/specnotify/internal/domain/notify"
)

// DefaultDeliveryLogFile is where delivery records are written.
const DefaultDeliveryLogFile = "slack-notified.json"

// logFileMode keeps the document readable by other CI users.
const logFileMode = 0o644

// RecordSink receives every appended delivery record.
type RecordSink interface {
	Publish(ctx context.Context, runID string, rec notify.DeliveryRecord) error
}

// DeliveryLog keeps the ordered delivery records of a process and mirrors
// them to a JSON document that is rewritten in full on each append.
type DeliveryLog struct {
	path  string
	sinks []RecordSink

	mu      sync.Mutex
	records []notify.DeliveryRecord
	started bool
}

// NewDeliveryLog creates a log backed by the file at path.
func NewDeliveryLog(path string, sinks ...RecordSink) *DeliveryLog {
	if path == "" {
		path = DefaultDeliveryLogFile
	}
	return &DeliveryLog{path: path, sinks: sinks}
}

// Path returns the document location.
func (l *DeliveryLog) Path() string { return l.path }

// Started reports whether Start has run.
func (l *DeliveryLog) Started() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}

// Start empties the buffer and writes an empty document.
func (l *DeliveryLog) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = []notify.DeliveryRecord{}
	l.started = true
	slog.Debug("starting delivery log", "path", l.path)
	return l.writeLocked()
}

// Append adds a record and rewrites the document. Sink failures are logged.
func (l *DeliveryLog) Append(ctx context.Context, runID string, rec notify.DeliveryRecord) error {
	l.mu.Lock()
	l.records = append(l.records, rec)
	err := l.writeLocked()
	l.mu.Unlock()

	for _, s := range l.sinks {
		if perr := s.Publish(ctx, runID, rec); perr != nil {
			slog.Warn("delivery record publish failed", "channel", rec.Channel, "error", perr)
		}
	}
	return err
}

// Records returns a copy of the buffered records.
func (l *DeliveryLog) Records() []notify.DeliveryRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.records)
}

// writeLocked must be called with l.mu held. The document is replaced by
// rename so readers never see a partial write.
func (l *DeliveryLog) writeLocked() error {
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal delivery log: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".delivery-log-*")
	if err != nil {
		return fmt.Errorf("create delivery log: %w", err)
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(logFileMode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod delivery log: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write delivery log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close delivery log: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace delivery log: %w", err)
	}
	return nil
}
