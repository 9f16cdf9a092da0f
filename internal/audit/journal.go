// Package audit keeps the run journal: one JSON line per scoring run outcome,
// so a day's scoring can be traced after the fact.
package audit

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Event names a run outcome.
type Event string

const (
	EventScored        Event = "scored"
	EventInputRejected Event = "input_rejected"
	EventDuplicate     Event = "duplicate"
	EventOutOfOrder    Event = "out_of_order"
	EventBackfill      Event = "backfill"
	EventReplay        Event = "replay"
	EventFailed        Event = "failed"
)

// Journal records run outcomes.
type Journal interface {
	Record(event Event, date string, attrs ...any)
	Close() error
}

// FileJournal appends records to a rotating JSONL file.
type FileJournal struct {
	lumberjack *lumberjack.Logger
	logger     *slog.Logger
}

// NewFileJournal creates a journal over file.
// Parameters:
//   - file: journal path
//   - maxSize: size in MB before rotation
//   - maxBackups: number of rotated files to keep
func NewFileJournal(file string, maxSize, maxBackups int) *FileJournal {
	out := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	return &FileJournal{lumberjack: out, logger: slog.New(newRecordHandler(out))}
}

// Record appends one line for date.
func (j *FileJournal) Record(event Event, date string, attrs ...any) {
	j.logger.Info(string(event), append([]any{"date", date}, attrs...)...)
}

// Close flushes and closes the current file.
func (j *FileJournal) Close() error {
	return j.lumberjack.Close()
}

// WriterJournal writes records to an arbitrary writer, e.g. stdout or a test buffer.
type WriterJournal struct {
	logger *slog.Logger
}

func NewWriterJournal(w io.Writer) *WriterJournal {
	return &WriterJournal{logger: slog.New(newRecordHandler(w))}
}

func (j *WriterJournal) Record(event Event, date string, attrs ...any) {
	j.logger.Info(string(event), append([]any{"date", date}, attrs...)...)
}

func (j *WriterJournal) Close() error {
	return nil
}

// Discard drops every record.
type Discard struct{}

func (Discard) Record(Event, string, ...any) {}

func (Discard) Close() error { return nil }
