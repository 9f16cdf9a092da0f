// Package engine runs the scoring operations against the persisted ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"progression/internal/audit"
	"progression/internal/ledger"
	"progression/internal/metrics"
	"progression/internal/milestone"
	"progression/internal/profile"
	"progression/internal/score"
)

// ErrReasonRequired is returned when a correction is requested without a reason.
var ErrReasonRequired = errors.New("a reason must be specified")

// ErrNoSource is returned when a date is scored without a configured metrics source.
var ErrNoSource = errors.New("no metrics source configured")

const (
	opScore    = "score"
	opBackfill = "backfill"
	opReplay   = "replay"
)

// Config wires the engine dependencies.
type Config struct {
	Store  ledger.Store
	Params score.Params
	// Source — metrics source used by ScoreDate; optional.
	Source metrics.Source
	// Milestones — milestone evaluator used by the profile projection; optional.
	Milestones *milestone.Evaluator
	// Profile — profile snapshot writer, refreshed after each write; optional.
	Profile *profile.Writer
	// Journal — run journal; audit.Discard when nil.
	Journal     audit.Journal
	ProfileName string
	// LockTimeout — maximal wait for the ledger writer lock.
	LockTimeout time.Duration
	// Now — clock used for profile timestamps; time.Now when nil.
	Now func() time.Time
}

// Engine serializes scoring runs over one ledger store.
type Engine struct {
	cfg     Config
	metrics *engineMetrics
	mu      sync.Mutex // serializes writers inside the process
}

// New creates an Engine.
func New(cfg Config) *Engine {
	if cfg.Journal == nil {
		cfg.Journal = audit.Discard{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 10 * time.Second
	}
	if cfg.ProfileName == "" {
		cfg.ProfileName = "Operator"
	}
	return &Engine{cfg: cfg, metrics: newEngineMetrics()}
}

// Fetch reads the metrics of date from the configured source.
// Unavailable or malformed input is journalled as rejected.
func (e *Engine) Fetch(ctx context.Context, date string) (metrics.DayMetrics, error) {
	if e.cfg.Source == nil {
		return metrics.DayMetrics{}, ErrNoSource
	}
	m, err := e.cfg.Source.Fetch(ctx, date)
	if err != nil {
		e.reject(opScore, date, err)
		return metrics.DayMetrics{}, err
	}
	return m, nil
}

// ScoreDate fetches the metrics of date from the configured source and scores them.
func (e *Engine) ScoreDate(ctx context.Context, date string) (score.Entry, error) {
	m, err := e.Fetch(ctx, date)
	if err != nil {
		return score.Entry{}, err
	}
	return e.ScoreDay(ctx, m)
}

// ScoreDay appends the entry of m to the ledger.
// Input errors, duplicate and out-of-order dates leave the ledger untouched and are
// journalled under their own events.
func (e *Engine) ScoreDay(ctx context.Context, m metrics.DayMetrics) (score.Entry, error) {
	var entry score.Entry
	err := e.write(ctx, opScore, m.Date, func(l *ledger.Ledger) error {
		var err error
		entry, err = l.Append(m, e.cfg.Params)
		return err
	})
	if err != nil {
		return score.Entry{}, err
	}

	e.cfg.Journal.Record(audit.EventScored, entry.Date,
		"raw_score", entry.RawScore,
		"momentum_mult", entry.MomentumMult,
		"total_mult", entry.TotalMult,
		"v3_xp", entry.V3XP,
		"v3_grade", string(entry.V3Grade),
		"v2_grade", string(entry.V2Grade),
		"active", entry.Active,
	)
	slog.Info("day scored", "date", entry.Date, "xp", entry.V3XP, "grade", entry.V3Grade, "chain", entry.AscendingChain, "streak", entry.StreakDays)
	return entry, nil
}

// Backfill replaces or inserts the entry of m and recomputes every later day.
func (e *Engine) Backfill(ctx context.Context, m metrics.DayMetrics, reason string) (ledger.BackfillResult, error) {
	if strings.TrimSpace(reason) == "" {
		return ledger.BackfillResult{}, ErrReasonRequired
	}

	var res ledger.BackfillResult
	err := e.write(ctx, opBackfill, m.Date, func(l *ledger.Ledger) error {
		var err error
		res, err = l.Backfill(m, e.cfg.Params)
		return err
	})
	if err != nil {
		return ledger.BackfillResult{}, err
	}

	e.cfg.Journal.Record(audit.EventBackfill, m.Date,
		"reason", reason,
		"replaced", res.Replaced,
		"recomputed", res.Recomputed,
		"v3_xp", res.Entry.V3XP,
		"v3_grade", string(res.Entry.V3Grade),
	)
	slog.Info("day backfilled", "date", m.Date, "reason", reason, "replaced", res.Replaced, "recomputed", res.Recomputed)
	return res, nil
}

// Replay recomputes the whole ledger with the current params.
func (e *Engine) Replay(ctx context.Context, reason string) (int, error) {
	if strings.TrimSpace(reason) == "" {
		return 0, ErrReasonRequired
	}

	changed := 0
	err := e.write(ctx, opReplay, "", func(l *ledger.Ledger) error {
		var err error
		changed, err = l.Replay(e.cfg.Params)
		return err
	})
	if err != nil {
		return 0, err
	}

	e.cfg.Journal.Record(audit.EventReplay, "", "reason", reason, "changed", changed)
	slog.Info("ledger replayed", "reason", reason, "changed", changed)
	return changed, nil
}

// Preview computes the entry m would get without writing anything.
func (e *Engine) Preview(ctx context.Context, m metrics.DayMetrics) (score.Entry, error) {
	l, err := e.cfg.Store.Load(ctx)
	if err != nil {
		return score.Entry{}, err
	}
	return l.Preview(m, e.cfg.Params)
}

// Ledger loads the persisted ledger.
func (e *Engine) Ledger(ctx context.Context) (*ledger.Ledger, error) {
	return e.cfg.Store.Load(ctx)
}

// Entry returns the persisted entry of date.
func (e *Engine) Entry(ctx context.Context, date string) (score.Entry, error) {
	l, err := e.cfg.Store.Load(ctx)
	if err != nil {
		return score.Entry{}, err
	}
	return l.Get(date)
}

// Profile projects the persisted ledger.
func (e *Engine) Profile(ctx context.Context) (profile.Profile, error) {
	l, err := e.cfg.Store.Load(ctx)
	if err != nil {
		return profile.Profile{}, err
	}
	return e.project(l), nil
}

// Refresh rewrites the profile snapshot from the persisted ledger.
func (e *Engine) Refresh(ctx context.Context) (profile.Profile, error) {
	l, err := e.cfg.Store.Load(ctx)
	if err != nil {
		return profile.Profile{}, err
	}
	p := e.project(l)
	if e.cfg.Profile != nil {
		if err := e.cfg.Profile.Write(p); err != nil {
			return profile.Profile{}, fmt.Errorf("write profile: %w", err)
		}
	}
	e.metrics.observeLedger(l, p)
	return p, nil
}

// write runs one mutation: lock, load, mutate, save, project, unlock.
// The lock is released on every path; a failed mutation or save leaves the
// persisted ledger as it was.
func (e *Engine) write(ctx context.Context, op, date string, mutate func(l *ledger.Ledger) error) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	defer func() {
		if err != nil {
			e.reject(op, date, err)
		}
	}()

	lockCtx, cancel := context.WithTimeout(ctx, e.cfg.LockTimeout)
	defer cancel()
	unlock, err := e.cfg.Store.Lock(lockCtx)
	if err != nil {
		return err
	}
	defer func() {
		if uerr := unlock(); uerr != nil {
			slog.Error("ledger unlock", "error", uerr)
		}
	}()

	l, err := e.cfg.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	if err := mutate(l); err != nil {
		return err
	}
	if err := e.cfg.Store.Save(ctx, l); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}

	p := e.project(l)
	if e.cfg.Profile != nil {
		if err := e.cfg.Profile.Write(p); err != nil {
			// The ledger is authoritative; the snapshot is refreshed on the next run.
			slog.Error("write profile", "error", err)
		}
	}
	e.metrics.observeLedger(l, p)
	e.metrics.observeRun(op, "ok")
	return nil
}

func (e *Engine) project(l *ledger.Ledger) profile.Profile {
	return profile.Project(l, e.cfg.Milestones, e.cfg.ProfileName, e.cfg.Now())
}

// reject journals and counts a failed run by its cause.
func (e *Engine) reject(op, date string, err error) {
	var inputErr *metrics.InputError
	event := audit.EventFailed
	switch {
	case errors.As(err, &inputErr):
		event = audit.EventInputRejected
	case errors.Is(err, ledger.ErrDuplicateDate):
		event = audit.EventDuplicate
	case errors.Is(err, ledger.ErrOutOfOrder):
		event = audit.EventOutOfOrder
	}

	e.metrics.observeRun(op, string(event))
	e.cfg.Journal.Record(event, date, "operation", op, "reason", err.Error())
	if event == audit.EventFailed {
		slog.Error("scoring run failed", "operation", op, "date", date, "error", err)
	} else {
		slog.Warn("scoring run rejected", "operation", op, "date", date, "error", err)
	}
}
