package ledger

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"progression/internal/metrics"
	"progression/internal/score"
)

var (
	// ErrDuplicateDate is returned when a date already has an entry.
	ErrDuplicateDate = errors.New("date already recorded")
	// ErrOutOfOrder is returned when a date precedes the ledger tail.
	ErrOutOfOrder = errors.New("date precedes the latest entry")
	// ErrNotFound is returned when no entry exists for a date.
	ErrNotFound = errors.New("no entry for date")
)

// DateError reports a rejected append together with the offending and latest dates.
type DateError struct {
	Date   string
	Latest string
	Err    error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("%s: %v (latest %s)", e.Date, e.Err, e.Latest)
}

func (e *DateError) Unwrap() error {
	return e.Err
}

// Aggregates are the running totals of a ledger. They are always derived from the
// entries and never edited on their own.
type Aggregates struct {
	LongestChain  int     `json:"longest_chain" yaml:"longest_chain"`
	LongestStreak int     `json:"longest_streak" yaml:"longest_streak"`
	CurrentChain  int     `json:"current_chain" yaml:"current_chain"`
	CurrentStreak int     `json:"current_streak" yaml:"current_streak"`
	MomentumMult  float64 `json:"momentum_mult" yaml:"momentum_mult"`
	XPTotal       int64   `json:"xp_total" yaml:"xp_total"`
	RawTotal      float64 `json:"raw_total" yaml:"raw_total"`
	Days          int     `json:"days" yaml:"days"`
}

// Aggregate folds entries into their aggregates.
// An empty sequence yields the zero value.
func Aggregate(entries []score.Entry) Aggregates {
	var a Aggregates
	for _, e := range entries {
		a.LongestChain = max(a.LongestChain, e.AscendingChain)
		a.LongestStreak = max(a.LongestStreak, e.StreakDays)
		a.CurrentChain = e.AscendingChain
		a.CurrentStreak = e.StreakDays
		a.MomentumMult = e.MomentumMult
		a.XPTotal += e.V3XP
		a.RawTotal += e.RawScore
		a.Days++
	}
	return a
}

// Ledger is the date-ordered history of scored days.
// Entries are strictly increasing by date.
type Ledger struct {
	Entries    []score.Entry `json:"entries"`
	Aggregates Aggregates    `json:"aggregates"`
}

// New creates a ledger over entries, which must be strictly increasing by date.
func New(entries []score.Entry) (*Ledger, error) {
	for i := 1; i < len(entries); i++ {
		if entries[i].Date <= entries[i-1].Date {
			return nil, fmt.Errorf("ledger entries out of order at %s after %s", entries[i].Date, entries[i-1].Date)
		}
	}
	return &Ledger{Entries: entries, Aggregates: Aggregate(entries)}, nil
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.Entries)
}

// Last returns the most recent entry.
func (l *Ledger) Last() (score.Entry, bool) {
	if len(l.Entries) == 0 {
		return score.Entry{}, false
	}
	return l.Entries[len(l.Entries)-1], true
}

// Get returns the entry of date.
func (l *Ledger) Get(date string) (score.Entry, error) {
	i, found := l.search(date)
	if !found {
		return score.Entry{}, fmt.Errorf("%s: %w", date, ErrNotFound)
	}
	return l.Entries[i], nil
}

// Tail returns up to n most recent entries, oldest first.
func (l *Ledger) Tail(n int) []score.Entry {
	if n <= 0 || n >= len(l.Entries) {
		return l.Entries
	}
	return l.Entries[len(l.Entries)-n:]
}

// Preview computes the entry m would get if appended now, without changing the ledger.
func (l *Ledger) Preview(m metrics.DayMetrics, p score.Params) (score.Entry, error) {
	if err := m.Validate(); err != nil {
		return score.Entry{}, err
	}
	if err := l.checkAppend(m.Date); err != nil {
		return score.Entry{}, err
	}

	carry, err := score.Fold(l.Entries, p)
	if err != nil {
		return score.Entry{}, err
	}
	entry, _, err := score.Build(carry, m, p)
	return entry, err
}

// Append scores m on top of the whole ledger and adds it as the new tail.
// Duplicate and earlier dates are rejected with *DateError. On any failure the
// ledger is left unchanged.
func (l *Ledger) Append(m metrics.DayMetrics, p score.Params) (score.Entry, error) {
	entry, err := l.Preview(m, p)
	if err != nil {
		return score.Entry{}, err
	}

	l.Entries = append(l.Entries, entry)
	l.Aggregates = Aggregate(l.Entries)
	return entry, nil
}

// BackfillResult describes a completed correction.
type BackfillResult struct {
	Entry score.Entry `json:"entry"`
	// Replaced — an entry for the date existed and was superseded.
	Replaced bool `json:"replaced"`
	// Recomputed — number of later entries recomputed from their stored inputs.
	Recomputed int `json:"recomputed"`
}

// Backfill inserts or replaces the entry of m.Date and recomputes every later entry
// from its stored inputs, since chain, streak, momentum and velocity depend on history.
// On any failure the ledger is left unchanged.
func (l *Ledger) Backfill(m metrics.DayMetrics, p score.Params) (BackfillResult, error) {
	if err := m.Validate(); err != nil {
		return BackfillResult{}, err
	}

	i, found := l.search(m.Date)
	rest := i
	if found {
		rest++
	}

	inputs := make([]metrics.DayMetrics, 0, len(l.Entries)-rest+1)
	inputs = append(inputs, m)
	for _, e := range l.Entries[rest:] {
		inputs = append(inputs, e.Inputs)
	}

	suffix, err := rebuild(l.Entries[:i], inputs, p)
	if err != nil {
		return BackfillResult{}, err
	}

	entries := make([]score.Entry, 0, i+len(suffix))
	entries = append(entries, l.Entries[:i]...)
	entries = append(entries, suffix...)

	l.Entries = entries
	l.Aggregates = Aggregate(entries)
	return BackfillResult{Entry: suffix[0], Replaced: found, Recomputed: len(suffix) - 1}, nil
}

// Replay recomputes every entry from its stored inputs, e.g. after a tuning change.
// It returns the number of entries whose XP or grade changed.
func (l *Ledger) Replay(p score.Params) (int, error) {
	inputs := make([]metrics.DayMetrics, 0, len(l.Entries))
	for _, e := range l.Entries {
		inputs = append(inputs, e.Inputs)
	}

	entries, err := rebuild(nil, inputs, p)
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range entries {
		if entries[i].V3XP != l.Entries[i].V3XP || entries[i].V3Grade != l.Entries[i].V3Grade {
			changed++
		}
	}

	l.Entries = entries
	l.Aggregates = Aggregate(entries)
	return changed, nil
}

// Drift reports whether stored aggregates disagree with the entries.
func (l *Ledger) Drift() bool {
	return l.Aggregates != Aggregate(l.Entries)
}

// Clone returns a copy whose entry slice can be modified independently.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{Entries: slices.Clone(l.Entries), Aggregates: l.Aggregates}
}

func (l *Ledger) checkAppend(date string) error {
	last, ok := l.Last()
	if !ok {
		return nil
	}
	if _, found := l.search(date); found {
		return &DateError{Date: date, Latest: last.Date, Err: ErrDuplicateDate}
	}
	if date < last.Date {
		return &DateError{Date: date, Latest: last.Date, Err: ErrOutOfOrder}
	}
	return nil
}

// search returns the position of date, or where it would be inserted.
func (l *Ledger) search(date string) (int, bool) {
	return slices.BinarySearchFunc(l.Entries, date, func(e score.Entry, d string) int {
		return strings.Compare(e.Date, d)
	})
}

// rebuild scores inputs on top of prefix.
func rebuild(prefix []score.Entry, inputs []metrics.DayMetrics, p score.Params) ([]score.Entry, error) {
	carry, err := score.Fold(prefix, p)
	if err != nil {
		return nil, err
	}

	entries := make([]score.Entry, 0, len(inputs))
	for _, m := range inputs {
		entry, next, err := score.Build(carry, m, p)
		if err != nil {
			return nil, fmt.Errorf("recompute %s: %w", m.Date, err)
		}
		entries = append(entries, entry)
		carry = next
	}
	return entries, nil
}
