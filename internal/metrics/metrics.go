// Package metrics defines the per-day activity facts handed to the scoring engine
// by the upstream extractor, together with their validation and decoding.
package metrics

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
)

// DateLayout is the calendar date key used across the ledger.
const DateLayout = "2006-01-02"

// MaxRawScore bounds raw_score so that XP and its running totals stay well inside int64.
const MaxRawScore = 1e12

// InputError reports missing or invalid day metrics.
// A day that fails with an InputError is never written to the ledger, which keeps
// "input unavailable" distinguishable from an intentional zero-activity day.
type InputError struct {
	Date   string
	Reason string
}

// Error returns the text description of the error.
func (e *InputError) Error() string {
	if e.Date == "" {
		return "invalid day metrics: " + e.Reason
	}
	return "invalid day metrics for " + e.Date + ": " + e.Reason
}

// NewInputError creates an InputError for the given date.
func NewInputError(date, format string, args ...any) *InputError {
	return &InputError{Date: date, Reason: fmt.Sprintf(format, args...)}
}

// DayMetrics is the raw activity record of one calendar day.
// RawScore and Active are required; every other field degrades to zero when absent.
type DayMetrics struct {
	// Date — calendar day in YYYY-MM-DD form.
	Date string `json:"date" yaml:"date"`
	// RawScore — output score computed upstream, must be >= 0.
	RawScore *float64 `json:"raw_score" yaml:"raw_score"`
	// Active — whether the day produced qualifying output.
	Active *bool `json:"active" yaml:"active"`
	// Accomplishments — number of accomplishments; len(Types) is used when zero.
	Accomplishments int `json:"accomplishments,omitempty" yaml:"accomplishments,omitempty"`
	// Types — accomplishment type tags, duplicates allowed.
	Types []string `json:"types,omitempty" yaml:"types,omitempty"`
	// HighValue — number of high-value accomplishments.
	HighValue int `json:"high_value,omitempty" yaml:"high_value,omitempty"`
	// Finalized — items finalized or published today.
	Finalized int `json:"finalized,omitempty" yaml:"finalized,omitempty"`
	// Drafted — total drafted items the finalized ones are measured against.
	Drafted int `json:"drafted,omitempty" yaml:"drafted,omitempty"`
	// Cost — cost or time spent producing the output.
	Cost float64 `json:"cost,omitempty" yaml:"cost,omitempty"`
	// Commits — commits made today.
	Commits int `json:"commits,omitempty" yaml:"commits,omitempty"`
	// Words — words written today.
	Words int `json:"words,omitempty" yaml:"words,omitempty"`
}

// Raw returns the raw score, zero when unset.
func (m DayMetrics) Raw() float64 {
	if m.RawScore == nil {
		return 0
	}
	return *m.RawScore
}

// IsActive returns the activity flag, false when unset.
func (m DayMetrics) IsActive() bool {
	return m.Active != nil && *m.Active
}

// AccomplishmentCount returns the declared accomplishment count, or the number of
// type tags when no count was given.
func (m DayMetrics) AccomplishmentCount() int {
	if m.Accomplishments > 0 {
		return m.Accomplishments
	}
	return len(m.Types)
}

// Day parses Date.
func (m DayMetrics) Day() (time.Time, error) {
	return time.Parse(DateLayout, m.Date)
}

// Validate checks that the record is complete and numeric.
// It returns an *InputError describing the first problem found.
func (m DayMetrics) Validate() error {
	if m.Date == "" {
		return NewInputError("", "date must be specified")
	}
	if _, err := m.Day(); err != nil {
		return NewInputError(m.Date, "date must be YYYY-MM-DD")
	}
	if m.RawScore == nil {
		return NewInputError(m.Date, "raw_score must be specified")
	}
	if m.Active == nil {
		return NewInputError(m.Date, "active must be specified")
	}
	if !finite(*m.RawScore) || *m.RawScore < 0 {
		return NewInputError(m.Date, "raw_score must be a non-negative number, got %v", *m.RawScore)
	}
	if *m.RawScore > MaxRawScore {
		return NewInputError(m.Date, "raw_score must not exceed %g, got %g", MaxRawScore, *m.RawScore)
	}
	if !finite(m.Cost) || m.Cost < 0 {
		return NewInputError(m.Date, "cost must be a non-negative number, got %v", m.Cost)
	}

	counts := []struct {
		name  string
		value int
	}{
		{"accomplishments", m.Accomplishments},
		{"high_value", m.HighValue},
		{"finalized", m.Finalized},
		{"drafted", m.Drafted},
		{"commits", m.Commits},
		{"words", m.Words},
	}
	for _, c := range counts {
		if c.value < 0 {
			return NewInputError(m.Date, "%s must be non-negative, got %d", c.name, c.value)
		}
	}

	return nil
}

// Decode parses a DayMetrics JSON document and validates it.
// Unknown fields are rejected so a misspelt required field surfaces as an error.
func Decode(data []byte) (DayMetrics, error) {
	var m DayMetrics
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return DayMetrics{}, NewInputError("", "decode: %v", err)
	}
	if err := m.Validate(); err != nil {
		return DayMetrics{}, err
	}
	return m, nil
}

// New builds a DayMetrics with the required fields set.
func New(date string, raw float64, active bool) DayMetrics {
	return DayMetrics{Date: date, RawScore: &raw, Active: &active}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
