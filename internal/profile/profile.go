// Package profile derives the read-only progression profile from the ledger.
package profile

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"

	"progression/internal/ledger"
	"progression/internal/milestone"
	"progression/internal/score"
)

// Profile is the latest derived snapshot served to presentation layers.
type Profile struct {
	Name           string                `json:"name"`
	Title          string                `json:"title"`
	Level          int                   `json:"level"`
	XPTotal        int64                 `json:"xp_total"`
	XPNextLevel    int64                 `json:"xp_next_level"`
	Class          string                `json:"class"`
	ClassBreakdown map[string]int        `json:"class_breakdown"`
	AvatarTier     int                   `json:"avatar_tier"`
	Milestones     []milestone.Milestone `json:"milestones"`
	MomentumMult   float64               `json:"momentum_mult"`
	CurrentStreak  int                   `json:"current_streak"`
	CurrentChain   int                   `json:"current_chain"`
	LongestChain   int                   `json:"longest_chain"`
	LongestStreak  int                   `json:"longest_streak"`
	Days           int                   `json:"days"`
	LastDate       string                `json:"last_date,omitempty"`
	LastGrade      score.Grade           `json:"last_grade,omitempty"`
	RawTotal       float64               `json:"raw_total"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// Project derives the profile of l. It only reads the ledger.
func Project(l *ledger.Ledger, ev *milestone.Evaluator, name string, now time.Time) Profile {
	agg := ledger.Aggregate(l.Entries)
	rank := ResolveRank(agg.XPTotal)
	breakdown := Breakdown(l.Tail(classWindow))

	p := Profile{
		Name:           name,
		Title:          rank.Title,
		Level:          rank.Level,
		XPTotal:        agg.XPTotal,
		XPNextLevel:    rank.NextXP,
		Class:          ResolveClass(breakdown),
		ClassBreakdown: breakdown,
		AvatarTier:     rank.AvatarTier,
		Milestones:     []milestone.Milestone{},
		MomentumMult:   agg.MomentumMult,
		CurrentStreak:  agg.CurrentStreak,
		CurrentChain:   agg.CurrentChain,
		LongestChain:   agg.LongestChain,
		LongestStreak:  agg.LongestStreak,
		Days:           agg.Days,
		RawTotal:       agg.RawTotal,
		UpdatedAt:      now.UTC(),
	}
	if ev != nil {
		p.Milestones = ev.Evaluate(l.Entries)
	}
	if last, ok := l.Last(); ok {
		p.LastDate = last.Date
		p.LastGrade = last.V3Grade
	}
	return p
}

// Writer persists the profile snapshot as an indented JSON file.
type Writer struct {
	path string
}

// Write atomically replaces the profile file.
func (w *Writer) Write(p Profile) error {
	content, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return ledger.WriteFileAtomic(w.path, append(content, '\n'))
}

// Read loads the last written profile.
func (w *Writer) Read() (Profile, error) {
	var p Profile
	content, err := os.ReadFile(w.path)
	if err != nil {
		return p, err
	}
	err = json.Unmarshal(content, &p)
	return p, err
}

// NewWriter creates a Writer for path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}
