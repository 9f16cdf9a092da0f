package score

import (
	"fmt"
	"time"

	"progression/internal/metrics"
	"progression/internal/utils"
)

// Carry is the accumulator threaded through the day-over-day fold: everything the
// next day needs from history. A Carry is never mutated once built.
type Carry struct {
	Date     time.Time
	Momentum float64
	Base     float64
	Grade    Grade
	Progress Progress

	// recent holds the raw scores of the last VelocityWindow entries.
	recent *utils.RingBuffer[float64]
}

// trailingAverage returns the mean of the recent raw scores, 0 for a nil or empty carry.
func (c *Carry) trailingAverage() float64 {
	if c == nil || c.recent == nil || c.recent.Len() == 0 {
		return 0
	}
	n := c.recent.Len()
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += c.recent.At(i)
	}
	return sum / float64(n)
}

// advance returns the carry that follows c once entry has been scored.
func (c *Carry) advance(day time.Time, entry Entry, p Params) *Carry {
	var recent *utils.RingBuffer[float64]
	if c != nil && c.recent != nil {
		recent = c.recent.Clone()
	} else {
		recent = utils.NewRingBuffer[float64](max(p.VelocityWindow, 1))
	}
	recent.Push(entry.RawScore)

	return &Carry{
		Date:     day,
		Momentum: entry.MomentumMult,
		Base:     entry.BaseScore,
		Grade:    entry.V3Grade,
		Progress: Progress{Chain: entry.AscendingChain, Streak: entry.StreakDays},
		recent:   recent,
	}
}

// Fold rebuilds the carry at the end of a stored entry sequence without recomputing
// any entry. It returns nil for an empty sequence.
func Fold(entries []Entry, p Params) (*Carry, error) {
	var carry *Carry
	for _, e := range entries {
		day, err := time.Parse(metrics.DateLayout, e.Date)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Date, err)
		}
		carry = carry.advance(day, e, p)
	}
	return carry, nil
}

// Replay recomputes a whole sequence of days from their inputs, oldest first.
func Replay(inputs []metrics.DayMetrics, p Params) ([]Entry, error) {
	entries := make([]Entry, 0, len(inputs))
	var carry *Carry
	for _, m := range inputs {
		entry, next, err := Build(carry, m, p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		carry = next
	}
	return entries, nil
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
