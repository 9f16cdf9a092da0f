package profile

import (
	"progression/internal/metrics"
	"progression/internal/score"
)

const (
	ClassBuilder    = "Builder"
	ClassScribe     = "Scribe"
	ClassStrategist = "Strategist"
	ClassAlchemist  = "Alchemist"
	ClassPolymath   = "Polymath"
)

// classWindow is the number of most recent entries the class is derived from.
const classWindow = 7

var categoryClasses = map[string]string{
	metrics.CategoryBuilder:    ClassBuilder,
	metrics.CategoryScribe:     ClassScribe,
	metrics.CategoryStrategist: ClassStrategist,
}

// Breakdown counts accomplishment tags per category.
func Breakdown(entries []score.Entry) map[string]int {
	counts := make(map[string]int, len(metrics.Categories))
	for _, c := range metrics.Categories {
		counts[c] = 0
	}
	for _, e := range entries {
		for _, t := range e.Inputs.Types {
			if c := metrics.CategoryOf(t); c != "" {
				counts[c]++
			}
		}
	}
	return counts
}

// ResolveClass picks the class from a category breakdown:
//
//   - Polymath when every category holds at least 20%
//   - Alchemist when two or more categories hold at least 30%
//   - otherwise the dominant category, Builder when nothing was tagged
func ResolveClass(breakdown map[string]int) string {
	total := 0
	for _, n := range breakdown {
		total += n
	}
	if total == 0 {
		return ClassBuilder
	}

	polymath := true
	above30 := 0
	dominant := metrics.Categories[0]
	for _, c := range metrics.Categories {
		share := float64(breakdown[c]) / float64(total)
		if share < 0.20 {
			polymath = false
		}
		if share >= 0.30 {
			above30++
		}
		if breakdown[c] > breakdown[dominant] {
			dominant = c
		}
	}

	switch {
	case polymath:
		return ClassPolymath
	case above30 >= 2:
		return ClassAlchemist
	default:
		return categoryClasses[dominant]
	}
}
