package milestone

import (
	"log/slog"

	"progression/internal/score"
)

// Milestone is an unlocked achievement.
type Milestone struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	// UnlockedAt — date of the first ledger day on which the condition held.
	UnlockedAt string `json:"unlocked_at"`
}

// Evaluator unlocks milestones by replaying rules over a ledger.
type Evaluator struct {
	rules []Rule // rules in declaration order
}

// Evaluate folds entries oldest first and checks every still-locked rule after each
// day. A rule that fails at runtime is logged and skipped for that day.
// The result follows rule declaration order and only holds unlocked milestones.
func (ev *Evaluator) Evaluate(entries []score.Entry) []Milestone {
	unlockedAt := make(map[string]string, len(ev.rules))

	var facts Facts
	for _, e := range entries {
		facts = facts.Add(e)
		for i := range ev.rules {
			rule := &ev.rules[i]
			if _, done := unlockedAt[rule.ID]; done {
				continue
			}
			ok, err := rule.Eval(facts)
			if err != nil {
				slog.Error("milestone eval", "error", err, "milestone", rule.ID, "date", e.Date)
				continue
			}
			if ok {
				unlockedAt[rule.ID] = e.Date
			}
		}
	}

	milestones := make([]Milestone, 0, len(unlockedAt))
	for _, rule := range ev.rules {
		date, ok := unlockedAt[rule.ID]
		if !ok {
			continue
		}
		milestones = append(milestones, Milestone{
			ID:          rule.ID,
			Title:       rule.Title,
			Description: rule.Description,
			UnlockedAt:  date,
		})
	}
	return milestones
}

// Rules returns the number of loaded rules.
func (ev *Evaluator) Rules() int {
	return len(ev.rules)
}

// NewEvaluator creates an Evaluator over initialized rules.
func NewEvaluator(rules []Rule) *Evaluator {
	return &Evaluator{rules: rules}
}
