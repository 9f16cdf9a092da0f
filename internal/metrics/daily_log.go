package metrics

import (
	"github.com/tidwall/gjson"
)

// highValueScore is the accomplishment value_score from which an item counts as high value.
const highValueScore = 15

// FromDailyLog converts a daily-log document produced by the upstream scanner into
// DayMetrics. Only stats.output_score is mandatory; a log without it is reported as
// an *InputError instead of being treated as a zero day.
//
// Fields read:
//   - date
//   - stats.output_score, stats.finals_count, stats.draft_count, stats.agent_cost, stats.words_today
//   - accomplishments[].type, accomplishments[].value_score
//   - git_summary.commits_today
func FromDailyLog(data []byte) (DayMetrics, error) {
	if !gjson.ValidBytes(data) {
		return DayMetrics{}, NewInputError("", "daily log is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	date := doc.Get("date").String()

	score := doc.Get("stats.output_score")
	if !score.Exists() || score.Type != gjson.Number {
		return DayMetrics{}, NewInputError(date, "stats.output_score must be specified")
	}

	accomplishments := doc.Get("accomplishments")
	types := make([]string, 0, len(accomplishments.Array()))
	highValue := 0
	accomplishments.ForEach(func(_, acc gjson.Result) bool {
		if t := acc.Get("type").String(); t != "" {
			types = append(types, t)
		}
		if v := acc.Get("value_score"); v.Type == gjson.Number && v.Float() >= highValueScore {
			highValue++
		}
		return true
	})

	count := len(accomplishments.Array())
	m := New(date, score.Float(), score.Float() > 0 || count > 0)
	m.Accomplishments = count
	m.Types = types
	m.HighValue = highValue
	m.Finalized = nonNegative(doc.Get("stats.finals_count"))
	m.Drafted = nonNegative(doc.Get("stats.draft_count"))
	m.Commits = nonNegative(doc.Get("git_summary.commits_today"))
	m.Words = nonNegative(doc.Get("stats.words_today"))
	if cost := doc.Get("stats.agent_cost"); cost.Type == gjson.Number && cost.Float() > 0 {
		m.Cost = cost.Float()
	}

	if err := m.Validate(); err != nil {
		return DayMetrics{}, err
	}
	return m, nil
}

// nonNegative reads an optional count, treating missing or non-numeric values as zero.
func nonNegative(r gjson.Result) int {
	if r.Type != gjson.Number || r.Int() < 0 {
		return 0
	}
	return int(r.Int())
}
