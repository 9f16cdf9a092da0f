package metrics

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayMetrics_Validate(t *testing.T) {
	valid := New("2026-03-01", 120, true)
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(m *DayMetrics)
		reason string
	}{
		{"missing date", func(m *DayMetrics) { m.Date = "" }, "date must be specified"},
		{"bad date", func(m *DayMetrics) { m.Date = "01/03/2026" }, "YYYY-MM-DD"},
		{"missing raw score", func(m *DayMetrics) { m.RawScore = nil }, "raw_score must be specified"},
		{"missing active", func(m *DayMetrics) { m.Active = nil }, "active must be specified"},
		{"negative raw score", func(m *DayMetrics) { v := -1.0; m.RawScore = &v }, "raw_score"},
		{"NaN raw score", func(m *DayMetrics) { v := math.NaN(); m.RawScore = &v }, "raw_score"},
		{"huge raw score", func(m *DayMetrics) { v := 1e19; m.RawScore = &v }, "must not exceed"},
		{"infinite cost", func(m *DayMetrics) { m.Cost = math.Inf(1) }, "cost"},
		{"negative drafted", func(m *DayMetrics) { m.Drafted = -2 }, "drafted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New("2026-03-01", 120, true)
			tt.mutate(&m)
			err := m.Validate()
			var inputErr *InputError
			require.ErrorAs(t, err, &inputErr)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestDayMetrics_ZeroActivityIsValid(t *testing.T) {
	m := New("2026-03-02", 0, false)
	assert.NoError(t, m.Validate(), "an intentional zero day is valid input")
	assert.Equal(t, 0.0, m.Raw())
	assert.False(t, m.IsActive())
}

func TestDayMetrics_AccomplishmentCount(t *testing.T) {
	m := New("2026-03-01", 10, true)
	m.Types = []string{"script", "x_final", "script"}
	assert.Equal(t, 3, m.AccomplishmentCount())

	m.Accomplishments = 5
	assert.Equal(t, 5, m.AccomplishmentCount())
}

func TestDecode(t *testing.T) {
	m, err := Decode([]byte(`{"date":"2026-03-01","raw_score":250.5,"active":true,"types":["script"],"drafted":2,"finalized":1}`))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", m.Date)
	assert.Equal(t, 250.5, m.Raw())
	assert.True(t, m.IsActive())
	assert.Equal(t, []string{"script"}, m.Types)
	assert.Equal(t, 2, m.Drafted)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`{"date":"2026-03-01","active":true}`))
	var inputErr *InputError
	assert.ErrorAs(t, err, &inputErr, "missing raw_score")

	_, err = Decode([]byte(`{"date":"2026-03-01","raw_score":1,"active":true,"rawscore":2}`))
	assert.ErrorAs(t, err, &inputErr, "unknown field")

	_, err = Decode([]byte(`not json`))
	assert.ErrorAs(t, err, &inputErr)
}

const dailyLog = `{
  "date": "2026-03-04",
  "stats": {"output_score": 420, "finals_count": 2, "draft_count": 4, "agent_cost": 3.5, "words_today": 1800},
  "git_summary": {"commits_today": 12},
  "accomplishments": [
    {"type": "script", "value_score": 20},
    {"type": "linkedin_final", "value_score": 10},
    {"type": "client_research", "value_score": 15}
  ]
}`

func TestFromDailyLog(t *testing.T) {
	m, err := FromDailyLog([]byte(dailyLog))
	require.NoError(t, err)

	assert.Equal(t, "2026-03-04", m.Date)
	assert.Equal(t, 420.0, m.Raw())
	assert.True(t, m.IsActive())
	assert.Equal(t, 3, m.Accomplishments)
	assert.Equal(t, []string{"script", "linkedin_final", "client_research"}, m.Types)
	assert.Equal(t, 2, m.HighValue)
	assert.Equal(t, 2, m.Finalized)
	assert.Equal(t, 4, m.Drafted)
	assert.Equal(t, 3.5, m.Cost)
	assert.Equal(t, 12, m.Commits)
	assert.Equal(t, 1800, m.Words)
}

func TestFromDailyLog_MissingScore(t *testing.T) {
	_, err := FromDailyLog([]byte(`{"date":"2026-03-04","stats":{}}`))
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "2026-03-04", inputErr.Date)
}

func TestFromDailyLog_QuietDay(t *testing.T) {
	m, err := FromDailyLog([]byte(`{"date":"2026-03-05","stats":{"output_score":0}}`))
	require.NoError(t, err)
	assert.False(t, m.IsActive())
	assert.Empty(t, m.Types)
}

func TestFromDailyLog_UntypedAccomplishmentIsActive(t *testing.T) {
	m, err := FromDailyLog([]byte(`{"date":"2026-03-06","stats":{"output_score":0},"accomplishments":[{"value_score":3}]}`))
	require.NoError(t, err)
	assert.True(t, m.IsActive())
	assert.Equal(t, 1, m.Accomplishments)
	assert.Empty(t, m.Types)
}

func TestDirSource_Fetch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2026-03-04.json"), []byte(dailyLog), 0o644))

	src := NewDirSource(dir, FormatDailyLog)
	m, err := src.Fetch(context.Background(), "2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, 420.0, m.Raw())

	_, err = src.Fetch(context.Background(), "2026-03-05")
	var inputErr *InputError
	assert.ErrorAs(t, err, &inputErr, "missing file is an input error")
}

func TestDirSource_DateMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2026-03-05.json"), []byte(dailyLog), 0o644))

	_, err := NewDirSource(dir, FormatDailyLog).Fetch(context.Background(), "2026-03-05")
	var inputErr *InputError
	assert.ErrorAs(t, err, &inputErr)
}

func TestDirSource_RejectsMalformedDate(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "in")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "x.json"), []byte(dailyLog), 0o644))

	_, err := NewDirSource(dir, FormatDailyLog).Fetch(context.Background(), "../x")
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

func TestHTTPSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/days/2026-03-01":
			w.Write([]byte(`{"date":"2026-03-01","raw_score":90,"active":true}`))
		case "/days/2026-03-02":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/", time.Second, FormatMetrics)

	m, err := src.Fetch(context.Background(), "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, 90.0, m.Raw())

	_, err = src.Fetch(context.Background(), "2026-03-02")
	require.Error(t, err)
	var inputErr *InputError
	assert.NotErrorAs(t, err, &inputErr, "server failure is not an input error")

	_, err = src.Fetch(context.Background(), "2026-03-03")
	assert.ErrorAs(t, err, &inputErr)
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse("csv", []byte(`{}`))
	assert.Error(t, err)
}
