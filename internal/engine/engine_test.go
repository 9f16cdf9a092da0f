package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"progression/internal/audit"
	"progression/internal/ledger"
	"progression/internal/metrics"
	"progression/internal/milestone"
	"progression/internal/profile"
	"progression/internal/score"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine  *Engine
	store   *ledger.FileStore
	journal *bytes.Buffer
	profile string
	dir     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	rules, err := milestone.LoadFromFile("")
	require.NoError(t, err)

	f := &fixture{
		store:   ledger.NewFileStore(filepath.Join(dir, "ledger.yaml")),
		journal: &bytes.Buffer{},
		profile: filepath.Join(dir, "profile.json"),
		dir:     dir,
	}
	f.engine = New(Config{
		Store:       f.store,
		Params:      score.DefaultParams(),
		Source:      metrics.NewDirSource(filepath.Join(dir, "in"), metrics.FormatMetrics),
		Milestones:  milestone.NewEvaluator(rules),
		Profile:     profile.NewWriter(f.profile),
		Journal:     audit.NewWriterJournal(f.journal),
		LockTimeout: 200 * time.Millisecond,
		Now:         func() time.Time { return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) },
	})
	return f
}

func TestEngine_ScoreDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.engine.ScoreDay(ctx, metrics.New("2026-07-01", 500, true))
	require.NoError(t, err)
	assert.Equal(t, int64(500), entry.V3XP)
	assert.Equal(t, score.GradeA, entry.V3Grade)

	l, err := f.engine.Ledger(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())

	p, err := profile.NewWriter(f.profile).Read()
	require.NoError(t, err)
	assert.Equal(t, int64(500), p.XPTotal)
	assert.Equal(t, "Prompt Apprentice", p.Title)
	assert.Equal(t, "2026-07-01", p.LastDate)

	assert.Contains(t, f.journal.String(), `"event":"scored"`)
}

func TestEngine_ScoreDay_DuplicateLeavesLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.ScoreDay(ctx, metrics.New("2026-07-01", 500, true))
	require.NoError(t, err)

	_, err = f.engine.ScoreDay(ctx, metrics.New("2026-07-01", 900, true))
	require.ErrorIs(t, err, ledger.ErrDuplicateDate)

	got, err := f.engine.Entry(ctx, "2026-07-01")
	require.NoError(t, err)
	assert.Equal(t, first, got)
	assert.Contains(t, f.journal.String(), `"event":"duplicate"`)
}

func TestEngine_ScoreDay_OutOfOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.ScoreDay(ctx, metrics.New("2026-07-05", 100, true))
	require.NoError(t, err)
	_, err = f.engine.ScoreDay(ctx, metrics.New("2026-07-04", 100, true))
	require.ErrorIs(t, err, ledger.ErrOutOfOrder)
	assert.Contains(t, f.journal.String(), `"event":"out_of_order"`)
}

func TestEngine_ScoreDate_MissingInputIsNotAZeroDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.ScoreDate(ctx, "2026-07-01")
	var inputErr *metrics.InputError
	require.ErrorAs(t, err, &inputErr)

	l, err := f.engine.Ledger(ctx)
	require.NoError(t, err)
	assert.Zero(t, l.Len(), "nothing may be written for unavailable input")
	assert.Contains(t, f.journal.String(), `"event":"input_rejected"`)
}

func TestEngine_ScoreDate(t *testing.T) {
	f := newFixture(t)
	in := filepath.Join(f.dir, "in")
	require.NoError(t, os.MkdirAll(in, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "2026-07-02.json"),
		[]byte(`{"date":"2026-07-02","raw_score":0,"active":false}`), 0o644))

	entry, err := f.engine.ScoreDate(context.Background(), "2026-07-02")
	require.NoError(t, err)
	assert.False(t, entry.Active)
	assert.Equal(t, 0, entry.StreakDays)
	assert.Equal(t, score.GradeD, entry.V3Grade)
}

func TestEngine_Backfill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, m := range []metrics.DayMetrics{
		metrics.New("2026-07-01", 100, true),
		metrics.New("2026-07-03", 300, true),
	} {
		_, err := f.engine.ScoreDay(ctx, m)
		require.NoError(t, err)
	}

	_, err := f.engine.Backfill(ctx, metrics.New("2026-07-02", 200, true), " ")
	require.ErrorIs(t, err, ErrReasonRequired)

	res, err := f.engine.Backfill(ctx, metrics.New("2026-07-02", 200, true), "log arrived late")
	require.NoError(t, err)
	assert.False(t, res.Replaced)
	assert.Equal(t, 1, res.Recomputed)

	last, err := f.engine.Entry(ctx, "2026-07-03")
	require.NoError(t, err)
	assert.Equal(t, 3, last.StreakDays)
	assert.Equal(t, 3, last.AscendingChain)
	assert.Contains(t, f.journal.String(), `"reason":"log arrived late"`)
}

func TestEngine_Replay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.ScoreDay(ctx, metrics.New("2026-07-01", 100, true))
	require.NoError(t, err)

	_, err = f.engine.Replay(ctx, "")
	assert.ErrorIs(t, err, ErrReasonRequired)

	changed, err := f.engine.Replay(ctx, "no-op")
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestEngine_Preview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.engine.Preview(ctx, metrics.New("2026-07-01", 500, true))
	require.NoError(t, err)
	assert.Equal(t, int64(500), entry.V3XP)

	l, err := f.engine.Ledger(ctx)
	require.NoError(t, err)
	assert.Zero(t, l.Len())
}

func TestEngine_LockedStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unlock, err := f.store.Lock(ctx)
	require.NoError(t, err)
	defer unlock()

	_, err = f.engine.ScoreDay(ctx, metrics.New("2026-07-01", 500, true))
	assert.ErrorIs(t, err, ledger.ErrLocked)
}

func TestEngine_Profile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.ScoreDay(ctx, metrics.New("2026-07-01", 500, true))
	require.NoError(t, err)

	p, err := f.engine.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Operator", p.Name)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), p.UpdatedAt)
	assert.NotEmpty(t, p.Milestones)

	require.NoError(t, os.Remove(f.profile))
	_, err = f.engine.Refresh(ctx)
	require.NoError(t, err)
	assert.FileExists(t, f.profile)
}

func TestEngine_ScoreDate_NoSource(t *testing.T) {
	e := New(Config{Store: ledger.NewFileStore(filepath.Join(t.TempDir(), "l.yaml")), Params: score.DefaultParams()})
	_, err := e.ScoreDate(context.Background(), "2026-07-01")
	assert.ErrorIs(t, err, ErrNoSource)
}
