package score

import (
	"fmt"
	"math"
	"testing"

	"progression/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(date string, raw float64, active bool) metrics.DayMetrics {
	return metrics.New(date, raw, active)
}

func TestGradeForXP_Boundaries(t *testing.T) {
	tests := []struct {
		xp    int64
		grade Grade
	}{
		{0, GradeD},
		{74, GradeD},
		{75, GradeC},
		{199, GradeC},
		{200, GradeB},
		{399, GradeB},
		{400, GradeA},
		{599, GradeA},
		{600, GradeAPlus},
		{849, GradeAPlus},
		{850, GradeS},
		{1199, GradeS},
		{1200, GradeSPlus},
		{50000, GradeSPlus},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.grade, GradeForXP(tt.xp), "xp=%d", tt.xp)
	}
}

func TestLegacyGrade(t *testing.T) {
	assert.Equal(t, GradeD, LegacyGrade(49))
	assert.Equal(t, GradeC, LegacyGrade(50))
	assert.Equal(t, GradeB, LegacyGrade(150))
	assert.Equal(t, GradeA, LegacyGrade(300))
	assert.Equal(t, GradeAPlus, LegacyGrade(450))
	assert.Equal(t, GradeS, LegacyGrade(600))
	assert.Equal(t, GradeSPlus, LegacyGrade(850))
}

func TestGrade_Rank(t *testing.T) {
	assert.True(t, GradeSPlus.AtLeast(GradeAPlus))
	assert.True(t, GradeAPlus.AtLeast(GradeAPlus))
	assert.False(t, GradeA.AtLeast(GradeAPlus))
	assert.False(t, Grade("Z").Valid())
	assert.Equal(t, -1, Grade("").Rank())
}

func TestNextMomentum(t *testing.T) {
	p := DefaultParams()

	assert.InDelta(t, 1.05, NextMomentum(1.0, GradeSPlus, p), 1e-12, "strong day raises momentum")
	assert.InDelta(t, 1.05, NextMomentum(1.0, GradeAPlus, p), 1e-12, "A+ is strong")
	assert.InDelta(t, 1.5, NextMomentum(1.48, GradeS, p), 1e-12, "ceiling")
	assert.InDelta(t, 1.2, NextMomentum(1.2, GradeA, p), 1e-12, "A holds")
	assert.InDelta(t, 1.08, NextMomentum(1.2, GradeB, p), 1e-12, "B decays")
	assert.InDelta(t, 1.0, NextMomentum(1.05, GradeD, p), 1e-12, "decay floors at baseline")
}

func TestCarryMomentum_GapDecays(t *testing.T) {
	p := DefaultParams()
	// strong day, then two missing days
	m := carryMomentum(1.4, GradeS, 3, p)
	assert.InDelta(t, math.Max(1.4*1.05*0.9*0.9, 1.0), m, 1e-12)
}

func TestAdvanceProgress(t *testing.T) {
	first := AdvanceProgress(nil, 0, false, 100, true)
	assert.Equal(t, Progress{Chain: 1, Streak: 1}, first)

	firstIdle := AdvanceProgress(nil, 0, false, 0, false)
	assert.Equal(t, Progress{Chain: 1, Streak: 0}, firstIdle)

	prev := Progress{Chain: 3, Streak: 4}
	assert.Equal(t, Progress{Chain: 4, Streak: 5}, AdvanceProgress(&prev, 100, true, 100, true), "equal base extends chain")
	assert.Equal(t, Progress{Chain: 1, Streak: 5}, AdvanceProgress(&prev, 100, true, 99.9, true), "lower base resets chain")
	assert.Equal(t, Progress{Chain: 4, Streak: 0}, AdvanceProgress(&prev, 100, true, 150, false), "inactive resets streak")
	assert.Equal(t, Progress{Chain: 1, Streak: 1}, AdvanceProgress(&prev, 100, false, 150, true), "gap resets both")
}

func TestProgressBonuses(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 0.0, AscendingBonus(1, p))
	assert.InDelta(t, 0.10, AscendingBonus(3, p), 1e-12)
	assert.InDelta(t, 0.50, AscendingBonus(40, p), 1e-12)

	assert.Equal(t, 0.0, StreakBonus(0, p))
	assert.Equal(t, 0.0, StreakBonus(1, p))
	assert.InDelta(t, 0.04, StreakBonus(3, p), 1e-12)
	assert.InDelta(t, 0.30, StreakBonus(100, p), 1e-12)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-0.3, 0.2))
	assert.Equal(t, 0.0, Clamp(math.NaN(), 0.2))
	assert.Equal(t, 0.2, Clamp(0.7, 0.2))
	assert.Equal(t, 0.1, Clamp(0.1, 0.2))
	assert.Equal(t, 0.0, Clamp(0.1, -1))
}

func TestQualityBonus(t *testing.T) {
	p := DefaultParams()

	bonus, diversity, ratio := QualityBonus(nil, 0, 0, p)
	assert.Equal(t, 0.0, bonus)
	assert.Equal(t, 0.0, diversity)
	assert.Equal(t, 0.0, ratio)

	bonus, diversity, ratio = QualityBonus([]string{"a", "b", "a", "c", "d"}, 5, 1, p)
	assert.InDelta(t, 0.5, diversity, 1e-12)
	assert.InDelta(t, 0.2, ratio, 1e-12)
	assert.InDelta(t, 0.5*0.15+0.2*0.10, bonus, 1e-12)

	types := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}
	bonus, diversity, ratio = QualityBonus(types, 9, 12, p)
	assert.Equal(t, 1.0, diversity)
	assert.Equal(t, 1.0, ratio, "ratio is capped at 1")
	assert.InDelta(t, 0.25, bonus, 1e-12)
}

func TestEfficiencyBonus(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 0.0, EfficiencyBonus(500, 0, p), "unmeasured cost")
	assert.Equal(t, 0.0, EfficiencyBonus(500, 0.01, p))
	assert.Equal(t, 0.0, EfficiencyBonus(0, 5, p))

	low := EfficiencyBonus(100, 5, p)
	high := EfficiencyBonus(400, 5, p)
	assert.Greater(t, high, low)
	assert.InDelta(t, 0.15*(1-math.Exp(-20.0/80)), low, 1e-12)
	assert.LessOrEqual(t, EfficiencyBonus(1e9, 1, p), p.EfficiencyCap)
}

func TestVelocityBonus(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 0.0, VelocityBonus(300, 0, p), "no history")
	assert.Equal(t, 0.0, VelocityBonus(100, 200, p), "deceleration clamps to zero")
	assert.InDelta(t, 0.05, VelocityBonus(300, 200, p), 1e-12)
	assert.InDelta(t, 0.10, VelocityBonus(1000, 100, p), 1e-12)
}

func TestShipBonus(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 0.0, ShipBonus(3, 0, p))
	assert.InDelta(t, 0.05, ShipBonus(2, 4, p), 1e-12)
	assert.InDelta(t, 0.10, ShipBonus(9, 4, p), 1e-12)
}

func TestBuild_FirstDay(t *testing.T) {
	p := DefaultParams()

	entry, carry, err := Build(nil, day("2026-01-01", 500, true), p)
	require.NoError(t, err)

	assert.Equal(t, 1.0, entry.MomentumMult)
	assert.Equal(t, 500.0, entry.BaseScore)
	assert.Equal(t, 1, entry.AscendingChain)
	assert.Equal(t, 1, entry.StreakDays)
	assert.Equal(t, 0.0, entry.TotalBonus)
	assert.Equal(t, 1.0, entry.TotalMult)
	assert.Equal(t, int64(500), entry.V3XP)
	assert.Equal(t, GradeA, entry.V3Grade)
	assert.Equal(t, GradeAPlus, entry.V2Grade, "legacy table grades the raw score")

	require.NotNil(t, carry)
	assert.Equal(t, GradeA, carry.Grade)
	assert.Equal(t, 500.0, carry.trailingAverage())
}

func TestBuild_SecondDayAfterStrongDay(t *testing.T) {
	p := DefaultParams()
	dayOne := Entry{
		Date:           "2026-01-01",
		Active:         true,
		RawScore:       500,
		MomentumMult:   1.0,
		BaseScore:      500,
		AscendingChain: 1,
		StreakDays:     1,
		V3XP:           1300,
		V3Grade:        GradeSPlus,
	}
	carry, err := Fold([]Entry{dayOne}, p)
	require.NoError(t, err)

	entry, _, err := Build(carry, day("2026-01-02", 300, true), p)
	require.NoError(t, err)

	assert.InDelta(t, 1.05, entry.MomentumMult, 1e-12)
	assert.InDelta(t, 315.0, entry.BaseScore, 1e-9)
	assert.Equal(t, 1, entry.AscendingChain, "315 < 500 resets the chain")
	assert.Equal(t, 2, entry.StreakDays)
}

func TestBuild_RejectsNonIncreasingDate(t *testing.T) {
	p := DefaultParams()
	_, carry, err := Build(nil, day("2026-01-05", 100, true), p)
	require.NoError(t, err)

	_, _, err = Build(carry, day("2026-01-05", 100, true), p)
	assert.ErrorIs(t, err, ErrNotAfter)

	_, _, err = Build(carry, day("2026-01-04", 100, true), p)
	assert.ErrorIs(t, err, ErrNotAfter)
}

func TestBuild_InvalidInput(t *testing.T) {
	m := day("2026-01-01", 10, true)
	m.Active = nil

	_, carry, err := Build(nil, m, DefaultParams())
	var inputErr *metrics.InputError
	assert.ErrorAs(t, err, &inputErr)
	assert.Nil(t, carry)
}

func TestBuild_RejectsOversizedRawScore(t *testing.T) {
	_, carry, err := Build(nil, day("2026-01-01", 1e19, true), DefaultParams())
	var inputErr *metrics.InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Nil(t, carry)
}

func TestBuild_LargestRawScoreKeepsXPPositive(t *testing.T) {
	p := DefaultParams()
	entry, carry, err := Build(nil, day("2026-01-01", metrics.MaxRawScore, true), p)
	require.NoError(t, err)
	assert.Positive(t, entry.V3XP)
	assert.Equal(t, GradeSPlus, entry.V3Grade)

	entry, _, err = Build(carry, day("2026-01-02", metrics.MaxRawScore, true), p)
	require.NoError(t, err)
	assert.Positive(t, entry.V3XP)
	assert.LessOrEqual(t, entry.V3XP, int64(MaxXP))
}

func TestCarry_TrailingAverageKeepsWindow(t *testing.T) {
	p := DefaultParams()
	p.VelocityWindow = 3

	var carry *Carry
	for i, raw := range []float64{1000, 10, 20, 30} {
		var err error
		_, carry, err = Build(carry, day(fmt.Sprintf("2026-02-%02d", i+1), raw, true), p)
		require.NoError(t, err)
	}
	assert.InDelta(t, 20.0, carry.trailingAverage(), 1e-12)
}

func TestClampXP(t *testing.T) {
	assert.Equal(t, int64(0), ClampXP(-3))
	assert.Equal(t, int64(0), ClampXP(math.NaN()))
	assert.Equal(t, int64(1001), ClampXP(1000.5))
	assert.Equal(t, int64(MaxXP), ClampXP(1e19))
	assert.Equal(t, int64(MaxXP), ClampXP(math.Inf(1)))
}

func TestBuild_GapBreaksStreakAndChain(t *testing.T) {
	p := DefaultParams()
	entries, err := Replay([]metrics.DayMetrics{
		day("2026-01-01", 100, true),
		day("2026-01-02", 120, true),
		day("2026-01-05", 200, true),
	}, p)
	require.NoError(t, err)

	assert.Equal(t, 2, entries[1].AscendingChain)
	assert.Equal(t, 2, entries[1].StreakDays)
	assert.Equal(t, 1, entries[2].AscendingChain)
	assert.Equal(t, 1, entries[2].StreakDays)
}

func TestBuild_InactiveDay(t *testing.T) {
	p := DefaultParams()
	entries, err := Replay([]metrics.DayMetrics{
		day("2026-01-01", 100, true),
		day("2026-01-02", 0, false),
		day("2026-01-03", 50, true),
	}, p)
	require.NoError(t, err)

	assert.Equal(t, 0, entries[1].StreakDays)
	assert.Equal(t, int64(0), entries[1].V3XP)
	assert.Equal(t, 1, entries[2].StreakDays)
	assert.Equal(t, 2, entries[2].AscendingChain, "50 >= 0 extends the chain")
}

func sampleInputs(n int) []metrics.DayMetrics {
	inputs := make([]metrics.DayMetrics, 0, n)
	for i := 0; i < n; i++ {
		raw := float64((i*137)%900 + (i%3)*40)
		m := day(fmt.Sprintf("2026-02-%02d", i+1), raw, i%5 != 4)
		m.Types = []string{"script", "x_final", "client_research"}[:i%3+1]
		m.HighValue = i % 2
		m.Finalized = i % 3
		m.Drafted = 2
		m.Cost = float64(i%4) * 1.5
		inputs = append(inputs, m)
	}
	return inputs
}

func TestReplay_Invariants(t *testing.T) {
	p := DefaultParams()
	entries, err := Replay(sampleInputs(28), p)
	require.NoError(t, err)
	require.Len(t, entries, 28)

	for i, e := range entries {
		assert.GreaterOrEqual(t, e.V3XP, int64(0), e.Date)
		assert.GreaterOrEqual(t, e.TotalMult, 1.0, e.Date)
		assert.GreaterOrEqual(t, e.AscendingChain, 1, e.Date)
		assert.GreaterOrEqual(t, e.MomentumMult, p.MomentumBaseline, e.Date)
		assert.LessOrEqual(t, e.MomentumMult, p.MomentumCeiling, e.Date)
		for _, b := range []float64{e.AscendingBonus, e.StreakBonus, e.QualityBonus, e.EfficiencyBonus, e.VelocityBonus, e.ShipBonus} {
			assert.GreaterOrEqual(t, b, 0.0, e.Date)
		}
		assert.InDelta(t, e.AscendingBonus+e.StreakBonus+e.QualityBonus+e.EfficiencyBonus+e.VelocityBonus+e.ShipBonus, e.TotalBonus, 1e-12)

		if !e.Active {
			assert.Equal(t, 0, e.StreakDays, e.Date)
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if e.BaseScore < prev.BaseScore {
			assert.Equal(t, 1, e.AscendingChain, e.Date)
		}
		if e.Active {
			assert.Equal(t, prev.StreakDays+1, e.StreakDays, e.Date)
		}
		assert.Equal(t, NextMomentum(prev.MomentumMult, prev.V3Grade, p), e.MomentumMult, e.Date)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	p := DefaultParams()
	inputs := sampleInputs(10)
	history, err := Replay(inputs[:9], p)
	require.NoError(t, err)

	carry, err := Fold(history, p)
	require.NoError(t, err)

	first, _, err := Build(carry, inputs[9], p)
	require.NoError(t, err)
	second, _, err := Build(carry, inputs[9], p)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	replayed, err := Replay(inputs, p)
	require.NoError(t, err)
	assert.Equal(t, replayed[9], first, "folding stored entries matches a full replay")
}

func TestBuild_MonotonicInRawScore(t *testing.T) {
	p := DefaultParams()
	inputs := sampleInputs(8)
	history, err := Replay(inputs[:7], p)
	require.NoError(t, err)
	carry, err := Fold(history, p)
	require.NoError(t, err)

	last := int64(-1)
	for raw := 0.0; raw <= 2000; raw += 7.5 {
		m := inputs[7]
		m.RawScore = &raw
		entry, _, err := Build(carry, m, p)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, entry.V3XP, last, "raw=%v", raw)
		last = entry.V3XP
	}
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.ShipCap = -0.1
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.WeakGrade = GradeS
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.MomentumDown = 1.2
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.VelocityWindow = 0
	assert.Error(t, p.Validate())
}
