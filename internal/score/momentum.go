package score

import "math"

// NextMomentum returns today's momentum multiplier from yesterday's multiplier and grade.
//
//   - grade at or above p.StrongGrade: grows by p.MomentumUp up to p.MomentumCeiling
//   - grade at or below p.WeakGrade: decays by p.MomentumDown down to p.MomentumBaseline
//   - otherwise the multiplier holds
//
// The result is applied to today's raw score, so a run of strong days compounds.
func NextMomentum(prev float64, prevGrade Grade, p Params) float64 {
	switch {
	case prevGrade.AtLeast(p.StrongGrade):
		return math.Min(prev*p.MomentumUp, p.MomentumCeiling)
	case p.WeakGrade.AtLeast(prevGrade):
		return math.Max(prev*p.MomentumDown, p.MomentumBaseline)
	default:
		return prev
	}
}

// carryMomentum resolves the multiplier for a day that comes gap days after the
// previous entry. Every skipped day counts as a D day.
func carryMomentum(prev float64, prevGrade Grade, gap int, p Params) float64 {
	m := NextMomentum(prev, prevGrade, p)
	for i := 1; i < gap; i++ {
		m = NextMomentum(m, GradeD, p)
	}
	return m
}
