package score

// Progress is the chain and streak state of a day.
type Progress struct {
	Chain  int
	Streak int
}

// AdvanceProgress computes today's ascending chain and active streak.
//
// prev is nil on the first scored day. contiguous reports whether today directly
// follows prev's day; a calendar gap breaks both counters.
//
//   - chain: prev.Chain+1 when contiguous and base >= prevBase, else 1
//   - streak: 0 when inactive, prev.Streak+1 when active and contiguous, else 1
func AdvanceProgress(prev *Progress, prevBase float64, contiguous bool, base float64, active bool) Progress {
	next := Progress{Chain: 1}
	if prev != nil && contiguous && base >= prevBase {
		next.Chain = prev.Chain + 1
	}

	switch {
	case !active:
		next.Streak = 0
	case prev != nil && contiguous:
		next.Streak = prev.Streak + 1
	default:
		next.Streak = 1
	}

	return next
}

// AscendingBonus rewards a chain beyond its first day.
func AscendingBonus(chain int, p Params) float64 {
	return Clamp(float64(chain-1)*p.AscendingStep, p.AscendingCap)
}

// StreakBonus rewards a streak beyond its first day.
func StreakBonus(streak int, p Params) float64 {
	return Clamp(float64(streak-1)*p.StreakStep, p.StreakCap)
}
