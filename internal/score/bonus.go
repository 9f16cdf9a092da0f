package score

import (
	"math"

	"progression/internal/metrics"
)

// Clamp bounds v to [0, limit]. NaN and negative limits yield 0.
// Every bonus goes through Clamp, so no bonus can ever subtract XP.
func Clamp(v, limit float64) float64 {
	switch {
	case math.IsNaN(v) || v <= 0 || limit <= 0:
		return 0
	case v > limit:
		return limit
	default:
		return v
	}
}

// MaxXP is the largest XP a single day can award.
const MaxXP = 1 << 53

// ClampXP rounds v to whole XP within [0, MaxXP]. NaN yields 0, +Inf yields MaxXP.
func ClampXP(v float64) int64 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= MaxXP:
		return MaxXP
	default:
		return int64(math.Round(v))
	}
}

// Bonuses are the four activity bonuses of a day.
type Bonuses struct {
	Quality        float64
	TypeDiversity  float64
	HighValueRatio float64
	Efficiency     float64
	Velocity       float64
	Ship           float64
}

// Sum returns the total activity bonus.
func (b Bonuses) Sum() float64 {
	return b.Quality + b.Efficiency + b.Velocity + b.Ship
}

// ComposeBonuses evaluates every activity bonus of m.
// trailingAvg is the average raw score of the preceding window, 0 without history.
func ComposeBonuses(m metrics.DayMetrics, trailingAvg float64, p Params) Bonuses {
	quality, diversity, ratio := QualityBonus(m.Types, m.AccomplishmentCount(), m.HighValue, p)
	return Bonuses{
		Quality:        quality,
		TypeDiversity:  diversity,
		HighValueRatio: ratio,
		Efficiency:     EfficiencyBonus(m.Raw(), m.Cost, p),
		Velocity:       VelocityBonus(m.Raw(), trailingAvg, p),
		Ship:           ShipBonus(m.Finalized, m.Drafted, p),
	}
}

// QualityBonus rewards diverse work and a high share of high-value items.
// It returns the bonus together with the diversity and high-value ratio it was built from.
func QualityBonus(types []string, accomplishments, highValue int, p Params) (bonus, diversity, ratio float64) {
	unique := make(map[string]struct{}, len(types))
	for _, t := range types {
		if t != "" {
			unique[t] = struct{}{}
		}
	}
	if p.DiversityTypes > 0 {
		diversity = Clamp(float64(len(unique))/float64(p.DiversityTypes), 1)
	}
	if accomplishments > 0 {
		ratio = Clamp(float64(highValue)/float64(accomplishments), 1)
	}

	bonus = Clamp(diversity*p.DiversityWeight+ratio*p.HighValueWeight, p.QualityCap)
	return bonus, diversity, ratio
}

// EfficiencyBonus rewards output per unit of cost on a saturating exponential curve.
// Unmeasured cost earns nothing.
func EfficiencyBonus(raw, cost float64, p Params) float64 {
	if cost <= p.EfficiencyMinCost || p.EfficiencyScale <= 0 {
		return 0
	}
	perUnit := raw / cost
	return Clamp(p.EfficiencyCap*(1-math.Exp(-perUnit/p.EfficiencyScale)), p.EfficiencyCap)
}

// VelocityBonus rewards output above the trailing average.
// Deceleration clamps to zero.
func VelocityBonus(raw, trailingAvg float64, p Params) float64 {
	if trailingAvg <= 0 {
		return 0
	}
	return Clamp((raw/trailingAvg-1)*p.VelocityGain, p.VelocityCap)
}

// ShipBonus rewards finalizing what was drafted.
func ShipBonus(finalized, drafted int, p Params) float64 {
	if drafted <= 0 {
		return 0
	}
	rate := Clamp(float64(finalized)/float64(drafted), 1)
	return Clamp(rate*p.ShipCap, p.ShipCap)
}
