package score

// Grade is a letter grade of a scored day.
type Grade string

const (
	GradeSPlus Grade = "S+"
	GradeS     Grade = "S"
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
)

// Threshold is an inclusive lower bound of a grade.
type Threshold struct {
	Min   float64
	Grade Grade
}

// V3Thresholds grade v3_xp, highest first.
var V3Thresholds = []Threshold{
	{1200, GradeSPlus},
	{850, GradeS},
	{600, GradeAPlus},
	{400, GradeA},
	{200, GradeB},
	{75, GradeC},
}

// V2Thresholds grade the raw score the way the legacy engine did, highest first.
// Kept only so older dashboards can keep rendering v2_grade.
var V2Thresholds = []Threshold{
	{850, GradeSPlus},
	{600, GradeS},
	{450, GradeAPlus},
	{300, GradeA},
	{150, GradeB},
	{50, GradeC},
}

// Lookup walks table from the highest threshold down and returns the first grade whose
// bound is <= value. Values below every bound grade D.
func Lookup(table []Threshold, value float64) Grade {
	for _, t := range table {
		if value >= t.Min {
			return t.Grade
		}
	}
	return GradeD
}

// GradeForXP returns the v3 grade of a day's XP.
func GradeForXP(xp int64) Grade {
	return Lookup(V3Thresholds, float64(xp))
}

// LegacyGrade returns the v2 grade of a raw score.
func LegacyGrade(rawScore float64) Grade {
	return Lookup(V2Thresholds, rawScore)
}

var gradeRank = map[Grade]int{
	GradeD:     0,
	GradeC:     1,
	GradeB:     2,
	GradeA:     3,
	GradeAPlus: 4,
	GradeS:     5,
	GradeSPlus: 6,
}

// Rank orders grades from D (0) to S+ (6). Unknown grades rank -1.
func (g Grade) Rank() int {
	r, ok := gradeRank[g]
	if !ok {
		return -1
	}
	return r
}

// Valid reports whether g is one of the known grades.
func (g Grade) Valid() bool {
	return g.Rank() >= 0
}

// AtLeast reports whether g ranks at or above other.
func (g Grade) AtLeast(other Grade) bool {
	return g.Rank() >= other.Rank()
}
