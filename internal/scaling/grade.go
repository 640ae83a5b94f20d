// Package scaling simulates bucking a stem into graded logs and caches the
// resulting merchantable volumes in per-species DBH by height tables.
package scaling

import "gonum.org/v1/gonum/floats"

// Grade is a log sort. Grades are ordered from most to least valuable.
type Grade int

const (
	Grade2Saw Grade = iota
	Grade3Saw
	Grade4Saw
)

// NonMerchantable marks a log that meets no grade's minimums.
const NonMerchantable Grade = -1

// GradeCount is the number of merchantable grades.
const GradeCount = 3

// Grades lists merchantable grades in priority order.
var Grades = [GradeCount]Grade{Grade2Saw, Grade3Saw, Grade4Saw}

func (g Grade) String() string {
	switch g {
	case Grade2Saw:
		return "2S"
	case Grade3Saw:
		return "3S"
	case Grade4Saw:
		return "4S"
	default:
		return "NM"
	}
}

// GradedVolume holds per-grade cubic volume (m³), Scribner volume (board
// feet) and log counts. Log counts are real valued because interpolated and
// expansion-weighted counts are fractional.
type GradedVolume struct {
	Cubic    [GradeCount]float64 `json:"cubic"`
	Scribner [GradeCount]float64 `json:"scribner"`
	Logs     [GradeCount]float64 `json:"logs"`
}

// TotalCubic sums cubic volume across grades.
func (v GradedVolume) TotalCubic() float64 { return floats.Sum(v.Cubic[:]) }

// TotalScribner sums Scribner volume across grades.
func (v GradedVolume) TotalScribner() float64 { return floats.Sum(v.Scribner[:]) }

// TotalLogs sums log counts across grades.
func (v GradedVolume) TotalLogs() float64 { return floats.Sum(v.Logs[:]) }

// AddScaled accumulates weight * other into v.
func (v *GradedVolume) AddScaled(weight float64, other GradedVolume) {
	floats.AddScaled(v.Cubic[:], weight, other.Cubic[:])
	floats.AddScaled(v.Scribner[:], weight, other.Scribner[:])
	floats.AddScaled(v.Logs[:], weight, other.Logs[:])
}

// IsZero reports whether every quantity is zero.
func (v GradedVolume) IsZero() bool {
	return v == GradedVolume{}
}
