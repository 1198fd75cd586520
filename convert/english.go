// Package convert normalizes heterogeneous academic credentials onto the
// common scales the matching pipeline scores against: English test results
// onto TOEFL iBT points and GPAs onto a 4.0 scale.
package convert

import "strings"

// English test types accepted by ToTOEFL. Anything else converts to 0.
const (
	TestTOEFL    = "TOEFL"
	TestIELTS    = "IELTS"
	TestDuolingo = "DUOLINGO"
)

type breakpoint struct {
	score float64
	toefl float64
}

// Conversion tables ordered descending by source score. Between breakpoints
// the result is linearly interpolated.
var ieltsTable = []breakpoint{
	{9.0, 118}, {8.5, 115}, {8.0, 110}, {7.5, 102}, {7.0, 94},
	{6.5, 79}, {6.0, 60}, {5.5, 46}, {5.0, 35}, {4.5, 32}, {4.0, 0},
}

var duolingoTable = []breakpoint{
	{160, 120}, {150, 117}, {140, 113}, {130, 107}, {120, 100},
	{110, 92}, {100, 83}, {95, 78}, {90, 72}, {85, 66}, {80, 60},
	{75, 54}, {70, 48}, {65, 42}, {60, 36}, {55, 30}, {50, 24}, {10, 0},
}

// ToTOEFL converts a test score to TOEFL iBT points. A nil or non-positive
// score, or an unrecognized test type, converts to 0.
func ToTOEFL(testType string, score *float64) float64 {
	if score == nil || *score <= 0 {
		return 0
	}
	switch strings.ToUpper(strings.TrimSpace(testType)) {
	case TestTOEFL:
		return *score
	case TestIELTS:
		return interpolate(ieltsTable, *score)
	case TestDuolingo:
		return interpolate(duolingoTable, *score)
	default:
		return 0
	}
}

func interpolate(table []breakpoint, score float64) float64 {
	if score >= table[0].score {
		return table[0].toefl
	}
	last := table[len(table)-1]
	if score <= last.score {
		return last.toefl
	}
	for i := 0; i < len(table)-1; i++ {
		hi, lo := table[i], table[i+1]
		if score == hi.score {
			return hi.toefl
		}
		if score < hi.score && score > lo.score {
			ratio := (score - lo.score) / (hi.score - lo.score)
			return lo.toefl + ratio*(hi.toefl-lo.toefl)
		}
	}
	return last.toefl
}
