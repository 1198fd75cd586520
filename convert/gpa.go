package convert

// NormalizeGPA maps a GPA on an arbitrary grading scale onto 4.0. A nil or
// zero GPA (or scale) normalizes to 0. The result is clamped to [0, 4].
func NormalizeGPA(gpa, scale *float64) float64 {
	if gpa == nil || scale == nil || *gpa == 0 || *scale == 0 {
		return 0
	}
	g, s := *gpa, *scale
	var out float64
	switch s {
	case 4.0:
		out = g
	case 4.3, 4.5, 5.0, 100:
		out = g / s * 4.0
	case 9.0:
		// Korean grade-number scale: 1 is best, 9 is worst.
		out = koreanGrade(g)
	default:
		out = g / s * 4.0
	}
	if out < 0 {
		return 0
	}
	if out > 4.0 {
		return 4.0
	}
	return out
}

func koreanGrade(g float64) float64 {
	switch {
	case g <= 1:
		return 4.0
	case g <= 2:
		return 3.7
	case g <= 3:
		return 3.3
	case g <= 4:
		return 3.0
	case g <= 5:
		return 2.7
	case g <= 6:
		return 2.3
	case g <= 7:
		return 2.0
	case g <= 8:
		return 1.5
	default:
		return 0
	}
}
