// Package scoring computes the six-factor fit score for a candidate
// program, plus path-optimization bonuses and risk penalties that adjust
// the final total.
package scoring

import (
	"strings"

	"github.com/bbiangul/go-match/convert"
	"github.com/bbiangul/go-match/store"
)

// Weights distributes the six factors. Each factor contributes
// ratio * weight * 100 points.
type Weights struct {
	Academic float64 `json:"academic"`
	English  float64 `json:"english"`
	Budget   float64 `json:"budget"`
	Location float64 `json:"location"`
	Duration float64 `json:"duration"`
	Career   float64 `json:"career"`
}

// DefaultWeights returns the standard factor distribution.
func DefaultWeights() Weights {
	return Weights{
		Academic: 0.25,
		English:  0.20,
		Budget:   0.20,
		Location: 0.15,
		Duration: 0.10,
		Career:   0.10,
	}
}

// Breakdown holds the weighted points per factor.
type Breakdown struct {
	Academic float64 `json:"academic"`
	English  float64 `json:"english"`
	Budget   float64 `json:"budget"`
	Location float64 `json:"location"`
	Duration float64 `json:"duration"`
	Career   float64 `json:"career"`
}

// Total sums all six factors.
func (b Breakdown) Total() float64 {
	return b.Academic + b.English + b.Budget + b.Location + b.Duration + b.Career
}

// MinGPA returns the minimum normalized GPA a program type expects.
func MinGPA(programType string) float64 {
	switch strings.ToLower(programType) {
	case "university":
		return 3.0
	case "community_college":
		return 2.0
	case "vocational":
		return 1.0
	default:
		return 2.5
	}
}

// MinEnglish returns the minimum TOEFL score a program type expects.
func MinEnglish(programType string) float64 {
	switch strings.ToLower(programType) {
	case "university":
		return 80
	case "community_college":
		return 61
	case "vocational":
		return 45
	default:
		return 60
	}
}

// Score computes the weighted six-factor breakdown for one program.
func Score(st *store.Student, pref *store.Preference, p store.Program, school *store.School, w Weights) Breakdown {
	return Breakdown{
		Academic: academicRatio(st, p) * w.Academic * 100,
		English:  englishRatio(st, p) * w.English * 100,
		Budget:   budgetRatio(pref, p, school) * w.Budget * 100,
		Location: locationRatio(pref, school) * w.Location * 100,
		Duration: durationRatio(pref, p) * w.Duration * 100,
		Career:   careerRatio(pref, p) * w.Career * 100,
	}
}

// academicRatio measures how far the student's GPA clears the program
// minimum, relative to the full 4.0 scale.
func academicRatio(st *store.Student, p store.Program) float64 {
	gpa := convert.NormalizeGPA(st.GPA, st.GPAScale)
	surplus := gpa - MinGPA(p.Type)
	if surplus < 0 {
		surplus = 0
	}
	return clamp01(surplus / 4.0)
}

// englishRatio measures the TOEFL surplus over the program minimum,
// relative to the 120-point maximum.
func englishRatio(st *store.Student, p store.Program) float64 {
	converted := convert.ToTOEFL(st.EnglishTestType, st.EnglishScore)
	surplus := converted - MinEnglish(p.Type)
	if surplus < 0 {
		surplus = 0
	}
	return clamp01(surplus / 120.0)
}

// budgetRatio measures budget headroom after total cost. No budget
// preference scores neutral.
func budgetRatio(pref *store.Preference, p store.Program, school *store.School) float64 {
	if pref == nil || pref.Budget == nil || *pref.Budget <= 0 {
		return 0.5
	}
	surplus := *pref.Budget - TotalCost(p, school)
	if surplus < 0 {
		surplus = 0
	}
	return clamp01(float64(surplus) / float64(*pref.Budget))
}

// TotalCost is the annual cost of a program: program tuition when set,
// otherwise school tuition, plus the school's living cost.
func TotalCost(p store.Program, school *store.School) int {
	tuition := 0
	switch {
	case p.Tuition != nil:
		tuition = *p.Tuition
	case school != nil && school.Tuition != nil:
		tuition = *school.Tuition
	}
	living := 0
	if school != nil && school.LivingCost != nil {
		living = *school.LivingCost
	}
	return tuition + living
}

// locationRatio compares the preferred location against the school's city
// and state. No preference scores neutral.
func locationRatio(pref *store.Preference, school *store.School) float64 {
	if pref == nil || pref.TargetLocation == "" {
		return 0.5
	}
	target := strings.ToLower(pref.TargetLocation)
	city, state := "", ""
	if school != nil {
		city = strings.ToLower(school.City)
		state = strings.ToLower(school.State)
	}
	switch {
	case city != "" && strings.Contains(target, city):
		return 1.0
	case state != "" && strings.Contains(target, state):
		return 0.7
	case state != "" && strings.Contains(state, target):
		return 0.7
	default:
		return 0.0
	}
}

// durationRatio infers duration fit from the target program type. A
// community-college target tolerates vocational programs; a university
// target gives partial credit to community colleges as a transfer route.
func durationRatio(pref *store.Preference, p store.Program) float64 {
	target := ""
	if pref != nil {
		target = strings.ToLower(pref.TargetProgramType)
	}
	programType := strings.ToLower(p.Type)
	switch {
	case target != "" && target == programType:
		return 1.0
	case target == "community_college" && programType == "vocational":
		return 0.7
	case target == "university" && programType == "community_college":
		return 0.5
	default:
		return 0.3
	}
}

// roleWords are generic job-title words used for career keyword matching.
var roleWords = []string{"engineer", "developer", "designer", "analyst", "manager"}

// careerRatio matches the target major and career goal against the program
// name: +0.6 for a major keyword hit, +0.4 for a role word present in both
// goal and program name (+0.1 when the goal matches nothing).
func careerRatio(pref *store.Preference, p store.Program) float64 {
	major, goal := "", ""
	if pref != nil {
		major = strings.ToLower(pref.TargetMajor)
		goal = strings.ToLower(pref.CareerGoal)
	}
	programName := strings.ToLower(p.Name)

	score := 0.0
	if major != "" {
		for _, kw := range splitKeywords(major) {
			if len(kw) > 2 && strings.Contains(programName, kw) {
				score += 0.6
				break
			}
		}
	}
	if goal != "" {
		matched := false
		for _, role := range roleWords {
			if strings.Contains(goal, role) && strings.Contains(programName, role) {
				matched = true
				break
			}
		}
		if matched {
			score += 0.4
		} else {
			score += 0.1
		}
	}
	return clamp01(score)
}

func splitKeywords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '/'
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
