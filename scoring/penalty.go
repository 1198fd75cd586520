package scoring

import (
	"github.com/bbiangul/go-match/convert"
	"github.com/bbiangul/go-match/store"
)

// Penalty deducts points for risk factors:
//
//	acceptance rate under 30%        -> -15
//	english surplus within 5 points  -> -10
//	budget surplus within $3000      -> -10
//	work intent unclear              -> -5
//
// The result is zero or negative.
func Penalty(st *store.Student, pref *store.Preference, p store.Program, school *store.School) float64 {
	penalty := 0.0

	if highCompetition(school) {
		penalty -= 15
	}
	if englishMarginal(st, p) {
		penalty -= 10
	}
	if budgetMarginal(pref, p, school) {
		penalty -= 10
	}
	if !hasWorkIntent(pref) {
		penalty -= 5
	}
	return penalty
}

func highCompetition(school *store.School) bool {
	if school == nil || school.AcceptanceRate == nil {
		return false
	}
	return *school.AcceptanceRate < 30
}

// englishMarginal is true when the student clears the program minimum by
// five points or less.
func englishMarginal(st *store.Student, p store.Program) bool {
	converted := convert.ToTOEFL(st.EnglishTestType, st.EnglishScore)
	surplus := converted - MinEnglish(p.Type)
	return surplus >= 0 && surplus <= 5
}

// budgetMarginal is true when the budget clears total cost by $3000 or
// less. No budget preference means no penalty.
func budgetMarginal(pref *store.Preference, p store.Program, school *store.School) bool {
	if pref == nil || pref.Budget == nil {
		return false
	}
	surplus := *pref.Budget - TotalCost(p, school)
	return surplus >= 0 && surplus <= 3000
}
