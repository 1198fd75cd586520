package scoring

import (
	"strings"

	"github.com/bbiangul/go-match/convert"
	"github.com/bbiangul/go-match/store"
)

// Bonus grants path-optimization points for programs that fit the
// student's situation:
//
//	low GPA + tight budget      -> community college +10
//	no english + career goal    -> vocational +15
//	transfer goal + high rate   -> community college +10
//	work intent + OPT offered   -> +5
func Bonus(st *store.Student, pref *store.Preference, p store.Program, school *store.School) float64 {
	boost := 0.0
	programType := strings.ToLower(p.Type)

	if programType == "community_college" && lowGPAWithBudgetLimit(st, pref) {
		boost += 10
	}
	if programType == "vocational" && noEnglishWithCareerGoal(st, pref) {
		boost += 15
	}
	if programType == "community_college" && transferGoalWithHighRate(pref, school) {
		boost += 10
	}
	if p.OPTAvailable && hasWorkIntent(pref) {
		boost += 5
	}
	return boost
}

func lowGPAWithBudgetLimit(st *store.Student, pref *store.Preference) bool {
	gpa := convert.NormalizeGPA(st.GPA, st.GPAScale)
	if pref == nil || pref.Budget == nil {
		return false
	}
	return gpa < 3.0 && *pref.Budget < 30000
}

func noEnglishWithCareerGoal(st *store.Student, pref *store.Preference) bool {
	hasEnglish := st.EnglishScore != nil && *st.EnglishScore > 0
	return !hasEnglish && pref != nil && pref.CareerGoal != ""
}

func transferGoalWithHighRate(pref *store.Preference, school *store.School) bool {
	if pref == nil || !strings.Contains(strings.ToLower(pref.PreferredTrack), "transfer") {
		return false
	}
	return school != nil && school.TransferRate != nil && *school.TransferRate >= 60
}

// workIntentWords signal the student plans to work after graduating.
var workIntentWords = []string{"employment", "opt", "job"}

func hasWorkIntent(pref *store.Preference) bool {
	if pref == nil {
		return false
	}
	goal := strings.ToLower(pref.CareerGoal)
	track := strings.ToLower(pref.PreferredTrack)
	for _, w := range workIntentWords {
		if strings.Contains(goal, w) || strings.Contains(track, w) {
			return true
		}
	}
	return false
}
