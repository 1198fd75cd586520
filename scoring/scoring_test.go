package scoring

import (
	"math"
	"testing"

	"github.com/bbiangul/go-match/store"
)

func intPtr(v int) *int       { return &v }
func fPtr(v float64) *float64 { return &v }

func baseStudent() *store.Student {
	return &store.Student{
		ID:              "stu-1",
		GPA:             fPtr(3.5),
		GPAScale:        fPtr(4.0),
		EnglishTestType: "TOEFL",
		EnglishScore:    fPtr(95),
	}
}

func basePreference() *store.Preference {
	return &store.Preference{
		StudentID:         "stu-1",
		TargetMajor:       "computer science",
		CareerGoal:        "software engineer",
		TargetLocation:    "San Jose, California",
		TargetProgramType: "community_college",
		Budget:            intPtr(30000),
	}
}

func baseProgram() store.Program {
	return store.Program{
		ID: 1, SchoolID: 1, Name: "Computer Science AA",
		Type: "community_college", Tuition: intPtr(8000),
	}
}

func baseSchool() *store.School {
	return &store.School{
		ID: 1, Name: "City College", Type: "community_college",
		State: "CA", City: "San Jose",
		Tuition: intPtr(9000), LivingCost: intPtr(10000),
	}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s: got %v, want %v", name, got, want)
	}
}

func TestScoreBreakdown(t *testing.T) {
	b := Score(baseStudent(), basePreference(), baseProgram(), baseSchool(), DefaultWeights())

	// academic: (3.5 - 2.0)/4 = 0.375 -> * 0.25 * 100 = 9.375
	approx(t, "academic", b.Academic, 9.375)
	// english: (95 - 61)/120 = 0.28333 -> * 0.20 * 100 = 5.666...
	approx(t, "english", b.English, 34.0/120.0*20.0)
	// budget: cost 8000 + 10000 = 18000, surplus 12000/30000 = 0.4 -> 8.0
	approx(t, "budget", b.Budget, 8.0)
	// location: target contains city "san jose" -> 1.0 -> 15.0
	approx(t, "location", b.Location, 15.0)
	// duration: exact type match -> 1.0 -> 10.0
	approx(t, "duration", b.Duration, 10.0)
	// career: major keyword "computer" in program name (+0.6), role word
	// "engineer" only in goal (+0.1) -> 0.7 -> 7.0
	approx(t, "career", b.Career, 7.0)

	approx(t, "total", b.Total(), 9.375+34.0/120.0*20.0+8.0+15.0+10.0+7.0)
}

func TestAcademicBelowMinimum(t *testing.T) {
	st := baseStudent()
	st.GPA = fPtr(2.5)
	p := baseProgram()
	p.Type = "university" // min 3.0

	b := Score(st, basePreference(), p, baseSchool(), DefaultWeights())
	approx(t, "academic below min", b.Academic, 0)
}

func TestBudgetNeutralWithoutPreference(t *testing.T) {
	pref := basePreference()
	pref.Budget = nil

	b := Score(baseStudent(), pref, baseProgram(), baseSchool(), DefaultWeights())
	// Neutral 0.5 -> 0.5 * 0.20 * 100 = 10.
	approx(t, "budget neutral", b.Budget, 10.0)
}

func TestLocationVariants(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   float64 // weighted points with weight 0.15
	}{
		{"city match", "san jose area", 15.0},
		{"state match", "somewhere in ca", 10.5},
		{"no match", "texas", 0.0},
		{"no preference", "", 7.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pref := basePreference()
			pref.TargetLocation = tt.target
			b := Score(baseStudent(), pref, baseProgram(), baseSchool(), DefaultWeights())
			approx(t, "location", b.Location, tt.want)
		})
	}
}

func TestDurationVariants(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		programType string
		want        float64 // ratio
	}{
		{"exact", "university", "university", 1.0},
		{"cc target vocational", "community_college", "vocational", 0.7},
		{"university target cc", "university", "community_college", 0.5},
		{"mismatch", "vocational", "university", 0.3},
		{"no target", "", "university", 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pref := basePreference()
			pref.TargetProgramType = tt.target
			p := baseProgram()
			p.Type = tt.programType
			b := Score(baseStudent(), pref, p, baseSchool(), DefaultWeights())
			approx(t, "duration", b.Duration, tt.want*0.10*100)
		})
	}
}

func TestCareerRoleWordInBoth(t *testing.T) {
	pref := basePreference()
	pref.CareerGoal = "ux designer"
	p := baseProgram()
	p.Name = "Graphic Designer Certificate"
	pref.TargetMajor = ""

	b := Score(baseStudent(), pref, p, baseSchool(), DefaultWeights())
	// Role word "designer" in both goal and program name -> 0.4 -> 4.0.
	approx(t, "career role match", b.Career, 4.0)
}

func TestBonus(t *testing.T) {
	// Low GPA + budget under 30000 + transfer goal + high transfer rate +
	// OPT intent and availability stacks all community-college bonuses.
	st := baseStudent()
	st.GPA = fPtr(2.5)
	pref := basePreference()
	pref.Budget = intPtr(25000)
	pref.PreferredTrack = "transfer then employment"
	p := baseProgram()
	p.OPTAvailable = true
	school := baseSchool()
	school.TransferRate = fPtr(70)

	// 10 (low gpa + budget) + 10 (transfer) + 5 (OPT) = 25.
	approx(t, "bonus", Bonus(st, pref, p, school), 25)
}

func TestBonusVocationalNoEnglish(t *testing.T) {
	st := baseStudent()
	st.EnglishScore = nil
	p := baseProgram()
	p.Type = "vocational"

	// 15 for vocational without english but with a career goal.
	approx(t, "vocational bonus", Bonus(st, basePreference(), p, baseSchool()), 15)
}

func TestBonusNone(t *testing.T) {
	approx(t, "no bonus", Bonus(baseStudent(), basePreference(), baseProgram(), baseSchool()), 0)
}

func TestPenalty(t *testing.T) {
	// Baseline student has no work-intent keyword: -5 only.
	approx(t, "work intent penalty",
		Penalty(baseStudent(), basePreference(), baseProgram(), baseSchool()), -5)

	// Acceptance rate 25% adds -15.
	school := baseSchool()
	school.AcceptanceRate = fPtr(25)
	approx(t, "competition penalty",
		Penalty(baseStudent(), basePreference(), baseProgram(), school), -20)

	// English surplus of 3 over the 61 minimum adds -10.
	st := baseStudent()
	st.EnglishScore = fPtr(64)
	approx(t, "marginal english penalty",
		Penalty(st, basePreference(), baseProgram(), baseSchool()), -15)

	// Budget surplus of 2000 adds -10.
	pref := basePreference()
	pref.Budget = intPtr(20000) // cost is 18000
	approx(t, "marginal budget penalty",
		Penalty(baseStudent(), pref, baseProgram(), baseSchool()), -15)

	// Work intent keyword clears the -5.
	pref = basePreference()
	pref.CareerGoal = "find a job as engineer"
	approx(t, "no penalty with work intent",
		Penalty(baseStudent(), pref, baseProgram(), baseSchool()), 0)
}

func TestWeightsSumToOne(t *testing.T) {
	w := DefaultWeights()
	sum := w.Academic + w.English + w.Budget + w.Location + w.Duration + w.Career
	approx(t, "weight sum", sum, 1.0)
}
