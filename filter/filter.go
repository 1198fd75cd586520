// Package filter applies hard eligibility rules to candidate programs
// before any scoring happens. A program fails on the first rule it trips,
// so every rejection carries exactly one reason.
package filter

import (
	"fmt"
	"log/slog"

	"github.com/bbiangul/go-match/convert"
	"github.com/bbiangul/go-match/store"
)

// Reason identifies which hard rule rejected a program.
type Reason string

const (
	ReasonBudgetExceeded  Reason = "BUDGET_EXCEEDED"
	ReasonVisaRequirement Reason = "VISA_REQUIREMENT"
	ReasonEnglishScore    Reason = "ENGLISH_SCORE"
	// ReasonAdmissionSeason is reserved. The catalog carries no admission
	// season data yet, so the rule is not enforced.
	ReasonAdmissionSeason Reason = "ADMISSION_SEASON"
)

// Rejection is a program that failed a hard rule.
type Rejection struct {
	Program store.Program `json:"program"`
	Reason  string        `json:"reason"`
	Type    Reason        `json:"type"`
}

// Result partitions candidate programs into those that passed every rule
// and those rejected, with one reason each.
type Result struct {
	Passed   []store.Program `json:"passed"`
	Rejected []Rejection     `json:"rejected"`
}

// Summary aggregates rejection counts for fallback diagnostics.
type Summary struct {
	TotalCandidates     int `json:"total_candidates"`
	FilteredByBudget    int `json:"filtered_by_budget"`
	FilteredByEnglish   int `json:"filtered_by_english"`
	FilteredByVisa      int `json:"filtered_by_visa"`
	MinimumTuitionFound int `json:"minimum_tuition_found"`
}

// MinEnglishScore returns the minimum TOEFL iBT score a program type
// requires for admission.
func MinEnglishScore(programType string) float64 {
	switch programType {
	case "university":
		return 80
	case "community_college":
		return 61
	case "vocational":
		return 45
	case "elementary":
		return 0
	default:
		return 60
	}
}

// TotalCost is the annual cost of attending a program: program tuition when
// set, otherwise school tuition, plus the school's living cost.
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

// Apply runs each program through the hard rules in priority order: budget,
// visa, then English. A program whose school is missing from the map is
// costed from its own tuition alone, with no living cost.
func Apply(st *store.Student, pref *store.Preference, programs []store.Program, schools map[int64]*store.School, logger *slog.Logger) Result {
	if logger == nil {
		logger = slog.Default()
	}
	var res Result
	converted := convert.ToTOEFL(st.EnglishTestType, st.EnglishScore)

	for _, p := range programs {
		school := schools[p.SchoolID]

		if pref != nil && pref.Budget != nil && *pref.Budget > 0 {
			if cost := TotalCost(p, school); cost > *pref.Budget {
				res.Rejected = append(res.Rejected, Rejection{
					Program: p,
					Reason:  fmt.Sprintf("total annual cost $%d exceeds budget $%d", cost, *pref.Budget),
					Type:    ReasonBudgetExceeded,
				})
				continue
			}
		}

		if p.Type == "elementary" {
			res.Rejected = append(res.Rejected, Rejection{
				Program: p,
				Reason:  "adult applicant cannot enroll in an elementary program",
				Type:    ReasonVisaRequirement,
			})
			continue
		}

		if st.EnglishScore != nil && *st.EnglishScore > 0 {
			if required := MinEnglishScore(p.Type); converted < required {
				res.Rejected = append(res.Rejected, Rejection{
					Program: p,
					Reason:  fmt.Sprintf("english score %.0f is below the required %.0f", converted, required),
					Type:    ReasonEnglishScore,
				})
				continue
			}
		}

		res.Passed = append(res.Passed, p)
	}

	counts := res.countByType()
	logger.Info("filter: hard rules applied",
		"candidates", len(programs),
		"passed", len(res.Passed),
		"budget", counts[ReasonBudgetExceeded],
		"visa", counts[ReasonVisaRequirement],
		"english", counts[ReasonEnglishScore],
	)
	return res
}

func (r Result) countByType() map[Reason]int {
	counts := make(map[Reason]int)
	for _, rej := range r.Rejected {
		counts[rej.Type]++
	}
	return counts
}

// Summarize builds the diagnostics attached to fallback responses when no
// program survives filtering. minTuition is the cheapest tuition seen in
// the catalog.
func Summarize(r Result, minTuition int) Summary {
	counts := r.countByType()
	return Summary{
		TotalCandidates:     len(r.Rejected) + len(r.Passed),
		FilteredByBudget:    counts[ReasonBudgetExceeded],
		FilteredByEnglish:   counts[ReasonEnglishScore],
		FilteredByVisa:      counts[ReasonVisaRequirement],
		MinimumTuitionFound: minTuition,
	}
}
