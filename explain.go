package gomatch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bbiangul/go-match/match"
	"github.com/bbiangul/go-match/rank"
	"github.com/bbiangul/go-match/scoring"
	"github.com/bbiangul/go-match/store"
)

// classifyRecommendationType buckets a hybrid ranking score.
func classifyRecommendationType(score float64) string {
	switch {
	case score >= 85:
		return match.TypeSafe
	case score >= 70:
		return match.TypeChallenge
	default:
		return match.TypeStrategy
	}
}

// prosAndCons derives display-ready strengths and caveats from the
// preference, program, school, and factor scores.
func prosAndCons(pref *store.Preference, p store.Program, school *store.School, b scoring.Breakdown) ([]string, []string) {
	var pros, cons []string

	budget := 0
	if pref != nil && pref.Budget != nil {
		budget = *pref.Budget
	}
	tuition := 0
	if p.Tuition != nil {
		tuition = *p.Tuition
	}
	living := 0
	if school != nil && school.LivingCost != nil {
		living = *school.LivingCost
	}
	budgetSurplus := budget - tuition - living

	if budgetSurplus > 5000 {
		pros = append(pros, fmt.Sprintf("Ample budget headroom ($%d)", budgetSurplus))
	}
	if b.English > 10 {
		pros = append(pros, "English score exceeds the admission requirement")
	}
	if p.OPTAvailable {
		pros = append(pros, "OPT available")
	}
	if school != nil && school.TransferRate != nil && *school.TransferRate > 65 {
		pros = append(pros, fmt.Sprintf("High transfer success rate (%.0f%%)", *school.TransferRate))
	}

	if school != nil && school.AcceptanceRate != nil && *school.AcceptanceRate < 40 {
		cons = append(cons, fmt.Sprintf("Fairly competitive admissions (%.0f%% acceptance)", *school.AcceptanceRate))
	}
	if budgetSurplus < 3000 {
		cons = append(cons, "Budget is tight")
	}
	if b.Location < 5 {
		cons = append(cons, "Far from your preferred region")
	}
	return pros, cons
}

// explain produces the recommendation narrative: a type-specific base
// sentence, data hints from school records, and the career-path story
// when the graph backs this candidate.
func explain(c rank.Candidate, recType string) string {
	school := c.School

	var hints []string
	if school.EmploymentRate != nil {
		hints = append(hints, fmt.Sprintf("an employment rate of %.0f%%", *school.EmploymentRate))
	}
	if strings.Contains(strings.ToLower(school.ESLProgram), "true") {
		hints = append(hints, "an ESL program")
	}
	if strings.Contains(strings.ToLower(school.Facilities), "dormitory") {
		hints = append(hints, "dormitory information")
	}
	hintText := ""
	if len(hints) > 0 {
		hintText = fmt.Sprintf(" School records also show %s.", strings.Join(hints, ", "))
	}

	graphText := ""
	if path := c.GraphPath; path != nil {
		skills := "relevant skills"
		if len(path.Skills) > 0 {
			skills = strings.Join(path.Skills, ", ")
		}
		programName := path.ProgramName
		if programName == "" {
			programName = c.Program.Name
		}
		job := path.Job
		if job == "" {
			job = "your target role"
		}
		graphText = fmt.Sprintf(" %s hires %s graduates of %s as %s, emphasizing %s.",
			path.Company, programName, path.SchoolName, job, skills)
	}

	var base string
	switch recType {
	case match.TypeSafe:
		base = "This school keeps tuition comfortably inside your budget, your english score clears admission directly, and post-graduation OPT prospects are strong."
	case match.TypeChallenge:
		base = fmt.Sprintf("Located in %s, this school's high transfer rate pays off in the long run, though the competition makes it an ambitious pick.", school.City)
	default:
		base = "This school is a strategic choice that lines up with your budget and goals."
	}
	return base + hintText + graphText
}

// estimatedROI is the annual return on tuition: (salary - tuition) /
// tuition * 100, floored at zero. Missing salary or tuition yields 0.
func estimatedROI(school *store.School, p store.Program) float64 {
	if school == nil || school.AverageSalary == nil {
		return 0
	}
	var tuition int
	switch {
	case school.Tuition != nil:
		tuition = *school.Tuition
	case p.Tuition != nil:
		tuition = *p.Tuition
	default:
		return 0
	}
	if tuition <= 0 {
		return 0
	}
	roi := float64(*school.AverageSalary-tuition) / float64(tuition) * 100
	if roi < 0 {
		return 0
	}
	return roi
}

func toBreakdown(b scoring.Breakdown) match.ScoreBreakdown {
	return match.ScoreBreakdown{
		Academic: int(b.Academic),
		English:  int(b.English),
		Budget:   int(b.Budget),
		Location: int(b.Location),
		Duration: int(b.Duration),
		Career:   int(b.Career),
	}
}

func schoolSummary(sc *store.School) match.SchoolSummary {
	tuition := 0
	if sc.Tuition != nil {
		tuition = *sc.Tuition
	}
	return match.SchoolSummary{
		ID:                 strconv.FormatInt(sc.ID, 10),
		Name:               sc.Name,
		Type:               sc.Type,
		State:              sc.State,
		City:               sc.City,
		Tuition:            tuition,
		GlobalRanking:      sc.GlobalRanking,
		RankingField:       sc.RankingField,
		AverageSalary:      sc.AverageSalary,
		AlumniNetworkCount: sc.AlumniNetworkCount,
		EmploymentRate:     sc.EmploymentRate,
		FeatureBadges:      parseBadges(sc.FeatureBadges),
	}
}

// parseBadges decodes the feature_badges JSON column. Unparseable
// content yields nil rather than an error.
func parseBadges(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var badges []string
	if err := json.Unmarshal([]byte(raw), &badges); err != nil {
		return nil
	}
	return badges
}

func programSummary(p store.Program) match.ProgramSummary {
	return match.ProgramSummary{
		ID:           strconv.FormatInt(p.ID, 10),
		Name:         p.Name,
		Degree:       p.Degree,
		Duration:     p.Duration,
		OPTAvailable: p.OPTAvailable,
	}
}

// indicatorDescription summarizes the top result's gauge strengths.
func indicatorDescription(top *match.Recommendation) string {
	var strengths []string
	if top.IndicatorScores.AcademicFit >= 80 {
		strengths = append(strengths, "academic fit")
	}
	if top.IndicatorScores.CareerOutlook >= 80 {
		strengths = append(strengths, "career outlook")
	}
	if top.IndicatorScores.CostEfficiency >= 80 {
		strengths = append(strengths, "cost efficiency")
	}
	switch len(strengths) {
	case 0:
		return "Overall a well-balanced match."
	case 1:
		return fmt.Sprintf("%s stands out as especially strong.",
			strings.ToUpper(strengths[0][:1])+strengths[0][1:])
	default:
		return fmt.Sprintf("Shows the strongest fit in %s.", strings.Join(strengths, " and "))
	}
}

// nextSteps is the fixed four-step action guide, region-aware in the
// deadline step.
func nextSteps(pref *store.Preference) []match.NextStep {
	region := "your target region"
	if pref != nil && strings.TrimSpace(pref.TargetLocation) != "" {
		region = pref.TargetLocation
	}
	return []match.NextStep{
		{
			ID:          1,
			Title:       "Review application documents",
			Description: "Prepare transcripts, a personal statement, and recommendation letter drafts first.",
			Priority:    "recommended",
		},
		{
			ID:          2,
			Title:       "Check school deadlines",
			Description: fmt.Sprintf("Confirm application deadlines for the top recommendations, starting with %s.", region),
			Priority:    "recommended",
		},
		{
			ID:          3,
			Title:       "Prepare for english tests and interviews",
			Description: "Line up your english score submission or interview preparation materials.",
			Priority:    "recommended",
		},
		{
			ID:          4,
			Title:       "Plan visa and finances",
			Description: "Start financial documentation and visa preparation based on the projected tuition and living costs.",
			Priority:    "optional",
		},
	}
}
