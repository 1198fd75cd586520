// Package match defines the recommendation response shared by the
// ranking pipeline and the generative fallback.
package match

import (
	"math"
	"time"
)

// RecommendationType buckets for a result.
const (
	TypeSafe      = "safe"
	TypeChallenge = "challenge"
	TypeStrategy  = "strategy"
)

// Response is the full result of one matching run. FilterSummary is set
// only when the hard filters rejected every candidate and the results
// came from the fallback.
type Response struct {
	MatchID              string           `json:"match_id"`
	StudentID            string           `json:"student_id"`
	TotalMatches         int              `json:"total_matches"`
	ExecutionTimeMs      int              `json:"execution_time_ms"`
	Results              []Recommendation `json:"results"`
	Message              string           `json:"message,omitempty"`
	FilterSummary        *FilterSummary   `json:"filter_summary,omitempty"`
	IndicatorDescription string           `json:"indicator_description,omitempty"`
	NextSteps            []NextStep       `json:"next_steps"`
	CreatedAt            time.Time        `json:"created_at"`
}

// FilterSummary reports why the hard filters exhausted the candidate pool.
type FilterSummary struct {
	TotalCandidates     int `json:"total_candidates"`
	FilteredByBudget    int `json:"filtered_by_budget"`
	FilteredByEnglish   int `json:"filtered_by_english"`
	FilteredByVisa      int `json:"filtered_by_visa"`
	MinimumTuitionFound int `json:"minimum_tuition_found"`
}

// Recommendation is one ranked school/program suggestion.
type Recommendation struct {
	Rank               int             `json:"rank"`
	School             SchoolSummary   `json:"school"`
	Program            ProgramSummary  `json:"program"`
	TotalScore         float64         `json:"total_score"`
	EstimatedROI       float64         `json:"estimated_roi"`
	ScoreBreakdown     ScoreBreakdown  `json:"score_breakdown"`
	IndicatorScores    IndicatorScores `json:"indicator_scores"`
	RecommendationType string          `json:"recommendation_type"`
	Explanation        string          `json:"explanation"`
	Pros               []string        `json:"pros"`
	Cons               []string        `json:"cons"`
}

// SchoolSummary is the school slice of a recommendation.
type SchoolSummary struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	State              string   `json:"state"`
	City               string   `json:"city"`
	Tuition            int      `json:"tuition"`
	ImageURL           string   `json:"image_url,omitempty"`
	GlobalRanking      *int     `json:"global_ranking,omitempty"`
	RankingField       string   `json:"ranking_field,omitempty"`
	AverageSalary      *int     `json:"average_salary,omitempty"`
	AlumniNetworkCount *int     `json:"alumni_network_count,omitempty"`
	EmploymentRate     *float64 `json:"employment_rate,omitempty"`
	FeatureBadges      []string `json:"feature_badges,omitempty"`
}

// ProgramSummary is the program slice of a recommendation.
type ProgramSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Degree       string `json:"degree"`
	Duration     string `json:"duration"`
	OPTAvailable bool   `json:"opt_available"`
}

// ScoreBreakdown carries the six factor scores as integers for display.
type ScoreBreakdown struct {
	Academic int `json:"academic"`
	English  int `json:"english"`
	Budget   int `json:"budget"`
	Location int `json:"location"`
	Duration int `json:"duration"`
	Career   int `json:"career"`
}

// IndicatorScores condenses the breakdown into three gauge values.
type IndicatorScores struct {
	AcademicFit    int `json:"academic_fit"`
	CareerOutlook  int `json:"career_outlook"`
	CostEfficiency int `json:"cost_efficiency"`
}

// Indicators derives the gauge values from a breakdown: academic fit
// pairs academic with english, career outlook pairs career with
// location, cost efficiency pairs budget with duration.
func Indicators(b ScoreBreakdown) IndicatorScores {
	return IndicatorScores{
		AcademicFit:    int(math.Round(float64(b.Academic+b.English) / 2)),
		CareerOutlook:  int(math.Round(float64(b.Career+b.Location) / 2)),
		CostEfficiency: int(math.Round(float64(b.Budget+b.Duration) / 2)),
	}
}

// NextStep is one entry of the post-match action guide.
type NextStep struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}
