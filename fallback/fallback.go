// Package fallback generates recommendations from the student profile
// alone when retrieval or filtering leaves no candidates. It asks the
// chat model for a strict JSON array and degrades to a canned template
// set when the model call or parsing fails.
package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bbiangul/go-match/llm"
	"github.com/bbiangul/go-match/match"
	"github.com/bbiangul/go-match/store"
)

const (
	maxRecommendations    = 5
	defaultTotalScore     = 70.0
	defaultBreakdownScore = 75
)

var defaultBreakdown = match.ScoreBreakdown{
	Academic: defaultBreakdownScore,
	English:  defaultBreakdownScore,
	Budget:   defaultBreakdownScore,
	Location: defaultBreakdownScore,
	Duration: defaultBreakdownScore,
	Career:   defaultBreakdownScore,
}

// Generator produces fallback recommendations via a chat provider.
type Generator struct {
	provider llm.Provider
	model    string
	logger   *slog.Logger
}

// NewGenerator returns a Generator using the given provider and model.
func NewGenerator(provider llm.Provider, model string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{provider: provider, model: model, logger: logger}
}

// Generate returns up to five recommendations built from the profile
// and preferences. It never returns an empty list: model failures and
// unparseable responses fall back to the template set.
func (g *Generator) Generate(ctx context.Context, st *store.Student, pref *store.Preference) []match.Recommendation {
	prompt := buildPrompt(st, pref)
	g.logger.Info("fallback matching started",
		"major", prefMajor(pref), "budget", prefBudget(pref), "location", prefLocation(pref))

	if g.provider == nil {
		return defaultRecommendations(pref)
	}

	resp, err := g.provider.Chat(ctx, llm.ChatRequest{
		Model:       g.model,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0.4,
	})
	if err != nil {
		g.logger.Error("fallback chat call failed, using default recommendations", "error", err)
		return defaultRecommendations(pref)
	}

	results := parseRecommendations(resp.Content, g.logger)
	if len(results) == 0 {
		g.logger.Warn("fallback response parsed to nothing, using default recommendations")
		return defaultRecommendations(pref)
	}
	g.logger.Info("fallback matching succeeded", "count", len(results))
	return results
}

func prefMajor(pref *store.Preference) string {
	if pref == nil || pref.TargetMajor == "" {
		return "undecided"
	}
	return pref.TargetMajor
}

func prefLocation(pref *store.Preference) string {
	if pref == nil {
		return ""
	}
	return pref.TargetLocation
}

func prefBudget(pref *store.Preference) int {
	if pref == nil || pref.Budget == nil {
		return 30000
	}
	return *pref.Budget
}

// buildPrompt renders the matching prompt: student profile, the six
// criteria with advisory weights, recommendation type definitions, a
// strict JSON schema, and hard constraints.
func buildPrompt(st *store.Student, pref *store.Preference) string {
	gpa, gpaScale := "N/A", "4.0"
	english := "not submitted"
	nationality := "N/A"
	if st != nil {
		if st.GPA != nil {
			gpa = fmt.Sprintf("%.2f", *st.GPA)
		}
		if st.GPAScale != nil {
			gpaScale = fmt.Sprintf("%.1f", *st.GPAScale)
		}
		if st.EnglishScore != nil {
			testType := st.EnglishTestType
			if testType == "" {
				testType = "N/A"
			}
			english = fmt.Sprintf("%.0f (%s)", *st.EnglishScore, testType)
		}
		if st.Nationality != "" {
			nationality = st.Nationality
		}
	}

	major := prefMajor(pref)
	location := "undecided"
	programType := "community_college"
	careerGoal := "undecided"
	track := "transfer"
	budget := prefBudget(pref)
	if pref != nil {
		if pref.TargetLocation != "" {
			location = pref.TargetLocation
		}
		if pref.TargetProgramType != "" {
			programType = pref.TargetProgramType
		}
		if pref.CareerGoal != "" {
			careerGoal = pref.CareerGoal
		}
		if pref.PreferredTrack != "" {
			track = pref.PreferredTrack
		}
	}

	var b strings.Builder
	b.WriteString("You are an expert advisor matching international students to US schools. Recommend the best schools and programs for the student below.\n\n")
	b.WriteString("Hard constraints, follow all of them:\n")
	fmt.Fprintf(&b, "1. Never recommend a school whose annual cost exceeds the budget of $%d USD.\n", budget)
	fmt.Fprintf(&b, "2. Prefer schools in the target region %q.\n", location)
	fmt.Fprintf(&b, "3. Only recommend programs related to the target major %q.\n", major)
	b.WriteString("4. All five schools must be different and offer varied options.\n\n")

	b.WriteString("[Student profile]\n")
	fmt.Fprintf(&b, "- Nationality: %s\n", nationality)
	fmt.Fprintf(&b, "- GPA: %s / %s\n", gpa, gpaScale)
	fmt.Fprintf(&b, "- English score: %s\n\n", english)

	b.WriteString("[Preferences and goals]\n")
	fmt.Fprintf(&b, "- Target major: %s\n", major)
	fmt.Fprintf(&b, "- Target program type: %s\n", programType)
	fmt.Fprintf(&b, "- Target region: %s\n", location)
	fmt.Fprintf(&b, "- Annual budget: $%d USD\n", budget)
	fmt.Fprintf(&b, "- Career goal: %s\n", careerGoal)
	fmt.Fprintf(&b, "- Preferred track: %s\n\n", track)

	b.WriteString(`[Matching criteria] Weigh these six factors:
1. Academic fit (20%): GPA versus admission requirements
2. English fit (15%): english score versus requirements
3. Budget fit (15%): tuition plus living cost within budget, exclude schools over budget
4. Location preference (10%): match with the target region
5. Duration fit (10%): program length versus the student's goals
6. Career alignment (30%): relevance to the career goal

[Recommendation types]
- "safe": high admission odds (budget fits, requirements met, high acceptance rate)
- "challenge": ambitious pick (elite school, competitive, high performance needed)
- "strategy": strategic pick (transfer route, cost efficient, long-term upside)

[Required output] Respond with ONLY the JSON array below. No prose, no markdown.
[
  {
    "school_name": "official school name (e.g. Santa Monica College)",
    "school_type": "community_college or university or vocational",
    "state": "state code (e.g. CA, NY, TX)",
    "city": "city name",
    "tuition": 12000,
    "global_ranking": 4,
    "ranking_field": "ranking subject or null",
    "average_salary": 85000,
    "alumni_network_count": 38000,
    "feature_badges": ["short feature tags"],
    "program_name": "program name",
    "degree": "AA, AS, BS or MS",
    "duration": "2 years or 4 years",
    "opt_available": true,
    "recommendation_type": "safe or challenge or strategy",
    "total_score": 85,
    "score_breakdown": {"academic": 0, "english": 0, "budget": 0, "location": 0, "duration": 0, "career": 0},
    "explanation": "two to three concrete sentences referencing the six criteria",
    "pros": ["specific advantage 1", "specific advantage 2", "specific advantage 3"],
    "cons": ["consideration 1", "consideration 2"]
  }
]

[Rules]
1. Produce exactly 5 recommendations
2. Numeric fields are bare numbers, no symbols or separators
3. At least 3 pros and 2 cons per entry
4. Explanations must reference the student's profile and the criteria
5. Only real, existing US schools
6. recommendation_type must be one of safe, challenge, strategy
7. Make the first recommendation safe, the second challenge, vary the rest
`)
	return b.String()
}

// fallbackEntry mirrors the JSON schema requested from the model.
// Pointer fields distinguish absent values from zero values.
type fallbackEntry struct {
	SchoolName         string          `json:"school_name"`
	SchoolType         string          `json:"school_type"`
	State              string          `json:"state"`
	City               string          `json:"city"`
	Tuition            int             `json:"tuition"`
	GlobalRanking      *int            `json:"global_ranking"`
	RankingField       string          `json:"ranking_field"`
	AverageSalary      *int            `json:"average_salary"`
	AlumniNetworkCount *int            `json:"alumni_network_count"`
	FeatureBadges      []string        `json:"feature_badges"`
	ProgramName        string          `json:"program_name"`
	Degree             string          `json:"degree"`
	Duration           string          `json:"duration"`
	OPTAvailable       *bool           `json:"opt_available"`
	RecommendationType string          `json:"recommendation_type"`
	TotalScore         *float64        `json:"total_score"`
	ScoreBreakdown     json.RawMessage `json:"score_breakdown"`
	Explanation        string          `json:"explanation"`
	Pros               []string        `json:"pros"`
	Cons               []string        `json:"cons"`
}

// parseRecommendations converts the raw model response into
// recommendations. Individual entries that fail to decode are skipped
// so a partially valid response still produces results.
func parseRecommendations(raw string, logger *slog.Logger) []match.Recommendation {
	jsonStr, ok := extractJSONArray(raw)
	if !ok {
		logger.Warn("no JSON array found in fallback response", "head", head(raw, 200))
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &items); err != nil {
		logger.Warn("fallback response is not a JSON array", "error", err, "head", head(jsonStr, 200))
		return nil
	}
	if len(items) > maxRecommendations {
		items = items[:maxRecommendations]
	}

	var results []match.Recommendation
	for i, item := range items {
		var entry fallbackEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			logger.Warn("skipping unparseable fallback entry", "index", i, "error", err)
			continue
		}
		results = append(results, entryToRecommendation(entry, len(results)+1))
	}
	return results
}

func entryToRecommendation(e fallbackEntry, rank int) match.Recommendation {
	schoolName := e.SchoolName
	if schoolName == "" {
		schoolName = fmt.Sprintf("Recommended School %d", rank)
	}
	schoolType := e.SchoolType
	if schoolType == "" {
		schoolType = "community_college"
	}
	programName := e.ProgramName
	if programName == "" {
		programName = "Transfer Program"
	}
	degree := e.Degree
	if degree == "" {
		degree = "Associate"
	}
	duration := e.Duration
	if duration == "" {
		duration = "2 years"
	}
	optAvailable := true
	if e.OPTAvailable != nil {
		optAvailable = *e.OPTAvailable
	}
	recType := e.RecommendationType
	if recType != match.TypeSafe && recType != match.TypeChallenge && recType != match.TypeStrategy {
		recType = match.TypeStrategy
	}
	total := defaultTotalScore
	if e.TotalScore != nil {
		total = clamp(*e.TotalScore, 0, 100)
	}
	breakdown := parseBreakdown(e.ScoreBreakdown)
	explanation := e.Explanation
	if explanation == "" {
		explanation = "AI recommendation tailored to your profile."
	}
	pros := nonBlank(e.Pros, 5)
	if len(pros) == 0 {
		pros = []string{"Tailored AI recommendation", "Fits your budget", "Aligned with your career goals"}
	}
	cons := nonBlank(e.Cons, 3)
	if len(cons) == 0 {
		cons = []string{"Verify details with the school"}
	}

	return match.Recommendation{
		Rank: rank,
		School: match.SchoolSummary{
			ID:                 fmt.Sprintf("fallback-%d", rank),
			Name:               schoolName,
			Type:               schoolType,
			State:              e.State,
			City:               e.City,
			Tuition:            e.Tuition,
			GlobalRanking:      e.GlobalRanking,
			RankingField:       e.RankingField,
			AverageSalary:      e.AverageSalary,
			AlumniNetworkCount: e.AlumniNetworkCount,
			FeatureBadges:      nonBlank(e.FeatureBadges, len(e.FeatureBadges)),
		},
		Program: match.ProgramSummary{
			ID:           fmt.Sprintf("fallback-%d-p", rank),
			Name:         programName,
			Degree:       degree,
			Duration:     duration,
			OPTAvailable: optAvailable,
		},
		TotalScore:         total,
		EstimatedROI:       0,
		ScoreBreakdown:     breakdown,
		IndicatorScores:    match.Indicators(breakdown),
		RecommendationType: recType,
		Explanation:        explanation,
		Pros:               pros,
		Cons:               cons,
	}
}

func parseBreakdown(raw json.RawMessage) match.ScoreBreakdown {
	if len(raw) == 0 {
		return defaultBreakdown
	}
	var fields map[string]*int
	if err := json.Unmarshal(raw, &fields); err != nil {
		return defaultBreakdown
	}
	get := func(key string) int {
		if v := fields[key]; v != nil {
			return clampInt(*v, 0, 100)
		}
		return defaultBreakdownScore
	}
	return match.ScoreBreakdown{
		Academic: get("academic"),
		English:  get("english"),
		Budget:   get("budget"),
		Location: get("location"),
		Duration: get("duration"),
		Career:   get("career"),
	}
}

// extractJSONArray pulls the JSON array out of a model response,
// stripping markdown code fences and surrounding prose.
func extractJSONArray(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, "```") {
		s = strings.ReplaceAll(s, "```json", "")
		s = strings.ReplaceAll(s, "```", "")
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func nonBlank(items []string, limit int) []string {
	var out []string
	for _, s := range items {
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
