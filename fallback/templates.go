package fallback

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bbiangul/go-match/match"
	"github.com/bbiangul/go-match/store"
)

// schoolTemplate is one canned recommendation used when the model is
// unavailable or its response cannot be parsed.
type schoolTemplate struct {
	name          string
	schoolType    string
	state         string
	city          string
	tuition       int
	degree        string
	duration      string
	recType       string
	explanation   string
	pros          []string
	cons          []string
	featureBadges []string
	totalScore    float64
}

// stateNames maps full state names to the codes used in templates so a
// spelled-out target location still matches.
var stateNames = map[string]string{
	"CALIFORNIA": "CA",
	"NEW YORK":   "NY",
	"TEXAS":      "TX",
}

// defaultRecommendations selects up to five canned templates filtered
// by budget and program type, ordered by location match and budget
// headroom.
func defaultRecommendations(pref *store.Preference) []match.Recommendation {
	budget := prefBudget(pref)
	major := prefMajor(pref)
	location := ""
	programType := "community_college"
	if pref != nil {
		location = strings.TrimSpace(pref.TargetLocation)
		if pref.TargetProgramType != "" {
			programType = pref.TargetProgramType
		}
	}

	templates := allTemplates()

	// Keep tuition within 70% of budget to leave room for living cost.
	var filtered []schoolTemplate
	for _, t := range templates {
		if float64(t.tuition) <= float64(budget)*0.7 {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		filtered = templates
	}

	var byType []schoolTemplate
	for _, t := range filtered {
		if t.schoolType == programType {
			byType = append(byType, t)
		}
	}
	if len(byType) > 0 {
		filtered = byType
	}

	locationUpper := strings.ToUpper(location)
	rankScore := func(t schoolTemplate) float64 {
		score := 0.0
		if locationUpper != "" && locationMatches(t, locationUpper) {
			score += 100
		}
		score += float64(budget-t.tuition) / 1000
		return score
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return rankScore(filtered[i]) > rankScore(filtered[j])
	})

	seen := make(map[string]bool)
	var selected []schoolTemplate
	for _, t := range filtered {
		if seen[t.name] {
			continue
		}
		seen[t.name] = true
		selected = append(selected, t)
		if len(selected) == maxRecommendations {
			break
		}
	}

	programNames := programNamesForMajor(major)
	results := make([]match.Recommendation, len(selected))
	for i, t := range selected {
		rank := i + 1
		programName := fmt.Sprintf("%s Major Track", major)
		if i < len(programNames) {
			programName = programNames[i]
		}
		results[i] = match.Recommendation{
			Rank: rank,
			School: match.SchoolSummary{
				ID:            fmt.Sprintf("fallback-%d", rank),
				Name:          t.name,
				Type:          t.schoolType,
				State:         t.state,
				City:          t.city,
				Tuition:       t.tuition,
				FeatureBadges: t.featureBadges,
			},
			Program: match.ProgramSummary{
				ID:           fmt.Sprintf("fallback-%d-p", rank),
				Name:         programName,
				Degree:       t.degree,
				Duration:     t.duration,
				OPTAvailable: true,
			},
			TotalScore:         t.totalScore,
			ScoreBreakdown:     defaultBreakdown,
			IndicatorScores:    match.Indicators(defaultBreakdown),
			RecommendationType: t.recType,
			Explanation:        t.explanation,
			Pros:               t.pros,
			Cons:               t.cons,
		}
	}
	return results
}

func locationMatches(t schoolTemplate, locationUpper string) bool {
	state := strings.ToUpper(t.state)
	city := strings.ToUpper(t.city)
	if strings.Contains(state, locationUpper) || strings.Contains(city, locationUpper) ||
		strings.Contains(locationUpper, state) {
		return true
	}
	for name, code := range stateNames {
		if t.state == code && strings.Contains(name, locationUpper) {
			return true
		}
	}
	return false
}

// programNamesForMajor diversifies the five program names by major
// keyword group.
func programNamesForMajor(major string) []string {
	lower := strings.ToLower(major)
	switch {
	case strings.Contains(lower, "computer") || strings.Contains(lower, "software"):
		return []string{
			"Computer Science Transfer Program",
			"Software Development Intensive",
			"Computer Science Associate Degree",
			"IT and Computer Applications",
			"CS Transfer Track",
		}
	case strings.Contains(lower, "business") || strings.Contains(lower, "management"):
		return []string{
			"Business Administration Transfer Program",
			"Business Management Program",
			"Business and Accounting Associate",
			"Economics Transfer Program",
			"MBA Preparation Track",
		}
	case strings.Contains(lower, "engineering") || strings.Contains(lower, "mechanical"):
		return []string{
			"Mechanical Engineering Program",
			"Engineering Transfer Program",
			"STEM Associate Degree",
			"Industrial Technology Program",
			"Engineering Foundations Program",
		}
	default:
		return []string{
			major + " Transfer Program",
			major + " Major Track",
			major + " Intensive Program",
			major + " Associate Degree",
			major + " Program",
		}
	}
}

func allTemplates() []schoolTemplate {
	return []schoolTemplate{
		{
			name:          "Santa Monica College",
			schoolType:    "community_college",
			state:         "CA",
			city:          "Santa Monica",
			tuition:       9000,
			degree:        "AA",
			duration:      "2 years",
			recType:       match.TypeSafe,
			explanation:   "A community college with a strong transfer record that fits your budget. Its transfer pipeline to UCLA and USC is among the best in the state.",
			pros:          []string{"High UC transfer rate", "Affordable tuition", "Wide range of majors", "Located in the LA area"},
			cons:          []string{"Popular classes fill quickly", "No on-campus housing"},
			featureBadges: []string{"High transfer rate", "Affordable tuition"},
			totalScore:    85,
		},
		{
			name:          "De Anza College",
			schoolType:    "community_college",
			state:         "CA",
			city:          "Cupertino",
			tuition:       9500,
			degree:        "AS",
			duration:      "2 years",
			recType:       match.TypeChallenge,
			explanation:   "An excellent community college in the heart of Silicon Valley with abundant internship opportunities at tech companies.",
			pros:          []string{"Silicon Valley location", "Tech industry connections", "Strong STEM programs"},
			cons:          []string{"High cost of living", "Competitive housing market"},
			featureBadges: []string{"Silicon Valley location", "STEM focus"},
			totalScore:    78,
		},
		{
			name:          "Diablo Valley College",
			schoolType:    "community_college",
			state:         "CA",
			city:          "Pleasant Hill",
			tuition:       8500,
			degree:        "AA",
			duration:      "2 years",
			recType:       match.TypeSafe,
			explanation:   "A community college known for its UC Berkeley transfer rate, delivering outstanding quality for the price.",
			pros:          []string{"Top UC Berkeley transfer rate", "Reasonable tuition", "Small class sizes"},
			cons:          []string{"Limited public transit", "Suburban location"},
			featureBadges: []string{"Top UC transfers", "Small classes"},
			totalScore:    82,
		},
		{
			name:          "Orange Coast College",
			schoolType:    "community_college",
			state:         "CA",
			city:          "Costa Mesa",
			tuition:       9200,
			degree:        "AS",
			duration:      "2 years",
			recType:       match.TypeStrategy,
			explanation:   "Orange County's flagship community college offering a wide range of majors with hands-on instruction.",
			pros:          []string{"Broad major selection", "Great weather", "Near the beach"},
			cons:          []string{"Heavy traffic", "Housing costs run high"},
			featureBadges: []string{"Broad majors", "OPT STEM eligible"},
			totalScore:    75,
		},
		{
			name:          "Foothill College",
			schoolType:    "community_college",
			state:         "CA",
			city:          "Los Altos Hills",
			tuition:       9800,
			degree:        "AA",
			duration:      "2 years",
			recType:       match.TypeStrategy,
			explanation:   "A strong community college in the southern Silicon Valley with extensive online course options.",
			pros:          []string{"Flexible scheduling", "Many online classes", "Beautiful campus"},
			cons:          []string{"High cost of living", "Limited public transit"},
			featureBadges: []string{"Online classes", "Scenic campus"},
			totalScore:    73,
		},
		{
			name:          "Borough of Manhattan Community College",
			schoolType:    "community_college",
			state:         "NY",
			city:          "New York",
			tuition:       7500,
			degree:        "AS",
			duration:      "2 years",
			recType:       match.TypeSafe,
			explanation:   "A community college in the heart of Manhattan with well-established CUNY transfer routes and easy transit access.",
			pros:          []string{"Manhattan location", "CUNY transfer routes", "Affordable tuition", "Excellent transit"},
			cons:          []string{"No dormitories", "High city living costs"},
			featureBadges: []string{"CUNY transfers", "Affordable tuition"},
			totalScore:    80,
		},
		{
			name:          "LaGuardia Community College",
			schoolType:    "community_college",
			state:         "NY",
			city:          "Long Island City",
			tuition:       6800,
			degree:        "AA",
			duration:      "2 years",
			recType:       match.TypeSafe,
			explanation:   "A CUNY community college in Queens where a diverse international student body prepares for transfer.",
			pros:          []string{"Low tuition", "CUNY transfer routes", "Multicultural environment"},
			cons:          []string{"Compact campus", "Limited parking"},
			featureBadges: []string{"CUNY", "Multicultural"},
			totalScore:    77,
		},
		{
			name:          "Kingsborough Community College",
			schoolType:    "community_college",
			state:         "NY",
			city:          "Brooklyn",
			tuition:       7200,
			degree:        "AS",
			duration:      "2 years",
			recType:       match.TypeStrategy,
			explanation:   "A seaside community college in Brooklyn with a high transfer rate to four-year CUNY campuses.",
			pros:          []string{"Brooklyn location", "CUNY transfer routes", "Right-sized campus"},
			cons:          []string{"Longer transit times"},
			featureBadges: []string{"CUNY transfers", "Seaside campus"},
			totalScore:    76,
		},
		{
			name:          "Austin Community College",
			schoolType:    "community_college",
			state:         "TX",
			city:          "Austin",
			tuition:       6800,
			degree:        "AA",
			duration:      "2 years",
			recType:       match.TypeSafe,
			explanation:   "A large community college in Austin with solid articulation agreements into UT Austin.",
			pros:          []string{"UT Austin transfers", "Low tuition", "Austin lifestyle"},
			cons:          []string{"Campuses spread across the city", "Hot summers"},
			featureBadges: []string{"UT transfers", "Low tuition"},
			totalScore:    81,
		},
		{
			name:          "Houston Community College",
			schoolType:    "community_college",
			state:         "TX",
			city:          "Houston",
			tuition:       6200,
			degree:        "AS",
			duration:      "2 years",
			recType:       match.TypeSafe,
			explanation:   "The largest community college in the Houston area with many campuses and majors to choose from.",
			pros:          []string{"Low tuition", "Multiple campuses", "University of Houston transfers"},
			cons:          []string{"Commute times across the metro"},
			featureBadges: []string{"Low tuition", "Multi-campus"},
			totalScore:    78,
		},
		{
			name:          "Dallas College",
			schoolType:    "community_college",
			state:         "TX",
			city:          "Dallas",
			tuition:       6500,
			degree:        "AA",
			duration:      "2 years",
			recType:       match.TypeStrategy,
			explanation:   "A community college serving the Dallas-Fort Worth area with varied four-year transfer pathways.",
			pros:          []string{"Low tuition", "Dallas metro area", "Many transfer options"},
			cons:          []string{"Quality varies by campus"},
			featureBadges: []string{"Low tuition", "Transfer options"},
			totalScore:    75,
		},
		{
			name:          "San Jose State University",
			schoolType:    "university",
			state:         "CA",
			city:          "San Jose",
			tuition:       18000,
			degree:        "BS",
			duration:      "4 years",
			recType:       match.TypeChallenge,
			explanation:   "A public university in the center of Silicon Valley with outstanding hiring pipelines into tech companies.",
			pros:          []string{"Silicon Valley location", "Tech hiring pipeline", "Public four-year"},
			cons:          []string{"Higher tuition", "Competitive admissions"},
			featureBadges: []string{"STEM strength", "Career pipeline"},
			totalScore:    82,
		},
		{
			name:          "California State University, Long Beach",
			schoolType:    "university",
			state:         "CA",
			city:          "Long Beach",
			tuition:       16500,
			degree:        "BS",
			duration:      "4 years",
			recType:       match.TypeStrategy,
			explanation:   "A large CSU campus with strong employment outcomes relative to its cost.",
			pros:          []string{"CSU system", "Near the coast", "Wide range of majors"},
			cons:          []string{"Large lectures", "Housing costs"},
			featureBadges: []string{"CSU", "Broad majors"},
			totalScore:    79,
		},
	}
}
