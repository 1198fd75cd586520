package fallback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/bbiangul/go-match/llm"
	"github.com/bbiangul/go-match/match"
	"github.com/bbiangul/go-match/store"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeProvider struct {
	content string
	err     error
}

func (f *fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.content}, nil
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func testPreference() *store.Preference {
	return &store.Preference{
		StudentID:         "stu-1",
		TargetMajor:       "computer science",
		CareerGoal:        "software engineer",
		TargetLocation:    "California",
		TargetProgramType: "community_college",
		Budget:            intPtr(30000),
	}
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"bare array", `[{"a":1}]`, `[{"a":1}]`, true},
		{"fenced", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`, true},
		{"surrounding prose", `Here you go: [{"a":1}] hope it helps`, `[{"a":1}]`, true},
		{"no array", "sorry, I cannot help", "", false},
		{"brackets reversed", "] nothing [", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONArray(tt.raw)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("got %q ok=%v, want %q ok=%v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

const sampleResponse = `[
  {
    "school_name": "Santa Monica College",
    "school_type": "community_college",
    "state": "CA",
    "city": "Santa Monica",
    "tuition": 9000,
    "average_salary": 62000,
    "feature_badges": ["High transfer rate"],
    "program_name": "Computer Science AA",
    "degree": "AA",
    "duration": "2 years",
    "opt_available": true,
    "recommendation_type": "safe",
    "total_score": 88,
    "score_breakdown": {"academic": 90, "english": 80, "budget": 85, "location": 95, "duration": 70, "career": 88},
    "explanation": "Strong fit across all six criteria.",
    "pros": ["Affordable", "Great transfers", "LA location"],
    "cons": ["Crowded classes", "No housing"]
  },
  {
    "school_name": "Mystery University",
    "recommendation_type": "aggressive",
    "total_score": 150
  }
]`

func TestParseRecommendations(t *testing.T) {
	results := parseRecommendations(sampleResponse, quiet())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	first := results[0]
	if first.Rank != 1 || first.School.ID != "fallback-1" || first.Program.ID != "fallback-1-p" {
		t.Errorf("unexpected ids: %+v", first)
	}
	if first.School.Name != "Santa Monica College" || first.TotalScore != 88 {
		t.Errorf("unexpected first result: %+v", first)
	}
	if first.ScoreBreakdown.Academic != 90 || first.ScoreBreakdown.Career != 88 {
		t.Errorf("unexpected breakdown: %+v", first.ScoreBreakdown)
	}
	// academicFit = round((90+80)/2) = 85
	if first.IndicatorScores.AcademicFit != 85 {
		t.Errorf("academic fit: got %d, want 85", first.IndicatorScores.AcademicFit)
	}
	if first.EstimatedROI != 0 {
		t.Errorf("fallback ROI should be 0, got %v", first.EstimatedROI)
	}

	second := results[1]
	if second.RecommendationType != match.TypeStrategy {
		t.Errorf("invalid type should map to strategy, got %q", second.RecommendationType)
	}
	if second.TotalScore != 100 {
		t.Errorf("score should clamp to 100, got %v", second.TotalScore)
	}
	if second.ScoreBreakdown != defaultBreakdown {
		t.Errorf("missing breakdown should default, got %+v", second.ScoreBreakdown)
	}
	if second.Program.Name != "Transfer Program" || second.Program.Degree != "Associate" {
		t.Errorf("missing program fields should default, got %+v", second.Program)
	}
	if len(second.Pros) != 3 || len(second.Cons) != 1 {
		t.Errorf("missing pros/cons should default, got %v / %v", second.Pros, second.Cons)
	}
}

func TestParseRecommendationsSkipsBrokenEntries(t *testing.T) {
	raw := `[{"school_name": "Good College"}, "not an object", {"school_name": "Also Good"}]`
	results := parseRecommendations(raw, quiet())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// Ranks stay dense after the skip.
	if results[1].Rank != 2 || results[1].School.Name != "Also Good" {
		t.Errorf("unexpected second result: %+v", results[1])
	}
}

func TestParseRecommendationsCapsAtFive(t *testing.T) {
	var entries []string
	for i := 0; i < 8; i++ {
		entries = append(entries, `{"school_name": "College"}`)
	}
	raw := "[" + strings.Join(entries, ",") + "]"
	if got := parseRecommendations(raw, quiet()); len(got) != maxRecommendations {
		t.Fatalf("expected %d results, got %d", maxRecommendations, len(got))
	}
}

func TestParseRecommendationsGarbage(t *testing.T) {
	if got := parseRecommendations("no json here", quiet()); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := parseRecommendations("[{broken", quiet()); got != nil {
		t.Fatalf("expected nil for malformed array, got %v", got)
	}
}

func TestGenerateUsesModelResponse(t *testing.T) {
	g := NewGenerator(&fakeProvider{content: sampleResponse}, "test-model", quiet())
	results := g.Generate(context.Background(), &store.Student{ID: "stu-1"}, testPreference())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].School.Name != "Santa Monica College" {
		t.Errorf("unexpected result: %+v", results[0])
	}
}

func TestGenerateFallsBackOnError(t *testing.T) {
	g := NewGenerator(&fakeProvider{err: errors.New("boom")}, "test-model", quiet())
	results := g.Generate(context.Background(), &store.Student{ID: "stu-1"}, testPreference())
	if len(results) != maxRecommendations {
		t.Fatalf("expected %d default results, got %d", maxRecommendations, len(results))
	}
	for _, r := range results {
		if r.School.Name == "" || r.Explanation == "" {
			t.Errorf("default recommendation missing content: %+v", r)
		}
	}
}

func TestGenerateFallsBackOnUnparseable(t *testing.T) {
	g := NewGenerator(&fakeProvider{content: "I cannot produce JSON"}, "test-model", quiet())
	results := g.Generate(context.Background(), &store.Student{ID: "stu-1"}, testPreference())
	if len(results) != maxRecommendations {
		t.Fatalf("expected %d default results, got %d", maxRecommendations, len(results))
	}
}

func TestDefaultRecommendationsBudgetFilter(t *testing.T) {
	pref := testPreference()
	pref.Budget = intPtr(10000)
	pref.TargetLocation = "Texas"

	results := defaultRecommendations(pref)
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	// Tuition capped at 70% of budget.
	for _, r := range results {
		if r.School.Tuition > 7000 {
			t.Errorf("tuition %d exceeds 70%% of budget", r.School.Tuition)
		}
	}
	// Texas schools sort first on the location bonus.
	if results[0].School.State != "TX" {
		t.Errorf("expected TX school first, got %s (%s)", results[0].School.State, results[0].School.Name)
	}
}

func TestDefaultRecommendationsProgramNames(t *testing.T) {
	results := defaultRecommendations(testPreference())
	if len(results) != maxRecommendations {
		t.Fatalf("expected %d results, got %d", maxRecommendations, len(results))
	}
	if results[0].Program.Name != "Computer Science Transfer Program" {
		t.Errorf("unexpected program name: %q", results[0].Program.Name)
	}
	// California target keeps CA community colleges on top.
	if results[0].School.State != "CA" {
		t.Errorf("expected CA school first, got %s", results[0].School.State)
	}
	seen := make(map[string]bool)
	for _, r := range results {
		if seen[r.School.Name] {
			t.Errorf("duplicate school %q", r.School.Name)
		}
		seen[r.School.Name] = true
	}
}

func TestDefaultRecommendationsTypeFilter(t *testing.T) {
	pref := testPreference()
	pref.TargetProgramType = "university"
	pref.Budget = intPtr(40000)

	results := defaultRecommendations(pref)
	for _, r := range results {
		if r.School.Type != "university" {
			t.Errorf("expected only universities, got %s (%s)", r.School.Type, r.School.Name)
		}
	}
	if len(results) != 2 {
		t.Fatalf("expected the 2 university templates, got %d", len(results))
	}
}

func TestProgramNamesForMajor(t *testing.T) {
	if got := programNamesForMajor("Business Administration")[0]; got != "Business Administration Transfer Program" {
		t.Errorf("business group: got %q", got)
	}
	if got := programNamesForMajor("mechanical engineering")[0]; got != "Mechanical Engineering Program" {
		t.Errorf("engineering group: got %q", got)
	}
	generic := programNamesForMajor("nursing")
	if generic[0] != "nursing Transfer Program" || len(generic) != 5 {
		t.Errorf("generic group: got %v", generic)
	}
}

func TestBuildPromptContents(t *testing.T) {
	st := &store.Student{
		ID: "stu-1", Nationality: "Korea",
		GPA: floatPtr(3.4), GPAScale: floatPtr(4.0),
		EnglishTestType: "TOEFL", EnglishScore: floatPtr(92),
	}
	prompt := buildPrompt(st, testPreference())

	for _, want := range []string{
		"$30000",
		"computer science",
		"California",
		"3.40 / 4.0",
		"92 (TOEFL)",
		"safe", "challenge", "strategy",
		"score_breakdown",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPromptDefaults(t *testing.T) {
	prompt := buildPrompt(&store.Student{ID: "stu-1"}, nil)
	for _, want := range []string{"N/A", "not submitted", "undecided", "$30000"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing default %q", want)
		}
	}
}
