package rank

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/bbiangul/go-match/graph"
	"github.com/bbiangul/go-match/scoring"
	"github.com/bbiangul/go-match/store"
)

func int64Ptr(v int64) *int64 { return &v }

func candidate(schoolID, programID int64, schoolName string, career, total float64) Candidate {
	return Candidate{
		Program:    store.Program{ID: programID, SchoolID: schoolID, Name: "Program"},
		School:     &store.School{ID: schoolID, Name: schoolName},
		Scores:     scoring.Breakdown{Career: career},
		TotalScore: total,
	}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s: got %v, want %v", name, got, want)
	}
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRankHybridScores(t *testing.T) {
	candidates := []Candidate{
		candidate(1, 11, "Alpha College", 7.0, 60),
		candidate(2, 22, "Beta College", 4.0, 55),
	}
	vectors := map[int64]float64{1: 0.8, 2: 0.6}
	paths := []graph.CareerPath{
		{SchoolID: 1, ProgramID: int64Ptr(11), Weight: 0.5},
		{SchoolID: 1, Weight: 0.9},
		{SchoolID: 2, ProgramID: int64Ptr(99), Weight: 0.3},
	}
	skills := []graph.ProgramSkillMatch{
		{ProgramID: 11, RelevanceScore: 0.6},
		{ProgramID: 22, RelevanceScore: 0.3},
	}

	ranked := Rank(candidates, vectors, paths, skills, []string{"python"}, 5, Config{}, quiet())
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked candidates, got %d", len(ranked))
	}

	top := ranked[0]
	if top.School.ID != 1 {
		t.Fatalf("expected school 1 on top, got %d", top.School.ID)
	}
	// The exact program path wins over the heavier school-level path.
	if top.GraphPath == nil || top.GraphPath.ProgramID == nil || *top.GraphPath.ProgramID != 11 {
		t.Fatalf("expected program-matched path, got %+v", top.GraphPath)
	}

	// graph = (0.5/0.9)*0.7 + (0.6/0.6)*0.3
	wantGraph1 := 0.5/0.9*0.7 + 0.3
	approx(t, "graph score 1", top.GraphScore, wantGraph1)
	// hybrid = 0.8*0.4 + graph*0.5 + (7/30)*0.1, times 100
	approx(t, "ranking score 1", top.RankingScore,
		(0.8*0.4+wantGraph1*0.5+7.0/30.0*0.1)*100)

	second := ranked[1]
	wantGraph2 := 0.3/0.9*0.7 + 0.5*0.3
	approx(t, "graph score 2", second.GraphScore, wantGraph2)
	approx(t, "ranking score 2", second.RankingScore,
		(0.6*0.4+wantGraph2*0.5+4.0/30.0*0.1)*100)
}

func TestRankWithoutGraphEvidence(t *testing.T) {
	candidates := []Candidate{candidate(1, 11, "Alpha College", 6.0, 50)}
	vectors := map[int64]float64{1: 0.9}

	ranked := Rank(candidates, vectors, nil, nil, nil, 5, Config{}, quiet())
	if len(ranked) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(ranked))
	}
	approx(t, "graph score", ranked[0].GraphScore, 0)
	if ranked[0].GraphPath != nil {
		t.Fatalf("expected no graph path, got %+v", ranked[0].GraphPath)
	}
	approx(t, "ranking score", ranked[0].RankingScore, (0.9*0.4+6.0/30.0*0.1)*100)
}

func TestRankTieBreakBySchoolName(t *testing.T) {
	// Identical signals everywhere: the name decides.
	candidates := []Candidate{
		candidate(2, 22, "Zeta College", 3.0, 40),
		candidate(1, 11, "Alpha College", 3.0, 40),
	}
	vectors := map[int64]float64{1: 0.5, 2: 0.5}

	ranked := Rank(candidates, vectors, nil, nil, nil, 5, Config{}, quiet())
	if ranked[0].School.Name != "Alpha College" {
		t.Fatalf("expected alphabetical tie-break, got %q first", ranked[0].School.Name)
	}
}

func TestRankTopN(t *testing.T) {
	var candidates []Candidate
	vectors := map[int64]float64{}
	for i := int64(1); i <= 8; i++ {
		candidates = append(candidates, candidate(i, i*10, "School", 5.0, 50))
		vectors[i] = float64(i) / 10.0
	}

	ranked := Rank(candidates, vectors, nil, nil, nil, 0, Config{}, quiet())
	if len(ranked) != DefaultTopN {
		t.Fatalf("expected %d candidates, got %d", DefaultTopN, len(ranked))
	}
	// Highest vector score first.
	if ranked[0].School.ID != 8 {
		t.Fatalf("expected school 8 first, got %d", ranked[0].School.ID)
	}
}

func TestRankEmpty(t *testing.T) {
	if got := Rank(nil, nil, nil, nil, nil, 5, Config{}, quiet()); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestRankCustomFusionWeights(t *testing.T) {
	candidates := []Candidate{
		candidate(1, 11, "Alpha College", 30.0, 60),
	}
	vectors := map[int64]float64{1: 0.5}

	// Vector-only fusion: graph and preference signals zeroed out by
	// tiny weights.
	cfg := Config{
		VectorWeight:     1.0,
		GraphWeight:      1e-12,
		PreferenceWeight: 1e-12,
	}
	ranked := Rank(candidates, vectors, nil, nil, nil, 5, cfg, quiet())
	if len(ranked) != 1 {
		t.Fatalf("expected 1 ranked candidate, got %d", len(ranked))
	}
	if math.Abs(ranked[0].RankingScore-50.0) > 1e-6 {
		t.Errorf("ranking score: got %v, want ~50", ranked[0].RankingScore)
	}
}
