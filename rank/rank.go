// Package rank fuses vector retrieval, knowledge-graph evidence, and
// preference scores into a single hybrid ranking.
package rank

import (
	"log/slog"
	"sort"

	"github.com/bbiangul/go-match/graph"
	"github.com/bbiangul/go-match/scoring"
	"github.com/bbiangul/go-match/store"
)

// Signal weights for the hybrid score. Vector and graph carry most of
// the weight; the preference signal only nudges ties.
const (
	VectorWeight     = 0.4
	GraphWeight      = 0.5
	PreferenceWeight = 0.1

	// Within the graph signal, career paths dominate skill matches.
	PathSignalWeight  = 0.7
	SkillSignalWeight = 0.3

	// MaxCareerScore caps the career factor when normalizing it into
	// the preference signal.
	MaxCareerScore = 30.0

	// CoverageAlertThreshold triggers a warning when too few of the
	// top candidates are backed by a career path.
	CoverageAlertThreshold = 0.4

	// DefaultTopN is the number of candidates kept after ranking.
	DefaultTopN = 5
)

// Config carries the fusion weights. Zero fields fall back to the
// package defaults, so Config{} ranks with the standard tuning.
type Config struct {
	VectorWeight      float64 `json:"vector_weight"`
	GraphWeight       float64 `json:"graph_weight"`
	PreferenceWeight  float64 `json:"preference_weight"`
	PathSignalWeight  float64 `json:"path_signal_weight"`
	SkillSignalWeight float64 `json:"skill_signal_weight"`
	MaxCareerScore    float64 `json:"max_career_score"`
	CoverageAlert     float64 `json:"coverage_alert"`
}

// DefaultConfig returns the standard fusion weights.
func DefaultConfig() Config {
	return Config{
		VectorWeight:      VectorWeight,
		GraphWeight:       GraphWeight,
		PreferenceWeight:  PreferenceWeight,
		PathSignalWeight:  PathSignalWeight,
		SkillSignalWeight: SkillSignalWeight,
		MaxCareerScore:    MaxCareerScore,
		CoverageAlert:     CoverageAlertThreshold,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.VectorWeight <= 0 {
		c.VectorWeight = def.VectorWeight
	}
	if c.GraphWeight <= 0 {
		c.GraphWeight = def.GraphWeight
	}
	if c.PreferenceWeight <= 0 {
		c.PreferenceWeight = def.PreferenceWeight
	}
	if c.PathSignalWeight <= 0 {
		c.PathSignalWeight = def.PathSignalWeight
	}
	if c.SkillSignalWeight <= 0 {
		c.SkillSignalWeight = def.SkillSignalWeight
	}
	if c.MaxCareerScore <= 0 {
		c.MaxCareerScore = def.MaxCareerScore
	}
	if c.CoverageAlert <= 0 {
		c.CoverageAlert = def.CoverageAlert
	}
	return c
}

// Candidate is one scored school/program pair moving through the
// pipeline. Rank fills the hybrid fields.
type Candidate struct {
	Program      store.Program
	School       *store.School
	Scores       scoring.Breakdown
	Optimization float64
	Penalty      float64
	TotalScore   float64

	VectorScore  float64
	GraphScore   float64
	GraphPath    *graph.CareerPath
	RankingScore float64
}

// Rank computes hybrid scores for every candidate, sorts them, and
// returns the top n. Vector scores are keyed by school id.
func Rank(
	candidates []Candidate,
	vectorScores map[int64]float64,
	careerPaths []graph.CareerPath,
	skillMatches []graph.ProgramSkillMatch,
	detectedSkills []string,
	topN int,
	cfg Config,
	logger *slog.Logger,
) []Candidate {
	if len(candidates) == 0 {
		return nil
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	maxPathWeight := maxWeight(careerPaths)
	skillScores := programSkillScores(skillMatches)

	ranked := make([]Candidate, len(candidates))
	for i, c := range candidates {
		c.VectorScore = vectorScores[c.School.ID]
		c.GraphPath = selectGraphPath(c, careerPaths)
		pathScore := pathGraphScore(c.GraphPath, maxPathWeight)
		skillScore := skillScores[c.Program.ID]
		c.GraphScore = clamp01(pathScore*cfg.PathSignalWeight + skillScore*cfg.SkillSignalWeight)

		pref := clamp01(c.Scores.Career / cfg.MaxCareerScore)
		hybrid := c.VectorScore*cfg.VectorWeight + c.GraphScore*cfg.GraphWeight + pref*cfg.PreferenceWeight
		c.RankingScore = clamp(hybrid*100, 0, 100)
		ranked[i] = c
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.RankingScore != b.RankingScore {
			return a.RankingScore > b.RankingScore
		}
		if a.GraphScore != b.GraphScore {
			return a.GraphScore > b.GraphScore
		}
		if a.VectorScore != b.VectorScore {
			return a.VectorScore > b.VectorScore
		}
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		return a.School.Name < b.School.Name
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	logDiagnostics(ranked, detectedSkills, cfg, logger)
	return ranked
}

// selectGraphPath picks the career path backing a candidate: the path
// for its exact program when one exists, otherwise the heaviest path
// for its school.
func selectGraphPath(c Candidate, paths []graph.CareerPath) *graph.CareerPath {
	var best *graph.CareerPath
	for i := range paths {
		p := &paths[i]
		if p.SchoolID != c.School.ID {
			continue
		}
		if p.ProgramID != nil && *p.ProgramID == c.Program.ID {
			return p
		}
		if best == nil || p.Weight > best.Weight {
			best = p
		}
	}
	return best
}

func maxWeight(paths []graph.CareerPath) float64 {
	max := 0.0
	for _, p := range paths {
		if p.Weight > max {
			max = p.Weight
		}
	}
	return max
}

func pathGraphScore(path *graph.CareerPath, maxWeight float64) float64 {
	if path == nil || maxWeight <= 0 {
		return 0
	}
	return clamp01(path.Weight / maxWeight)
}

// programSkillScores normalizes skill relevance to [0,1] by the best
// match, keyed by program id.
func programSkillScores(matches []graph.ProgramSkillMatch) map[int64]float64 {
	if len(matches) == 0 {
		return nil
	}
	max := 0.0
	for _, m := range matches {
		if m.RelevanceScore > max {
			max = m.RelevanceScore
		}
	}
	if max <= 0 {
		return nil
	}
	scores := make(map[int64]float64, len(matches))
	for _, m := range matches {
		scores[m.ProgramID] = clamp01(m.RelevanceScore / max)
	}
	return scores
}

func logDiagnostics(top []Candidate, detectedSkills []string, cfg Config, logger *slog.Logger) {
	if len(top) == 0 {
		logger.Info("hybrid diagnostics: no top candidates")
		return
	}

	withPath := 0
	sumVector, sumGraph, sumPref := 0.0, 0.0, 0.0
	for _, c := range top {
		if c.GraphPath != nil {
			withPath++
		}
		sumVector += c.VectorScore
		sumGraph += c.GraphScore
		sumPref += clamp01(c.Scores.Career / cfg.MaxCareerScore)
	}
	n := float64(len(top))
	coverage := float64(withPath) / n

	logger.Info("hybrid diagnostics",
		"top_n", len(top),
		"graph_path_coverage", coverage,
		"detected_skills", detectedSkills,
		"avg_vector", sumVector/n,
		"avg_graph", sumGraph/n,
		"avg_preference", sumPref/n)

	for i, c := range top {
		logger.Debug("hybrid rank",
			"rank", i+1,
			"school", c.School.Name,
			"program", c.Program.Name,
			"ranking_score", c.RankingScore,
			"vector_score", c.VectorScore,
			"graph_score", c.GraphScore,
			"total_score", c.TotalScore,
			"has_graph_path", c.GraphPath != nil)
	}

	if coverage < cfg.CoverageAlert {
		logger.Warn("graph path coverage below threshold",
			"coverage", coverage,
			"threshold", cfg.CoverageAlert)
	}
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
