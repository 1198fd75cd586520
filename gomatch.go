// Package gomatch is a hybrid school matching engine for international
// students. It combines semantic retrieval over a school embedding
// index, hard eligibility filters, six-factor preference scoring, and
// knowledge-graph career-path reasoning into ranked recommendations,
// with a generative fallback when no data matches.
package gomatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bbiangul/go-match/fallback"
	"github.com/bbiangul/go-match/filter"
	"github.com/bbiangul/go-match/graph"
	"github.com/bbiangul/go-match/llm"
	"github.com/bbiangul/go-match/match"
	"github.com/bbiangul/go-match/rank"
	"github.com/bbiangul/go-match/retrieval"
	"github.com/bbiangul/go-match/scoring"
	"github.com/bbiangul/go-match/store"
)

// MatchResponse is the result of one matching run.
type MatchResponse = match.Response

// Engine is the main entry point for the matching engine.
type Engine interface {
	// Match runs the full pipeline for a student and returns ranked
	// recommendations.
	Match(ctx context.Context, studentID string, opts ...MatchOption) (*MatchResponse, error)

	// IndexSchools embeds every school's summary text into the vector
	// index. Returns the number of schools indexed.
	IndexSchools(ctx context.Context) (int, error)

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// MatchOption configures a single match run.
type MatchOption func(*matchOptions)

type matchOptions struct {
	topN int
	topK int
}

// WithTopN overrides the number of recommendations returned.
func WithTopN(n int) MatchOption {
	return func(o *matchOptions) { o.topN = n }
}

// WithTopK overrides the number of candidate schools retrieved.
func WithTopK(k int) MatchOption {
	return func(o *matchOptions) { o.topK = k }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg        Config
	store      *store.Store
	chatLLM    llm.Provider
	embedLLM   llm.Provider
	retriever  *retrieval.Engine
	pathfinder *graph.Pathfinder
	fallback   *fallback.Generator
	logger     *slog.Logger
}

// New creates a matching engine with the given configuration.
func New(cfg Config) (Engine, error) {
	dbPath := cfg.resolveDBPath()

	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 768
	}
	if cfg.RetrievalTopK == 0 {
		cfg.RetrievalTopK = 20
	}
	if cfg.TopN == 0 {
		cfg.TopN = rank.DefaultTopN
	}
	if cfg.SkillMatchTopN == 0 {
		cfg.SkillMatchTopN = 30
	}
	if (cfg.Weights == scoring.Weights{}) {
		cfg.Weights = scoring.DefaultWeights()
	}

	s, err := store.New(dbPath, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	chatLLM, err := llm.NewProvider(llm.Config{
		Provider: cfg.Chat.Provider,
		Model:    cfg.Chat.Model,
		BaseURL:  cfg.Chat.BaseURL,
		APIKey:   cfg.Chat.APIKey,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}

	embedLLM, err := llm.NewProvider(llm.Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	logger := slog.Default()
	retriever := retrieval.New(s, embedLLM, retrieval.Config{TopK: cfg.RetrievalTopK}, logger)
	pathfinder := graph.NewPathfinder(s, graph.PathfinderConfig{}, logger)

	var gen *fallback.Generator
	if !cfg.DisableFallback {
		gen = fallback.NewGenerator(chatLLM, cfg.Chat.Model, logger)
	}

	return &engine{
		cfg:        cfg,
		store:      s,
		chatLLM:    chatLLM,
		embedLLM:   embedLLM,
		retriever:  retriever,
		pathfinder: pathfinder,
		fallback:   gen,
		logger:     logger,
	}, nil
}

func (e *engine) Store() *store.Store { return e.store }

func (e *engine) Close() error { return e.store.Close() }

// Match runs retrieval, filtering, scoring, graph reasoning, and hybrid
// ranking for one student.
func (e *engine) Match(ctx context.Context, studentID string, opts ...MatchOption) (*MatchResponse, error) {
	started := time.Now()

	options := matchOptions{topN: e.cfg.TopN, topK: e.cfg.RetrievalTopK}
	for _, opt := range opts {
		opt(&options)
	}

	st, err := e.store.GetStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
		}
		return nil, matchFailure(studentID, started, fmt.Errorf("loading student: %w", err))
	}
	pref, err := e.store.GetPreference(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPreferenceNotFound, studentID)
		}
		return nil, matchFailure(studentID, started, fmt.Errorf("loading preference: %w", err))
	}

	hits, err := e.retriever.SearchSchools(ctx, st, pref, options.topK)
	if err != nil {
		// Retrieval is advisory: an unreachable embedding backend must
		// not fail the whole match.
		e.logger.Warn("school retrieval failed", "error", err)
		hits = nil
	}
	e.logger.Info("retrieval complete", "student_id", studentID, "candidates", len(hits))

	if len(hits) == 0 {
		return e.fallbackResponse(ctx, st, pref, started,
			"Recommendations generated from your profile because no indexed schools matched.", nil)
	}

	schoolIDs := make([]int64, len(hits))
	vectorScores := make(map[int64]float64, len(hits))
	for i, h := range hits {
		schoolIDs[i] = h.SchoolID
		vectorScores[h.SchoolID] = h.Score
	}

	schools, err := e.store.GetSchoolsByIDs(ctx, schoolIDs)
	if err != nil {
		return nil, matchFailure(studentID, started, fmt.Errorf("loading schools: %w", err))
	}
	programs, err := e.store.GetProgramsBySchoolIDs(ctx, schoolIDs)
	if err != nil {
		return nil, matchFailure(studentID, started, fmt.Errorf("loading programs: %w", err))
	}

	careerPaths := e.findCareerPaths(ctx, pref)
	detectedSkills := e.detectSkills(ctx, pref)
	var skillMatches []graph.ProgramSkillMatch
	if len(detectedSkills) > 0 {
		skillMatches, err = e.pathfinder.FindProgramsBySkills(ctx, detectedSkills, e.cfg.SkillMatchTopN)
		if err != nil {
			e.logger.Warn("skill graph lookup failed", "error", err)
			skillMatches = nil
		}
	}

	filtered := filter.Apply(st, pref, programs, schools, e.logger)
	if len(filtered.Passed) == 0 {
		minTuition, terr := e.store.MinTuition(ctx)
		if terr != nil {
			minTuition = 0
		}
		summary := filter.Summarize(filtered, minTuition)
		e.logger.Info("all candidates filtered out",
			"student_id", studentID,
			"candidates", summary.TotalCandidates,
			"by_budget", summary.FilteredByBudget,
			"by_english", summary.FilteredByEnglish,
			"by_visa", summary.FilteredByVisa)
		return e.fallbackResponse(ctx, st, pref, started,
			filterSummaryMessage(summary), toFilterSummary(summary))
	}

	candidates := make([]rank.Candidate, 0, len(filtered.Passed))
	for _, p := range filtered.Passed {
		school := schools[p.SchoolID]
		if school == nil {
			continue
		}
		breakdown := scoring.Score(st, pref, p, school, e.cfg.Weights)
		bonus := scoring.Bonus(st, pref, p, school)
		penalty := scoring.Penalty(st, pref, p, school)
		total := breakdown.Total() + bonus + penalty
		if total < 0 {
			total = 0
		}
		candidates = append(candidates, rank.Candidate{
			Program:      p,
			School:       school,
			Scores:       breakdown,
			Optimization: bonus,
			Penalty:      penalty,
			TotalScore:   total,
		})
	}

	top := rank.Rank(candidates, vectorScores, careerPaths, skillMatches, detectedSkills, options.topN, e.cfg.Fusion, e.logger)

	results := make([]match.Recommendation, len(top))
	for i, c := range top {
		recType := classifyRecommendationType(c.RankingScore)
		pros, cons := prosAndCons(pref, c.Program, c.School, c.Scores)
		breakdown := toBreakdown(c.Scores)
		results[i] = match.Recommendation{
			Rank:               i + 1,
			School:             schoolSummary(c.School),
			Program:            programSummary(c.Program),
			TotalScore:         c.RankingScore,
			EstimatedROI:       estimatedROI(c.School, c.Program),
			ScoreBreakdown:     breakdown,
			IndicatorScores:    match.Indicators(breakdown),
			RecommendationType: recType,
			Explanation:        explain(c, recType),
			Pros:               pros,
			Cons:               cons,
		}
	}

	resp := &match.Response{
		MatchID:         uuid.NewString(),
		StudentID:       studentID,
		TotalMatches:    len(results),
		ExecutionTimeMs: int(time.Since(started).Milliseconds()),
		Results:         results,
		NextSteps:       nextSteps(pref),
		CreatedAt:       time.Now().UTC(),
	}
	if len(results) > 0 {
		resp.IndicatorDescription = indicatorDescription(&results[0])
	}
	e.logMatch(ctx, resp, false)
	return resp, nil
}

// fallbackResponse builds a response from the generative fallback, or
// an empty one when the fallback is disabled. summary is non-nil only
// when the hard filters exhausted the candidate pool.
func (e *engine) fallbackResponse(ctx context.Context, st *store.Student, pref *store.Preference, started time.Time, message string, summary *match.FilterSummary) (*MatchResponse, error) {
	var results []match.Recommendation
	if e.fallback != nil {
		results = e.fallback.Generate(ctx, st, pref)
	}

	resp := &match.Response{
		MatchID:         uuid.NewString(),
		StudentID:       st.ID,
		TotalMatches:    len(results),
		ExecutionTimeMs: int(time.Since(started).Milliseconds()),
		Results:         results,
		Message:         message,
		FilterSummary:   summary,
		NextSteps:       nextSteps(pref),
		CreatedAt:       time.Now().UTC(),
	}
	if len(results) > 0 {
		resp.IndicatorDescription = indicatorDescription(&results[0])
	}
	e.logMatch(ctx, resp, true)
	return resp, nil
}

// matchFailure wraps a pipeline error with the student it failed for and
// the time spent before failing.
func matchFailure(studentID string, started time.Time, err error) error {
	return fmt.Errorf("match for student %s failed after %dms: %w",
		studentID, time.Since(started).Milliseconds(), err)
}

func toFilterSummary(s filter.Summary) *match.FilterSummary {
	return &match.FilterSummary{
		TotalCandidates:     s.TotalCandidates,
		FilteredByBudget:    s.FilteredByBudget,
		FilteredByEnglish:   s.FilteredByEnglish,
		FilteredByVisa:      s.FilteredByVisa,
		MinimumTuitionFound: s.MinimumTuitionFound,
	}
}

func filterSummaryMessage(s filter.Summary) string {
	msg := fmt.Sprintf("All %d candidate programs were filtered out (budget: %d, english: %d, visa: %d).",
		s.TotalCandidates, s.FilteredByBudget, s.FilteredByEnglish, s.FilteredByVisa)
	if s.FilteredByBudget > 0 && s.MinimumTuitionFound > 0 {
		msg += fmt.Sprintf(" The lowest tuition on record is $%d per year.", s.MinimumTuitionFound)
	}
	return msg + " Recommendations below were generated from your profile."
}

func (e *engine) logMatch(ctx context.Context, resp *match.Response, fallbackUsed bool) {
	resultsJSON, err := json.Marshal(resp.Results)
	if err != nil {
		resultsJSON = nil
	}
	err = e.store.LogMatch(ctx, store.MatchLog{
		MatchID:      resp.MatchID,
		StudentID:    resp.StudentID,
		TotalMatches: resp.TotalMatches,
		ExecutionMs:  resp.ExecutionTimeMs,
		FallbackUsed: fallbackUsed,
		Results:      string(resultsJSON),
	})
	if err != nil {
		e.logger.Warn("recording match log failed", "match_id", resp.MatchID, "error", err)
	}
}

// findCareerPaths derives a company/job intent from the career goal and
// walks the knowledge graph backwards to schools.
func (e *engine) findCareerPaths(ctx context.Context, pref *store.Preference) []graph.CareerPath {
	company, job := e.graphIntent(ctx, pref)
	if company == "" {
		return nil
	}
	paths, err := e.pathfinder.FindCareerPaths(ctx, company, job)
	if err != nil {
		e.logger.Warn("career path search failed", "company", company, "error", err)
		return nil
	}
	e.logger.Info("career paths found", "company", company, "job", job, "paths", len(paths))
	return paths
}

// graphIntent extracts the target company and job from the career goal.
// Known entities win; otherwise the text after " at ", " @ " or " for "
// names the company and the text before the last " at " names the job.
func (e *engine) graphIntent(ctx context.Context, pref *store.Preference) (company, job string) {
	if pref == nil {
		return "", ""
	}
	goal := strings.TrimSpace(pref.CareerGoal)
	if goal == "" {
		return "", ""
	}
	company = e.detectCompany(ctx, goal)
	if company == "" {
		return "", ""
	}
	return company, e.detectJob(ctx, goal)
}

func (e *engine) detectCompany(ctx context.Context, goal string) string {
	if name := e.entityName(ctx, graph.TypeCompany, goal); name != "" {
		return name
	}
	for _, keyword := range []string{" at ", " @ ", " for "} {
		candidate := extractAfterKeyword(goal, keyword)
		if candidate == "" {
			continue
		}
		if name := e.entityName(ctx, graph.TypeCompany, candidate); name != "" {
			return name
		}
		return candidate
	}
	return ""
}

func (e *engine) detectJob(ctx context.Context, goal string) string {
	if name := e.entityName(ctx, graph.TypeJob, goal); name != "" {
		return name
	}
	idx := strings.LastIndex(strings.ToLower(goal), " at ")
	if idx <= 0 {
		return ""
	}
	before := strings.TrimSpace(goal[:idx])
	if before == "" {
		return ""
	}
	if name := e.entityName(ctx, graph.TypeJob, before); name != "" {
		return name
	}
	return before
}

func (e *engine) entityName(ctx context.Context, entityType, term string) string {
	name, err := e.pathfinder.LookupEntityName(ctx, entityType, term)
	if err != nil {
		e.logger.Debug("entity lookup failed", "type", entityType, "term", term, "error", err)
		return ""
	}
	return name
}

// extractAfterKeyword returns the fragment after the last occurrence of
// keyword, cut at the first comma or period.
func extractAfterKeyword(text, keyword string) string {
	lower := strings.ToLower(text)
	idx := strings.LastIndex(lower, strings.ToLower(keyword))
	if idx < 0 {
		return ""
	}
	fragment := text[idx+len(keyword):]
	if cut := strings.IndexAny(fragment, ",."); cut >= 0 {
		fragment = fragment[:cut]
	}
	return strings.TrimSpace(fragment)
}

// stopWords are generic terms excluded from skill detection.
var stopWords = map[string]bool{
	"and": true, "or": true, "the": true, "for": true, "with": true,
	"to": true, "in": true, "at": true, "of": true, "on": true,
	"a": true, "an": true, "as": true, "my": true, "be": true,
}

const maxDetectedSkills = 5

// detectSkills resolves terms from the target major and career goal
// against SKILL entities in the graph.
func (e *engine) detectSkills(ctx context.Context, pref *store.Preference) []string {
	if pref == nil {
		return nil
	}
	seen := make(map[string]bool)
	var terms []string
	for _, text := range []string{pref.TargetMajor, pref.CareerGoal} {
		for _, term := range extractTerms(text) {
			if !seen[term] {
				seen[term] = true
				terms = append(terms, term)
			}
		}
	}
	if len(terms) == 0 {
		return nil
	}

	found := make(map[string]bool)
	var skills []string
	for _, term := range terms {
		name := e.entityName(ctx, graph.TypeSkill, term)
		if name == "" || found[name] {
			continue
		}
		found[name] = true
		skills = append(skills, name)
		if len(skills) == maxDetectedSkills {
			break
		}
	}
	return skills
}

// extractTerms lowercases and splits on anything outside [a-z0-9+#] so
// terms like "c++" and "c#" survive.
func extractTerms(text string) []string {
	var terms []string
	for _, term := range splitNonAlnum(strings.ToLower(text)) {
		if len(term) >= 2 && !stopWords[term] {
			terms = append(terms, term)
		}
	}
	return terms
}

func splitNonAlnum(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		case r == '+' || r == '#':
			return false
		}
		return true
	})
}

// IndexSchools embeds a summary of every school into the vector index.
func (e *engine) IndexSchools(ctx context.Context) (int, error) {
	schools, err := e.store.ListSchools(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing schools: %w", err)
	}
	if len(schools) == 0 {
		return 0, ErrNoSchoolsIndexed
	}

	ids := make([]int64, len(schools))
	for i, sc := range schools {
		ids[i] = sc.ID
	}
	programs, err := e.store.GetProgramsBySchoolIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("loading programs: %w", err)
	}
	programNames := make(map[int64][]string)
	for _, p := range programs {
		programNames[p.SchoolID] = append(programNames[p.SchoolID], p.Name)
	}

	const batchSize = 16
	indexed := 0
	for start := 0; start < len(schools); start += batchSize {
		end := start + batchSize
		if end > len(schools) {
			end = len(schools)
		}
		batch := schools[start:end]

		texts := make([]string, len(batch))
		for i, sc := range batch {
			texts[i] = schoolSummaryText(sc, programNames[sc.ID])
		}
		embeddings, err := e.embedLLM.Embed(ctx, texts)
		if err != nil {
			return indexed, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
		if len(embeddings) != len(batch) {
			return indexed, fmt.Errorf("%w: got %d embeddings for %d schools",
				ErrEmbeddingFailed, len(embeddings), len(batch))
		}
		for i, sc := range batch {
			if err := e.store.UpsertSchoolEmbedding(ctx, sc.ID, embeddings[i]); err != nil {
				return indexed, fmt.Errorf("storing embedding for school %d: %w", sc.ID, err)
			}
			indexed++
		}
	}
	e.logger.Info("school index built", "schools", indexed)
	return indexed, nil
}

// schoolSummaryText renders the searchable description of a school.
func schoolSummaryText(sc store.School, programNames []string) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%s is a %s", sc.Name, strings.ReplaceAll(sc.Type, "_", " ")))
	if sc.City != "" || sc.State != "" {
		parts = append(parts, fmt.Sprintf("located in %s, %s", sc.City, sc.State))
	}
	if sc.Tuition != nil {
		parts = append(parts, fmt.Sprintf("annual tuition $%d", *sc.Tuition))
	}
	if sc.TransferRate != nil {
		parts = append(parts, fmt.Sprintf("transfer rate %.0f%%", *sc.TransferRate))
	}
	if sc.EmploymentRate != nil {
		parts = append(parts, fmt.Sprintf("employment rate %.0f%%", *sc.EmploymentRate))
	}
	if len(programNames) > 0 {
		parts = append(parts, "programs: "+strings.Join(programNames, ", "))
	}
	return strings.Join(parts, ". ")
}
