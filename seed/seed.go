// Package seed loads school and program catalogs, and optionally a
// career knowledge graph, from XLSX workbooks into the store.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/bbiangul/go-match/graph"
	"github.com/bbiangul/go-match/store"
)

const (
	schoolsSheet  = "Schools"
	programsSheet = "Programs"
	graphSheet    = "CareerGraph"
)

// Result reports how many rows were loaded from a workbook.
type Result struct {
	Schools  int
	Programs int
	Triples  int
	Skipped  int
}

// Loader reads catalog workbooks and upserts their rows.
type Loader struct {
	store  *store.Store
	logger *slog.Logger
}

func New(st *store.Store, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: st, logger: logger}
}

// LoadWorkbook reads the Schools and Programs sheets from the workbook
// at path, and the optional CareerGraph sheet. Programs and graph
// entities reference schools by name; rows referencing an unknown
// school are skipped and counted in Result.Skipped.
func (l *Loader) LoadWorkbook(ctx context.Context, path string) (*Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	res := &Result{}
	schoolIDs, err := l.loadSchools(ctx, f, res)
	if err != nil {
		return nil, err
	}
	programIDs, err := l.loadPrograms(ctx, f, schoolIDs, res)
	if err != nil {
		return nil, err
	}
	if err := l.loadGraph(ctx, f, schoolIDs, programIDs, res); err != nil {
		return nil, err
	}

	l.logger.Info("workbook loaded",
		"path", path,
		"schools", res.Schools,
		"programs", res.Programs,
		"triples", res.Triples,
		"skipped", res.Skipped)
	return res, nil
}

func (l *Loader) loadSchools(ctx context.Context, f *excelize.File, res *Result) (map[string]int64, error) {
	rows, err := f.GetRows(schoolsSheet)
	if err != nil {
		return nil, fmt.Errorf("reading %s sheet: %w", schoolsSheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s sheet has no data rows", schoolsSheet)
	}

	cols := headerIndex(rows[0])
	ids := make(map[string]int64)
	for i, row := range rows[1:] {
		name := cell(row, cols, "name")
		if name == "" {
			res.Skipped++
			continue
		}
		sc := store.School{
			Name:                 name,
			Type:                 cell(row, cols, "type"),
			State:                cell(row, cols, "state"),
			City:                 cell(row, cols, "city"),
			Tuition:              parseInt(cell(row, cols, "tuition")),
			LivingCost:           parseInt(cell(row, cols, "living_cost")),
			AcceptanceRate:       parseFloat(cell(row, cols, "acceptance_rate")),
			TransferRate:         parseFloat(cell(row, cols, "transfer_rate")),
			EmploymentRate:       parseFloat(cell(row, cols, "employment_rate")),
			AverageSalary:        parseInt(cell(row, cols, "average_salary")),
			GlobalRanking:        parseInt(cell(row, cols, "global_ranking")),
			RankingField:         cell(row, cols, "ranking_field"),
			AlumniNetworkCount:   parseInt(cell(row, cols, "alumni_network_count")),
			FeatureBadges:        parseList(cell(row, cols, "feature_badges")),
			Facilities:           parseList(cell(row, cols, "facilities")),
			ESLProgram:           cell(row, cols, "esl_program"),
			InternationalSupport: cell(row, cols, "international_support"),
		}
		id, err := l.store.UpsertSchool(ctx, sc)
		if err != nil {
			return nil, fmt.Errorf("upserting school %q (row %d): %w", name, i+2, err)
		}
		ids[strings.ToLower(name)] = id
		res.Schools++
	}
	return ids, nil
}

func (l *Loader) loadPrograms(ctx context.Context, f *excelize.File, schoolIDs map[string]int64, res *Result) (map[string]int64, error) {
	rows, err := f.GetRows(programsSheet)
	if err != nil {
		return nil, fmt.Errorf("reading %s sheet: %w", programsSheet, err)
	}
	ids := make(map[string]int64)
	if len(rows) < 2 {
		return ids, nil
	}

	cols := headerIndex(rows[0])
	for i, row := range rows[1:] {
		name := cell(row, cols, "name")
		schoolName := cell(row, cols, "school")
		if name == "" || schoolName == "" {
			res.Skipped++
			continue
		}
		schoolID, ok := schoolIDs[strings.ToLower(schoolName)]
		if !ok {
			l.logger.Warn("program references unknown school",
				"program", name, "school", schoolName, "row", i+2)
			res.Skipped++
			continue
		}
		p := store.Program{
			SchoolID:     schoolID,
			Name:         name,
			Type:         cell(row, cols, "type"),
			Degree:       cell(row, cols, "degree"),
			Duration:     cell(row, cols, "duration"),
			Tuition:      parseInt(cell(row, cols, "tuition")),
			OPTAvailable: parseBool(cell(row, cols, "opt_available")),
			Metadata:     cell(row, cols, "metadata"),
		}
		id, err := l.store.UpsertProgram(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("upserting program %q (row %d): %w", name, i+2, err)
		}
		ids[strings.ToLower(name)] = id
		res.Programs++
	}
	return ids, nil
}

// loadGraph reads the optional CareerGraph sheet: one triple per row
// with head/tail entity types and names, a relation, and optional
// weight and confidence columns. Entities are resolved through the
// graph resolver; school and program entities are linked back to their
// catalog rows by name.
func (l *Loader) loadGraph(ctx context.Context, f *excelize.File, schoolIDs, programIDs map[string]int64, res *Result) error {
	rows, err := f.GetRows(graphSheet)
	if err != nil || len(rows) < 2 {
		return nil // sheet is optional
	}

	resolver := graph.NewResolver(l.store, graph.ResolverConfig{}, l.logger)
	cols := headerIndex(rows[0])
	for i, row := range rows[1:] {
		headType := graph.ParseEntityType(cell(row, cols, "head_type"))
		tailType := graph.ParseEntityType(cell(row, cols, "tail_type"))
		relation := graph.ParseRelation(cell(row, cols, "relation"))
		headName := cell(row, cols, "head")
		tailName := cell(row, cols, "tail")
		if headType == "" || tailType == "" || relation == "" || headName == "" || tailName == "" {
			l.logger.Warn("graph row incomplete", "row", i+2)
			res.Skipped++
			continue
		}

		head, err := l.resolveEntity(ctx, resolver, headType, headName, schoolIDs, programIDs)
		if err != nil {
			return fmt.Errorf("resolving %q (row %d): %w", headName, i+2, err)
		}
		tail, err := l.resolveEntity(ctx, resolver, tailType, tailName, schoolIDs, programIDs)
		if err != nil {
			return fmt.Errorf("resolving %q (row %d): %w", tailName, i+2, err)
		}

		weight := 1.0
		if v := parseFloat(cell(row, cols, "weight")); v != nil {
			weight = *v
		}
		confidence := 0.9
		if v := parseFloat(cell(row, cols, "confidence")); v != nil {
			confidence = *v
		}
		t := store.Triple{
			ID:         uuid.NewString(),
			HeadID:     head.ID,
			HeadType:   head.EntityType,
			HeadName:   head.Name,
			Relation:   relation,
			TailID:     tail.ID,
			TailType:   tail.EntityType,
			TailName:   tail.Name,
			Weight:     weight,
			Confidence: confidence,
		}
		if err := l.store.InsertTriple(ctx, t); err != nil {
			return fmt.Errorf("inserting triple (row %d): %w", i+2, err)
		}
		res.Triples++
	}
	return nil
}

// resolveEntity resolves a graph entity by type and name, creating it if
// needed. School and program entities get catalog links on creation.
func (l *Loader) resolveEntity(ctx context.Context, resolver *graph.Resolver, entityType, name string, schoolIDs, programIDs map[string]int64) (*store.GraphEntity, error) {
	switch entityType {
	case graph.TypeSchool, graph.TypeProgram:
		canonical := graph.Normalize(name)
		e, err := l.store.GetEntityByCanonical(ctx, entityType, canonical)
		if err != nil {
			return nil, err
		}
		if e != nil {
			return e, nil
		}
		created := store.GraphEntity{
			ID:            uuid.NewString(),
			EntityType:    entityType,
			Name:          strings.TrimSpace(name),
			CanonicalName: canonical,
			Aliases:       "[]",
			Confidence:    0.9,
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if entityType == graph.TypeSchool {
			if id, ok := schoolIDs[key]; ok {
				created.SchoolID = &id
			}
		} else if id, ok := programIDs[key]; ok {
			created.ProgramID = &id
		}
		if err := l.store.InsertEntity(ctx, created); err != nil {
			return nil, err
		}
		return &created, nil
	default:
		return resolver.ResolveOrCreate(ctx, entityType, name)
	}
}

// headerIndex maps normalized header names to column positions.
// "Living Cost", "living-cost" and "living_cost" all resolve the same.
func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
		if h != "" {
			cols[h] = i
		}
	}
	return cols
}

func cell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseInt(s string) *int {
	if s == "" {
		return nil
	}
	s = strings.NewReplacer(",", "", "$", "").Replace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		v := int(f)
		return &v
	}
	return nil
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "%")
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return &f
	}
	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}

// parseList normalizes a badge/facility cell into a JSON array string.
// Accepts JSON arrays as-is, otherwise splits on commas or semicolons.
func parseList(s string) string {
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "[") {
		var items []string
		if err := json.Unmarshal([]byte(s), &items); err == nil {
			return s
		}
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	if len(items) == 0 {
		return ""
	}
	out, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	return string(out)
}
