package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bbiangul/go-match/store"
)

// PathfinderConfig tunes graph path search.
type PathfinderConfig struct {
	// MaxDepth bounds backward expansion from the target company.
	MaxDepth int `json:"max_depth"`
	// MinDepth is the shortest path worth reporting. Shorter paths carry
	// no school-to-company story.
	MinDepth int `json:"min_depth"`
	// MinConfidence filters out low-evidence triples.
	MinConfidence float64 `json:"min_confidence"`
	// MaxPaths caps the number of returned career paths.
	MaxPaths int `json:"max_paths"`
}

// DefaultPathfinderConfig returns the standard search settings.
func DefaultPathfinderConfig() PathfinderConfig {
	return PathfinderConfig{
		MaxDepth:      4,
		MinDepth:      3,
		MinConfidence: 0.8,
		MaxPaths:      20,
	}
}

// Pathfinder discovers weighted school-to-company routes in the career
// graph by expanding backwards from a target company.
type Pathfinder struct {
	store  Store
	cfg    PathfinderConfig
	logger *slog.Logger
}

// NewPathfinder creates a Pathfinder on top of the given store.
func NewPathfinder(s Store, cfg PathfinderConfig, logger *slog.Logger) *Pathfinder {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultPathfinderConfig()
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.MinDepth <= 0 {
		cfg.MinDepth = def.MinDepth
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.MaxPaths <= 0 {
		cfg.MaxPaths = def.MaxPaths
	}
	return &Pathfinder{store: s, cfg: cfg, logger: logger}
}

// pathNode is one entity on a partial path during expansion.
type pathNode struct {
	id         string
	entityType string
	name       string
}

type partialPath struct {
	nodes  []pathNode
	weight float64
}

// FindCareerPaths searches for routes from schools to the named company.
// The company is resolved by canonical name; an unknown company yields no
// paths. When job is non-empty the first hop is restricted to HIRES_FROM
// triples so paths stay anchored on the hiring relationship.
func (p *Pathfinder) FindCareerPaths(ctx context.Context, company, job string) ([]CareerPath, error) {
	seed, err := p.store.GetEntityByCanonical(ctx, TypeCompany, Normalize(company))
	if err != nil {
		return nil, fmt.Errorf("resolving company %q: %w", company, err)
	}
	if seed == nil {
		p.logger.Debug("graph: company not in graph", "company", company)
		return nil, nil
	}

	firstRelation := ""
	if job != "" {
		firstRelation = RelHiresFrom
	}
	baseTriples, err := p.store.TriplesByHeads(ctx, []string{seed.ID}, firstRelation, p.cfg.MinConfidence)
	if err != nil {
		return nil, fmt.Errorf("loading base triples: %w", err)
	}

	frontier := make([]partialPath, 0, len(baseTriples))
	for _, t := range baseTriples {
		frontier = append(frontier, partialPath{
			nodes: []pathNode{
				{id: t.HeadID, entityType: t.HeadType, name: t.HeadName},
				{id: t.TailID, entityType: t.TailType, name: t.TailName},
			},
			weight: t.Weight * t.Confidence,
		})
	}

	var complete []partialPath
	for depth := 1; depth < p.cfg.MaxDepth && len(frontier) > 0; depth++ {
		if depth >= p.cfg.MinDepth {
			complete = append(complete, frontier...)
		}

		// Batch-load triples pointing at every frontier tip.
		tips := make([]string, 0, len(frontier))
		seen := make(map[string]bool)
		for _, pp := range frontier {
			tip := pp.nodes[len(pp.nodes)-1].id
			if !seen[tip] {
				seen[tip] = true
				tips = append(tips, tip)
			}
		}
		incoming, err := p.store.TriplesByTails(ctx, tips, "", p.cfg.MinConfidence)
		if err != nil {
			return nil, fmt.Errorf("expanding paths at depth %d: %w", depth, err)
		}
		byTail := make(map[string][]store.Triple)
		for _, t := range incoming {
			byTail[t.TailID] = append(byTail[t.TailID], t)
		}

		var next []partialPath
		for _, pp := range frontier {
			tip := pp.nodes[len(pp.nodes)-1]
			for _, t := range byTail[tip.id] {
				if pp.contains(t.HeadID) {
					continue // cycle guard
				}
				extended := partialPath{
					nodes:  append(append([]pathNode(nil), pp.nodes...), pathNode{id: t.HeadID, entityType: t.HeadType, name: t.HeadName}),
					weight: pp.weight * t.Weight * t.Confidence,
				}
				next = append(next, extended)
			}
		}
		frontier = next
	}
	if p.cfg.MaxDepth >= p.cfg.MinDepth {
		complete = append(complete, frontier...)
	}

	sort.Slice(complete, func(i, j int) bool { return complete[i].weight > complete[j].weight })
	if len(complete) > p.cfg.MaxPaths {
		complete = complete[:p.cfg.MaxPaths]
	}

	paths := make([]CareerPath, 0, len(complete))
	for _, pp := range complete {
		cp, ok := p.toCareerPath(ctx, pp, seed.Name)
		if !ok {
			continue // no school on this path
		}
		paths = append(paths, cp)
	}
	p.logger.Debug("graph: career paths found",
		"company", seed.Name, "job", job, "paths", len(paths))
	return paths, nil
}

func (pp partialPath) contains(id string) bool {
	for _, n := range pp.nodes {
		if n.id == id {
			return true
		}
	}
	return false
}

// toCareerPath maps a raw path onto the reporting shape. Paths without a
// school entity are dropped.
func (p *Pathfinder) toCareerPath(ctx context.Context, pp partialPath, company string) (CareerPath, bool) {
	cp := CareerPath{
		Company: company,
		Weight:  pp.weight,
		Depth:   len(pp.nodes) - 1,
	}
	for _, n := range pp.nodes {
		cp.Path = append(cp.Path, n.name)
		switch n.entityType {
		case TypeSchool:
			if cp.SchoolName == "" {
				cp.SchoolName = n.name
				if e := p.entityByID(ctx, n.id); e != nil && e.SchoolID != nil {
					cp.SchoolID = *e.SchoolID
				}
			}
		case TypeProgram:
			if cp.ProgramName == "" {
				cp.ProgramName = n.name
				if e := p.entityByID(ctx, n.id); e != nil {
					cp.ProgramID = e.ProgramID
				}
			}
		case TypeJob:
			if cp.Job == "" {
				cp.Job = n.name
			}
		case TypeSkill:
			cp.Skills = append(cp.Skills, n.name)
		}
	}
	if cp.SchoolName == "" {
		return CareerPath{}, false
	}
	return cp, true
}

// entityByID loads a single entity, tolerating lookup failures.
func (p *Pathfinder) entityByID(ctx context.Context, id string) *store.GraphEntity {
	m, err := p.store.GetEntitiesByIDs(ctx, []string{id})
	if err != nil {
		return nil
	}
	return m[id]
}

// FindProgramsBySkills returns programs linked to the given skills by
// DEVELOPS triples, ranked by distinct matched skill count and then by
// average confidence-weighted relevance.
func (p *Pathfinder) FindProgramsBySkills(ctx context.Context, skills []string, topN int) ([]ProgramSkillMatch, error) {
	if len(skills) == 0 {
		return nil, nil
	}

	var skillIDs []string
	skillNames := make(map[string]string) // entity id -> display name
	for _, s := range skills {
		e, err := p.store.GetEntityByCanonical(ctx, TypeSkill, Normalize(s))
		if err != nil {
			return nil, fmt.Errorf("resolving skill %q: %w", s, err)
		}
		if e != nil {
			skillIDs = append(skillIDs, e.ID)
			skillNames[e.ID] = e.Name
		}
	}
	if len(skillIDs) == 0 {
		return nil, nil
	}

	triples, err := p.store.TriplesByTails(ctx, skillIDs, RelDevelops, p.cfg.MinConfidence)
	if err != nil {
		return nil, fmt.Errorf("loading skill triples: %w", err)
	}

	type agg struct {
		entityID string
		name     string
		skills   map[string]bool
		sum      float64
		count    int
	}
	byProgram := make(map[string]*agg)
	for _, t := range triples {
		if t.HeadType != TypeProgram {
			continue
		}
		a := byProgram[t.HeadID]
		if a == nil {
			a = &agg{entityID: t.HeadID, name: t.HeadName, skills: make(map[string]bool)}
			byProgram[t.HeadID] = a
		}
		a.skills[skillNames[t.TailID]] = true
		a.sum += t.Confidence * t.Weight
		a.count++
	}
	if len(byProgram) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(byProgram))
	for id := range byProgram {
		ids = append(ids, id)
	}
	entities, err := p.store.GetEntitiesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading program entities: %w", err)
	}

	var matches []ProgramSkillMatch
	for id, a := range byProgram {
		e := entities[id]
		if e == nil || e.ProgramID == nil {
			continue // entity not linked to a catalog program
		}
		matched := make([]string, 0, len(a.skills))
		for s := range a.skills {
			matched = append(matched, s)
		}
		sort.Strings(matched)
		matches = append(matches, ProgramSkillMatch{
			ProgramID:      *e.ProgramID,
			ProgramName:    a.name,
			MatchedSkills:  matched,
			RelevanceScore: a.sum / float64(a.count),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if len(matches[i].MatchedSkills) != len(matches[j].MatchedSkills) {
			return len(matches[i].MatchedSkills) > len(matches[j].MatchedSkills)
		}
		return matches[i].RelevanceScore > matches[j].RelevanceScore
	})
	if topN > 0 && len(matches) > topN {
		matches = matches[:topN]
	}
	return matches, nil
}

// FindNeighbors returns the distinct entities reachable from the named
// entity within the given number of hops (1 or 2) over outgoing triples.
func (p *Pathfinder) FindNeighbors(ctx context.Context, entityType, name string, hops int) ([]store.GraphEntity, error) {
	e, err := p.store.GetEntityByCanonical(ctx, entityType, Normalize(name))
	if err != nil {
		return nil, fmt.Errorf("resolving entity %q: %w", name, err)
	}
	if e == nil {
		return nil, nil
	}

	hop1, err := p.store.TriplesByHeads(ctx, []string{e.ID}, "", p.cfg.MinConfidence)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{e.ID: true}
	var ids []string
	for _, t := range hop1 {
		if !seen[t.TailID] {
			seen[t.TailID] = true
			ids = append(ids, t.TailID)
		}
	}

	if hops >= 2 && len(ids) > 0 {
		hop2, err := p.store.TriplesByHeads(ctx, ids, "", p.cfg.MinConfidence)
		if err != nil {
			return nil, err
		}
		for _, t := range hop2 {
			if !seen[t.TailID] {
				seen[t.TailID] = true
				ids = append(ids, t.TailID)
			}
		}
	}

	m, err := p.store.GetEntitiesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]store.GraphEntity, 0, len(m))
	for _, id := range ids {
		if ent := m[id]; ent != nil {
			out = append(out, *ent)
		}
	}
	return out, nil
}

// LookupEntityName returns the display name of the best matching entity of
// one type for a free-text term, or "" when nothing matches.
func (p *Pathfinder) LookupEntityName(ctx context.Context, entityType, term string) (string, error) {
	if Normalize(term) == "" {
		return "", nil
	}
	found, err := p.store.SearchEntitiesByName(ctx, entityType, term, 1)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "", nil
	}
	return found[0].Name, nil
}
