package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bbiangul/go-match/store"
)

// Store is the persistence surface the graph package needs. *store.Store
// satisfies it.
type Store interface {
	InsertEntity(ctx context.Context, e store.GraphEntity) error
	GetEntityByCanonical(ctx context.Context, entityType, canonical string) (*store.GraphEntity, error)
	GetEntitiesByType(ctx context.Context, entityType string) ([]store.GraphEntity, error)
	GetEntitiesByIDs(ctx context.Context, ids []string) (map[string]*store.GraphEntity, error)
	SearchEntitiesByName(ctx context.Context, entityType, term string, limit int) ([]store.GraphEntity, error)
	UpdateEntityAliases(ctx context.Context, id, aliasesJSON string) error
	UpdateEntityConfidence(ctx context.Context, id string, confidence float64) error
	CountTriplesByEntity(ctx context.Context, id string) (int, error)
	InsertTriple(ctx context.Context, t store.Triple) error
	InsertTriples(ctx context.Context, triples []store.Triple) error
	TriplesByHeads(ctx context.Context, headIDs []string, relation string, minConfidence float64) ([]store.Triple, error)
	TriplesByTails(ctx context.Context, tailIDs []string, relation string, minConfidence float64) ([]store.Triple, error)
}

// ResolverConfig tunes entity resolution.
type ResolverConfig struct {
	// DefaultConfidence is assigned to newly created entities.
	DefaultConfidence float64 `json:"default_confidence"`
	// DuplicateThreshold is the minimum similarity for duplicate candidates.
	DuplicateThreshold float64 `json:"duplicate_threshold"`
	// CacheTTL bounds how long per-type entity lists are cached.
	CacheTTL time.Duration `json:"cache_ttl"`
	// CacheSize caps the number of cached alias index entries per type.
	CacheSize int `json:"cache_size"`
}

// DefaultResolverConfig returns the standard resolution settings.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		DefaultConfidence:  0.75,
		DuplicateThreshold: 0.85,
		CacheTTL:           10 * time.Minute,
		CacheSize:          512,
	}
}

// Resolver maps raw entity names onto canonical graph entities. It keeps a
// TTL cache of per-type entity lists and alias indexes, invalidated on
// writes.
type Resolver struct {
	store  Store
	cfg    ResolverConfig
	logger *slog.Logger

	mu      sync.Mutex
	byType  map[string]entityCacheEntry
	aliases map[string]map[string]string // type -> normalized alias -> canonical name
}

type entityCacheEntry struct {
	entities []store.GraphEntity
	expires  time.Time
}

// NewResolver creates a Resolver on top of the given store.
func NewResolver(s Store, cfg ResolverConfig, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultResolverConfig().CacheTTL
	}
	if cfg.DefaultConfidence <= 0 {
		cfg.DefaultConfidence = DefaultResolverConfig().DefaultConfidence
	}
	if cfg.DuplicateThreshold <= 0 {
		cfg.DuplicateThreshold = DefaultResolverConfig().DuplicateThreshold
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultResolverConfig().CacheSize
	}
	return &Resolver{
		store:   s,
		cfg:     cfg,
		logger:  logger,
		byType:  make(map[string]entityCacheEntry),
		aliases: make(map[string]map[string]string),
	}
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	corporateRe  = regexp.MustCompile(`\b(incorporated|inc\.?|corporation|corp\.?|llc\.?|ltd\.?)\b`)
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9\s-]`)
)

// Normalize produces the canonical form of an entity name: lowercase,
// collapsed whitespace, "&" spelled out, corporate suffixes dropped, and
// punctuation removed.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = whitespaceRe.ReplaceAllString(n, " ")
	n = strings.ReplaceAll(n, "&", "and")
	n = corporateRe.ReplaceAllString(n, "")
	n = nonAlnumRe.ReplaceAllString(n, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(n, " "))
}

var institutionSuffixes = []string{
	"university", "univ", "college", "institute", "school",
	"academy", "polytechnic", "tech", "technology",
}

// stripInstitutionSuffixes removes generic institution words so that
// "stanford university" and "stanford" compare as the same core name.
func stripInstitutionSuffixes(normalized string) string {
	words := strings.Fields(normalized)
	kept := words[:0]
	for _, w := range words {
		suffix := false
		for _, s := range institutionSuffixes {
			if w == s {
				suffix = true
				break
			}
		}
		if !suffix {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// Similarity scores how likely two entities are the same thing, in [0, 1].
// Entities of different types never match.
func (r *Resolver) Similarity(a, b store.GraphEntity) float64 {
	if a.EntityType != b.EntityType {
		return 0.0
	}
	na, nb := Normalize(a.Name), Normalize(b.Name)
	if na == nb {
		return 1.0
	}
	if r.aliasMatch(a.EntityType, na, b.CanonicalName) || r.aliasMatch(b.EntityType, nb, a.CanonicalName) {
		return 0.9
	}
	if core := stripInstitutionSuffixes(na); core != "" && core == stripInstitutionSuffixes(nb) {
		return 0.95
	}
	sim := levenshteinSimilarity(na, nb)
	if sim > 0.7 {
		return sim
	}
	return 0.0
}

func (r *Resolver) aliasMatch(entityType, normalized, canonical string) bool {
	r.mu.Lock()
	idx := r.aliases[entityType]
	r.mu.Unlock()
	if idx == nil {
		return false
	}
	return idx[normalized] == canonical
}

// levenshteinSimilarity is 1 - editDistance/maxLen.
func levenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// ResolveOrCreate returns the entity matching the name via the alias index
// or canonical lookup, creating a new entity when nothing matches.
func (r *Resolver) ResolveOrCreate(ctx context.Context, entityType, name string) (*store.GraphEntity, error) {
	normalized := Normalize(name)
	if normalized == "" {
		return nil, fmt.Errorf("graph: empty entity name %q", name)
	}

	if canonical, ok := r.lookupAlias(ctx, entityType, normalized); ok {
		e, err := r.store.GetEntityByCanonical(ctx, entityType, canonical)
		if err != nil {
			return nil, fmt.Errorf("alias lookup for %q: %w", name, err)
		}
		if e != nil {
			return e, nil
		}
	}

	e, err := r.store.GetEntityByCanonical(ctx, entityType, normalized)
	if err != nil {
		return nil, fmt.Errorf("canonical lookup for %q: %w", name, err)
	}
	if e != nil {
		return e, nil
	}

	conf := r.cfg.DefaultConfidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	created := store.GraphEntity{
		ID:            uuid.NewString(),
		EntityType:    entityType,
		Name:          strings.TrimSpace(name),
		CanonicalName: normalized,
		Aliases:       "[]",
		Confidence:    conf,
	}
	if err := r.store.InsertEntity(ctx, created); err != nil {
		return nil, fmt.Errorf("creating entity %q: %w", name, err)
	}
	r.invalidate(entityType)
	r.logger.Debug("graph: created entity",
		"type", entityType, "name", created.Name, "canonical", normalized)
	return &created, nil
}

// ResolveBatch resolves a list of names of one type, updating the in-memory
// alias index as it goes so later names in the batch see earlier creations.
func (r *Resolver) ResolveBatch(ctx context.Context, entityType string, names []string) ([]store.GraphEntity, error) {
	out := make([]store.GraphEntity, 0, len(names))
	for _, name := range names {
		e, err := r.ResolveOrCreate(ctx, entityType, name)
		if err != nil {
			return nil, err
		}
		r.indexAlias(entityType, Normalize(name), e.CanonicalName)
		out = append(out, *e)
	}
	return out, nil
}

// AddAlias records an alias for an entity, persisting the updated alias
// list and refreshing the index.
func (r *Resolver) AddAlias(ctx context.Context, e *store.GraphEntity, alias string) error {
	normalized := Normalize(alias)
	if normalized == "" || normalized == e.CanonicalName {
		return nil
	}
	var aliases []string
	if e.Aliases != "" {
		if err := json.Unmarshal([]byte(e.Aliases), &aliases); err != nil {
			aliases = nil
		}
	}
	for _, a := range aliases {
		if a == normalized {
			return nil
		}
	}
	aliases = append(aliases, normalized)
	data, err := json.Marshal(aliases)
	if err != nil {
		return err
	}
	if err := r.store.UpdateEntityAliases(ctx, e.ID, string(data)); err != nil {
		return fmt.Errorf("updating aliases for %s: %w", e.ID, err)
	}
	e.Aliases = string(data)
	r.indexAlias(e.EntityType, normalized, e.CanonicalName)
	return nil
}

// DuplicatePair is a candidate pair of entities that likely refer to the
// same real-world thing.
type DuplicatePair struct {
	A          store.GraphEntity `json:"a"`
	B          store.GraphEntity `json:"b"`
	Similarity float64           `json:"similarity"`
}

// FindDuplicateCandidates scans all entities of one type pairwise and
// returns pairs whose similarity is at or above the configured threshold.
func (r *Resolver) FindDuplicateCandidates(ctx context.Context, entityType string) ([]DuplicatePair, error) {
	entities, err := r.entitiesOfType(ctx, entityType)
	if err != nil {
		return nil, err
	}
	var pairs []DuplicatePair
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			sim := r.Similarity(entities[i], entities[j])
			if sim >= r.cfg.DuplicateThreshold {
				pairs = append(pairs, DuplicatePair{A: entities[i], B: entities[j], Similarity: sim})
			}
		}
	}
	return pairs, nil
}

// RecalculateConfidence refreshes an entity's confidence from its current
// evidence: base score plus bonuses for source count and triple count.
func (r *Resolver) RecalculateConfidence(ctx context.Context, e *store.GraphEntity, sourceCount int) error {
	tripleCount, err := r.store.CountTriplesByEntity(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("counting triples for %s: %w", e.ID, err)
	}
	conf := ConfidenceScore(e.Confidence, sourceCount, tripleCount)
	if err := r.store.UpdateEntityConfidence(ctx, e.ID, conf); err != nil {
		return fmt.Errorf("updating confidence for %s: %w", e.ID, err)
	}
	e.Confidence = conf
	return nil
}

// ConfidenceScore combines a base confidence with evidence bonuses:
// up to +0.1 for sources (0.02 each) and up to +0.15 for triples
// (0.03 each), capped at 1.0.
func ConfidenceScore(base float64, sourceCount, tripleCount int) float64 {
	sourceBonus := float64(sourceCount) * 0.02
	if sourceBonus > 0.1 {
		sourceBonus = 0.1
	}
	tripleBonus := float64(tripleCount) * 0.03
	if tripleBonus > 0.15 {
		tripleBonus = 0.15
	}
	conf := base + sourceBonus + tripleBonus
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

// --- cache ---

func (r *Resolver) entitiesOfType(ctx context.Context, entityType string) ([]store.GraphEntity, error) {
	r.mu.Lock()
	entry, ok := r.byType[entityType]
	r.mu.Unlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.entities, nil
	}

	entities, err := r.store.GetEntitiesByType(ctx, entityType)
	if err != nil {
		return nil, fmt.Errorf("loading %s entities: %w", entityType, err)
	}

	r.mu.Lock()
	r.byType[entityType] = entityCacheEntry{entities: entities, expires: time.Now().Add(r.cfg.CacheTTL)}
	idx := make(map[string]string, len(entities))
	for _, e := range entities {
		if len(idx) >= r.cfg.CacheSize {
			break
		}
		idx[e.CanonicalName] = e.CanonicalName
		var aliases []string
		if e.Aliases != "" {
			json.Unmarshal([]byte(e.Aliases), &aliases)
		}
		for _, a := range aliases {
			if len(idx) >= r.cfg.CacheSize {
				break
			}
			idx[a] = e.CanonicalName
		}
	}
	r.aliases[entityType] = idx
	r.mu.Unlock()
	return entities, nil
}

// lookupAlias consults the alias index, loading it if stale.
func (r *Resolver) lookupAlias(ctx context.Context, entityType, normalized string) (string, bool) {
	r.mu.Lock()
	entry, ok := r.byType[entityType]
	fresh := ok && time.Now().Before(entry.expires)
	r.mu.Unlock()
	if !fresh {
		if _, err := r.entitiesOfType(ctx, entityType); err != nil {
			r.logger.Warn("graph: alias index load failed", "type", entityType, "error", err)
			return "", false
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.aliases[entityType]
	if idx == nil {
		return "", false
	}
	canonical, ok := idx[normalized]
	return canonical, ok
}

func (r *Resolver) indexAlias(entityType, normalized, canonical string) {
	if normalized == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.aliases[entityType]
	if idx == nil {
		idx = make(map[string]string)
		r.aliases[entityType] = idx
	}
	if len(idx) < r.cfg.CacheSize {
		idx[normalized] = canonical
	}
}

// invalidate drops cached state for one entity type after a write.
func (r *Resolver) invalidate(entityType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byType, entityType)
	delete(r.aliases, entityType)
}
