// Package retrieval finds candidate schools for a student by embedding a
// profile query and running a KNN search over the school embedding index.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bbiangul/go-match/store"
)

// Embedder produces embeddings for query texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher runs KNN searches over the school embedding index.
type Searcher interface {
	VectorSearchSchools(ctx context.Context, queryEmbedding []float32, k int) ([]store.SchoolHit, error)
}

// Config tunes candidate retrieval.
type Config struct {
	// TopK is the number of candidate schools fetched per query.
	TopK int `json:"top_k"`
	// CacheTTL bounds how long per-student results are served from cache.
	CacheTTL time.Duration `json:"cache_ttl"`
	// CacheSize caps the number of cached student entries.
	CacheSize int `json:"cache_size"`
}

// DefaultConfig returns the standard retrieval settings.
func DefaultConfig() Config {
	return Config{
		TopK:      20,
		CacheTTL:  5 * time.Minute,
		CacheSize: 256,
	}
}

// Engine retrieves candidate schools for a student profile. Results are
// cached per student id with a TTL, so repeated matches for the same
// student skip the embedding round-trip.
type Engine struct {
	searcher Searcher
	embedder Embedder
	cfg      Config
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	hits    []store.SchoolHit
	k       int
	expires time.Time
}

// New creates a retrieval engine.
func New(searcher Searcher, embedder Embedder, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}
	return &Engine{
		searcher: searcher,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
		cache:    make(map[string]cacheEntry),
	}
}

// SearchSchools embeds the student's profile query and returns the k
// nearest schools with similarity scores. k <= 0 uses the configured TopK.
func (e *Engine) SearchSchools(ctx context.Context, st *store.Student, pref *store.Preference, k int) ([]store.SchoolHit, error) {
	if k <= 0 {
		k = e.cfg.TopK
	}
	query := BuildProfileQuery(st, pref)
	if query == "" {
		return nil, nil
	}

	var studentID string
	if st != nil {
		studentID = st.ID
	}
	if hits, ok := e.cached(studentID, k); ok {
		e.logger.Debug("retrieval: cache hit", "student_id", studentID, "hits", len(hits))
		return hits, nil
	}

	embeddings, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding profile query: %w", err)
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("empty embedding for profile query")
	}

	hits, err := e.searcher.VectorSearchSchools(ctx, embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	e.remember(studentID, k, hits)
	e.logger.Debug("retrieval: candidate schools",
		"query_len", len(query), "hits", len(hits))
	return hits, nil
}

// Invalidate drops the cached results for one student, typically after
// their profile or preferences change.
func (e *Engine) Invalidate(studentID string) {
	e.mu.Lock()
	delete(e.cache, studentID)
	e.mu.Unlock()
}

func (e *Engine) cached(studentID string, k int) ([]store.SchoolHit, bool) {
	if studentID == "" {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.cache[studentID]
	if !ok || entry.k != k || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.hits, true
}

func (e *Engine) remember(studentID string, k int, hits []store.SchoolHit) {
	if studentID == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.cache) >= e.cfg.CacheSize {
		// Crude eviction: drop expired entries, then an arbitrary one.
		now := time.Now()
		for id, entry := range e.cache {
			if now.After(entry.expires) {
				delete(e.cache, id)
			}
		}
		for id := range e.cache {
			if len(e.cache) < e.cfg.CacheSize {
				break
			}
			delete(e.cache, id)
		}
	}
	e.cache[studentID] = cacheEntry{hits: hits, k: k, expires: time.Now().Add(e.cfg.CacheTTL)}
}

// BuildProfileQuery renders the student's goals as a retrieval query. Empty
// fields are skipped; an entirely empty profile yields "".
func BuildProfileQuery(st *store.Student, pref *store.Preference) string {
	var parts []string
	if pref != nil {
		if pref.TargetMajor != "" {
			parts = append(parts, "study "+pref.TargetMajor)
		}
		if pref.CareerGoal != "" {
			parts = append(parts, "career goal: "+pref.CareerGoal)
		}
		if pref.TargetLocation != "" {
			parts = append(parts, "preferred location: "+pref.TargetLocation)
		}
		if pref.TargetProgramType != "" {
			parts = append(parts, strings.ReplaceAll(pref.TargetProgramType, "_", " ")+" program")
		}
		if pref.PreferredTrack != "" {
			parts = append(parts, pref.PreferredTrack+" track")
		}
		if pref.Budget != nil && *pref.Budget > 0 {
			parts = append(parts, fmt.Sprintf("annual budget around $%d", *pref.Budget))
		}
	}
	if st != nil && st.Nationality != "" {
		parts = append(parts, "international student from "+st.Nationality)
	}
	return strings.Join(parts, ". ")
}
