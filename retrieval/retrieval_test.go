package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bbiangul/go-match/store"
)

type fakeEmbedder struct {
	embedding []float32
	err       error
	gotTexts  []string
	calls     int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.gotTexts = texts
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.embedding
	}
	return out, nil
}

type fakeSearcher struct {
	hits []store.SchoolHit
	err  error
	gotK int
}

func (f *fakeSearcher) VectorSearchSchools(_ context.Context, _ []float32, k int) ([]store.SchoolHit, error) {
	f.gotK = k
	return f.hits, f.err
}

func intPtr(v int) *int { return &v }

func testProfile() (*store.Student, *store.Preference) {
	return &store.Student{ID: "stu-1", Name: "Jisoo", Nationality: "KR"},
		&store.Preference{
			StudentID:         "stu-1",
			TargetMajor:       "computer science",
			CareerGoal:        "software engineer at Google",
			TargetLocation:    "California",
			TargetProgramType: "community_college",
			Budget:            intPtr(25000),
		}
}

func TestBuildProfileQuery(t *testing.T) {
	st, pref := testProfile()
	q := BuildProfileQuery(st, pref)

	for _, want := range []string{
		"study computer science",
		"career goal: software engineer at Google",
		"preferred location: California",
		"community college program",
		"annual budget around $25000",
		"international student from KR",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q in %q", want, q)
		}
	}
}

func TestBuildProfileQueryEmpty(t *testing.T) {
	if q := BuildProfileQuery(nil, nil); q != "" {
		t.Errorf("expected empty query, got %q", q)
	}
	if q := BuildProfileQuery(&store.Student{}, &store.Preference{}); q != "" {
		t.Errorf("expected empty query for blank profile, got %q", q)
	}
}

func TestSearchSchools(t *testing.T) {
	st, pref := testProfile()
	emb := &fakeEmbedder{embedding: []float32{0.1, 0.2, 0.3}}
	search := &fakeSearcher{hits: []store.SchoolHit{
		{SchoolID: 1, Score: 0.92},
		{SchoolID: 2, Score: 0.87},
	}}
	eng := New(search, emb, Config{TopK: 20}, nil)

	hits, err := eng.SearchSchools(context.Background(), st, pref, 7)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if search.gotK != 7 {
		t.Errorf("k: got %d, want 7", search.gotK)
	}
	if len(emb.gotTexts) != 1 {
		t.Fatalf("expected 1 embedded text, got %d", len(emb.gotTexts))
	}
}

func TestSearchSchoolsEmptyProfile(t *testing.T) {
	emb := &fakeEmbedder{embedding: []float32{1}}
	eng := New(&fakeSearcher{}, emb, DefaultConfig(), nil)

	hits, err := eng.SearchSchools(context.Background(), &store.Student{}, &store.Preference{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits != nil {
		t.Errorf("expected nil hits for empty profile")
	}
	if emb.gotTexts != nil {
		t.Errorf("embedder should not be called for empty profile")
	}
}

func TestSearchSchoolsEmbedError(t *testing.T) {
	st, pref := testProfile()
	emb := &fakeEmbedder{err: errors.New("backend down")}
	eng := New(&fakeSearcher{}, emb, DefaultConfig(), nil)

	_, err := eng.SearchSchools(context.Background(), st, pref, 0)
	if err == nil {
		t.Fatal("expected error from failing embedder")
	}
}

func TestDefaultTopK(t *testing.T) {
	st, pref := testProfile()
	search := &fakeSearcher{}
	eng := New(search, &fakeEmbedder{embedding: []float32{1}}, Config{}, nil)

	if _, err := eng.SearchSchools(context.Background(), st, pref, 0); err != nil {
		t.Fatalf("search: %v", err)
	}
	if search.gotK != 20 {
		t.Errorf("default k: got %d, want 20", search.gotK)
	}
}

func TestSearchSchoolsCaching(t *testing.T) {
	st, pref := testProfile()
	emb := &fakeEmbedder{embedding: []float32{1}}
	search := &fakeSearcher{hits: []store.SchoolHit{{SchoolID: 1, Score: 0.9}}}
	eng := New(search, emb, Config{}, nil)

	for i := 0; i < 3; i++ {
		hits, err := eng.SearchSchools(context.Background(), st, pref, 0)
		if err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
		if len(hits) != 1 {
			t.Fatalf("search %d: expected 1 hit, got %d", i, len(hits))
		}
	}
	if emb.calls != 1 {
		t.Errorf("expected 1 embed call with warm cache, got %d", emb.calls)
	}

	// A different k misses the cache.
	if _, err := eng.SearchSchools(context.Background(), st, pref, 5); err != nil {
		t.Fatalf("search with k=5: %v", err)
	}
	if emb.calls != 2 {
		t.Errorf("expected 2 embed calls after k change, got %d", emb.calls)
	}

	eng.Invalidate(st.ID)
	if _, err := eng.SearchSchools(context.Background(), st, pref, 5); err != nil {
		t.Fatalf("search after invalidate: %v", err)
	}
	if emb.calls != 3 {
		t.Errorf("expected 3 embed calls after invalidation, got %d", emb.calls)
	}
}
