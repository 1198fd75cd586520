//go:build cgo

package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, 4) // dim=4 for test vectors
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64     { return &v }

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.EmbeddingDim() != 4 {
		t.Fatalf("expected embedding dim 4, got %d", s.EmbeddingDim())
	}
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	dbPath := filepath.Join(dir, "test.db")
	s, err := New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

// ---------------------------------------------------------------------------
// Students and preferences
// ---------------------------------------------------------------------------

func sampleStudent(id string) Student {
	return Student{
		ID:              id,
		Name:            "Jisoo Kim",
		Email:           "jisoo@example.com",
		Nationality:     "KR",
		GPA:             floatPtr(3.4),
		GPAScale:        floatPtr(4.5),
		EnglishTestType: "IELTS",
		EnglishScore:    floatPtr(6.5),
	}
}

func TestUpsertAndGetStudent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st := sampleStudent("stu-1")
	if err := s.UpsertStudent(ctx, st); err != nil {
		t.Fatalf("upserting student: %v", err)
	}

	got, err := s.GetStudent(ctx, "stu-1")
	if err != nil {
		t.Fatalf("getting student: %v", err)
	}
	if got.Name != st.Name {
		t.Errorf("name: got %q, want %q", got.Name, st.Name)
	}
	if got.EnglishTestType != "IELTS" {
		t.Errorf("test type: got %q, want IELTS", got.EnglishTestType)
	}
	if got.GPA == nil || *got.GPA != 3.4 {
		t.Errorf("gpa: got %v, want 3.4", got.GPA)
	}

	// Upsert updates in place.
	st.Name = "Jisoo K."
	if err := s.UpsertStudent(ctx, st); err != nil {
		t.Fatalf("re-upserting student: %v", err)
	}
	got, err = s.GetStudent(ctx, "stu-1")
	if err != nil {
		t.Fatalf("getting student after update: %v", err)
	}
	if got.Name != "Jisoo K." {
		t.Errorf("name after update: got %q", got.Name)
	}
}

func TestGetStudentNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetStudent(context.Background(), "missing")
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestUpsertAndGetPreference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertStudent(ctx, sampleStudent("stu-1")); err != nil {
		t.Fatalf("upserting student: %v", err)
	}
	p := Preference{
		StudentID:         "stu-1",
		TargetMajor:       "computer science",
		CareerGoal:        "software engineer at Google",
		TargetLocation:    "San Jose, CA",
		TargetProgramType: "community_college",
		PreferredTrack:    "transfer",
		Budget:            intPtr(25000),
	}
	if err := s.UpsertPreference(ctx, p); err != nil {
		t.Fatalf("upserting preference: %v", err)
	}

	got, err := s.GetPreference(ctx, "stu-1")
	if err != nil {
		t.Fatalf("getting preference: %v", err)
	}
	if got.CareerGoal != p.CareerGoal {
		t.Errorf("career goal: got %q, want %q", got.CareerGoal, p.CareerGoal)
	}
	if got.Budget == nil || *got.Budget != 25000 {
		t.Errorf("budget: got %v, want 25000", got.Budget)
	}
}

// ---------------------------------------------------------------------------
// Schools and programs
// ---------------------------------------------------------------------------

func sampleSchool(name string) School {
	return School{
		Name:           name,
		Type:           "community_college",
		State:          "CA",
		City:           "Santa Monica",
		Tuition:        intPtr(9000),
		LivingCost:     intPtr(12000),
		AcceptanceRate: floatPtr(80),
		TransferRate:   floatPtr(70),
		FeatureBadges:  `["transfer-friendly"]`,
	}
}

func TestUpsertSchoolAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertSchool(ctx, sampleSchool("Santa Monica College"))
	if err != nil {
		t.Fatalf("upserting school: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero school id")
	}

	got, err := s.GetSchool(ctx, id)
	if err != nil {
		t.Fatalf("getting school: %v", err)
	}
	if got.Name != "Santa Monica College" {
		t.Errorf("name: got %q", got.Name)
	}
	if got.Tuition == nil || *got.Tuition != 9000 {
		t.Errorf("tuition: got %v, want 9000", got.Tuition)
	}

	// Upsert on the same name keeps the same id.
	sc := sampleSchool("Santa Monica College")
	sc.Tuition = intPtr(9500)
	id2, err := s.UpsertSchool(ctx, sc)
	if err != nil {
		t.Fatalf("re-upserting school: %v", err)
	}
	if id2 != id {
		t.Errorf("expected same id on upsert, got %d and %d", id, id2)
	}
	got, _ = s.GetSchool(ctx, id)
	if *got.Tuition != 9500 {
		t.Errorf("tuition after upsert: got %d, want 9500", *got.Tuition)
	}
}

func TestUpsertSchoolIDAfterLaterInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	idA, err := s.UpsertSchool(ctx, sampleSchool("School A"))
	if err != nil {
		t.Fatalf("upserting school A: %v", err)
	}
	if _, err := s.UpsertSchool(ctx, sampleSchool("School B")); err != nil {
		t.Fatalf("upserting school B: %v", err)
	}

	// Updating A after B's insert must still report A's id, not the
	// connection's last insert rowid.
	sc := sampleSchool("School A")
	sc.Tuition = intPtr(11000)
	got, err := s.UpsertSchool(ctx, sc)
	if err != nil {
		t.Fatalf("re-upserting school A: %v", err)
	}
	if got != idA {
		t.Errorf("update returned id %d, want %d", got, idA)
	}
}

func TestUpsertProgramIDAfterLaterInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	schoolID, _ := s.UpsertSchool(ctx, sampleSchool("School A"))
	idA, err := s.UpsertProgram(ctx, Program{SchoolID: schoolID, Name: "P1", Type: "university"})
	if err != nil {
		t.Fatalf("upserting P1: %v", err)
	}
	if _, err := s.UpsertProgram(ctx, Program{SchoolID: schoolID, Name: "P2", Type: "university"}); err != nil {
		t.Fatalf("upserting P2: %v", err)
	}

	got, err := s.UpsertProgram(ctx, Program{SchoolID: schoolID, Name: "P1", Type: "university", Tuition: intPtr(6000)})
	if err != nil {
		t.Fatalf("re-upserting P1: %v", err)
	}
	if got != idA {
		t.Errorf("update returned id %d, want %d", got, idA)
	}
}

func TestGetSchoolsByIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, _ := s.UpsertSchool(ctx, sampleSchool("School A"))
	id2, _ := s.UpsertSchool(ctx, sampleSchool("School B"))

	m, err := s.GetSchoolsByIDs(ctx, []int64{id1, id2, 999})
	if err != nil {
		t.Fatalf("getting schools: %v", err)
	}
	if len(m) != 2 {
		t.Fatalf("expected 2 schools, got %d", len(m))
	}
	if m[id1].Name != "School A" || m[id2].Name != "School B" {
		t.Errorf("unexpected school names: %v, %v", m[id1].Name, m[id2].Name)
	}
}

func TestUpsertProgramAndGetBySchool(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	schoolID, _ := s.UpsertSchool(ctx, sampleSchool("School A"))
	p := Program{
		SchoolID:     schoolID,
		Name:         "Computer Science AA",
		Type:         "community_college",
		Degree:       "AA",
		Duration:     "2 years",
		Tuition:      intPtr(8800),
		OPTAvailable: true,
	}
	pid, err := s.UpsertProgram(ctx, p)
	if err != nil {
		t.Fatalf("upserting program: %v", err)
	}
	if pid == 0 {
		t.Fatal("expected non-zero program id")
	}

	progs, err := s.GetProgramsBySchoolIDs(ctx, []int64{schoolID})
	if err != nil {
		t.Fatalf("getting programs: %v", err)
	}
	if len(progs) != 1 {
		t.Fatalf("expected 1 program, got %d", len(progs))
	}
	if !progs[0].OPTAvailable {
		t.Error("expected opt_available true")
	}
	if progs[0].Degree != "AA" {
		t.Errorf("degree: got %q", progs[0].Degree)
	}
}

func TestMinTuition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sc := sampleSchool("School A")
	sc.Tuition = intPtr(12000)
	id, _ := s.UpsertSchool(ctx, sc)
	s.UpsertProgram(ctx, Program{SchoolID: id, Name: "P1", Type: "university", Tuition: intPtr(7000)})

	min, err := s.MinTuition(ctx)
	if err != nil {
		t.Fatalf("min tuition: %v", err)
	}
	if min != 7000 {
		t.Errorf("min tuition: got %d, want 7000", min)
	}
}

// ---------------------------------------------------------------------------
// Vector search
// ---------------------------------------------------------------------------

func TestVectorSearchSchools(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, _ := s.UpsertSchool(ctx, sampleSchool("Near School"))
	id2, _ := s.UpsertSchool(ctx, sampleSchool("Far School"))

	if err := s.UpsertSchoolEmbedding(ctx, id1, []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("upserting embedding: %v", err)
	}
	if err := s.UpsertSchoolEmbedding(ctx, id2, []float32{0, 1, 0, 0}); err != nil {
		t.Fatalf("upserting embedding: %v", err)
	}

	hits, err := s.VectorSearchSchools(ctx, []float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("vector search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].SchoolID != id1 {
		t.Errorf("nearest: got school %d, want %d", hits[0].SchoolID, id1)
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("expected descending scores, got %v then %v", hits[0].Score, hits[1].Score)
	}

	n, err := s.EmbeddingCount(ctx)
	if err != nil {
		t.Fatalf("embedding count: %v", err)
	}
	if n != 2 {
		t.Errorf("embedding count: got %d, want 2", n)
	}
}

// ---------------------------------------------------------------------------
// Graph entities and triples
// ---------------------------------------------------------------------------

func TestEntityLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := GraphEntity{
		ID:            "ent-1",
		EntityType:    "COMPANY",
		Name:          "Google",
		CanonicalName: "google",
		Aliases:       `["alphabet"]`,
		Confidence:    0.75,
	}
	if err := s.InsertEntity(ctx, e); err != nil {
		t.Fatalf("inserting entity: %v", err)
	}

	got, err := s.GetEntityByCanonical(ctx, "COMPANY", "google")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got == nil || got.ID != "ent-1" {
		t.Fatalf("expected ent-1, got %+v", got)
	}

	// Missing entity returns nil, nil.
	got, err = s.GetEntityByCanonical(ctx, "COMPANY", "missing")
	if err != nil {
		t.Fatalf("lookup missing: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing entity, got %+v", got)
	}

	if err := s.UpdateEntityConfidence(ctx, "ent-1", 0.9); err != nil {
		t.Fatalf("updating confidence: %v", err)
	}
	got, _ = s.GetEntityByCanonical(ctx, "COMPANY", "google")
	if got.Confidence != 0.9 {
		t.Errorf("confidence: got %v, want 0.9", got.Confidence)
	}

	if err := s.UpdateEntityAliases(ctx, "ent-1", `["alphabet","goog"]`); err != nil {
		t.Fatalf("updating aliases: %v", err)
	}
	got, _ = s.GetEntityByCanonical(ctx, "COMPANY", "google")
	if got.Aliases != `["alphabet","goog"]` {
		t.Errorf("aliases: got %q", got.Aliases)
	}

	list, err := s.GetEntitiesByType(ctx, "COMPANY")
	if err != nil {
		t.Fatalf("listing entities: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 entity, got %d", len(list))
	}

	found, err := s.SearchEntitiesByName(ctx, "COMPANY", "goog", 10)
	if err != nil {
		t.Fatalf("searching: %v", err)
	}
	if len(found) != 1 {
		t.Errorf("expected 1 match, got %d", len(found))
	}
}

func TestTriplesDedupeAndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, e := range []GraphEntity{
		{ID: "c1", EntityType: "COMPANY", Name: "Google", CanonicalName: "google", Confidence: 0.9},
		{ID: "j1", EntityType: "JOB", Name: "Software Engineer", CanonicalName: "software engineer", Confidence: 0.9},
	} {
		if err := s.InsertEntity(ctx, e); err != nil {
			t.Fatalf("inserting entity: %v", err)
		}
	}

	tr := Triple{
		ID: "t1", HeadID: "c1", HeadType: "COMPANY", HeadName: "Google",
		Relation: "HIRES_FROM", TailID: "j1", TailType: "JOB", TailName: "Software Engineer",
		Weight: 0.8, Confidence: 0.9,
	}
	if err := s.InsertTriple(ctx, tr); err != nil {
		t.Fatalf("inserting triple: %v", err)
	}
	// Duplicate (head, relation, tail) is silently ignored.
	tr.ID = "t2"
	if err := s.InsertTriple(ctx, tr); err != nil {
		t.Fatalf("inserting duplicate triple: %v", err)
	}

	heads, err := s.TriplesByHeads(ctx, []string{"c1"}, "", 0.8)
	if err != nil {
		t.Fatalf("querying by head: %v", err)
	}
	if len(heads) != 1 {
		t.Fatalf("expected 1 triple, got %d", len(heads))
	}

	// Confidence floor excludes the triple.
	heads, _ = s.TriplesByHeads(ctx, []string{"c1"}, "", 0.95)
	if len(heads) != 0 {
		t.Errorf("expected 0 triples above 0.95, got %d", len(heads))
	}

	tails, err := s.TriplesByTails(ctx, []string{"j1"}, "HIRES_FROM", 0.8)
	if err != nil {
		t.Fatalf("querying by tail: %v", err)
	}
	if len(tails) != 1 {
		t.Fatalf("expected 1 triple by tail, got %d", len(tails))
	}

	n, err := s.CountTriplesByEntity(ctx, "c1")
	if err != nil {
		t.Fatalf("counting: %v", err)
	}
	if n != 1 {
		t.Errorf("triple count: got %d, want 1", n)
	}
}

func TestInsertTriplesBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, e := range []GraphEntity{
		{ID: "s1", EntityType: "SKILL", Name: "Go", CanonicalName: "go", Confidence: 0.9},
		{ID: "p1", EntityType: "PROGRAM", Name: "CS AA", CanonicalName: "cs aa", Confidence: 0.9, ProgramID: int64Ptr(1)},
	} {
		if err := s.InsertEntity(ctx, e); err != nil {
			t.Fatalf("inserting entity: %v", err)
		}
	}

	batch := []Triple{
		{ID: "t1", HeadID: "p1", HeadType: "PROGRAM", HeadName: "CS AA",
			Relation: "DEVELOPS", TailID: "s1", TailType: "SKILL", TailName: "Go",
			Weight: 0.9, Confidence: 0.85},
		{ID: "t2", HeadID: "p1", HeadType: "PROGRAM", HeadName: "CS AA",
			Relation: "DEVELOPS", TailID: "s1", TailType: "SKILL", TailName: "Go",
			Weight: 0.9, Confidence: 0.85}, // duplicate, ignored
	}
	if err := s.InsertTriples(ctx, batch); err != nil {
		t.Fatalf("batch insert: %v", err)
	}

	got, _ := s.TriplesByHeads(ctx, []string{"p1"}, "DEVELOPS", 0.8)
	if len(got) != 1 {
		t.Errorf("expected 1 triple after dedupe, got %d", len(got))
	}
}

// ---------------------------------------------------------------------------
// Match log and stats
// ---------------------------------------------------------------------------

func TestLogMatchAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertStudent(ctx, sampleStudent("stu-1")); err != nil {
		t.Fatalf("upserting student: %v", err)
	}
	if err := s.LogMatch(ctx, MatchLog{
		MatchID: "m-1", StudentID: "stu-1", TotalMatches: 5, ExecutionMs: 120,
		Results: `[]`,
	}); err != nil {
		t.Fatalf("logging match: %v", err)
	}

	stats, err := s.DBStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Students != 1 {
		t.Errorf("students: got %d, want 1", stats.Students)
	}
	if stats.Matches != 1 {
		t.Errorf("matches: got %d, want 1", stats.Matches)
	}
}
