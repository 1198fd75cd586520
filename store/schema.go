package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Student identity and academic record
CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT,
    nationality TEXT,
    gpa REAL,
    gpa_scale REAL,
    english_test_type TEXT,
    english_score REAL,
    metadata JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One preference row per student
CREATE TABLE IF NOT EXISTS student_preferences (
    student_id TEXT PRIMARY KEY REFERENCES students(id) ON DELETE CASCADE,
    target_major TEXT,
    career_goal TEXT,
    target_location TEXT,
    target_program_type TEXT,
    preferred_track TEXT,
    budget INTEGER,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- School catalog
CREATE TABLE IF NOT EXISTS schools (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL,
    state TEXT,
    city TEXT,
    tuition INTEGER,
    living_cost INTEGER,
    acceptance_rate REAL,
    transfer_rate REAL,
    employment_rate REAL,
    average_salary INTEGER,
    global_ranking INTEGER,
    ranking_field TEXT,
    alumni_network_count INTEGER,
    feature_badges JSON,
    facilities JSON,
    esl_program JSON,
    international_support JSON,
    staff_info TEXT,
    international_email TEXT,
    international_phone TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Programs offered by schools
CREATE TABLE IF NOT EXISTS programs (
    id INTEGER PRIMARY KEY,
    school_id INTEGER NOT NULL REFERENCES schools(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    degree TEXT,
    duration TEXT,
    tuition INTEGER,
    opt_available INTEGER DEFAULT 0,
    metadata JSON,
    UNIQUE(school_id, name)
);

-- School profile embeddings via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_schools USING vec0(
    school_id INTEGER PRIMARY KEY,
    embedding float[%d]
);

-- Knowledge graph: resolved entities
CREATE TABLE IF NOT EXISTS graph_entities (
    id TEXT PRIMARY KEY,
    entity_type TEXT NOT NULL,
    name TEXT NOT NULL,
    canonical_name TEXT NOT NULL,
    aliases JSON,
    metadata JSON,
    school_id INTEGER REFERENCES schools(id),
    program_id INTEGER REFERENCES programs(id),
    confidence REAL DEFAULT 0.75,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(entity_type, canonical_name)
);

-- Knowledge graph: triples
CREATE TABLE IF NOT EXISTS graph_triples (
    id TEXT PRIMARY KEY,
    head_id TEXT NOT NULL REFERENCES graph_entities(id) ON DELETE CASCADE,
    head_type TEXT NOT NULL,
    head_name TEXT NOT NULL,
    relation TEXT NOT NULL,
    tail_id TEXT NOT NULL REFERENCES graph_entities(id) ON DELETE CASCADE,
    tail_type TEXT NOT NULL,
    tail_name TEXT NOT NULL,
    weight REAL DEFAULT 1.0,
    confidence REAL DEFAULT 0.75,
    properties JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(head_id, relation, tail_id)
);

-- Match audit log
CREATE TABLE IF NOT EXISTS match_log (
    id INTEGER PRIMARY KEY,
    match_id TEXT NOT NULL,
    student_id TEXT NOT NULL,
    total_matches INTEGER,
    execution_ms INTEGER,
    fallback_used INTEGER DEFAULT 0,
    results JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_programs_school ON programs(school_id);
CREATE INDEX IF NOT EXISTS idx_programs_type ON programs(type);
CREATE INDEX IF NOT EXISTS idx_schools_type ON schools(type);
CREATE INDEX IF NOT EXISTS idx_entities_type ON graph_entities(entity_type);
CREATE INDEX IF NOT EXISTS idx_entities_canonical ON graph_entities(canonical_name);
CREATE INDEX IF NOT EXISTS idx_triples_head ON graph_triples(head_id);
CREATE INDEX IF NOT EXISTS idx_triples_tail ON graph_triples(tail_id);
CREATE INDEX IF NOT EXISTS idx_triples_relation ON graph_triples(relation);
CREATE INDEX IF NOT EXISTS idx_match_log_student ON match_log(student_id);
`, embeddingDim)
}
