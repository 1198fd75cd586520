// Package store provides the single SQLite database behind the matching
// engine: the student and school catalog, school profile embeddings via
// sqlite-vec, the career knowledge graph, and the match audit log.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Student represents a row in the students table.
type Student struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email,omitempty"`
	Nationality     string   `json:"nationality,omitempty"`
	GPA             *float64 `json:"gpa,omitempty"`
	GPAScale        *float64 `json:"gpa_scale,omitempty"`
	EnglishTestType string   `json:"english_test_type,omitempty"`
	EnglishScore    *float64 `json:"english_score,omitempty"`
	Metadata        string   `json:"metadata,omitempty"`
	CreatedAt       string   `json:"created_at,omitempty"`
	UpdatedAt       string   `json:"updated_at,omitempty"`
}

// Preference represents a row in the student_preferences table.
type Preference struct {
	StudentID         string `json:"student_id"`
	TargetMajor       string `json:"target_major,omitempty"`
	CareerGoal        string `json:"career_goal,omitempty"`
	TargetLocation    string `json:"target_location,omitempty"`
	TargetProgramType string `json:"target_program_type,omitempty"`
	PreferredTrack    string `json:"preferred_track,omitempty"`
	Budget            *int   `json:"budget,omitempty"`
}

// School represents a row in the schools table.
type School struct {
	ID                   int64    `json:"id"`
	Name                 string   `json:"name"`
	Type                 string   `json:"type"`
	State                string   `json:"state,omitempty"`
	City                 string   `json:"city,omitempty"`
	Tuition              *int     `json:"tuition,omitempty"`
	LivingCost           *int     `json:"living_cost,omitempty"`
	AcceptanceRate       *float64 `json:"acceptance_rate,omitempty"`
	TransferRate         *float64 `json:"transfer_rate,omitempty"`
	EmploymentRate       *float64 `json:"employment_rate,omitempty"`
	AverageSalary        *int     `json:"average_salary,omitempty"`
	GlobalRanking        *int     `json:"global_ranking,omitempty"`
	RankingField         string   `json:"ranking_field,omitempty"`
	AlumniNetworkCount   *int     `json:"alumni_network_count,omitempty"`
	FeatureBadges        string   `json:"feature_badges,omitempty"`
	Facilities           string   `json:"facilities,omitempty"`
	ESLProgram           string   `json:"esl_program,omitempty"`
	InternationalSupport string   `json:"international_support,omitempty"`
	StaffInfo            string   `json:"staff_info,omitempty"`
	InternationalEmail   string   `json:"international_email,omitempty"`
	InternationalPhone   string   `json:"international_phone,omitempty"`
}

// Program represents a row in the programs table.
type Program struct {
	ID           int64  `json:"id"`
	SchoolID     int64  `json:"school_id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Degree       string `json:"degree,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Tuition      *int   `json:"tuition,omitempty"`
	OPTAvailable bool   `json:"opt_available"`
	Metadata     string `json:"metadata,omitempty"`
}

// SchoolHit is a school returned by vector search with its similarity score.
type SchoolHit struct {
	SchoolID int64   `json:"school_id"`
	Score    float64 `json:"score"`
}

// MatchLog represents a row in the match_log table.
type MatchLog struct {
	MatchID      string `json:"match_id"`
	StudentID    string `json:"student_id"`
	TotalMatches int    `json:"total_matches"`
	ExecutionMs  int    `json:"execution_ms"`
	FallbackUsed bool   `json:"fallback_used"`
	Results      string `json:"results,omitempty"`
}

// Store wraps the SQLite database for all go-match persistence.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the sqlite-vec virtual table.
func New(dbPath string, embeddingDim int) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Student operations ---

// UpsertStudent inserts or updates a student keyed by id.
func (s *Store) UpsertStudent(ctx context.Context, st Student) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO students (id, name, email, nationality, gpa, gpa_scale, english_test_type, english_score, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			nationality = excluded.nationality,
			gpa = excluded.gpa,
			gpa_scale = excluded.gpa_scale,
			english_test_type = excluded.english_test_type,
			english_score = excluded.english_score,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP
	`, st.ID, st.Name, st.Email, st.Nationality, st.GPA, st.GPAScale,
		st.EnglishTestType, st.EnglishScore, st.Metadata)
	return err
}

// GetStudent retrieves a student by id.
func (s *Store) GetStudent(ctx context.Context, id string) (*Student, error) {
	st := &Student{}
	var email, nationality, testType, metadata sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, nationality, gpa, gpa_scale, english_test_type, english_score, metadata, created_at, updated_at
		FROM students WHERE id = ?
	`, id).Scan(&st.ID, &st.Name, &email, &nationality, &st.GPA, &st.GPAScale,
		&testType, &st.EnglishScore, &metadata, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	st.Email = email.String
	st.Nationality = nationality.String
	st.EnglishTestType = testType.String
	st.Metadata = metadata.String
	return st, nil
}

// UpsertPreference inserts or updates a student's preference row.
func (s *Store) UpsertPreference(ctx context.Context, p Preference) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO student_preferences (student_id, target_major, career_goal, target_location, target_program_type, preferred_track, budget)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id) DO UPDATE SET
			target_major = excluded.target_major,
			career_goal = excluded.career_goal,
			target_location = excluded.target_location,
			target_program_type = excluded.target_program_type,
			preferred_track = excluded.preferred_track,
			budget = excluded.budget,
			updated_at = CURRENT_TIMESTAMP
	`, p.StudentID, p.TargetMajor, p.CareerGoal, p.TargetLocation,
		p.TargetProgramType, p.PreferredTrack, p.Budget)
	return err
}

// GetPreference retrieves the preference row for a student.
func (s *Store) GetPreference(ctx context.Context, studentID string) (*Preference, error) {
	p := &Preference{}
	var major, goal, loc, progType, track sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT student_id, target_major, career_goal, target_location, target_program_type, preferred_track, budget
		FROM student_preferences WHERE student_id = ?
	`, studentID).Scan(&p.StudentID, &major, &goal, &loc, &progType, &track, &p.Budget)
	if err != nil {
		return nil, err
	}
	p.TargetMajor = major.String
	p.CareerGoal = goal.String
	p.TargetLocation = loc.String
	p.TargetProgramType = progType.String
	p.PreferredTrack = track.String
	return p, nil
}

// --- School operations ---

// UpsertSchool inserts or updates a school keyed by name. Returns the school ID.
func (s *Store) UpsertSchool(ctx context.Context, sc School) (int64, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO schools (name, type, state, city, tuition, living_cost, acceptance_rate,
			transfer_rate, employment_rate, average_salary, global_ranking, ranking_field,
			alumni_network_count, feature_badges, facilities, esl_program, international_support,
			staff_info, international_email, international_phone)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			type = excluded.type,
			state = excluded.state,
			city = excluded.city,
			tuition = excluded.tuition,
			living_cost = excluded.living_cost,
			acceptance_rate = excluded.acceptance_rate,
			transfer_rate = excluded.transfer_rate,
			employment_rate = excluded.employment_rate,
			average_salary = excluded.average_salary,
			global_ranking = excluded.global_ranking,
			ranking_field = excluded.ranking_field,
			alumni_network_count = excluded.alumni_network_count,
			feature_badges = excluded.feature_badges,
			facilities = excluded.facilities,
			esl_program = excluded.esl_program,
			international_support = excluded.international_support,
			staff_info = excluded.staff_info,
			international_email = excluded.international_email,
			international_phone = excluded.international_phone,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, sc.Name, sc.Type, sc.State, sc.City, sc.Tuition, sc.LivingCost, sc.AcceptanceRate,
		sc.TransferRate, sc.EmploymentRate, sc.AverageSalary, sc.GlobalRanking, sc.RankingField,
		sc.AlumniNetworkCount, sc.FeatureBadges, sc.Facilities, sc.ESLProgram, sc.InternationalSupport,
		sc.StaffInfo, sc.InternationalEmail, sc.InternationalPhone)

	// RETURNING gives the row's id on both the insert and update branches;
	// LastInsertId would report the connection's previous insert on updates.
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetSchool retrieves a school by ID.
func (s *Store) GetSchool(ctx context.Context, id int64) (*School, error) {
	row := s.db.QueryRowContext(ctx, schoolSelect+" WHERE id = ?", id)
	return scanSchool(row)
}

// GetSchoolsByIDs retrieves schools by ID, keyed by ID in the result map.
func (s *Store) GetSchoolsByIDs(ctx context.Context, ids []int64) (map[int64]*School, error) {
	if len(ids) == 0 {
		return map[int64]*School{}, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		schoolSelect+" WHERE id IN ("+repeatPlaceholders(len(ids))+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]*School, len(ids))
	for rows.Next() {
		sc, err := scanSchool(rows)
		if err != nil {
			return nil, err
		}
		out[sc.ID] = sc
	}
	return out, rows.Err()
}

// ListSchools returns all schools ordered by name.
func (s *Store) ListSchools(ctx context.Context) ([]School, error) {
	rows, err := s.db.QueryContext(ctx, schoolSelect+" ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []School
	for rows.Next() {
		sc, err := scanSchool(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

const schoolSelect = `
	SELECT id, name, type, state, city, tuition, living_cost, acceptance_rate,
		transfer_rate, employment_rate, average_salary, global_ranking, ranking_field,
		alumni_network_count, feature_badges, facilities, esl_program, international_support,
		staff_info, international_email, international_phone
	FROM schools`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchool(row rowScanner) (*School, error) {
	sc := &School{}
	var state, city, rankingField, badges, facilities, esl, intl, staff, email, phone sql.NullString
	err := row.Scan(&sc.ID, &sc.Name, &sc.Type, &state, &city, &sc.Tuition, &sc.LivingCost,
		&sc.AcceptanceRate, &sc.TransferRate, &sc.EmploymentRate, &sc.AverageSalary,
		&sc.GlobalRanking, &rankingField, &sc.AlumniNetworkCount, &badges, &facilities,
		&esl, &intl, &staff, &email, &phone)
	if err != nil {
		return nil, err
	}
	sc.State = state.String
	sc.City = city.String
	sc.RankingField = rankingField.String
	sc.FeatureBadges = badges.String
	sc.Facilities = facilities.String
	sc.ESLProgram = esl.String
	sc.InternationalSupport = intl.String
	sc.StaffInfo = staff.String
	sc.InternationalEmail = email.String
	sc.InternationalPhone = phone.String
	return sc, nil
}

// --- Program operations ---

// UpsertProgram inserts or updates a program keyed by (school_id, name).
// Returns the program ID.
func (s *Store) UpsertProgram(ctx context.Context, p Program) (int64, error) {
	opt := 0
	if p.OPTAvailable {
		opt = 1
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO programs (school_id, name, type, degree, duration, tuition, opt_available, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(school_id, name) DO UPDATE SET
			type = excluded.type,
			degree = excluded.degree,
			duration = excluded.duration,
			tuition = excluded.tuition,
			opt_available = excluded.opt_available,
			metadata = excluded.metadata
		RETURNING id
	`, p.SchoolID, p.Name, p.Type, p.Degree, p.Duration, p.Tuition, opt, p.Metadata)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetProgramsBySchoolIDs returns all programs for the given schools.
func (s *Store) GetProgramsBySchoolIDs(ctx context.Context, schoolIDs []int64) ([]Program, error) {
	if len(schoolIDs) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(schoolIDs))
	for i, id := range schoolIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, school_id, name, type, degree, duration, tuition, opt_available, metadata
		FROM programs WHERE school_id IN (`+repeatPlaceholders(len(schoolIDs))+`)
		ORDER BY school_id, name
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Program
	for rows.Next() {
		var p Program
		var degree, duration, metadata sql.NullString
		var opt int
		if err := rows.Scan(&p.ID, &p.SchoolID, &p.Name, &p.Type, &degree, &duration,
			&p.Tuition, &opt, &metadata); err != nil {
			return nil, err
		}
		p.Degree = degree.String
		p.Duration = duration.String
		p.Metadata = metadata.String
		p.OPTAvailable = opt != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// MinTuition returns the lowest tuition across programs and schools, for
// filter diagnostics. Returns 0 when the catalog is empty.
func (s *Store) MinTuition(ctx context.Context) (int, error) {
	var min sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MIN(t) FROM (
			SELECT MIN(tuition) AS t FROM programs WHERE tuition IS NOT NULL
			UNION ALL
			SELECT MIN(tuition) AS t FROM schools WHERE tuition IS NOT NULL
		)
	`).Scan(&min)
	if err != nil {
		return 0, err
	}
	return int(min.Int64), nil
}

// --- Vector operations ---

// UpsertSchoolEmbedding inserts or replaces the embedding for a school.
func (s *Store) UpsertSchoolEmbedding(ctx context.Context, schoolID int64, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_schools (school_id, embedding) VALUES (?, ?)",
		schoolID, serializeFloat32(embedding))
	return err
}

// VectorSearchSchools performs a KNN search returning the top-k nearest schools.
func (s *Store) VectorSearchSchools(ctx context.Context, queryEmbedding []float32, k int) ([]SchoolHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT school_id, distance
		FROM vec_schools
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, serializeFloat32(queryEmbedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SchoolHit
	for rows.Next() {
		var h SchoolHit
		var distance float64
		if err := rows.Scan(&h.SchoolID, &distance); err != nil {
			return nil, err
		}
		// Convert distance to similarity score (1 - distance for cosine)
		h.Score = 1.0 - distance
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// EmbeddingCount returns the number of indexed school embeddings.
func (s *Store) EmbeddingCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vec_schools").Scan(&n)
	return n, err
}

// --- Match log ---

// LogMatch records a completed matching run.
func (s *Store) LogMatch(ctx context.Context, m MatchLog) error {
	fallback := 0
	if m.FallbackUsed {
		fallback = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO match_log (match_id, student_id, total_matches, execution_ms, fallback_used, results)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.MatchID, m.StudentID, m.TotalMatches, m.ExecutionMs, fallback, m.Results)
	return err
}

// --- Stats ---

// DBStats holds counts of key database objects.
type DBStats struct {
	Students   int `json:"students"`
	Schools    int `json:"schools"`
	Programs   int `json:"programs"`
	Embeddings int `json:"embeddings"`
	Entities   int `json:"entities"`
	Triples    int `json:"triples"`
	Matches    int `json:"matches"`
}

// DBStats returns counts of students, schools, programs, embeddings,
// graph entities, triples, and logged matches.
func (s *Store) DBStats(ctx context.Context) (*DBStats, error) {
	stats := &DBStats{}
	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM students", &stats.Students},
		{"SELECT COUNT(*) FROM schools", &stats.Schools},
		{"SELECT COUNT(*) FROM programs", &stats.Programs},
		{"SELECT COUNT(*) FROM vec_schools", &stats.Embeddings},
		{"SELECT COUNT(*) FROM graph_entities", &stats.Entities},
		{"SELECT COUNT(*) FROM graph_triples", &stats.Triples},
		{"SELECT COUNT(*) FROM match_log", &stats.Matches},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("stats query %q: %w", q.sql, err)
		}
	}
	return stats, nil
}

// --- Helpers ---

// inTx runs fn inside a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// repeatPlaceholders returns "?, ?, ..." with n placeholders.
func repeatPlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
