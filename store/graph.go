package store

import (
	"context"
	"database/sql"
	"errors"
)

// GraphEntity represents a row in the graph_entities table.
type GraphEntity struct {
	ID            string  `json:"id"`
	EntityType    string  `json:"entity_type"`
	Name          string  `json:"name"`
	CanonicalName string  `json:"canonical_name"`
	Aliases       string  `json:"aliases,omitempty"` // JSON array
	Metadata      string  `json:"metadata,omitempty"`
	SchoolID      *int64  `json:"school_id,omitempty"`
	ProgramID     *int64  `json:"program_id,omitempty"`
	Confidence    float64 `json:"confidence"`
}

// Triple represents a row in the graph_triples table.
type Triple struct {
	ID         string  `json:"id"`
	HeadID     string  `json:"head_id"`
	HeadType   string  `json:"head_type"`
	HeadName   string  `json:"head_name"`
	Relation   string  `json:"relation"`
	TailID     string  `json:"tail_id"`
	TailType   string  `json:"tail_type"`
	TailName   string  `json:"tail_name"`
	Weight     float64 `json:"weight"`
	Confidence float64 `json:"confidence"`
	Properties string  `json:"properties,omitempty"`
}

// InsertEntity inserts a new graph entity.
func (s *Store) InsertEntity(ctx context.Context, e GraphEntity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graph_entities (id, entity_type, name, canonical_name, aliases, metadata, school_id, program_id, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.EntityType, e.Name, e.CanonicalName, e.Aliases, e.Metadata,
		e.SchoolID, e.ProgramID, e.Confidence)
	return err
}

// GetEntityByCanonical looks up an entity by (type, canonical name).
// Returns (nil, nil) when no entity matches.
func (s *Store) GetEntityByCanonical(ctx context.Context, entityType, canonical string) (*GraphEntity, error) {
	row := s.db.QueryRowContext(ctx,
		entitySelect+" WHERE entity_type = ? AND canonical_name = ?", entityType, canonical)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// GetEntitiesByType returns all entities of one type.
func (s *Store) GetEntitiesByType(ctx context.Context, entityType string) ([]GraphEntity, error) {
	rows, err := s.db.QueryContext(ctx,
		entitySelect+" WHERE entity_type = ? ORDER BY canonical_name", entityType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntities(rows)
}

// SearchEntitiesByName returns entities of one type whose name or canonical
// name contains the term, best confidence first.
func (s *Store) SearchEntitiesByName(ctx context.Context, entityType, term string, limit int) ([]GraphEntity, error) {
	pattern := "%" + term + "%"
	rows, err := s.db.QueryContext(ctx, entitySelect+`
		WHERE entity_type = ? AND (canonical_name LIKE ? OR name LIKE ?)
		ORDER BY confidence DESC LIMIT ?
	`, entityType, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntities(rows)
}

// GetEntitiesByIDs retrieves entities keyed by id.
func (s *Store) GetEntitiesByIDs(ctx context.Context, ids []string) (map[string]*GraphEntity, error) {
	if len(ids) == 0 {
		return map[string]*GraphEntity{}, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		entitySelect+" WHERE id IN ("+repeatPlaceholders(len(ids))+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*GraphEntity, len(ids))
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out[e.ID] = e
	}
	return out, rows.Err()
}

// UpdateEntityAliases replaces an entity's alias list (JSON array).
func (s *Store) UpdateEntityAliases(ctx context.Context, id, aliasesJSON string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE graph_entities SET aliases = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		aliasesJSON, id)
	return err
}

// UpdateEntityConfidence sets an entity's confidence score.
func (s *Store) UpdateEntityConfidence(ctx context.Context, id string, confidence float64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE graph_entities SET confidence = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		confidence, id)
	return err
}

// CountTriplesByEntity returns how many triples reference the entity as
// head or tail.
func (s *Store) CountTriplesByEntity(ctx context.Context, id string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM graph_triples WHERE head_id = ? OR tail_id = ?", id, id).Scan(&n)
	return n, err
}

// InsertTriple inserts a triple, ignoring duplicates on (head, relation, tail).
func (s *Store) InsertTriple(ctx context.Context, t Triple) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO graph_triples (id, head_id, head_type, head_name, relation, tail_id, tail_type, tail_name, weight, confidence, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.HeadID, t.HeadType, t.HeadName, t.Relation, t.TailID, t.TailType,
		t.TailName, t.Weight, t.Confidence, t.Properties)
	return err
}

// InsertTriples inserts a batch of triples in one transaction, ignoring
// duplicates on (head, relation, tail).
func (s *Store) InsertTriples(ctx context.Context, triples []Triple) error {
	if len(triples) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO graph_triples (id, head_id, head_type, head_name, relation, tail_id, tail_type, tail_name, weight, confidence, properties)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, t := range triples {
			if _, err := stmt.ExecContext(ctx, t.ID, t.HeadID, t.HeadType, t.HeadName,
				t.Relation, t.TailID, t.TailType, t.TailName, t.Weight, t.Confidence, t.Properties); err != nil {
				return err
			}
		}
		return nil
	})
}

// TriplesByHeads returns triples whose head is in headIDs with confidence at
// least minConfidence. relation narrows to a single relation when non-empty.
func (s *Store) TriplesByHeads(ctx context.Context, headIDs []string, relation string, minConfidence float64) ([]Triple, error) {
	if len(headIDs) == 0 {
		return nil, nil
	}
	query := tripleSelect + " WHERE head_id IN (" + repeatPlaceholders(len(headIDs)) + ") AND confidence >= ?"
	args := make([]interface{}, 0, len(headIDs)+2)
	for _, id := range headIDs {
		args = append(args, id)
	}
	args = append(args, minConfidence)
	if relation != "" {
		query += " AND relation = ?"
		args = append(args, relation)
	}
	return s.queryTriples(ctx, query, args...)
}

// TriplesByTails returns triples whose tail is in tailIDs with confidence at
// least minConfidence. relation narrows to a single relation when non-empty.
func (s *Store) TriplesByTails(ctx context.Context, tailIDs []string, relation string, minConfidence float64) ([]Triple, error) {
	if len(tailIDs) == 0 {
		return nil, nil
	}
	query := tripleSelect + " WHERE tail_id IN (" + repeatPlaceholders(len(tailIDs)) + ") AND confidence >= ?"
	args := make([]interface{}, 0, len(tailIDs)+2)
	for _, id := range tailIDs {
		args = append(args, id)
	}
	args = append(args, minConfidence)
	if relation != "" {
		query += " AND relation = ?"
		args = append(args, relation)
	}
	return s.queryTriples(ctx, query, args...)
}

const entitySelect = `
	SELECT id, entity_type, name, canonical_name, aliases, metadata, school_id, program_id, confidence
	FROM graph_entities`

const tripleSelect = `
	SELECT id, head_id, head_type, head_name, relation, tail_id, tail_type, tail_name, weight, confidence, properties
	FROM graph_triples`

func scanEntity(row rowScanner) (*GraphEntity, error) {
	e := &GraphEntity{}
	var aliases, metadata sql.NullString
	err := row.Scan(&e.ID, &e.EntityType, &e.Name, &e.CanonicalName,
		&aliases, &metadata, &e.SchoolID, &e.ProgramID, &e.Confidence)
	if err != nil {
		return nil, err
	}
	e.Aliases = aliases.String
	e.Metadata = metadata.String
	return e, nil
}

func collectEntities(rows *sql.Rows) ([]GraphEntity, error) {
	var out []GraphEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) queryTriples(ctx context.Context, query string, args ...interface{}) ([]Triple, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Triple
	for rows.Next() {
		var t Triple
		var props sql.NullString
		if err := rows.Scan(&t.ID, &t.HeadID, &t.HeadType, &t.HeadName, &t.Relation,
			&t.TailID, &t.TailType, &t.TailName, &t.Weight, &t.Confidence, &props); err != nil {
			return nil, err
		}
		t.Properties = props.String
		out = append(out, t)
	}
	return out, rows.Err()
}
