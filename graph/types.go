// Package graph implements the career knowledge graph behind the matching
// engine: entity resolution with alias dictionaries and similarity matching,
// and path finding from target companies back to schools and programs.
package graph

import "strings"

// Entity types in the career graph.
const (
	TypeSchool   = "SCHOOL"
	TypeProgram  = "PROGRAM"
	TypeCompany  = "COMPANY"
	TypeJob      = "JOB"
	TypeSkill    = "SKILL"
	TypeLocation = "LOCATION"
)

// Relation types between entities.
const (
	RelOffers       = "OFFERS"        // school offers program
	RelLeadsTo      = "LEADS_TO"      // program leads to job
	RelHiresFrom    = "HIRES_FROM"    // company hires from school/program
	RelDevelops     = "DEVELOPS"      // program develops skill
	RelRequires     = "REQUIRES"      // job requires skill
	RelPartnersWith = "PARTNERS_WITH" // school partners with company
)

// ParseRelation maps free-form relation labels onto the canonical constants.
// Hyphen and underscore variants and mixed case are accepted. Returns ""
// for unrecognized labels.
func ParseRelation(s string) string {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	norm = strings.ReplaceAll(norm, " ", "_")
	switch norm {
	case RelOffers, RelLeadsTo, RelHiresFrom, RelDevelops, RelRequires, RelPartnersWith:
		return norm
	default:
		return ""
	}
}

// ParseEntityType maps free-form entity type labels onto the canonical
// constants. Returns "" for unrecognized labels.
func ParseEntityType(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case TypeSchool:
		return TypeSchool
	case TypeProgram:
		return TypeProgram
	case TypeCompany:
		return TypeCompany
	case TypeJob:
		return TypeJob
	case TypeSkill:
		return TypeSkill
	case TypeLocation:
		return TypeLocation
	default:
		return ""
	}
}

// CareerPath is one weighted route from a school through jobs/skills to a
// target company, discovered by backward expansion from the company.
type CareerPath struct {
	SchoolID    int64    `json:"school_id"`
	SchoolName  string   `json:"school_name"`
	ProgramID   *int64   `json:"program_id,omitempty"`
	ProgramName string   `json:"program_name,omitempty"`
	Skills      []string `json:"skills,omitempty"`
	Job         string   `json:"job,omitempty"`
	Company     string   `json:"company"`
	Weight      float64  `json:"weight"`
	Depth       int      `json:"depth"`
	Path        []string `json:"path"`
}

// ProgramSkillMatch is a program matched to requested skills by DEVELOPS
// triples, with the average confidence-weighted relevance.
type ProgramSkillMatch struct {
	ProgramID      int64    `json:"program_id"`
	ProgramName    string   `json:"program_name"`
	MatchedSkills  []string `json:"matched_skills"`
	RelevanceScore float64  `json:"relevance_score"`
}
