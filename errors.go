package gomatch

import "errors"

var (
	// ErrStudentNotFound is returned when a student ID does not exist.
	ErrStudentNotFound = errors.New("gomatch: student not found")

	// ErrPreferenceNotFound is returned when a student has no stored
	// preferences.
	ErrPreferenceNotFound = errors.New("gomatch: student preference not found")

	// ErrSchoolNotFound is returned when a school ID does not exist.
	ErrSchoolNotFound = errors.New("gomatch: school not found")

	// ErrEmbeddingFailed is returned when embedding generation fails.
	ErrEmbeddingFailed = errors.New("gomatch: embedding generation failed")

	// ErrLLMRequestFailed is returned when an LLM request fails.
	ErrLLMRequestFailed = errors.New("gomatch: LLM request failed")

	// ErrNoSchoolsIndexed is returned when indexing finds no schools to
	// embed.
	ErrNoSchoolsIndexed = errors.New("gomatch: no schools to index")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("gomatch: invalid configuration")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("gomatch: store is closed")
)
