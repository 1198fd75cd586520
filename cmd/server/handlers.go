package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gomatch "github.com/bbiangul/go-match"
	"github.com/bbiangul/go-match/store"
)

type handler struct {
	engine gomatch.Engine
}

func newHandler(e gomatch.Engine) *handler {
	return &handler{engine: e}
}

// POST /api/v1/match
func (h *handler) handleMatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		StudentID string `json:"student_id"`
		TopN      int    `json:"top_n,omitempty"`
		TopK      int    `json:"top_k,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.StudentID == "" {
		writeError(w, http.StatusBadRequest, "student_id is required")
		return
	}

	// Bound parameters.
	if req.TopN < 0 || req.TopN > 50 {
		req.TopN = 0 // use default
	}
	if req.TopK < 0 || req.TopK > 200 {
		req.TopK = 0 // use default
	}

	var opts []gomatch.MatchOption
	if req.TopN > 0 {
		opts = append(opts, gomatch.WithTopN(req.TopN))
	}
	if req.TopK > 0 {
		opts = append(opts, gomatch.WithTopK(req.TopK))
	}

	resp, err := h.engine.Match(ctx, req.StudentID, opts...)
	if err != nil {
		switch {
		case errors.Is(err, gomatch.ErrStudentNotFound):
			writeError(w, http.StatusNotFound, "student not found")
		case errors.Is(err, gomatch.ErrPreferenceNotFound):
			writeError(w, http.StatusNotFound, "student has no preferences")
		default:
			writeError(w, http.StatusInternalServerError, "match failed")
			slog.Error("match error", "student_id", req.StudentID, "error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// POST /api/v1/students
// Upserts a student profile together with its preferences.
func (h *handler) handleUpsertStudent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Student    store.Student     `json:"student"`
		Preference *store.Preference `json:"preference,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Student.ID == "" {
		writeError(w, http.StatusBadRequest, "student.id is required")
		return
	}

	if err := h.engine.Store().UpsertStudent(r.Context(), req.Student); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save student")
		slog.Error("upsert student error", "student_id", req.Student.ID, "error", err)
		return
	}
	if req.Preference != nil {
		req.Preference.StudentID = req.Student.ID
		if err := h.engine.Store().UpsertPreference(r.Context(), *req.Preference); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save preferences")
			slog.Error("upsert preference error", "student_id", req.Student.ID, "error", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"student_id": req.Student.ID,
		"status":     "saved",
	})
}

// GET /api/v1/schools/{id}
func (h *handler) handleGetSchool(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid school id")
		return
	}

	school, err := h.engine.Store().GetSchool(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "school not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load school")
		slog.Error("get school error", "school_id", id, "error", err)
		return
	}

	programs, err := h.engine.Store().GetProgramsBySchoolIDs(r.Context(), []int64{id})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load programs")
		slog.Error("get school programs error", "school_id", id, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"school":   school,
		"programs": programs,
	})
}

// POST /api/v1/index
func (h *handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	count, err := h.engine.IndexSchools(ctx)
	if err != nil {
		if errors.Is(err, gomatch.ErrNoSchoolsIndexed) {
			writeError(w, http.StatusBadRequest, "no schools to index")
			return
		}
		writeError(w, http.StatusInternalServerError, "indexing failed")
		slog.Error("index error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"indexed": count,
	})
}

// GET /api/v1/health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// GET /api/v1/stats
func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Store().DBStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		slog.Error("stats error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
