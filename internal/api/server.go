package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"kitchen_demo_sync/internal/model"
	"kitchen_demo_sync/internal/processing"
	"kitchen_demo_sync/internal/schedule"

	"github.com/rs/zerolog/log"
)

// OperatorHeader names the dashboard user making a change.
const OperatorHeader = "X-Operator"

const defaultOperator = "dashboard"

// SyncRunner triggers one sync cycle.
type SyncRunner interface {
	RunOnce(ctx context.Context) (processing.Summary, error)
}

// Server exposes the schedule board to the dashboard as JSON.
type Server struct {
	board  *schedule.Board
	syncer SyncRunner
	mux    *http.ServeMux
}

func NewServer(board *schedule.Board, syncer SyncRunner) *Server {
	s := &Server{board: board, syncer: syncer, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("POST /api/sync", s.handleSync)

	s.mux.HandleFunc("POST /api/assign", s.handleAssign)
	s.mux.HandleFunc("POST /api/unassign", s.handleUnassign)
	s.mux.HandleFunc("PUT /api/items/{kind}/{id}/status", s.handleWorkflowStatus)

	s.mux.HandleFunc("PATCH /api/requests/{id}", s.handleDetails)
	s.mux.HandleFunc("PUT /api/requests/{id}/lead-status", s.handleLeadStatus)

	s.mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	s.mux.HandleFunc("PATCH /api/tasks/{id}", s.handleUpdateTask)
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	log.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Dur("duration", time.Since(start)).
		Msg("Handled request")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.board.Snapshot())
}

type syncResponse struct {
	Summary processing.Summary `json:"summary"`
	State   schedule.State     `json:"state"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("sync is not configured"))
		return
	}
	summary, err := s.syncer.RunOnce(r.Context())
	switch {
	case errors.Is(err, processing.ErrSyncInProgress):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		// The board still serves the last good state.
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": err.Error(),
			"state": s.board.Snapshot(),
		})
	default:
		writeJSON(w, http.StatusOK, syncResponse{Summary: summary, State: s.board.Snapshot()})
	}
}

type assignRequest struct {
	Kind model.ItemKind `json:"kind"`
	ID   string         `json:"id"`
	Team int            `json:"team"`
	Slot string         `json:"slot"`
	By   string         `json:"by,omitempty"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.board.Assign(r.Context(), kindOrDefault(req.Kind), req.ID, req.Team, req.Slot, operator(r, req.By))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if result.Outcome == schedule.OutcomeConflict {
		writeJSON(w, http.StatusConflict, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type unassignRequest struct {
	Kind model.ItemKind `json:"kind"`
	ID   string         `json:"id"`
	By   string         `json:"by,omitempty"`
}

func (s *Server) handleUnassign(w http.ResponseWriter, r *http.Request) {
	var req unassignRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.board.Unassign(r.Context(), kindOrDefault(req.Kind), req.ID, operator(r, req.By)); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type detailsRequest struct {
	schedule.DetailsPatch
	By string `json:"by,omitempty"`
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	var req detailsRequest
	if !decode(w, r, &req) {
		return
	}
	updated, err := s.board.UpdateDetails(r.Context(), r.PathValue("id"), req.DetailsPatch, operator(r, req.By))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type statusRequest struct {
	Status string `json:"status"`
	By     string `json:"by,omitempty"`
}

func (s *Server) handleLeadStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	updated, err := s.board.SetLeadStatus(r.Context(), r.PathValue("id"), req.Status, operator(r, req.By))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleWorkflowStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	kind := model.ItemKind(r.PathValue("kind"))
	if err := s.board.SetWorkflowStatus(r.Context(), kind, r.PathValue("id"), req.Status); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createTaskRequest struct {
	schedule.TaskInput
	By string `json:"by,omitempty"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !decode(w, r, &req) {
		return
	}
	task, err := s.board.CreateTask(r.Context(), req.TaskInput, operator(r, req.By))
	if err != nil {
		var conflict *schedule.ConflictError
		if errors.As(err, &conflict) {
			writeJSON(w, http.StatusConflict, schedule.AssignResult{
				Outcome:      schedule.OutcomeConflict,
				Kind:         model.KindTask,
				Team:         conflict.Team,
				Slot:         conflict.Slot,
				OccupantID:   conflict.OccupantID,
				OccupantKind: conflict.OccupantKind,
			})
			return
		}
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch schedule.TaskPatch
	if !decode(w, r, &patch) {
		return
	}
	task, err := s.board.UpdateTask(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.board.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, schedule.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, schedule.ErrSlotOccupied), errors.Is(err, schedule.ErrCancelled):
		return http.StatusConflict
	case errors.Is(err, schedule.ErrInvalidTeam),
		errors.Is(err, schedule.ErrInvalidSlot),
		errors.Is(err, schedule.ErrInvalidKind),
		errors.Is(err, schedule.ErrInvalidStatus),
		errors.Is(err, schedule.ErrMissingTitle):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func kindOrDefault(k model.ItemKind) model.ItemKind {
	if k == "" {
		return model.KindRequest
	}
	return k
}

func operator(r *http.Request, fromBody string) string {
	if by := strings.TrimSpace(fromBody); by != "" {
		return by
	}
	if by := strings.TrimSpace(r.Header.Get(OperatorHeader)); by != "" {
		return by
	}
	return defaultOperator
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("Request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
