package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/claude/ironlog/internal/catalog"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/session"
	"github.com/claude/ironlog/internal/workouts"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type errorBody struct {
	Error string `json:"error"`
	// State carries what the store kept after a partially failed write.
	State any `json:"state,omitempty"`
}

type workoutRequest struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Exercises   []models.WorkoutExercise `json:"exercises"`
}

type addExerciseRequest struct {
	ExerciseID string `json:"exerciseId"`
}

type setEditRequest struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// sessionView is the active session plus the timer and per-exercise
// completion the UI shows.
type sessionView struct {
	models.WorkoutSession
	ElapsedSeconds int64           `json:"elapsedSeconds"`
	Elapsed        string          `json:"elapsed"`
	Completed      map[string]bool `json:"completed"`
}

func newSessionView(s models.WorkoutSession, now time.Time) sessionView {
	secs := session.ElapsedSeconds(s, now)
	v := sessionView{
		WorkoutSession: s,
		ElapsedSeconds: secs,
		Elapsed:        session.FormatElapsed(secs),
		Completed:      make(map[string]bool, len(s.Exercises)),
	}
	for _, ex := range s.Exercises {
		v.Completed[ex.ID.String()] = session.AllCompleted(ex)
	}
	return v
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleExercises(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("grouped") == "true" {
		writeJSON(w, http.StatusOK, catalog.ByCategory())
		return
	}
	exs := catalog.InCategory(r.URL.Query().Get("category"))
	if exs == nil {
		exs = []catalog.Exercise{}
	}
	writeJSON(w, http.StatusOK, exs)
}

func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.Workouts())
}

func (s *Server) handleCreateWorkout(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	var req workoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	wk, err := st.Add(r.Context(), req.Name, req.Description, req.Exercises)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, wk)
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	wk, err := st.Get(id)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, wk)
}

func (s *Server) handleUpdateWorkout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	var req workoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	wk, err := st.Update(r.Context(), models.Workout{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Exercises:   req.Exercises,
	})
	if err != nil {
		s.writeError(w, err, wk)
		return
	}
	writeJSON(w, http.StatusOK, wk)
}

func (s *Server) handleDeleteWorkout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	if err := st.Delete(r.Context(), id); err != nil {
		s.writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddExercise(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	var req addExerciseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, found := catalog.Lookup(req.ExerciseID); !found {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown catalog exercise " + strconv.Quote(req.ExerciseID)})
		return
	}
	wk, err := st.AddExercise(r.Context(), id, req.ExerciseID)
	if err != nil {
		s.writeError(w, err, wk)
		return
	}
	writeJSON(w, http.StatusOK, wk)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	sess, err := st.StartSession(r.Context(), id)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(sess, time.Now()))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	sess, active := st.ActiveSession()
	if !active {
		writeJSON(w, http.StatusNotFound, errorBody{Error: workouts.ErrNoActiveSession.Error()})
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess, time.Now()))
}

func (s *Server) handleUpdateSessionExercise(w http.ResponseWriter, r *http.Request) {
	exID, ok := pathUUID(w, r, "exerciseID")
	if !ok {
		return
	}
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	var ex models.WorkoutExercise
	if !decodeJSON(w, r, &ex) {
		return
	}
	ex.ID = exID
	sess, err := st.UpdateSessionExercise(r.Context(), ex)
	if err != nil {
		s.writeError(w, err, partialSession(sess))
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess, time.Now()))
}

func (s *Server) handleRecordSet(w http.ResponseWriter, r *http.Request) {
	exID, ok := pathUUID(w, r, "exerciseID")
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid set index"})
		return
	}
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	var req setEditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	field, err := session.ParseField(req.Field)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	sess, _, err := st.RecordSetEdit(r.Context(), exID, index, field, rawValue(req.Value))
	if err != nil {
		s.writeError(w, err, partialSession(sess))
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess, time.Now()))
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	sess, wk, err := st.EndSession(r.Context())
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": newSessionView(sess, time.Now()),
		"workout": wk,
	})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.Notices())
}

// store returns the caller's loaded state.
func (s *Server) store(w http.ResponseWriter, r *http.Request) (*workouts.Store, bool) {
	uid, ok := userIDFromContext(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unidentified user"})
		return nil, false
	}
	st, err := s.stores.For(r.Context(), uid)
	if err != nil {
		s.writeError(w, err, nil)
		return nil, false
	}
	return st, true
}

func (s *Server) writeError(w http.ResponseWriter, err error, state any) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "status", status, "error", err)
	}
	body := errorBody{Error: err.Error()}
	if status == http.StatusBadGateway {
		body.State = state
	}
	writeJSON(w, status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, workouts.ErrWorkoutNotFound),
		errors.Is(err, session.ErrExerciseNotFound),
		errors.Is(err, session.ErrSetNotFound):
		return http.StatusNotFound
	case errors.Is(err, workouts.ErrInvalidWorkout),
		errors.Is(err, session.ErrUnknownField):
		return http.StatusBadRequest
	case errors.Is(err, workouts.ErrSessionActive),
		errors.Is(err, workouts.ErrNoActiveSession):
		return http.StatusConflict
	case errors.Is(err, workouts.ErrBackend):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// partialSession reports a session only when the store returned one.
func partialSession(sess models.WorkoutSession) any {
	if sess.ID == uuid.Nil {
		return nil
	}
	return newSessionView(sess, time.Now())
}

// rawValue accepts JSON strings, numbers and booleans as the edit value.
func rawValue(raw json.RawMessage) string {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return strings.TrimSpace(string(raw))
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
