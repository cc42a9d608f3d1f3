package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/claude/ironlog/internal/catalog"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/session"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// workoutSummary is the list_workouts row.
type workoutSummary struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastPerformed *time.Time `json:"lastPerformed,omitempty"`
	Exercises     int        `json:"exercises"`
	Sets          int        `json:"sets"`
}

func summarize(w models.Workout) workoutSummary {
	sum := workoutSummary{
		ID:            w.ID,
		Name:          w.Name,
		Description:   w.Description,
		CreatedAt:     w.CreatedAt,
		LastPerformed: w.LastPerformed,
		Exercises:     len(w.Exercises),
	}
	for _, ex := range w.Exercises {
		sum.Sets += len(ex.Sets)
	}
	return sum
}

// --- Tool definitions ---

var toolListWorkouts = mcp.NewTool("list_workouts",
	mcp.WithDescription("List the user's workout templates, newest first, with exercise and set counts and when each was last performed."),
	mcp.WithString("name", mcp.Description("Only templates whose name contains this text (case-insensitive)")),
)

var toolGetWorkout = mcp.NewTool("get_workout",
	mcp.WithDescription("Get one workout template with its ordered exercises and planned sets (weight in kg, reps)."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout id (UUID) as returned by list_workouts")),
)

var toolGetActiveSession = mcp.NewTool("get_active_session",
	mcp.WithDescription("Get the workout session in progress, if any, with elapsed time and which exercises have all sets completed."),
)

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List the reference exercise catalog."),
	mcp.WithString("category", mcp.Description("Filter by category"), mcp.Enum("Chest", "Legs", "Back", "Shoulders", "Arms", "Core")),
)

// --- Tool handlers ---

func (h *handlers) listWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)
	ws, err := h.ds.ListWorkouts(ctx, uid)
	if err != nil {
		h.log.Error("mcp list_workouts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	filter := strings.ToLower(strings.TrimSpace(req.GetString("name", "")))
	out := make([]workoutSummary, 0, len(ws))
	for _, w := range ws {
		if filter != "" && !strings.Contains(strings.ToLower(w.Name), filter) {
			continue
		}
		out = append(out, summarize(w))
	}

	result, err := mcp.NewToolResultJSON(out)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return mcp.NewToolResultError("invalid id: " + err.Error()), nil
	}

	w, err := h.ds.GetWorkout(ctx, UserIDFromContext(ctx), id)
	if errors.Is(err, ErrNotFound) {
		return mcp.NewToolResultError("workout not found"), nil
	}
	if err != nil {
		h.log.Error("mcp get_workout", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	for i, ex := range w.Exercises {
		w.Exercises[i].ExerciseName = catalog.DisplayName(ex.ExerciseID, ex.ExerciseName)
	}

	result, err := mcp.NewToolResultJSON(w)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getActiveSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := h.ds.ActiveSession(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_active_session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if sess == nil {
		return mcp.NewToolResultText("No active workout"), nil
	}

	secs := session.ElapsedSeconds(*sess, time.Now())
	completed := make(map[string]bool, len(sess.Exercises))
	for _, ex := range sess.Exercises {
		completed[ex.ID.String()] = session.AllCompleted(ex)
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"session":         sess,
		"elapsed":         session.FormatElapsed(secs),
		"elapsed_seconds": secs,
		"completed":       completed,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exs := catalog.InCategory(req.GetString("category", ""))
	if exs == nil {
		exs = []catalog.Exercise{}
	}
	result, err := mcp.NewToolResultJSON(exs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
