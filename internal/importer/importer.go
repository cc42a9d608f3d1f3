// Package importer turns Alpha Progression CSV exports into workout
// templates.
package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/claude/ironlog/internal/models"
)

// Destination receives imported templates. *workouts.Store satisfies it.
type Destination interface {
	Workouts() []models.Workout
	Add(ctx context.Context, name, description string, exercises []models.WorkoutExercise) (models.Workout, error)
}

// Stats tracks import progress.
type Stats struct {
	SessionsReceived int `json:"sessions_received"`
	WorkoutsCreated  int `json:"workouts_created"`
	WorkoutsSkipped  int `json:"workouts_skipped"`
	SetsImported     int `json:"sets_imported"`
	WarmupsDropped   int `json:"warmups_dropped"`
}

// Importer creates one template per distinct session name. An export holds
// every performance of a routine, so only the most recent session of each
// name is used, and names the user already has are skipped.
type Importer struct {
	log    *slog.Logger
	dryRun bool
}

func New(log *slog.Logger, dryRun bool) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{log: log, dryRun: dryRun}
}

// Import parses r and adds the resulting templates to dst. Stats are
// returned even when an Add fails partway.
func (imp *Importer) Import(ctx context.Context, dst Destination, r io.Reader) (*Stats, error) {
	sessions, err := Parse(r)
	if err != nil {
		return &Stats{}, fmt.Errorf("parsing export: %w", err)
	}
	stats := &Stats{SessionsReceived: len(sessions)}

	existing := make(map[string]bool)
	for _, w := range dst.Workouts() {
		existing[strings.ToLower(w.Name)] = true
	}

	for _, s := range latestByName(sessions) {
		w := Template(s)
		key := strings.ToLower(w.Name)
		if w.Name == "" || existing[key] {
			stats.WorkoutsSkipped++
			imp.log.Debug("skipping session", "name", s.Name)
			continue
		}

		sets, warmups := 0, 0
		for i, ex := range s.Exercises {
			sets += len(w.Exercises[i].Sets)
			warmups += len(ex.Sets) - len(w.Exercises[i].Sets)
		}

		if !imp.dryRun {
			if _, err := dst.Add(ctx, w.Name, w.Description, w.Exercises); err != nil {
				return stats, fmt.Errorf("adding template %q: %w", w.Name, err)
			}
		}
		existing[key] = true
		stats.WorkoutsCreated++
		stats.SetsImported += sets
		stats.WarmupsDropped += warmups
		imp.log.Info("imported template", "name", w.Name, "exercises", len(w.Exercises), "sets", sets, "dry_run", imp.dryRun)
	}
	return stats, nil
}

// latestByName keeps the newest session per name, in first-seen order.
func latestByName(sessions []Session) []Session {
	idx := make(map[string]int)
	var out []Session
	for _, s := range sessions {
		key := strings.ToLower(strings.TrimSpace(s.Name))
		i, ok := idx[key]
		if !ok {
			idx[key] = len(out)
			out = append(out, s)
			continue
		}
		if s.Date.After(out[i].Date) {
			out[i] = s
		}
	}
	return out
}
