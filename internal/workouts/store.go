// Package workouts holds the per-user application state: the workout
// templates and at most one active session, mutated only through the Store's
// action methods.
package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/claude/ironlog/internal/catalog"
	"github.com/claude/ironlog/internal/metrics"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/notify"
	"github.com/claude/ironlog/internal/reconcile"
	"github.com/claude/ironlog/internal/session"
	"github.com/google/uuid"
)

var (
	ErrWorkoutNotFound = errors.New("workout not found")
	ErrSessionActive   = errors.New("a workout session is already active")
	ErrNoActiveSession = errors.New("no active workout")
	ErrInvalidWorkout  = errors.New("invalid workout")
	ErrAmbiguousSource = errors.New("exactly one of backend or local snapshot store must be configured")
	ErrBackend         = errors.New("backend request failed")
)

// Config wires a Store. Exactly one of Backend and Local must be set.
type Config struct {
	UserID  int
	Backend Backend
	Local   Snapshotter
	Logger  *slog.Logger
	Metrics *metrics.Manager

	// NoticeCapacity bounds the notice queue; zero uses notify.DefaultCapacity.
	NoticeCapacity int

	// Seed adds the sample workout when the user has none.
	Seed bool

	Now   func() time.Time
	NewID func() uuid.UUID
}

// Store is one user's workouts and active session. All methods are safe for
// concurrent use; actions are serialized.
type Store struct {
	mu sync.Mutex

	userID  int
	backend Backend
	local   Snapshotter
	log     *slog.Logger
	metrics *metrics.Manager
	notices *notify.Queue
	proj    *session.Projector
	seed    bool
	now     func() time.Time
	newID   func() uuid.UUID

	loaded   bool
	workouts []models.Workout
	active   *models.WorkoutSession
}

// New validates cfg and returns an unloaded Store.
func New(cfg Config) (*Store, error) {
	if (cfg.Backend == nil) == (cfg.Local == nil) {
		return nil, ErrAmbiguousSource
	}
	s := &Store{
		userID:  cfg.UserID,
		backend: cfg.Backend,
		local:   cfg.Local,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		notices: notify.NewQueue(cfg.NoticeCapacity),
		seed:    cfg.Seed,
		now:     cfg.Now,
		newID:   cfg.NewID,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("user_id", cfg.UserID)
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.New
	}
	s.proj = session.NewProjector(session.WithClock(s.now), session.WithIDs(s.newID))
	return s, nil
}

// Load reads the user's state from the configured source. Loading twice is a
// no-op.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	var err error
	if s.backend != nil {
		err = s.loadBackend(ctx)
	} else {
		err = s.loadLocal(ctx)
	}
	if err != nil {
		s.fail("load", "Failed to load workouts", err)
		return err
	}
	s.loaded = true

	if len(s.workouts) == 0 && s.seed {
		w := SampleWorkout(s.now().UTC(), s.newID)
		if err := s.create(ctx, w); err != nil {
			s.fail("seed", "Failed to create sample workout", err)
			return nil
		}
	}
	return nil
}

func (s *Store) loadBackend(ctx context.Context) error {
	rows, err := s.backend.ListWorkouts(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("%w: listing workouts: %w", ErrBackend, err)
	}
	ws := make([]models.Workout, 0, len(rows))
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		exs, err := fetchTree(ctx, s.backend, models.TemplateTables, row.ID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBackend, err)
		}
		ws = append(ws, models.WorkoutToDomain(row, exs))
		ids = append(ids, row.ID)
	}
	s.workouts = ws
	sortNewestFirst(s.workouts)

	if len(ids) == 0 {
		return nil
	}
	open, err := s.backend.OpenSessions(ctx, ids)
	if err != nil {
		return fmt.Errorf("%w: listing open sessions: %w", ErrBackend, err)
	}
	if len(open) == 0 {
		return nil
	}
	latest := open[0]
	for _, r := range open[1:] {
		if r.StartTime.After(latest.StartTime) {
			latest = r
		}
	}
	exs, err := fetchTree(ctx, s.backend, models.SessionTables, latest.ID)
	if err != nil {
		return fmt.Errorf("%w: resuming session: %w", ErrBackend, err)
	}
	sess := models.SessionToDomain(latest, exs)
	s.active = &sess
	s.log.Info("resumed open session", "session_id", sess.ID, "workout_id", sess.WorkoutID)
	return nil
}

func (s *Store) loadLocal(ctx context.Context) error {
	s.workouts = []models.Workout{}
	var ws []models.Workout
	ok, err := s.readSnapshot(ctx, WorkoutsKey, &ws)
	if err != nil {
		return err
	}
	if ok && ws != nil {
		s.workouts = ws
	}
	sortNewestFirst(s.workouts)

	var sess models.WorkoutSession
	ok, err = s.readSnapshot(ctx, CurrentSessionKey, &sess)
	if err != nil {
		return err
	}
	if ok && s.indexOf(sess.WorkoutID) >= 0 {
		s.active = &sess
	}
	return nil
}

// readSnapshot decodes one snapshot key into v. A value that cannot be read
// back is dropped with an error notice and reported as absent.
func (s *Store) readSnapshot(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := s.local.LoadSnapshot(ctx, s.userID, key)
	if errors.Is(err, ErrSnapshotDiscarded) {
		s.discarded(key, err)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s snapshot: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.discarded(key, err)
		return false, nil
	}
	return true, nil
}

func (s *Store) discarded(key string, err error) {
	s.log.Warn("discarding unparsable snapshot", "key", key, "error", err)
	if key == CurrentSessionKey {
		s.notices.Push(notify.Error, "Failed to load saved session")
		return
	}
	s.notices.Push(notify.Error, "Failed to load saved workouts")
}

// Workouts returns a copy of all templates, newest first.
func (s *Store) Workouts() []models.Workout {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Workout, len(s.workouts))
	for i, w := range s.workouts {
		out[i] = w.Clone()
	}
	return out
}

// Get returns a copy of one template.
func (s *Store) Get(id uuid.UUID) (models.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.Workout{}, fmt.Errorf("%w: %s", ErrWorkoutNotFound, id)
	}
	return s.workouts[i].Clone(), nil
}

// Add creates a template from name, description and exercises. Identifiers
// and CreatedAt are assigned here. On failure the store is unchanged.
func (s *Store) Add(ctx context.Context, name, description string, exercises []models.WorkoutExercise) (models.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := models.Workout{
		ID:          s.newID(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		CreatedAt:   s.now().UTC(),
		Exercises:   models.CloneExercises(exercises),
	}
	if err := validate(w); err != nil {
		return models.Workout{}, err
	}
	for i := range w.Exercises {
		w.Exercises[i].ID = uuid.Nil
		for j := range w.Exercises[i].Sets {
			w.Exercises[i].Sets[j].ID = uuid.Nil
		}
	}
	if err := s.create(ctx, w); err != nil {
		s.fail("add", "Failed to create workout", err)
		return models.Workout{}, err
	}
	s.notices.Push(notify.Info, fmt.Sprintf("Workout %q created", w.Name))
	return s.workouts[0].Clone(), nil
}

// create persists a new template and prepends it. Callers hold mu.
func (s *Store) create(ctx context.Context, w models.Workout) error {
	normalizeNames(w.Exercises)
	plan := reconcile.Exercises(nil, w.Exercises, s.newID)
	w.Exercises = plan.Result

	if s.backend != nil {
		if err := s.backend.InsertWorkout(ctx, models.WorkoutToRow(w, s.userID)); err != nil {
			return fmt.Errorf("%w: inserting workout: %w", ErrBackend, err)
		}
		res, err := reconcile.Apply(ctx, s.backend, models.TemplateTables, w.ID, plan)
		s.metrics.Reconciled(models.TemplateTables, res)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBackend, err)
		}
	}
	s.workouts = append([]models.Workout{w}, s.workouts...)
	s.persist(ctx, WorkoutsKey)
	return nil
}

// Update replaces a template's name, description and exercise tree.
// CreatedAt and LastPerformed are kept.
//
// When a backend write fails partway, the template is re-read from the
// backend and that state is kept. If the re-read fails too, the local edit
// is kept. The write error is returned in both cases.
func (s *Store) Update(ctx context.Context, w models.Workout) (models.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(w.ID)
	if i < 0 {
		return models.Workout{}, fmt.Errorf("%w: %s", ErrWorkoutNotFound, w.ID)
	}
	prev := s.workouts[i]

	next := prev.Clone()
	next.Name = strings.TrimSpace(w.Name)
	next.Description = strings.TrimSpace(w.Description)
	next.Exercises = models.CloneExercises(w.Exercises)
	if next.Exercises == nil {
		next.Exercises = []models.WorkoutExercise{}
	}
	if err := validate(next); err != nil {
		return models.Workout{}, err
	}
	normalizeNames(next.Exercises)

	plan := reconcile.Exercises(prev.Exercises, next.Exercises, s.newID)
	next.Exercises = plan.Result

	if err := s.saveTemplate(ctx, next, plan); err != nil {
		s.fail("update", "Failed to update workout", err)
		s.workouts[i] = s.refetchOr(ctx, next)
		s.persist(ctx, WorkoutsKey)
		return s.workouts[i].Clone(), err
	}

	s.workouts[i] = next
	s.persist(ctx, WorkoutsKey)
	s.notices.Push(notify.Info, fmt.Sprintf("Workout %q updated", next.Name))
	return next.Clone(), nil
}

// AddExercise appends a catalog exercise with the default three sets.
func (s *Store) AddExercise(ctx context.Context, workoutID uuid.UUID, exerciseID string) (models.Workout, error) {
	w, err := s.Get(workoutID)
	if err != nil {
		return models.Workout{}, err
	}
	w.Exercises = append(w.Exercises, CatalogExercise(exerciseID))
	return s.Update(ctx, w)
}

func (s *Store) saveTemplate(ctx context.Context, w models.Workout, plan reconcile.ExercisePlan) error {
	if s.backend == nil {
		return nil
	}
	if err := s.backend.UpdateWorkout(ctx, models.WorkoutToRow(w, s.userID)); err != nil {
		return fmt.Errorf("%w: updating workout: %w", ErrBackend, err)
	}
	res, err := reconcile.Apply(ctx, s.backend, models.TemplateTables, w.ID, plan)
	s.metrics.Reconciled(models.TemplateTables, res)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackend, err)
	}
	return nil
}

// refetchOr re-reads a template from the backend, falling back to local.
func (s *Store) refetchOr(ctx context.Context, local models.Workout) models.Workout {
	if s.backend == nil {
		return local
	}
	w, err := fetchWorkout(ctx, s.backend, s.userID, local.ID)
	if err != nil {
		s.log.Warn("refetch after failed save failed, keeping local edit", "workout_id", local.ID, "error", err)
		return local
	}
	return w
}

// Delete removes a template and, through the backend's cascade, its
// exercises and sets. The template of the active session cannot be deleted.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrWorkoutNotFound, id)
	}
	if s.active != nil && s.active.WorkoutID == id {
		return fmt.Errorf("%w: end it before deleting its workout", ErrSessionActive)
	}
	name := s.workouts[i].Name
	if s.backend != nil {
		if err := s.backend.DeleteWorkout(ctx, s.userID, id); err != nil {
			err = fmt.Errorf("%w: deleting workout: %w", ErrBackend, err)
			s.fail("delete", "Failed to delete workout", err)
			return err
		}
	}
	s.workouts = append(s.workouts[:i:i], s.workouts[i+1:]...)
	s.persist(ctx, WorkoutsKey)
	s.notices.Push(notify.Info, fmt.Sprintf("Workout %q deleted", name))
	return nil
}

// Notices drains pending user notices.
func (s *Store) Notices() []notify.Notice {
	return s.notices.Drain()
}

func (s *Store) indexOf(id uuid.UUID) int {
	for i, w := range s.workouts {
		if w.ID == id {
			return i
		}
	}
	return -1
}

// fail logs, counts and queues a user notice for a failed action.
func (s *Store) fail(action, notice string, err error) {
	s.log.Error(notice, "action", action, "error", err)
	s.metrics.BackendError(action)
	s.notices.Push(notify.Error, notice)
}

// persist writes one snapshot key in local mode. Failures are logged and
// noticed; in-memory state stays authoritative. Callers hold mu.
func (s *Store) persist(ctx context.Context, key string) {
	if s.local == nil {
		return
	}
	var (
		raw []byte
		err error
	)
	switch key {
	case WorkoutsKey:
		raw, err = json.Marshal(s.workouts)
	case CurrentSessionKey:
		if s.active == nil {
			err = s.local.DeleteSnapshot(ctx, s.userID, key)
			if err != nil {
				s.fail("persist", "Failed to save workouts locally", err)
			}
			return
		}
		raw, err = json.Marshal(s.active)
	}
	if err == nil {
		err = s.local.SaveSnapshot(ctx, s.userID, key, raw)
	}
	if err != nil {
		s.fail("persist", "Failed to save workouts locally", fmt.Errorf("saving %s snapshot: %w", key, err))
	}
}

func validate(w models.Workout) error {
	if w.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidWorkout)
	}
	seen := make(map[uuid.UUID]struct{})
	check := func(id uuid.UUID) error {
		if id == uuid.Nil {
			return nil
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidWorkout, id)
		}
		seen[id] = struct{}{}
		return nil
	}
	for _, ex := range w.Exercises {
		if err := check(ex.ID); err != nil {
			return err
		}
		for _, set := range ex.Sets {
			if err := check(set.ID); err != nil {
				return err
			}
			if set.Weight < 0 || set.Reps < 0 {
				return fmt.Errorf("%w: weight and reps must not be negative", ErrInvalidWorkout)
			}
		}
	}
	return nil
}

// normalizeNames fills missing denormalized exercise names from the catalog.
func normalizeNames(exs []models.WorkoutExercise) {
	for i := range exs {
		if strings.TrimSpace(exs[i].ExerciseName) == "" {
			exs[i].ExerciseName = catalog.DisplayName(exs[i].ExerciseID, "")
		}
		if exs[i].Sets == nil {
			exs[i].Sets = []models.ExerciseSet{}
		}
	}
}

func sortNewestFirst(ws []models.Workout) {
	sort.SliceStable(ws, func(i, j int) bool {
		return ws[i].CreatedAt.After(ws[j].CreatedAt)
	})
}
