package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/programhub/apiserver/internal/store"
	"github.com/programhub/apiserver/types"
)

// ProgramRepository defines persistence operations for program settings.
type ProgramRepository interface {
	List(ctx context.Context) ([]types.ProgramSetting, error)
	Get(ctx context.Context, id uuid.UUID) (types.ProgramSetting, error)
	GetBySlug(ctx context.Context, slug string) (types.ProgramSetting, error)
	GetActive(ctx context.Context) (types.ProgramSetting, error)
	Create(ctx context.Context, program types.ProgramSetting) (types.ProgramSetting, *types.ProgramSetting, error)
	Update(ctx context.Context, id uuid.UUID, mutate func(*types.ProgramSetting) error) (types.ProgramUpdate, error)
	Activate(ctx context.Context, id uuid.UUID) (types.Activation, error)
	Delete(ctx context.Context, id uuid.UUID) (types.Removal, error)
}

// ActiveProgramCache caches the public read of the active program.
// Invalidate bumps the cache version; Set stores program only while the
// version is still the one read before loading it, so a reader racing a
// mutation cannot put a stale record back.
type ActiveProgramCache interface {
	Get(ctx context.Context) (types.ProgramSetting, bool, error)
	Version(ctx context.Context) (int64, error)
	Set(ctx context.Context, program types.ProgramSetting, version int64) error
	Invalidate(ctx context.Context) error
}

// SnapshotPublisher publishes the active program as a static document.
// A nil program means there is no active program anymore.
type SnapshotPublisher interface {
	PublishActive(ctx context.Context, program *types.ProgramSetting) error
}

// ProgramInput is the body of a program create or update. Nil fields were
// absent from the request.
type ProgramInput struct {
	Slug            *string                `json:"slug"`
	IsActive        *bool                  `json:"isActive"`
	Program         *types.ProgramInfo     `json:"program"`
	Schedule        *types.Schedule        `json:"schedule"`
	Participants    *types.Participants    `json:"participants"`
	Location        *types.Location        `json:"location"`
	ProgramFeatures *types.ProgramFeatures `json:"programFeatures"`
}

func (in ProgramInput) empty() bool {
	return in.Slug == nil && in.IsActive == nil && in.Program == nil && in.Schedule == nil &&
		in.Participants == nil && in.Location == nil && in.ProgramFeatures == nil
}

func (in ProgramInput) missingRequired() []string {
	var missing []string
	if in.Slug == nil {
		missing = append(missing, "slug")
	}
	if in.Program == nil {
		missing = append(missing, "program")
	}
	if in.Schedule == nil {
		missing = append(missing, "schedule")
	}
	if in.Location == nil {
		missing = append(missing, "location")
	}
	return missing
}

func (in ProgramInput) fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(in.Slug != nil, "slug")
	add(in.IsActive != nil, "isActive")
	add(in.Program != nil, "program")
	add(in.Schedule != nil, "schedule")
	add(in.Participants != nil, "participants")
	add(in.Location != nil, "location")
	add(in.ProgramFeatures != nil, "programFeatures")
	return fields
}

// apply merges the provided fields into program.
func (in ProgramInput) apply(program *types.ProgramSetting) {
	if in.Slug != nil {
		program.Slug = strings.TrimSpace(*in.Slug)
	}
	if in.IsActive != nil {
		program.IsActive = *in.IsActive
	}
	if in.Program != nil {
		program.Program = *in.Program
	}
	if in.Schedule != nil {
		program.Schedule = *in.Schedule
	}
	if in.Participants != nil {
		program.Participants = *in.Participants
	}
	if in.Location != nil {
		program.Location = *in.Location
	}
	if in.ProgramFeatures != nil {
		program.ProgramFeatures = *in.ProgramFeatures
	}
}

// ProgramService manages program settings and the single active program.
type ProgramService struct {
	repo      ProgramRepository
	activity  *ActivityService
	cache     ActiveProgramCache
	snapshots SnapshotPublisher
	logger    *slog.Logger
}

// NewProgramService constructs a ProgramService. cache and snapshots may be
// nil.
func NewProgramService(repo ProgramRepository, activity *ActivityService, cache ActiveProgramCache, snapshots SnapshotPublisher, logger *slog.Logger) *ProgramService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgramService{
		repo:      repo,
		activity:  activity,
		cache:     cache,
		snapshots: snapshots,
		logger:    logger,
	}
}

func (s *ProgramService) List(ctx context.Context) ([]types.ProgramSetting, error) {
	return s.repo.List(ctx)
}

func (s *ProgramService) Get(ctx context.Context, id uuid.UUID) (types.ProgramSetting, error) {
	program, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.ProgramSetting{}, notFound("Program setting not found", err)
		}
		return types.ProgramSetting{}, err
	}
	return program, nil
}

// GetActive returns the active program, from the cache when possible.
func (s *ProgramService) GetActive(ctx context.Context) (types.ProgramSetting, error) {
	if s.cache != nil {
		program, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("active program cache read failed", "error", err)
		} else if ok {
			return program, nil
		}
	}

	var (
		version   int64
		cacheable = s.cache != nil
	)
	if cacheable {
		v, err := s.cache.Version(ctx)
		if err != nil {
			s.logger.Warn("active program cache version read failed", "error", err)
			cacheable = false
		}
		version = v
	}

	program, err := s.repo.GetActive(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.ProgramSetting{}, notFound("No active program found", err)
		}
		return types.ProgramSetting{}, err
	}

	if cacheable {
		if err := s.cache.Set(ctx, program, version); err != nil {
			s.logger.Warn("active program cache write failed", "error", err)
		}
	}
	return program, nil
}

// Create stores a new program setting. Creating it active deactivates the
// previously active one.
func (s *ProgramService) Create(ctx context.Context, actorID uuid.UUID, in ProgramInput) (types.ProgramSetting, error) {
	if missing := in.missingRequired(); len(missing) > 0 {
		return types.ProgramSetting{}, invalid(
			"Missing required fields: "+strings.Join(missing, ", "),
			map[string]any{"missing": missing},
		)
	}

	program := types.ProgramSetting{Participants: types.Participants{Total: types.DefaultParticipantsTotal}}
	in.apply(&program)
	if program.Slug == "" {
		return types.ProgramSetting{}, invalid("Slug must be a non-empty string", nil)
	}
	program.ApplyDefaults()
	if err := program.Validate(); err != nil {
		return types.ProgramSetting{}, invalid("Invalid program setting", err)
	}

	if err := s.ensureSlugFree(ctx, program.Slug, uuid.Nil); err != nil {
		return types.ProgramSetting{}, err
	}

	created, previous, err := s.repo.Create(ctx, program)
	if err != nil {
		return types.ProgramSetting{}, s.writeError(err)
	}

	s.activity.Record(ctx, Activity{
		Type:    types.LogTypeAdmin,
		UserID:  actorID,
		Message: fmt.Sprintf("Created program setting %s", created.Slug),
		Metadata: map[string]any{
			"programId": created.ID,
			"slug":      created.Slug,
			"isActive":  created.IsActive,
		},
	})
	if created.IsActive {
		s.recordDeactivation(ctx, actorID, previous, created)
	}
	s.activeChanged(ctx, created.IsActive || previous != nil)
	return created, nil
}

// Update applies a partial update to the program setting id.
func (s *ProgramService) Update(ctx context.Context, actorID, id uuid.UUID, in ProgramInput) (types.ProgramSetting, error) {
	if in.empty() {
		return types.ProgramSetting{}, invalid("No fields provided for update", nil)
	}
	if in.Slug != nil && strings.TrimSpace(*in.Slug) == "" {
		return types.ProgramSetting{}, invalid("Slug must be a non-empty string", nil)
	}

	if in.Slug != nil {
		if err := s.ensureSlugFree(ctx, strings.TrimSpace(*in.Slug), id); err != nil {
			return types.ProgramSetting{}, err
		}
	}

	result, err := s.repo.Update(ctx, id, func(program *types.ProgramSetting) error {
		in.apply(program)
		program.ApplyDefaults()
		if err := program.Validate(); err != nil {
			return invalid("Invalid program setting", err)
		}
		return nil
	})
	if err != nil {
		if KindOf(err) != 0 {
			return types.ProgramSetting{}, err
		}
		return types.ProgramSetting{}, s.writeError(err)
	}
	updated, previous, wasActive := result.Program, result.Previous, result.WasActive

	s.activity.Record(ctx, Activity{
		Type:    types.LogTypeAdmin,
		UserID:  actorID,
		Message: fmt.Sprintf("Updated program setting %s", updated.Slug),
		Metadata: map[string]any{
			"programId": updated.ID,
			"slug":      updated.Slug,
			"fields":    in.fields(),
		},
	})
	if updated.IsActive && !wasActive {
		s.recordDeactivation(ctx, actorID, previous, updated)
	}
	s.activeChanged(ctx, wasActive || updated.IsActive)
	return updated, nil
}

// Activate makes the program setting id the only active one.
func (s *ProgramService) Activate(ctx context.Context, actorID, id uuid.UUID) (types.Activation, error) {
	activation, err := s.repo.Activate(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return types.Activation{}, notFound("Program setting not found", err)
		case errors.Is(err, store.ErrConflict):
			return types.Activation{}, conflict("Another program was activated concurrently", err)
		}
		return types.Activation{}, fmt.Errorf("activate program: %w", err)
	}
	if activation.AlreadyActive {
		return activation, nil
	}

	metadata := map[string]any{
		"programId": activation.Program.ID,
		"slug":      activation.Program.Slug,
	}
	if activation.Previous != nil {
		metadata["previousId"] = activation.Previous.ID
		metadata["previousSlug"] = activation.Previous.Slug
	}
	s.activity.Record(ctx, Activity{
		Type:     types.LogTypeAdmin,
		UserID:   actorID,
		Message:  fmt.Sprintf("Activated program setting %s", activation.Program.Slug),
		Metadata: metadata,
	})
	s.activeChanged(ctx, true)
	return activation, nil
}

// Delete removes the program setting id. When it was active, the most
// recently created remaining record is promoted.
func (s *ProgramService) Delete(ctx context.Context, actorID, id uuid.UUID) (types.Removal, error) {
	removal, err := s.repo.Delete(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return types.Removal{}, notFound("Program setting not found", err)
		case errors.Is(err, store.ErrConflict):
			return types.Removal{}, conflict("Another program was activated concurrently", err)
		}
		return types.Removal{}, fmt.Errorf("delete program: %w", err)
	}

	s.activity.Record(ctx, Activity{
		Type:    types.LogTypeAdmin,
		UserID:  actorID,
		Message: fmt.Sprintf("Deleted program setting %s", removal.Program.Slug),
		Metadata: map[string]any{
			"programId": removal.Program.ID,
			"slug":      removal.Program.Slug,
			"wasActive": removal.Program.IsActive,
		},
	})
	if removal.Promoted != nil {
		s.activity.Record(ctx, Activity{
			Type:    types.LogTypeAdmin,
			UserID:  actorID,
			Message: fmt.Sprintf("Activated program setting %s", removal.Promoted.Slug),
			Metadata: map[string]any{
				"programId":  removal.Promoted.ID,
				"slug":       removal.Promoted.Slug,
				"reason":     "active_program_deleted",
				"replacedId": removal.Program.ID,
			},
		})
	}
	s.activeChanged(ctx, removal.Program.IsActive)
	return removal, nil
}

func (s *ProgramService) ensureSlugFree(ctx context.Context, slug string, self uuid.UUID) error {
	existing, err := s.repo.GetBySlug(ctx, slug)
	switch {
	case err == nil && existing.ID != self:
		return conflict("Slug already in use", nil)
	case err == nil, errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check slug: %w", err)
	}
}

func (s *ProgramService) writeError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return notFound("Program setting not found", err)
	case store.IsConflictOn(err, store.ConstraintProgramSlug):
		return conflict("Slug already in use", err)
	case errors.Is(err, store.ErrConflict):
		return conflict("Another program was activated concurrently", err)
	}
	return fmt.Errorf("save program: %w", err)
}

func (s *ProgramService) recordDeactivation(ctx context.Context, actorID uuid.UUID, previous *types.ProgramSetting, current types.ProgramSetting) {
	if previous == nil {
		return
	}
	s.activity.Record(ctx, Activity{
		Type:    types.LogTypeAdmin,
		UserID:  actorID,
		Message: fmt.Sprintf("Deactivated program setting %s", previous.Slug),
		Metadata: map[string]any{
			"programId":   previous.ID,
			"slug":        previous.Slug,
			"activatedId": current.ID,
		},
	})
}

// activeChanged drops the cached active program and republishes the
// snapshot when a write may have changed which program is active or what
// it contains.
func (s *ProgramService) activeChanged(ctx context.Context, changed bool) {
	if !changed {
		return
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("active program cache invalidation failed", "error", err)
		}
	}
	if s.snapshots == nil {
		return
	}

	var active *types.ProgramSetting
	program, err := s.repo.GetActive(ctx)
	switch {
	case err == nil:
		active = &program
	case errors.Is(err, store.ErrNotFound):
	default:
		s.logger.Warn("failed to load active program for snapshot", "error", err)
		return
	}
	if err := s.snapshots.PublishActive(ctx, active); err != nil {
		s.logger.Warn("failed to publish active program snapshot", "error", err)
	}
}
