package services_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/programhub/apiserver/internal/services"
	"github.com/programhub/apiserver/internal/testutil"
	"github.com/programhub/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramService_CreateDefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	created, err := f.programSvc.Create(ctx, actor, programInput("  dts-2026 "))
	require.NoError(t, err)
	assert.Equal(t, "dts-2026", created.Slug)
	assert.False(t, created.IsActive)
	assert.Equal(t, types.DefaultTimezone, created.Schedule.Timezone)
	assert.Equal(t, types.DefaultParticipantsTotal, created.Participants.Total)
	assert.Equal(t, types.DefaultCostToParticipate, created.ProgramFeatures.CostToParticipate)

	_, err = f.programSvc.Create(ctx, actor, programInput("dts-2026"))
	requireKind(t, err, services.KindConflict)
	assert.Contains(t, err.Error(), "Slug already in use")

	_, err = f.programSvc.Create(ctx, actor, services.ProgramInput{Slug: ptr("x")})
	requireKind(t, err, services.KindValidation)
	assert.Contains(t, err.Error(), "Missing required fields: program, schedule, location")

	_, err = f.programSvc.Create(ctx, actor, programInput("   "))
	requireKind(t, err, services.KindValidation)
	assert.Contains(t, err.Error(), "Slug must be a non-empty string")

	bad := programInput("bad-dates")
	bad.Schedule.EndDate = bad.Schedule.StartDate.AddDate(0, 0, -1)
	_, err = f.programSvc.Create(ctx, actor, bad)
	requireKind(t, err, services.KindValidation)

	badAges := programInput("bad-ages")
	badAges.Participants = &types.Participants{Total: 10, MinAge: ptr(30), MaxAge: ptr(20)}
	_, err = f.programSvc.Create(ctx, actor, badAges)
	requireKind(t, err, services.KindValidation)

	zeroMax := programInput("zero-max-age")
	zeroMax.Participants = &types.Participants{Total: 10, MinAge: ptr(20), MaxAge: ptr(0)}
	_, err = f.programSvc.Create(ctx, actor, zeroMax)
	requireKind(t, err, services.KindValidation)

	noTotal := programInput("no-participants-total")
	noTotal.Participants = &types.Participants{Total: 0, MinAge: ptr(18)}
	created, err = f.programSvc.Create(ctx, actor, noTotal)
	require.NoError(t, err)
	assert.Equal(t, 0, created.Participants.Total, "explicit zero total is kept")

	updated, err := f.programSvc.Update(ctx, actor, created.ID, services.ProgramInput{Slug: ptr("still-zero")})
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Participants.Total)
}

func TestProgramService_ActivateKeepsSingleActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	a, err := f.programSvc.Create(ctx, actor, programInput("a"))
	require.NoError(t, err)
	b, err := f.programSvc.Create(ctx, actor, programInput("b"))
	require.NoError(t, err)

	first, err := f.programSvc.Activate(ctx, actor, a.ID)
	require.NoError(t, err)
	assert.Nil(t, first.Previous)
	assert.False(t, first.AlreadyActive)

	second, err := f.programSvc.Activate(ctx, actor, b.ID)
	require.NoError(t, err)
	require.NotNil(t, second.Previous)
	assert.Equal(t, a.ID, second.Previous.ID)
	assert.Equal(t, 1, f.programs.ActiveCount())

	again, err := f.programSvc.Activate(ctx, actor, b.ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyActive)

	_, err = f.programSvc.Activate(ctx, actor, uuid.New())
	requireKind(t, err, services.KindNotFound)

	active, err := f.programSvc.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, active.ID)
}

func TestProgramService_ConcurrentActivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	var ids []uuid.UUID
	for _, slug := range []string{"p1", "p2", "p3", "p4", "p5"} {
		p, err := f.programSvc.Create(ctx, actor, programInput(slug))
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.programSvc.Activate(ctx, actor, id)
			assert.NoError(t, err)
		}(ids[i%len(ids)])
	}
	wg.Wait()

	assert.Equal(t, 1, f.programs.ActiveCount())
}

func TestProgramService_CreateActiveDeactivatesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	first := programInput("first")
	first.IsActive = ptr(true)
	a, err := f.programSvc.Create(ctx, actor, first)
	require.NoError(t, err)
	assert.True(t, a.IsActive)

	second := programInput("second")
	second.IsActive = ptr(true)
	b, err := f.programSvc.Create(ctx, actor, second)
	require.NoError(t, err)

	assert.Equal(t, 1, f.programs.ActiveCount())
	got, err := f.programSvc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	active, err := f.programSvc.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, active.ID)
}

func TestProgramService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	a, err := f.programSvc.Create(ctx, actor, programInput("a"))
	require.NoError(t, err)
	_, err = f.programSvc.Create(ctx, actor, programInput("b"))
	require.NoError(t, err)

	_, err = f.programSvc.Update(ctx, actor, a.ID, services.ProgramInput{})
	requireKind(t, err, services.KindValidation)
	assert.Contains(t, err.Error(), "No fields provided for update")

	_, err = f.programSvc.Update(ctx, actor, a.ID, services.ProgramInput{Slug: ptr("b")})
	requireKind(t, err, services.KindConflict)

	_, err = f.programSvc.Update(ctx, actor, a.ID, services.ProgramInput{Slug: ptr(" ")})
	requireKind(t, err, services.KindValidation)

	_, err = f.programSvc.Update(ctx, actor, uuid.New(), services.ProgramInput{Slug: ptr("c")})
	requireKind(t, err, services.KindNotFound)

	updated, err := f.programSvc.Update(ctx, actor, a.ID, services.ProgramInput{
		Slug:     ptr("a"),
		Location: &types.Location{Venue: "Hall", City: "Jakarta", FullAddress: "Jl. 2", GoogleMapsURL: "https://maps.example.com/h", Country: "Indonesia"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Jakarta", updated.Location.City)
	assert.Equal(t, "Digital Talent", updated.Program.Name, "untouched sections survive")
	assert.True(t, updated.UpdatedAt.After(a.UpdatedAt))
}

func TestProgramService_DeletePromotesNewest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	oldest, err := f.programSvc.Create(ctx, actor, programInput("oldest"))
	require.NoError(t, err)
	newest, err := f.programSvc.Create(ctx, actor, programInput("newest"))
	require.NoError(t, err)
	activeIn := programInput("active")
	activeIn.IsActive = ptr(true)
	active, err := f.programSvc.Create(ctx, actor, activeIn)
	require.NoError(t, err)

	removal, err := f.programSvc.Delete(ctx, actor, active.ID)
	require.NoError(t, err)
	require.NotNil(t, removal.Promoted)
	assert.Equal(t, newest.ID, removal.Promoted.ID)

	got, err := f.programSvc.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, newest.ID, got.ID)

	var promotions int
	for _, e := range f.logs.Entries() {
		if len(e.Metadata) == 0 {
			continue
		}
		var meta map[string]any
		require.NoError(t, json.Unmarshal(e.Metadata, &meta))
		if meta["reason"] == "active_program_deleted" {
			promotions++
		}
	}
	assert.Equal(t, 1, promotions)

	removal, err = f.programSvc.Delete(ctx, actor, oldest.ID)
	require.NoError(t, err)
	assert.Nil(t, removal.Promoted, "deleting an inactive record promotes nothing")

	_, err = f.programSvc.Delete(ctx, actor, newest.ID)
	require.NoError(t, err)

	_, err = f.programSvc.GetActive(ctx)
	requireKind(t, err, services.KindNotFound)
	assert.Contains(t, err.Error(), "No active program found")

	_, err = f.programSvc.Delete(ctx, actor, newest.ID)
	requireKind(t, err, services.KindNotFound)
}

func TestProgramService_CacheAndSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	in := programInput("cached")
	in.IsActive = ptr(true)
	p, err := f.programSvc.Create(ctx, actor, in)
	require.NoError(t, err)
	require.NotEmpty(t, f.snapshots.Published)
	last := f.snapshots.Published[len(f.snapshots.Published)-1]
	require.NotNil(t, last)
	assert.Equal(t, p.ID, last.ID)

	_, err = f.programSvc.GetActive(ctx)
	require.NoError(t, err)
	_, err = f.programSvc.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.Hits)

	before := f.cache.Invalidations
	_, err = f.programSvc.Delete(ctx, actor, p.ID)
	require.NoError(t, err)
	assert.Greater(t, f.cache.Invalidations, before)
	assert.Nil(t, f.snapshots.Published[len(f.snapshots.Published)-1])
}

func TestProgramService_FailingLogDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.logs.Err = testutil.ErrUnavailable
	ctx := context.Background()

	p, err := f.programSvc.Create(ctx, uuid.New(), programInput("resilient"))
	require.NoError(t, err)
	_, err = f.programSvc.Activate(ctx, uuid.New(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, f.logs.Entries())
}

// racingPrograms runs a hook once, right after the service's first read
// through GetBySlug or GetActive, to interleave another write.
type racingPrograms struct {
	*testutil.ProgramStore
	afterSlugCheck func()
	afterActive    func()
}

func (r *racingPrograms) GetBySlug(ctx context.Context, slug string) (types.ProgramSetting, error) {
	program, err := r.ProgramStore.GetBySlug(ctx, slug)
	if hook := r.afterSlugCheck; hook != nil {
		r.afterSlugCheck = nil
		hook()
	}
	return program, err
}

func (r *racingPrograms) GetActive(ctx context.Context) (types.ProgramSetting, error) {
	program, err := r.ProgramStore.GetActive(ctx)
	if hook := r.afterActive; hook != nil {
		r.afterActive = nil
		hook()
	}
	return program, err
}

func newRacingService(f *fixture) (*racingPrograms, *services.ProgramService) {
	repo := &racingPrograms{ProgramStore: f.programs}
	return repo, services.NewProgramService(repo, f.activity, f.cache, nil, testutil.DiscardLogger())
}

func TestProgramService_UpdateDoesNotUndoConcurrentActivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()
	repo, svc := newRacingService(f)

	a, err := svc.Create(ctx, actor, programInput("a"))
	require.NoError(t, err)

	repo.afterSlugCheck = func() {
		activation, err := svc.Activate(ctx, actor, a.ID)
		require.NoError(t, err)
		require.True(t, activation.Program.IsActive)
	}
	updated, err := svc.Update(ctx, actor, a.ID, services.ProgramInput{
		Slug:     ptr("a-renamed"),
		Location: &types.Location{Venue: "Hall", City: "Jakarta", FullAddress: "Jl. 2", GoogleMapsURL: "https://maps.example.com/h", Country: "Indonesia"},
	})
	require.NoError(t, err)
	assert.True(t, updated.IsActive)

	active, err := svc.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.ID, active.ID)
	assert.Equal(t, "a-renamed", active.Slug)
}

func TestProgramService_StaleUpdateDoesNotReactivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()
	repo, svc := newRacingService(f)

	in := programInput("a")
	in.IsActive = ptr(true)
	a, err := svc.Create(ctx, actor, in)
	require.NoError(t, err)
	b, err := svc.Create(ctx, actor, programInput("b"))
	require.NoError(t, err)

	repo.afterSlugCheck = func() {
		_, err := svc.Activate(ctx, actor, b.ID)
		require.NoError(t, err)
	}
	updated, err := svc.Update(ctx, actor, a.ID, services.ProgramInput{Slug: ptr("a")})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	active, err := svc.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, active.ID)
	assert.Equal(t, 1, f.programs.ActiveCount())
}

func TestProgramService_CacheIgnoresReadRacingActivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()
	repo, svc := newRacingService(f)

	in := programInput("a")
	in.IsActive = ptr(true)
	_, err := svc.Create(ctx, actor, in)
	require.NoError(t, err)
	b, err := svc.Create(ctx, actor, programInput("b"))
	require.NoError(t, err)

	repo.afterActive = func() {
		_, err := svc.Activate(ctx, actor, b.ID)
		require.NoError(t, err)
	}
	stale, err := svc.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", stale.Slug)
	assert.Equal(t, 1, f.cache.StaleWrites)

	current, err := svc.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, current.ID)
}
