package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/programhub/apiserver/internal/store"
	"github.com/programhub/apiserver/types"
)

// UserStore is a thread-safe in-memory user repository.
type UserStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]types.User
	clock clock
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[uuid.UUID]types.User)}
}

func (s *UserStore) List(_ context.Context, offset, limit int) ([]types.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]types.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return window(all, offset, limit), len(all), nil
}

func (s *UserStore) GetByID(_ context.Context, id uuid.UUID) (types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (s *UserStore) CountByRole(_ context.Context, role string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (s *UserStore) Create(_ context.Context, user types.User) (types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return types.User{}, &store.ConflictError{Constraint: store.ConstraintUserEmail}
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := s.clock.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user
	return user, nil
}

func (s *UserStore) Update(_ context.Context, user types.User) (types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	for _, u := range s.users {
		if u.ID != user.ID && u.Email == user.Email {
			return types.User{}, &store.ConflictError{Constraint: store.ConstraintUserEmail}
		}
	}
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = s.clock.now()
	s.users[user.ID] = user
	return user, nil
}

func (s *UserStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// ProgramStore is a thread-safe in-memory program repository. A single
// mutex stands in for the activation lock.
type ProgramStore struct {
	mu       sync.RWMutex
	programs map[uuid.UUID]types.ProgramSetting
	clock    clock
}

func NewProgramStore() *ProgramStore {
	return &ProgramStore{programs: make(map[uuid.UUID]types.ProgramSetting)}
}

// ActiveCount returns how many records are active.
func (s *ProgramStore) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.programs {
		if p.IsActive {
			n++
		}
	}
	return n
}

func (s *ProgramStore) List(_ context.Context) ([]types.ProgramSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(), nil
}

func (s *ProgramStore) Get(_ context.Context, id uuid.UUID) (types.ProgramSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.programs[id]
	if !ok {
		return types.ProgramSetting{}, store.ErrNotFound
	}
	return p, nil
}

func (s *ProgramStore) GetBySlug(_ context.Context, slug string) (types.ProgramSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.programs {
		if p.Slug == slug {
			return p, nil
		}
	}
	return types.ProgramSetting{}, store.ErrNotFound
}

func (s *ProgramStore) GetActive(_ context.Context) (types.ProgramSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.programs {
		if p.IsActive {
			return p, nil
		}
	}
	return types.ProgramSetting{}, store.ErrNotFound
}

func (s *ProgramStore) Create(_ context.Context, program types.ProgramSetting) (types.ProgramSetting, *types.ProgramSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slugTaken(program.Slug, uuid.Nil) {
		return types.ProgramSetting{}, nil, &store.ConflictError{Constraint: store.ConstraintProgramSlug}
	}
	if program.ID == uuid.Nil {
		program.ID = uuid.New()
	}
	now := s.clock.now()
	program.CreatedAt = now
	program.UpdatedAt = now

	var previous *types.ProgramSetting
	if program.IsActive {
		previous = s.deactivateOthers(program.ID)
	}
	s.programs[program.ID] = program
	return program, previous, nil
}

func (s *ProgramStore) Update(_ context.Context, id uuid.UUID, mutate func(*types.ProgramSetting) error) (types.ProgramUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	program, ok := s.programs[id]
	if !ok {
		return types.ProgramUpdate{}, store.ErrNotFound
	}
	result := types.ProgramUpdate{WasActive: program.IsActive}
	if err := mutate(&program); err != nil {
		return types.ProgramUpdate{}, err
	}
	program.ID = id
	if s.slugTaken(program.Slug, id) {
		return types.ProgramUpdate{}, &store.ConflictError{Constraint: store.ConstraintProgramSlug}
	}
	program.UpdatedAt = s.clock.now()

	if program.IsActive && !result.WasActive {
		result.Previous = s.deactivateOthers(id)
	}
	s.programs[id] = program
	result.Program = program
	return result, nil
}

func (s *ProgramStore) Activate(_ context.Context, id uuid.UUID) (types.Activation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	program, ok := s.programs[id]
	if !ok {
		return types.Activation{}, store.ErrNotFound
	}
	if program.IsActive {
		return types.Activation{Program: program, AlreadyActive: true}, nil
	}
	previous := s.deactivateOthers(id)
	program.IsActive = true
	program.UpdatedAt = s.clock.now()
	s.programs[id] = program
	return types.Activation{Program: program, Previous: previous}, nil
}

func (s *ProgramStore) Delete(_ context.Context, id uuid.UUID) (types.Removal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	program, ok := s.programs[id]
	if !ok {
		return types.Removal{}, store.ErrNotFound
	}
	delete(s.programs, id)

	removal := types.Removal{Program: program}
	if !program.IsActive {
		return removal, nil
	}
	if remaining := s.sorted(); len(remaining) > 0 {
		promoted := remaining[0]
		promoted.IsActive = true
		promoted.UpdatedAt = s.clock.now()
		s.programs[promoted.ID] = promoted
		removal.Promoted = &promoted
	}
	return removal, nil
}

func (s *ProgramStore) sorted() []types.ProgramSetting {
	all := make([]types.ProgramSetting, 0, len(s.programs))
	for _, p := range s.programs {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all
}

func (s *ProgramStore) slugTaken(slug string, self uuid.UUID) bool {
	for _, p := range s.programs {
		if p.Slug == slug && p.ID != self {
			return true
		}
	}
	return false
}

func (s *ProgramStore) deactivateOthers(keep uuid.UUID) *types.ProgramSetting {
	var previous *types.ProgramSetting
	for id, p := range s.programs {
		if id == keep || !p.IsActive {
			continue
		}
		p.IsActive = false
		p.UpdatedAt = s.clock.now()
		s.programs[id] = p
		prev := p
		previous = &prev
	}
	return previous
}

// UpdateLogStore is a thread-safe in-memory activity log. Entries resolve
// their user through Users when it is set.
type UpdateLogStore struct {
	mu      sync.RWMutex
	entries []types.UpdateLog
	clock   clock

	Users *UserStore
	// Err, when set, fails every write.
	Err error
}

func NewUpdateLogStore(users *UserStore) *UpdateLogStore {
	return &UpdateLogStore{Users: users}
}

// ErrUnavailable is a stock failure for Err.
var ErrUnavailable = errors.New("store unavailable")

// Entries returns every stored entry, oldest first.
func (s *UpdateLogStore) Entries() []types.UpdateLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.UpdateLog(nil), s.entries...)
}

func (s *UpdateLogStore) Create(_ context.Context, entry types.UpdateLog) (types.UpdateLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return types.UpdateLog{}, s.Err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = s.clock.now()
	s.entries = append(s.entries, entry)
	return entry, nil
}

func (s *UpdateLogStore) List(ctx context.Context, offset, limit int) ([]types.UpdateLog, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolve(ctx, window(s.newestFirst(), offset, limit)), len(s.entries), nil
}

func (s *UpdateLogStore) Recent(ctx context.Context, limit int) ([]types.UpdateLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolve(ctx, window(s.newestFirst(), 0, limit)), nil
}

func (s *UpdateLogStore) newestFirst() []types.UpdateLog {
	out := make([]types.UpdateLog, len(s.entries))
	for i, e := range s.entries {
		out[len(s.entries)-1-i] = e
	}
	return out
}

func (s *UpdateLogStore) resolve(ctx context.Context, entries []types.UpdateLog) []types.UpdateLog {
	if s.Users == nil {
		return entries
	}
	for i := range entries {
		u, err := s.Users.GetByID(ctx, entries[i].UserID)
		if err != nil {
			continue
		}
		entries[i].User = &types.UserRef{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
	}
	return entries
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
