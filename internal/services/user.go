package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/programhub/apiserver/internal/store"
	"github.com/programhub/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultUserLimit = 20
	maxUserLimit     = 100

	minPasswordLength = 8
	maxPasswordLength = 72
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	CountByRole(ctx context.Context, role string) (int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CreateUserInput is the payload of an account creation.
type CreateUserInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (in CreateUserInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(minPasswordLength, maxPasswordLength)),
		validation.Field(&in.Role, validation.Required, validation.In(types.RoleModerator, types.RoleAdmin)),
	)
}

// UpdateUserInput is a partial account update; nil fields are left as is.
type UpdateUserInput struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

func (in UpdateUserInput) empty() bool {
	return in.Name == nil && in.Email == nil && in.Password == nil && in.Role == nil
}

func (in UpdateUserInput) fields() []string {
	var fields []string
	if in.Name != nil {
		fields = append(fields, "name")
	}
	if in.Email != nil {
		fields = append(fields, "email")
	}
	if in.Password != nil {
		fields = append(fields, "password")
	}
	if in.Role != nil {
		fields = append(fields, "role")
	}
	return fields
}

func (in UpdateUserInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&in.Email, validation.NilOrNotEmpty, validation.Length(3, 254), is.Email),
		validation.Field(&in.Password, validation.NilOrNotEmpty, validation.Length(minPasswordLength, maxPasswordLength)),
		validation.Field(&in.Role, validation.NilOrNotEmpty, validation.In(types.RoleModerator, types.RoleAdmin)),
	)
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo     UserRepository
	activity *ActivityService
	hashCost int

	// dummyHash is compared against when the email is unknown so that
	// both failures cost one bcrypt comparison.
	dummyOnce sync.Once
	dummyHash []byte
}

func NewUserService(repo UserRepository, activity *ActivityService) *UserService {
	return &UserService{
		repo:     repo,
		activity: activity,
		hashCost: bcrypt.DefaultCost,
	}
}

// WithHashCost overrides the bcrypt cost used for new password hashes.
func (s *UserService) WithHashCost(cost int) *UserService {
	s.hashCost = cost
	return s
}

// Authenticate checks an email/password pair and returns the account.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return types.User{}, invalid("Email and password are required", nil)
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.unknownUserHash(), []byte(password))
			return types.User{}, unauthenticated("Invalid email or password")
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, unauthenticated("Invalid email or password")
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, notFound("User not found", err)
		}
		return types.User{}, err
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, page, limit int) (types.Page[types.User], error) {
	page, limit = clampPage(page, limit, defaultUserLimit, maxUserLimit)
	items, total, err := s.repo.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return types.Page[types.User]{}, err
	}
	return types.Page[types.User]{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// Create adds an account on behalf of actorID. A nil actor (used when
// bootstrapping the first admin) leaves no activity entry.
func (s *UserService) Create(ctx context.Context, actorID uuid.UUID, in CreateUserInput) (types.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Role = strings.TrimSpace(in.Role)
	if err := in.Validate(); err != nil {
		return types.User{}, invalid("Invalid account data", err)
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, conflict("User already registered", nil)
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check email: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Name:         in.Name,
		Email:        in.Email,
		Role:         in.Role,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, conflict("User already registered", err)
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	s.activity.Record(ctx, Activity{
		Type:    types.LogTypeAdmin,
		UserID:  actorID,
		Message: fmt.Sprintf("Created account %s", user.Email),
		Metadata: map[string]any{
			"accountId": user.ID,
			"email":     user.Email,
			"role":      user.Role,
		},
	})
	return user, nil
}

// Update applies a partial update to the account id on behalf of actor.
func (s *UserService) Update(ctx context.Context, actor types.User, id uuid.UUID, in UpdateUserInput) (types.User, error) {
	if in.empty() {
		return types.User{}, invalid("No fields provided for update", nil)
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		in.Email = &email
	}
	if in.Role != nil {
		role := strings.TrimSpace(*in.Role)
		in.Role = &role
	}
	if err := in.Validate(); err != nil {
		return types.User{}, invalid("Invalid account data", err)
	}

	target, err := s.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if err := authorizeUserUpdate(actor, target); err != nil {
		return types.User{}, err
	}

	if in.Role != nil && target.IsAdmin() && *in.Role != types.RoleAdmin {
		admins, err := s.repo.CountByRole(ctx, types.RoleAdmin)
		if err != nil {
			return types.User{}, fmt.Errorf("count admins: %w", err)
		}
		if admins <= 1 {
			return types.User{}, invalid("Cannot demote the last admin account", nil)
		}
	}

	if in.Email != nil && *in.Email != target.Email {
		if existing, err := s.repo.GetByEmail(ctx, *in.Email); err == nil && existing.ID != target.ID {
			return types.User{}, conflict("Email already in use", nil)
		} else if err != nil && !errors.Is(err, store.ErrNotFound) {
			return types.User{}, fmt.Errorf("check email: %w", err)
		}
		target.Email = *in.Email
	}
	if in.Name != nil {
		target.Name = *in.Name
	}
	if in.Role != nil {
		target.Role = *in.Role
	}
	if in.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.hashCost)
		if err != nil {
			return types.User{}, fmt.Errorf("hash password: %w", err)
		}
		target.PasswordHash = string(hashed)
	}

	updated, err := s.repo.Update(ctx, target)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return types.User{}, notFound("User not found", err)
		case errors.Is(err, store.ErrConflict):
			return types.User{}, conflict("Email already in use", err)
		}
		return types.User{}, fmt.Errorf("update user: %w", err)
	}

	s.activity.Record(ctx, Activity{
		Type:    types.LogTypeAdmin,
		UserID:  actor.ID,
		Message: fmt.Sprintf("Updated account %s", updated.Email),
		Metadata: map[string]any{
			"accountId": updated.ID,
			"fields":    in.fields(),
		},
	})
	return updated, nil
}

// Delete removes the account id on behalf of actor.
func (s *UserService) Delete(ctx context.Context, actor types.User, id uuid.UUID) (types.User, error) {
	if id == actor.ID {
		return types.User{}, invalid("You cannot delete your own account", nil)
	}

	target, err := s.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if err := authorizeUserDelete(actor, target); err != nil {
		return types.User{}, err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, notFound("User not found", err)
		}
		return types.User{}, fmt.Errorf("delete user: %w", err)
	}

	s.activity.Record(ctx, Activity{
		Type:    types.LogTypeAdmin,
		UserID:  actor.ID,
		Message: fmt.Sprintf("Deleted account %s", target.Email),
		Metadata: map[string]any{
			"accountId": target.ID,
			"email":     target.Email,
			"role":      target.Role,
		},
	})
	return target, nil
}

func (s *UserService) unknownUserHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.hashCost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
