package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/programhub/apiserver/internal/services"
	"github.com/programhub/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_CreateAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, "Root", "root@example.com", types.RoleAdmin)

	user, err := f.userSvc.Create(ctx, admin.ID, services.CreateUserInput{
		Name:     "  Mod  ",
		Email:    " Mod@Example.COM ",
		Password: "secret-pass",
		Role:     types.RoleModerator,
	})
	require.NoError(t, err)
	assert.Equal(t, "Mod", user.Name)
	assert.Equal(t, "mod@example.com", user.Email)
	assert.NotEqual(t, "secret-pass", user.PasswordHash)

	got, err := f.userSvc.Authenticate(ctx, "MOD@example.com", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = f.userSvc.Authenticate(ctx, "mod@example.com", "wrong-pass")
	requireKind(t, err, services.KindUnauthenticated)

	_, err = f.userSvc.Authenticate(ctx, "nobody@example.com", "secret-pass")
	requireKind(t, err, services.KindUnauthenticated)

	_, err = f.userSvc.Authenticate(ctx, "", "")
	requireKind(t, err, services.KindValidation)

	entries := f.logs.Entries()
	require.Len(t, entries, 1, "bootstrap create leaves no entry")
	assert.Equal(t, types.LogTypeAdmin, entries[0].Type)
	assert.Equal(t, admin.ID, entries[0].UserID)
}

func TestUserService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "Taken", "taken@example.com", types.RoleModerator)

	tests := []struct {
		name  string
		input services.CreateUserInput
		kind  services.Kind
	}{
		{"missing name", services.CreateUserInput{Email: "a@example.com", Password: "password1", Role: types.RoleAdmin}, services.KindValidation},
		{"bad email", services.CreateUserInput{Name: "A", Email: "not-an-email", Password: "password1", Role: types.RoleAdmin}, services.KindValidation},
		{"short password", services.CreateUserInput{Name: "A", Email: "a@example.com", Password: "short", Role: types.RoleAdmin}, services.KindValidation},
		{"unknown role", services.CreateUserInput{Name: "A", Email: "a@example.com", Password: "password1", Role: "owner"}, services.KindValidation},
		{"duplicate email", services.CreateUserInput{Name: "A", Email: "TAKEN@example.com", Password: "password1", Role: types.RoleAdmin}, services.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.userSvc.Create(ctx, uuid.New(), tt.input)
			requireKind(t, err, tt.kind)
		})
	}
}

func TestUserService_DeletePolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, "Admin", "admin@example.com", types.RoleAdmin)
	other := f.seedUser(t, "Other", "other@example.com", types.RoleAdmin)
	mod := f.seedUser(t, "Mod", "mod@example.com", types.RoleModerator)

	_, err := f.userSvc.Delete(ctx, admin, admin.ID)
	requireKind(t, err, services.KindValidation)
	assert.Contains(t, err.Error(), "You cannot delete your own account")

	_, err = f.userSvc.Delete(ctx, admin, other.ID)
	requireKind(t, err, services.KindForbidden)
	assert.Contains(t, err.Error(), "Cannot delete another admin account")

	_, err = f.userSvc.Delete(ctx, admin, uuid.New())
	requireKind(t, err, services.KindNotFound)

	deleted, err := f.userSvc.Delete(ctx, admin, mod.ID)
	require.NoError(t, err)
	assert.Equal(t, mod.ID, deleted.ID)

	_, err = f.userSvc.GetByID(ctx, mod.ID)
	requireKind(t, err, services.KindNotFound)
}

func TestUserService_UpdatePolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, "Admin", "admin@example.com", types.RoleAdmin)
	mod := f.seedUser(t, "Mod", "mod@example.com", types.RoleModerator)

	t.Run("empty update", func(t *testing.T) {
		_, err := f.userSvc.Update(ctx, admin, mod.ID, services.UpdateUserInput{})
		requireKind(t, err, services.KindValidation)
	})

	t.Run("last admin cannot demote itself", func(t *testing.T) {
		_, err := f.userSvc.Update(ctx, admin, admin.ID, services.UpdateUserInput{Role: ptr(types.RoleModerator)})
		requireKind(t, err, services.KindValidation)
	})

	t.Run("self rename", func(t *testing.T) {
		updated, err := f.userSvc.Update(ctx, admin, admin.ID, services.UpdateUserInput{Name: ptr("Boss")})
		require.NoError(t, err)
		assert.Equal(t, "Boss", updated.Name)
	})

	t.Run("promote moderator then cannot modify", func(t *testing.T) {
		promoted, err := f.userSvc.Update(ctx, admin, mod.ID, services.UpdateUserInput{Role: ptr(types.RoleAdmin)})
		require.NoError(t, err)
		assert.True(t, promoted.IsAdmin())

		_, err = f.userSvc.Update(ctx, admin, mod.ID, services.UpdateUserInput{Name: ptr("Nope")})
		requireKind(t, err, services.KindForbidden)
		assert.Contains(t, err.Error(), "Cannot modify another admin account")
	})

	t.Run("demote self once another admin exists", func(t *testing.T) {
		updated, err := f.userSvc.Update(ctx, admin, admin.ID, services.UpdateUserInput{Role: ptr(types.RoleModerator)})
		require.NoError(t, err)
		assert.Equal(t, types.RoleModerator, updated.Role)
	})
}

func TestUserService_UpdatePasswordAndEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, "Admin", "admin@example.com", types.RoleAdmin)
	mod := f.seedUser(t, "Mod", "mod@example.com", types.RoleModerator)
	f.seedUser(t, "Else", "else@example.com", types.RoleModerator)

	_, err := f.userSvc.Update(ctx, admin, mod.ID, services.UpdateUserInput{Email: ptr("else@example.com")})
	requireKind(t, err, services.KindConflict)

	_, err = f.userSvc.Update(ctx, admin, mod.ID, services.UpdateUserInput{Password: ptr("short")})
	requireKind(t, err, services.KindValidation)

	_, err = f.userSvc.Update(ctx, admin, mod.ID, services.UpdateUserInput{
		Email:    ptr("New@Example.com"),
		Password: ptr("brand-new-pass"),
	})
	require.NoError(t, err)

	got, err := f.userSvc.Authenticate(ctx, "new@example.com", "brand-new-pass")
	require.NoError(t, err)
	assert.Equal(t, mod.ID, got.ID)
}

func TestUserService_ListPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		f.seedUser(t, "User", email, types.RoleModerator)
	}

	page, err := f.userSvc.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages())
	require.Len(t, page.Items, 1)
	assert.Equal(t, "a@example.com", page.Items[0].Email)

	page, err = f.userSvc.List(ctx, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.Limit)
}
