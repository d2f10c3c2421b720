package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/programhub/apiserver/internal/services"
	"github.com/programhub/apiserver/internal/testutil"
	"github.com/programhub/apiserver/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	users     *testutil.UserStore
	programs  *testutil.ProgramStore
	logs      *testutil.UpdateLogStore
	cache     *testutil.ProgramCache
	snapshots *testutil.Snapshots
	publisher *testutil.Publisher

	activity   *services.ActivityService
	userSvc    *services.UserService
	programSvc *services.ProgramService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:     testutil.NewUserStore(),
		programs:  testutil.NewProgramStore(),
		cache:     &testutil.ProgramCache{},
		snapshots: &testutil.Snapshots{},
		publisher: &testutil.Publisher{},
	}
	f.logs = testutil.NewUpdateLogStore(f.users)
	logger := testutil.TestLogger()
	f.activity = services.NewActivityService(f.logs, f.publisher, logger)
	f.userSvc = services.NewUserService(f.users, f.activity).WithHashCost(bcrypt.MinCost)
	f.programSvc = services.NewProgramService(f.programs, f.activity, f.cache, f.snapshots, logger)
	return f
}

func (f *fixture) seedUser(t *testing.T, name, email, role string) types.User {
	t.Helper()
	user, err := f.userSvc.Create(context.Background(), uuid.Nil, services.CreateUserInput{
		Name:     name,
		Email:    email,
		Password: "password123",
		Role:     role,
	})
	require.NoError(t, err)
	return user
}

func ptr[T any](v T) *T { return &v }

func programInput(slug string) services.ProgramInput {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return services.ProgramInput{
		Slug: ptr(slug),
		Program: &types.ProgramInfo{
			Name:       "Digital Talent",
			NameSuffix: "Scholarship",
			ShortName:  "DTS",
			Batch:      3,
			BatchName:  "Batch III",
			Organizer:  "Ministry of Communication",
		},
		Schedule: &types.Schedule{
			ApplicationDeadline: start.AddDate(0, 0, -14),
			StartDate:           start,
			EndDate:             start.AddDate(0, 2, 0),
			TrainingDays:        "Monday - Friday",
			TrainingHours:       "08:00 - 16:00",
		},
		Location: &types.Location{
			Venue:         "Training Center",
			City:          "Bandung",
			FullAddress:   "Jl. Asia Afrika 1",
			GoogleMapsURL: "https://maps.example.com/tc",
			Country:       "Indonesia",
		},
	}
}

func requireKind(t *testing.T, err error, kind services.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, services.KindOf(err), "unexpected error: %v", err)
}
