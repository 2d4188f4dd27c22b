package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	testutil "github.com/feelize/platform/internal/database/testutil"
	"github.com/feelize/platform/internal/identity"
	"github.com/feelize/platform/internal/models"
	"github.com/feelize/platform/internal/services"
)

func TestRunOncePurgesExpiredState(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	issuedAt := time.Date(2024, 2, 10, 15, 0, 0, 0, time.UTC)
	now := issuedAt.Add(time.Hour)

	directory, err := services.NewUserDirectory(db,
		services.WithDirectoryClock(func() time.Time { return issuedAt }),
	)
	require.NoError(t, err)
	_, user, err := directory.IssuePasscode(context.Background(), "client@example.com")
	require.NoError(t, err)

	store, err := identity.NewGormRevocationStore(db)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Revoke(ctx, "old", now.Add(-30*24*time.Hour)))
	require.NoError(t, store.Revoke(ctx, "recent", now.Add(-time.Hour)))

	cleaner := NewCleaner(directory, store,
		WithNow(func() time.Time { return now }),
		WithRevocationRetention(14*24*time.Hour),
	)
	require.NoError(t, cleaner.RunOnce(ctx))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", user.ID).Error)
	require.Empty(t, reloaded.PasscodeHash)
	require.Nil(t, reloaded.PasscodeExpiresAt)

	_, ok, err := store.ValidAfter(ctx, "old")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = store.ValidAfter(ctx, "recent")
	require.NoError(t, err)
	require.True(t, ok)
}

type failingPurger struct{ err error }

func (f failingPurger) PurgeExpiredPasscodes(context.Context, time.Time) (int64, error) {
	return 0, f.err
}

func (f failingPurger) PurgeBefore(context.Context, time.Time) (int64, error) {
	return 0, f.err
}

func TestRunOnceAggregatesErrors(t *testing.T) {
	first := errors.New("passcodes down")
	second := errors.New("revocations down")

	cleaner := NewCleaner(failingPurger{err: first}, failingPurger{err: second})
	err := cleaner.RunOnce(context.Background())
	require.ErrorIs(t, err, first)
	require.ErrorIs(t, err, second)
}

func TestStartRegistersJobs(t *testing.T) {
	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))
	cleaner := NewCleaner(failingPurger{}, failingPurger{},
		WithCron(scheduler),
		WithPasscodeSchedule("@every 1h"),
	)

	require.NoError(t, cleaner.Start())
	t.Cleanup(func() { <-cleaner.Stop().Done() })
	require.Len(t, scheduler.Entries(), 2)
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	cleaner := NewCleaner(failingPurger{}, nil, WithPasscodeSchedule("not a schedule"))
	require.Error(t, cleaner.Start())
}

func TestStartWithoutJobsIsNoop(t *testing.T) {
	scheduler := cron.New()
	cleaner := NewCleaner(nil, nil, WithCron(scheduler))
	require.NoError(t, cleaner.Start())
	require.Empty(t, scheduler.Entries())
}
