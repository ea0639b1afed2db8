package settlement

import (
	"context"
	"testing"
	"time"

	"creatorhub-settlement/services/testutil"

	"github.com/stretchr/testify/require"
)

func TestGuardAcquireBlocksDuplicate(t *testing.T) {
	db := testutil.NewTestDB(t, &ExecutionLease{})
	ctx := context.Background()

	g := NewGuard(db, 10*time.Minute)
	require.NoError(t, g.Acquire(ctx, JobAutoSettlement))

	require.ErrorIs(t, g.Acquire(ctx, JobAutoSettlement), ErrDuplicateRun)
}

func TestGuardAcquireClaimsExpiredLease(t *testing.T) {
	db := testutil.NewTestDB(t, &ExecutionLease{})
	ctx := context.Background()

	stale := ExecutionLease{
		JobName:    JobAutoSettlement,
		OwnerID:    "previous-run",
		AcquiredAt: time.Now().UTC().Add(-time.Hour),
		ExpiresAt:  time.Now().UTC().Add(-50 * time.Minute),
	}
	require.NoError(t, db.Create(&stale).Error)

	g := NewGuard(db, 10*time.Minute)
	require.NoError(t, g.Acquire(ctx, JobAutoSettlement))

	var lease ExecutionLease
	require.NoError(t, db.Where("job_name = ?", JobAutoSettlement).First(&lease).Error)
	require.NotEqual(t, "previous-run", lease.OwnerID)
	require.True(t, lease.ExpiresAt.After(time.Now().UTC()))
}

func TestGuardReleaseAllowsNextRun(t *testing.T) {
	db := testutil.NewTestDB(t, &ExecutionLease{})
	ctx := context.Background()

	g := NewGuard(db, 10*time.Minute)
	require.NoError(t, g.Acquire(ctx, JobAutoSettlement))

	g.Release(ctx, JobAutoSettlement)

	require.NoError(t, g.Acquire(ctx, JobAutoSettlement))
}

func TestGuardStoreFailureIsNotDuplicate(t *testing.T) {
	db := testutil.NewTestDB(t) // lease table never migrated
	ctx := context.Background()

	g := NewGuard(db, 10*time.Minute)
	err := g.Acquire(ctx, JobAutoSettlement)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDuplicateRun)
}

func TestGuardInsertRaceStillReportsDuplicate(t *testing.T) {
	db := testutil.NewTestDB(t, &ExecutionLease{})
	ctx := context.Background()

	// A live lease held by another owner: the CAS update matches nothing
	// and the insert collides, which must read as a duplicate, not a
	// store failure.
	live := ExecutionLease{
		JobName:    JobAutoSettlement,
		OwnerID:    "other-node",
		AcquiredAt: time.Now().UTC(),
		ExpiresAt:  time.Now().UTC().Add(5 * time.Minute),
	}
	require.NoError(t, db.Create(&live).Error)

	g := NewGuard(db, 10*time.Minute)
	require.ErrorIs(t, g.Acquire(ctx, JobAutoSettlement), ErrDuplicateRun)

	var lease ExecutionLease
	require.NoError(t, db.Where("job_name = ?", JobAutoSettlement).First(&lease).Error)
	require.Equal(t, "other-node", lease.OwnerID)
}

func TestGuardSeparateJobsDoNotContend(t *testing.T) {
	db := testutil.NewTestDB(t, &ExecutionLease{})
	ctx := context.Background()

	g := NewGuard(db, 10*time.Minute)
	require.NoError(t, g.Acquire(ctx, "job_a"))
	require.NoError(t, g.Acquire(ctx, "job_b"))
}
