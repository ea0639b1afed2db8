package settlement

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// JobAutoSettlement is the lease row key for the daily settlement run.
const JobAutoSettlement = "auto_settlement"

// Guard serializes job runs across processes with a lease row on the
// home store. Acquisition is a conditional UPDATE on expires_at, so two
// racing processes cannot both win: the loser sees RowsAffected == 0.
type Guard struct {
	db     *gorm.DB
	window time.Duration
	owner  string
}

func NewGuard(db *gorm.DB, window time.Duration) *Guard {
	if window <= 0 {
		window = 10 * time.Minute
	}
	host, _ := os.Hostname()
	return &Guard{
		db:     db,
		window: window,
		owner:  fmt.Sprintf("%s-%d", host, os.Getpid()),
	}
}

// Acquire takes the lease for jobName or returns ErrDuplicateRun when a
// live lease exists. The lease expires on its own after the window, so a
// crashed holder never blocks the next day's run.
func (g *Guard) Acquire(ctx context.Context, jobName string) error {
	now := time.Now().UTC()
	expires := now.Add(g.window)

	res := g.db.WithContext(ctx).
		Model(&ExecutionLease{}).
		Where("job_name = ? AND expires_at <= ?", jobName, now).
		Updates(map[string]interface{}{
			"owner_id":    g.owner,
			"acquired_at": now,
			"expires_at":  expires,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// No expired row to claim: either the row is missing (first run ever)
	// or a live lease is held. Creating the row resolves which.
	lease := ExecutionLease{
		JobName:    jobName,
		OwnerID:    g.owner,
		AcquiredAt: now,
		ExpiresAt:  expires,
	}
	if err := g.db.WithContext(ctx).Create(&lease).Error; err != nil {
		// A lost insert race leaves a live lease behind; anything else is
		// a store failure and must not look like a benign skip.
		var held ExecutionLease
		if getErr := g.db.WithContext(ctx).Where("job_name = ?", jobName).First(&held).Error; getErr == nil && held.ExpiresAt.After(now) {
			zap.L().Info("[Guard] lease held by another run",
				zap.String("job", jobName),
				zap.String("holder", held.OwnerID))
			return ErrDuplicateRun
		}
		return err
	}
	return nil
}

// Release lets the next run start before the window expires. Failing to
// release is harmless; the lease times out on its own.
func (g *Guard) Release(ctx context.Context, jobName string) {
	err := g.db.WithContext(ctx).
		Model(&ExecutionLease{}).
		Where("job_name = ? AND owner_id = ?", jobName, g.owner).
		Update("expires_at", time.Now().UTC()).Error
	if err != nil {
		zap.L().Warn("[Guard] failed to release lease",
			zap.String("job", jobName), zap.Error(err))
	}
}
