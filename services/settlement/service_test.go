package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"creatorhub-settlement/services/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRunSettlesSingleUnitCampaign(t *testing.T) {
	home := newNamedStore(t, "home")
	store := newNamedStore(t, "korea")
	ctx := context.Background()

	seedCampaign(t, store, "camp-1", "brand_review", 10000)
	seedAccount(t, store, "creator-1", 0)
	seedSubmission(t, store, "sub-1", "camp-1", "creator-1", approvedDaysAgo(6))

	svc, enqueuer := newTestService(t, testConfig(), home, map[string]*gorm.DB{"korea": store})
	res, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	require.Equal(t, 0, res.Errors)
	require.False(t, res.Skipped)

	require.Equal(t, int64(1), countCompletionRewards(t, store, "creator-1", "camp-1"))

	notices := enqueuer.byType(TypeSettlementNotify)
	require.Len(t, notices, 1)
	var payload SettlementNotifyPayload
	require.NoError(t, json.Unmarshal(notices[0].Payload(), &payload))
	require.Equal(t, "korea", payload.Region)
	require.Equal(t, int64(10000), payload.Amount)
	require.Equal(t, int64(10000), payload.NewBalance)

	require.Len(t, enqueuer.byType(TypeRunDigest), 1)
}

func TestRunRespectsGraceWindow(t *testing.T) {
	home := newNamedStore(t, "home")
	store := newNamedStore(t, "korea")

	seedCampaign(t, store, "camp-1", "brand_review", 10000)
	seedAccount(t, store, "creator-1", 0)
	seedSubmission(t, store, "sub-1", "camp-1", "creator-1", approvedDaysAgo(2))

	svc, _ := newTestService(t, testConfig(), home, map[string]*gorm.DB{"korea": store})
	res, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, res.Processed)
	require.Equal(t, 0, res.Errors)
}

func TestRunIdempotentAcrossRuns(t *testing.T) {
	home := newNamedStore(t, "home")
	store := newNamedStore(t, "korea")
	ctx := context.Background()

	seedCampaign(t, store, "camp-1", "brand_review", 10000)
	seedAccount(t, store, "creator-1", 0)
	seedSubmission(t, store, "sub-1", "camp-1", "creator-1", approvedDaysAgo(6))

	cfg := testConfig()
	cfg.Settlement.DuplicateWindow = time.Nanosecond // let consecutive runs through

	svc, _ := newTestService(t, cfg, home, map[string]*gorm.DB{"korea": store})

	res, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)

	res, err = svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, res.Processed)
	require.Equal(t, 0, res.Errors)

	require.Equal(t, int64(1), countCompletionRewards(t, store, "creator-1", "camp-1"))

	var account CreatorAccount
	require.NoError(t, store.Where("id = ?", "creator-1").First(&account).Error)
	require.Equal(t, int64(10000), account.Balance)
}

func TestRunDuplicateSuppressedByGuard(t *testing.T) {
	home := newNamedStore(t, "home")
	store := newNamedStore(t, "korea")
	ctx := context.Background()

	seedCampaign(t, store, "camp-1", "brand_review", 10000)
	seedAccount(t, store, "creator-1", 0)
	seedSubmission(t, store, "sub-1", "camp-1", "creator-1", approvedDaysAgo(6))

	svc, _ := newTestService(t, testConfig(), home, map[string]*gorm.DB{"korea": store})

	res, err := svc.Run(ctx)
	require.NoError(t, err)
	require.False(t, res.Skipped)

	res, err = svc.Run(ctx)
	require.NoError(t, err)
	require.True(t, res.Skipped)
	require.Equal(t, 0, res.Processed)
}

func TestRunFourWeekChallengeThreshold(t *testing.T) {
	home := newNamedStore(t, "home")
	store := newNamedStore(t, "korea")
	ctx := context.Background()

	seedCampaign(t, store, "camp-1", "four_week_challenge", 40000)
	seedAccount(t, store, "creator-1", 0)
	for i := 1; i <= 3; i++ {
		seedSubmission(t, store, fmt.Sprintf("sub-%d", i), "camp-1", "creator-1", approvedDaysAgo(10+i))
	}

	cfg := testConfig()
	cfg.Settlement.DuplicateWindow = time.Nanosecond

	svc, _ := newTestService(t, cfg, home, map[string]*gorm.DB{"korea": store})

	// Three of four units: nothing settles yet.
	res, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, res.Processed)
	require.Equal(t, int64(0), countCompletionRewards(t, store, "creator-1", "camp-1"))

	// The fourth unit completes the challenge; all four settle together
	// with a single reward.
	seedSubmission(t, store, "sub-4", "camp-1", "creator-1", approvedDaysAgo(6))
	res, err = svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, res.Processed)
	require.Equal(t, int64(1), countCompletionRewards(t, store, "creator-1", "camp-1"))
}

func TestRunCampaignNotFoundIsIsolated(t *testing.T) {
	home := newNamedStore(t, "home")
	store := newNamedStore(t, "korea")
	ctx := context.Background()

	seedAccount(t, store, "creator-1", 0)
	seedSubmission(t, store, "sub-orphan", "camp-ghost", "creator-1", approvedDaysAgo(6))

	seedCampaign(t, store, "camp-1", "brand_review", 5000)
	seedSubmission(t, store, "sub-1", "camp-1", "creator-1", approvedDaysAgo(6))

	svc, _ := newTestService(t, testConfig(), home, map[string]*gorm.DB{"korea": store})
	res, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	require.Equal(t, 1, res.Errors)

	var orphan Submission
	require.NoError(t, store.Where("id = ?", "sub-orphan").First(&orphan).Error)
	require.Nil(t, orphan.SettledAt)
}

func TestRunFallsBackToHomeStoreCampaign(t *testing.T) {
	home := newNamedStore(t, "home")
	store := newNamedStore(t, "korea")
	ctx := context.Background()

	// Campaign metadata lives only in the shared home store.
	seedCampaign(t, home, "camp-biz", "brand_review", 8000)
	seedAccount(t, store, "creator-1", 0)
	seedSubmission(t, store, "sub-1", "camp-biz", "creator-1", approvedDaysAgo(6))

	svc, _ := newTestService(t, testConfig(), home, map[string]*gorm.DB{"korea": store})
	res, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	require.Equal(t, 0, res.Errors)
	require.Equal(t, int64(1), countCompletionRewards(t, store, "creator-1", "camp-biz"))
}

func TestRunRegionFailureIsIsolated(t *testing.T) {
	home := newNamedStore(t, "home")
	good := newNamedStore(t, "korea")
	broken := testutil.NewNamedTestDB(t, "japan") // no tables migrated
	ctx := context.Background()

	seedCampaign(t, good, "camp-1", "brand_review", 10000)
	seedAccount(t, good, "creator-1", 0)
	seedSubmission(t, good, "sub-1", "camp-1", "creator-1", approvedDaysAgo(6))

	svc, _ := newTestService(t, testConfig(), home, map[string]*gorm.DB{
		"korea": good,
		"japan": broken,
	})
	res, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	require.GreaterOrEqual(t, res.Errors, 1)
}

func TestRunProcessesMultipleRegions(t *testing.T) {
	home := newNamedStore(t, "home")
	korea := newNamedStore(t, "korea")
	japan := newNamedStore(t, "japan")
	ctx := context.Background()

	for name, store := range map[string]*gorm.DB{"korea": korea, "japan": japan} {
		seedCampaign(t, store, "camp-"+name, "brand_review", 10000)
		seedAccount(t, store, "creator-"+name, 0)
		seedSubmission(t, store, "sub-"+name, "camp-"+name, "creator-"+name, approvedDaysAgo(6))
	}

	svc, _ := newTestService(t, testConfig(), home, map[string]*gorm.DB{
		"korea": korea,
		"japan": japan,
	})
	res, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, res.Processed)
	require.Equal(t, 0, res.Errors)
	require.Equal(t, []string{"japan", "korea"}, res.Regions)
}
