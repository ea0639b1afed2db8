package settlement

import (
	"fmt"
	"testing"
	"time"

	"creatorhub-settlement/pkg/config"
	"creatorhub-settlement/pkg/region"
	"creatorhub-settlement/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var storeModels = []any{
	&Submission{},
	&Campaign{},
	&CreatorAccount{},
	&PointTransaction{},
	&Application{},
	&ExecutionLease{},
}

func newStore(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.NewTestDB(t, storeModels...)
}

func newNamedStore(t *testing.T, name string) *gorm.DB {
	t.Helper()
	return testutil.NewNamedTestDB(t, name, storeModels...)
}

func newNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Settlement.GraceWindow = 5 * 24 * time.Hour
	cfg.Settlement.DuplicateWindow = 10 * time.Minute
	cfg.Settlement.PageSize = 50
	return cfg
}

func approvedDaysAgo(days int) *time.Time {
	ts := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	return &ts
}

func seedCampaign(t *testing.T, db *gorm.DB, id, campaignType string, reward int64) *Campaign {
	t.Helper()
	c := &Campaign{ID: id, Title: "Campaign " + id, Type: campaignType, RewardAmount: reward}
	require.NoError(t, db.Create(c).Error)
	return c
}

func seedAccount(t *testing.T, db *gorm.DB, id string, balance int64) *CreatorAccount {
	t.Helper()
	a := &CreatorAccount{ID: id, Name: "Creator " + id, Email: id + "@example.com", Balance: balance}
	require.NoError(t, db.Create(a).Error)
	return a
}

func seedSubmission(t *testing.T, db *gorm.DB, id, campaignID, creatorID string, approvedAt *time.Time) *Submission {
	t.Helper()
	s := &Submission{
		ID:         id,
		CampaignID: campaignID,
		CreatorID:  creatorID,
		Status:     SubmissionApproved,
		ApprovedAt: approvedAt,
	}
	require.NoError(t, db.Create(s).Error)
	return s
}

func seedSettledSubmission(t *testing.T, db *gorm.DB, id, campaignID, creatorID string, approvedAt *time.Time) *Submission {
	t.Helper()
	settled := time.Now().UTC()
	s := &Submission{
		ID:          id,
		CampaignID:  campaignID,
		CreatorID:   creatorID,
		Status:      SubmissionCompleted,
		ApprovedAt:  approvedAt,
		SettledAt:   &settled,
		AutoSettled: true,
	}
	require.NoError(t, db.Create(s).Error)
	return s
}

func countCompletionRewards(t *testing.T, db *gorm.DB, creatorID, campaignID string) int64 {
	t.Helper()
	var n int64
	err := db.Model(&PointTransaction{}).
		Where("creator_id = ? AND campaign_id = ? AND type = ?", creatorID, campaignID, TransactionCompletionReward).
		Count(&n).Error
	require.NoError(t, err)
	return n
}

type stubEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (s *stubEnqueuer) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(s.tasks))}, nil
}

func (s *stubEnqueuer) byType(taskType string) []*asynq.Task {
	var out []*asynq.Task
	for _, task := range s.tasks {
		if task.Type() == taskType {
			out = append(out, task)
		}
	}
	return out
}

func newTestService(t *testing.T, cfg *config.Config, home *gorm.DB, stores map[string]*gorm.DB) (*Service, *stubEnqueuer) {
	t.Helper()
	enqueuer := &stubEnqueuer{}
	svc := NewService(Params{
		Cfg:       cfg,
		Registry:  region.NewStatic(home, stores),
		Node:      newNode(t),
		Publisher: NewPublisher(enqueuer),
	})
	return svc, enqueuer
}
