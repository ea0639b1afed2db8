package settlement

import (
	"time"

	"creatorhub-settlement/services/policy"

	"gorm.io/datatypes"
)

type SubmissionStatus string

const (
	SubmissionApproved  SubmissionStatus = "approved"
	SubmissionCompleted SubmissionStatus = "completed"
)

// Submission is one unit of creator-produced work tied to a campaign.
// This engine owns only the settlement fields (Status transition to
// completed, SettledAt, AutoSettled); everything else is written by the
// upstream approval flow. SettledAt is set at most once.
type Submission struct {
	ID            string           `gorm:"column:id;primaryKey"`
	CampaignID    string           `gorm:"column:campaign_id;index;not null"`
	CreatorID     string           `gorm:"column:creator_id;index;not null"`
	ApplicationID string           `gorm:"column:application_id;index"`
	Status        SubmissionStatus `gorm:"column:status;type:varchar(20);index;not null"`
	UnitNumber    int              `gorm:"column:unit_number"`
	WeekNumber    int              `gorm:"column:week_number"`
	MediaURL      string           `gorm:"column:media_url"`
	ApprovedAt    *time.Time       `gorm:"column:approved_at;index"`
	SettledAt     *time.Time       `gorm:"column:settled_at;index"`
	AutoSettled   bool             `gorm:"column:auto_settled"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Submission) TableName() string { return "video_submissions" }

// Settled reports whether the submission already went through settlement.
func (s *Submission) Settled() bool {
	return s.SettledAt != nil || s.Status == SubmissionCompleted
}

// Campaign holds the fields settlement cares about. Policy resolution is
// a pure function of Type plus the override fields; see services/policy.
type Campaign struct {
	ID                    string    `gorm:"column:id;primaryKey"`
	Title                 string    `gorm:"column:title"`
	Type                  string    `gorm:"column:campaign_type;type:varchar(40);index"`
	RequiredUnits         int       `gorm:"column:required_units"`
	RewardAmount          int64     `gorm:"column:reward_amount"`
	CreatorRewardOverride int64     `gorm:"column:creator_reward_override"`
	Region                string    `gorm:"column:region"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Campaign) TableName() string { return "campaigns" }

// PolicyInput projects the campaign onto the policy resolver's input.
func (c *Campaign) PolicyInput() policy.Input {
	return policy.Input{
		Type:                  c.Type,
		RequiredUnits:         c.RequiredUnits,
		RewardAmount:          c.RewardAmount,
		CreatorRewardOverride: c.CreatorRewardOverride,
	}
}

// CreatorAccount is the per-region ledger account. Balance changes only
// together with an appended PointTransaction, never by itself.
type CreatorAccount struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Name        string    `gorm:"column:name"`
	ChannelName string    `gorm:"column:channel_name"`
	Email       string    `gorm:"column:email"`
	Phone       string    `gorm:"column:phone"`
	Balance     int64     `gorm:"column:balance;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CreatorAccount) TableName() string { return "creator_accounts" }

// DisplayName prefers the public channel name for notifications.
func (a *CreatorAccount) DisplayName() string {
	if a.ChannelName != "" {
		return a.ChannelName
	}
	return a.Name
}

type TransactionType string

const (
	// TransactionCompletionReward is the settlement credit. At most one
	// exists per (creator, campaign) pair; CreditReward enforces this.
	TransactionCompletionReward TransactionType = "completion_reward"
)

// PointTransaction is the append-only record of a balance change.
// BalanceAfter is recorded at write time, never recomputed.
type PointTransaction struct {
	ID           string          `gorm:"column:id;primaryKey"`
	CreatorID    string          `gorm:"column:creator_id;index;not null"`
	CampaignID   string          `gorm:"column:campaign_id;index"`
	Amount       int64           `gorm:"column:amount;not null"`
	Type         TransactionType `gorm:"column:type;type:varchar(30);not null"`
	Reason       string          `gorm:"column:reason;type:text"`
	BalanceAfter int64           `gorm:"column:balance_after;not null"`
	Metadata     datatypes.JSON  `gorm:"column:metadata"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (PointTransaction) TableName() string { return "point_transactions" }

type ApplicationStatus string

const (
	ApplicationActive    ApplicationStatus = "active"
	ApplicationCompleted ApplicationStatus = "completed"
)

// Application is the downstream record a settled submission originated
// from; settlement marks it completed best-effort.
type Application struct {
	ID         string            `gorm:"column:id;primaryKey"`
	CreatorID  string            `gorm:"column:creator_id;index"`
	CampaignID string            `gorm:"column:campaign_id;index"`
	Status     ApplicationStatus `gorm:"column:status;type:varchar(20);index"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Application) TableName() string { return "applications" }

// ExecutionLease is the single-row-per-job guard record on the home
// store. Acquisition is a compare-and-swap on ExpiresAt, not a
// read-then-write of a bare timestamp.
type ExecutionLease struct {
	JobName    string    `gorm:"column:job_name;primaryKey"`
	OwnerID    string    `gorm:"column:owner_id;not null"`
	AcquiredAt time.Time `gorm:"column:acquired_at"`
	ExpiresAt  time.Time `gorm:"column:expires_at;index"`
}

func (ExecutionLease) TableName() string { return "execution_leases" }
