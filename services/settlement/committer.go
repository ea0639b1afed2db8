package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Committer applies one settlement decision to a region store. Marker and
// ledger writes share a single transaction: a failed credit rolls the
// settlement marker back so the next run retries the pair, except when
// the creator simply has no account, in which case the marker stands and
// the auditor reports the unpaid gap.
type Committer struct {
	db     *gorm.DB
	node   *snowflake.Node
	region string
}

func NewCommitter(db *gorm.DB, node *snowflake.Node, region string) *Committer {
	return &Committer{db: db, node: node, region: region}
}

type CommitResult struct {
	// Settled counts submissions whose marker this commit actually set.
	Settled int
	// AlreadyHandled means every submission in the batch was settled by a
	// concurrent or earlier run; nothing was written.
	AlreadyHandled bool
	// Credited is false when the ledger write was skipped, either because
	// a completion reward already exists or the account is missing.
	Credited      bool
	CreditSkipped bool
	Amount        int64
	NewBalance    int64
	Account       *CreatorAccount
}

// Commit marks every submission in the batch settled and credits the
// completion reward once. The per-row settled_at IS NULL guard makes the
// marker a write-once gate even under concurrent runs.
func (c *Committer) Commit(ctx context.Context, batch []Submission, campaign *Campaign, amount int64) (*CommitResult, error) {
	if len(batch) == 0 {
		return &CommitResult{AlreadyHandled: true}, nil
	}

	res := &CommitResult{Amount: amount}
	creatorID := batch[0].CreatorID

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for i := range batch {
			r := tx.Model(&Submission{}).
				Where("id = ? AND settled_at IS NULL", batch[i].ID).
				Updates(map[string]interface{}{
					"status":       SubmissionCompleted,
					"settled_at":   now,
					"auto_settled": true,
				})
			if r.Error != nil {
				return r.Error
			}
			res.Settled += int(r.RowsAffected)
		}

		if res.Settled == 0 {
			res.AlreadyHandled = true
			return nil
		}

		out, err := CreditReward(ctx, tx, c.node, CreditInput{
			CreatorID:  creatorID,
			CampaignID: campaign.ID,
			Amount:     amount,
			Reason:     fmt.Sprintf("completion reward: %s", campaign.Title),
			Metadata: map[string]interface{}{
				"region":         c.region,
				"campaign_id":    campaign.ID,
				"campaign_type":  campaign.Type,
				"settled_units":  res.Settled,
				"auto_settled":   true,
				"submission_ids": submissionIDs(batch),
			},
		})
		if errors.Is(err, ErrAccountMissing) {
			// The settle marker stands; the reconciliation auditor surfaces
			// the unpaid pair.
			res.CreditSkipped = true
			zap.L().Warn("[Settlement] creator account missing, settled without credit",
				zap.String("region", c.region),
				zap.String("creator_id", creatorID),
				zap.String("campaign_id", campaign.ID))
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrLedgerWriteFailed, err)
		}

		res.Credited = out.Credited
		res.CreditSkipped = !out.Credited
		res.NewBalance = out.NewBalance
		res.Account = out.Account
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Settled > 0 {
		c.completeApplications(ctx, batch)
	}
	return res, nil
}

// completeApplications marks the source applications completed. Best
// effort: a failure here never unwinds a committed settlement.
func (c *Committer) completeApplications(ctx context.Context, batch []Submission) {
	ids := make([]string, 0, len(batch))
	for _, sub := range batch {
		if sub.ApplicationID != "" {
			ids = append(ids, sub.ApplicationID)
		}
	}
	if len(ids) == 0 {
		return
	}

	err := c.db.WithContext(ctx).Model(&Application{}).
		Where("id IN ?", ids).
		Update("status", ApplicationCompleted).Error
	if err != nil {
		zap.L().Warn("[Settlement] failed to complete applications",
			zap.String("region", c.region),
			zap.Strings("application_ids", ids),
			zap.Error(err))
	}
}

func submissionIDs(batch []Submission) []string {
	ids := make([]string, len(batch))
	for i, sub := range batch {
		ids[i] = sub.ID
	}
	return ids
}

type CreditInput struct {
	CreatorID  string
	CampaignID string
	Amount     int64
	Reason     string
	Metadata   map[string]interface{}
}

type CreditOutcome struct {
	// Credited is false when a completion reward for the pair already
	// exists; the call is then a no-op.
	Credited      bool
	NewBalance    int64
	TransactionID string
	Account       *CreatorAccount
}

// CreditReward appends exactly one completion-reward transaction for the
// (creator, campaign) pair and moves the balance with it. Idempotent on
// the pair: a second call finds the existing transaction and writes
// nothing. A credit without a campaign is a free-standing adjustment and
// skips the pair gate. Shared by auto settlement and manual remediation
// so both paths carry identical ledger semantics. db may be a
// transaction.
func CreditReward(ctx context.Context, db *gorm.DB, node *snowflake.Node, in CreditInput) (*CreditOutcome, error) {
	var existing int64
	if in.CampaignID != "" {
		err := db.WithContext(ctx).Model(&PointTransaction{}).
			Where("creator_id = ? AND campaign_id = ? AND type = ?",
				in.CreatorID, in.CampaignID, TransactionCompletionReward).
			Count(&existing).Error
		if err != nil {
			return nil, err
		}
	}

	var account CreatorAccount
	err := db.WithContext(ctx).Where("id = ?", in.CreatorID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountMissing, in.CreatorID)
	}
	if err != nil {
		return nil, err
	}

	if existing > 0 {
		return &CreditOutcome{Credited: false, NewBalance: account.Balance, Account: &account}, nil
	}

	err = db.WithContext(ctx).Model(&CreatorAccount{}).
		Where("id = ?", in.CreatorID).
		Update("balance", gorm.Expr("balance + ?", in.Amount)).Error
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Where("id = ?", in.CreatorID).First(&account).Error; err != nil {
		return nil, err
	}

	var meta datatypes.JSON
	if in.Metadata != nil {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, err
		}
		meta = datatypes.JSON(raw)
	}

	txn := PointTransaction{
		ID:           node.Generate().String(),
		CreatorID:    in.CreatorID,
		CampaignID:   in.CampaignID,
		Amount:       in.Amount,
		Type:         TransactionCompletionReward,
		Reason:       in.Reason,
		BalanceAfter: account.Balance,
		Metadata:     meta,
	}
	if err := db.WithContext(ctx).Create(&txn).Error; err != nil {
		return nil, err
	}

	return &CreditOutcome{
		Credited:      true,
		NewBalance:    account.Balance,
		TransactionID: txn.ID,
		Account:       &account,
	}, nil
}
