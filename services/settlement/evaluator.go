package settlement

import (
	"context"

	"creatorhub-settlement/services/policy"

	"gorm.io/gorm"
)

type DecisionKind int

const (
	// NotYet: the creator has not reached the required unit count.
	NotYet DecisionKind = iota
	// SettleNow: the threshold is met; Batch holds every unsettled
	// submission of the pair, to be settled together.
	SettleNow
	// AlreadyHandled: the pair was settled earlier in this run or in a
	// previous one; the item is skipped without a write.
	AlreadyHandled
)

// Decision is the evaluator's verdict for one scanned submission.
type Decision struct {
	Kind  DecisionKind
	Batch []Submission
}

// Evaluator decides whether a scanned submission completes its campaign.
// One evaluator per region per run: the seen set keyed by
// (creator, campaign) makes later submissions of an already-decided pair
// short-circuit to AlreadyHandled instead of re-counting.
type Evaluator struct {
	db   *gorm.DB
	seen map[string]struct{}
}

func NewEvaluator(db *gorm.DB) *Evaluator {
	return &Evaluator{db: db, seen: make(map[string]struct{})}
}

func pairKey(creatorID, campaignID string) string {
	return creatorID + "|" + campaignID
}

// Evaluate counts the creator's approved units for the campaign and
// compares against the resolved policy. Counting includes already-settled
// units so that a pair settled mid-history still reads as complete.
func (e *Evaluator) Evaluate(ctx context.Context, sub Submission, pol policy.Policy) (Decision, error) {
	key := pairKey(sub.CreatorID, sub.CampaignID)
	if _, ok := e.seen[key]; ok {
		return Decision{Kind: AlreadyHandled}, nil
	}

	var units []Submission
	err := e.db.WithContext(ctx).
		Where("creator_id = ? AND campaign_id = ?", sub.CreatorID, sub.CampaignID).
		Where("status IN ?", []SubmissionStatus{SubmissionApproved, SubmissionCompleted}).
		Order("approved_at ASC, id ASC").
		Find(&units).Error
	if err != nil {
		return Decision{}, err
	}

	if len(units) < pol.RequiredUnits {
		e.seen[key] = struct{}{}
		return Decision{Kind: NotYet}, nil
	}

	// Threshold met. Settle every still-unsettled unit of the pair in one
	// batch; if none remain, an earlier run finished the job.
	var batch []Submission
	for _, u := range units {
		if !u.Settled() {
			batch = append(batch, u)
		}
	}

	e.seen[key] = struct{}{}
	if len(batch) == 0 {
		return Decision{Kind: AlreadyHandled}, nil
	}
	return Decision{Kind: SettleNow, Batch: batch}, nil
}
