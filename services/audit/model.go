package audit

import "time"

// Reason classifies why a creator appears unpaid. Ordering in a report is
// by approval age, not by reason.
type Reason string

const (
	// ReasonCampaignNotFound: the submission references a campaign neither
	// the regional nor the home store knows.
	ReasonCampaignNotFound Reason = "campaign_not_found"
	// ReasonThresholdUnmet: the creator has not produced enough approved
	// units yet. Informational; the engine is right to wait.
	ReasonThresholdUnmet Reason = "threshold_unmet"
	// ReasonRewardUnconfigured: the campaign resolves to a zero reward.
	ReasonRewardUnconfigured Reason = "reward_unconfigured"
	// ReasonAccountMissing: no ledger account exists for the creator.
	ReasonAccountMissing Reason = "account_missing"
	// ReasonMissingTransaction: the pair settled but no completion-reward
	// transaction exists. The usual remediation target.
	ReasonMissingTransaction Reason = "missing_transaction"
	// ReasonUnknown: everything checks out yet the pair is unsettled; the
	// engine should have handled it.
	ReasonUnknown Reason = "unknown"
)

// Finding is one unpaid (creator, campaign) pair with enough context for
// an operator to reach the creator and remediate.
type Finding struct {
	Region            string     `json:"region"`
	CreatorID         string     `json:"creator_id"`
	CreatorName       string     `json:"creator_name,omitempty"`
	Email             string     `json:"email,omitempty"`
	Phone             string     `json:"phone,omitempty"`
	CampaignID        string     `json:"campaign_id"`
	CampaignTitle     string     `json:"campaign_title,omitempty"`
	RewardAmount      int64      `json:"reward_amount"`
	CurrentBalance    int64      `json:"current_balance"`
	RequiredUnits     int        `json:"required_units"`
	ApprovedUnits     int        `json:"approved_units"`
	MediaURL          string     `json:"media_url,omitempty"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	DaysSinceApproval int        `json:"days_since_approval"`
	Reason            Reason     `json:"reason"`
}

// Report is the output of one reconciliation pass.
type Report struct {
	Findings []Finding      `json:"findings"`
	Count    int            `json:"count"`
	Summary  map[Reason]int `json:"summary"`
}
