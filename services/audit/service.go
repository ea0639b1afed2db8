package audit

import (
	"context"
	"errors"
	"sort"
	"time"

	"creatorhub-settlement/pkg/config"
	"creatorhub-settlement/pkg/errutil"
	"creatorhub-settlement/pkg/metrics"
	"creatorhub-settlement/pkg/region"
	"creatorhub-settlement/services/policy"
	"creatorhub-settlement/services/settlement"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("creatorhub-settlement/services/audit")

// Service reconciles the ledger against settlement state: it reports
// creators who look unpaid and lets an operator remediate a confirmed
// gap through the same credit path auto settlement uses.
type Service struct {
	cfg      *config.Config
	registry *region.Registry
	node     *snowflake.Node
}

type Params struct {
	fx.In
	Cfg      *config.Config
	Registry *region.Registry
	Node     *snowflake.Node
}

func NewService(p Params) *Service {
	return &Service{cfg: p.Cfg, registry: p.Registry, node: p.Node}
}

// Findings runs the reconciliation pass over every region. Two sweeps per
// region: unsettled pairs past the grace window get a diagnosed reason,
// and settled pairs missing their completion-reward transaction are
// flagged for remediation. Oldest approval first.
func (s *Service) Findings(ctx context.Context) (*Report, error) {
	ctx, span := tracer.Start(ctx, "audit.Findings")
	defer span.End()

	report := &Report{
		Findings: []Finding{},
		Summary:  make(map[Reason]int),
	}
	resolver := settlement.NewCampaignResolver(s.registry)
	cutoff := time.Now().UTC().Add(-s.cfg.Settlement.GraceWindow)

	for _, name := range s.registry.Names() {
		store, err := s.registry.Store(name)
		if err != nil {
			zap.L().Error("[Audit] region unavailable", zap.String("region", name), zap.Error(err))
			continue
		}
		seen := make(map[string]struct{})
		if err := s.scanUnsettled(ctx, name, store, resolver, cutoff, seen, report); err != nil {
			return nil, err
		}
		if err := s.scanCompletedApplications(ctx, name, store, resolver, seen, report); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(report.Findings, func(i, j int) bool {
		a, b := report.Findings[i].ApprovedAt, report.Findings[j].ApprovedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})

	report.Count = len(report.Findings)
	for reason, n := range report.Summary {
		metrics.AuditFindings.WithLabelValues(string(reason)).Set(float64(n))
	}
	return report, nil
}

// scanUnsettled walks approved-but-unsettled submissions past the grace
// window and diagnoses each (creator, campaign) pair once. Pairs are
// recorded in seen so the application sweep does not report them twice.
func (s *Service) scanUnsettled(ctx context.Context, name string, store *gorm.DB, resolver *settlement.CampaignResolver, cutoff time.Time, seen map[string]struct{}, report *Report) error {
	scanner := settlement.NewScanner(store, s.cfg.Settlement.PageSize)
	var scanErr error

	err := scanner.ForEach(ctx, cutoff, func(sub settlement.Submission) {
		key := sub.CreatorID + "|" + sub.CampaignID
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}

		f, err := s.diagnose(ctx, name, store, resolver, sub)
		if err != nil {
			scanErr = err
			return
		}
		s.append(report, f)
	})
	if err != nil {
		return err
	}
	return scanErr
}

func (s *Service) diagnose(ctx context.Context, name string, store *gorm.DB, resolver *settlement.CampaignResolver, sub settlement.Submission) (Finding, error) {
	f := Finding{
		Region:     name,
		CreatorID:  sub.CreatorID,
		CampaignID: sub.CampaignID,
		MediaURL:   sub.MediaURL,
		ApprovedAt: sub.ApprovedAt,
		Reason:     ReasonUnknown,
	}
	if sub.ApprovedAt != nil {
		f.DaysSinceApproval = int(time.Since(*sub.ApprovedAt).Hours() / 24)
	}

	if account, err := findAccount(ctx, store, sub.CreatorID); err == nil {
		f.CreatorName = account.DisplayName()
		f.Email = account.Email
		f.Phone = account.Phone
		f.CurrentBalance = account.Balance
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return f, err
	} else {
		f.Reason = ReasonAccountMissing
	}

	campaign, err := resolver.Resolve(ctx, name, sub.CampaignID)
	if errors.Is(err, settlement.ErrCampaignNotFound) {
		f.Reason = ReasonCampaignNotFound
		return f, nil
	}
	if err != nil {
		return f, err
	}

	f.CampaignTitle = campaign.Title
	pol := policy.Resolve(campaign.PolicyInput())
	f.RequiredUnits = pol.RequiredUnits
	f.RewardAmount = pol.RewardPerUnit

	var units int64
	err = store.WithContext(ctx).Model(&settlement.Submission{}).
		Where("creator_id = ? AND campaign_id = ?", sub.CreatorID, sub.CampaignID).
		Where("status IN ?", []settlement.SubmissionStatus{settlement.SubmissionApproved, settlement.SubmissionCompleted}).
		Count(&units).Error
	if err != nil {
		return f, err
	}
	f.ApprovedUnits = int(units)

	// Reason precedence: an unmet threshold explains the gap regardless of
	// reward or account state.
	switch {
	case int(units) < pol.RequiredUnits:
		f.Reason = ReasonThresholdUnmet
	case pol.RewardPerUnit == 0:
		f.Reason = ReasonRewardUnconfigured
	case f.Reason == ReasonAccountMissing:
		// keep it
	default:
		f.Reason = ReasonUnknown
	}
	return f, nil
}

// scanCompletedApplications flags completed applications whose
// (creator, campaign) pair has no completion-reward transaction, the gap
// left when the credit was skipped or the application was closed outside
// the settlement run. Pairs already reported by the unsettled sweep are
// skipped.
func (s *Service) scanCompletedApplications(ctx context.Context, name string, store *gorm.DB, resolver *settlement.CampaignResolver, seen map[string]struct{}, report *Report) error {
	var apps []settlement.Application
	err := store.WithContext(ctx).
		Where("status = ?", settlement.ApplicationCompleted).
		Find(&apps).Error
	if err != nil {
		return err
	}

	for _, app := range apps {
		key := app.CreatorID + "|" + app.CampaignID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		var credits int64
		err := store.WithContext(ctx).Model(&settlement.PointTransaction{}).
			Where("creator_id = ? AND campaign_id = ? AND type = ?",
				app.CreatorID, app.CampaignID, settlement.TransactionCompletionReward).
			Count(&credits).Error
		if err != nil {
			return err
		}
		if credits > 0 {
			continue
		}

		f := Finding{
			Region:     name,
			CreatorID:  app.CreatorID,
			CampaignID: app.CampaignID,
			Reason:     ReasonMissingTransaction,
		}

		// Approval age comes from the pair's oldest submission; an
		// application completed without any submission rows still counts.
		var oldest settlement.Submission
		err = store.WithContext(ctx).
			Where("creator_id = ? AND campaign_id = ?", app.CreatorID, app.CampaignID).
			Where("approved_at IS NOT NULL").
			Order("approved_at ASC, id ASC").
			First(&oldest).Error
		if err == nil {
			f.ApprovedAt = oldest.ApprovedAt
			f.MediaURL = oldest.MediaURL
			if oldest.ApprovedAt != nil {
				f.DaysSinceApproval = int(time.Since(*oldest.ApprovedAt).Hours() / 24)
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if account, err := findAccount(ctx, store, app.CreatorID); err == nil {
			f.CreatorName = account.DisplayName()
			f.Email = account.Email
			f.Phone = account.Phone
			f.CurrentBalance = account.Balance
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		} else {
			f.Reason = ReasonAccountMissing
		}

		if campaign, err := resolver.Resolve(ctx, name, app.CampaignID); err == nil {
			f.CampaignTitle = campaign.Title
			pol := policy.Resolve(campaign.PolicyInput())
			f.RequiredUnits = pol.RequiredUnits
			f.RewardAmount = pol.RewardPerUnit
		}
		s.append(report, f)
	}
	return nil
}

func (s *Service) append(report *Report, f Finding) {
	report.Findings = append(report.Findings, f)
	report.Summary[f.Reason]++
}

func findAccount(ctx context.Context, db *gorm.DB, creatorID string) (*settlement.CreatorAccount, error) {
	var account settlement.CreatorAccount
	if err := db.WithContext(ctx).Where("id = ?", creatorID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// RemediationRequest is an operator-confirmed manual payout. CreatorID
// plus Amount is the minimum; SubmissionID alone also works (the pair is
// derived from the submission). CampaignID is optional: without one the
// credit is a free-standing adjustment and skips the one-per-pair gate.
type RemediationRequest struct {
	Region       string `json:"region"`
	CreatorID    string `json:"creator_id"`
	CampaignID   string `json:"campaign_id"`
	SubmissionID string `json:"submission_id"`
	Amount       int64  `json:"amount"`
	Reason       string `json:"reason"`
	OperatorID   string `json:"operator_id"`
}

type RemediationResult struct {
	// Credited is false when the pair already had its completion reward;
	// the call was an idempotent no-op.
	Credited   bool  `json:"credited"`
	NewBalance int64 `json:"new_balance"`
}

// Remediate credits a confirmed unpaid pair through the same path auto
// settlement uses, then stamps any still-unsettled submissions of the
// pair. Safe to retry: an existing completion reward makes it a no-op.
func (s *Service) Remediate(ctx context.Context, req RemediationRequest) (*RemediationResult, error) {
	if req.Amount <= 0 {
		return nil, errutil.ValidationFailed("amount must be greater than zero", nil)
	}
	if req.CreatorID == "" && req.SubmissionID == "" {
		return nil, errutil.ValidationFailed("creator_id or submission_id is required", nil)
	}

	store, err := s.registry.Store(req.Region)
	if err != nil {
		return nil, errutil.NotFound("unknown region", err)
	}

	if req.SubmissionID != "" {
		var sub settlement.Submission
		err := store.WithContext(ctx).Where("id = ?", req.SubmissionID).First(&sub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("unknown submission", err)
		}
		if err != nil {
			return nil, err
		}
		if req.CreatorID == "" {
			req.CreatorID = sub.CreatorID
		}
		if req.CampaignID == "" {
			req.CampaignID = sub.CampaignID
		}
	}

	res := &RemediationResult{}
	err = store.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		out, err := settlement.CreditReward(ctx, tx, s.node, settlement.CreditInput{
			CreatorID:  req.CreatorID,
			CampaignID: req.CampaignID,
			Amount:     req.Amount,
			Reason:     req.Reason,
			Metadata: map[string]interface{}{
				"region":      req.Region,
				"campaign_id": req.CampaignID,
				"manual":      true,
				"operator_id": req.OperatorID,
			},
		})
		if err != nil {
			return err
		}
		res.Credited = out.Credited
		res.NewBalance = out.NewBalance

		if !out.Credited {
			zap.L().Info("[Audit] remediation no-op, reward already credited",
				zap.String("creator_id", req.CreatorID),
				zap.String("campaign_id", req.CampaignID))
			return nil
		}

		if req.CampaignID == "" {
			return nil
		}

		// Close the loop on the submissions too, so the unsettled sweep
		// stops reporting the pair.
		now := time.Now().UTC()
		return tx.Model(&settlement.Submission{}).
			Where("creator_id = ? AND campaign_id = ? AND settled_at IS NULL", req.CreatorID, req.CampaignID).
			Updates(map[string]interface{}{
				"status":     settlement.SubmissionCompleted,
				"settled_at": now,
			}).Error
	})
	if err != nil {
		if errors.Is(err, settlement.ErrAccountMissing) {
			return nil, errutil.UnprocessableEntity("creator has no ledger account", err)
		}
		return nil, err
	}

	zap.L().Info("[Audit] remediation applied",
		zap.String("region", req.Region),
		zap.String("creator_id", req.CreatorID),
		zap.String("campaign_id", req.CampaignID),
		zap.Int64("amount", req.Amount),
		zap.Bool("credited", res.Credited))
	return res, nil
}
