package settlement

import (
	"context"
	"errors"
	"time"

	"creatorhub-settlement/pkg/config"
	"creatorhub-settlement/pkg/metrics"
	"creatorhub-settlement/pkg/region"
	"creatorhub-settlement/services/policy"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("creatorhub-settlement/services/settlement")

// Service drives the cross-region settlement run: take the execution
// lease, then per region scan, resolve, evaluate and commit. Failures are
// isolated at two levels: a failing item never stops its region, and a
// failing region never stops the others.
type Service struct {
	cfg       *config.Config
	registry  *region.Registry
	node      *snowflake.Node
	guard     *Guard
	publisher *Publisher
}

type Params struct {
	fx.In
	Cfg       *config.Config
	Registry  *region.Registry
	Node      *snowflake.Node
	Publisher *Publisher
}

func NewService(p Params) *Service {
	return &Service{
		cfg:       p.Cfg,
		registry:  p.Registry,
		node:      p.Node,
		guard:     NewGuard(p.Registry.Home(), p.Cfg.Settlement.DuplicateWindow),
		publisher: p.Publisher,
	}
}

// Result is the outcome of one settlement run.
type Result struct {
	// Processed counts submissions settled across all regions.
	Processed int `json:"processed"`
	// Errors counts isolated failures: unresolvable campaigns, evaluation
	// or commit errors, and whole-region scan failures.
	Errors int `json:"errors"`
	// Skipped is true when the execution guard refused a duplicate run.
	Skipped bool     `json:"skipped"`
	Regions []string `json:"regions"`
}

// Run executes one settlement pass over every enabled region. The run
// itself only fails on lease-store errors; everything past the guard is
// absorbed into the Errors count.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "settlement.Run",
		trace.WithAttributes(attribute.Int("regions", len(s.registry.Names()))))
	defer span.End()

	start := time.Now()

	if err := s.guard.Acquire(ctx, JobAutoSettlement); err != nil {
		if errors.Is(err, ErrDuplicateRun) {
			zap.L().Info("[Settlement] duplicate run suppressed")
			metrics.RecordRunDuration("skipped", time.Since(start).Seconds())
			return &Result{Skipped: true}, nil
		}
		metrics.RecordRunDuration("failed", time.Since(start).Seconds())
		return nil, err
	}

	res := &Result{Regions: s.registry.Names()}
	resolver := NewCampaignResolver(s.registry)
	cutoff := time.Now().UTC().Add(-s.cfg.Settlement.GraceWindow)

	for _, name := range res.Regions {
		store, err := s.registry.Store(name)
		if err != nil {
			res.Errors++
			zap.L().Error("[Settlement] region unavailable", zap.String("region", name), zap.Error(err))
			continue
		}
		if err := s.runRegion(ctx, name, store, resolver, cutoff, res); err != nil {
			res.Errors++
			metrics.SettlementErrors.WithLabelValues(name).Inc()
			zap.L().Error("[Settlement] region scan failed", zap.String("region", name), zap.Error(err))
		}
	}

	if ctx.Err() != nil {
		// Cancelled mid-run: give the lease back so a retry is not stuck
		// behind the duplicate window.
		s.guard.Release(context.Background(), JobAutoSettlement)
	}

	elapsed := time.Since(start)
	metrics.RecordRunDuration("completed", elapsed.Seconds())
	zap.L().Info("[Settlement] run finished",
		zap.Int("processed", res.Processed),
		zap.Int("errors", res.Errors),
		zap.Duration("elapsed", elapsed))

	if err := s.publisher.RunDigest(RunDigestPayload{
		Processed: res.Processed,
		Errors:    res.Errors,
		Regions:   res.Regions,
		Duration:  elapsed,
		RanAt:     time.Now().UTC(),
	}); err != nil {
		zap.L().Warn("[Settlement] failed to enqueue run digest", zap.Error(err))
	}

	return res, nil
}

func (s *Service) runRegion(ctx context.Context, name string, store *gorm.DB, resolver *CampaignResolver, cutoff time.Time, res *Result) error {
	scanner := NewScanner(store, s.cfg.Settlement.PageSize)
	evaluator := NewEvaluator(store)
	committer := NewCommitter(store, s.node, name)

	return scanner.ForEach(ctx, cutoff, func(sub Submission) {
		if err := s.processSubmission(ctx, name, sub, resolver, evaluator, committer, res); err != nil {
			res.Errors++
			metrics.SettlementErrors.WithLabelValues(name).Inc()
			zap.L().Warn("[Settlement] submission skipped",
				zap.String("region", name),
				zap.String("submission_id", sub.ID),
				zap.String("campaign_id", sub.CampaignID),
				zap.Error(err))
		}
	})
}

func (s *Service) processSubmission(ctx context.Context, name string, sub Submission, resolver *CampaignResolver, evaluator *Evaluator, committer *Committer, res *Result) error {
	campaign, err := resolver.Resolve(ctx, name, sub.CampaignID)
	if err != nil {
		return err
	}

	pol := policy.Resolve(campaign.PolicyInput())
	dec, err := evaluator.Evaluate(ctx, sub, pol)
	if err != nil {
		return err
	}
	if dec.Kind != SettleNow {
		return nil
	}

	cres, err := committer.Commit(ctx, dec.Batch, campaign, pol.RewardPerUnit)
	if err != nil {
		return err
	}
	if cres.AlreadyHandled {
		return nil
	}

	res.Processed += cres.Settled
	metrics.SubmissionsSettled.WithLabelValues(name).Add(float64(cres.Settled))

	if cres.Credited && cres.Account != nil {
		if err := s.publisher.SettlementNotice(SettlementNotifyPayload{
			Region:        name,
			CreatorID:     cres.Account.ID,
			CreatorName:   cres.Account.DisplayName(),
			Email:         cres.Account.Email,
			Phone:         cres.Account.Phone,
			CampaignID:    campaign.ID,
			CampaignTitle: campaign.Title,
			Amount:        cres.Amount,
			NewBalance:    cres.NewBalance,
		}); err != nil {
			zap.L().Warn("[Settlement] failed to enqueue notification",
				zap.String("creator_id", cres.Account.ID),
				zap.Error(err))
		}
	}
	return nil
}
