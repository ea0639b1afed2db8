package settlement

import (
	"context"
	"time"

	"creatorhub-settlement/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler fires the settlement run once a day at the configured local
// time. The execution guard still applies, so overlapping deployments of
// the scheduler stay safe.
type Scheduler struct {
	cfg     *config.Config
	service *Service
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewScheduler(cfg *config.Config, service *Service) *Scheduler {
	return &Scheduler{cfg: cfg, service: service, done: make(chan struct{})}
}

func (s *Scheduler) start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		defer close(s.done)
		for {
			next := s.nextRun(time.Now())
			zap.L().Info("[Scheduler] next settlement run", zap.Time("at", next))

			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			if _, err := s.service.Run(ctx); err != nil {
				zap.L().Error("[Scheduler] settlement run failed", zap.Error(err))
			}
		}
	}()
}

func (s *Scheduler) stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// nextRun computes the next configured run time in the service timezone,
// rolling to tomorrow when today's slot already passed.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	loc := s.cfg.Location()
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(),
		s.cfg.Settlement.RunAtHour, s.cfg.Settlement.RunAtMinute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func RegisterScheduler(lc fx.Lifecycle, cfg *config.Config, service *Service) {
	s := NewScheduler(cfg, service)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			s.start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			s.stop()
			return nil
		},
	})
}
