package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"creatorhub-settlement/pkg/config"
	"creatorhub-settlement/pkg/task"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	TypeSettlementNotify = "notify:settlement"
	TypeRunDigest        = "notify:run_digest"
)

// SettlementNotifyPayload is the queue message for one settled reward.
type SettlementNotifyPayload struct {
	Region        string `json:"region"`
	CreatorID     string `json:"creator_id"`
	CreatorName   string `json:"creator_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	CampaignID    string `json:"campaign_id"`
	CampaignTitle string `json:"campaign_title"`
	Amount        int64  `json:"amount"`
	NewBalance    int64  `json:"new_balance"`
}

// RunDigestPayload summarizes one settlement run for the ops channel.
type RunDigestPayload struct {
	Processed int           `json:"processed"`
	Errors    int           `json:"errors"`
	Regions   []string      `json:"regions"`
	Duration  time.Duration `json:"duration"`
	RanAt     time.Time     `json:"ran_at"`
}

// Publisher enqueues notification work onto the task queue so settlement
// commits never block on, or fail with, outbound messaging.
type Publisher struct {
	enqueuer task.Enqueuer
}

func NewPublisher(enqueuer task.Enqueuer) *Publisher {
	return &Publisher{enqueuer: enqueuer}
}

func (p *Publisher) SettlementNotice(payload SettlementNotifyPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = p.enqueuer.Enqueue(
		asynq.NewTask(TypeSettlementNotify, raw),
		asynq.Queue("default"),
		asynq.MaxRetry(5),
	)
	return err
}

func (p *Publisher) RunDigest(payload RunDigestPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = p.enqueuer.Enqueue(
		asynq.NewTask(TypeRunDigest, raw),
		asynq.Queue("low"),
		asynq.MaxRetry(3),
	)
	return err
}

// NotifyWorker consumes queued notifications and hands them to the
// dispatcher.
type NotifyWorker struct {
	cfg        *config.Config
	dispatcher Dispatcher
}

func NewNotifyWorker(cfg *config.Config, dispatcher Dispatcher) *NotifyWorker {
	return &NotifyWorker{cfg: cfg, dispatcher: dispatcher}
}

func (w *NotifyWorker) HandleSettlementNotifyTask(ctx context.Context, t *asynq.Task) error {
	var payload SettlementNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid settlement notify payload: %w: %w", err, asynq.SkipRetry)
	}

	var channels []string
	if payload.Email != "" {
		channels = append(channels, payload.Email)
	}
	if payload.Phone != "" {
		channels = append(channels, payload.Phone)
	}
	if len(channels) == 0 {
		zap.L().Warn("[Notify] creator has no contact channels",
			zap.String("creator_id", payload.CreatorID))
		return nil
	}

	return w.dispatcher.Send(ctx, Notice{
		TemplateID:      w.cfg.Notify.TemplateID,
		ContactChannels: channels,
		Variables: map[string]interface{}{
			"creator_name":   payload.CreatorName,
			"campaign_title": payload.CampaignTitle,
			"amount":         payload.Amount,
			"new_balance":    payload.NewBalance,
			"region":         payload.Region,
		},
	})
}

func (w *NotifyWorker) HandleRunDigestTask(ctx context.Context, t *asynq.Task) error {
	var payload RunDigestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid run digest payload: %w: %w", err, asynq.SkipRetry)
	}

	if w.cfg.Notify.OpsChannelID == "" {
		zap.L().Info("[Notify] ops channel not configured, logging digest only",
			zap.Int("processed", payload.Processed),
			zap.Int("errors", payload.Errors))
		return nil
	}

	return w.dispatcher.Send(ctx, Notice{
		TemplateID:      w.cfg.Notify.TemplateID,
		ContactChannels: []string{w.cfg.Notify.OpsChannelID},
		Variables: map[string]interface{}{
			"processed": payload.Processed,
			"errors":    payload.Errors,
			"regions":   payload.Regions,
			"duration":  payload.Duration.String(),
			"ran_at":    payload.RanAt.Format(time.RFC3339),
		},
	})
}

type TaskHandlerParams struct {
	fx.In
	Mux    *asynq.ServeMux
	Worker *NotifyWorker
}

func RegisterTaskHandlers(p TaskHandlerParams) {
	p.Mux.HandleFunc(TypeSettlementNotify, p.Worker.HandleSettlementNotifyTask)
	p.Mux.HandleFunc(TypeRunDigest, p.Worker.HandleRunDigestTask)
}
