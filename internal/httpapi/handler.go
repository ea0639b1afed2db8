package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"creatorhub-settlement/pkg/config"
	"creatorhub-settlement/pkg/errutil"
	"creatorhub-settlement/pkg/health"
	"creatorhub-settlement/pkg/middleware"
	"creatorhub-settlement/services/audit"
	"creatorhub-settlement/services/settlement"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewHandler, ProvideEngine),
)

// Handler exposes the operational surface: trigger a settlement run, pull
// the reconciliation report, and remediate a confirmed gap.
type Handler struct {
	settlement *settlement.Service
	audit      *audit.Service
	health     health.HealthService
}

type HandlerParams struct {
	fx.In
	Settlement *settlement.Service
	Audit      *audit.Service
	Health     health.HealthService
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		settlement: p.Settlement,
		audit:      p.Audit,
		health:     p.Health,
	}
}

func ProvideEngine(cfg *config.Config, h *Handler) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	e := gin.New()
	e.Use(gin.Recovery(), middleware.Error())

	e.GET("/healthz", h.health.Liveness)
	e.GET("/readyz", h.health.Readiness)
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := e.Group("/api/v1")
	v1.POST("/jobs/settlement/run", h.RunSettlement)
	v1.POST("/audit/unpaid", h.UnpaidReport)
	v1.POST("/audit/remediate", h.Remediate)

	return e
}

func (h *Handler) RunSettlement(c *gin.Context) {
	res, err := h.settlement.Run(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": res.Processed,
		"errors":    res.Errors,
		"skipped":   res.Skipped,
		"regions":   res.Regions,
	})
}

func (h *Handler) UnpaidReport(c *gin.Context) {
	report, err := h.audit.Findings(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"findings": report.Findings,
		"count":    report.Count,
		"summary":  report.Summary,
	})
}

func (h *Handler) Remediate(c *gin.Context) {
	var req audit.RemediationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid remediation request", err))
		return
	}

	res, err := h.audit.Remediate(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"credited":    res.Credited,
		"new_balance": res.NewBalance,
	})
}
