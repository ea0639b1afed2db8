package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"creatorhub-settlement/pkg/region"
)

var Module = fx.Module("health", fx.Provide(ProvideHealth))

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Health struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Deps    []Dependency `json:"deps"`
}

type HealthService interface {
	Liveness(c *gin.Context)
	Readiness(c *gin.Context)
}

type health struct {
	regions *region.Registry
	redis   *redis.Client
}

type HealthParams struct {
	fx.In
	Regions *region.Registry `optional:"true"`
	Redis   *redis.Client    `optional:"true"`
}

func ProvideHealth(p HealthParams) HealthService {
	return &health{
		regions: p.Regions,
		redis:   p.Redis,
	}
}

func (h *health) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, &Health{
		Status:  "healthy",
		Message: "OK",
	})
}

func (h *health) Readiness(c *gin.Context) {
	this := &Health{
		Status:  "healthy",
		Message: "OK",
	}

	deps := make([]Dependency, 0)
	if h.regions != nil {
		deps = append(deps, pingStore("home", h.regions.Home()))
		for _, name := range h.regions.Names() {
			store, err := h.regions.Store(name)
			if err != nil {
				deps = append(deps, Dependency{Name: name, Status: "unhealthy", Message: err.Error()})
				continue
			}
			deps = append(deps, pingStore(name, store))
		}
	}

	if h.redis != nil {
		dep := Dependency{
			Name:    "redis",
			Status:  "healthy",
			Message: "OK",
		}
		if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
			dep.Status = "unhealthy"
			dep.Message = err.Error()
		}
		deps = append(deps, dep)
	}

	this.Deps = deps

	for _, dep := range deps {
		if dep.Status != "healthy" {
			this.Status = "unhealthy"
			this.Message = "one or more dependencies are failing"
			break
		}
	}

	c.JSON(http.StatusOK, this)
}

func pingStore(name string, db *gorm.DB) Dependency {
	dep := Dependency{
		Name:    name,
		Status:  "healthy",
		Message: "OK",
	}

	sql, err := db.DB()
	if err != nil {
		dep.Status = "unhealthy"
		dep.Message = err.Error()
		return dep
	}

	if err := sql.Ping(); err != nil {
		dep.Status = "unhealthy"
		dep.Message = err.Error()
	}

	return dep
}
