package region

import (
	"errors"
	"fmt"
	"sort"

	"creatorhub-settlement/pkg/config"
	"creatorhub-settlement/pkg/db"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrRegionUnavailable marks a region whose store is unknown or disabled.
// The orchestrator skips the region and keeps processing the others.
var ErrRegionUnavailable = errors.New("region store unavailable")

var Module = fx.Module("region",
	fx.Provide(NewRegistry),
)

// Registry holds one gorm handle per enabled regional store plus the
// shared home store used as the cross-region fallback for campaign and
// application metadata.
type Registry struct {
	home   *gorm.DB
	stores map[string]*gorm.DB
	names  []string
}

type Params struct {
	fx.In
	Cfg *config.Config
}

// NewRegistry validates the region configuration up front: an enabled
// region without a DSN is a startup failure, not a region silently
// skipped mid-run.
func NewRegistry(p Params) (*Registry, error) {
	if p.Cfg.HomeStore.DSN == "" {
		return nil, fmt.Errorf("home store is not configured")
	}

	home, err := db.Open(p.Cfg, p.Cfg.HomeStore)
	if err != nil {
		return nil, err
	}

	stores := make(map[string]*gorm.DB, len(p.Cfg.Regions))
	for _, rc := range p.Cfg.Regions {
		if !rc.Enabled {
			zap.L().Info("[Region] region disabled, skipping", zap.String("region", rc.Name))
			continue
		}
		if rc.Name == "" || rc.DSN == "" {
			return nil, fmt.Errorf("enabled region %q is missing a name or DSN", rc.Name)
		}
		store, err := db.Open(p.Cfg, rc)
		if err != nil {
			return nil, err
		}
		stores[rc.Name] = store
	}

	if len(stores) == 0 {
		return nil, fmt.Errorf("no regional stores configured")
	}

	return NewStatic(home, stores), nil
}

// NewStatic builds a registry from pre-opened handles. Used by tests and
// by tooling that already owns its connections.
func NewStatic(home *gorm.DB, stores map[string]*gorm.DB) *Registry {
	names := make([]string, 0, len(stores))
	for name := range stores {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Registry{home: home, stores: stores, names: names}
}

// Home returns the shared fallback store.
func (r *Registry) Home() *gorm.DB {
	return r.home
}

// Store returns the handle for one region.
func (r *Registry) Store(name string) (*gorm.DB, error) {
	store, ok := r.stores[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRegionUnavailable, name)
	}
	return store, nil
}

// Names lists enabled regions in stable order.
func (r *Registry) Names() []string {
	return r.names
}
