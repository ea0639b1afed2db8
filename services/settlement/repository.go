package settlement

import (
	"context"
	"errors"
	"fmt"

	"creatorhub-settlement/pkg/region"

	"gorm.io/gorm"
)

// CampaignResolver loads campaign records for the evaluator. Lookup order
// is fixed: the regional store first, then the shared home store, then
// ErrCampaignNotFound. There is no per-campaign-type special casing; the
// fallback chain is the same for every campaign.
type CampaignResolver struct {
	registry *region.Registry

	// cache is per-run: the orchestrator builds a fresh resolver each run,
	// so entries never outlive the run that loaded them.
	cache map[string]*Campaign
}

func NewCampaignResolver(registry *region.Registry) *CampaignResolver {
	return &CampaignResolver{
		registry: registry,
		cache:    make(map[string]*Campaign),
	}
}

// Resolve returns the campaign for id, looking in the regional store
// before the home store.
func (r *CampaignResolver) Resolve(ctx context.Context, regionName, id string) (*Campaign, error) {
	key := regionName + "|" + id
	if c, ok := r.cache[key]; ok {
		return c, nil
	}

	store, err := r.registry.Store(regionName)
	if err != nil {
		return nil, err
	}

	c, err := findCampaign(ctx, store, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c, err = findCampaign(ctx, r.registry.Home(), id)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	r.cache[key] = c
	return c, nil
}

func findCampaign(ctx context.Context, db *gorm.DB, id string) (*Campaign, error) {
	var c Campaign
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
