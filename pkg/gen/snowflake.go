package gen

import (
	"creatorhub-settlement/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("snowflake",
	fx.Provide(NewNode),
)

// NewNode builds the snowflake node used for transaction and lease ids.
// The node id must be unique per running instance when the job is ever
// deployed more than once.
func NewNode(cfg *config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
