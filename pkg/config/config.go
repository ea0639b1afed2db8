package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

// RegionConfig describes one regional data store. An enabled region must
// carry a driver and DSN; startup fails otherwise instead of the region
// being silently skipped mid-run.
type RegionConfig struct {
	Name    string `mapstructure:"NAME"`
	Driver  string `mapstructure:"DRIVER"`
	DSN     string `mapstructure:"DSN"`
	Enabled bool   `mapstructure:"ENABLED"`
}

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	Timezone   string `mapstructure:"TIMEZONE"`
	Server     struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Otel struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"OTEL"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	// HomeStore is the shared store holding cross-region campaign and
	// application metadata plus the execution lease table.
	HomeStore  RegionConfig   `mapstructure:"HOME_STORE"`
	Regions    []RegionConfig `mapstructure:"REGIONS"`
	Settlement struct {
		GraceWindow     time.Duration `mapstructure:"GRACE_WINDOW"`
		DuplicateWindow time.Duration `mapstructure:"DUPLICATE_WINDOW"`
		PageSize        int           `mapstructure:"PAGE_SIZE"`
		RunAtHour       int           `mapstructure:"RUN_AT_HOUR"`
		RunAtMinute     int           `mapstructure:"RUN_AT_MINUTE"`
	} `mapstructure:"SETTLEMENT"`
	Notify struct {
		WebhookURL   string `mapstructure:"WEBHOOK_URL"`
		TemplateID   string `mapstructure:"TEMPLATE_ID"`
		OpsChannelID string `mapstructure:"OPS_CHANNEL_ID"`
	} `mapstructure:"NOTIFY"`
	SnowflakeNode int64 `mapstructure:"SNOWFLAKE_NODE"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() *Config {

	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		zap.L().Error("failed to read config file", zap.Error(err))
		os.Exit(1)
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	cfg.applyDefaults()

	return &cfg
}

func (c *Config) applyDefaults() {
	if c.AppName == "" {
		c.AppName = "settlement-engine"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Seoul"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Settlement.GraceWindow == 0 {
		c.Settlement.GraceWindow = 5 * 24 * time.Hour
	}
	if c.Settlement.DuplicateWindow == 0 {
		c.Settlement.DuplicateWindow = 10 * time.Minute
	}
	if c.Settlement.PageSize == 0 {
		c.Settlement.PageSize = 200
	}
	if c.SnowflakeNode == 0 {
		c.SnowflakeNode = 1
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
