package db

import (
	"fmt"
	"time"

	"creatorhub-settlement/pkg/config"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/prometheus"
)

// Dialect maps a configured driver name onto a gorm dialector.
func Dialect(rc config.RegionConfig) (gorm.Dialector, error) {
	switch rc.Driver {
	case "postgres":
		return postgres.Open(rc.DSN), nil
	case "mysql":
		return mysql.Open(rc.DSN), nil
	case "sqlite":
		return sqlite.Open(rc.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q for region %q", rc.Driver, rc.Name)
	}
}

// Open connects to one regional store. Stores are independent; a failure
// here is reported to the caller instead of aborting the process, so the
// region registry can decide whether the deployment is still viable.
func Open(cfg *config.Config, rc config.RegionConfig) (*gorm.DB, error) {
	dialector, err := Dialect(rc)
	if err != nil {
		return nil, err
	}

	var logLevel logger.LogLevel
	var showSQL bool

	if cfg.AppEnv == "production" {
		logLevel = logger.Warn
		showSQL = false
	} else {
		logLevel = logger.Info
		showSQL = true
	}

	gormLogger := NewZapGormLogger(zap.L().With(zap.String("region", rc.Name)), logLevel, showSQL)

	var db *gorm.DB
	for i := 0; i < 5; i++ {
		db, err = gorm.Open(dialector, &gorm.Config{
			Logger: gormLogger,
		})
		if err == nil {
			break
		}
		zap.L().Warn("[DB] store not ready, retrying in 3 seconds...",
			zap.String("region", rc.Name), zap.Int("retry", i+1), zap.Error(err))
		time.Sleep(3 * time.Second)
	}

	if err != nil {
		return nil, fmt.Errorf("connect region %q: %w", rc.Name, err)
	}

	if cfg.Otel.Addr != "" {
		if err := db.Use(otelgorm.NewPlugin()); err != nil {
			zap.L().Error("[DB] failed to register db telemetry", zap.String("region", rc.Name), zap.Error(err))
		}
	}

	if cfg.AppEnv == "production" {
		if err := db.Use(prometheus.New(prometheus.Config{
			DBName:          rc.Name,
			RefreshInterval: 15,
		})); err != nil {
			zap.L().Error("[DB] failed to register db metrics", zap.String("region", rc.Name), zap.Error(err))
		}
	}

	zap.L().Info("[DB] store connection configured", zap.String("region", rc.Name), zap.String("driver", rc.Driver))

	return db, nil
}
