package infrastructure

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"chathistory-server/internal/config"
	"chathistory-server/internal/domain/conversation"
	"chathistory-server/internal/infrastructure/auth"
	"chathistory-server/internal/infrastructure/crontab"
	"chathistory-server/internal/infrastructure/database"
	"chathistory-server/internal/infrastructure/database/repository"
	"chathistory-server/internal/infrastructure/database/transaction"
	"chathistory-server/internal/infrastructure/logger"
)

// Infrastructure bundles the process-wide infrastructure components.
type Infrastructure struct {
	Config         *config.Config
	DB             *gorm.DB
	TokenValidator *auth.TokenValidator
	Crontab        *crontab.Crontab
	Logger         zerolog.Logger
}

func NewInfrastructure(
	cfg *config.Config,
	db *gorm.DB,
	tokenValidator *auth.TokenValidator,
	cron *crontab.Crontab,
	log zerolog.Logger,
) *Infrastructure {
	return &Infrastructure{
		Config:         cfg,
		DB:             db,
		TokenValidator: tokenValidator,
		Crontab:        cron,
		Logger:         log,
	}
}

// ProvideConfig returns the configuration loaded at process start.
func ProvideConfig() (*config.Config, error) {
	if cfg := config.GetGlobal(); cfg != nil {
		return cfg, nil
	}
	return config.Load()
}

// ProvideLogger configures the global logger from config.
func ProvideLogger(cfg *config.Config) (zerolog.Logger, error) {
	return logger.New(cfg.LogLevel, cfg.LogFormat)
}

// ProvideDatabase opens the database and applies pending migrations when
// AUTO_MIGRATE is enabled.
func ProvideDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.NewDB(cfg.DatabaseURL, cfg.DatabaseReadURL)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// ProvideTokenValidator builds the bearer token validator from config.
func ProvideTokenValidator(cfg *config.Config, log zerolog.Logger) (*auth.TokenValidator, error) {
	return auth.NewTokenValidator([]byte(cfg.AuthTokenSecret), cfg.AuthIssuer, cfg.AuthAudience, cfg.AuthClockSkew, log)
}

// ProvideTxRunner exposes the transaction database as the domain's
// transaction boundary.
func ProvideTxRunner(db *transaction.Database) conversation.TxRunner {
	return db
}

// InfrastructureProvider wires infrastructure components.
var InfrastructureProvider = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	ProvideDatabase,
	ProvideTokenValidator,
	ProvideTxRunner,
	transaction.NewDatabase,
	crontab.NewCrontab,
	repository.RepositoryProvider,
	NewInfrastructure,
)
