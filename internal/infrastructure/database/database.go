package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"

	"chathistory-server/internal/infrastructure/logger"
)

// SchemaName is the Postgres schema holding all service tables.
const SchemaName = "chat_history"

var SchemaRegistry []interface{}

func RegisterSchemaForAutoMigrate(models ...interface{}) {
	SchemaRegistry = append(SchemaRegistry, models...)
}

// Config holds database configuration.
type Config struct {
	DatabaseURL string
	// ReadReplicaURL, when set, routes read queries to the replica.
	ReadReplicaURL string
	MaxIdle        int
	MaxOpen        int
	MaxLifetime    time.Duration
	LogLevel       gormlogger.LogLevel
}

// Connect creates a new database connection with the given configuration.
func Connect(cfg Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   SchemaName + ".",
			SingularTable: false,
		},
		Logger: gormlogger.Default.LogMode(cfg.LogLevel),
		// Surfaces unique violations as gorm.ErrDuplicatedKey so repositories
		// can map them to conflicts.
		TranslateError: true,
	})
	if err != nil {
		log := logger.GetLogger()
		log.Error().Err(err).Msg("unable to connect to database")
		return nil, err
	}

	if cfg.ReadReplicaURL != "" {
		err = db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: []gorm.Dialector{postgres.Open(cfg.ReadReplicaURL)},
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			return nil, fmt.Errorf("register read replica: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)

	log := logger.GetLogger()
	log.Info().Msg("Successfully connected to database")
	return db, nil
}

// NewDB creates a new database connection using DSNs with pool defaults.
func NewDB(dsn, readReplicaDSN string) (*gorm.DB, error) {
	return Connect(Config{
		DatabaseURL:    dsn,
		ReadReplicaURL: readReplicaDSN,
		MaxIdle:        10,
		MaxOpen:        25,
		MaxLifetime:    1 * time.Hour,
		LogLevel:       gormlogger.Silent,
	})
}
