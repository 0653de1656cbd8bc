package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"statsdb/models"
)

// Database wraps the gorm handle shared by all repositories
type Database struct {
	*gorm.DB

	log *zap.Logger
}

// New opens a connection for the given driver ("postgres" or "sqlite")
func New(driver, dsn string, log *zap.Logger) (*Database, error) {

	var dialector gorm.Dialector

	switch driver {

	case "postgres":
		dialector = postgres.Open(dsn)

	case "sqlite":
		dialector = sqlite.Open(dsn)

	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	if log == nil {
		log = zap.NewNop()
	}

	db, err := gorm.Open(dialector, &gorm.Config{

		Logger: newGormLogger(log),
	})

	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	sqlDB, err := db.DB()

	if err != nil {
		return nil, err
	}

	// Check if the connection is working
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to reach %s database: %w", driver, err)
	}

	return &Database{DB: db, log: log}, nil
}

// InitializeTables creates or updates all tables
func (db *Database) InitializeTables() error {

	if err := db.AutoMigrate(models.All()...); err != nil {

		db.log.Error("auto migration failed", zap.Error(err))

		return err
	}

	db.log.Info("All tables initialized successfully")

	return nil
}

// Close releases the underlying connection pool
func (db *Database) Close() error {

	sqlDB, err := db.DB.DB()

	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// dialect is the driver name used to pick SQL that differs between backends
func (db *Database) dialect() string {
	return db.Dialector.Name()
}
