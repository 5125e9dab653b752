// Package db opens the sqlite database that keeps claims and grants across
// restarts, and adapts it to the naming behaviour's store.
package db

import (
	"github.com/pkg/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gitlab.com/alternet/naming-service/models"
)

// Open opens (creating if needed) the database at path and migrates it.
// All access goes through one connection, so ":memory:" gives a private
// in-memory database.
func Open(path string) (*gorm.DB, error) {
	database, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "opening database %s", path)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, errors.Wrap(err, "opening connection pool")
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(&models.Claim{}, &models.Grant{}); err != nil {
		return nil, errors.Wrap(err, "migrating database")
	}

	if err := database.Use(otelgorm.NewPlugin()); err != nil {
		return nil, errors.Wrap(err, "installing tracing plugin")
	}

	zlog.Sugar().Debugf("opened database %s", path)
	return database, nil
}

// Close releases the underlying connection pool.
func Close(database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
