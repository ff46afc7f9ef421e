// Package db provides the GORM-backed SQLite store for retrace.
package db

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: Events and screenshots
		{
			ID: "001_events",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Event{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&EventScreenshot{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("events", "event_screenshots")
			},
		},

		// Migration 002: Classification work queue
		{
			ID: "002_classify_queue",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&ClassifyQueueItem{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("classify_queue")
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run gormigrate migrations: %w", err)
	}

	return nil
}
