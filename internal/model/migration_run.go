package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// MigrationRun is the persisted summary of one catalog migration pass.
// Status moves "running" → "success" | "partial_failure" | "aborted".
type MigrationRun struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Pass       string         `gorm:"not null;index"`
	DryRun     bool           `gorm:"not null;default:false"`
	Status     string         `gorm:"not null;default:'running'"`
	Inspected  int            `gorm:"not null;default:0"`
	Updated    int            `gorm:"not null;default:0"`
	Skipped    int            `gorm:"not null;default:0"`
	Failed     int            `gorm:"not null;default:0"`
	FailedIDs  pq.StringArray `gorm:"type:text[]"`
	LastError  *string
	StartedAt  time.Time `gorm:"not null"`
	FinishedAt *time.Time
}

func (MigrationRun) TableName() string { return "catalog_migration_runs" }
