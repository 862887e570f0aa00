package model

import (
	"time"

	"gorm.io/gorm"
)

// TaskValidation is one entry of the append-only validation ledger for
// a task. Rows are inserted and read, never updated or deleted; the
// current status of a task is the entry with the latest timestamp.
type TaskValidation struct {
	gorm.Model
	TaskID      uint             `gorm:"not null;index"`
	Status      ValidationStatus `gorm:"type:varchar(50);not null"`
	Comment     *string          `gorm:"type:text"`
	ValidatorID uint             `gorm:"not null"`
	Validator   User
	Timestamp   time.Time        `gorm:"not null;index"`
}

// SubTaskValidation is the subtask-scoped variant of the ledger.
type SubTaskValidation struct {
	gorm.Model
	SubTaskID   uint             `gorm:"not null;index"`
	Status      ValidationStatus `gorm:"type:varchar(50);not null"`
	Feedback    *string          `gorm:"type:text"`
	ValidatorID uint             `gorm:"not null"`
	Validator   User
	Timestamp   time.Time        `gorm:"not null;index"`
}
