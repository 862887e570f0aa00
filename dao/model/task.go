package model

import (
	"time"

	"gorm.io/gorm"
)

type Task struct {
	gorm.Model
	Title       string    `gorm:"type:varchar(120);not null"`
	Description *string   `gorm:"type:text"`
	DueDate     time.Time `gorm:"not null"`

	// PercentCompletion is 0..100. Written by direct edits and by the
	// validation ledger side effect, never by anything else.
	PercentCompletion int `gorm:"not null;default:0"`

	AssigneeID *uint `gorm:"index"`
	Assignee   *User
	ProjectID  uint     `gorm:"not null;index"`
	Priority   Priority `gorm:"type:varchar(20);not null;default:medium"`
	Sprint     *string  `gorm:"type:varchar(100)"`

	FileURL  *string `gorm:"type:text"`
	FileName *string `gorm:"type:varchar(255)"`

	SubTasks    []SubTask        `gorm:"constraint:OnDelete:CASCADE"`
	Validations []TaskValidation `gorm:"constraint:OnDelete:CASCADE"`
	Students    []TaskStudent    `gorm:"constraint:OnDelete:CASCADE"`
}

type SubTask struct {
	gorm.Model
	Title             string        `gorm:"type:varchar(120);not null"`
	Description       *string       `gorm:"type:text"`
	DueDate           *time.Time
	PercentCompletion int           `gorm:"not null;default:0"`
	Priority          Priority      `gorm:"type:varchar(20);not null;default:medium"`
	Status            SubTaskStatus `gorm:"type:varchar(50);not null;default:pending"`
	TaskID            uint          `gorm:"not null;index"`
	AssignedStudentID *uint         `gorm:"index"`
	AssignedStudent   *User

	Validations []SubTaskValidation `gorm:"constraint:OnDelete:CASCADE"`
}

// TaskStudent is the many-to-many task assignment with a per-assignment
// role label, distinct from the single-assignee field on Task.
type TaskStudent struct {
	gorm.Model
	TaskID    uint   `gorm:"uniqueIndex:idx_task_student;not null"`
	StudentID uint   `gorm:"uniqueIndex:idx_task_student;not null"`
	Student   User   `gorm:"foreignKey:StudentID"`
	Role      string `gorm:"type:varchar(100);not null;default:developer"`
}
