package model

import (
	"time"

	"gorm.io/gorm"
)

// CVProject is a portfolio entry: a snapshot of a user's participation
// in a project. Created once per (user, project) either when the user
// joins or when the project reaches full completion. Auto-enrollment
// never deletes entries; only the owner may remove one.
type CVProject struct {
	gorm.Model
	UserID    uint `gorm:"uniqueIndex:idx_cv_user_project;not null"`
	ProjectID uint `gorm:"uniqueIndex:idx_cv_user_project;not null"`
	Project   Project

	Role      string    `gorm:"type:varchar(100);not null"`
	StartDate time.Time `gorm:"not null"`
	EndDate   *time.Time
	TeamSize  int     `gorm:"not null"`
	// Description is copied from the project at enrollment time so the
	// CV keeps reading the same even if the project changes later.
	Description *string `gorm:"type:text"`
}
