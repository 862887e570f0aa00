package model

import "gorm.io/gorm"

type Project struct {
	gorm.Model
	Name        string        `gorm:"type:varchar(120);not null"`
	Slug        string        `gorm:"uniqueIndex;type:varchar(255);not null"`
	Status      ProjectStatus `gorm:"type:varchar(50);not null"`
	Description *string       `gorm:"type:text"`
	CreatorID   uint          `gorm:"not null;index"`
	Creator     User
	IsPublic    bool `gorm:"not null;default:false"`

	// Progress is owned by the progress aggregator: the arithmetic mean
	// of the tasks' completion percentages, 0 when there are no tasks.
	// Nothing else writes this column.
	Progress float64 `gorm:"not null;default:0"`

	Members []ProjectMember `gorm:"constraint:OnDelete:CASCADE"`
	Tasks   []Task          `gorm:"constraint:OnDelete:CASCADE"`
}

// ProjectMember associates a user with a project under a role label.
// One row per (project, user).
type ProjectMember struct {
	gorm.Model
	ProjectID uint   `gorm:"uniqueIndex:idx_project_user;not null"`
	UserID    uint   `gorm:"uniqueIndex:idx_project_user;not null"`
	User      User
	Role      string `gorm:"type:varchar(100);not null"`
}
