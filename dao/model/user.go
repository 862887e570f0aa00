package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User is the basic entity of the platform.
type User struct {
	gorm.Model
	UUID      string   `gorm:"uniqueIndex;type:varchar(36);not null;comment:public identifier exposed in tokens and URLs"`
	Email     string   `gorm:"uniqueIndex;type:varchar(120);not null"`
	Password  string   `gorm:"type:text;not null;comment:bcrypt hash"`
	FirstName string   `gorm:"type:varchar(100);not null"`
	LastName  string   `gorm:"type:varchar(100);not null"`
	Role      UserRole `gorm:"type:varchar(50);not null;comment:platform role (student, businessman, school_admin, admin)"`

	// DeveloperType drives role assignment when joining a project
	// (FrontEnd, BackEnd, FullStack, Designer or free-form).
	DeveloperType string                      `gorm:"type:varchar(100)"`
	Technologies  datatypes.JSONSlice[string] `gorm:"comment:declared technology stack"`

	// CV profile fields.
	Studies      *string `gorm:"type:text"`
	Ambitions    *string `gorm:"type:text"`
	LinkedinURL  *string `gorm:"type:varchar(255)"`
	PortfolioURL *string `gorm:"type:varchar(255)"`
	GithubURL    *string `gorm:"type:varchar(255)"`

	Memberships []ProjectMember
	CVProjects  []CVProject
}

// DisplayName is the "Prenom Nom" form shown next to validations.
func (u *User) DisplayName() string {
	return u.FirstName + " " + u.LastName
}
