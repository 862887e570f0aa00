// Package dao owns schema migrations. Each released schema change gets
// its own gormigrate ID; the initial migration auto-migrates the full
// model set.
package dao

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
)

func allModels() []any {
	return []any{
		&model.User{},
		&model.Project{},
		&model.ProjectMember{},
		&model.Task{},
		&model.SubTask{},
		&model.TaskStudent{},
		&model.TaskValidation{},
		&model.SubTaskValidation{},
		&model.CVProject{},
	}
}

// Migrate applies pending migrations. Safe to run on every start.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202408_init",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(allModels()...)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(allModels()...)
			},
		},
	})
	m.InitSchema(func(tx *gorm.DB) error {
		return tx.AutoMigrate(allModels()...)
	})
	return m.Migrate()
}
