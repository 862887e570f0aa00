package portfolio

import (
	"fmt"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
	"github.com/teambrains/teambrains-backend/pkg/apperror"
)

type fixture struct {
	db      *gorm.DB
	project *model.Project
	members []*model.User
}

func newFixture(t *testing.T, roles ...string) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Project{}, &model.ProjectMember{},
		&model.Task{}, &model.CVProject{},
	))

	creator := model.User{UUID: "u-0", Email: "creator@test.dev", Password: "x", FirstName: "C", LastName: "R", Role: model.RoleBusinessman}
	require.NoError(t, db.Create(&creator).Error)
	description := "a platform project"
	project := model.Project{Name: "p", Slug: "p", Status: model.ProjectInProgress, CreatorID: creator.ID, Description: &description}
	require.NoError(t, db.Create(&project).Error)

	f := &fixture{db: db, project: &project}
	for i, role := range roles {
		user := model.User{
			UUID:      fmt.Sprintf("u-%d", i+1),
			Email:     fmt.Sprintf("member%d@test.dev", i+1),
			Password:  "x",
			FirstName: "M", LastName: fmt.Sprintf("%d", i+1),
			Role: model.RoleStudent,
		}
		require.NoError(t, db.Create(&user).Error)
		require.NoError(t, db.Create(&model.ProjectMember{
			ProjectID: project.ID, UserID: user.ID, Role: role,
		}).Error)
		f.members = append(f.members, &user)
	}
	return f
}

func (f *fixture) addTask(t *testing.T, percent int) *model.Task {
	t.Helper()
	task := model.Task{
		Title:             "t",
		DueDate:           time.Now(),
		PercentCompletion: percent,
		ProjectID:         f.project.ID,
		Priority:          model.PriorityMedium,
	}
	require.NoError(t, f.db.Create(&task).Error)
	return &task
}

func (f *fixture) entries(t *testing.T) []model.CVProject {
	t.Helper()
	var entries []model.CVProject
	require.NoError(t, f.db.Where("project_id = ?", f.project.ID).Find(&entries).Error)
	return entries
}

func TestEnrollMember(t *testing.T) {
	f := newFixture(t, model.DevRoleBackEnd)
	svc := NewService(f.db)

	entry, err := svc.EnrollMember(f.project.ID, f.members[0].ID, model.DevRoleBackEnd)
	require.NoError(t, err)
	assert.Equal(t, model.DevRoleBackEnd, entry.Role)
	assert.Equal(t, 1, entry.TeamSize)
	assert.Equal(t, f.project.Description, entry.Description)
	require.NotNil(t, entry.EndDate)

	t.Run("second entry for the same pair conflicts", func(t *testing.T) {
		_, err := svc.EnrollMember(f.project.ID, f.members[0].ID, model.DevRoleBackEnd)
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindConflict))
		assert.Len(t, f.entries(t), 1)
	})

	t.Run("unknown project", func(t *testing.T) {
		_, err := svc.EnrollMember(99999, f.members[0].ID, model.DevRoleBackEnd)
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})
}

func TestEnrollOnCompletion(t *testing.T) {
	t.Run("does nothing while a task is unfinished", func(t *testing.T) {
		f := newFixture(t, model.DevRoleBackEnd, model.DevRoleFrontEnd)
		f.addTask(t, 100)
		f.addTask(t, 80)

		enrolled, err := NewService(f.db).EnrollOnCompletion(f.project.ID)
		require.NoError(t, err)
		assert.Zero(t, enrolled)
		assert.Empty(t, f.entries(t))
	})

	t.Run("does nothing for a project without tasks", func(t *testing.T) {
		f := newFixture(t, model.DevRoleBackEnd)
		enrolled, err := NewService(f.db).EnrollOnCompletion(f.project.ID)
		require.NoError(t, err)
		assert.Zero(t, enrolled)
	})

	t.Run("enrolls every member when all tasks hit 100", func(t *testing.T) {
		f := newFixture(t, model.DevRoleBackEnd, model.DevRoleFrontEnd, model.DevRoleDesigner)
		f.addTask(t, 100)
		f.addTask(t, 100)

		enrolled, err := NewService(f.db).EnrollOnCompletion(f.project.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, enrolled)

		entries := f.entries(t)
		assert.Len(t, entries, 3)
		roles := lo.Map(entries, func(e model.CVProject, _ int) string { return e.Role })
		assert.ElementsMatch(t, []string{model.DevRoleBackEnd, model.DevRoleFrontEnd, model.DevRoleDesigner}, roles)
		for _, e := range entries {
			assert.Equal(t, 3, e.TeamSize)
		}
	})

	t.Run("idempotent across repeated completion triggers", func(t *testing.T) {
		f := newFixture(t, model.DevRoleBackEnd, model.DevRoleFrontEnd)
		f.addTask(t, 100)
		svc := NewService(f.db)

		enrolled, err := svc.EnrollOnCompletion(f.project.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, enrolled)

		enrolled, err = svc.EnrollOnCompletion(f.project.ID)
		require.NoError(t, err)
		assert.Zero(t, enrolled)
		assert.Len(t, f.entries(t), 2)
	})

	t.Run("members enrolled at join time are skipped, not duplicated", func(t *testing.T) {
		f := newFixture(t, model.DevRoleBackEnd, model.DevRoleFrontEnd)
		f.addTask(t, 100)
		svc := NewService(f.db)

		_, err := svc.EnrollMember(f.project.ID, f.members[0].ID, model.DevRoleBackEnd)
		require.NoError(t, err)

		enrolled, err := svc.EnrollOnCompletion(f.project.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, enrolled)
		assert.Len(t, f.entries(t), 2)
	})

	t.Run("members without a role are skipped", func(t *testing.T) {
		f := newFixture(t, model.DevRoleBackEnd, "")
		f.addTask(t, 100)

		enrolled, err := NewService(f.db).EnrollOnCompletion(f.project.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, enrolled)
	})
}
