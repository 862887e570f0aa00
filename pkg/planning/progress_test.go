package planning

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Project{}, &model.ProjectMember{},
		&model.Task{}, &model.SubTask{},
	))
	return db
}

func userSeq(db *gorm.DB) int64 {
	var n int64
	db.Model(&model.User{}).Count(&n)
	return n + 1
}

func newProject(t *testing.T, db *gorm.DB, percents ...int) *model.Project {
	t.Helper()
	seq := userSeq(db)
	user := model.User{UUID: fmt.Sprintf("u-%d", seq), Email: fmt.Sprintf("creator%d@test.dev", seq), Password: "x", FirstName: "Ada", LastName: "L", Role: model.RoleStudent}
	require.NoError(t, db.Create(&user).Error)
	project := model.Project{Name: "p", Slug: fmt.Sprintf("p-%d", seq), Status: model.ProjectInProgress, CreatorID: user.ID}
	require.NoError(t, db.Create(&project).Error)
	for i, p := range percents {
		task := model.Task{
			Title:             "t",
			DueDate:           time.Now().Add(time.Duration(i) * time.Hour),
			PercentCompletion: p,
			ProjectID:         project.ID,
			Priority:          model.PriorityMedium,
		}
		require.NoError(t, db.Create(&task).Error)
	}
	return &project
}

func TestRecomputeProjectProgress(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	t.Run("mean of task percentages", func(t *testing.T) {
		project := newProject(t, db, 40, 100)
		progress, err := svc.RecomputeProjectProgress(project.ID)
		require.NoError(t, err)
		assert.InDelta(t, 70.0, progress, 1e-9)

		var stored model.Project
		require.NoError(t, db.First(&stored, project.ID).Error)
		assert.InDelta(t, 70.0, stored.Progress, 1e-9)
	})

	t.Run("no tasks means zero", func(t *testing.T) {
		project := newProject(t, db)
		progress, err := svc.RecomputeProjectProgress(project.ID)
		require.NoError(t, err)
		assert.Zero(t, progress)
	})

	t.Run("adding a fresh task dilutes the mean", func(t *testing.T) {
		project := newProject(t, db, 40, 100)
		task := model.Task{Title: "t3", DueDate: time.Now(), ProjectID: project.ID, Priority: model.PriorityMedium}
		require.NoError(t, db.Create(&task).Error)
		progress, err := svc.RecomputeProjectProgress(project.ID)
		require.NoError(t, err)
		assert.InDelta(t, 140.0/3.0, progress, 1e-9)
	})

	t.Run("idempotent", func(t *testing.T) {
		project := newProject(t, db, 30, 60)
		first, err := svc.RecomputeProjectProgress(project.ID)
		require.NoError(t, err)
		second, err := svc.RecomputeProjectProgress(project.ID)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("unknown project", func(t *testing.T) {
		_, err := svc.RecomputeProjectProgress(99999)
		assert.Error(t, err)
	})
}

func TestSetTaskCompletion(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	project := newProject(t, db, 10)

	var task model.Task
	require.NoError(t, db.Where("project_id = ?", project.ID).First(&task).Error)

	t.Run("in range", func(t *testing.T) {
		updated, err := svc.SetTaskCompletion(task.ID, 55)
		require.NoError(t, err)
		assert.Equal(t, 55, updated.PercentCompletion)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := svc.SetTaskCompletion(task.ID, 101)
		assert.Error(t, err)
		_, err = svc.SetTaskCompletion(task.ID, -1)
		assert.Error(t, err)
	})

	t.Run("unknown task", func(t *testing.T) {
		_, err := svc.SetTaskCompletion(99999, 50)
		assert.Error(t, err)
	})
}

func TestApplyValidationToTask(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	setup := func(percent int) *model.Task {
		project := newProject(t, db, percent)
		var task model.Task
		require.NoError(t, db.Where("project_id = ?", project.ID).First(&task).Error)
		return &task
	}

	t.Run("validated forces 100", func(t *testing.T) {
		task := setup(73)
		require.NoError(t, svc.ApplyValidationToTask(task, model.ValidationValidated))
		assert.Equal(t, 100, task.PercentCompletion)
	})

	t.Run("rejected at 100 demotes to 90", func(t *testing.T) {
		task := setup(100)
		require.NoError(t, svc.ApplyValidationToTask(task, model.ValidationRejected))
		assert.Equal(t, DemotedCompletion, task.PercentCompletion)

		var stored model.Task
		require.NoError(t, db.First(&stored, task.ID).Error)
		assert.Equal(t, DemotedCompletion, stored.PercentCompletion)
	})

	t.Run("rejected below 100 leaves the percentage alone", func(t *testing.T) {
		task := setup(60)
		require.NoError(t, svc.ApplyValidationToTask(task, model.ValidationRejected))
		assert.Equal(t, 60, task.PercentCompletion)
	})

	t.Run("pending is a no-op", func(t *testing.T) {
		task := setup(45)
		require.NoError(t, svc.ApplyValidationToTask(task, model.ValidationPending))
		assert.Equal(t, 45, task.PercentCompletion)
	})

	t.Run("demotion target is configurable", func(t *testing.T) {
		task := setup(100)
		custom := NewService(db)
		custom.Demoted = 75
		require.NoError(t, custom.ApplyValidationToTask(task, model.ValidationRejected))
		assert.Equal(t, 75, task.PercentCompletion)
	})
}

func TestRejectionMovesProjectProgressDown(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	project := newProject(t, db, 100, 100)

	progress, err := svc.RecomputeProjectProgress(project.ID)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, progress, 1e-9)

	var task model.Task
	require.NoError(t, db.Where("project_id = ?", project.ID).First(&task).Error)
	require.NoError(t, svc.ApplyValidationToTask(&task, model.ValidationRejected))

	progress, err = svc.RecomputeProjectProgress(project.ID)
	require.NoError(t, err)
	assert.InDelta(t, 95.0, progress, 1e-9)
}
