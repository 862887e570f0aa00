package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
	"github.com/teambrains/teambrains-backend/pkg/apperror"
	"github.com/teambrains/teambrains-backend/pkg/planning"
	"github.com/teambrains/teambrains-backend/pkg/portfolio"
)

type fixture struct {
	db       *gorm.DB
	svc      *Service
	tracker  *planning.Service
	creator  *model.User
	member   *model.User
	outsider *model.User
	project  *model.Project
	task     *model.Task
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Project{}, &model.ProjectMember{},
		&model.Task{}, &model.SubTask{},
		&model.TaskValidation{}, &model.SubTaskValidation{},
		&model.CVProject{},
	))

	creator := model.User{UUID: "u-1", Email: "creator@test.dev", Password: "x", FirstName: "C", LastName: "R", Role: model.RoleBusinessman}
	member := model.User{UUID: "u-2", Email: "member@test.dev", Password: "x", FirstName: "M", LastName: "B", Role: model.RoleStudent}
	outsider := model.User{UUID: "u-3", Email: "outsider@test.dev", Password: "x", FirstName: "O", LastName: "U", Role: model.RoleStudent}
	require.NoError(t, db.Create(&creator).Error)
	require.NoError(t, db.Create(&member).Error)
	require.NoError(t, db.Create(&outsider).Error)

	project := model.Project{Name: "p", Slug: "p", Status: model.ProjectInProgress, CreatorID: creator.ID}
	require.NoError(t, db.Create(&project).Error)
	require.NoError(t, db.Create(&model.ProjectMember{
		ProjectID: project.ID, UserID: member.ID, Role: model.DevRoleFullStack,
	}).Error)

	task := model.Task{Title: "t", DueDate: time.Now(), ProjectID: project.ID, Priority: model.PriorityMedium}
	require.NoError(t, db.Create(&task).Error)

	tracker := planning.NewService(db)
	return &fixture{
		db: db, svc: NewService(db, tracker), tracker: tracker,
		creator: &creator, member: &member, outsider: &outsider,
		project: &project, task: &task,
	}
}

func TestRecordTaskValidation(t *testing.T) {
	t.Run("validated forces the task to 100", func(t *testing.T) {
		f := newFixture(t)
		entry, task, err := f.svc.RecordTaskValidation(f.task.ID, f.creator.ID, model.ValidationValidated, nil)
		require.NoError(t, err)
		assert.Equal(t, model.ValidationValidated, entry.Status)
		assert.Equal(t, 100, task.PercentCompletion)
	})

	t.Run("member may validate too", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.svc.RecordTaskValidation(f.task.ID, f.member.ID, model.ValidationPending, nil)
		require.NoError(t, err)
	})

	t.Run("outsider is forbidden", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.svc.RecordTaskValidation(f.task.ID, f.outsider.ID, model.ValidationValidated, nil)
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
	})

	t.Run("invalid status", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.svc.RecordTaskValidation(f.task.ID, f.creator.ID, "approved", nil)
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindInvalidArgument))
	})

	t.Run("unknown task", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.svc.RecordTaskValidation(99999, f.creator.ID, model.ValidationValidated, nil)
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})
}

func TestLedgerIsAppendOnly(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.RecordTaskValidation(f.task.ID, f.creator.ID, model.ValidationValidated, nil)
	require.NoError(t, err)
	_, _, err = f.svc.RecordTaskValidation(f.task.ID, f.creator.ID, model.ValidationRejected, nil)
	require.NoError(t, err)

	history, err := f.svc.TaskHistory(f.task.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	// Newest first; the earlier decision is still there, untouched.
	assert.Equal(t, model.ValidationRejected, history[0].Status)
	assert.Equal(t, model.ValidationValidated, history[1].Status)
}

func TestLatestTaskValidation(t *testing.T) {
	f := newFixture(t)

	t.Run("nil when never reviewed", func(t *testing.T) {
		last, err := f.svc.LatestTaskValidation(f.task.ID)
		require.NoError(t, err)
		assert.Nil(t, last)
	})

	t.Run("latest by timestamp, not by insertion order", func(t *testing.T) {
		older := model.TaskValidation{
			TaskID: f.task.ID, Status: model.ValidationRejected,
			ValidatorID: f.creator.ID, Timestamp: time.Now().UTC().Add(-time.Hour),
		}
		newer := model.TaskValidation{
			TaskID: f.task.ID, Status: model.ValidationValidated,
			ValidatorID: f.creator.ID, Timestamp: time.Now().UTC(),
		}
		require.NoError(t, f.db.Create(&newer).Error)
		require.NoError(t, f.db.Create(&older).Error)

		last, err := f.svc.LatestTaskValidation(f.task.ID)
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.Equal(t, model.ValidationValidated, last.Status)
		assert.Equal(t, f.creator.UUID, last.Validator.UUID)
	})
}

func TestTaskState(t *testing.T) {
	rejected := &model.TaskValidation{Status: model.ValidationRejected}

	tests := []struct {
		name    string
		percent int
		last    *model.TaskValidation
		want    DerivedState
	}{
		{"untouched task", 0, nil, StateNotStarted},
		{"halfway", 50, nil, StateInProgress},
		{"finished but never reviewed", 100, nil, StateAwaitingDecision},
		{"finished and validated", 100, &model.TaskValidation{Status: model.ValidationValidated}, StateValidated},
		{"finished and pending review", 100, &model.TaskValidation{Status: model.ValidationPending}, StatePending},
		// A rejection demotes the percentage, so the task reads as
		// in progress again even though the ledger says rejected.
		{"demoted after rejection", planning.DemotedCompletion, rejected, StateInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &model.Task{PercentCompletion: tt.percent}
			assert.Equal(t, tt.want, TaskState(task, tt.last))
		})
	}
}

func TestRecordSubTaskValidation(t *testing.T) {
	f := newFixture(t)
	subtask := model.SubTask{
		Title: "s", TaskID: f.task.ID, Priority: model.PriorityMedium,
		Status: model.SubTaskDone, PercentCompletion: 100,
	}
	require.NoError(t, f.db.Create(&subtask).Error)

	feedback := "needs a retry on timeout"
	entry, updated, err := f.svc.RecordSubTaskValidation(subtask.ID, f.creator.ID, model.ValidationRejected, &feedback)
	require.NoError(t, err)
	assert.Equal(t, model.ValidationRejected, entry.Status)
	assert.Equal(t, planning.DemotedCompletion, updated.PercentCompletion)
	assert.Equal(t, model.SubTaskRejected, updated.Status)

	last, err := f.svc.LatestSubTaskValidation(subtask.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	require.NotNil(t, last.Feedback)
	assert.Equal(t, feedback, *last.Feedback)

	t.Run("outsider is forbidden on subtasks too", func(t *testing.T) {
		_, _, err := f.svc.RecordSubTaskValidation(subtask.ID, f.outsider.ID, model.ValidationValidated, nil)
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
	})
}

// The full review cycle: finish, validate, reject, and check that the
// cached percentages, the project progress and the CV entries all move
// together while the ledger only ever grows.
func TestReviewCycle(t *testing.T) {
	f := newFixture(t)

	// The member finishes the task.
	_, err := f.tracker.SetTaskCompletion(f.task.ID, 100)
	require.NoError(t, err)

	// The creator validates: 100 stays, project progress follows.
	_, task, err := f.svc.RecordTaskValidation(f.task.ID, f.creator.ID, model.ValidationValidated, nil)
	require.NoError(t, err)
	assert.Equal(t, 100, task.PercentCompletion)

	progress, err := f.tracker.RecomputeProjectProgress(f.project.ID)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, progress, 1e-9)

	enrolled, err := portfolio.NewService(f.db).EnrollOnCompletion(f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, enrolled)

	// A later rejection demotes the task and drags the progress down,
	// but the CV entry stays: enrollment is never retracted.
	_, task, err = f.svc.RecordTaskValidation(f.task.ID, f.creator.ID, model.ValidationRejected, nil)
	require.NoError(t, err)
	assert.Equal(t, planning.DemotedCompletion, task.PercentCompletion)

	progress, err = f.tracker.RecomputeProjectProgress(f.project.ID)
	require.NoError(t, err)
	assert.InDelta(t, float64(planning.DemotedCompletion), progress, 1e-9)

	var entries int64
	require.NoError(t, f.db.Model(&model.CVProject{}).Where("project_id = ?", f.project.ID).Count(&entries).Error)
	assert.EqualValues(t, 1, entries)

	history, err := f.svc.TaskHistory(f.task.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
