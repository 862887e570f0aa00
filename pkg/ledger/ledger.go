// Package ledger is the append-only record of validation decisions for
// tasks and subtasks. Entries are written once and never touched again;
// the current status of a subject is a read-time derivation from the
// latest entry, combined with the cached completion percentage.
package ledger

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
	"github.com/teambrains/teambrains-backend/pkg/apperror"
	"github.com/teambrains/teambrains-backend/pkg/membership"
	"github.com/teambrains/teambrains-backend/pkg/planning"
)

// DerivedState is the read-side presentation state of a subject. The
// first three are completion-driven substates shown before any
// decision exists; the rest mirror the latest ledger entry.
type DerivedState string

const (
	StateNotStarted        DerivedState = "not_started"
	StateInProgress        DerivedState = "in_progress"
	StateAwaitingDecision  DerivedState = "completed_pending_validation"
	StateValidated         DerivedState = "validated"
	StateRejected          DerivedState = "rejected"
	StatePending           DerivedState = "pending"
)

type Service struct {
	db      *gorm.DB
	tracker *planning.Service
	members *membership.Service
}

func NewService(db *gorm.DB, tracker *planning.Service) *Service {
	return &Service{db: db, tracker: tracker, members: membership.NewService(db)}
}

func (s *Service) authorize(projectID, validatorID uint) error {
	ok, err := s.members.IsMemberOrCreator(projectID, validatorID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.New(apperror.KindForbidden, "you are not allowed to validate work in this project")
	}
	return nil
}

// RecordTaskValidation appends a decision for a task and applies the
// completion policy to the task's cached percentage in the same
// transaction. Prior entries are never edited.
func (s *Service) RecordTaskValidation(
	taskID, validatorID uint,
	status model.ValidationStatus,
	comment *string,
) (*model.TaskValidation, *model.Task, error) {
	if !status.IsValid() {
		return nil, nil, apperror.Newf(apperror.KindInvalidArgument,
			"the validation status must be 'validated', 'rejected' or 'pending', got %q", status)
	}

	var task model.Task
	if err := s.db.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperror.Newf(apperror.KindNotFound, "task %d does not exist", taskID)
		}
		return nil, nil, apperror.Wrap(apperror.KindInternal, "load task", err)
	}
	if err := s.authorize(task.ProjectID, validatorID); err != nil {
		return nil, nil, err
	}

	entry := &model.TaskValidation{
		TaskID:      taskID,
		Status:      status,
		Comment:     comment,
		ValidatorID: validatorID,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.db.Create(entry).Error; err != nil {
		return nil, nil, apperror.Wrap(apperror.KindInternal, "append validation", err)
	}
	if err := s.tracker.ApplyValidationToTask(&task, status); err != nil {
		return nil, nil, err
	}
	return entry, &task, nil
}

// RecordSubTaskValidation is the subtask-scoped variant.
func (s *Service) RecordSubTaskValidation(
	subtaskID, validatorID uint,
	status model.ValidationStatus,
	feedback *string,
) (*model.SubTaskValidation, *model.SubTask, error) {
	if !status.IsValid() {
		return nil, nil, apperror.Newf(apperror.KindInvalidArgument,
			"the validation status must be 'validated', 'rejected' or 'pending', got %q", status)
	}

	var subtask model.SubTask
	if err := s.db.First(&subtask, subtaskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperror.Newf(apperror.KindNotFound, "subtask %d does not exist", subtaskID)
		}
		return nil, nil, apperror.Wrap(apperror.KindInternal, "load subtask", err)
	}
	var task model.Task
	if err := s.db.First(&task, subtask.TaskID).Error; err != nil {
		return nil, nil, apperror.Wrap(apperror.KindInternal, "load parent task", err)
	}
	if err := s.authorize(task.ProjectID, validatorID); err != nil {
		return nil, nil, err
	}

	entry := &model.SubTaskValidation{
		SubTaskID:   subtaskID,
		Status:      status,
		Feedback:    feedback,
		ValidatorID: validatorID,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.db.Create(entry).Error; err != nil {
		return nil, nil, apperror.Wrap(apperror.KindInternal, "append validation", err)
	}
	if err := s.tracker.ApplyValidationToSubTask(&subtask, status); err != nil {
		return nil, nil, err
	}
	return entry, &subtask, nil
}

// LatestTaskValidation returns the most recent ledger entry for a task,
// or nil when the task has never been reviewed. "No validation yet" is
// a distinct state, not defaulted to pending.
func (s *Service) LatestTaskValidation(taskID uint) (*model.TaskValidation, error) {
	var entry model.TaskValidation
	err := s.db.Preload("Validator").
		Where("task_id = ?", taskID).
		Order("timestamp DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "load latest validation", err)
	}
	return &entry, nil
}

// LatestSubTaskValidation is the subtask-scoped variant.
func (s *Service) LatestSubTaskValidation(subtaskID uint) (*model.SubTaskValidation, error) {
	var entry model.SubTaskValidation
	err := s.db.Preload("Validator").
		Where("sub_task_id = ?", subtaskID).
		Order("timestamp DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "load latest validation", err)
	}
	return &entry, nil
}

// TaskHistory lists a task's ledger entries, newest first.
func (s *Service) TaskHistory(taskID uint) ([]model.TaskValidation, error) {
	var entries []model.TaskValidation
	err := s.db.Preload("Validator").
		Where("task_id = ?", taskID).
		Order("timestamp DESC").
		Find(&entries).Error
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "load validation history", err)
	}
	return entries, nil
}

// TaskState derives the presentation state of a task from its cached
// percentage and its latest ledger entry. Computed, never stored. The
// percentage wins below 100%, so a task demoted by a rejection reads
// as in_progress again.
func TaskState(task *model.Task, last *model.TaskValidation) DerivedState {
	switch {
	case task.PercentCompletion == 0:
		return StateNotStarted
	case task.PercentCompletion < 100:
		return StateInProgress
	case last == nil:
		return StateAwaitingDecision
	default:
		return DerivedState(last.Status)
	}
}
