// Package planning owns task completion tracking and project progress
// aggregation. All methods expect to run inside the caller's request
// transaction so the tracker, the aggregator and any enrollment side
// effects commit or roll back together.
package planning

import (
	"errors"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
	"github.com/teambrains/teambrains-backend/pkg/apperror"
)

// DemotedCompletion is the percentage a fully completed task falls back
// to when a reviewer rejects it. The value comes from the legacy
// platform; it deliberately signals "needs rework" without resetting
// the task. Override via Service.Demoted (config workflow.rejectedCompletion).
const DemotedCompletion = 90

type Service struct {
	db *gorm.DB

	// Demoted is applied on a rejected validation when the subject sat
	// at 100%. Rejections never touch subjects below 100%.
	Demoted int
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, Demoted: DemotedCompletion}
}

// SetTaskCompletion sets the cached percentage of a task directly,
// used for manual progress edits.
func (s *Service) SetTaskCompletion(taskID uint, percent int) (*model.Task, error) {
	if percent < 0 || percent > 100 {
		return nil, apperror.Newf(apperror.KindInvalidArgument, "completion percentage %d is out of range [0, 100]", percent)
	}
	var task model.Task
	if err := s.db.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Newf(apperror.KindNotFound, "task %d does not exist", taskID)
		}
		return nil, apperror.Wrap(apperror.KindInternal, "load task", err)
	}
	task.PercentCompletion = percent
	if err := s.db.Model(&task).Update("percent_completion", percent).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "update task completion", err)
	}
	return &task, nil
}

// applyOutcome is the validation-outcome policy:
// validated => 100, rejected => demote 100 to Demoted (others stay),
// pending => unchanged.
func (s *Service) applyOutcome(percent int, status model.ValidationStatus) int {
	switch status {
	case model.ValidationValidated:
		return 100
	case model.ValidationRejected:
		if percent == 100 {
			return s.Demoted
		}
	}
	return percent
}

// ApplyValidationToTask derives and persists the task's cached
// percentage from a validation outcome.
func (s *Service) ApplyValidationToTask(task *model.Task, status model.ValidationStatus) error {
	next := s.applyOutcome(task.PercentCompletion, status)
	if next == task.PercentCompletion {
		return nil
	}
	task.PercentCompletion = next
	if err := s.db.Model(task).Update("percent_completion", next).Error; err != nil {
		return apperror.Wrap(apperror.KindInternal, "update task completion", err)
	}
	return nil
}

// ApplyValidationToSubTask updates the subtask's cached percentage and
// denormalized status from a validation outcome.
func (s *Service) ApplyValidationToSubTask(subtask *model.SubTask, status model.ValidationStatus) error {
	subtask.PercentCompletion = s.applyOutcome(subtask.PercentCompletion, status)
	subtask.Status = model.SubTaskStatus(status)
	err := s.db.Model(subtask).Updates(map[string]any{
		"percent_completion": subtask.PercentCompletion,
		"status":             subtask.Status,
	}).Error
	if err != nil {
		return apperror.Wrap(apperror.KindInternal, "update subtask", err)
	}
	return nil
}

// RecomputeProjectProgress recomputes and persists a project's progress
// as the mean of its tasks' completion percentages, 0 when the project
// has no tasks. Always a full recompute; the task sets are small and
// correctness beats memoization here.
func (s *Service) RecomputeProjectProgress(projectID uint) (float64, error) {
	var project model.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperror.Newf(apperror.KindNotFound, "project %d does not exist", projectID)
		}
		return 0, apperror.Wrap(apperror.KindInternal, "load project", err)
	}

	var percents []int
	if err := s.db.Model(&model.Task{}).Where("project_id = ?", projectID).
		Pluck("percent_completion", &percents).Error; err != nil {
		return 0, apperror.Wrap(apperror.KindInternal, "load task completions", err)
	}

	progress := 0.0
	if len(percents) > 0 {
		progress = float64(lo.Sum(percents)) / float64(len(percents))
	}

	if err := s.db.Model(&project).Update("progress", progress).Error; err != nil {
		return 0, apperror.Wrap(apperror.KindInternal, "update project progress", err)
	}
	return progress, nil
}
