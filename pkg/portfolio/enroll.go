// Package portfolio creates CV entries from project participation.
// Two paths coexist: join-time enrollment (active membership) and
// completion-triggered auto-enrollment; the (user, project) uniqueness
// invariant makes them converge on a single entry.
package portfolio

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
	"github.com/teambrains/teambrains-backend/pkg/apperror"
	"github.com/teambrains/teambrains-backend/pkg/logutils"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) hasEntry(projectID, userID uint) (bool, error) {
	var count int64
	err := s.db.Model(&model.CVProject{}).
		Where("user_id = ? AND project_id = ?", userID, projectID).
		Count(&count).Error
	if err != nil {
		return false, apperror.Wrap(apperror.KindInternal, "load cv entries", err)
	}
	return count > 0, nil
}

func (s *Service) newEntry(project *model.Project, userID uint, role string, teamSize int) *model.CVProject {
	now := time.Now().UTC()
	return &model.CVProject{
		UserID:      userID,
		ProjectID:   project.ID,
		Role:        role,
		StartDate:   project.CreatedAt,
		EndDate:     &now,
		TeamSize:    teamSize,
		Description: project.Description,
	}
}

// EnrollMember writes the join-time CV entry for one user. Fails with
// Conflict when an entry for the (user, project) pair already exists.
func (s *Service) EnrollMember(projectID, userID uint, role string) (*model.CVProject, error) {
	var project model.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Newf(apperror.KindNotFound, "project %d does not exist", projectID)
		}
		return nil, apperror.Wrap(apperror.KindInternal, "load project", err)
	}

	exists, err := s.hasEntry(projectID, userID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperror.New(apperror.KindConflict, "this project is already in the user's CV")
	}

	var teamSize int64
	if err := s.db.Model(&model.ProjectMember{}).
		Where("project_id = ?", projectID).Count(&teamSize).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "count members", err)
	}

	entry := s.newEntry(&project, userID, role, int(teamSize))
	if err := s.db.Create(entry).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "create cv entry", err)
	}
	return entry, nil
}

// EnrollOnCompletion checks whether every task of the project reached
// 100% and, if so, enrolls each member who does not have a CV entry
// yet. Idempotent: already-enrolled members are left alone. Enrollment
// is best effort per member; a failure for one is logged and skipped
// so it never blocks the others or the triggering request.
func (s *Service) EnrollOnCompletion(projectID uint) (int, error) {
	var project model.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperror.Newf(apperror.KindNotFound, "project %d does not exist", projectID)
		}
		return 0, apperror.Wrap(apperror.KindInternal, "load project", err)
	}

	var total, completed int64
	if err := s.db.Model(&model.Task{}).Where("project_id = ?", projectID).
		Count(&total).Error; err != nil {
		return 0, apperror.Wrap(apperror.KindInternal, "count tasks", err)
	}
	if total == 0 {
		return 0, nil
	}
	if err := s.db.Model(&model.Task{}).
		Where("project_id = ? AND percent_completion = 100", projectID).
		Count(&completed).Error; err != nil {
		return 0, apperror.Wrap(apperror.KindInternal, "count completed tasks", err)
	}
	if completed < total {
		return 0, nil
	}

	var members []model.ProjectMember
	if err := s.db.Where("project_id = ?", projectID).Find(&members).Error; err != nil {
		return 0, apperror.Wrap(apperror.KindInternal, "load members", err)
	}

	enrolled := 0
	for i := range members {
		member := &members[i]
		exists, err := s.hasEntry(projectID, member.UserID)
		if err != nil {
			logutils.Log.WithFields(logutils.Fields{
				"project": projectID, "user": member.UserID,
			}).Warn("cv enrollment check failed, skipping member: ", err)
			continue
		}
		if exists || member.Role == "" {
			continue
		}
		entry := s.newEntry(&project, member.UserID, member.Role, len(members))
		if err := s.db.Create(entry).Error; err != nil {
			logutils.Log.WithFields(logutils.Fields{
				"project": projectID, "user": member.UserID,
			}).Warn("cv enrollment failed, skipping member: ", err)
			continue
		}
		enrolled++
	}
	return enrolled, nil
}
