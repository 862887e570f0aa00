// Package membership assigns project roles to joining users and gates
// the project launch on role coverage.
package membership

import (
	"errors"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
	"github.com/teambrains/teambrains-backend/pkg/apperror"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// IsMemberOrCreator reports whether the user holds the relationship to
// the project required to review its work.
func (s *Service) IsMemberOrCreator(projectID, userID uint) (bool, error) {
	var project model.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperror.Newf(apperror.KindNotFound, "project %d does not exist", projectID)
		}
		return false, apperror.Wrap(apperror.KindInternal, "load project", err)
	}
	if project.CreatorID == userID {
		return true, nil
	}
	var count int64
	err := s.db.Model(&model.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count).Error
	if err != nil {
		return false, apperror.Wrap(apperror.KindInternal, "load membership", err)
	}
	return count > 0, nil
}

// Roles returns the role labels currently held in the project.
func (s *Service) Roles(projectID uint) ([]string, error) {
	var roles []string
	err := s.db.Model(&model.ProjectMember{}).
		Where("project_id = ?", projectID).
		Pluck("role", &roles).Error
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "load member roles", err)
	}
	return roles, nil
}

// pickFullStackRole resolves the role for a FullStack candidate given
// the roles already taken. A second FullStack falls back to whichever
// of the split roles is free, preferring BackEnd.
func pickFullStackRole(taken []string) (string, error) {
	fullstack := lo.Contains(taken, model.DevRoleFullStack)
	backend := lo.Contains(taken, model.DevRoleBackEnd)
	frontend := lo.Contains(taken, model.DevRoleFrontEnd)

	if !fullstack {
		return model.DevRoleFullStack, nil
	}
	switch {
	case backend && frontend:
		return "", apperror.New(apperror.KindConflict, "all developer roles are already taken in this project")
	case backend:
		return model.DevRoleFrontEnd, nil
	default:
		return model.DevRoleBackEnd, nil
	}
}

// Join adds the user to the project under a role derived from their
// preferred developer type. Specialized roles hold at most one member;
// a FullStack candidate may be re-slotted to cover a free split role.
func (s *Service) Join(projectID, userID uint) (*model.ProjectMember, error) {
	var user model.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Newf(apperror.KindNotFound, "user %d does not exist", userID)
		}
		return nil, apperror.Wrap(apperror.KindInternal, "load user", err)
	}
	var project model.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Newf(apperror.KindNotFound, "project %d does not exist", projectID)
		}
		return nil, apperror.Wrap(apperror.KindInternal, "load project", err)
	}

	var existing int64
	err := s.db.Model(&model.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&existing).Error
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "load membership", err)
	}
	if existing > 0 {
		return nil, apperror.New(apperror.KindConflict, "user is already a member of this project")
	}

	role := strings.TrimSpace(user.DeveloperType)
	if role == "" {
		return nil, apperror.New(apperror.KindInvalidArgument, "user has no developer type set")
	}

	taken, err := s.Roles(projectID)
	if err != nil {
		return nil, err
	}
	if role == model.DevRoleFullStack {
		role, err = pickFullStackRole(taken)
		if err != nil {
			return nil, err
		}
	} else if lo.Contains(taken, role) {
		return nil, apperror.Newf(apperror.KindConflict, "the role %s is already taken in this project", role)
	}

	member := &model.ProjectMember{ProjectID: projectID, UserID: userID, Role: role}
	if err := s.db.Create(member).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "create membership", err)
	}
	return member, nil
}

// Leave removes the user's membership. CV entries created earlier are
// kept; leaving a project does not rewrite history.
func (s *Service) Leave(projectID, userID uint) error {
	var project model.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Newf(apperror.KindNotFound, "project %d does not exist", projectID)
		}
		return apperror.Wrap(apperror.KindInternal, "load project", err)
	}
	res := s.db.Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&model.ProjectMember{})
	if res.Error != nil {
		return apperror.Wrap(apperror.KindInternal, "delete membership", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.New(apperror.KindConflict, "user is not a member of this project")
	}
	return nil
}

// Start moves the project to in_progress once the member roles cover
// development: one FullStack, or both FrontEnd and BackEnd.
func (s *Service) Start(projectID uint) (*model.Project, error) {
	var project model.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Newf(apperror.KindNotFound, "project %d does not exist", projectID)
		}
		return nil, apperror.Wrap(apperror.KindInternal, "load project", err)
	}
	roles, err := s.Roles(projectID)
	if err != nil {
		return nil, err
	}

	fullstack := lo.Contains(roles, model.DevRoleFullStack)
	backend := lo.Contains(roles, model.DevRoleBackEnd)
	frontend := lo.Contains(roles, model.DevRoleFrontEnd)

	if !fullstack && !(backend && frontend) {
		var missing []string
		if !backend {
			missing = append(missing, model.DevRoleBackEnd)
		}
		if !frontend {
			missing = append(missing, model.DevRoleFrontEnd)
		}
		return nil, apperror.Newf(apperror.KindFailedPrecondition,
			"the project cannot start, missing roles: %s (or one FullStack)", strings.Join(missing, ", "))
	}

	project.Status = model.ProjectInProgress
	if err := s.db.Model(&project).Update("status", project.Status).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "update project status", err)
	}
	return &project, nil
}
