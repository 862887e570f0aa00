package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
	"github.com/teambrains/teambrains-backend/internal/resputil"
	"github.com/teambrains/teambrains-backend/internal/util"
	"github.com/teambrains/teambrains-backend/pkg/apperror"
	"github.com/teambrains/teambrains-backend/pkg/membership"
	"github.com/teambrains/teambrains-backend/pkg/portfolio"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewProjectMgr)
}

type ProjectMgr struct {
	name string
	db   *gorm.DB
}

func NewProjectMgr(conf *RegisterConfig) Manager {
	return &ProjectMgr{
		name: "projects",
		db:   conf.DB,
	}
}

func (mgr *ProjectMgr) GetName() string { return mgr.name }

func (mgr *ProjectMgr) RegisterPublic(g *gin.RouterGroup) {
	g.GET("", mgr.ListProjects)
	g.GET("/:slug", mgr.GetProject)
}

func (mgr *ProjectMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("", mgr.CreateProject)
	g.POST("/:id/join", mgr.JoinProject)
	g.POST("/:id/leave", mgr.LeaveProject)
	g.POST("/:id/start", mgr.StartProject)
	g.DELETE("/:id", mgr.DeleteProject)
}

func (mgr *ProjectMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	CreateProjectReq struct {
		Name        string              `json:"name" binding:"required"`
		Status      model.ProjectStatus `json:"status"`
		Description *string             `json:"description"`
		IsPublic    bool                `json:"isPublic"`
	}

	MemberResp struct {
		UserUUID string `json:"userUUID"`
		Name     string `json:"name"`
		Role     string `json:"role"`
	}

	ProjectResp struct {
		ID          uint                `json:"id"`
		Name        string              `json:"name"`
		Slug        string              `json:"slug"`
		Status      model.ProjectStatus `json:"status"`
		Description *string             `json:"description"`
		CreatedAt   time.Time           `json:"createdAt"`
		CreatorID   uint                `json:"creatorID"`
		Progress    float64             `json:"progress"`
		IsPublic    bool                `json:"isPublic"`
		Members     []MemberResp        `json:"members"`
	}
)

func (mgr *ProjectMgr) newProjectResp(project *model.Project) (ProjectResp, error) {
	var members []model.ProjectMember
	if err := mgr.db.Preload("User").
		Where("project_id = ?", project.ID).Find(&members).Error; err != nil {
		return ProjectResp{}, err
	}
	resp := ProjectResp{
		ID:          project.ID,
		Name:        project.Name,
		Slug:        project.Slug,
		Status:      project.Status,
		Description: project.Description,
		CreatedAt:   project.CreatedAt,
		CreatorID:   project.CreatorID,
		Progress:    project.Progress,
		IsPublic:    project.IsPublic,
		Members:     make([]MemberResp, 0, len(members)),
	}
	for i := range members {
		resp.Members = append(resp.Members, MemberResp{
			UserUUID: members[i].User.UUID,
			Name:     members[i].User.DisplayName(),
			Role:     members[i].Role,
		})
	}
	return resp, nil
}

func (mgr *ProjectMgr) CreateProject(c *gin.Context) {
	token := util.GetToken(c)
	var req CreateProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if req.Status == "" {
		req.Status = model.ProjectDraft
	}

	var count int64
	if err := mgr.db.Model(&model.Project{}).Where("name = ?", req.Name).Count(&count).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	if count > 0 {
		resputil.HTTPError(c, http.StatusConflict, "a project with this name already exists", resputil.StateConflict)
		return
	}

	projectSlug := slug.Make(req.Name)
	if err := mgr.db.Model(&model.Project{}).Where("slug = ?", projectSlug).Count(&count).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	if count > 0 {
		// Same slug from a differently-cased name; disambiguate.
		projectSlug = projectSlug + "-" + uuid.NewString()[:8]
	}

	project := model.Project{
		Name:        req.Name,
		Slug:        projectSlug,
		Status:      req.Status,
		Description: req.Description,
		CreatorID:   token.UserID,
		IsPublic:    req.IsPublic,
	}
	if err := mgr.db.Create(&project).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resp, err := mgr.newProjectResp(&project)
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Created(c, resp)
}

func (mgr *ProjectMgr) ListProjects(c *gin.Context) {
	var projects []model.Project
	if err := mgr.db.Order("id DESC").Find(&projects).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resps := make([]ProjectResp, 0, len(projects))
	for i := range projects {
		resp, err := mgr.newProjectResp(&projects[i])
		if err != nil {
			resputil.Error(c, err.Error(), resputil.NotSpecified)
			return
		}
		resps = append(resps, resp)
	}
	resputil.Success(c, resps)
}

func (mgr *ProjectMgr) GetProject(c *gin.Context) {
	var project model.Project
	if err := mgr.db.Where("slug = ?", c.Param("slug")).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			resputil.HTTPError(c, http.StatusNotFound, "project not found", resputil.EntityNotFound)
			return
		}
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resp, err := mgr.newProjectResp(&project)
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, resp)
}

func projectIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid project id")
		return 0, false
	}
	return uint(id), true
}

// JoinProject assigns the user a role (FullStack tie-breaking included)
// and immediately records the membership in their CV, all in one
// transaction.
func (mgr *ProjectMgr) JoinProject(c *gin.Context) {
	token := util.GetToken(c)
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}

	var member *model.ProjectMember
	var entry *model.CVProject
	err := mgr.db.Transaction(func(tx *gorm.DB) error {
		var err error
		member, err = membership.NewService(tx).Join(projectID, token.UserID)
		if err != nil {
			return err
		}
		entry, err = portfolio.NewService(tx).EnrollMember(projectID, token.UserID, member.Role)
		if err != nil && !apperror.IsKind(err, apperror.KindConflict) {
			// An entry may survive a previous leave; joining again is
			// not a reason to fail, the CV already has the project.
			return err
		}
		return nil
	})
	if err != nil {
		resputil.FromError(c, err)
		return
	}
	resputil.Success(c, gin.H{
		"role":    member.Role,
		"cvEntry": entry,
	})
}

func (mgr *ProjectMgr) LeaveProject(c *gin.Context) {
	token := util.GetToken(c)
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	err := mgr.db.Transaction(func(tx *gorm.DB) error {
		return membership.NewService(tx).Leave(projectID, token.UserID)
	})
	if err != nil {
		resputil.FromError(c, err)
		return
	}
	resputil.Success(c, "user removed from project")
}

func (mgr *ProjectMgr) StartProject(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	var project *model.Project
	err := mgr.db.Transaction(func(tx *gorm.DB) error {
		var err error
		project, err = membership.NewService(tx).Start(projectID)
		return err
	})
	if err != nil {
		resputil.FromError(c, err)
		return
	}
	resputil.Success(c, gin.H{"status": project.Status})
}

// DeleteProject cascades to tasks, subtasks, validations, memberships
// and CV entries.
func (mgr *ProjectMgr) DeleteProject(c *gin.Context) {
	token := util.GetToken(c)
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	var project model.Project
	if err := mgr.db.First(&project, projectID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "project not found", resputil.EntityNotFound)
		return
	}
	if project.CreatorID != token.UserID && token.Role != model.RoleAdmin {
		resputil.HTTPError(c, http.StatusForbidden, "only the creator can delete a project", resputil.NotProjectMember)
		return
	}
	err := mgr.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&model.CVProject{}).Error; err != nil {
			return err
		}
		return tx.Select("Members", "Tasks").Delete(&project).Error
	})
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, "project deleted")
}
