package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
	"github.com/teambrains/teambrains-backend/internal/resputil"
	"github.com/teambrains/teambrains-backend/internal/util"
	"github.com/teambrains/teambrains-backend/pkg/alert"
	"github.com/teambrains/teambrains-backend/pkg/config"
	"github.com/teambrains/teambrains-backend/pkg/logutils"
	"github.com/teambrains/teambrains-backend/pkg/planning"
	"github.com/teambrains/teambrains-backend/pkg/portfolio"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewTaskMgr)
}

type TaskMgr struct {
	name   string
	db     *gorm.DB
	mailer alert.Mailer
}

func NewTaskMgr(conf *RegisterConfig) Manager {
	return &TaskMgr{
		name:   "planning",
		db:     conf.DB,
		mailer: conf.Mailer,
	}
}

func (mgr *TaskMgr) GetName() string { return mgr.name }

func (mgr *TaskMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *TaskMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("/:projectID/tasks", mgr.CreateTask)
	g.GET("/:projectID/tasks", mgr.ListTasks)
	g.GET("/:projectID/progress", mgr.GetProgress)
	g.PUT("/tasks/:id", mgr.UpdateTask)
	g.DELETE("/tasks/:id", mgr.DeleteTask)
}

func (mgr *TaskMgr) RegisterAdmin(_ *gin.RouterGroup) {}

func (mgr *TaskMgr) newTracker(tx *gorm.DB) *planning.Service {
	svc := planning.NewService(tx)
	svc.Demoted = config.GetConfig().Workflow.RejectedCompletion
	return svc
}

type (
	CreateTaskReq struct {
		Title       string         `json:"title" binding:"required"`
		Description *string        `json:"description"`
		DueDate     time.Time      `json:"dueDate" binding:"required"`
		AssigneeID  *uint          `json:"assigneeID"`
		Priority    model.Priority `json:"priority"`
		Sprint      *string        `json:"sprint"`
		FileURL     *string        `json:"fileURL"`
		FileName    *string        `json:"fileName"`
	}

	UpdateTaskReq struct {
		Title             string         `json:"title" binding:"required"`
		Description       *string        `json:"description"`
		DueDate           time.Time      `json:"dueDate" binding:"required"`
		PercentCompletion *int           `json:"percentCompletion"`
		AssigneeID        *uint          `json:"assigneeID"`
		Priority          model.Priority `json:"priority"`
		Sprint            *string        `json:"sprint"`
		FileURL           *string        `json:"fileURL"`
		FileName          *string        `json:"fileName"`
	}

	TaskResp struct {
		ID                uint           `json:"id"`
		Title             string         `json:"title"`
		Description       *string        `json:"description"`
		DueDate           time.Time      `json:"dueDate"`
		PercentCompletion int            `json:"percentCompletion"`
		AssigneeID        *uint          `json:"assigneeID"`
		ProjectID         uint           `json:"projectID"`
		Priority          model.Priority `json:"priority"`
		Sprint            *string        `json:"sprint"`
		FileURL           *string        `json:"fileURL"`
		FileName          *string        `json:"fileName"`
	}
)

func newTaskResp(task *model.Task) TaskResp {
	return TaskResp{
		ID:                task.ID,
		Title:             task.Title,
		Description:       task.Description,
		DueDate:           task.DueDate,
		PercentCompletion: task.PercentCompletion,
		AssigneeID:        task.AssigneeID,
		ProjectID:         task.ProjectID,
		Priority:          task.Priority,
		Sprint:            task.Sprint,
		FileURL:           task.FileURL,
		FileName:          task.FileName,
	}
}

// CreateTask godoc
// @Summary Create a task and recompute the project progress
// @Router /v1/planning/{projectID}/tasks [post]
func (mgr *TaskMgr) CreateTask(c *gin.Context) {
	token := util.GetToken(c)
	projectID, err := strconv.ParseUint(c.Param("projectID"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid project id")
		return
	}
	var req CreateTaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if req.Priority == "" {
		req.Priority = model.PriorityMedium
	}
	if !req.Priority.IsValid() {
		resputil.BadRequestError(c, "priority must be high, medium or low")
		return
	}

	var project model.Project
	if err := mgr.db.First(&project, projectID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "the project does not exist", resputil.EntityNotFound)
		return
	}

	assignee := req.AssigneeID
	if assignee == nil {
		assignee = &token.UserID
	}
	task := model.Task{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		AssigneeID:  assignee,
		ProjectID:   uint(projectID),
		Priority:    req.Priority,
		Sprint:      req.Sprint,
		FileURL:     req.FileURL,
		FileName:    req.FileName,
	}
	err = mgr.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		_, err := mgr.newTracker(tx).RecomputeProjectProgress(uint(projectID))
		return err
	})
	if err != nil {
		resputil.FromError(c, err)
		return
	}
	resputil.Created(c, newTaskResp(&task))
}

func (mgr *TaskMgr) ListTasks(c *gin.Context) {
	projectID, err := strconv.ParseUint(c.Param("projectID"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid project id")
		return
	}
	var count int64
	if err := mgr.db.Model(&model.Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	if count == 0 {
		resputil.HTTPError(c, http.StatusNotFound, "the project does not exist", resputil.EntityNotFound)
		return
	}
	var tasks []model.Task
	if err := mgr.db.Where("project_id = ?", projectID).Order("id").Find(&tasks).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resps := make([]TaskResp, 0, len(tasks))
	for i := range tasks {
		resps = append(resps, newTaskResp(&tasks[i]))
	}
	resputil.Success(c, resps)
}

// UpdateTask edits a task. If the edit moves its completion, the
// project progress is recomputed and, when every task of the project
// sits at 100%, the members are auto-enrolled in their CVs.
func (mgr *TaskMgr) UpdateTask(c *gin.Context) {
	token := util.GetToken(c)
	taskID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid task id")
		return
	}
	var req UpdateTaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	var task model.Task
	if err := mgr.db.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			resputil.HTTPError(c, http.StatusNotFound, "the task does not exist", resputil.EntityNotFound)
			return
		}
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}

	enrolled := 0
	err = mgr.db.Transaction(func(tx *gorm.DB) error {
		task.Title = req.Title
		task.Description = req.Description
		task.DueDate = req.DueDate
		if req.AssigneeID != nil {
			task.AssigneeID = req.AssigneeID
		} else {
			task.AssigneeID = &token.UserID
		}
		if req.Priority != "" {
			task.Priority = req.Priority
		}
		if req.Sprint != nil {
			task.Sprint = req.Sprint
		}
		if req.FileURL != nil {
			task.FileURL = req.FileURL
		}
		if req.FileName != nil {
			task.FileName = req.FileName
		}
		if err := tx.Save(&task).Error; err != nil {
			return err
		}

		tracker := mgr.newTracker(tx)
		if req.PercentCompletion != nil {
			updated, err := tracker.SetTaskCompletion(task.ID, *req.PercentCompletion)
			if err != nil {
				return err
			}
			task = *updated
		}
		if _, err := tracker.RecomputeProjectProgress(task.ProjectID); err != nil {
			return err
		}
		if task.PercentCompletion == 100 {
			var err error
			enrolled, err = portfolio.NewService(tx).EnrollOnCompletion(task.ProjectID)
			return err
		}
		return nil
	})
	if err != nil {
		resputil.FromError(c, err)
		return
	}
	if enrolled > 0 {
		mgr.notifyCompletion(c, task.ProjectID)
	}
	resputil.Success(c, newTaskResp(&task))
}

func (mgr *TaskMgr) DeleteTask(c *gin.Context) {
	taskID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid task id")
		return
	}
	var task model.Task
	if err := mgr.db.First(&task, taskID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "the task does not exist", resputil.EntityNotFound)
		return
	}
	err = mgr.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("SubTasks", "Validations", "Students").Delete(&task).Error; err != nil {
			return err
		}
		_, err := mgr.newTracker(tx).RecomputeProjectProgress(task.ProjectID)
		return err
	})
	if err != nil {
		resputil.FromError(c, err)
		return
	}
	resputil.Success(c, "task deleted")
}

func (mgr *TaskMgr) GetProgress(c *gin.Context) {
	projectID, err := strconv.ParseUint(c.Param("projectID"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid project id")
		return
	}
	var progress float64
	err = mgr.db.Transaction(func(tx *gorm.DB) error {
		progress, err = mgr.newTracker(tx).RecomputeProjectProgress(uint(projectID))
		return err
	})
	if err != nil {
		resputil.FromError(c, err)
		return
	}
	resputil.Success(c, gin.H{
		"projectID": projectID,
		"progress":  progress,
	})
}

// notifyCompletion mails the project members after auto-enrollment.
// Best effort only: the request already committed.
func (mgr *TaskMgr) notifyCompletion(ctx context.Context, projectID uint) {
	var project model.Project
	if err := mgr.db.First(&project, projectID).Error; err != nil {
		return
	}
	var emails []string
	err := mgr.db.Model(&model.ProjectMember{}).
		Joins("JOIN users ON users.id = project_members.user_id").
		Where("project_members.project_id = ?", projectID).
		Pluck("users.email", &emails).Error
	if err != nil {
		logutils.Log.Warn("load member emails: ", err)
		return
	}
	if err := mgr.mailer.ProjectCompleted(ctx, emails, project.Name); err != nil {
		logutils.Log.Warn("completion notification: ", err)
	}
}
