package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
	"github.com/teambrains/teambrains-backend/internal/resputil"
	"github.com/teambrains/teambrains-backend/internal/util"
	"github.com/teambrains/teambrains-backend/pkg/config"
	"github.com/teambrains/teambrains-backend/pkg/ledger"
	"github.com/teambrains/teambrains-backend/pkg/planning"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewSubTaskMgr)
}

type SubTaskMgr struct {
	name string
	db   *gorm.DB
}

func NewSubTaskMgr(conf *RegisterConfig) Manager {
	return &SubTaskMgr{
		name: "subtasks",
		db:   conf.DB,
	}
}

func (mgr *SubTaskMgr) GetName() string { return mgr.name }

func (mgr *SubTaskMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *SubTaskMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("/tasks/:taskID/subtasks", mgr.CreateSubTask)
	g.GET("/tasks/:taskID/subtasks", mgr.ListSubTasks)
	g.POST("/subtasks/:id/validate", mgr.ValidateSubTask)
	g.PUT("/subtasks/:id/assign", mgr.AssignStudent)
	g.PUT("/tasks/:taskID/students", mgr.AssignStudents)
	g.GET("/students/:studentID/tasks", mgr.StudentTasks)
}

func (mgr *SubTaskMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	CreateSubTaskReq struct {
		Title             string         `json:"title" binding:"required"`
		Description       *string        `json:"description"`
		DueDate           *time.Time     `json:"dueDate"`
		PercentCompletion int            `json:"percentCompletion"`
		Priority          model.Priority `json:"priority"`
		AssignedStudentID *uint          `json:"assignedStudentID"`
	}

	SubTaskResp struct {
		ID                uint                `json:"id"`
		Title             string              `json:"title"`
		Description       *string             `json:"description"`
		DueDate           *time.Time          `json:"dueDate"`
		PercentCompletion int                 `json:"percentCompletion"`
		Priority          model.Priority      `json:"priority"`
		Status            model.SubTaskStatus `json:"status"`
		TaskID            uint                `json:"taskID"`
		AssignedStudentID *uint               `json:"assignedStudentID"`
	}
)

func newSubTaskResp(subtask *model.SubTask) SubTaskResp {
	return SubTaskResp{
		ID:                subtask.ID,
		Title:             subtask.Title,
		Description:       subtask.Description,
		DueDate:           subtask.DueDate,
		PercentCompletion: subtask.PercentCompletion,
		Priority:          subtask.Priority,
		Status:            subtask.Status,
		TaskID:            subtask.TaskID,
		AssignedStudentID: subtask.AssignedStudentID,
	}
}

func taskIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("taskID"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid task id")
		return 0, false
	}
	return uint(id), true
}

func (mgr *SubTaskMgr) CreateSubTask(c *gin.Context) {
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}
	var req CreateSubTaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if req.PercentCompletion < 0 || req.PercentCompletion > 100 {
		resputil.BadRequestError(c, "completion percentage out of range [0, 100]")
		return
	}
	if req.Priority == "" {
		req.Priority = model.PriorityMedium
	}
	if !req.Priority.IsValid() {
		resputil.BadRequestError(c, "priority must be high, medium or low")
		return
	}

	var count int64
	if err := mgr.db.Model(&model.Task{}).Where("id = ?", taskID).Count(&count).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	if count == 0 {
		resputil.HTTPError(c, http.StatusNotFound, "the task does not exist", resputil.EntityNotFound)
		return
	}

	subtask := model.SubTask{
		Title:             req.Title,
		Description:       req.Description,
		DueDate:           req.DueDate,
		PercentCompletion: req.PercentCompletion,
		Priority:          req.Priority,
		Status:            model.SubTaskPending,
		TaskID:            taskID,
		AssignedStudentID: req.AssignedStudentID,
	}
	if err := mgr.db.Create(&subtask).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Created(c, newSubTaskResp(&subtask))
}

func (mgr *SubTaskMgr) ListSubTasks(c *gin.Context) {
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}
	var subtasks []model.SubTask
	if err := mgr.db.Where("task_id = ?", taskID).Order("id").Find(&subtasks).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resps := make([]SubTaskResp, 0, len(subtasks))
	for i := range subtasks {
		resps = append(resps, newSubTaskResp(&subtasks[i]))
	}
	resputil.Success(c, resps)
}

type ValidateSubTaskReq struct {
	Status   model.ValidationStatus `json:"status" binding:"required"`
	Feedback *string                `json:"feedback"`
}

// ValidateSubTask appends a reviewer decision for a subtask and applies
// the completion policy, all in one transaction.
func (mgr *SubTaskMgr) ValidateSubTask(c *gin.Context) {
	token := util.GetToken(c)
	subtaskID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid subtask id")
		return
	}
	var req ValidateSubTaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	var entry *model.SubTaskValidation
	var subtask *model.SubTask
	err = mgr.db.Transaction(func(tx *gorm.DB) error {
		tracker := planning.NewService(tx)
		tracker.Demoted = config.GetConfig().Workflow.RejectedCompletion
		entry, subtask, err = ledger.NewService(tx, tracker).
			RecordSubTaskValidation(uint(subtaskID), token.UserID, req.Status, req.Feedback)
		return err
	})
	if err != nil {
		resputil.FromError(c, err)
		return
	}
	resputil.Success(c, gin.H{
		"validation": entry,
		"subtask":    newSubTaskResp(subtask),
	})
}

type AssignStudentReq struct {
	StudentID uint `json:"studentID" binding:"required"`
}

func (mgr *SubTaskMgr) AssignStudent(c *gin.Context) {
	subtaskID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid subtask id")
		return
	}
	var req AssignStudentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var subtask model.SubTask
	if err := mgr.db.First(&subtask, subtaskID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "the subtask does not exist", resputil.EntityNotFound)
		return
	}
	var count int64
	if err := mgr.db.Model(&model.User{}).Where("id = ?", req.StudentID).Count(&count).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	if count == 0 {
		resputil.HTTPError(c, http.StatusNotFound, "the student does not exist", resputil.EntityNotFound)
		return
	}
	if err := mgr.db.Model(&subtask).Update("assigned_student_id", req.StudentID).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, newSubTaskResp(&subtask))
}

type AssignStudentsReq struct {
	Students []struct {
		StudentID uint   `json:"studentID" binding:"required"`
		Role      string `json:"role"`
	} `json:"students" binding:"required"`
}

// AssignStudents replaces the whole assignment set of a task. The old
// rows go away so removed students actually lose the task.
func (mgr *SubTaskMgr) AssignStudents(c *gin.Context) {
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}
	var req AssignStudentsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var task model.Task
	if err := mgr.db.First(&task, taskID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "the task does not exist", resputil.EntityNotFound)
		return
	}

	assignments := make([]model.TaskStudent, 0, len(req.Students))
	for _, s := range req.Students {
		role := s.Role
		if role == "" {
			role = "developer"
		}
		assignments = append(assignments, model.TaskStudent{
			TaskID:    taskID,
			StudentID: s.StudentID,
			Role:      role,
		})
	}

	err := mgr.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("task_id = ?", taskID).Delete(&model.TaskStudent{}).Error; err != nil {
			return err
		}
		if len(assignments) == 0 {
			return nil
		}
		return tx.Create(&assignments).Error
	})
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, gin.H{"assigned": len(assignments)})
}

// StudentTasks lists the tasks a student works on, both the
// single-assignee ones and the set-assigned ones.
func (mgr *SubTaskMgr) StudentTasks(c *gin.Context) {
	studentID, err := strconv.ParseUint(c.Param("studentID"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid student id")
		return
	}
	var assigned []model.TaskStudent
	if err := mgr.db.Where("student_id = ?", studentID).Find(&assigned).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	taskIDs := lo.Map(assigned, func(ts model.TaskStudent, _ int) uint { return ts.TaskID })

	var tasks []model.Task
	query := mgr.db.Where("assignee_id = ?", studentID)
	if len(taskIDs) > 0 {
		query = query.Or("id IN ?", taskIDs)
	}
	if err := query.Order("due_date").Find(&tasks).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resps := make([]TaskResp, 0, len(tasks))
	for i := range tasks {
		resps = append(resps, newTaskResp(&tasks[i]))
	}
	resputil.Success(c, resps)
}
