package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
	"github.com/teambrains/teambrains-backend/internal/resputil"
	"github.com/teambrains/teambrains-backend/internal/util"
	"github.com/teambrains/teambrains-backend/pkg/alert"
	"github.com/teambrains/teambrains-backend/pkg/config"
	"github.com/teambrains/teambrains-backend/pkg/ledger"
	"github.com/teambrains/teambrains-backend/pkg/planning"
	"github.com/teambrains/teambrains-backend/pkg/portfolio"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewValidationMgr)
}

type ValidationMgr struct {
	name   string
	db     *gorm.DB
	mailer alert.Mailer
}

func NewValidationMgr(conf *RegisterConfig) Manager {
	return &ValidationMgr{
		name:   "validation",
		db:     conf.DB,
		mailer: conf.Mailer,
	}
}

func (mgr *ValidationMgr) GetName() string { return mgr.name }

func (mgr *ValidationMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *ValidationMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("/task/:taskID", mgr.ValidateTask)
	g.GET("/task/:taskID/history", mgr.TaskHistory)
	g.GET("/task/:taskID/status", mgr.TaskStatus)
	g.GET("/project/:projectID/pending", mgr.PendingTasks)
	g.GET("/project/:projectID/stats", mgr.ProjectStats)
}

func (mgr *ValidationMgr) RegisterAdmin(_ *gin.RouterGroup) {}

func (mgr *ValidationMgr) newLedger(tx *gorm.DB) *ledger.Service {
	tracker := planning.NewService(tx)
	tracker.Demoted = config.GetConfig().Workflow.RejectedCompletion
	return ledger.NewService(tx, tracker)
}

type (
	ValidateTaskReq struct {
		Status  model.ValidationStatus `json:"status" binding:"required"`
		Comment *string                `json:"comment"`
	}

	ValidationResp struct {
		ID            uint                   `json:"id"`
		Status        model.ValidationStatus `json:"status"`
		Comment       *string                `json:"comment"`
		ValidatorUUID string                 `json:"validatorUUID"`
		ValidatorName string                 `json:"validatorName"`
		Timestamp     string                 `json:"timestamp"`
	}
)

func newValidationResp(entry *model.TaskValidation) ValidationResp {
	resp := ValidationResp{
		ID:        entry.ID,
		Status:    entry.Status,
		Comment:   entry.Comment,
		Timestamp: entry.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	}
	if entry.Validator.ID != 0 {
		resp.ValidatorUUID = entry.Validator.UUID
		resp.ValidatorName = entry.Validator.DisplayName()
	}
	return resp
}

// ValidateTask appends a reviewer decision for a task, applies the
// completion policy, recomputes the project progress and, when the
// decision completes the whole project, enrolls the members in their
// CVs. One transaction end to end.
func (mgr *ValidationMgr) ValidateTask(c *gin.Context) {
	token := util.GetToken(c)
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}
	var req ValidateTaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	var entry *model.TaskValidation
	var task *model.Task
	var progress float64
	enrolled := 0
	err := mgr.db.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, task, err = mgr.newLedger(tx).
			RecordTaskValidation(taskID, token.UserID, req.Status, req.Comment)
		if err != nil {
			return err
		}
		tracker := planning.NewService(tx)
		progress, err = tracker.RecomputeProjectProgress(task.ProjectID)
		if err != nil {
			return err
		}
		if task.PercentCompletion == 100 {
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
	resputil.Success(c, gin.H{
		"validation":        entry,
		"percentCompletion": task.PercentCompletion,
		"projectProgress":   progress,
	})
}

func (mgr *ValidationMgr) notifyCompletion(c *gin.Context, projectID uint) {
	var project model.Project
	if err := mgr.db.First(&project, projectID).Error; err != nil {
		return
	}
	var emails []string
	err := mgr.db.Model(&model.ProjectMember{}).
		Joins("JOIN users ON users.id = project_members.user_id").
		Where("project_members.project_id = ?", projectID).
		Pluck("users.email", &emails).Error
	if err == nil {
		_ = mgr.mailer.ProjectCompleted(c, emails, project.Name)
	}
}

func (mgr *ValidationMgr) TaskHistory(c *gin.Context) {
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}
	entries, err := mgr.newLedger(mgr.db).TaskHistory(taskID)
	if err != nil {
		resputil.FromError(c, err)
		return
	}
	resps := make([]ValidationResp, 0, len(entries))
	for i := range entries {
		resps = append(resps, newValidationResp(&entries[i]))
	}
	resputil.Success(c, resps)
}

// TaskStatus reports the derived state of a task: its percentage, the
// latest decision if any, and the presentation state computed from
// both. Nothing here is stored.
func (mgr *ValidationMgr) TaskStatus(c *gin.Context) {
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}
	var task model.Task
	if err := mgr.db.First(&task, taskID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "the task does not exist", resputil.EntityNotFound)
		return
	}
	last, err := mgr.newLedger(mgr.db).LatestTaskValidation(taskID)
	if err != nil {
		resputil.FromError(c, err)
		return
	}
	resp := gin.H{
		"taskID":            task.ID,
		"percentCompletion": task.PercentCompletion,
		"state":             ledger.TaskState(&task, last),
	}
	if last != nil {
		resp["lastValidation"] = newValidationResp(last)
	}
	resputil.Success(c, resp)
}

// PendingTasks lists the tasks of a project sitting at 100% whose
// latest decision is absent or pending, i.e. work waiting on a
// reviewer.
func (mgr *ValidationMgr) PendingTasks(c *gin.Context) {
	projectID, err := strconv.ParseUint(c.Param("projectID"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid project id")
		return
	}
	var tasks []model.Task
	if err := mgr.db.Where("project_id = ? AND percent_completion = 100", projectID).
		Order("due_date").Find(&tasks).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	svc := mgr.newLedger(mgr.db)
	pending := make([]gin.H, 0, len(tasks))
	for i := range tasks {
		last, err := svc.LatestTaskValidation(tasks[i].ID)
		if err != nil {
			resputil.FromError(c, err)
			return
		}
		state := ledger.TaskState(&tasks[i], last)
		if state == ledger.StateAwaitingDecision || state == ledger.StatePending {
			pending = append(pending, gin.H{
				"task":  newTaskResp(&tasks[i]),
				"state": state,
			})
		}
	}
	resputil.Success(c, pending)
}

// ProjectStats aggregates the validation workload of a project.
func (mgr *ValidationMgr) ProjectStats(c *gin.Context) {
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
	if err := mgr.db.Where("project_id = ?", projectID).Find(&tasks).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	svc := mgr.newLedger(mgr.db)
	stats := map[ledger.DerivedState]int{}
	for i := range tasks {
		last, err := svc.LatestTaskValidation(tasks[i].ID)
		if err != nil {
			resputil.FromError(c, err)
			return
		}
		stats[ledger.TaskState(&tasks[i], last)]++
	}
	resputil.Success(c, gin.H{
		"total":                       len(tasks),
		"notStarted":                  stats[ledger.StateNotStarted],
		"inProgress":                  stats[ledger.StateInProgress],
		"completedPendingValidation":  stats[ledger.StateAwaitingDecision] + stats[ledger.StatePending],
		"validated":                   stats[ledger.StateValidated],
		"rejected":                    stats[ledger.StateRejected],
	})
}
