package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
	"github.com/teambrains/teambrains-backend/internal/resputil"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewSprintMgr)
}

// SprintMgr groups the sprint views. Sprints are labels on tasks, not
// entities of their own, so everything here is a read-side aggregation.
type SprintMgr struct {
	name string
	db   *gorm.DB
}

func NewSprintMgr(conf *RegisterConfig) Manager {
	return &SprintMgr{
		name: "sprints",
		db:   conf.DB,
	}
}

func (mgr *SprintMgr) GetName() string { return mgr.name }

func (mgr *SprintMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *SprintMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/:projectID", mgr.ListSprints)
	g.GET("/:projectID/tasks", mgr.SprintTasks)
	g.GET("/:projectID/stats", mgr.SprintStats)
}

func (mgr *SprintMgr) RegisterAdmin(_ *gin.RouterGroup) {}

func (mgr *SprintMgr) projectTasks(c *gin.Context) ([]model.Task, bool) {
	projectID, err := strconv.ParseUint(c.Param("projectID"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid project id")
		return nil, false
	}
	var count int64
	if err := mgr.db.Model(&model.Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return nil, false
	}
	if count == 0 {
		resputil.HTTPError(c, http.StatusNotFound, "the project does not exist", resputil.EntityNotFound)
		return nil, false
	}
	var tasks []model.Task
	if err := mgr.db.Where("project_id = ?", projectID).Order("due_date").Find(&tasks).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return nil, false
	}
	return tasks, true
}

func (mgr *SprintMgr) ListSprints(c *gin.Context) {
	tasks, ok := mgr.projectTasks(c)
	if !ok {
		return
	}
	sprints := lo.Uniq(lo.FilterMap(tasks, func(t model.Task, _ int) (string, bool) {
		return lo.FromPtr(t.Sprint), t.Sprint != nil && *t.Sprint != ""
	}))
	resputil.Success(c, sprints)
}

// SprintTasks filters a project's tasks by the ?sprint= label. An empty
// label selects the backlog, the tasks assigned to no sprint.
func (mgr *SprintMgr) SprintTasks(c *gin.Context) {
	tasks, ok := mgr.projectTasks(c)
	if !ok {
		return
	}
	wanted := c.Query("sprint")
	filtered := lo.Filter(tasks, func(t model.Task, _ int) bool {
		return lo.FromPtr(t.Sprint) == wanted
	})
	resps := make([]TaskResp, 0, len(filtered))
	for i := range filtered {
		resps = append(resps, newTaskResp(&filtered[i]))
	}
	resputil.Success(c, resps)
}

type SprintStatsResp struct {
	Sprint    string  `json:"sprint"`
	Tasks     int     `json:"tasks"`
	Completed int     `json:"completed"`
	Progress  float64 `json:"progress"`
}

// SprintStats reports the per-sprint completion breakdown, same mean
// formula as the project progress but scoped to each sprint's tasks.
func (mgr *SprintMgr) SprintStats(c *gin.Context) {
	tasks, ok := mgr.projectTasks(c)
	if !ok {
		return
	}
	groups := lo.GroupBy(tasks, func(t model.Task) string {
		return lo.FromPtr(t.Sprint)
	})
	stats := make([]SprintStatsResp, 0, len(groups))
	for sprint, group := range groups {
		sum := 0
		completed := 0
		for i := range group {
			sum += group[i].PercentCompletion
			if group[i].PercentCompletion == 100 {
				completed++
			}
		}
		stats = append(stats, SprintStatsResp{
			Sprint:    sprint,
			Tasks:     len(group),
			Completed: completed,
			Progress:  float64(sum) / float64(len(group)),
		})
	}
	resputil.Success(c, stats)
}
