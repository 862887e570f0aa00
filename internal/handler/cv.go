package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
	"github.com/teambrains/teambrains-backend/internal/resputil"
	"github.com/teambrains/teambrains-backend/internal/util"
	"github.com/teambrains/teambrains-backend/pkg/apperror"
	"github.com/teambrains/teambrains-backend/pkg/portfolio"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewCVMgr)
}

type CVMgr struct {
	name string
	db   *gorm.DB
}

func NewCVMgr(conf *RegisterConfig) Manager {
	return &CVMgr{
		name: "cv",
		db:   conf.DB,
	}
}

func (mgr *CVMgr) GetName() string { return mgr.name }

func (mgr *CVMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *CVMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/profile", mgr.GetProfile)
	g.PUT("/profile", mgr.UpdateProfile)
	g.GET("/projects", mgr.ListEntries)
	g.POST("/projects/:projectID", mgr.AddEntry)
	g.DELETE("/projects/:id", mgr.DeleteEntry)
}

func (mgr *CVMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	CVProfileResp struct {
		Studies      *string  `json:"studies"`
		Ambitions    *string  `json:"ambitions"`
		LinkedinURL  *string  `json:"linkedinURL"`
		PortfolioURL *string  `json:"portfolioURL"`
		GithubURL    *string  `json:"githubURL"`
		Technologies []string `json:"technologies"`
	}

	CVEntryResp struct {
		ID          uint       `json:"id"`
		ProjectID   uint       `json:"projectID"`
		ProjectName string     `json:"projectName"`
		Role        string     `json:"role"`
		StartDate   time.Time  `json:"startDate"`
		EndDate     *time.Time `json:"endDate"`
		TeamSize    int        `json:"teamSize"`
		Description *string    `json:"description"`
	}
)

func newCVEntryResp(entry *model.CVProject) CVEntryResp {
	return CVEntryResp{
		ID:          entry.ID,
		ProjectID:   entry.ProjectID,
		ProjectName: entry.Project.Name,
		Role:        entry.Role,
		StartDate:   entry.StartDate,
		EndDate:     entry.EndDate,
		TeamSize:    entry.TeamSize,
		Description: entry.Description,
	}
}

func (mgr *CVMgr) GetProfile(c *gin.Context) {
	token := util.GetToken(c)
	var user model.User
	if err := mgr.db.First(&user, token.UserID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "user not found", resputil.EntityNotFound)
		return
	}
	resputil.Success(c, CVProfileResp{
		Studies:      user.Studies,
		Ambitions:    user.Ambitions,
		LinkedinURL:  user.LinkedinURL,
		PortfolioURL: user.PortfolioURL,
		GithubURL:    user.GithubURL,
		Technologies: user.Technologies,
	})
}

type UpdateCVProfileReq struct {
	Studies      *string `json:"studies"`
	Ambitions    *string `json:"ambitions"`
	LinkedinURL  *string `json:"linkedinURL"`
	PortfolioURL *string `json:"portfolioURL"`
	GithubURL    *string `json:"githubURL"`
}

func (mgr *CVMgr) UpdateProfile(c *gin.Context) {
	token := util.GetToken(c)
	var req UpdateCVProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var user model.User
	if err := mgr.db.First(&user, token.UserID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "user not found", resputil.EntityNotFound)
		return
	}
	if req.Studies != nil {
		user.Studies = req.Studies
	}
	if req.Ambitions != nil {
		user.Ambitions = req.Ambitions
	}
	if req.LinkedinURL != nil {
		user.LinkedinURL = req.LinkedinURL
	}
	if req.PortfolioURL != nil {
		user.PortfolioURL = req.PortfolioURL
	}
	if req.GithubURL != nil {
		user.GithubURL = req.GithubURL
	}
	if err := mgr.db.Save(&user).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, CVProfileResp{
		Studies:      user.Studies,
		Ambitions:    user.Ambitions,
		LinkedinURL:  user.LinkedinURL,
		PortfolioURL: user.PortfolioURL,
		GithubURL:    user.GithubURL,
		Technologies: user.Technologies,
	})
}

func (mgr *CVMgr) ListEntries(c *gin.Context) {
	token := util.GetToken(c)
	var entries []model.CVProject
	err := mgr.db.Preload("Project").
		Where("user_id = ?", token.UserID).
		Order("start_date DESC").
		Find(&entries).Error
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resps := make([]CVEntryResp, 0, len(entries))
	for i := range entries {
		resps = append(resps, newCVEntryResp(&entries[i]))
	}
	resputil.Success(c, resps)
}

type AddCVEntryReq struct {
	Role string `json:"role" binding:"required"`
}

// AddEntry records a project in the caller's own CV, for projects they
// worked on without the automatic paths covering them.
func (mgr *CVMgr) AddEntry(c *gin.Context) {
	token := util.GetToken(c)
	projectID, err := strconv.ParseUint(c.Param("projectID"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid project id")
		return
	}
	var req AddCVEntryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var entry *model.CVProject
	txErr := mgr.db.Transaction(func(tx *gorm.DB) error {
		entry, err = portfolio.NewService(tx).EnrollMember(uint(projectID), token.UserID, req.Role)
		return err
	})
	if txErr != nil {
		resputil.FromError(c, txErr)
		return
	}
	resputil.Created(c, entry)
}

// DeleteEntry removes a CV entry. Owner only: enrollment may be
// automatic but removal is always the user's own call.
func (mgr *CVMgr) DeleteEntry(c *gin.Context) {
	token := util.GetToken(c)
	entryID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid entry id")
		return
	}
	var entry model.CVProject
	if err := mgr.db.First(&entry, entryID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "cv entry not found", resputil.EntityNotFound)
		return
	}
	if entry.UserID != token.UserID {
		resputil.FromError(c, apperror.New(apperror.KindForbidden, "you can only remove entries from your own CV"))
		return
	}
	if err := mgr.db.Delete(&entry).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, "cv entry removed")
}
