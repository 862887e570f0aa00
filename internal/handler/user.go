package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
	"github.com/teambrains/teambrains-backend/internal/resputil"
	"github.com/teambrains/teambrains-backend/internal/util"
	"github.com/teambrains/teambrains-backend/pkg/logutils"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewUserMgr)
}

type UserMgr struct {
	name string
	db   *gorm.DB
}

func NewUserMgr(conf *RegisterConfig) Manager {
	return &UserMgr{
		name: "users",
		db:   conf.DB,
	}
}

func (mgr *UserMgr) GetName() string { return mgr.name }

func (mgr *UserMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *UserMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/me", mgr.Me)
	g.PUT("/me", mgr.UpdateMe)
	g.GET("/:uuid", mgr.GetUser)
}

func (mgr *UserMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.GET("", mgr.ListUsers)
	g.DELETE("/:uuid", mgr.DeleteUser)
}

type UserResp struct {
	UUID          string         `json:"uuid"`
	Email         string         `json:"email"`
	FirstName     string         `json:"firstName"`
	LastName      string         `json:"lastName"`
	Role          model.UserRole `json:"role"`
	DeveloperType string         `json:"developerType"`
	Technologies  []string       `json:"technologies"`
}

func newUserResp(user *model.User) UserResp {
	return UserResp{
		UUID:          user.UUID,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Role:          user.Role,
		DeveloperType: user.DeveloperType,
		Technologies:  user.Technologies,
	}
}

func (mgr *UserMgr) Me(c *gin.Context) {
	token := util.GetToken(c)
	var user model.User
	if err := mgr.db.First(&user, token.UserID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "user not found", resputil.EntityNotFound)
		return
	}
	resputil.Success(c, newUserResp(&user))
}

type UpdateMeReq struct {
	FirstName     *string  `json:"firstName"`
	LastName      *string  `json:"lastName"`
	DeveloperType *string  `json:"developerType"`
	Technologies  []string `json:"technologies"`
}

func (mgr *UserMgr) UpdateMe(c *gin.Context) {
	token := util.GetToken(c)
	var req UpdateMeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	var user model.User
	if err := mgr.db.First(&user, token.UserID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "user not found", resputil.EntityNotFound)
		return
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.DeveloperType != nil {
		user.DeveloperType = *req.DeveloperType
	}
	if req.Technologies != nil {
		user.Technologies = datatypes.NewJSONSlice(req.Technologies)
	}
	if err := mgr.db.Save(&user).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, newUserResp(&user))
}

func (mgr *UserMgr) GetUser(c *gin.Context) {
	var user model.User
	if err := mgr.db.Where("uuid = ?", c.Param("uuid")).First(&user).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "user not found", resputil.EntityNotFound)
		return
	}
	resputil.Success(c, newUserResp(&user))
}

func (mgr *UserMgr) ListUsers(c *gin.Context) {
	var users []model.User
	if err := mgr.db.Order("id DESC").Find(&users).Error; err != nil {
		resputil.Error(c, fmt.Sprintf("list users failed, detail: %v", err), resputil.NotSpecified)
		return
	}
	resps := make([]UserResp, 0, len(users))
	for i := range users {
		resps = append(resps, newUserResp(&users[i]))
	}
	resputil.Success(c, resps)
}

func (mgr *UserMgr) DeleteUser(c *gin.Context) {
	uuid := c.Param("uuid")
	res := mgr.db.Where("uuid = ?", uuid).Delete(&model.User{})
	if res.Error != nil {
		resputil.Error(c, fmt.Sprintf("delete user failed, detail: %v", res.Error), resputil.NotSpecified)
		return
	}
	if res.RowsAffected == 0 {
		resputil.HTTPError(c, http.StatusNotFound, "user not found", resputil.EntityNotFound)
		return
	}
	logutils.Log.Infof("delete user success, uuid: %s", uuid)
	resputil.Success(c, "")
}
