package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
	"github.com/teambrains/teambrains-backend/internal/resputil"
	"github.com/teambrains/teambrains-backend/internal/util"
	"github.com/teambrains/teambrains-backend/pkg/logutils"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewAuthMgr)
}

type AuthMgr struct {
	name     string
	db       *gorm.DB
	tokenMgr *util.TokenManager
}

func NewAuthMgr(conf *RegisterConfig) Manager {
	return &AuthMgr{
		name:     "auth",
		db:       conf.DB,
		tokenMgr: util.GetTokenMgr(),
	}
}

func (mgr *AuthMgr) GetName() string { return mgr.name }

func (mgr *AuthMgr) RegisterPublic(g *gin.RouterGroup) {
	g.POST("/signup", mgr.Signup)
	g.POST("/login", mgr.Login)
	g.POST("/refresh", mgr.RefreshToken)
}

func (mgr *AuthMgr) RegisterProtected(_ *gin.RouterGroup) {}

func (mgr *AuthMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	SignupReq struct {
		Email         string         `json:"email" binding:"required,email"`
		Password      string         `json:"password" binding:"required,min=8"`
		FirstName     string         `json:"firstName" binding:"required"`
		LastName      string         `json:"lastName" binding:"required"`
		Role          model.UserRole `json:"role" binding:"required"`
		DeveloperType string         `json:"developerType"`
	}

	LoginReq struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	RefreshReq struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}

	TokenResp struct {
		AccessToken  string   `json:"accessToken"`
		RefreshToken string   `json:"refreshToken"`
		User         UserResp `json:"user"`
	}
)

// Signup godoc
// @Summary Register a new account
// @Router /v1/auth/signup [post]
func (mgr *AuthMgr) Signup(c *gin.Context) {
	var req SignupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if !req.Role.IsValid() {
		resputil.BadRequestError(c, "invalid platform role")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		resputil.Error(c, "hash password", resputil.NotSpecified)
		return
	}

	user := model.User{
		UUID:          uuid.NewString(),
		Email:         req.Email,
		Password:      string(hash),
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Role:          req.Role,
		DeveloperType: req.DeveloperType,
	}
	if err := mgr.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			resputil.HTTPError(c, http.StatusConflict, "an account with this email already exists", resputil.EmailTaken)
			return
		}
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	logutils.Log.Infof("new account: %s (%s)", user.Email, user.Role)
	mgr.respondWithTokens(c, &user, http.StatusCreated)
}

// Login godoc
// @Summary Verify credentials and issue a token pair
// @Router /v1/auth/login [post]
func (mgr *AuthMgr) Login(c *gin.Context) {
	var req LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	var user model.User
	if err := mgr.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		resputil.HTTPError(c, http.StatusUnauthorized, "invalid email or password", resputil.InvalidCredentials)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		resputil.HTTPError(c, http.StatusUnauthorized, "invalid email or password", resputil.InvalidCredentials)
		return
	}
	mgr.respondWithTokens(c, &user, http.StatusOK)
}

func (mgr *AuthMgr) RefreshToken(c *gin.Context) {
	var req RefreshReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	msg, err := mgr.tokenMgr.CheckToken(req.RefreshToken)
	if err != nil {
		resputil.HTTPError(c, http.StatusUnauthorized, err.Error(), resputil.TokenExpired)
		return
	}
	var user model.User
	if err := mgr.db.First(&user, msg.UserID).Error; err != nil {
		resputil.HTTPError(c, http.StatusUnauthorized, "user no longer exists", resputil.TokenInvalid)
		return
	}
	mgr.respondWithTokens(c, &user, http.StatusOK)
}

func (mgr *AuthMgr) respondWithTokens(c *gin.Context, user *model.User, httpCode int) {
	access, refresh, err := mgr.tokenMgr.CreateTokens(&util.JWTMessage{
		UserID:   user.ID,
		UserUUID: user.UUID,
		Email:    user.Email,
		Role:     user.Role,
	})
	if err != nil {
		resputil.Error(c, "create tokens", resputil.NotSpecified)
		return
	}
	resp := TokenResp{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         newUserResp(user),
	}
	if httpCode == http.StatusCreated {
		resputil.Created(c, resp)
		return
	}
	resputil.Success(c, resp)
}
