package handler

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/pkg/alert"
)

type Manager interface {
	GetName() string
	RegisterPublic(group *gin.RouterGroup)
	RegisterProtected(group *gin.RouterGroup)
	RegisterAdmin(group *gin.RouterGroup)
}

// RegisterConfig carries the shared dependencies handed to every
// manager at registration time.
type RegisterConfig struct {
	DB     *gorm.DB
	Mailer alert.Mailer
}

type RegisterFunc func(conf *RegisterConfig) Manager

// Registers collects the manager constructors; each handler file
// appends its own in init().
var Registers []RegisterFunc
