package util

import (
	"github.com/gin-gonic/gin"

	"github.com/teambrains/teambrains-backend/dao/model"
)

const (
	UserIDKey   = "x-user-id"
	UserUUIDKey = "x-user-uuid"
	EmailKey    = "x-user-email"
	RoleKey     = "x-user-role"
)

func SetJWTContext(c *gin.Context, msg JWTMessage) {
	c.Set(UserIDKey, msg.UserID)
	c.Set(UserUUIDKey, msg.UserUUID)
	c.Set(EmailKey, msg.Email)
	c.Set(RoleKey, string(msg.Role))
}

func GetToken(ctx *gin.Context) JWTMessage {
	var msg JWTMessage
	msg.UserID = ctx.GetUint(UserIDKey)
	msg.UserUUID = ctx.GetString(UserUUIDKey)
	msg.Email = ctx.GetString(EmailKey)
	msg.Role = model.UserRole(ctx.GetString(RoleKey))
	return msg
}
