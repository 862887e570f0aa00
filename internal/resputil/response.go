package resputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teambrains/teambrains-backend/pkg/apperror"
)

// Response is the JSON envelope of every endpoint. Declared as a
// generic type so swagger annotations can name the payload.
type Response[T any] struct {
	Code ErrorCode `json:"code"`
	Data T         `json:"data"`
	Msg  string    `json:"msg"`
}

func wrapResponse(c *gin.Context, httpCode int, msg string, data any, code ErrorCode) {
	c.JSON(httpCode, gin.H{
		"code": code,
		"data": data,
		"msg":  msg,
	})
}

func Success(c *gin.Context, data any) {
	wrapResponse(c, http.StatusOK, "", data, OK)
}

// Created is Success with a 201, used by endpoints creating an entity.
func Created(c *gin.Context, data any) {
	wrapResponse(c, http.StatusCreated, "", data, OK)
}

func Error(c *gin.Context, msg string, errorCode ErrorCode) {
	wrapResponse(c, http.StatusInternalServerError, msg, nil, errorCode)
}

func HTTPError(c *gin.Context, httpCode int, msg string, errorCode ErrorCode) {
	wrapResponse(c, httpCode, msg, nil, errorCode)
}

func BadRequestError(c *gin.Context, msg string) {
	HTTPError(c, http.StatusBadRequest, msg, InvalidRequest)
}

// FromError maps a typed service error onto the HTTP conventions:
// 400 invalid argument, 403 forbidden, 404 not found, 409 conflict or
// failed precondition, 500 anything else.
func FromError(c *gin.Context, err error) {
	var e *apperror.Error
	if !errors.As(err, &e) {
		Error(c, err.Error(), NotSpecified)
		return
	}
	switch e.Kind {
	case apperror.KindInvalidArgument:
		HTTPError(c, http.StatusBadRequest, e.Msg, InvalidRequest)
	case apperror.KindNotFound:
		HTTPError(c, http.StatusNotFound, e.Msg, EntityNotFound)
	case apperror.KindForbidden:
		HTTPError(c, http.StatusForbidden, e.Msg, NotProjectMember)
	case apperror.KindConflict, apperror.KindFailedPrecondition:
		HTTPError(c, http.StatusConflict, e.Msg, StateConflict)
	default:
		Error(c, e.Error(), NotSpecified)
	}
}
