package response

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
	"github.com/kayprogrammer/socialnet-v2/pkg/logger"
	"github.com/kayprogrammer/socialnet-v2/pkg/validation"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Response REST 接口统一响应结构
type Response struct {
	Status  string    `json:"status"`
	Code    errs.Code `json:"code,omitempty"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func Success(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{Status: StatusSuccess, Message: message, Data: data})
}

func Created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, Response{Status: StatusSuccess, Message: message, Data: data})
}

func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{Status: StatusFailure, Code: errs.CodeInvalidValue, Message: message})
}

func Unauthorized(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// InternalError 记录日志并上报 Sentry，返回通用服务端错误，不向客户端暴露原因
func InternalError(c *gin.Context, err error) {
	logger.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
	c.JSON(http.StatusInternalServerError, Response{Status: StatusFailure, Code: errs.CodeServerError, Message: "Server Error"})
}

// Bind 处理 ShouldBind* 失败，校验错误转为 INVALID_ENTRY 并按字段给出信息
func Bind(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		Error(c, errs.InvalidFields(validation.Fields(verrs)))
		return
	}
	Error(c, errs.InvalidFields(map[string]string{"body": "Invalid request body"}))
}

// Error 将 *errs.AppError 映射为 HTTP 状态码，其他错误按服务端错误处理
func Error(c *gin.Context, err error) {
	var appErr *errs.AppError
	if !errors.As(err, &appErr) || appErr.Code == errs.CodeServerError {
		InternalError(c, err)
		return
	}
	body := Response{Status: StatusFailure, Code: appErr.Code, Message: appErr.Message}
	if len(appErr.Fields) > 0 {
		body.Data = appErr.Fields
	}
	c.JSON(StatusOf(appErr.Code), body)
}

func StatusOf(code errs.Code) int {
	switch code {
	case errs.CodeInvalidEntry:
		return http.StatusUnprocessableEntity
	case errs.CodeInvalidValue:
		return http.StatusBadRequest
	case errs.CodeNonExistent:
		return http.StatusNotFound
	case errs.CodeInvalidOwner:
		return http.StatusForbidden
	case errs.CodeAlreadyExists:
		return http.StatusConflict
	case errs.CodeInvalidAuth, errs.CodeInvalidToken:
		return http.StatusUnauthorized
	case errs.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
