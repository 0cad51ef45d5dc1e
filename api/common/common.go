package common

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anoixa/engi-tracker/internal/apperr"
	"github.com/anoixa/engi-tracker/utils"
)

// ErrorResponse 所有失败响应的格式
type ErrorResponse struct {
	Error string `json:"error"`
}

// RespondError sends an error response with message.
func RespondError(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, ErrorResponse{Error: message})
}

// RespondErrorAbort sends an error response and aborts the handler chain.
func RespondErrorAbort(c *gin.Context, httpStatus int, message string) {
	c.AbortWithStatusJSON(httpStatus, ErrorResponse{Error: message})
}

// RespondAppError 将服务层错误渲染为响应，5xx 错误记录内部原因
// 客户端已断开时只记 debug
func RespondAppError(c *gin.Context, logger *zap.SugaredLogger, err error) {
	status, msg := apperr.Render(err)
	if status >= 500 && logger != nil {
		if utils.IsClientDisconnect(err) {
			logger.Debugw("Client disconnected", "path", c.FullPath(), "error", err)
		} else {
			logger.Errorw("Request failed", "path", c.FullPath(), "status", status, "error", err)
		}
	}
	RespondError(c, status, msg)
}
