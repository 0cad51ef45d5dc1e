package avatar

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anoixa/engi-tracker/api/common"
	"github.com/anoixa/engi-tracker/api/middleware"
	"github.com/anoixa/engi-tracker/internal/auth"
	avatarSvc "github.com/anoixa/engi-tracker/internal/avatar"
)

// DeleteAccountRequest 注销账户请求
type DeleteAccountRequest struct {
	UserID string `json:"userId"`
}

// DeleteAccount 注销账户：清理存储后删除认证身份
func (h *Handler) DeleteAccount(c *gin.Context) {
	var req DeleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.svc.DeleteAccount(c.Request.Context(), middleware.GetUserID(c), req.UserID); err != nil {
		common.RespondAppError(c, h.logger, err)
		return
	}

	// 身份已删除，缓存的校验结果不能继续放行
	auth.Revoke(c.Request.Context(), h.verifier, middleware.GetToken(c))

	c.JSON(http.StatusOK, gin.H{"message": avatarSvc.AccountDeletedMessage})
}
