package avatar

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anoixa/engi-tracker/api/common"
	"github.com/anoixa/engi-tracker/api/middleware"
)

// DeleteAvatarRequest 删除头像请求
type DeleteAvatarRequest struct {
	URL string `json:"url"`
}

// DeleteAvatar 删除调用者自己的头像（原图与缩略图）
func (h *Handler) DeleteAvatar(c *gin.Context) {
	var req DeleteAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.svc.DeleteAvatar(c.Request.Context(), middleware.GetUserID(c), req.URL); err != nil {
		common.RespondAppError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
