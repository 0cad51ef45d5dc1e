package avatar

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anoixa/engi-tracker/api/common"
	"github.com/anoixa/engi-tracker/api/middleware"
	avatarSvc "github.com/anoixa/engi-tracker/internal/avatar"
)

// UploadResponse 上传成功响应
type UploadResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Key     string `json:"key"`
}

// UploadAvatar 处理头像上传，表单字段为 file
func (h *Handler) UploadAvatar(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "No file provided")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Errorw("Failed to open uploaded file", "error", err)
		common.RespondError(c, http.StatusInternalServerError, "Failed to read file")
		return
	}
	defer func() { _ = file.Close() }()

	result, err := h.svc.Upload(c.Request.Context(), middleware.GetUserID(c), &avatarSvc.UploadInput{
		Filename:    fileHeader.Filename,
		Size:        fileHeader.Size,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		common.RespondAppError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, UploadResponse{Success: true, URL: result.URL, Key: result.Key})
}
