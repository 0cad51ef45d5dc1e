// Package objects 为 local 与 memory 存储提供公开读取路由
package objects

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anoixa/engi-tracker/api/common"
	"github.com/anoixa/engi-tracker/internal/avatar"
	"github.com/anoixa/engi-tracker/storage"
	"github.com/anoixa/engi-tracker/utils"
)

// 读取上限，高于上传上限以容纳直接写入存储的对象
const maxObjectBytes = 64 << 20

// Handler 对象读取处理器
type Handler struct {
	store  storage.Provider
	logger *zap.SugaredLogger
}

// NewHandler 对象读取处理器
func NewHandler(store storage.Provider, logger *zap.SugaredLogger) *Handler {
	return &Handler{store: store, logger: logger.Named("objects")}
}

// GetObject GET /objects/*key
func (h *Handler) GetObject(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" || !storage.IsValidStoragePath(key) {
		common.RespondError(c, http.StatusBadRequest, "Invalid object key")
		return
	}

	rc, err := h.store.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			common.RespondError(c, http.StatusNotFound, "Object not found")
			return
		}
		h.logger.Errorf("Failed to read %s: %v", utils.SanitizeLogKey(key), err)
		common.RespondError(c, http.StatusInternalServerError, "Failed to read object")
		return
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, maxObjectBytes))
	if err != nil {
		h.logger.Errorf("Failed to read %s: %v", utils.SanitizeLogKey(key), err)
		common.RespondError(c, http.StatusInternalServerError, "Failed to read object")
		return
	}

	if avatar.IsThumbnailKey(key) {
		c.Header("Cache-Control", "max-age=31536000")
	} else {
		c.Header("Cache-Control", "max-age=3600")
	}
	c.Data(http.StatusOK, utils.DetectContentType(data), data)
}
