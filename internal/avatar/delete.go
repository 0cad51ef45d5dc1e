package avatar

import (
	"context"
	"errors"
	"sync"

	"github.com/anoixa/engi-tracker/database/models"
	"github.com/anoixa/engi-tracker/internal/apperr"
	"github.com/anoixa/engi-tracker/storage"
	"github.com/anoixa/engi-tracker/utils"
)

// DeleteAvatar 删除调用者自己的头像
// 缩略图与原图并发删除，两个删除都结束后返回成功，单个失败只记日志
func (s *Service) DeleteAvatar(ctx context.Context, userID, rawURL string) error {
	if rawURL == "" {
		return apperr.Validation("No URL provided")
	}

	key, _, err := ParseAvatarURL(rawURL)
	if err != nil {
		return apperr.Validation("Invalid URL format")
	}
	if !OwnsKey(key, userID) {
		s.deleteLog.Warnw("Rejected avatar delete for foreign key",
			"user", utils.SanitizeLogMessage(userID), "key", utils.SanitizeLogKey(key))
		return apperr.Forbidden("Unauthorized: You can only delete your own avatar")
	}
	if err := storage.CheckConfigured(s.store); err != nil {
		return apperr.Dependency(apperr.ConfigErrorMessage, err)
	}

	originalKey := OriginalKey(key)
	thumbnailKey := ThumbnailKey(originalKey)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := s.store.Delete(ctx, thumbnailKey); err != nil {
			s.deleteLog.Errorw("Error deleting thumbnail", "key", thumbnailKey, "error", err)
			if !errors.Is(err, storage.ErrNotFound) {
				recordOrphan(ctx, s.orphans, s.deleteLog, thumbnailKey, false, models.OrphanReasonAvatarThumbnail, err)
			}
			return
		}
		s.deleteLog.Infow("Deleted thumbnail", "key", thumbnailKey)
	}()

	go func() {
		defer wg.Done()
		if err := s.store.Delete(ctx, originalKey); err != nil {
			// 原图通常已被缩略图生成器删除
			s.deleteLog.Infow("Original image not found (likely already deleted by thumbnail generator)",
				"key", originalKey, "error", err)
			if !errors.Is(err, storage.ErrNotFound) {
				recordOrphan(ctx, s.orphans, s.deleteLog, originalKey, false, models.OrphanReasonAvatarOriginal, err)
			}
			return
		}
		s.deleteLog.Infow("Deleted original image", "key", originalKey)
	}()

	wg.Wait()
	return nil
}
