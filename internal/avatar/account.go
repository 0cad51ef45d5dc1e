package avatar

import (
	"context"

	"github.com/anoixa/engi-tracker/database/models"
	"github.com/anoixa/engi-tracker/internal/apperr"
	"github.com/anoixa/engi-tracker/storage"
	"github.com/anoixa/engi-tracker/utils"
)

// AccountDeletedMessage 账户删除成功时返回的消息
const AccountDeletedMessage = "Account deleted successfully"

// DeleteAccount 清理用户的全部头像对象，然后删除认证身份
// 存储清理为尽力而为，只有身份删除失败才会返回错误
func (s *Service) DeleteAccount(ctx context.Context, callerID, userID string) error {
	if userID == "" {
		return apperr.Validation("User ID is required")
	}
	if callerID != userID {
		s.accountLog.Warnw("Rejected cross-account deletion",
			"caller", utils.SanitizeLogMessage(callerID), "target", utils.SanitizeLogMessage(userID))
		return apperr.Forbidden("Invalid request")
	}
	// 存储未配置时直接失败，不删除认证身份
	if err := storage.CheckConfigured(s.store); err != nil {
		return apperr.Dependency(apperr.ConfigErrorMessage, err)
	}

	s.CleanupUserStorage(ctx, userID)

	if err := s.identity.DeleteUser(ctx, userID); err != nil {
		s.accountLog.Errorw("Failed to delete auth identity", "user", utils.SanitizeLogMessage(userID), "error", err)
		return apperr.Dependency("Failed to delete account", err)
	}

	s.accountLog.Infow("Account deleted", "user", utils.SanitizeLogMessage(userID))
	return nil
}

// CleanupUserStorage 删除用户两个前缀下的所有对象，失败时记录两个前缀以便离线清理
func (s *Service) CleanupUserStorage(ctx context.Context, userID string) {
	avatarPrefix := UserAvatarPrefix(userID)
	thumbPrefix := UserThumbnailPrefix(userID)

	res, err := NewPrefixDeleter(s.store, s.accountLog).DeletePrefixes(ctx, avatarPrefix, thumbPrefix)
	if err != nil {
		s.accountLog.Errorw("Storage cleanup failed, continuing with account deletion",
			"user", utils.SanitizeLogMessage(userID), "listed", res.Listed, "deleted", res.Deleted, "error", err)
		recordOrphan(ctx, s.orphans, s.accountLog, avatarPrefix, true, models.OrphanReasonAccountCleanup, err)
		recordOrphan(ctx, s.orphans, s.accountLog, thumbPrefix, true, models.OrphanReasonAccountCleanup, err)
		return
	}

	s.accountLog.Infow("Storage cleanup finished",
		"user", utils.SanitizeLogMessage(userID), "deleted", res.Deleted, "batches", res.Batches)
}
