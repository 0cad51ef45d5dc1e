package orphans

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/anoixa/engi-tracker/database"
	"github.com/anoixa/engi-tracker/database/models"
)

const maxErrorLen = 1000

// Repository 孤儿对象台账仓库
type Repository struct {
	db database.Provider
}

// NewRepository 创建新的孤儿对象仓库
func NewRepository(db database.Provider) *Repository {
	return &Repository{db: db}
}

func truncate(s string) string {
	if len(s) > maxErrorLen {
		return s[:maxErrorLen]
	}
	return s
}

// Record 记录一个删除失败的键或前缀，重复记录时刷新原因与错误
func (r *Repository) Record(ctx context.Context, keyOrPrefix string, isPrefix bool, reason string, cause error) error {
	if keyOrPrefix == "" {
		return errors.New("empty key")
	}
	lastErr := ""
	if cause != nil {
		lastErr = truncate(cause.Error())
	}

	orphan := &models.StorageOrphan{
		KeyOrPrefix: keyOrPrefix,
		IsPrefix:    isPrefix,
		Reason:      reason,
		LastError:   lastErr,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key_or_prefix"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_prefix", "reason", "last_error", "updated_at"}),
	}).Create(orphan).Error
}

// Pending 按创建时间取出待清理记录，limit <= 0 表示不限制
func (r *Repository) Pending(ctx context.Context, limit int) ([]models.StorageOrphan, error) {
	var out []models.StorageOrphan
	q := r.db.WithContext(ctx).Order("created_at asc, id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve 清理成功后删除记录
func (r *Repository) Resolve(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.StorageOrphan{}, id).Error
}

// MarkFailed 清理失败时累加尝试次数
func (r *Repository) MarkFailed(ctx context.Context, id uint, cause error) error {
	lastErr := ""
	if cause != nil {
		lastErr = truncate(cause.Error())
	}
	res := r.db.WithContext(ctx).Model(&models.StorageOrphan{}).Where("id = ?", id).Updates(map[string]interface{}{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": lastErr,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Count 返回待清理记录数
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.StorageOrphan{}).Count(&n).Error
	return n, err
}
