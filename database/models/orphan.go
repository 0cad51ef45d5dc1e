package models

import "time"

// StorageOrphan 尽力删除失败后遗留在对象存储中的键或前缀
type StorageOrphan struct {
	ID          uint   `gorm:"primaryKey"`
	KeyOrPrefix string `gorm:"type:varchar(1024);not null;uniqueIndex"`
	IsPrefix    bool   `gorm:"not null;default:false"`
	Reason      string `gorm:"type:varchar(64);not null;index"`
	Attempts    int    `gorm:"not null;default:0"`
	LastError   string `gorm:"type:varchar(1024)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// 孤儿记录来源
const (
	OrphanReasonSourceDelete    = "thumbnail_source_delete"
	OrphanReasonAvatarThumbnail = "avatar_thumbnail_delete"
	OrphanReasonAvatarOriginal  = "avatar_original_delete"
	OrphanReasonAccountCleanup  = "account_cleanup"
)
