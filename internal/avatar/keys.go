package avatar

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// 对象键布局
//
//	avatars/<userId>/<millis>-<rand>.<ext>             原图，缩略图生成后删除
//	thumbnails/avatars/<userId>/<millis>-<rand>.<ext>  缩略图，对外展示
const (
	AvatarsPrefix    = "avatars/"
	ThumbnailsPrefix = "thumbnails/"
)

// ErrInvalidAvatarURL URL 中不包含 avatars 路径段
var ErrInvalidAvatarURL = errors.New("invalid avatar url")

// UserAvatarPrefix 用户原图前缀
func UserAvatarPrefix(userID string) string {
	return AvatarsPrefix + userID + "/"
}

// UserThumbnailPrefix 用户缩略图前缀
func UserThumbnailPrefix(userID string) string {
	return ThumbnailsPrefix + UserAvatarPrefix(userID)
}

// IsThumbnailKey 是否位于 thumbnails/ 下
func IsThumbnailKey(key string) bool {
	return strings.HasPrefix(key, ThumbnailsPrefix)
}

// ThumbnailKey 原图键对应的缩略图键
func ThumbnailKey(originalKey string) string {
	return ThumbnailsPrefix + originalKey
}

// OriginalKey 去掉 thumbnails/ 前缀
func OriginalKey(key string) string {
	return strings.TrimPrefix(key, ThumbnailsPrefix)
}

// NewFilename 生成 <毫秒时间戳>-<8位随机十六进制>[.<ext>]
// 随机部分避免同一毫秒内的重名覆盖
func NewFilename(now time.Time, ext string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	name := strconv.FormatInt(now.UnixMilli(), 10) + "-" + id[:8]
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// ParseAvatarURL 从公开 URL 中提取对象键
// thumbnails 段出现在 avatars 段之前时视为缩略图 URL
func ParseAvatarURL(raw string) (key string, isThumbnail bool, err error) {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}

	parts := strings.Split(raw, "/")
	avatarsIdx, thumbnailsIdx := -1, -1
	for i, p := range parts {
		if p == "avatars" && avatarsIdx == -1 {
			avatarsIdx = i
		}
		if p == "thumbnails" && thumbnailsIdx == -1 {
			thumbnailsIdx = i
		}
	}

	switch {
	case thumbnailsIdx != -1 && avatarsIdx != -1 && thumbnailsIdx < avatarsIdx:
		return strings.Join(parts[thumbnailsIdx:], "/"), true, nil
	case avatarsIdx != -1:
		return strings.Join(parts[avatarsIdx:], "/"), false, nil
	default:
		return "", false, ErrInvalidAvatarURL
	}
}

// OwnsKey 判断键（原图或缩略图形式）是否属于该用户
func OwnsKey(key, userID string) bool {
	if userID == "" {
		return false
	}
	normalized := OriginalKey(key)
	if !strings.HasPrefix(normalized, UserAvatarPrefix(userID)) {
		return false
	}
	for _, seg := range strings.Split(normalized, "/") {
		if seg == ".." || seg == "." {
			return false
		}
	}
	return true
}
