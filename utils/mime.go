package utils

import (
	"path"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// mimeToExtMap 常见图片 MIME 类型到扩展名的映射
var mimeToExtMap = map[string]string{
	"image/jpeg":    "jpg",
	"image/png":     "png",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/bmp":     "bmp",
	"image/svg+xml": "svg",
	"image/tiff":    "tiff",
}

// safeExtension 扩展名会拼进对象键和公开 URL，只允许单个路径段内的安全字符
var safeExtension = regexp.MustCompile(`^[A-Za-z0-9.+-]{1,16}$`)

// IsSafeExtension 判断扩展名能否直接用于对象键
func IsSafeExtension(ext string) bool {
	return safeExtension.MatchString(ext)
}

// normalizeMIME 去除参数并转为小写
func normalizeMIME(mimeType string) string {
	mimeType = strings.Split(mimeType, ";")[0]
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// IsImageMIME 判断 MIME 类型是否以 image/ 开头
func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(normalizeMIME(mimeType), "image/")
}

// ExtensionForMIME 根据 MIME 类型推导扩展名（不含点）
// 未知类型返回子类型，例如 image/x-icon -> x-icon；子类型含不安全字符时返回空字符串
func ExtensionForMIME(mimeType string) string {
	mimeType = normalizeMIME(mimeType)
	if ext, ok := mimeToExtMap[mimeType]; ok {
		return ext
	}
	if i := strings.IndexByte(mimeType, '/'); i >= 0 && IsSafeExtension(mimeType[i+1:]) {
		return mimeType[i+1:]
	}
	return ""
}

// ExtensionFromFilename 返回文件名中最后一个点之后的部分，不做大小写转换
// 没有后缀或后缀含不安全字符时返回空字符串
func ExtensionFromFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	i := strings.LastIndexByte(base, '.')
	if i < 0 || !IsSafeExtension(base[i+1:]) {
		return ""
	}
	return base[i+1:]
}

// DetectContentType 嗅探数据的实际 MIME 类型
func DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}
