package avatar

import (
	"context"
	"fmt"
	"io"

	"github.com/anoixa/engi-tracker/internal/apperr"
	"github.com/anoixa/engi-tracker/storage"
	"github.com/anoixa/engi-tracker/utils"
)

// UploadInput 上传的文件
type UploadInput struct {
	Filename string
	Size     int64
	// ContentType 客户端声明的类型，为空或 application/octet-stream 时按内容嗅探
	ContentType string
	Body        io.ReadSeeker
}

// UploadResult 上传结果
type UploadResult struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// Upload 校验并写入原图，所有校验都在写入之前完成
func (s *Service) Upload(ctx context.Context, userID string, in *UploadInput) (*UploadResult, error) {
	if err := storage.CheckConfigured(s.store); err != nil {
		return nil, apperr.Dependency(apperr.ConfigErrorMessage, err)
	}
	if in == nil || in.Body == nil {
		return nil, apperr.Validation("No file provided")
	}
	if in.Size > s.opts.MaxUploadBytes {
		return nil, apperr.Validation(fmt.Sprintf("File size exceeds %dMB limit", s.opts.MaxUploadBytes/(1024*1024)))
	}

	contentType, err := resolveContentType(in)
	if err != nil {
		return nil, apperr.Internal("Failed to read file", err)
	}
	if !utils.IsImageMIME(contentType) {
		return nil, apperr.Validation("Invalid file type. Only images are allowed.")
	}

	ext, err := resolveExtension(in, contentType)
	if err != nil {
		return nil, apperr.Internal("Failed to read file", err)
	}
	key := UserAvatarPrefix(userID) + NewFilename(s.opts.Now(), ext)

	err = s.store.Put(ctx, key, in.Body, in.Size, storage.PutOptions{
		ContentType:  contentType,
		CacheControl: uploadCacheControl,
	})
	if err != nil {
		s.uploadLog.Errorw("Avatar upload failed", "user", utils.SanitizeLogMessage(userID), "key", key, "error", err)
		return nil, apperr.Dependency("Failed to upload file", err)
	}

	s.uploadLog.Infow("Avatar uploaded", "user", utils.SanitizeLogMessage(userID), "key", key, "size", in.Size)
	return &UploadResult{URL: s.store.PublicURL(key), Key: key}, nil
}

// resolveContentType 优先使用声明的类型，缺失时嗅探前 3072 字节
func resolveContentType(in *UploadInput) (string, error) {
	declared := in.ContentType
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}
	return sniffContentType(in.Body)
}

// resolveExtension 依次取文件名后缀、声明类型、嗅探类型，都不可用时为 bin
// 客户端提供的值含不安全字符时视为缺失
func resolveExtension(in *UploadInput, contentType string) (string, error) {
	if ext := utils.ExtensionFromFilename(in.Filename); ext != "" {
		return ext, nil
	}
	if ext := utils.ExtensionForMIME(contentType); ext != "" {
		return ext, nil
	}

	sniffed, err := sniffContentType(in.Body)
	if err != nil {
		return "", err
	}
	if utils.IsImageMIME(sniffed) {
		if ext := utils.ExtensionForMIME(sniffed); ext != "" {
			return ext, nil
		}
	}
	return "bin", nil
}

// sniffContentType 读取开头部分后把 body 复位
func sniffContentType(body io.ReadSeeker) (string, error) {
	head := make([]byte, 3072)
	n, err := io.ReadFull(body, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return utils.DetectContentType(head[:n]), nil
}
