package utils

import (
	"context"
	"errors"
	"strings"
)

// IsContextCanceled 检查错误是否是由于上下文取消导致的
// SDK 有时只保留错误文本，因此也匹配字符串
func IsContextCanceled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return strings.Contains(err.Error(), "context canceled")
}

// IsClientDisconnect 检查错误是否是客户端断开连接
func IsClientDisconnect(err error) bool {
	return IsContextCanceled(err)
}
