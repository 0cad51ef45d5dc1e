package utils

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// NewLogger 创建 SugaredLogger，开发模式下使用可读的控制台格式
func NewLogger(dev bool) (*zap.SugaredLogger, error) {
	var z *zap.Logger
	var err error
	if dev {
		cfg := zap.NewDevelopmentConfig()
		z, err = cfg.Build()
	} else {
		z, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return z.Sugar(), nil
}

// SanitizeLogMessage 去除不可打印字符，防止日志注入
func SanitizeLogMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		if r == '\n' || r == '\t' {
			sb.WriteRune(' ')
		} else if unicode.IsPrint(r) || unicode.IsGraphic(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// SanitizeLogKey 截断过长的对象键后再清洗
func SanitizeLogKey(key string) string {
	if len(key) > 256 {
		key = key[:256] + "..."
	}
	return SanitizeLogMessage(key)
}
