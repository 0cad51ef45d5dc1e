package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// UnconfiguredStorage 缺少必需配置时的占位实现
// 服务照常启动，所有存储操作返回 ErrNotConfigured
type UnconfiguredStorage struct {
	name    string
	missing []string
}

// NewUnconfiguredStorage 创建占位存储，name 为配置的存储类型
func NewUnconfiguredStorage(name string, missing []string) *UnconfiguredStorage {
	return &UnconfiguredStorage{name: name, missing: missing}
}

// ConfigError 返回缺少配置的错误
func (u *UnconfiguredStorage) ConfigError() error {
	return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(u.missing, ", "))
}

func (u *UnconfiguredStorage) Put(context.Context, string, io.Reader, int64, PutOptions) error {
	return u.ConfigError()
}

func (u *UnconfiguredStorage) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, u.ConfigError()
}

func (u *UnconfiguredStorage) Delete(context.Context, string) error {
	return u.ConfigError()
}

func (u *UnconfiguredStorage) DeleteBatch(context.Context, []string) error {
	return u.ConfigError()
}

func (u *UnconfiguredStorage) List(context.Context, string, string, int) (ListPage, error) {
	return ListPage{}, u.ConfigError()
}

func (u *UnconfiguredStorage) PublicURL(string) string { return "" }

func (u *UnconfiguredStorage) Health(context.Context) error { return u.ConfigError() }

func (u *UnconfiguredStorage) Name() string { return u.name }

// CheckConfigured 存储缺少配置时返回 ErrNotConfigured，包装层会继续向内检查
func CheckConfigured(p Provider) error {
	for p != nil {
		if c, ok := p.(interface{ ConfigError() error }); ok {
			return c.ConfigError()
		}
		u, ok := p.(interface{ Unwrap() Provider })
		if !ok {
			return nil
		}
		p = u.Unwrap()
	}
	return nil
}
