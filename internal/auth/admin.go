package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// AdminClient 使用 service role 密钥调用认证服务管理接口
type AdminClient struct {
	baseURL        string
	serviceRoleKey string
	client         *http.Client
}

// NewAdminClient 创建管理客户端
func NewAdminClient(baseURL, serviceRoleKey string, client *http.Client) *AdminClient {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &AdminClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		serviceRoleKey: serviceRoleKey,
		client:         client,
	}
}

// DeleteUser 删除认证身份，数据库中的关联记录由认证服务级联删除
func (a *AdminClient) DeleteUser(ctx context.Context, userID string) error {
	if a.baseURL == "" || a.serviceRoleKey == "" {
		return ErrNotConfigured
	}

	endpoint := a.baseURL + "/auth/v1/admin/users/" + url.PathEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", a.serviceRoleKey)
	req.Header.Set("Authorization", "Bearer "+a.serviceRoleKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth admin request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("auth admin returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
