package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// RemoteVerifier 调用认证服务 GET /auth/v1/user 校验令牌
type RemoteVerifier struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// NewRemoteVerifier 创建远程校验器
func NewRemoteVerifier(baseURL, anonKey string, client *http.Client) *RemoteVerifier {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &RemoteVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  client,
	}
}

type remoteUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", v.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth service request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("auth service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var user remoteUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode auth service response: %w", err)
	}
	if user.ID == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: tokenExpiry(token),
	}, nil
}
