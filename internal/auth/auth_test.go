package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anoixa/engi-tracker/cache/memory"
	"github.com/anoixa/engi-tracker/config"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func TestHMACVerifier(t *testing.T) {
	v := NewHMACVerifier(testSecret)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	tests := []struct {
		name    string
		token   string
		wantID  string
		wantErr bool
	}{
		{
			name:   "sub claim",
			token:  signHS256(t, jwt.MapClaims{"sub": "user-1", "email": "a@example.com", "exp": exp.Unix()}),
			wantID: "user-1",
		},
		{
			name:   "user_id fallback",
			token:  signHS256(t, jwt.MapClaims{"user_id": "user-2", "exp": exp.Unix()}),
			wantID: "user-2",
		},
		{
			name:    "expired",
			token:   signHS256(t, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()}),
			wantErr: true,
		},
		{
			name:    "missing exp",
			token:   signHS256(t, jwt.MapClaims{"sub": "user-1"}),
			wantErr: true,
		},
		{
			name:    "anon key has no subject",
			token:   signHS256(t, jwt.MapClaims{"role": "anon", "exp": exp.Unix()}),
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   "not-a-jwt",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ident, err := v.Verify(ctx, tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, ident.UserID)
			assert.WithinDuration(t, exp, ident.ExpiresAt, time.Second)
		})
	}

	// 密钥不同
	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u", "exp": exp.Unix()}).
		SignedString([]byte("another-secret-another-secret-xx"))
	require.NoError(t, err)
	_, err = v.Verify(ctx, other)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRSAVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := NewRSAVerifier(pemBytes)
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"user_uuid": "rsa-user",
		"exp":       time.Now().Add(time.Hour).Unix(),
	}).SignedString(key)
	require.NoError(t, err)

	ident, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "rsa-user", ident.UserID)

	// HS256 令牌不能通过 RS256 校验
	_, err = v.Verify(context.Background(), signHS256(t, jwt.MapClaims{"sub": "x", "exp": time.Now().Add(time.Hour).Unix()}))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewRSAVerifier([]byte("not pem"))
	assert.Error(t, err)
}

func TestRemoteVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"remote-user","email":"r@example.com"}`))
		case "Bearer broken":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	v := NewRemoteVerifier(srv.URL+"/", "anon", srv.Client())
	ctx := context.Background()

	ident, err := v.Verify(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "remote-user", ident.UserID)
	assert.Equal(t, "r@example.com", ident.Email)

	_, err = v.Verify(ctx, "bad")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify(ctx, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)
	assert.Contains(t, err.Error(), "502")
}

func TestCachedVerifier(t *testing.T) {
	c, err := memory.NewMemory(memory.DefaultConfig())
	require.NoError(t, err)
	defer c.Close()

	var calls int32
	next := VerifierFunc(func(ctx context.Context, token string) (*Identity, error) {
		atomic.AddInt32(&calls, 1)
		if token == "bad" {
			return nil, ErrInvalidToken
		}
		return &Identity{UserID: "cached-user", ExpiresAt: time.Now().Add(time.Hour)}, nil
	})

	v := NewCachedVerifier(next, c, time.Minute, zap.NewNop().Sugar())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ident, err := v.Verify(ctx, "good")
		require.NoError(t, err)
		assert.Equal(t, "cached-user", ident.UserID)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// 失败结果不缓存
	for i := 0; i < 2; i++ {
		_, err := v.Verify(ctx, "bad")
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCachedVerifier_ExpiredEntryIsRechecked(t *testing.T) {
	c, err := memory.NewMemory(memory.DefaultConfig())
	require.NoError(t, err)
	defer c.Close()

	var calls int32
	next := VerifierFunc(func(ctx context.Context, token string) (*Identity, error) {
		atomic.AddInt32(&calls, 1)
		return &Identity{UserID: "u", ExpiresAt: time.Now().Add(time.Hour)}, nil
	})

	v := NewCachedVerifier(next, c, time.Minute, zap.NewNop().Sugar())
	ctx := context.Background()
	_, err = v.Verify(ctx, "t")
	require.NoError(t, err)

	// 模拟时间越过令牌有效期
	v.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = v.Verify(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCachedVerifier_Revoke(t *testing.T) {
	c, err := memory.NewMemory(memory.DefaultConfig())
	require.NoError(t, err)
	defer c.Close()

	var calls int32
	next := VerifierFunc(func(ctx context.Context, token string) (*Identity, error) {
		atomic.AddInt32(&calls, 1)
		return &Identity{UserID: "u", ExpiresAt: time.Now().Add(time.Hour)}, nil
	})

	v := NewCachedVerifier(next, c, time.Minute, zap.NewNop().Sugar())
	ctx := context.Background()
	_, err = v.Verify(ctx, "t")
	require.NoError(t, err)
	_, err = v.Verify(ctx, "other")
	require.NoError(t, err)

	Revoke(ctx, v, "t")
	Revoke(ctx, v, "never-cached")

	_, err = v.Verify(ctx, "t")
	require.NoError(t, err)
	_, err = v.Verify(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	// 不带缓存的 Verifier 直接忽略
	Revoke(ctx, next, "t")
}

func TestCacheKey_DoesNotContainToken(t *testing.T) {
	key := cacheKey("secret-token-value")
	assert.NotContains(t, key, "secret-token-value")
	assert.Equal(t, cacheKey("secret-token-value"), key)
	assert.NotEqual(t, cacheKey("other"), key)
}

func TestAdminClient_DeleteUser(t *testing.T) {
	var gotPath, gotMethod, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod, gotAuth = r.URL.EscapedPath(), r.Method, r.Header.Get("Authorization")
		if r.URL.Path == "/auth/v1/admin/users/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"msg":"Database error deleting user"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	a := NewAdminClient(srv.URL, "service-role", srv.Client())
	ctx := context.Background()

	require.NoError(t, a.DeleteUser(ctx, "user-1"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/auth/v1/admin/users/user-1", gotPath)
	assert.Equal(t, "Bearer service-role", gotAuth)

	err := a.DeleteUser(ctx, "fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Database error deleting user")

	assert.ErrorIs(t, NewAdminClient("", "", nil).DeleteUser(ctx, "x"), ErrNotConfigured)
}

func TestNewVerifier_Selection(t *testing.T) {
	logger := zap.NewNop().Sugar()

	v, err := NewVerifier(&config.Config{AuthJWTSecret: string(testSecret)}, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &JWTVerifier{}, v)

	v, err = NewVerifier(&config.Config{AuthURL: "http://auth", AuthAnonKey: "anon"}, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &RemoteVerifier{}, v)

	c, err := memory.NewMemory(memory.DefaultConfig())
	require.NoError(t, err)
	defer c.Close()
	v, err = NewVerifier(&config.Config{AuthJWTSecret: "s", AuthTokenCacheTTL: time.Minute}, c, logger)
	require.NoError(t, err)
	assert.IsType(t, &CachedVerifier{}, v)

	v, err = NewVerifier(&config.Config{}, nil, logger)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewVerifier(&config.Config{AuthJWTPublicKeyPath: "/nonexistent/key.pem"}, nil, logger)
	assert.Error(t, err)
}
