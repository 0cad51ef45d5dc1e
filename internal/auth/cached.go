package auth

import (
	"context"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/anoixa/engi-tracker/cache/types"
)

const tokenCachePrefix = "auth:token:"

// CachedVerifier 缓存校验成功的身份，缓存键为令牌摘要，不保存令牌原文
type CachedVerifier struct {
	next   Verifier
	cache  types.Cache
	ttl    time.Duration
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewCachedVerifier 包装一个 Verifier
func NewCachedVerifier(next Verifier, cache types.Cache, ttl time.Duration, logger *zap.SugaredLogger) *CachedVerifier {
	return &CachedVerifier{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.Named("auth"),
		now:    time.Now,
	}
}

func cacheKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return tokenCachePrefix + hex.EncodeToString(sum[:])
}

func (v *CachedVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	key := cacheKey(token)

	var cached Identity
	err := v.cache.Get(ctx, key, &cached)
	switch {
	case err == nil:
		if cached.ExpiresAt.IsZero() || v.now().Before(cached.ExpiresAt) {
			return &cached, nil
		}
	case !types.IsCacheMiss(err):
		v.logger.Debugf("Token cache read failed: %v", err)
	}

	ident, err := v.next.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	// 缓存时长不超过令牌剩余有效期
	ttl := v.ttl
	if !ident.ExpiresAt.IsZero() {
		if remaining := ident.ExpiresAt.Sub(v.now()); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl > 0 {
		if err := v.cache.Set(ctx, key, ident, ttl); err != nil {
			v.logger.Debugf("Token cache write failed: %v", err)
		}
	}
	return ident, nil
}

// Revoke 删除令牌的缓存身份，之后的请求重新校验
func (v *CachedVerifier) Revoke(ctx context.Context, token string) {
	if err := v.cache.Delete(ctx, cacheKey(token)); err != nil && !types.IsCacheMiss(err) {
		v.logger.Warnf("Token cache evict failed: %v", err)
	}
}
