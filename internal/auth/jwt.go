package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier 本地校验 JWT，支持 HS256 共享密钥或 RS256 公钥
type JWTVerifier struct {
	key     interface{}
	methods []string
	parser  *jwt.Parser
}

// NewHMACVerifier 使用共享密钥校验 HS256 令牌
func NewHMACVerifier(secret []byte) *JWTVerifier {
	return newJWTVerifier(secret, []string{jwt.SigningMethodHS256.Alg()})
}

// NewRSAVerifier 使用 PEM 格式公钥校验 RS256 令牌
func NewRSAVerifier(pemBytes []byte) (*JWTVerifier, error) {
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rsa public key: %w", err)
	}
	return newJWTVerifier(pub, []string{jwt.SigningMethodRS256.Alg()}), nil
}

func newJWTVerifier(key interface{}, methods []string) *JWTVerifier {
	return &JWTVerifier{
		key:     key,
		methods: methods,
		parser: jwt.NewParser(
			jwt.WithValidMethods(methods),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// Verify 校验签名与有效期并返回用户身份
func (v *JWTVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	claims := jwt.MapClaims{}
	t, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		switch v.key.(type) {
		case *rsa.PublicKey:
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
		default:
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
		}
		return v.key, nil
	})
	if err != nil || !t.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return identityFromClaims(claims)
}

// identityFromClaims 依次尝试 sub、user_id、user_uuid
func identityFromClaims(claims jwt.MapClaims) (*Identity, error) {
	id := ""
	for _, k := range []string{"sub", "user_id", "user_uuid"} {
		if s, ok := claims[k].(string); ok && s != "" {
			id = s
			break
		}
	}
	if id == "" {
		return nil, fmt.Errorf("%w: user id not found in token", ErrInvalidToken)
	}

	ident := &Identity{UserID: id}
	if email, ok := claims["email"].(string); ok {
		ident.Email = email
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ident.ExpiresAt = exp.Time
	}
	return ident, nil
}

// tokenExpiry 不校验签名读取 exp，仅用于限制缓存时长
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
