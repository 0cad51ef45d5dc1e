package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anoixa/engi-tracker/api/common"
	"github.com/anoixa/engi-tracker/internal/auth"
)

const (
	ContextUserIDKey   = "user_id"
	ContextIdentityKey = "identity"
	ContextTokenKey    = "access_token"
)

// BearerAuth 校验 Authorization: Bearer <token>，通过后把用户 ID 写入上下文
func BearerAuth(verifier auth.Verifier, logger *zap.SugaredLogger) gin.HandlerFunc {
	logger = logger.Named("auth")
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			common.RespondErrorAbort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrNotConfigured) {
				logger.Error("Token verification is not configured")
				common.RespondErrorAbort(c, http.StatusInternalServerError, "Server configuration error")
				return
			}
			logger.Debugf("Token rejected from %s: %v", c.ClientIP(), err)
			common.RespondErrorAbort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		c.Set(ContextUserIDKey, identity.UserID)
		c.Set(ContextIdentityKey, identity)
		c.Set(ContextTokenKey, token)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// GetUserID 读取 BearerAuth 写入的用户 ID
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}

// GetToken 读取本次请求的访问令牌
func GetToken(c *gin.Context) string {
	return c.GetString(ContextTokenKey)
}
