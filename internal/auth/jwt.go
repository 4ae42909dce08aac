package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ActorClaims 访问令牌声明
type ActorClaims struct {
	Sub      string `json:"sub"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// TokenValidator 访问令牌验证器
// 身份签发归外部协作方,这里只验证签名并提取 actor
type TokenValidator struct {
	secret []byte
	issuer string
}

// NewTokenValidator 创建令牌验证器
func NewTokenValidator(secret string, issuer string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret), issuer: issuer}
}

// ValidateToken 验证令牌并返回声明
func (v *TokenValidator) ValidateToken(tokenString string) (*ActorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ActorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*ActorClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, errors.New("unexpected token issuer")
	}
	return claims, nil
}

// Middleware 认证中间件
// 验证 Bearer 令牌并把 user_id 写入请求上下文;
// 未配置密钥时跳过验证(本地开发),actor 取 X-Actor-ID 头
func Middleware(validator *TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if validator == nil || len(validator.secret) == 0 {
			if actor := c.GetHeader("X-Actor-ID"); actor != "" {
				injectActor(c, actor)
			}
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "missing bearer token",
			})
			return
		}

		claims, err := validator.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "invalid token",
			})
			return
		}

		injectActor(c, claims.Sub)
		c.Next()
	}
}

// injectActor 同时写入 gin 上下文与请求 context
func injectActor(c *gin.Context, actorID string) {
	c.Set("user_id", actorID)
	ctx := context.WithValue(c.Request.Context(), "user_id", actorID) //nolint:staticcheck
	c.Request = c.Request.WithContext(ctx)
}
