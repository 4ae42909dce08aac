package api

import (
	"github.com/gin-gonic/gin"
)

// securityHeaders 所有响应统一携带的安全头
var securityHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"X-XSS-Protection":          "1; mode=block",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Referrer-Policy":           "strict-origin-when-cross-origin",
}

// SecurityHeadersMiddleware 安全头中间件
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		for key, value := range securityHeaders {
			c.Header(key, value)
		}
		c.Next()
	}
}
