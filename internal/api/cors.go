package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// 浏览器端允许携带的请求头
// X-Actor-ID 供开发模式(未配置 JWT 密钥)标识操作人
const corsAllowedHeaders = "Content-Type, Authorization, X-Request-ID, X-Actor-ID"

// CORSMiddleware 跨源中间件
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		switch {
		case originAllowed(allowedOrigins, "*"):
			// 通配时不允许携带凭据
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && originAllowed(allowedOrigins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", corsAllowedHeaders)
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		// 预检请求不进入业务处理
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// originAllowed 判断来源是否在允许列表中
func originAllowed(allowed []string, origin string) bool {
	for _, item := range allowed {
		if strings.EqualFold(item, origin) {
			return true
		}
	}
	return false
}
