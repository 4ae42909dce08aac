package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorHandlerMiddleware 兜底错误处理中间件
// 控制器直接写响应;这里只收敛经 c.Error 注入但未被处理的错误,
// 统一为错误信封,避免泄露 gin 默认的纯文本输出
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		Error(c, http.StatusInternalServerError, "internal server error", c.Errors.Last().Error())
	}
}
