package service

import "context"

// getUserIDFromContext 从 context 提取认证中间件写入的用户 ID
func getUserIDFromContext(ctx context.Context) string {
	if value := ctx.Value("user_id"); value != nil {
		if userID, ok := value.(string); ok {
			return userID
		}
	}
	return ""
}
