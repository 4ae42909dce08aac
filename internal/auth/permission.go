package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/openfga/go-sdk/client"
	"github.com/openfga/go-sdk/credentials"
)

// PermissionChecker 外部身份协作方的提权检查面
// 推进引擎只在管理员覆盖路径上查询一次
type PermissionChecker interface {
	// CanOverrideStage 判断 actor 是否持有对租户工作流的覆盖权限
	CanOverrideStage(ctx context.Context, actorID string, tenantID string) (bool, error)
}

// OpenFGAChecker 基于 OpenFGA 的提权检查实现
type OpenFGAChecker struct {
	client  *client.OpenFgaClient
	storeID string
	modelID string
}

// NewOpenFGAChecker 创建 OpenFGA 提权检查器
func NewOpenFGAChecker(apiURL string, storeID string, modelID string) (*OpenFGAChecker, error) {
	configuration := client.ClientConfiguration{
		ApiUrl:  apiURL,
		StoreId: storeID,
		Credentials: &credentials.Credentials{
			Method: credentials.CredentialsMethodNone,
		},
	}

	fgaClient, err := client.NewSdkClient(&configuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenFGA client: %w", err)
	}

	return &OpenFGAChecker{
		client:  fgaClient,
		storeID: storeID,
		modelID: modelID,
	}, nil
}

// NewOpenFGACheckerWithRetry 创建 OpenFGA 提权检查器(带重试)
// 初始间隔 interval,指数退避
func NewOpenFGACheckerWithRetry(apiURL string, storeID string, modelID string, retries int, interval time.Duration) (*OpenFGAChecker, error) {
	var checker *OpenFGAChecker
	var err error
	wait := interval
	for attempt := 0; attempt <= retries; attempt++ {
		checker, err = NewOpenFGAChecker(apiURL, storeID, modelID)
		if err == nil {
			return checker, nil
		}
		time.Sleep(wait)
		wait *= 2
	}
	return nil, err
}

// CanOverrideStage 实现 PermissionChecker
// 关系 stage_admin 定义在租户对象上
func (c *OpenFGAChecker) CanOverrideStage(ctx context.Context, actorID string, tenantID string) (bool, error) {
	body := client.ClientCheckRequest{
		User:     fmt.Sprintf("user:%s", actorID),
		Relation: "stage_admin",
		Object:   fmt.Sprintf("tenant:%s", tenantID),
	}

	response, err := c.client.Check(ctx).Body(body).Execute()
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}

	return response.GetAllowed(), nil
}

// AllowAllChecker 放行所有覆盖请求的检查实现
// 仅用于本地开发与测试
type AllowAllChecker struct{}

// CanOverrideStage 实现 PermissionChecker
func (AllowAllChecker) CanOverrideStage(context.Context, string, string) (bool, error) {
	return true, nil
}

// DenyAllChecker 拒绝所有覆盖请求的检查实现
type DenyAllChecker struct{}

// CanOverrideStage 实现 PermissionChecker
func (DenyAllChecker) CanOverrideStage(context.Context, string, string) (bool, error) {
	return false, nil
}
