/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/jobflow-gin/internal/api"
	"github.com/mautops/jobflow-gin/internal/config"
	"github.com/mautops/jobflow-gin/internal/container"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the Jobflow Gin API server.
The server will listen on the configured host and port,
and provide REST API interfaces for question-driven job
stage progression, workflow definition and reporting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// 2. 初始化容器
		ctr, err := container.NewContainer(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		// 3. 配置热更新:监听文件变化,重载租户特权用户映射
		if configPath != "" {
			watcher := config.NewConfigWatcher(cfg, configPath)
			watcher.OnConfigChange(func(updated *config.Config) {
				for tenantID, userID := range updated.Auth.Admins {
					ctr.Directory().SetAdmin(tenantID, userID)
				}
			})
			if err := watcher.Start(); err != nil {
				log.Printf("Config watcher disabled: %v", err)
			} else {
				defer watcher.Stop()
			}
		}

		// 4. 初始化控制器并设置路由
		controllers := api.Controllers{
			Workflow:    api.NewWorkflowController(ctr.WorkflowService()),
			Job:         api.NewJobController(ctr.JobService()),
			Progression: api.NewProgressionController(ctr.ProgressionService()),
			Report:      api.NewReportController(ctr.ReportService(), ctr.SLAService()),
		}
		router := api.SetupRoutes(ctr.DB(), ctr.TokenValidator(), cfg.CORS.AllowedOrigins, controllers)

		// 自定义 NoRoute 处理器,返回 JSON 格式的 404
		router.NoRoute(func(c *gin.Context) {
			api.Error(c, http.StatusNotFound, "route not found", "the requested route does not exist")
		})

		// 5. 启动服务器
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: router,
		}

		// 启动服务器（在 goroutine 中）
		go func() {
			log.Printf("Server starting on %s", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("Shutting down server...")

		// 优雅关闭
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		log.Println("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// 服务器配置标志
	serverCmd.Flags().String("config", "", "Config file path (default: config.yaml)")
	serverCmd.Flags().String("host", "0.0.0.0", "Server host")
	serverCmd.Flags().Int("port", 8080, "Server port")
}

// LoadConfig 加载配置
func LoadConfig(configPath string) (*config.Config, error) {
	return config.Load(configPath)
}
