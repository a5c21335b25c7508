package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"arakoon-deploy-backend/internal/config"
	"arakoon-deploy-backend/internal/handler"
	"arakoon-deploy-backend/internal/pkg/logger"
	"arakoon-deploy-backend/internal/pkg/metrics"
	"arakoon-deploy-backend/internal/router"
	"arakoon-deploy-backend/internal/service"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "arakoon-deploy-server",
	Short: "HTTP API for deploying and operating Arakoon clusters",

	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "specifies a config file to load")

	configFlags := config.Flags()
	rootCmd.Flags().AddFlagSet(configFlags)
	if err := config.Bind(viper.GetViper(), configFlags); err != nil {
		panic(err)
	}
}

func run() error {
	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file loaded, using environment and defaults")
	}

	if err := config.ReadFile(viper.GetViper(), cfgFile); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	// 初始化日志
	appLogger, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	remotes, err := service.NewRemoteFactory(cfg.SSH, appLogger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New()
	if err := appMetrics.Register(registry); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化服务
	clusterService := service.NewClusterService(cfg.Arakoon, remotes, appMetrics, appLogger)
	taskService := service.NewTaskService(ctx, appLogger)
	sshService := service.NewSSHService(cfg.Arakoon, appLogger)

	// 初始化处理器
	sshHandler := handler.NewSSHHandler(sshService)
	clusterHandler := handler.NewClusterHandler(clusterService, taskService)
	taskHandler := handler.NewTaskHandler(taskService, cfg.Server.AllowOrigins, appLogger)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// CORS 配置
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	router.RegisterRoutes(r, sshHandler, clusterHandler, taskHandler)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Infof("Server starting on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
