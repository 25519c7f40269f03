package main

import (
	"go.uber.org/zap"

	"github.com/tronpay/gateway/internal/app"
	"github.com/tronpay/gateway/internal/config"
	"github.com/tronpay/gateway/pkg/logger"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// 初始化日志
	if err := logger.Init(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: cfg.Service.Name,
	}); err != nil {
		panic(err)
	}
	defer logger.Sync()

	// 启动应用
	if err := app.New(cfg).Run(); err != nil {
		logger.Fatal("application error", zap.Error(err))
	}
}
