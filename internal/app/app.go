// Package app 提供应用生命周期管理
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tronpay/gateway/internal/cache"
	"github.com/tronpay/gateway/internal/client"
	"github.com/tronpay/gateway/internal/config"
	"github.com/tronpay/gateway/internal/handler"
	"github.com/tronpay/gateway/internal/kafka"
	"github.com/tronpay/gateway/internal/publisher"
	"github.com/tronpay/gateway/internal/repository"
	"github.com/tronpay/gateway/internal/service"
	"github.com/tronpay/gateway/internal/worker"
	"github.com/tronpay/gateway/pkg/logger"
)

const serviceName = "tron-gateway"

// App 应用实例
type App struct {
	cfg *config.Config

	// 基础设施
	db   *gorm.DB
	rdb  *redis.Client
	grid *client.TronGridClient

	// HTTP
	httpServer *http.Server

	// Kafka
	producer *kafka.Producer

	// 消息发布者
	transferPublisher *publisher.TransferPublisher
	walletPublisher   *publisher.WalletPublisher

	// 仓储层
	walletRepo   repository.WalletRepository
	transferRepo repository.TransferRepository
	incomingRepo repository.IncomingRepository

	// 服务层
	feeSvc        service.FeeService
	sponsorSvc    service.SponsorService
	activationSvc service.ActivationService
	walletSvc     service.WalletService
	transferSvc   service.TransferService

	// Workers
	transferWorker  *worker.TransferWorker
	incomingScanner *worker.IncomingScanner

	// 生命周期
	ctx    context.Context
	cancel context.CancelFunc
}

// New 创建应用实例
func New(cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run 启动应用
func (a *App) Run() error {
	logger.Info("starting service", zap.String("service", serviceName))

	// 1. 基础设施
	if err := a.initInfra(); err != nil {
		return fmt.Errorf("init infra: %w", err)
	}

	// 2. Kafka (可选)
	if err := a.initKafka(); err != nil {
		return fmt.Errorf("init kafka: %w", err)
	}
	a.initPublishers()

	// 3. 仓储层
	a.initRepositories()

	// 4. 服务层
	if err := a.initServices(); err != nil {
		return fmt.Errorf("init services: %w", err)
	}

	// 5. 后台任务
	a.initWorkers()
	a.startWorkers()

	// 6. HTTP 服务器
	if err := a.startHTTPServer(); err != nil {
		return fmt.Errorf("start http: %w", err)
	}

	// 7. 等待关闭信号
	a.waitForShutdown()

	return nil
}

// initInfra 初始化基础设施
func (a *App) initInfra() error {
	var err error

	a.db, err = gorm.Open(postgres.Open(a.cfg.Database.DSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(a.cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(a.cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(a.cfg.Database.ConnMaxLifetimeMinutes) * time.Minute)

	if err := AutoMigrate(a.db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("database migrated")

	a.rdb = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr(),
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
		PoolSize: a.cfg.Redis.PoolSize,
	})

	a.grid = client.NewTronGridClient(&a.cfg.TronGrid)
	logger.Info("trongrid client initialized", zap.String("base_url", a.cfg.TronGrid.BaseURL))

	return nil
}

// initKafka 初始化 Kafka
func (a *App) initKafka() error {
	if !a.cfg.Kafka.Enabled {
		logger.Warn("kafka is disabled, event publishing is a no-op")
		return nil
	}

	var err error
	a.producer, err = kafka.NewProducer(kafka.DefaultProducerConfig(a.cfg.Kafka.Brokers))
	if err != nil {
		return fmt.Errorf("create producer: %w", err)
	}
	return nil
}

// initPublishers 初始化消息发布者
// producer 为 nil 时发布者退化为 no-op
func (a *App) initPublishers() {
	var producer publisher.KafkaProducer
	if a.producer != nil {
		producer = a.producer
	}
	a.transferPublisher = publisher.NewTransferPublisher(producer)
	a.walletPublisher = publisher.NewWalletPublisher(producer)
}

// initRepositories 初始化仓储层
func (a *App) initRepositories() {
	a.walletRepo = repository.NewWalletRepository(a.db)
	a.transferRepo = repository.NewTransferRepository(a.db)
	a.incomingRepo = repository.NewIncomingRepository(a.db)
}

// initServices 初始化服务层
func (a *App) initServices() error {
	stateCache := cache.NewNetworkStateCache(a.rdb,
		time.Duration(a.cfg.Fee.NetworkStateTTLSec)*time.Second)
	masterLock := cache.NewMasterLock(a.rdb)

	a.feeSvc = service.NewFeeService(
		a.grid,
		service.NewStaticRateProvider(a.cfg.Fee.TrxUsdtRate),
		stateCache,
		a.cfg.Fee,
		a.cfg.TronGrid,
		a.cfg.USDT.ContractAddress,
		a.cfg.Master.Address,
	)

	sender, err := service.NewTrxSender(a.grid, a.cfg.Master.Address, a.cfg.Master.PrivateKey, masterLock)
	if err != nil {
		return fmt.Errorf("master wallet: %w", err)
	}

	a.sponsorSvc = service.NewSponsorService(sender, a.cfg.Sponsor, a.cfg.Poll)
	a.activationSvc = service.NewActivationService(sender, a.walletRepo, a.walletPublisher, a.cfg.Activation)
	a.walletSvc = service.NewWalletService(a.walletRepo, a.grid, a.activationSvc, a.walletPublisher, a.cfg.USDT.ContractAddress)

	a.transferSvc = service.NewTransferService(
		a.transferRepo,
		a.walletRepo,
		a.grid,
		a.feeSvc,
		a.sponsorSvc,
		a.transferPublisher,
		a.cfg.Poll,
		a.cfg.TronGrid,
		a.cfg.USDT.ContractAddress,
		a.cfg.Master.Address,
		a.cfg.Worker.BatchSize,
	)

	return nil
}

// initWorkers 初始化后台任务
func (a *App) initWorkers() {
	a.transferWorker = worker.NewTransferWorker(&worker.TransferWorkerConfig{
		PendingInterval: time.Duration(a.cfg.Worker.PendingIntervalSec) * time.Second,
		ResumeInterval:  time.Duration(a.cfg.Worker.ResumeIntervalSec) * time.Second,
	}, a.transferSvc)

	if a.cfg.Scanner.Enabled {
		a.incomingScanner = worker.NewIncomingScanner(&worker.IncomingScannerConfig{
			Interval:    time.Duration(a.cfg.Scanner.IntervalSec) * time.Second,
			PageSize:    a.cfg.Scanner.PageSize,
			WalletBatch: a.cfg.Worker.BatchSize,
		}, a.grid, a.walletRepo, a.incomingRepo, a.walletPublisher, a.cfg.USDT.ContractAddress)
	}
}

// startWorkers 启动后台任务
func (a *App) startWorkers() {
	a.transferWorker.Start(a.ctx)

	if a.incomingScanner != nil {
		a.incomingScanner.Start(a.ctx)
	}
}

// startHTTPServer 启动 HTTP 服务器
func (a *App) startHTTPServer() error {
	if a.cfg.Service.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	router := handler.NewRouter(engine)
	router.RegisterMiddleware()
	router.RegisterRoutes(
		handler.NewHealthHandler(a.db, a.rdb),
		handler.NewWalletHandler(a.walletSvc),
		handler.NewTransferHandler(a.transferSvc),
		handler.NewFeeHandler(a.transferSvc, a.feeSvc),
		handler.NewDebugHandler(a.grid, a.cfg.USDT.ContractAddress),
	)

	a.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Service.HTTPPort),
		Handler: engine,
	}

	go func() {
		logger.Info("http server listening", zap.Int("port", a.cfg.Service.HTTPPort))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http serve error", zap.Error(err))
		}
	}()

	return nil
}

// waitForShutdown 等待关闭信号
func (a *App) waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	a.shutdown()
}

// shutdown 优雅关闭
func (a *App) shutdown() {
	a.cancel()

	if a.transferWorker != nil {
		a.transferWorker.Stop()
	}
	if a.incomingScanner != nil {
		a.incomingScanner.Stop()
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			logger.Error("close kafka producer failed", zap.Error(err))
		}
	}

	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", zap.Error(err))
		}
	}

	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	logger.Info("service stopped")
}
