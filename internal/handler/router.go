package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tronpay/gateway/internal/middleware"
)

// Router 路由管理器
type Router struct {
	engine *gin.Engine
}

// NewRouter 创建路由管理器
func NewRouter(engine *gin.Engine) *Router {
	return &Router{engine: engine}
}

// RegisterMiddleware 注册全局中间件
// 链: Recovery → Logger → Metrics
func (r *Router) RegisterMiddleware() {
	r.engine.Use(
		middleware.Recovery(),
		middleware.Logger(),
		middleware.Metrics(),
	)
}

// RegisterRoutes 注册路由
func (r *Router) RegisterRoutes(
	healthHandler *HealthHandler,
	walletHandler *WalletHandler,
	transferHandler *TransferHandler,
	feeHandler *FeeHandler,
	debugHandler *DebugHandler,
) {
	// 健康检查与指标
	r.engine.GET("/health/live", healthHandler.Live)
	r.engine.GET("/health/ready", healthHandler.Ready)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")
	{
		wallets := api.Group("/wallets")
		{
			wallets.POST("", walletHandler.CreateWallet)
			wallets.GET("", walletHandler.ListWallets)
			wallets.GET("/:id", walletHandler.GetWallet)
			wallets.GET("/:id/balance", walletHandler.GetBalance)
			wallets.POST("/:id/activate", walletHandler.ActivateWallet)
		}

		transfers := api.Group("/transfers")
		{
			transfers.POST("", transferHandler.CreateTransfer)
			transfers.GET("", transferHandler.QueryTransfers)
			transfers.GET("/:id", transferHandler.GetTransfer)
			transfers.POST("/:id/cancel", transferHandler.CancelTransfer)
		}

		fees := api.Group("/fees")
		{
			fees.GET("/quote", feeHandler.Quote)
			fees.GET("/stats", feeHandler.Stats)
		}

		if debugHandler != nil {
			debug := api.Group("/debug")
			{
				debug.POST("/build-trx", debugHandler.BuildTRX)
				debug.POST("/build-trc20", debugHandler.BuildTRC20)
				debug.GET("/tx/:id", debugHandler.GetTransactionInfo)
			}
		}
	}
}
