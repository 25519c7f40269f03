package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tronpay/gateway/internal/repository"
	"github.com/tronpay/gateway/internal/service"
)

// WalletHandler 钱包处理器
type WalletHandler struct {
	wallets service.WalletService
}

// NewWalletHandler 创建钱包处理器
func NewWalletHandler(wallets service.WalletService) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

// CreateWalletRequest 创建钱包请求
type CreateWalletRequest struct {
	OwnerID string `json:"owner_id"`
}

// CreateWallet 创建钱包
// POST /api/v1/wallets
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	var req CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		BadRequest(c, err.Error())
		return
	}

	wallet, err := h.wallets.CreateWallet(c.Request.Context(), req.OwnerID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, wallet)
}

// GetWallet 获取钱包详情
// GET /api/v1/wallets/:id
func (h *WalletHandler) GetWallet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	wallet, err := h.wallets.GetWallet(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, wallet)
}

// ListWallets 分页查询钱包
// GET /api/v1/wallets
func (h *WalletHandler) ListWallets(c *gin.Context) {
	page := bindPagination(c)

	wallets, err := h.wallets.ListWallets(c.Request.Context(), page)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, gin.H{
		"items":     wallets,
		"total":     page.Total,
		"page":      page.Page,
		"page_size": page.PageSize,
	})
}

// GetBalance 查询钱包余额
// GET /api/v1/wallets/:id/balance
func (h *WalletHandler) GetBalance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	balances, err := h.wallets.GetBalances(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, balances)
}

// ActivateWallet 手动激活钱包
// POST /api/v1/wallets/:id/activate
func (h *WalletHandler) ActivateWallet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	txHash, err := h.wallets.ActivateWallet(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, gin.H{"tx_hash": txHash})
}

// pathID 解析路径中的数字 id
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

// bindPagination 解析分页参数
func bindPagination(c *gin.Context) *repository.Pagination {
	page := &repository.Pagination{Page: 1, PageSize: 20}
	if v := c.Query("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page.Page = p
		}
	}
	if v := c.Query("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 && ps <= 100 {
			page.PageSize = ps
		}
	}
	return page
}
