package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tronpay/gateway/internal/service"
)

// TransferHandler 转账处理器
type TransferHandler struct {
	transfers service.TransferService
}

// NewTransferHandler 创建转账处理器
func NewTransferHandler(transfers service.TransferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

// CreateTransferRequest 出账请求
type CreateTransferRequest struct {
	FromWalletID int64           `json:"from_wallet_id" binding:"required"`
	OrderAmount  decimal.Decimal `json:"order_amount" binding:"required"`
	ReferenceID  string          `json:"reference_id"`
	PreviewOnly  bool            `json:"preview_only"`
}

// CreateTransfer 受理出账
// POST /api/v1/transfers
func (h *TransferHandler) CreateTransfer(c *gin.Context) {
	var req CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	result, err := h.transfers.Transfer(c.Request.Context(), &service.TransferRequest{
		FromWalletID: req.FromWalletID,
		OrderAmount:  req.OrderAmount,
		ReferenceID:  req.ReferenceID,
		PreviewOnly:  req.PreviewOnly,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	if result.Quote != nil {
		Success(c, gin.H{"preview": true, "quote": result.Quote})
		return
	}
	if result.Pending {
		Accepted(c, result.Transfer)
		return
	}
	Success(c, result.Transfer)
}

// GetTransfer 查询转账
// GET /api/v1/transfers/:id
func (h *TransferHandler) GetTransfer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	transfer, err := h.transfers.GetTransfer(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, transfer)
}

// QueryTransfers 组合查询
// GET /api/v1/transfers?reference_id= | tx_hash= | wallet_id=
func (h *TransferHandler) QueryTransfers(c *gin.Context) {
	ctx := c.Request.Context()

	if referenceID := c.Query("reference_id"); referenceID != "" {
		transfer, err := h.transfers.GetTransferByReference(ctx, referenceID)
		if err != nil {
			HandleServiceError(c, err)
			return
		}
		Success(c, transfer)
		return
	}

	if txHash := c.Query("tx_hash"); txHash != "" {
		transfer, err := h.transfers.GetTransferByTxHash(ctx, txHash)
		if err != nil {
			HandleServiceError(c, err)
			return
		}
		Success(c, transfer)
		return
	}

	if walletIDStr := c.Query("wallet_id"); walletIDStr != "" {
		walletID, err := strconv.ParseInt(walletIDStr, 10, 64)
		if err != nil || walletID <= 0 {
			BadRequest(c, "invalid wallet_id")
			return
		}
		page := bindPagination(c)
		transfers, err := h.transfers.ListTransfers(ctx, walletID, page)
		if err != nil {
			HandleServiceError(c, err)
			return
		}
		Success(c, gin.H{
			"items":     transfers,
			"total":     page.Total,
			"page":      page.Page,
			"page_size": page.PageSize,
		})
		return
	}

	BadRequest(c, "one of reference_id, tx_hash, wallet_id is required")
}

// CancelTransfer 取消转账
// POST /api/v1/transfers/:id/cancel
func (h *TransferHandler) CancelTransfer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.transfers.CancelTransfer(c.Request.Context(), id); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, gin.H{"cancelled": true})
}
