package handler

import (
	"encoding/hex"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tronpay/gateway/internal/client"
	"github.com/tronpay/gateway/internal/tron"
)

// DebugHandler 排障端点
// 暴露节点侧的交易构造与回执查询，用于比对本地构造结果
type DebugHandler struct {
	grid     *client.TronGridClient
	contract string
}

// NewDebugHandler 创建排障处理器
func NewDebugHandler(grid *client.TronGridClient, usdtContract string) *DebugHandler {
	return &DebugHandler{grid: grid, contract: usdtContract}
}

// BuildTRXRequest 节点构造 TRX 转账请求
type BuildTRXRequest struct {
	From      string          `json:"from" binding:"required"`
	To        string          `json:"to" binding:"required"`
	AmountTrx decimal.Decimal `json:"amount_trx" binding:"required"`
}

// BuildTRX 由节点构造未签名 TRX 转账
// POST /api/v1/debug/build-trx
func (h *DebugHandler) BuildTRX(c *gin.Context) {
	var req BuildTRXRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	amountSun := req.AmountTrx.Mul(decimal.NewFromInt(1_000_000)).IntPart()
	tx, err := h.grid.CreateTransaction(c.Request.Context(), req.From, req.To, amountSun)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, tx)
}

// BuildTRC20Request 节点构造 TRC20 转账请求
type BuildTRC20Request struct {
	From       string          `json:"from" binding:"required"`
	To         string          `json:"to" binding:"required"`
	AmountUsdt decimal.Decimal `json:"amount_usdt" binding:"required"`
	FeeLimit   int64           `json:"fee_limit"`
}

// BuildTRC20 由节点构造未签名 TRC20 转账
// POST /api/v1/debug/build-trc20
func (h *DebugHandler) BuildTRC20(c *gin.Context) {
	var req BuildTRC20Request
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	to, err := tron.DecodeBase58(req.To)
	if err != nil {
		BadRequest(c, "invalid to address")
		return
	}
	units := req.AmountUsdt.Shift(6).Round(0).BigInt()
	data := tron.EncodeTransferData(to, units)

	feeLimit := req.FeeLimit
	if feeLimit <= 0 {
		feeLimit = 100_000_000 // 100 TRX
	}

	// triggersmartcontract 的 parameter 不含选择器
	parameter := hex.EncodeToString(data[4:])
	tx, err := h.grid.TriggerSmartContract(c.Request.Context(), req.From, h.contract, parameter, feeLimit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, tx)
}

// GetTransactionInfo 查询链上回执
// GET /api/v1/debug/tx/:id
func (h *DebugHandler) GetTransactionInfo(c *gin.Context) {
	txid := c.Param("id")
	if txid == "" {
		BadRequest(c, "tx id is required")
		return
	}

	info, err := h.grid.GetTransactionInfo(c.Request.Context(), txid)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, info)
}
