package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tronpay/gateway/internal/service"
)

// FeeHandler 费用处理器
type FeeHandler struct {
	transfers service.TransferService
	fees      service.FeeService
}

// NewFeeHandler 创建费用处理器
func NewFeeHandler(transfers service.TransferService, fees service.FeeService) *FeeHandler {
	return &FeeHandler{transfers: transfers, fees: fees}
}

// Quote 报价
// GET /api/v1/fees/quote?wallet_id=&amount=
func (h *FeeHandler) Quote(c *gin.Context) {
	walletID, err := strconv.ParseInt(c.Query("wallet_id"), 10, 64)
	if err != nil || walletID <= 0 {
		BadRequest(c, "invalid wallet_id")
		return
	}
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		BadRequest(c, "invalid amount")
		return
	}

	quote, err := h.transfers.Preview(c.Request.Context(), walletID, amount)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, quote)
}

// Stats 费用配置与网络状态
// GET /api/v1/fees/stats
func (h *FeeHandler) Stats(c *gin.Context) {
	Success(c, h.fees.Stats(c.Request.Context()))
}
