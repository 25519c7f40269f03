// Package client 提供 TronGrid HTTP 客户端
// 只做 I/O: 组装请求、解析响应、暴露类型化错误，不解释任何业务策略
package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	core "github.com/fbsobreira/gotron-sdk/pkg/proto/core"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/tronpay/gateway/internal/config"
	"github.com/tronpay/gateway/internal/metrics"
	"github.com/tronpay/gateway/internal/tron"
	"github.com/tronpay/gateway/pkg/circuitbreaker"
	"github.com/tronpay/gateway/pkg/logger"
)

var (
	// ErrUnavailable 网络错误/5xx/超时，可重试
	ErrUnavailable = errors.New("trongrid: unavailable")
	// ErrBadResponse 节点返回无法解析的内容
	ErrBadResponse = errors.New("trongrid: bad response")
	// ErrCallFailed 节点明确拒绝请求 (4xx 或 result=false)
	ErrCallFailed = errors.New("trongrid: call failed")
)

const (
	apiKeyHeader = "TRON-PRO-API-KEY"

	retryMaxAttempts = 3
	retryBaseBackoff = 500 * time.Millisecond
	retryMaxBackoff  = 4 * time.Second
)

// TronGridClient TronGrid HTTP 客户端
type TronGridClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	bucket  *tokenBucket

	// 能量单价兜底值
	fallbackEnergyPrice int64
}

// NewTronGridClient 创建客户端
func NewTronGridClient(cfg *config.TronGridConfig) *TronGridClient {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rate := cfg.RateLimitPerSec
	if rate <= 0 {
		rate = 10
	}
	return &TronGridClient{
		baseURL:             strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:              cfg.APIKey,
		http:                &http.Client{Timeout: timeout},
		breaker:             circuitbreaker.New(nil),
		bucket:              newTokenBucket(rate, rate),
		fallbackEnergyPrice: cfg.EnergyPriceSun,
	}
}

// GetNowBlock 获取最新区块
func (c *TronGridClient) GetNowBlock(ctx context.Context) (*Block, error) {
	var resp struct {
		BlockID     string `json:"blockID"`
		BlockHeader struct {
			RawData struct {
				Number    int64 `json:"number"`
				Timestamp int64 `json:"timestamp"`
			} `json:"raw_data"`
		} `json:"block_header"`
	}
	if err := c.post(ctx, "/wallet/getnowblock", struct{}{}, &resp); err != nil {
		return nil, err
	}
	if resp.BlockID == "" {
		return nil, fmt.Errorf("%w: empty block id", ErrBadResponse)
	}
	return &Block{
		BlockID:   resp.BlockID,
		Number:    resp.BlockHeader.RawData.Number,
		Timestamp: resp.BlockHeader.RawData.Timestamp,
	}, nil
}

// GetAccount 查询账户
// 节点对不存在的账户返回空对象，映射为零余额未激活
func (c *TronGridClient) GetAccount(ctx context.Context, base58Addr string) (*Account, error) {
	req := map[string]interface{}{
		"address": base58Addr,
		"visible": true,
	}
	var resp struct {
		Address string `json:"address"`
		Balance int64  `json:"balance"`
	}
	if err := c.post(ctx, "/wallet/getaccount", req, &resp); err != nil {
		return nil, err
	}
	if resp.Address == "" {
		return &Account{Address: base58Addr, BalanceSun: 0, Exists: false}, nil
	}
	return &Account{Address: base58Addr, BalanceSun: resp.Balance, Exists: true}, nil
}

// GetTRC20Balance 通过 triggerconstantcontract 读取 balanceOf
func (c *TronGridClient) GetTRC20Balance(ctx context.Context, holder, contract string) (*big.Int, error) {
	holderAddr, err := tron.DecodeBase58(holder)
	if err != nil {
		return nil, fmt.Errorf("%w: holder address: %v", ErrCallFailed, err)
	}

	req := map[string]interface{}{
		"owner_address":     holder,
		"contract_address":  contract,
		"function_selector": "balanceOf(address)",
		"parameter":         tron.EncodeBalanceOfData(holderAddr),
		"visible":           true,
	}
	var resp struct {
		Result struct {
			Result  bool   `json:"result"`
			Message string `json:"message"`
		} `json:"result"`
		ConstantResult []string `json:"constant_result"`
	}
	if err := c.post(ctx, "/wallet/triggerconstantcontract", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Result.Result || len(resp.ConstantResult) == 0 {
		return nil, fmt.Errorf("%w: balanceOf: %s", ErrCallFailed, decodeNodeMessage(resp.Result.Message))
	}

	raw, err := hex.DecodeString(resp.ConstantResult[0])
	if err != nil {
		return nil, fmt.Errorf("%w: constant result: %v", ErrBadResponse, err)
	}
	return new(big.Int).SetBytes(raw), nil
}

// EstimateEnergy 估算能量
// estimateenergy 在部分节点未开启，失败时回退 triggerconstantcontract 的 energy_used
func (c *TronGridClient) EstimateEnergy(ctx context.Context, owner, contract, parameter string) (int64, error) {
	req := map[string]interface{}{
		"owner_address":     owner,
		"contract_address":  contract,
		"function_selector": "transfer(address,uint256)",
		"parameter":         parameter,
		"visible":           true,
	}

	var resp struct {
		Result struct {
			Result bool `json:"result"`
		} `json:"result"`
		EnergyRequired int64 `json:"energy_required"`
	}
	if err := c.post(ctx, "/wallet/estimateenergy", req, &resp); err == nil &&
		resp.Result.Result && resp.EnergyRequired > 0 {
		return resp.EnergyRequired, nil
	}

	var constResp struct {
		Result struct {
			Result  bool   `json:"result"`
			Message string `json:"message"`
		} `json:"result"`
		EnergyUsed int64 `json:"energy_used"`
	}
	if err := c.post(ctx, "/wallet/triggerconstantcontract", req, &constResp); err != nil {
		return 0, err
	}
	if !constResp.Result.Result || constResp.EnergyUsed <= 0 {
		return 0, fmt.Errorf("%w: estimate energy: %s", ErrCallFailed, decodeNodeMessage(constResp.Result.Message))
	}
	return constResp.EnergyUsed, nil
}

// GetEnergyPriceSun 查询当前能量单价
// prices 是历史序列 "ts:price,ts:price,..."，取最后一段
func (c *TronGridClient) GetEnergyPriceSun(ctx context.Context) (int64, error) {
	var resp struct {
		Prices string `json:"prices"`
	}
	if err := c.post(ctx, "/wallet/getenergyprices", struct{}{}, &resp); err != nil {
		if c.fallbackEnergyPrice > 0 {
			logger.Warn("energy price query failed, using configured fallback",
				zap.Int64("fallback_sun", c.fallbackEnergyPrice), zap.Error(err))
			return c.fallbackEnergyPrice, nil
		}
		return 0, err
	}

	entries := strings.Split(resp.Prices, ",")
	last := entries[len(entries)-1]
	parts := strings.Split(last, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: energy prices %q", ErrBadResponse, resp.Prices)
	}
	price, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("%w: energy prices %q", ErrBadResponse, resp.Prices)
	}
	return price, nil
}

// BroadcastTransaction 广播本地构造并签名的交易 (broadcasthex)
func (c *TronGridClient) BroadcastTransaction(ctx context.Context, tx *core.Transaction) (*BroadcastResult, error) {
	raw, err := proto.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction: %w", err)
	}

	req := map[string]string{"transaction": hex.EncodeToString(raw)}
	var resp struct {
		Result  bool   `json:"result"`
		TxID    string `json:"txid"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := c.post(ctx, "/wallet/broadcasthex", req, &resp); err != nil {
		return nil, err
	}
	return &BroadcastResult{
		Result:  resp.Result,
		TxID:    resp.TxID,
		Code:    resp.Code,
		Message: decodeNodeMessage(resp.Message),
	}, nil
}

// BroadcastSigned 广播节点构造、本地签名的交易 (broadcasttransaction)
func (c *TronGridClient) BroadcastSigned(ctx context.Context, tx *APITransaction) (*BroadcastResult, error) {
	var resp struct {
		Result  bool   `json:"result"`
		TxID    string `json:"txid"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := c.post(ctx, "/wallet/broadcasttransaction", tx, &resp); err != nil {
		return nil, err
	}
	if resp.TxID == "" {
		resp.TxID = tx.TxID
	}
	return &BroadcastResult{
		Result:  resp.Result,
		TxID:    resp.TxID,
		Code:    resp.Code,
		Message: decodeNodeMessage(resp.Message),
	}, nil
}

// GetTransactionInfo 查询交易回执
func (c *TronGridClient) GetTransactionInfo(ctx context.Context, txid string) (*TransactionInfo, error) {
	req := map[string]string{"value": txid}
	var resp struct {
		ID          string `json:"id"`
		BlockNumber int64  `json:"blockNumber"`
		Result      string `json:"result"`
		ResMessage  string `json:"resMessage"`
		Receipt     struct {
			Result           string `json:"result"`
			EnergyUsageTotal int64  `json:"energy_usage_total"`
		} `json:"receipt"`
	}
	if err := c.post(ctx, "/wallet/gettransactioninfobyid", req, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		// 尚未被索引
		return &TransactionInfo{ID: txid, Found: false}, nil
	}
	return &TransactionInfo{
		ID:               resp.ID,
		BlockNumber:      resp.BlockNumber,
		Receipt:          resp.Receipt.Result,
		Result:           resp.Result,
		ResMessage:       decodeNodeMessage(resp.ResMessage),
		EnergyUsageTotal: resp.Receipt.EnergyUsageTotal,
		Found:            true,
	}, nil
}

// CreateTransaction 节点构造 TRX 转账 (未签名)
func (c *TronGridClient) CreateTransaction(ctx context.Context, owner, to string, amountSun int64) (*APITransaction, error) {
	req := map[string]interface{}{
		"owner_address": owner,
		"to_address":    to,
		"amount":        amountSun,
		"visible":       true,
	}
	var resp APITransaction
	if err := c.post(ctx, "/wallet/createtransaction", req, &resp); err != nil {
		return nil, err
	}
	if resp.TxID == "" || resp.RawDataHex == "" {
		return nil, fmt.Errorf("%w: createtransaction returned no transaction", ErrCallFailed)
	}
	return &resp, nil
}

// TriggerSmartContract 节点构造 TRC20 调用 (未签名)
func (c *TronGridClient) TriggerSmartContract(ctx context.Context, owner, contract, parameter string, feeLimit int64) (*APITransaction, error) {
	req := map[string]interface{}{
		"owner_address":     owner,
		"contract_address":  contract,
		"function_selector": "transfer(address,uint256)",
		"parameter":         parameter,
		"fee_limit":         feeLimit,
		"call_value":        0,
		"visible":           true,
	}
	var resp struct {
		Result struct {
			Result  bool   `json:"result"`
			Message string `json:"message"`
		} `json:"result"`
		Transaction *APITransaction `json:"transaction"`
	}
	if err := c.post(ctx, "/wallet/triggersmartcontract", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Result.Result || resp.Transaction == nil {
		return nil, fmt.Errorf("%w: triggersmartcontract: %s", ErrCallFailed, decodeNodeMessage(resp.Result.Message))
	}
	return resp.Transaction, nil
}

// ListTRC20Transfers 列出地址的 TRC20 入账转账 (TronGrid v1)
func (c *TronGridClient) ListTRC20Transfers(ctx context.Context, base58Addr, contract string, limit int) ([]*TRC20Transfer, error) {
	url := fmt.Sprintf("%s/v1/accounts/%s/transactions/trc20?only_to=true&limit=%d&contract_address=%s",
		c.baseURL, base58Addr, limit, contract)

	var resp struct {
		Success bool `json:"success"`
		Data    []struct {
			TransactionID  string `json:"transaction_id"`
			From           string `json:"from"`
			To             string `json:"to"`
			Value          string `json:"value"`
			BlockTimestamp int64  `json:"block_timestamp"`
			TokenInfo      struct {
				Address string `json:"address"`
			} `json:"token_info"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: trc20 listing", ErrCallFailed)
	}

	transfers := make([]*TRC20Transfer, 0, len(resp.Data))
	for _, item := range resp.Data {
		value, ok := new(big.Int).SetString(item.Value, 10)
		if !ok {
			continue
		}
		transfers = append(transfers, &TRC20Transfer{
			TransactionID:  item.TransactionID,
			From:           item.From,
			To:             item.To,
			ContractAddr:   item.TokenInfo.Address,
			Value:          value,
			BlockTimestamp: item.BlockTimestamp,
		})
	}
	return transfers, nil
}

// post 发送 wallet API 请求
func (c *TronGridClient) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, c.baseURL+path, body, out)
}

// do 执行请求: 令牌桶 → 熔断器 → 重试回退
func (c *TronGridClient) do(ctx context.Context, method, url string, body, out interface{}) error {
	if err := c.bucket.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	backoff := retryBaseBackoff
	for attempt := 1; attempt <= retryMaxAttempts; attempt++ {
		err := c.breaker.Execute(func() error {
			return c.doOnce(ctx, method, url, body, out)
		})
		if err == nil {
			return nil
		}
		lastErr = err

		// 只有瞬时故障重试
		if !errors.Is(err, ErrUnavailable) && !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return err
		}
		if attempt == retryMaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > retryMaxBackoff {
			backoff = retryMaxBackoff
		}
	}
	return lastErr
}

// doOnce 单次 HTTP 请求
func (c *TronGridClient) doOnce(ctx context.Context, method, url string, body, out interface{}) error {
	started := time.Now()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RPCRequests.WithLabelValues(endpointLabel(url), "network_error").Inc()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	metrics.RPCLatency.WithLabelValues(endpointLabel(url)).Observe(time.Since(started).Seconds())

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		metrics.RPCRequests.WithLabelValues(endpointLabel(url), "read_error").Inc()
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		metrics.RPCRequests.WithLabelValues(endpointLabel(url), strconv.Itoa(resp.StatusCode)).Inc()
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		metrics.RPCRequests.WithLabelValues(endpointLabel(url), strconv.Itoa(resp.StatusCode)).Inc()
		return fmt.Errorf("%w: status %d: %s", ErrCallFailed, resp.StatusCode, truncate(string(data), 256))
	}

	metrics.RPCRequests.WithLabelValues(endpointLabel(url), "ok").Inc()

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrBadResponse, err)
	}
	return nil
}

// decodeNodeMessage 节点的 message 字段是 hex 编码的 ASCII
func decodeNodeMessage(msg string) string {
	if msg == "" {
		return ""
	}
	if raw, err := hex.DecodeString(msg); err == nil {
		return string(raw)
	}
	return msg
}

// endpointLabel 从 url 提取指标标签
func endpointLabel(url string) string {
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		label := url[idx+1:]
		if q := strings.Index(label, "?"); q >= 0 {
			label = label[:q]
		}
		return label
	}
	return url
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
