package client

import (
	"context"
	"encoding/json"
	"math/big"

	core "github.com/fbsobreira/gotron-sdk/pkg/proto/core"
)

// TronRPC TRON 节点能力集
// 服务层只依赖该接口，测试用确定性假实现替换
type TronRPC interface {
	// GetNowBlock 获取最新区块 (用于 ref_block_*)
	GetNowBlock(ctx context.Context) (*Block, error)

	// GetAccount 查询账户；账户不存在视为零余额且未激活
	GetAccount(ctx context.Context, base58Addr string) (*Account, error)

	// GetTRC20Balance 读取 TRC20 余额 (triggerconstantcontract balanceOf)
	GetTRC20Balance(ctx context.Context, holder, contract string) (*big.Int, error)

	// EstimateEnergy 估算 TRC20 调用所需能量
	EstimateEnergy(ctx context.Context, owner, contract, parameter string) (int64, error)

	// GetEnergyPriceSun 查询当前能量单价 (SUN)
	GetEnergyPriceSun(ctx context.Context) (int64, error)

	// BroadcastTransaction 广播本地构造并签名的交易
	BroadcastTransaction(ctx context.Context, tx *core.Transaction) (*BroadcastResult, error)

	// GetTransactionInfo 查询交易回执；未被索引时 Found=false
	GetTransactionInfo(ctx context.Context, txid string) (*TransactionInfo, error)
}

// Block 最新区块
type Block struct {
	BlockID   string
	Number    int64
	Timestamp int64
}

// Account 链上账户
type Account struct {
	Address string
	// BalanceSun TRX 余额 (SUN)
	BalanceSun int64
	// Exists 账户是否已在账本中物化 (激活)
	Exists bool
}

// BroadcastResult 广播结果
type BroadcastResult struct {
	Result  bool
	TxID    string
	Code    string
	Message string
}

// Duplicate 判断是否为重复广播
// 节点已经见过该交易哈希，对状态推进视同成功
func (r *BroadcastResult) Duplicate() bool {
	return r.Code == "DUP_TRANSACTION_ERROR"
}

// 回执结果常量
const (
	ReceiptSuccess     = "SUCCESS"
	ReceiptRevert      = "REVERT"
	ReceiptOutOfEnergy = "OUT_OF_ENERGY"
)

// TransactionInfo 交易回执
type TransactionInfo struct {
	ID          string
	BlockNumber int64
	// Receipt receipt.result，TRX 转账无合约回执时为空
	Receipt string
	// Result 顶层 result，失败时为 "FAILED"
	Result           string
	ResMessage       string
	EnergyUsageTotal int64
	// Found 是否已被索引
	Found bool
}

// Success 判断回执是否成功
// TRX 转账被索引即成功；合约调用要求 receipt.result == SUCCESS
func (info *TransactionInfo) Success() bool {
	if !info.Found || info.Result == "FAILED" {
		return false
	}
	return info.Receipt == "" || info.Receipt == ReceiptSuccess
}

// FailureReason 返回失败原因
func (info *TransactionInfo) FailureReason() string {
	if info.Receipt != "" && info.Receipt != ReceiptSuccess {
		return info.Receipt
	}
	if info.ResMessage != "" {
		return info.ResMessage
	}
	return info.Result
}

// APITransaction 节点构造的未签名交易 (createtransaction / triggersmartcontract)
type APITransaction struct {
	TxID       string          `json:"txID"`
	RawData    json.RawMessage `json:"raw_data"`
	RawDataHex string          `json:"raw_data_hex"`
	Visible    bool            `json:"visible"`
	Signature  []string        `json:"signature,omitempty"`
}

// TRC20Transfer TronGrid v1 列表接口返回的一笔 TRC20 转账
type TRC20Transfer struct {
	TransactionID  string
	From           string
	To             string
	ContractAddr   string
	Value          *big.Int
	BlockTimestamp int64
}
