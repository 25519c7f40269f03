package model

import (
	"github.com/shopspring/decimal"
)

// TransferStatus 出账转账状态
type TransferStatus int8

const (
	TransferStatusPending    TransferStatus = 0 // 已受理，报价已冻结
	TransferStatusSponsoring TransferStatus = 1 // 正在从主钱包赞助 TRX
	TransferStatusSending    TransferStatus = 2 // TRC20 转账已广播
	TransferStatusConfirmed  TransferStatus = 3 // 链上回执成功
	TransferStatusFailed     TransferStatus = 4 // 失败 (终态)
)

func (s TransferStatus) String() string {
	switch s {
	case TransferStatusPending:
		return "PENDING"
	case TransferStatusSponsoring:
		return "SPONSORING"
	case TransferStatusSending:
		return "SENDING"
	case TransferStatusConfirmed:
		return "CONFIRMED"
	case TransferStatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal 判断是否为终态
func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusConfirmed || s == TransferStatusFailed
}

// CanAdvanceTo 校验状态迁移是否合法
// 状态只能单调前进；FAILED 可以从任意非终态进入
func (s TransferStatus) CanAdvanceTo(next TransferStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == TransferStatusFailed {
		return true
	}
	return next == s+1
}

// OutgoingTransfer 出账转账
// 对应数据库表 outgoing_transfers
// 幂等键: reference_id (非 FAILED 行之间唯一)
type OutgoingTransfer struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	FromWalletID int64  `gorm:"index;not null" json:"from_wallet_id"`
	ToAddress    string `gorm:"type:varchar(64);not null" json:"to_address"`
	// OrderAmount 商户订单金额 (USDT)
	OrderAmount decimal.Decimal `gorm:"type:decimal(30,6);not null" json:"order_amount"`
	// FeeAmount 受理时刻冻结的总手续费 (USDT)
	FeeAmount decimal.Decimal `gorm:"type:decimal(30,6);not null" json:"fee_amount"`
	// Amount 实际链上划转金额 = OrderAmount + FeeAmount
	Amount decimal.Decimal `gorm:"type:decimal(30,6);not null" json:"amount"`
	// GasCostTrx 报价时估算的能量成本 (TRX)
	GasCostTrx decimal.Decimal `gorm:"type:decimal(30,6);not null" json:"gas_cost_trx"`
	// GasCostUsdt 报价时估算的能量成本 (USDT)
	GasCostUsdt   decimal.Decimal `gorm:"type:decimal(30,6);not null" json:"gas_cost_usdt"`
	Status        TransferStatus  `gorm:"type:smallint;index;not null;default:0" json:"status"`
	TxHash        string          `gorm:"type:varchar(128)" json:"tx_hash,omitempty"`
	SponsorTxHash string          `gorm:"type:varchar(128)" json:"sponsor_tx_hash,omitempty"`
	ReferenceID   string          `gorm:"type:varchar(128);index" json:"reference_id,omitempty"`
	ErrorMessage  string          `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt     int64           `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"`
	UpdatedAt     int64           `gorm:"type:bigint;not null;autoUpdateTime:milli" json:"updated_at"`
	CompletedAt   int64           `gorm:"type:bigint" json:"completed_at,omitempty"`
}

// TableName 返回表名
func (OutgoingTransfer) TableName() string {
	return "outgoing_transfers"
}
