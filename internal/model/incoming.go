package model

import (
	"github.com/shopspring/decimal"
)

// IncomingStatus 入账交易状态
type IncomingStatus int8

const (
	IncomingStatusPending   IncomingStatus = 0 // 已检测到，等待确认
	IncomingStatusConfirmed IncomingStatus = 1 // 已确认
	IncomingStatusFailed    IncomingStatus = 2 // 链上回执失败
)

func (s IncomingStatus) String() string {
	switch s {
	case IncomingStatusPending:
		return "PENDING"
	case IncomingStatusConfirmed:
		return "CONFIRMED"
	case IncomingStatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal 判断是否为终态
func (s IncomingStatus) IsTerminal() bool {
	return s == IncomingStatusConfirmed || s == IncomingStatusFailed
}

// IncomingTransaction 入账交易
// 对应数据库表 incoming_transactions
// 幂等键: tx_hash
type IncomingTransaction struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	WalletID    int64           `gorm:"index;not null" json:"wallet_id"`
	TxHash      string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"tx_hash"`
	BlockNumber int64           `gorm:"type:bigint" json:"block_number"`
	FromAddress string          `gorm:"type:varchar(64);not null" json:"from_address"`
	ToAddress   string          `gorm:"type:varchar(64);not null" json:"to_address"`
	Amount      decimal.Decimal `gorm:"type:decimal(30,6);not null" json:"amount"`
	Status      IncomingStatus  `gorm:"type:smallint;index;not null;default:0" json:"status"`
	DetectedAt  int64           `gorm:"type:bigint;not null" json:"detected_at"`
	ConfirmedAt int64           `gorm:"type:bigint" json:"confirmed_at,omitempty"`
	CreatedAt   int64           `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"`
	UpdatedAt   int64           `gorm:"type:bigint;not null;autoUpdateTime:milli" json:"updated_at"`
}

// TableName 返回表名
func (IncomingTransaction) TableName() string {
	return "incoming_transactions"
}
