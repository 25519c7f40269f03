// Package model 定义网关的持久化模型
package model

// Wallet 托管钱包
// 对应数据库表 wallets
// 地址与私钥由网关生成并独占持有；除 activated 标记外不可变更
type Wallet struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	// Address Base58Check 地址 (T 开头，34 字符)
	Address string `gorm:"type:varchar(64);uniqueIndex;not null" json:"address"`
	// HexAddress 41 前缀的 21 字节地址 hex (42 字符，小写)
	HexAddress string `gorm:"type:varchar(64);uniqueIndex;not null" json:"hex_address"`
	// PrivateKey 32 字节私钥 hex (64 字符，保留前导零)
	PrivateKey string `gorm:"type:varchar(128);not null" json:"-"`
	// OwnerID 外部所有者标识
	OwnerID string `gorm:"type:varchar(255);index" json:"owner_id,omitempty"`
	// Activated 是否已在链上激活
	Activated bool `gorm:"not null;default:false" json:"activated"`
	// ActivationTxHash 激活交易哈希
	ActivationTxHash string `gorm:"type:varchar(128)" json:"activation_tx_hash,omitempty"`
	CreatedAt        int64  `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"`
	UpdatedAt        int64  `gorm:"type:bigint;not null;autoUpdateTime:milli" json:"updated_at"`
}

// TableName 返回表名
func (Wallet) TableName() string {
	return "wallets"
}
