package app

import (
	"gorm.io/gorm"

	"github.com/tronpay/gateway/internal/model"
)

// AutoMigrate 按模型自动建表
// 生产部署用 cmd/migrate 的版本化 SQL；App 启动时在所有环境都会执行 AutoMigrate
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Wallet{},
		&model.OutgoingTransfer{},
		&model.IncomingTransaction{},
	)
}
