// Package publisher 提供事件发布
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tronpay/gateway/internal/kafka"
	"github.com/tronpay/gateway/internal/model"
	"github.com/tronpay/gateway/pkg/logger"
)

// KafkaProducer 生产者接口
type KafkaProducer interface {
	SendWithContext(ctx context.Context, topic string, key, value []byte) error
}

// TransferPublisher 转账事件发布者
// producer 为 nil 时 (Kafka 未启用) 所有发布都是 no-op
type TransferPublisher struct {
	producer KafkaProducer
}

// NewTransferPublisher 创建转账事件发布者
func NewTransferPublisher(producer KafkaProducer) *TransferPublisher {
	return &TransferPublisher{producer: producer}
}

// TransferUpdateMessage 转账状态变更消息
type TransferUpdateMessage struct {
	TransferID   int64  `json:"transfer_id"`
	FromWalletID int64  `json:"from_wallet_id"`
	ToAddress    string `json:"to_address"`
	OrderAmount  string `json:"order_amount"`
	FeeAmount    string `json:"fee_amount"`
	Amount       string `json:"amount"`
	Status       string `json:"status"`
	TxHash       string `json:"tx_hash,omitempty"`
	ReferenceID  string `json:"reference_id,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	OccurredAt   int64  `json:"occurred_at"`
}

// PublishTransferUpdate 发布转账状态变更
func (p *TransferPublisher) PublishTransferUpdate(ctx context.Context, transfer *model.OutgoingTransfer) error {
	if p.producer == nil {
		return nil
	}

	msg := &TransferUpdateMessage{
		TransferID:   transfer.ID,
		FromWalletID: transfer.FromWalletID,
		ToAddress:    transfer.ToAddress,
		OrderAmount:  transfer.OrderAmount.String(),
		FeeAmount:    transfer.FeeAmount.String(),
		Amount:       transfer.Amount.String(),
		Status:       transfer.Status.String(),
		TxHash:       transfer.TxHash,
		ReferenceID:  transfer.ReferenceID,
		ErrorMessage: transfer.ErrorMessage,
		OccurredAt:   time.Now().UnixMilli(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal transfer update: %w", err)
	}

	// 以钱包 id 作分区键，同一钱包的事件保序
	key := []byte(strconv.FormatInt(transfer.FromWalletID, 10))
	if err := p.producer.SendWithContext(ctx, kafka.TopicTransferUpdates, key, data); err != nil {
		logger.Error("publish transfer update failed",
			zap.Int64("transfer_id", transfer.ID),
			zap.Error(err))
		return fmt.Errorf("send transfer update: %w", err)
	}

	logger.Debug("transfer update published",
		zap.Int64("transfer_id", transfer.ID),
		zap.String("status", transfer.Status.String()))

	return nil
}
