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

// WalletPublisher 钱包与入账事件发布者
type WalletPublisher struct {
	producer KafkaProducer
}

// NewWalletPublisher 创建钱包事件发布者
func NewWalletPublisher(producer KafkaProducer) *WalletPublisher {
	return &WalletPublisher{producer: producer}
}

// WalletEventMessage 钱包事件消息
type WalletEventMessage struct {
	Event      string `json:"event"` // created, activated
	WalletID   int64  `json:"wallet_id"`
	Address    string `json:"address"`
	OwnerID    string `json:"owner_id,omitempty"`
	TxHash     string `json:"tx_hash,omitempty"`
	OccurredAt int64  `json:"occurred_at"`
}

// PublishWalletEvent 发布钱包事件
func (p *WalletPublisher) PublishWalletEvent(ctx context.Context, event string, wallet *model.Wallet, txHash string) error {
	if p.producer == nil {
		return nil
	}

	msg := &WalletEventMessage{
		Event:      event,
		WalletID:   wallet.ID,
		Address:    wallet.Address,
		OwnerID:    wallet.OwnerID,
		TxHash:     txHash,
		OccurredAt: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal wallet event: %w", err)
	}

	key := []byte(strconv.FormatInt(wallet.ID, 10))
	if err := p.producer.SendWithContext(ctx, kafka.TopicWalletEvents, key, data); err != nil {
		logger.Error("publish wallet event failed",
			zap.Int64("wallet_id", wallet.ID),
			zap.String("event", event),
			zap.Error(err))
		return fmt.Errorf("send wallet event: %w", err)
	}
	return nil
}

// DepositMessage 入账事件消息
type DepositMessage struct {
	WalletID    int64  `json:"wallet_id"`
	TxHash      string `json:"tx_hash"`
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	Amount      string `json:"amount"`
	OccurredAt  int64  `json:"occurred_at"`
}

// PublishDeposit 发布入账事件
func (p *WalletPublisher) PublishDeposit(ctx context.Context, tx *model.IncomingTransaction) error {
	if p.producer == nil {
		return nil
	}

	msg := &DepositMessage{
		WalletID:    tx.WalletID,
		TxHash:      tx.TxHash,
		FromAddress: tx.FromAddress,
		ToAddress:   tx.ToAddress,
		Amount:      tx.Amount.String(),
		OccurredAt:  time.Now().UnixMilli(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal deposit event: %w", err)
	}

	key := []byte(strconv.FormatInt(tx.WalletID, 10))
	if err := p.producer.SendWithContext(ctx, kafka.TopicDeposits, key, data); err != nil {
		logger.Error("publish deposit event failed",
			zap.String("tx_hash", tx.TxHash),
			zap.Error(err))
		return fmt.Errorf("send deposit event: %w", err)
	}
	return nil
}
