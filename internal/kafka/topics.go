package kafka

// Kafka topic 名称
// 下游 webhook 投递服务消费这些事件并回调商户
const (
	// TopicTransferUpdates 出账转账状态变更 (gateway → webhook)
	TopicTransferUpdates = "transfer-updates"

	// TopicWalletEvents 钱包创建/激活事件 (gateway → webhook)
	TopicWalletEvents = "wallet-events"

	// TopicDeposits 检测到的入账 TRC20 交易 (gateway → webhook)
	TopicDeposits = "deposits"
)
