package events

// Topics emitted by the platform.
const (
	TopicSaleCreated  = "sale.created"
	TopicSaleRefunded = "sale.refunded"
	TopicStockLow     = "stock.low"
)

// DefaultTopics lists every topic the bus accepts.
func DefaultTopics() []string {
	return []string{TopicSaleCreated, TopicSaleRefunded, TopicStockLow}
}

// KnownTopic reports whether the bus accepts the topic.
func KnownTopic(topic string) bool {
	for _, t := range DefaultTopics() {
		if t == topic {
			return true
		}
	}
	return false
}
