package orders

const (
	TopicOrderPlaced       = "order.placed"
	TopicOrderCancelled    = "order.cancelled"
	TopicPaymentAuthorized = "payment.authorized"
	TopicPaymentFailed     = "payment.failed"
)

// Partition key = order_id so all events for one order stay ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
