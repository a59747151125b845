package orders

const (
	TopicOrderCreated    = "order.created"
	TopicOrderStatus     = "order.status.updated"
	TopicOrderCancelled  = "order.cancelled"
	TopicPaymentCaptured = "order.payment.captured"
)

// Partition key = order_id, so every event for one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
