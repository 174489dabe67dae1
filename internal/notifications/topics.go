package notifications

const TopicNotifications = "market.notifications"

// Partition key = user_id, so one user's notifications keep their order.
func PartitionKey(userID string) []byte { return []byte(userID) }
