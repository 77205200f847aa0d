package broker

// SubscribersKey returns the subscriber set key: "{namespace}:topic:{topic}:subscribers"
func SubscribersKey(namespace, topic string) string {
	return namespace + ":topic:" + topic + ":subscribers"
}

// QueueKey returns the subscriber's message list key: "{namespace}:queue:{name}"
func QueueKey(namespace, name string) string {
	return namespace + ":queue:" + name
}
