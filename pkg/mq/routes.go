package mq

// Sentinel is the reserved topic and body used to signal shutdown through the
// ordinary message pipeline.
const Sentinel = "SHUTDOWN"

const (
	MethodGet    = "GET"
	MethodPut    = "PUT"
	MethodDelete = "DELETE"
)

// TopicURI returns the publish route: "/topic/{topic}"
func TopicURI(topic string) string {
	return "/topic/" + topic
}

// SubscriptionURI returns the subscription route: "/subscription/{name}/{topic}"
func SubscriptionURI(name, topic string) string {
	return "/subscription/" + name + "/" + topic
}

// QueueURI returns the poll route: "/queue/{name}"
func QueueURI(name string) string {
	return "/queue/" + name
}
