// Package broker implements a server for the mq wire protocol.
//
// The Server accepts one request per connection and closes the connection
// after writing the response. Subscriptions and per-subscriber message
// queues live in a Broker: Memory keeps them in process, Redis keeps them in
// Redis sets and lists so that several servers can share state.
//
// Routes:
//
//	PUT    /topic/{topic}               fan the body out to every subscriber
//	PUT    /subscription/{name}/{topic} subscribe name to topic
//	DELETE /subscription/{name}/{topic} unsubscribe
//	GET    /queue/{name}                long-poll for the next message
//
// A poll that times out is answered with "204 No Content".
package broker
