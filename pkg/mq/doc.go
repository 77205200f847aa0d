// Package mq provides a client for a publish/subscribe message queue server
// spoken to over a small text request/response protocol.
//
// Every operation opens a fresh connection, sends one request, and reads one
// response. Two background goroutines drive the protocol: the pusher sends
// queued publish/subscribe/unsubscribe requests, and the puller polls the
// server for messages addressed to this client.
//
// # Quick Start
//
//	cfg := mq.ConfigFromEnv()
//	cfg.Name = "alice"
//
//	client, err := mq.New(cfg)
//	if err != nil {
//	    return err
//	}
//	client.Start()
//	client.Subscribe("chat")
//	client.Publish("chat", "hi")
//
//	body, err := client.Retrieve()
//	if errors.Is(err, mq.ErrNoMessage) {
//	    // the stream was shut down
//	}
//
//	client.Stop(context.Background())
//	client.Close()
//
// # Wire Protocol
//
// Requests are written as
//
//	METHOD URI HTTP/1.0\r\n
//	Content-Length: N\r\n
//	\r\n
//	body
//
// with the Content-Length line and body omitted when there is no body. Routes
// are PUT /topic/{topic}, PUT and DELETE /subscription/{name}/{topic}, and
// GET /queue/{name}. Only a "200 OK" poll response carries a message.
//
// # Shutdown
//
// Stop publishes the reserved Sentinel to the Sentinel topic, which the
// client subscribes to on Start. The pusher sends everything queued before
// Stop and the marker itself before exiting; a server echo of the marker
// surfaces from Retrieve as ErrNoMessage.
package mq
