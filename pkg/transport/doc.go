// Package transport provides the publish/subscribe transport used by RTSM nodes.
//
// The transport layer handles:
//   - Broker connection with a retained last-will message
//   - Publishing with per-message QoS and retain flag
//   - Topic subscriptions, including single- and multi-level wildcards
//   - Delivery of inbound messages to a single handler
//
// Two implementations are provided. MQTTClient talks to a real MQTT broker
// using the Eclipse Paho client. MemoryBroker hosts any number of in-process
// clients with MQTT retain, wildcard and last-will semantics; it backs the
// multi-node tests and local experiments.
//
// # Error Handling
//
// Every failed operation returns a *Error wrapping ErrTransport. Operations
// are never retried here; callers decide what to do with a failure.
//
//	if err := c.Publish(ctx, "chat", payload, opts); err != nil {
//	    var te *transport.Error
//	    if errors.As(err, &te) {
//	        log.Printf("%s on %s failed", te.Op, te.Topic)
//	    }
//	}
package transport
