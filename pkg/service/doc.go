// Package service provides the RTSM protocol engine.
//
// A Node ties the lower-level components together:
//   - the model registry (local models, remote devices)
//   - the transport connection with its last-will
//   - the presence tracker (online/ topics)
//   - inbound dispatch of envelopes to the application handlers
//   - outbound state exchange (request, response, migration, has-state)
//
// Example usage:
//
//	config := service.DefaultConfig()
//	config.Name = "kitchen-display"
//	config.Handlers.OnStateRequested = func(ev service.StateRequested) {
//	    _ = node.SendState(ctx, ev.ModelName, ev.Device.ID)
//	}
//
//	node, err := service.New(transport.NewMQTTClient(transport.DefaultMQTTConfig()), config)
//	_, err = node.RegisterModel(chatDoc)
//	err = node.Introduce(ctx)
//	defer node.Close(context.Background())
//
// # Topics
//
// For every local model the node listens on {model} (shared announcements)
// and {model}/{id} (messages addressed to it). Presence lives on online/{id}.
//
// # Dispatch
//
// Inbound messages are queued and handled one at a time by a single dispatch
// goroutine, in arrival order. Handlers run on that goroutine; a slow handler
// delays every later message. Handlers may call SendState, RequestState and
// the other outbound methods, but not Introduce or Close.
//
// Malformed or unexpected traffic is never returned as an error. It is
// dropped, logged at debug level, counted in metrics and recorded in the
// protocol log.
package service
