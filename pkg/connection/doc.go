// Package connection provides retry helpers for establishing a broker
// session.
//
// The RTSM engine itself never retries: a failed Introduce returns the
// transport error and leaves the node idle. Applications that want to wait
// for a broker to come up wrap Introduce in Retry:
//
//	err := connection.Retry(ctx, connection.NewBackoff(), connection.RetryConfig{
//		Retryable: func(err error) bool { return errors.Is(err, transport.ErrTransport) },
//	}, node.Introduce)
//
// # Backoff
//
// Delays grow exponentially from 500ms by a factor of 2 up to 30s, each with
// up to 25% random jitter so that nodes restarted together do not reconnect
// in lockstep. Reset returns to the initial delay.
package connection
