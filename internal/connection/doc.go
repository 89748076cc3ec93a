// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Runs one worker goroutine that owns the transport and the session
//     state machine
//   - Speaks either the framed TCP protocol or the enveloped WebSocket
//     protocol, behind one Transport interface
//   - Reconnects after any transient failure with rate-limited exponential
//     backoff, and stops for good when the credentials are rejected
//   - Hands stream payloads to the dispatcher, which fans them out to
//     subscribers
package connection
