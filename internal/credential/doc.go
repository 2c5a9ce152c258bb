// Package credential exchanges a hub's web-configurator PIN for a
// long-lived API key, and revokes keys by label.
//
// The Manager talks to hubs it has no session for, so it builds its own
// transport per call from a hub.TransportFactory using PIN authentication.
// Creation is never retried: a POST that timed out may still have created
// the key, and the caller can check with List before trying again.
//
// Errors:
//   - hub.ErrAuthRejected: the hub refused the PIN (401/403)
//   - hub.ErrUnreachable: network failure or transient hub error
//   - hub.ErrProtocol: the reply did not carry a usable key
//   - hub.ErrTimeout: the caller's deadline expired
//
// Store is a small SQLite cache the command line uses to remember keys
// between runs. The core never reads it.
//
// Thread Safety:
//   - Manager and Store are safe for concurrent use.
package credential
