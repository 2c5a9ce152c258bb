// Package hub is the boundary between the engine and a Remote Two/3 hub's
// REST API.
//
// It provides:
//   - Transport, the single-method request/response contract every other
//     package depends on, and HTTPTransport, its net/http implementation
//   - Fault, the value raised for network, HTTP and payload problems,
//     plus the engine-wide sentinel errors (ErrUnreachable, ErrAuthInvalid,
//     ErrAuthRejected, ErrNotFound, ErrProtocol, ErrCommandFailed, ErrTimeout)
//   - API, typed calls for each hub endpoint the engine uses
//   - Explicit payload variants for each response shape seen across
//     firmware generations; anything else decodes to ErrProtocol
//   - NormalizeURL, which turns "remote.lan" into "http://remote.lan/api/"
//
// # Fault classification
//
// Reads map a Fault into the caller's vocabulary with Classify:
//
//	network error, 5xx, 408, 429  ->  ErrUnreachable (transient)
//	401, 403                      ->  the caller's auth sentinel
//	anything else                 ->  the caller's terminal sentinel
//
// The session uses ErrAuthInvalid/ErrProtocol and the credential manager
// ErrAuthRejected/ErrProtocol. Commands are not idempotent, so the
// dispatcher uses ClassifyCommand, which reserves ErrUnreachable for
// network faults and reports every HTTP error as ErrCommandFailed.
package hub
