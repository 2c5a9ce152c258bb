// Package api implements the local HTTP REST API and WebSocket server for
// UC Remote Core.
//
// This package provides:
//   - Read endpoints for the hub snapshot (status, activities, groups,
//     entities, docks, IR remotes)
//   - Command endpoints backed by the dispatcher (buttons, IR codes,
//     activity start/stop, dock charging, system commands)
//   - A WebSocket hub that pushes the snapshot to subscribers after every
//     successful session refresh
//   - Prometheus exposition at /metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server never talks to the remote directly. Reads come from the
// session's in-memory model and commands go through the dispatcher, so the
// API sees exactly the state the MQTT bridge publishes.
//
// # Security
//
// Every route except /api/v1/health and /metrics requires an HS256 bearer
// token issued with `ucremote token`. The token's role decides which
// command families it may send (see package auth). WebSocket connections
// authenticate with single-use tickets from POST /api/v1/auth/ws-ticket so
// the bearer token never appears in a URL.
//
// # Graceful Degradation
//
// Until the first session refresh completes, state endpoints answer 503
// and commands are still attempted; the dispatcher reports the hub error.
package api
