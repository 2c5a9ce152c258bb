// Package session owns the connection to one hub and keeps its model
// current.
//
// A Session is created from an explicit Config and a hub.Transport, so
// nothing here reads the environment or the config file. Init performs
// the full load: hub status, activities with their included entities,
// activity groups, media players, docks with IR emitters, and IR remotes
// with their codesets. Requests are issued concurrently with a bounded
// errgroup and the result is applied to the model in one step. Update is
// the cheaper periodic refresh: hub status and the activity list only.
//
// Every refresh takes a ticket from the model before it starts fetching.
// If a refresh that started later has already been applied, the older
// result is dropped and Update returns nil.
//
// Endpoints that only newer firmware provides (activity groups, docks,
// ambient light, update info, power mode, statistics, version) are
// optional: a 404 leaves that part of the model as it was.
//
// Errors:
//   - hub.ErrAuthInvalid: the API key was refused (401/403)
//   - hub.ErrUnreachable: network failure, 5xx, 408 or 429
//   - hub.ErrProtocol: any other 4xx, or a reply that did not decode
//   - hub.ErrTimeout: the caller's deadline expired mid-load
//   - ErrNotInitialised: Update before a successful Init
//
// Accessors never perform I/O.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Run is meant to be called
//     once per session.
package session
