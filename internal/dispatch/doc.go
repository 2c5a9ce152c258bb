// Package dispatch turns logical commands into hub requests.
//
// One method per command family: PressButton, SendIR, SendSystem,
// SetDockCharging, StartActivity and StopActivity. Every method resolves
// names (activity, dock, IR device, port, system command) against the
// model before doing any I/O; a name that does not resolve fails with
// hub.ErrNotFound and no request is sent.
//
// # Retries
//
// A request that fails at the network level (refused, reset, DNS,
// request timeout) is retried with capped exponential backoff, up to
// MaxAttempts calls in total. A 401/403 is returned at once as
// hub.ErrAuthInvalid. Any other fault, every HTTP error status included,
// is returned at once as hub.ErrCommandFailed wrapping the cause. If the caller's deadline expires while a request or a
// backoff wait is outstanding the call fails with hub.ErrTimeout.
//
// # Repeats and holds
//
// A repeat count of N sends N requests one after another, paced by a
// rate limiter (RepeatDelay apart). They are never concurrent. A button
// hold is a single request carrying the hold duration in milliseconds.
//
// # Activity start and stop
//
// Start and stop check the cached activity state first and return
// OutcomeAlreadyInState without a request if it already matches. The
// cache may be stale, so this is a convenience and not a guarantee. After
// the hub accepts the command the activity is TRANSITIONING until a
// refresh reports the target state.
//
// Thread Safety:
//   - A Dispatcher is safe for concurrent use. Repeats within one call are
//     serialised; separate calls are not ordered relative to each other.
package dispatch
