// Package model is the in-memory view of one hub: activities, activity
// groups, entities, docks, IR devices and hub status.
//
// # Identity
//
// Objects are handed out as pointers and are never replaced. A refresh
// matches incoming records by id, rewrites the matched object's fields in
// place, inserts new ids and drops missing ones. A caller holding an
// *Activity across refreshes sees its new state without looking it up
// again.
//
// # Consistency
//
// Every accessor takes the model's read lock and every merge takes the
// write lock, so a reader never observes a half-applied refresh. After
// each merge, references to ids that no longer exist (entity ids in
// activities, activity ids in groups, an entity's parent activity) are
// pruned.
//
// # Refresh ordering
//
// A refresh begins with BeginRefresh, which issues a ticket, and ends with
// Apply. Apply rejects a ticket older than the last one applied with
// ErrStaleRefresh, so a slow refresh that started first can never
// overwrite a faster one that started later. Each applied refresh
// advances the generation counter by one.
//
// # Activity state machine
//
//	OFF --start accepted--> TRANSITIONING(target ON)  --hub ON-->  ON
//	ON  --stop accepted-->  TRANSITIONING(target OFF) --hub OFF--> OFF
//
// Any other hub report snaps the local state to what the hub says. For
// the grace period after a command is accepted, a hub report equal to the
// state the activity was leaving is taken as "not started yet" and leaves
// TRANSITIONING in place.
package model
