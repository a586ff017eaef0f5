// Package device holds the device registry and the live projection store.
//
// # Two kinds of state
//
// Device records (ID, name, topic) are durable: the surrounding
// application writes them to the registry database and this core reads
// them at startup to know what to subscribe.
//
// Projections are ephemeral: they accumulate whatever the device has
// reported this session (power state, network info, sensor readings)
// and are rebuilt from scratch after every restart.
//
// # Merge semantics
//
// The transport delivers updates at most once and in no particular
// order. Store.Apply therefore union-merges: only the fields an update
// carries overwrite the projection, and applying a duplicate update
// changes nothing. Two updates with disjoint field sets yield the union
// of both regardless of arrival order.
//
// A device goes offline only on an explicit signal — its last-will
// message or a transport disconnect — never because it has been quiet.
package device
