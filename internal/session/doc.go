// Package session orchestrates one broker session end to end: the
// per-device subscription registry, the command dispatcher, and the
// routing of inbound messages to the projection store and to open
// config sessions.
//
// # Subscription registry
//
// Subscribe is idempotent per device topic and per session. One batched
// subscribe covers the 14 stat/tele filters for the device; on
// acknowledgment an empty POWER query elicits the initial state.
// Because broker sessions are clean, the registry is cleared on every
// connect and the collaborator re-subscribes its known devices.
//
// # Command dispatch
//
// Send is fire-and-forget at QoS 0. When the session is disconnected
// commands are silently dropped rather than queued: the next state
// report after reconnect supersedes anything a queue could replay.
//
// # Observers
//
// SetOnMessage installs a raw tap ahead of the decode pipeline (console
// views show the last message per device). SetOnConnect fires after the
// registry reset on each connect; SetOnConnectionChange forwards
// transport state transitions.
//
// # Offline semantics
//
// A device is marked offline only on an explicit signal. The session
// contributes the transport-level one: when the broker session drops,
// every projection flips offline at once.
package session
