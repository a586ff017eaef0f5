// Package configsession accumulates per-device configuration while a
// detail view is open: module id, GPIO function map, the 16 timer
// slots, and the device clock offset.
//
// # Lifecycle
//
// One session per open detail view. Opening schedules three staggered
// probes (full status, module, GPIO) paced ~100/300/1000 ms apart so
// the firmware is not hit with a burst. Closing cancels pending probes
// and discards everything; re-opening starts empty and re-queries.
//
// # Merge policies
//
// The three accumulators deliberately merge differently:
//   - module id adopts every new answer (always latest)
//   - the GPIO map is populated exactly once per view-open (first
//     answer wins; a GPIO change requires a device restart anyway, so
//     a stale second answer must not clobber what the operator sees)
//   - timer slots have all eight fields overwritten by every matching
//     message
//
// # Decoding
//
// JSON first; when parsing fails, a regex fallback salvages
// "Module":n and "GPIOx":n fragments from the non-standard output the
// firmware occasionally emits. The two accepted JSON shapes for module
// and GPIO answers (bare scalar, one-entry object) are resolved once at
// decode time into a tagged result. This fallback exists only here —
// the always-on decoder in package tasmota drops malformed payloads
// whole.
package configsession
