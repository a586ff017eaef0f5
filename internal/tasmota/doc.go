// Package tasmota implements the vendor command protocol: topic
// parsing, the command vocabulary, and the inbound message decoder.
//
// # Topic namespace
//
// Devices listen on cmnd/{deviceTopic}/{command} and publish on
// stat/{deviceTopic}/{command} (command responses) and
// tele/{deviceTopic}/{command} (periodic telemetry and last-will).
//
// # Decoding
//
// Decode turns one inbound message into a partial Update holding only
// the fields the message carried. The transport guarantees neither
// ordering nor delivery, so updates are designed to commute: the store
// merges them field by field and applying the same update twice is a
// no-op. Payloads that fail to parse are dropped whole — the decoder
// never extracts partial fields from malformed JSON.
//
// # Usage
//
//	update, outcome := tasmota.Decode(topic, payload, time.Now())
//	if outcome == tasmota.OutcomeApplied {
//	    store.Apply(update)
//	}
package tasmota
