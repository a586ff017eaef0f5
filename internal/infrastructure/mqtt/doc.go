// Package mqtt provides the MQTT-over-WebSocket transport session.
//
// This package manages:
//   - Connection to the broker's WebSocket listener with auto-reconnect
//   - QoS 0 fire-and-forget publishing (never retained)
//   - Batched topic subscriptions with acknowledgment callbacks
//   - Session state tracking (disconnected, connecting, connected, error)
//
// # Architecture
//
// Tasmota devices talk plain MQTT to the broker; this core attaches over
// the broker's WebSocket listener, the same path browser clients use.
// Plaintext sessions use ws:// on port 8083, TLS sessions wss:// on
// port 8884, both on the /mqtt endpoint path.
//
//	tasmocore ↔ (WebSocket) MQTT Broker (MQTT) ↔ Tasmota devices
//
// Sessions are always clean with a fresh random client identifier, so
// broker-side subscriptions never survive a reconnect. Collaborators
// re-issue their subscriptions from the OnConnect callback.
//
// # Security Considerations
//
//   - TLS certificate verification is skipped: home brokers and devices
//     almost always present self-signed certificates
//   - Credentials are validated against the broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connect timeout: 30 seconds (slow embedded brokers)
//   - Reconnect: fixed 5 second interval, no backoff growth
//   - Keepalive: 60 seconds
//
// # Usage
//
//	client := mqtt.New(cfg.Broker)
//	client.SetOnMessage(func(topic string, payload []byte) {
//	    log.Printf("received: %s = %s", topic, payload)
//	})
//	client.SetOnConnect(func() {
//	    client.SubscribeMultiple([]string{"stat/sonoff-kitchen/POWER"}, nil)
//	})
//	if err := client.Connect(); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect()
//
//	client.Publish("cmnd/sonoff-kitchen/POWER", []byte("TOGGLE"))
package mqtt
