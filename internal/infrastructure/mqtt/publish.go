package mqtt

import (
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a message to the specified MQTT topic.
//
// All publishes use QoS 0 and are never retained: the vendor protocol is
// fire-and-forget, and a lost command is recovered by the next state
// report rather than by broker redelivery.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "cmnd/sonoff-kitchen/POWER")
//   - payload: The message payload (command text or JSON, max 1MB)
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
//
// Example:
//
//	topic := tasmota.CommandTopic("sonoff-kitchen", tasmota.CmdPower)
//	err := client.Publish(topic, []byte("TOGGLE"))
func (c *Client) Publish(topic string, payload []byte) error {
	// Validate inputs
	if topic == "" {
		return ErrInvalidTopic
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	// Check connection state
	client := c.currentClient()
	if client == nil || !c.IsConnected() {
		return ErrNotConnected
	}

	token := client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishString is a convenience method that publishes a string payload.
//
// This is equivalent to calling Publish with []byte(payload).
func (c *Client) PublishString(topic string, payload string) error {
	return c.Publish(topic, []byte(payload))
}
