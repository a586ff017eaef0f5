package mqtt

import (
	"fmt"
)

// SubscribeMultiple issues one batched SUBSCRIBE for a set of topic filters.
//
// All filters are subscribed at QoS 0. Received messages are routed to
// the handler set via SetOnMessage. The broker's acknowledgment is
// reported asynchronously through the callback: granted is true when the
// SUBACK arrived in time with no error.
//
// Because sessions are clean, the tracked filter set is discarded on
// every reconnect; callers re-subscribe from the OnConnect callback.
//
// Parameters:
//   - filters: Topic filters to subscribe to (wildcards allowed)
//   - callback: Invoked once with the acknowledgment outcome (may be nil)
//
// Returns:
//   - error: nil if the SUBSCRIBE was sent, or wrapped error otherwise
func (c *Client) SubscribeMultiple(filters []string, callback func(granted bool)) error {
	// Validate inputs
	if len(filters) == 0 {
		return fmt.Errorf("%w: no filters given", ErrSubscribeFailed)
	}
	for _, filter := range filters {
		if filter == "" {
			return ErrInvalidTopic
		}
	}

	// Check connection state
	client := c.currentClient()
	if client == nil || !c.IsConnected() {
		return ErrNotConnected
	}

	qosFilters := make(map[string]byte, len(filters))
	for _, filter := range filters {
		qosFilters[filter] = 0
	}

	// Track filters for introspection
	c.subMu.Lock()
	for _, filter := range filters {
		c.subscriptions[filter] = struct{}{}
	}
	c.subMu.Unlock()

	// nil per-subscription handler routes messages to the default handler
	token := client.SubscribeMultiple(qosFilters, nil)

	// Report the SUBACK asynchronously so callers are not blocked
	go func() {
		granted := token.WaitTimeout(defaultSubscribeTimeout) && token.Error() == nil
		if !granted {
			c.subMu.Lock()
			for _, filter := range filters {
				delete(c.subscriptions, filter)
			}
			c.subMu.Unlock()
		}
		if callback != nil {
			callback(granted)
		}
	}()

	return nil
}

// SubscriptionCount returns the number of tracked topic filters.
//
// This can be useful for monitoring and debugging.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription checks if a filter is tracked as subscribed.
//
// Note: This checks only the exact filter string, not pattern matching.
func (c *Client) HasSubscription(filter string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[filter]
	return exists
}
