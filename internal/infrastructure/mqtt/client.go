package mqtt

import (
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/yudhap/tasmocore/internal/infrastructure/config"
)

// ConnState describes the transport session lifecycle.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateError
)

// String returns the lowercase name of the state.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "disconnected"
	}
}

// Client wraps paho.mqtt.golang for the Tasmota WebSocket transport.
//
// It manages one broker session at a time: connection state tracking,
// QoS 0 publishing, batched subscriptions, and automatic reconnection
// at a fixed interval. All inbound traffic is routed through a single
// default message handler set via SetOnMessage.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	// connectMu serialises Connect and Disconnect; a connect-while-
	// connected from a second goroutine tears down the first session
	// before building its own (last caller wins).
	connectMu sync.Mutex

	// handleMu guards the paho handle, which Connect swaps out.
	client   pahomqtt.Client
	options  *pahomqtt.ClientOptions
	handleMu sync.RWMutex

	cfg config.BrokerConfig

	// subscriptions tracks active topic filters for introspection.
	subscriptions map[string]struct{}
	subMu         sync.RWMutex

	// state tracks the current session lifecycle state.
	state   ConnState
	stateMu sync.RWMutex

	// Callbacks for session events (optional).
	onConnect     func()
	onStateChange func(state ConnState, errText string)
	onMessage     func(topic string, payload []byte)
	callbackMu    sync.RWMutex

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// New creates an unconnected Client for the given broker settings.
func New(cfg config.BrokerConfig) *Client {
	return &Client{
		cfg:           cfg,
		state:         StateDisconnected,
		subscriptions: make(map[string]struct{}),
	}
}

// Connect establishes a WebSocket session with the MQTT broker.
//
// If a previous session is still live it is torn down first; the last
// caller wins. Each call uses a fresh random client identifier and a
// clean session, so broker-side subscriptions never survive a reconnect.
//
// It configures:
//  1. Broker URL (ws:// or wss:// based on TLS setting)
//  2. Auto-reconnect at a fixed interval
//  3. Initial connection attempt with timeout
//
// Returns:
//   - error: If the initial connection fails within the timeout
func (c *Client) Connect() error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	// Tear down any prior session
	if prior := c.swapClient(nil, nil); prior != nil {
		prior.Disconnect(0)
		c.clearSubscriptions()
	}

	c.setState(StateConnecting, "")

	opts := buildClientOptions(c.cfg, randomClientID())

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.setState(StateConnecting, "")
	})

	opts.SetDefaultPublishHandler(c.defaultHandler())

	client := pahomqtt.NewClient(opts)
	c.swapClient(client, opts)

	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		client.Disconnect(0)
		c.swapClient(nil, nil)
		err := fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
		c.setState(StateError, err.Error())
		return err
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		c.swapClient(nil, nil)
		wrapped := fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		c.setState(StateError, wrapped.Error())
		return wrapped
	}

	// Record connected state immediately after successful connection.
	// The OnConnectHandler callback runs asynchronously and may not have
	// executed yet, so we set it here to ensure IsConnected() returns true.
	// setState deduplicates, so the callback never fires twice.
	c.setState(StateConnected, "")

	return nil
}

// handleConnect is called when the connection is established.
// This fires on the initial connect and on every automatic reconnect.
func (c *Client) handleConnect() {
	c.setState(StateConnected, "")

	// Broker-side subscriptions do not survive a clean-session reconnect,
	// so the tracked set is stale and must be discarded. Collaborators
	// re-subscribe via the onConnect callback.
	c.clearSubscriptions()

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	c.setState(StateDisconnected, errText)
}

// setState records the new state and notifies the state change callback.
func (c *Client) setState(state ConnState, errText string) {
	c.stateMu.Lock()
	changed := c.state != state
	c.state = state
	c.stateMu.Unlock()

	if !changed {
		return
	}

	c.callbackMu.RLock()
	callback := c.onStateChange
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(state, errText)
	}
}

// clearSubscriptions discards the tracked topic filter set.
func (c *Client) clearSubscriptions() {
	c.subMu.Lock()
	c.subscriptions = make(map[string]struct{})
	c.subMu.Unlock()
}

// swapClient installs a new paho handle and returns the previous one.
func (c *Client) swapClient(client pahomqtt.Client, opts *pahomqtt.ClientOptions) pahomqtt.Client {
	c.handleMu.Lock()
	prior := c.client
	c.client = client
	c.options = opts
	c.handleMu.Unlock()
	return prior
}

// currentClient snapshots the paho handle (may be nil).
func (c *Client) currentClient() pahomqtt.Client {
	c.handleMu.RLock()
	defer c.handleMu.RUnlock()
	return c.client
}

// Disconnect gracefully closes the broker session.
//
// Pending operations are given a short quiesce period before the
// underlying connection is torn down. Disconnecting an already closed
// client is not an error.
func (c *Client) Disconnect() error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	client := c.swapClient(nil, nil)
	if client == nil {
		return nil
	}

	client.Disconnect(defaultDisconnectQuiesce)
	c.clearSubscriptions()
	c.setState(StateDisconnected, "")

	return nil
}

// State returns the current session state.
func (c *Client) State() ConnState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected returns whether the session is currently connected.
func (c *Client) IsConnected() bool {
	c.stateMu.RLock()
	state := c.state
	c.stateMu.RUnlock()
	client := c.currentClient()
	return state == StateConnected && client != nil && client.IsConnected()
}

// SetOnConnect sets a callback to be invoked when connection is established.
// This is called on initial connect and on every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnStateChange sets a callback to be invoked on every state transition.
// errText carries the broker error when the transition was caused by one.
func (c *Client) SetOnStateChange(callback func(state ConnState, errText string)) {
	c.callbackMu.Lock()
	c.onStateChange = callback
	c.callbackMu.Unlock()
}

// SetOnMessage sets the handler for all inbound messages.
//
// Every message received on any subscribed topic is routed here.
// The handler is invoked in a separate goroutine by the paho library
// and should not block for extended periods.
func (c *Client) SetOnMessage(callback func(topic string, payload []byte)) {
	c.callbackMu.Lock()
	c.onMessage = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for error and panic logging.
// If not set, handler panics are silently recovered.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// defaultHandler wraps the onMessage callback with panic recovery.
func (c *Client) defaultHandler() pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		c.callbackMu.RLock()
		handler := c.onMessage
		c.callbackMu.RUnlock()
		if handler != nil {
			handler(msg.Topic(), msg.Payload())
		}
	}
}
