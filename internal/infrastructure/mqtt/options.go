package mqtt

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/yudhap/tasmocore/internal/infrastructure/config"
)

// Connection constants.
//
// Long connect timeout for slow embedded brokers, fixed 5 second
// reconnect cadence.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 30 * time.Second

	// defaultReconnectInterval is the fixed delay between reconnect attempts.
	// Initial and maximum are the same, so backoff never grows.
	defaultReconnectInterval = 5 * time.Second

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// defaultSubscribeTimeout is the maximum time to wait for a SUBACK.
	defaultSubscribeTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish completion.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// clientIDPrefix is prepended to the random session identifier.
	clientIDPrefix = "tasmocore-"
)

// randomClientID generates a fresh client identifier for each session.
func randomClientID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return clientIDPrefix + id[:8]
}

// brokerURL builds the WebSocket broker URL from config.
//
// Plaintext sessions use ws:// on the standard port, TLS sessions use
// wss:// on the TLS port. The path is the broker's WebSocket endpoint.
func brokerURL(cfg config.BrokerConfig) string {
	scheme := "ws"
	port := cfg.Port
	if cfg.TLS {
		scheme = "wss"
		port = cfg.TLSPort
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, cfg.Host, port, cfg.Path)
}

// buildClientOptions creates paho MQTT options for a Tasmota session.
//
// This configures:
//   - WebSocket broker URL (ws:// or wss:// based on TLS setting)
//   - Random client ID per session
//   - Authentication credentials (if provided)
//   - Clean session (broker drops subscriptions on disconnect)
//   - Auto-reconnect at a fixed interval
func buildClientOptions(cfg config.BrokerConfig, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(brokerURL(cfg))
	opts.SetClientID(clientID)

	// Authentication (if credentials provided)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	// Clean session - start fresh on connect (no persistent session on broker)
	opts.SetCleanSession(true)
	opts.SetResumeSubs(false)

	// Auto-reconnect with fixed interval (no backoff growth)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(defaultReconnectInterval)

	opts.SetConnectTimeout(defaultConnectTimeout)

	// Keepalive - broker PINGs detect dead connections
	opts.SetKeepAlive(defaultKeepAlive)

	// TLS configuration if enabled. Brokers on home networks almost
	// always present self-signed certificates, so verification is
	// skipped.
	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{
			InsecureSkipVerify: true, //nolint:gosec
		})
	}

	return opts
}
