package mqtt

import (
	"errors"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/yudhap/tasmocore/internal/infrastructure/config"
)

// testBrokerConfig returns valid broker settings for testing.
// These tests exercise the client without a live broker.
func testBrokerConfig() config.BrokerConfig {
	return config.BrokerConfig{
		Host:    "192.168.1.50",
		Port:    8083,
		TLSPort: 8884,
		Path:    "/mqtt",
	}
}

// =============================================================================
// State Tests
// =============================================================================

func TestConnStateString(t *testing.T) {
	tests := []struct {
		state    ConnState
		expected string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNew_InitialState(t *testing.T) {
	client := New(testBrokerConfig())

	if client.State() != StateDisconnected {
		t.Errorf("State() = %v, want StateDisconnected", client.State())
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true for new client, want false")
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestSetState_NotifiesOnTransition(t *testing.T) {
	client := New(testBrokerConfig())

	var gotState ConnState
	var gotErrText string
	calls := 0
	client.SetOnStateChange(func(state ConnState, errText string) {
		gotState = state
		gotErrText = errText
		calls++
	})

	client.setState(StateConnecting, "")
	if calls != 1 {
		t.Fatalf("callback calls = %d, want 1", calls)
	}
	if gotState != StateConnecting {
		t.Errorf("callback state = %v, want StateConnecting", gotState)
	}

	// Same state again must not re-fire
	client.setState(StateConnecting, "")
	if calls != 1 {
		t.Errorf("callback calls after repeat = %d, want 1", calls)
	}

	client.setState(StateError, "broker unreachable")
	if calls != 2 {
		t.Fatalf("callback calls = %d, want 2", calls)
	}
	if gotErrText != "broker unreachable" {
		t.Errorf("callback errText = %q, want %q", gotErrText, "broker unreachable")
	}
}

func TestDisconnect_Unconnected(t *testing.T) {
	client := New(testBrokerConfig())

	if err := client.Disconnect(); err != nil {
		t.Errorf("Disconnect() on unconnected client error = %v, want nil", err)
	}
}

// =============================================================================
// URL and Client ID Tests
// =============================================================================

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		name     string
		tls      bool
		expected string
	}{
		{
			name:     "plaintext websocket",
			tls:      false,
			expected: "ws://192.168.1.50:8083/mqtt",
		},
		{
			name:     "tls websocket",
			tls:      true,
			expected: "wss://192.168.1.50:8884/mqtt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testBrokerConfig()
			cfg.TLS = tt.tls

			if got := brokerURL(cfg); got != tt.expected {
				t.Errorf("brokerURL() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRandomClientID(t *testing.T) {
	id1 := randomClientID()
	id2 := randomClientID()

	if !strings.HasPrefix(id1, "tasmocore-") {
		t.Errorf("randomClientID() = %q, want tasmocore- prefix", id1)
	}
	if len(id1) != len("tasmocore-")+8 {
		t.Errorf("randomClientID() length = %d, want %d", len(id1), len("tasmocore-")+8)
	}
	if id1 == id2 {
		t.Errorf("randomClientID() returned identical ids: %q", id1)
	}
}

// =============================================================================
// Publish Validation Tests
// =============================================================================

func TestPublishEmptyTopic(t *testing.T) {
	client := New(testBrokerConfig())

	err := client.Publish("", []byte("TOGGLE"))
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish() error = %v, want ErrInvalidTopic", err)
	}
}

func TestPublishOversizedPayload(t *testing.T) {
	client := New(testBrokerConfig())

	err := client.Publish("cmnd/test/POWER", make([]byte, maxPayloadSize+1))
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}
}

func TestPublishDisconnected(t *testing.T) {
	client := New(testBrokerConfig())

	err := client.Publish("cmnd/test/POWER", []byte("TOGGLE"))
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishStringDisconnected(t *testing.T) {
	client := New(testBrokerConfig())

	err := client.PublishString("cmnd/test/POWER", "TOGGLE")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishString() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Subscribe Validation Tests
// =============================================================================

func TestSubscribeMultipleNoFilters(t *testing.T) {
	client := New(testBrokerConfig())

	err := client.SubscribeMultiple(nil, nil)
	if !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("SubscribeMultiple() error = %v, want ErrSubscribeFailed", err)
	}
}

func TestSubscribeMultipleEmptyFilter(t *testing.T) {
	client := New(testBrokerConfig())

	err := client.SubscribeMultiple([]string{"stat/test/POWER", ""}, nil)
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("SubscribeMultiple() error = %v, want ErrInvalidTopic", err)
	}
}

func TestSubscribeMultipleDisconnected(t *testing.T) {
	client := New(testBrokerConfig())

	err := client.SubscribeMultiple([]string{"stat/test/POWER"}, nil)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("SubscribeMultiple() error = %v, want ErrNotConnected", err)
	}
}

func TestHasSubscription_NotSubscribed(t *testing.T) {
	client := New(testBrokerConfig())

	if client.HasSubscription("stat/nonexistent/POWER") {
		t.Error("HasSubscription() = true for unsubscribed filter, want false")
	}
}

// =============================================================================
// Concurrency Tests
// =============================================================================

// refusedBrokerConfig points at a loopback port that was just closed,
// so connection attempts fail immediately instead of timing out.
func refusedBrokerConfig(t *testing.T) config.BrokerConfig {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	cfg := testBrokerConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = port
	return cfg
}

// Run with -race: readers poll the paho handle while two goroutines
// fight over the session (last caller wins).
func TestConcurrentConnectAndHandleReads(t *testing.T) {
	client := New(refusedBrokerConfig(t))

	done := make(chan struct{})
	var readers sync.WaitGroup
	for i := 0; i < 2; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				client.IsConnected()
				if err := client.Publish("cmnd/test/POWER", []byte("TOGGLE")); !errors.Is(err, ErrNotConnected) {
					t.Errorf("Publish() error = %v, want ErrNotConnected", err)
				}
			}
		}()
	}

	var connectors sync.WaitGroup
	for i := 0; i < 2; i++ {
		connectors.Add(1)
		go func() {
			defer connectors.Done()
			for j := 0; j < 3; j++ {
				if err := client.Connect(); !errors.Is(err, ErrConnectionFailed) {
					t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
				}
			}
		}()
	}

	connectors.Wait()
	close(done)
	readers.Wait()

	if err := client.Disconnect(); err != nil {
		t.Errorf("Disconnect() error = %v, want nil", err)
	}
}

func TestClearSubscriptions(t *testing.T) {
	client := New(testBrokerConfig())

	client.subMu.Lock()
	client.subscriptions["stat/test/POWER"] = struct{}{}
	client.subscriptions["tele/test/LWT"] = struct{}{}
	client.subMu.Unlock()

	if client.SubscriptionCount() != 2 {
		t.Fatalf("SubscriptionCount() = %d, want 2", client.SubscriptionCount())
	}

	client.clearSubscriptions()

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() after clear = %d, want 0", client.SubscriptionCount())
	}
}
