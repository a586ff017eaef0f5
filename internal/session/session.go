package session

import (
	"sync"
	"time"

	"github.com/yudhap/tasmocore/internal/device"
	"github.com/yudhap/tasmocore/internal/infrastructure/mqtt"
	"github.com/yudhap/tasmocore/internal/tasmota"
)

// Transport is the broker session the Session drives.
// *mqtt.Client satisfies it; tests supply a fake.
type Transport interface {
	Connect() error
	Disconnect() error
	IsConnected() bool
	State() mqtt.ConnState
	Publish(topic string, payload []byte) error
	SubscribeMultiple(filters []string, callback func(granted bool)) error
	SetOnConnect(callback func())
	SetOnStateChange(callback func(state mqtt.ConnState, errText string))
	SetOnMessage(callback func(topic string, payload []byte))
}

// MessageSink receives the raw inbound messages for one device topic.
// Config sessions implement it to run their own decode pipeline.
type MessageSink interface {
	HandleMessage(topic string, payload []byte, receivedAt time.Time)
}

// Logger interface for structured logging.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards everything; used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Session ties the transport, the projection store, the per-device
// subscription registry and the open config sessions together.
//
// All inbound traffic flows through handleMessage: decoded updates go
// to the store, raw messages fan out to the config session open for
// that device topic.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Session struct {
	transport Transport
	store     *device.Store
	logger    Logger

	// subscribed tracks device topics with an acknowledged subscription.
	// Cleared on every connect: clean sessions drop broker-side state.
	subscribed map[string]bool
	subMu      sync.Mutex

	// sinks maps device topic to the open config session, if any.
	sinks  map[string]MessageSink
	sinkMu sync.RWMutex

	// onConnect fires after the subscription registry has been reset on
	// a (re)connect, so the owner can re-subscribe its devices (optional).
	onConnect func()

	// onMessage observes every raw inbound message (optional). Console
	// views use it; it never affects the decode pipeline.
	onMessage func(topic string, payload []byte, receivedAt time.Time)

	// onConnectionChange is forwarded transport state (optional).
	onConnectionChange func(state mqtt.ConnState, errText string)
	callbackMu         sync.RWMutex
}

// New creates a Session around a transport and a projection store.
// Passing a nil logger disables logging.
func New(transport Transport, store *device.Store, logger Logger) *Session {
	if logger == nil {
		logger = noopLogger{}
	}

	s := &Session{
		transport:  transport,
		store:      store,
		logger:     logger,
		subscribed: make(map[string]bool),
		sinks:      make(map[string]MessageSink),
	}

	transport.SetOnConnect(s.handleConnect)
	transport.SetOnStateChange(s.handleStateChange)
	transport.SetOnMessage(s.handleMessage)

	return s
}

// Connect opens the broker session. A prior live session is torn down
// by the transport first (last caller wins).
func (s *Session) Connect() error {
	return s.transport.Connect()
}

// Disconnect closes the broker session.
func (s *Session) Disconnect() error {
	return s.transport.Disconnect()
}

// IsConnected reports whether the transport session is live.
func (s *Session) IsConnected() bool {
	return s.transport.IsConnected()
}

// Store returns the projection store for read access.
func (s *Session) Store() *device.Store {
	return s.store
}

// Subscribe registers interest in a device topic.
//
// Idempotent: a no-op when the topic is already subscribed this
// session, or when not connected. Otherwise one batched subscribe
// covers the full 14-filter set; on acknowledgment the topic is marked
// subscribed and one empty POWER query elicits the initial state.
func (s *Session) Subscribe(deviceTopic string) {
	if deviceTopic == "" {
		return
	}
	if !s.transport.IsConnected() {
		s.logger.Debug("subscribe skipped, not connected", "device_topic", deviceTopic)
		return
	}

	s.subMu.Lock()
	if s.subscribed[deviceTopic] {
		s.subMu.Unlock()
		return
	}
	// Mark early so a concurrent call cannot double-subscribe; rolled
	// back if the broker rejects the batch.
	s.subscribed[deviceTopic] = true
	s.subMu.Unlock()

	filters := tasmota.StatusSuffixes(deviceTopic)
	err := s.transport.SubscribeMultiple(filters, func(granted bool) {
		if !granted {
			s.subMu.Lock()
			delete(s.subscribed, deviceTopic)
			s.subMu.Unlock()
			s.logger.Warn("subscribe not granted", "device_topic", deviceTopic)
			return
		}
		s.logger.Debug("subscribed", "device_topic", deviceTopic, "filters", len(filters))
		// Probe current power state so the projection fills immediately
		s.Send(deviceTopic, tasmota.CmdPower, "")
	})
	if err != nil {
		s.subMu.Lock()
		delete(s.subscribed, deviceTopic)
		s.subMu.Unlock()
		s.logger.Warn("subscribe failed", "device_topic", deviceTopic, "error", err)
	}
}

// IsSubscribed reports whether a device topic is subscribed this session.
func (s *Session) IsSubscribed(deviceTopic string) bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return s.subscribed[deviceTopic]
}

// Send publishes one command to a device.
//
// The topic is cmnd/{deviceTopic}/{command}; the payload may be empty
// (a query). Fire and forget at QoS 0: success means handed to the
// transport, not that the device received it. When disconnected the
// command is silently dropped — there is no queue.
func (s *Session) Send(deviceTopic, command, payload string) {
	if deviceTopic == "" || command == "" {
		return
	}
	if !s.transport.IsConnected() {
		s.logger.Debug("command dropped, not connected",
			"device_topic", deviceTopic, "command", command)
		return
	}

	topic := tasmota.CommandTopic(deviceTopic, command)
	if err := s.transport.Publish(topic, []byte(payload)); err != nil {
		s.logger.Warn("publish failed", "topic", topic, "error", err)
	}
}

// SendPower sends a POWER command (TOGGLE, ON, OFF, or empty to query).
func (s *Session) SendPower(deviceTopic, payload string) {
	s.Send(deviceTopic, tasmota.CmdPower, payload)
}

// SendStatus queries one STATUS sub-report (0 requests everything).
func (s *Session) SendStatus(deviceTopic string, report int) {
	s.Send(deviceTopic, tasmota.CmdStatus, tasmota.StatusPayload(report))
}

// Restart asks the device firmware to restart.
func (s *Session) Restart(deviceTopic string) {
	s.Send(deviceTopic, tasmota.CmdRestart, "1")
}

// AttachConfigSession routes raw messages for a device topic to a sink.
// At most one sink per device topic; a second attach replaces the first.
func (s *Session) AttachConfigSession(deviceTopic string, sink MessageSink) {
	s.sinkMu.Lock()
	s.sinks[deviceTopic] = sink
	s.sinkMu.Unlock()
}

// DetachConfigSession stops routing messages for a device topic.
func (s *Session) DetachConfigSession(deviceTopic string) {
	s.sinkMu.Lock()
	delete(s.sinks, deviceTopic)
	s.sinkMu.Unlock()
}

// SetOnMessage registers a tap observing every raw inbound message.
// The tap runs before decoding and cannot alter the pipeline.
func (s *Session) SetOnMessage(callback func(topic string, payload []byte, receivedAt time.Time)) {
	s.callbackMu.Lock()
	s.onMessage = callback
	s.callbackMu.Unlock()
}

// SetOnConnect registers a callback that fires after every (re)connect,
// once the subscription registry has been reset. The usual collaborator
// re-subscribes the registered devices here.
func (s *Session) SetOnConnect(callback func()) {
	s.callbackMu.Lock()
	s.onConnect = callback
	s.callbackMu.Unlock()
}

// SetOnConnectionChange forwards transport state transitions to the
// surrounding application.
func (s *Session) SetOnConnectionChange(callback func(state mqtt.ConnState, errText string)) {
	s.callbackMu.Lock()
	s.onConnectionChange = callback
	s.callbackMu.Unlock()
}

// handleConnect runs on every (re)connect. Broker-side subscriptions
// did not survive, so the registry starts empty and devices must be
// re-subscribed by the collaborator.
func (s *Session) handleConnect() {
	s.subMu.Lock()
	s.subscribed = make(map[string]bool)
	s.subMu.Unlock()

	s.logger.Info("broker session established")

	s.callbackMu.RLock()
	callback := s.onConnect
	s.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleStateChange marks every device offline when the session drops
// and forwards the transition.
func (s *Session) handleStateChange(state mqtt.ConnState, errText string) {
	if state == mqtt.StateDisconnected || state == mqtt.StateError {
		s.store.MarkAllOffline()
	}
	if errText != "" {
		s.logger.Warn("transport state change", "state", state.String(), "error", errText)
	} else {
		s.logger.Debug("transport state change", "state", state.String())
	}

	s.callbackMu.RLock()
	callback := s.onConnectionChange
	s.callbackMu.RUnlock()
	if callback != nil {
		callback(state, errText)
	}
}

// handleMessage decodes one inbound message, merges it into the store,
// and fans the raw message out to the device's config session.
//
// The fan-out happens regardless of decode outcome: the config session
// runs its own pipeline and can recover fragments this decoder drops.
func (s *Session) handleMessage(topic string, payload []byte) {
	now := time.Now()

	s.callbackMu.RLock()
	tap := s.onMessage
	s.callbackMu.RUnlock()
	if tap != nil {
		tap(topic, payload, now)
	}

	parsed, ok := tasmota.ParseTopic(topic)
	if !ok {
		s.logger.Debug("malformed topic dropped", "topic", topic)
		return
	}

	s.sinkMu.RLock()
	sink := s.sinks[parsed.DeviceTopic]
	s.sinkMu.RUnlock()
	if sink != nil {
		sink.HandleMessage(topic, payload, now)
	}

	update, outcome := tasmota.Decode(topic, payload, now)
	if outcome == tasmota.OutcomeUnrecognized {
		s.logger.Debug("unrecognised message dropped", "topic", topic)
		return
	}

	s.store.Apply(update)
}
