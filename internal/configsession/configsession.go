package configsession

import (
	"sync"
	"time"

	"github.com/yudhap/tasmocore/internal/tasmota"
)

// Probe pacing delays.
//
// The three initial queries are staggered so the device firmware is
// never asked for everything in one burst. The delays are pacing only,
// not ordering guarantees.
const (
	statusProbeDelay = 100 * time.Millisecond
	moduleProbeDelay = 300 * time.Millisecond
	gpioProbeDelay   = 1000 * time.Millisecond
)

// Commander sends commands to a device. *session.Session satisfies it.
type Commander interface {
	Send(deviceTopic, command, payload string)
	IsConnected() bool
}

// Session accumulates the configuration of one device while its detail
// view is open: module id, GPIO function map, the 16 timer slots, and
// the device clock offset.
//
// The merge policies are deliberately asymmetric and match the device
// firmware's query behaviour:
//   - module id: always adopts the newest decode
//   - GPIO map: first answer wins; later decodes are discarded whole
//   - timer slots: every matching message overwrites all eight fields
//
// All state is discarded on Close; re-opening starts empty and
// re-queries the device.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Session struct {
	deviceTopic string
	commander   Commander

	mu sync.Mutex

	moduleID       string
	hasModule      bool
	gpio           map[int]int
	timers         [tasmota.TimerSlots]tasmota.TimerRecord
	timersEnabled  bool
	clockOffset    time.Duration
	hasClockOffset bool

	// Per-sub-page guards: queries are issued once per page visit.
	modulePageOpen bool
	timersPageOpen bool

	probes []*time.Timer
	closed bool
}

// Open creates a config session for a device and, when connected,
// schedules the three staggered opening probes: a full status query,
// a module query, and a GPIO query.
func Open(deviceTopic string, commander Commander) *Session {
	s := &Session{
		deviceTopic: deviceTopic,
		commander:   commander,
	}

	if commander.IsConnected() {
		s.scheduleProbe(statusProbeDelay, tasmota.CmdStatus, tasmota.StatusPayload(0))
		s.scheduleProbe(moduleProbeDelay, tasmota.CmdModule, "")
		s.scheduleProbe(gpioProbeDelay, tasmota.CmdGPIO, "")
	}

	return s
}

// scheduleProbe sends one query after a pacing delay unless the session
// was closed in the meantime.
func (s *Session) scheduleProbe(delay time.Duration, command, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer := time.AfterFunc(delay, func() {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		s.commander.Send(s.deviceTopic, command, payload)
	})
	s.probes = append(s.probes, timer)
}

// DeviceTopic returns the device this session inspects.
func (s *Session) DeviceTopic() string {
	return s.deviceTopic
}

// EnterModulePage re-queries module and GPIO when the module
// configuration sub-page opens. A guard keeps the pair from being
// re-issued while the page stays open.
func (s *Session) EnterModulePage() {
	s.mu.Lock()
	if s.modulePageOpen {
		s.mu.Unlock()
		return
	}
	s.modulePageOpen = true
	s.mu.Unlock()

	s.commander.Send(s.deviceTopic, tasmota.CmdModule, "")
	s.commander.Send(s.deviceTopic, tasmota.CmdGPIO, "")
}

// LeaveModulePage resets the module page guard so the next entry
// re-queries.
func (s *Session) LeaveModulePage() {
	s.mu.Lock()
	s.modulePageOpen = false
	s.mu.Unlock()
}

// EnterTimersPage queries the timers master flag and all 16 slots when
// the timers sub-page opens, guarded like the module page.
func (s *Session) EnterTimersPage() {
	s.mu.Lock()
	if s.timersPageOpen {
		s.mu.Unlock()
		return
	}
	s.timersPageOpen = true
	s.mu.Unlock()

	s.commander.Send(s.deviceTopic, tasmota.CmdTimers, "")
	for slot := 1; slot <= tasmota.TimerSlots; slot++ {
		s.commander.Send(s.deviceTopic, tasmota.TimerCommand(slot), "")
	}
}

// LeaveTimersPage resets the timers page guard.
func (s *Session) LeaveTimersPage() {
	s.mu.Lock()
	s.timersPageOpen = false
	s.mu.Unlock()
}

// SetTimer writes one timer slot to the device.
func (s *Session) SetTimer(slot int, record tasmota.TimerRecord) {
	if slot < 1 || slot > tasmota.TimerSlots {
		return
	}
	s.commander.Send(s.deviceTopic, tasmota.TimerCommand(slot), tasmota.BuildTimerPayload(record))
}

// SetModule writes the module type to the device.
func (s *Session) SetModule(moduleID string) {
	s.commander.Send(s.deviceTopic, tasmota.CmdModule, moduleID)
}

// SetGPIO writes one pin's function code to the device.
func (s *Session) SetGPIO(pin int, functionCode string) {
	s.commander.Send(s.deviceTopic, tasmota.GPIOPinCommand(pin), functionCode)
}

// ModuleID returns the accumulated module id, if one was decoded.
func (s *Session) ModuleID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moduleID, s.hasModule
}

// GPIO returns a copy of the accumulated pin-to-function map.
func (s *Session) GPIO() map[int]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int]int, len(s.gpio))
	for pin, code := range s.gpio {
		out[pin] = code
	}
	return out
}

// Timer returns one timer slot (1-based).
func (s *Session) Timer(slot int) (tasmota.TimerRecord, bool) {
	if slot < 1 || slot > tasmota.TimerSlots {
		return tasmota.TimerRecord{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[slot-1], true
}

// TimersEnabled returns the accumulated master timers flag.
func (s *Session) TimersEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timersEnabled
}

// ClockOffset returns device time minus local receipt time, if the
// device has reported its clock.
func (s *Session) ClockOffset() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clockOffset, s.hasClockOffset
}

// Close cancels pending probes and discards all accumulated state.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	for _, timer := range s.probes {
		timer.Stop()
	}
	s.probes = nil

	s.moduleID = ""
	s.hasModule = false
	s.gpio = nil
	s.timers = [tasmota.TimerSlots]tasmota.TimerRecord{}
	s.timersEnabled = false
	s.clockOffset = 0
	s.hasClockOffset = false
}

// HandleMessage folds one raw inbound message into the session state.
// It implements the message sink the owning broker session fans out to.
func (s *Session) HandleMessage(topic string, payload []byte, receivedAt time.Time) {
	parsed, ok := tasmota.ParseTopic(topic)
	if !ok || parsed.DeviceTopic != s.deviceTopic || parsed.Kind == tasmota.KindCommand {
		return
	}

	result := decodePayload(payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if result.deviceTime != nil {
		s.clockOffset = result.deviceTime.Sub(receivedAt)
		s.hasClockOffset = true
	}

	// Module id always takes the latest decode
	if result.moduleID != nil {
		s.moduleID = *result.moduleID
		s.hasModule = true
	}

	// GPIO map fills exactly once; later answers are discarded whole
	if len(result.gpio) > 0 && len(s.gpio) == 0 {
		s.gpio = result.gpio
	}

	// Timer slots overwrite all eight fields on every matching message
	for slot, record := range result.timers {
		s.timers[slot-1] = record
	}

	if result.timersEnabled != nil {
		s.timersEnabled = *result.timersEnabled
	}
}
