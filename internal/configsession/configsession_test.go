package configsession

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yudhap/tasmocore/internal/tasmota"
)

var testReceipt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)

// fakeCommander records sent commands.
type fakeCommander struct {
	mu        sync.Mutex
	connected bool
	sent      []sentCommand
}

type sentCommand struct {
	deviceTopic string
	command     string
	payload     string
}

func (f *fakeCommander) Send(deviceTopic, command, payload string) {
	f.mu.Lock()
	f.sent = append(f.sent, sentCommand{deviceTopic, command, payload})
	f.mu.Unlock()
}

func (f *fakeCommander) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeCommander) sentCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, c := range f.sent {
		out[i] = c.command
	}
	return out
}

// openClosed returns a session whose probes never fire, for decode tests.
func openClosed(deviceTopic string) *Session {
	return Open(deviceTopic, &fakeCommander{connected: false})
}

// =============================================================================
// Probe Tests
// =============================================================================

func TestOpenSchedulesStaggeredProbes(t *testing.T) {
	commander := &fakeCommander{connected: true}
	s := Open("sonoff-dapur", commander)
	defer s.Close()

	// All three probes have fired well within 2x the longest delay
	deadline := time.After(2 * gpioProbeDelay)
	for {
		if len(commander.sentCommands()) >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("probes sent = %v, want 3 commands", commander.sentCommands())
		case <-time.After(10 * time.Millisecond):
		}
	}

	got := commander.sentCommands()
	want := []string{tasmota.CmdStatus, tasmota.CmdModule, tasmota.CmdGPIO}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("probe[%d] = %q, want %q", i, got[i], w)
		}
	}
}

func TestOpenDisconnectedSkipsProbes(t *testing.T) {
	commander := &fakeCommander{connected: false}
	s := Open("sonoff-dapur", commander)
	defer s.Close()

	time.Sleep(2 * statusProbeDelay)
	if n := len(commander.sentCommands()); n != 0 {
		t.Errorf("probes sent = %d, want 0 when disconnected", n)
	}
}

func TestCloseCancelsPendingProbes(t *testing.T) {
	commander := &fakeCommander{connected: true}
	s := Open("sonoff-dapur", commander)
	s.Close()

	time.Sleep(2 * gpioProbeDelay)
	if n := len(commander.sentCommands()); n != 0 {
		t.Errorf("probes sent = %d after immediate Close(), want 0", n)
	}
}

// =============================================================================
// Sub-page Guard Tests
// =============================================================================

func TestEnterModulePageGuarded(t *testing.T) {
	commander := &fakeCommander{connected: true}
	s := Open("sonoff-dapur", commander)
	defer s.Close()

	before := len(commander.sentCommands())
	s.EnterModulePage()
	s.EnterModulePage()

	got := commander.sentCommands()[before:]
	if len(got) != 2 {
		t.Fatalf("commands after double enter = %v, want [Module GPIO]", got)
	}
	if got[0] != tasmota.CmdModule || got[1] != tasmota.CmdGPIO {
		t.Errorf("commands = %v, want [Module GPIO]", got)
	}

	// Leaving resets the guard: re-entry queries again
	s.LeaveModulePage()
	s.EnterModulePage()
	if len(commander.sentCommands()[before:]) != 4 {
		t.Error("re-entry after leave must re-issue the module/GPIO pair")
	}
}

func TestEnterTimersPageGuarded(t *testing.T) {
	commander := &fakeCommander{connected: true}
	s := Open("sonoff-dapur", commander)
	defer s.Close()

	before := len(commander.sentCommands())
	s.EnterTimersPage()
	s.EnterTimersPage()

	got := commander.sentCommands()[before:]
	// Timers master query plus the 16 slot queries, once
	if len(got) != 1+tasmota.TimerSlots {
		t.Fatalf("commands after double enter = %d, want %d", len(got), 1+tasmota.TimerSlots)
	}
	if got[0] != tasmota.CmdTimers {
		t.Errorf("first command = %q, want Timers", got[0])
	}
	if got[1] != "Timer1" || got[16] != "Timer16" {
		t.Errorf("slot queries = [%q .. %q], want [Timer1 .. Timer16]", got[1], got[16])
	}
}

// =============================================================================
// Merge Policy Tests
// =============================================================================

func TestModuleIDAlwaysLatest(t *testing.T) {
	s := openClosed("sonoff-dapur")

	s.HandleMessage("stat/sonoff-dapur/RESULT", []byte(`{"Module":{"18":"Generic"}}`), testReceipt)
	id, ok := s.ModuleID()
	if !ok || id != "18" {
		t.Fatalf("ModuleID() = %q,%v, want 18,true", id, ok)
	}

	// A second answer replaces the first, even when different
	s.HandleMessage("stat/sonoff-dapur/RESULT", []byte(`{"Module":1}`), testReceipt)
	id, _ = s.ModuleID()
	if id != "1" {
		t.Errorf("ModuleID() = %q after second decode, want 1", id)
	}
}

func TestGPIOFirstWins(t *testing.T) {
	s := openClosed("sonoff-dapur")

	s.HandleMessage("stat/sonoff-dapur/RESULT",
		[]byte(`{"GPIO13":{"21":"Relay1"},"GPIO14":0}`), testReceipt)

	gpio := s.GPIO()
	if gpio[13] != 21 || gpio[14] != 0 {
		t.Fatalf("GPIO() = %v, want {13:21 14:0}", gpio)
	}

	// A second decode with different values is discarded whole
	s.HandleMessage("stat/sonoff-dapur/RESULT",
		[]byte(`{"GPIO13":99,"GPIO5":1}`), testReceipt)

	gpio = s.GPIO()
	if gpio[13] != 21 {
		t.Errorf("GPIO()[13] = %d after second decode, want 21 (first wins)", gpio[13])
	}
	if _, exists := gpio[5]; exists {
		t.Error("GPIO()[5] set by a discarded second decode")
	}
}

func TestTimerSlotsAlwaysOverwritten(t *testing.T) {
	s := openClosed("sonoff-dapur")

	s.HandleMessage("stat/sonoff-dapur/RESULT",
		[]byte(`{"Timer3":{"Enable":1,"Mode":0,"Time":"06:30","Window":15,"Days":"0111110","Repeat":1,"Output":1,"Action":1}}`),
		testReceipt)

	record, ok := s.Timer(3)
	if !ok || record.Enable != 1 || record.Time != "06:30" {
		t.Fatalf("Timer(3) = %+v, want first decode", record)
	}

	// All eight fields adopt the newest message
	s.HandleMessage("stat/sonoff-dapur/RESULT",
		[]byte(`{"Timer3":{"Enable":0,"Mode":1,"Time":"22:00","Window":0,"Days":"1111111","Repeat":0,"Output":2,"Action":0}}`),
		testReceipt)

	record, _ = s.Timer(3)
	want := tasmota.TimerRecord{Enable: 0, Mode: 1, Time: "22:00", Window: 0, Days: "1111111", Repeat: 0, Output: 2, Action: 0}
	if record != want {
		t.Errorf("Timer(3) = %+v, want %+v", record, want)
	}
}

func TestTimersEnabledShapes(t *testing.T) {
	tests := []struct {
		payload string
		want    bool
	}{
		{`{"Timers":"ON"}`, true},
		{`{"Timers":"OFF"}`, false},
		{`{"Timers":1}`, true},
		{`{"Timers":0}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			s := openClosed("sonoff-dapur")
			s.HandleMessage("stat/sonoff-dapur/RESULT", []byte(tt.payload), testReceipt)
			if got := s.TimersEnabled(); got != tt.want {
				t.Errorf("TimersEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClockOffset(t *testing.T) {
	s := openClosed("sonoff-dapur")

	deviceTime := testReceipt.Add(90 * time.Second).Format("2006-01-02T15:04:05")
	s.HandleMessage("stat/sonoff-dapur/RESULT",
		[]byte(fmt.Sprintf(`{"Time":"%s"}`, deviceTime)), testReceipt)

	offset, ok := s.ClockOffset()
	if !ok {
		t.Fatal("ClockOffset() ok = false, want true")
	}
	if offset != 90*time.Second {
		t.Errorf("ClockOffset() = %v, want 90s", offset)
	}
}

func TestClockParseFailureIgnored(t *testing.T) {
	s := openClosed("sonoff-dapur")

	s.HandleMessage("stat/sonoff-dapur/RESULT", []byte(`{"Time":"not a timestamp"}`), testReceipt)

	if _, ok := s.ClockOffset(); ok {
		t.Error("ClockOffset() ok = true after unparseable Time")
	}
}

// =============================================================================
// Regex Fallback Tests
// =============================================================================

func TestFallbackModuleFragment(t *testing.T) {
	s := openClosed("sonoff-dapur")

	// Not valid JSON; the fragment is still salvaged
	s.HandleMessage("stat/sonoff-dapur/RESULT", []byte(`garbage "Module":18 trailing`), testReceipt)

	id, ok := s.ModuleID()
	if !ok || id != "18" {
		t.Errorf("ModuleID() = %q,%v after fragment decode, want 18,true", id, ok)
	}
}

func TestFallbackGPIOFragments(t *testing.T) {
	s := openClosed("sonoff-dapur")

	s.HandleMessage("stat/sonoff-dapur/RESULT",
		[]byte(`broken {"GPIO13":21,"GPIO14":0 truncated`), testReceipt)

	gpio := s.GPIO()
	if gpio[13] != 21 {
		t.Errorf("GPIO()[13] = %d, want 21", gpio[13])
	}
	if code, exists := gpio[14]; !exists || code != 0 {
		t.Errorf("GPIO()[14] = %d,%v, want 0,true", code, exists)
	}
}

func TestFallbackRespectsGPIOFirstWins(t *testing.T) {
	s := openClosed("sonoff-dapur")

	s.HandleMessage("stat/sonoff-dapur/RESULT", []byte(`{"GPIO13":21}`), testReceipt)
	s.HandleMessage("stat/sonoff-dapur/RESULT", []byte(`broken "GPIO13":99`), testReceipt)

	if gpio := s.GPIO(); gpio[13] != 21 {
		t.Errorf("GPIO()[13] = %d, want 21 (fallback must not override)", gpio[13])
	}
}

// =============================================================================
// Scoping Tests
// =============================================================================

func TestIgnoresOtherDevices(t *testing.T) {
	s := openClosed("sonoff-dapur")

	s.HandleMessage("stat/other-device/RESULT", []byte(`{"Module":18}`), testReceipt)

	if _, ok := s.ModuleID(); ok {
		t.Error("ModuleID() set from another device's message")
	}
}

func TestCloseDiscardsState(t *testing.T) {
	s := openClosed("sonoff-dapur")

	s.HandleMessage("stat/sonoff-dapur/RESULT", []byte(`{"Module":18,"GPIO13":21}`), testReceipt)
	s.Close()

	if _, ok := s.ModuleID(); ok {
		t.Error("ModuleID() survived Close()")
	}
	if len(s.GPIO()) != 0 {
		t.Error("GPIO() survived Close()")
	}

	// Messages after close are ignored
	s.HandleMessage("stat/sonoff-dapur/RESULT", []byte(`{"Module":1}`), testReceipt)
	if _, ok := s.ModuleID(); ok {
		t.Error("closed session accepted a message")
	}
}
