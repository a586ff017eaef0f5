package tasmota

import (
	"fmt"
	"strings"
)

// Command vocabulary understood by the device firmware.
//
// Commands are sent as the last topic segment of cmnd/{deviceTopic}/;
// the payload carries the argument (empty payload queries the current
// value).
const (
	CmdPower        = "POWER"
	CmdStatus       = "STATUS"
	CmdModule       = "Module"
	CmdGPIO         = "GPIO"
	CmdGPIOs        = "GPIOS"
	CmdTemplate     = "Template"
	CmdTimers       = "Timers"
	CmdSerialLog    = "SerialLog"
	CmdWebLog       = "WebLog"
	CmdMqttLog      = "MqttLog"
	CmdSysLog       = "SysLog"
	CmdDeviceName   = "DeviceName"
	CmdFriendlyName = "FriendlyName"
	CmdEmulation    = "Emulation"
	CmdTimezone     = "Timezone"
	CmdNtpServer    = "NtpServer"
	CmdOtaURL       = "OtaUrl"
	CmdUpgrade      = "Upgrade"
	CmdRestart      = "RESTART"
)

// Power command payloads.
const (
	PayloadToggle = "TOGGLE"
	PayloadOn     = "ON"
	PayloadOff    = "OFF"
)

// TimerSlots is the number of timer slots the firmware exposes.
const TimerSlots = 16

// TimerCommand returns the per-slot timer command, e.g. "Timer5".
// Slots are numbered 1 through 16.
func TimerCommand(slot int) string {
	return fmt.Sprintf("Timer%d", slot)
}

// GPIOPinCommand returns the per-pin GPIO command, e.g. "GPIO14".
func GPIOPinCommand(pin int) string {
	return fmt.Sprintf("GPIO%d", pin)
}

// StatusPayload returns the payload for a STATUS sub-report query.
// Valid sub-reports are 0 (everything) through 11.
func StatusPayload(report int) string {
	return fmt.Sprintf("%d", report)
}

// TimerRecord is one of the 16 firmware timer slots.
//
// Days is a 7-character bitmask, one character per weekday starting
// Sunday ("1111111" means every day). Time is "HH:MM".
type TimerRecord struct {
	Enable int    `json:"Enable"`
	Mode   int    `json:"Mode"`
	Time   string `json:"Time"`
	Window int    `json:"Window"`
	Days   string `json:"Days"`
	Repeat int    `json:"Repeat"`
	Output int    `json:"Output"`
	Action int    `json:"Action"`
}

// BuildTimerPayload renders a timer record as the JSON payload the
// firmware expects for a Timer{n} set command.
func BuildTimerPayload(r TimerRecord) string {
	return fmt.Sprintf(
		`{"Enable":%d,"Mode":%d,"Time":"%s","Window":%d,"Days":"%s","Repeat":%d,"Output":%d,"Action":%d}`,
		r.Enable, r.Mode, r.Time, r.Window, r.Days, r.Repeat, r.Output, r.Action,
	)
}

// ParseConsoleCommand splits a raw console line into command and payload.
//
// The first whitespace-separated token is the command; the remainder,
// if any, is the payload verbatim. Empty lines yield ok=false.
//
// Example: "Power TOGGLE" → ("Power", "TOGGLE", true).
func ParseConsoleCommand(line string) (command, payload string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", false
	}
	command, payload, _ = strings.Cut(line, " ")
	return command, strings.TrimSpace(payload), true
}
