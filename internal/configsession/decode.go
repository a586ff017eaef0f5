package configsession

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yudhap/tasmocore/internal/tasmota"
)

// deviceTimeLayout is the firmware's clock format, local to the device.
const deviceTimeLayout = "2006-01-02T15:04:05"

// Fallback patterns for the non-standard fragments the firmware
// occasionally emits. Used only when JSON parsing fails.
var (
	moduleFragmentRe = regexp.MustCompile(`"Module":(\d+)`)
	gpioFragmentRe   = regexp.MustCompile(`"GPIO(\d+)":(\d+)`)
	timerKeyRe       = regexp.MustCompile(`^Timer(\d+)$`)
	gpioKeyRe        = regexp.MustCompile(`^GPIO(\d+)$`)
)

// decodeResult is the tagged outcome of one payload decode. The two
// accepted JSON shapes for module and GPIO values (bare scalar,
// one-entry object) are resolved here, once, never re-sniffed by the
// merge code.
type decodeResult struct {
	deviceTime    *time.Time
	moduleID      *string
	gpio          map[int]int
	timers        map[int]tasmota.TimerRecord
	timersEnabled *bool
}

// decodePayload parses one payload, falling back to fragment regexes
// when it is not valid JSON.
func decodePayload(payload []byte) decodeResult {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return decodeFragments(payload)
	}

	var result decodeResult

	for key, raw := range fields {
		switch {
		case key == "Time":
			if t, ok := decodeDeviceTime(raw); ok {
				result.deviceTime = &t
			}

		case key == tasmota.CmdModule:
			if id, ok := decodeModuleValue(raw); ok {
				result.moduleID = &id
			}

		case key == tasmota.CmdTimers:
			if enabled, ok := decodeOnOffValue(raw); ok {
				result.timersEnabled = &enabled
			}

		case timerKeyRe.MatchString(key):
			slot, _ := strconv.Atoi(timerKeyRe.FindStringSubmatch(key)[1])
			if slot < 1 || slot > tasmota.TimerSlots {
				continue
			}
			var record tasmota.TimerRecord
			if err := json.Unmarshal(raw, &record); err == nil {
				if result.timers == nil {
					result.timers = make(map[int]tasmota.TimerRecord)
				}
				result.timers[slot] = record
			}

		case gpioKeyRe.MatchString(key):
			pin, _ := strconv.Atoi(gpioKeyRe.FindStringSubmatch(key)[1])
			if code, ok := decodeGPIOValue(raw); ok {
				if result.gpio == nil {
					result.gpio = make(map[int]int)
				}
				result.gpio[pin] = code
			}
		}
	}

	return result
}

// decodeFragments recovers module and GPIO values from a payload that
// is not valid JSON. Only these two are worth salvaging; everything
// else in a broken payload is dropped.
func decodeFragments(payload []byte) decodeResult {
	var result decodeResult
	text := string(payload)

	if m := moduleFragmentRe.FindStringSubmatch(text); m != nil {
		id := m[1]
		result.moduleID = &id
	}

	for _, m := range gpioFragmentRe.FindAllStringSubmatch(text, -1) {
		pin, _ := strconv.Atoi(m[1])
		code, _ := strconv.Atoi(m[2])
		if result.gpio == nil {
			result.gpio = make(map[int]int)
		}
		result.gpio[pin] = code
	}

	return result
}

// decodeDeviceTime parses the firmware clock field.
func decodeDeviceTime(raw json.RawMessage) (time.Time, bool) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(deviceTimeLayout, text, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// decodeModuleValue accepts the two shapes the firmware uses for a
// module answer: a bare number, or a one-entry object whose single key
// is the module id ({"18":"Generic"}).
func decodeModuleValue(raw json.RawMessage) (string, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil && len(obj) == 1 {
		for key := range obj {
			return key, true
		}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s, true
	}

	return "", false
}

// decodeGPIOValue accepts a bare function code or a one-entry object
// whose single value carries the code ({"21":"Relay1"} keys on the
// code, so the key is taken when the value is not numeric).
func decodeGPIOValue(raw json.RawMessage) (int, bool) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil && len(obj) == 1 {
		for key, value := range obj {
			var code int
			if err := json.Unmarshal(value, &code); err == nil {
				return code, true
			}
			if code, err := strconv.Atoi(key); err == nil {
				return code, true
			}
		}
	}

	return 0, false
}

// decodeOnOffValue accepts a textual ON/OFF token or a numeric 0/1.
func decodeOnOffValue(raw json.RawMessage) (bool, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToUpper(s) {
		case "ON", "1":
			return true, true
		case "OFF", "0":
			return false, true
		}
		return false, false
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0, true
	}

	return false, false
}
