package tasmota

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Outcome is the result of decoding an inbound message.
type Outcome int

const (
	// OutcomeUnrecognized means the message carried nothing to project:
	// too few topic segments, an unknown command, or malformed JSON.
	// Malformed payloads are dropped here, never partially extracted.
	OutcomeUnrecognized Outcome = iota

	// OutcomeApplied means the Update carries at least the receipt time
	// and should be merged into the device projection.
	OutcomeApplied
)

// Update is a partial device-state update decoded from one message.
//
// Only the fields present in the message are non-nil; the store merges
// them field by field so updates commute regardless of arrival order.
type Update struct {
	DeviceTopic string
	ReceivedAt  time.Time

	Power  *string
	Online *bool
	Module *string

	IPAddress *string
	Hostname  *string
	Mac       *string
	SSID      *string
	RSSI      *int
	Version   *string
	Uptime    *string

	FreeMemory *int
	MQTTCount  *int

	PowerW      *float64
	Voltage     *float64
	Current     *float64
	Temperature *float64
	Humidity    *float64
}

// onlineLiteral is the last-will payload a live device retains.
const onlineLiteral = "Online"

// Vendor JSON shapes. Pointer sub-objects distinguish absence from
// zero values; unknown keys are ignored by encoding/json.

type resultReport struct {
	Power  *string         `json:"POWER"`
	Module json.RawMessage `json:"Module"`
}

type wifiReport struct {
	SSID *string `json:"SSId"`
	RSSI *int    `json:"RSSI"`
}

type sensorReadings struct {
	Energy *struct {
		Power   *float64 `json:"Power"`
		Voltage *float64 `json:"Voltage"`
		Current *float64 `json:"Current"`
	} `json:"ENERGY"`
	AM2301 *struct {
		Temperature *float64 `json:"Temperature"`
		Humidity    *float64 `json:"Humidity"`
	} `json:"AM2301"`
	DHT11 *struct {
		Temperature *float64 `json:"Temperature"`
		Humidity    *float64 `json:"Humidity"`
	} `json:"DHT11"`
	DS18B20 *struct {
		Temperature *float64 `json:"Temperature"`
	} `json:"DS18B20"`
}

type statusReport struct {
	Status *struct {
		Module json.RawMessage `json:"Module"`
	} `json:"Status"`
	StatusPRM *struct {
		Uptime *string `json:"Uptime"`
	} `json:"StatusPRM"`
	StatusFWR *struct {
		Version *string `json:"Version"`
	} `json:"StatusFWR"`
	StatusMEM *struct {
		Free *int `json:"Free"`
	} `json:"StatusMEM"`
	StatusNET *struct {
		IPAddress *string `json:"IPAddress"`
		Hostname  *string `json:"Hostname"`
		Mac       *string `json:"Mac"`
	} `json:"StatusNET"`
	StatusMQT *struct {
		MqttCount *int `json:"MqttCount"`
	} `json:"StatusMQT"`
	StatusSNS *sensorReadings `json:"StatusSNS"`
	StatusSTS *struct {
		Uptime *string     `json:"Uptime"`
		Wifi   *wifiReport `json:"Wifi"`
	} `json:"StatusSTS"`
}

type stateReport struct {
	Power  *string     `json:"POWER"`
	Uptime *string     `json:"Uptime"`
	Wifi   *wifiReport `json:"Wifi"`
}

// Decode interprets one inbound message as a partial device update.
//
// Dispatch is on (topic kind, command). Unknown commands and payloads
// whose JSON fails to parse yield OutcomeUnrecognized and must cause no
// state change in the caller.
//
// Parameters:
//   - topic: Raw inbound topic
//   - payload: Raw message payload
//   - receivedAt: Local receipt time, recorded as LastSeen on success
//
// Returns:
//   - Update: Partial update (valid only when applied)
//   - Outcome: OutcomeApplied or OutcomeUnrecognized
func Decode(topic string, payload []byte, receivedAt time.Time) (Update, Outcome) {
	parsed, ok := ParseTopic(topic)
	if !ok {
		return Update{}, OutcomeUnrecognized
	}

	u := Update{
		DeviceTopic: parsed.DeviceTopic,
		ReceivedAt:  receivedAt,
	}

	switch {
	case parsed.Kind == KindStat && parsed.Command == CmdPower:
		// Bare text payload is the new power state
		text := string(payload)
		u.Power = &text
		u.Online = boolPtr(true)
		return u, OutcomeApplied

	case parsed.Kind == KindStat && parsed.Command == "RESULT":
		var r resultReport
		if err := json.Unmarshal(payload, &r); err != nil {
			return Update{}, OutcomeUnrecognized
		}
		u.Power = r.Power
		if m, ok := moduleString(r.Module); ok {
			u.Module = &m
		}
		u.Online = boolPtr(true)
		return u, OutcomeApplied

	case parsed.Kind == KindStat && strings.HasPrefix(parsed.Command, CmdStatus):
		var r statusReport
		if err := json.Unmarshal(payload, &r); err != nil {
			return Update{}, OutcomeUnrecognized
		}
		applyStatusReport(&u, &r)
		u.Online = boolPtr(true)
		return u, OutcomeApplied

	case parsed.Kind == KindTelemetry && parsed.Command == "LWT":
		u.Online = boolPtr(string(payload) == onlineLiteral)
		return u, OutcomeApplied

	case parsed.Kind == KindTelemetry && parsed.Command == "STATE":
		var r stateReport
		if err := json.Unmarshal(payload, &r); err != nil {
			return Update{}, OutcomeUnrecognized
		}
		u.Power = r.Power
		u.Uptime = r.Uptime
		if r.Wifi != nil {
			u.SSID = r.Wifi.SSID
			u.RSSI = r.Wifi.RSSI
		}
		u.Online = boolPtr(true)
		return u, OutcomeApplied

	case parsed.Kind == KindTelemetry && parsed.Command == "SENSOR":
		var r sensorReadings
		if err := json.Unmarshal(payload, &r); err != nil {
			return Update{}, OutcomeUnrecognized
		}
		applySensorReadings(&u, &r)
		u.Online = boolPtr(true)
		return u, OutcomeApplied
	}

	return Update{}, OutcomeUnrecognized
}

// applyStatusReport maps the namespaced STATUS sub-objects onto the update.
// Unknown sub-objects were already dropped by the JSON decoder.
func applyStatusReport(u *Update, r *statusReport) {
	if r.Status != nil {
		if m, ok := moduleString(r.Status.Module); ok {
			u.Module = &m
		}
	}
	if r.StatusPRM != nil {
		u.Uptime = r.StatusPRM.Uptime
	}
	if r.StatusFWR != nil {
		u.Version = r.StatusFWR.Version
	}
	if r.StatusMEM != nil {
		u.FreeMemory = r.StatusMEM.Free
	}
	if r.StatusNET != nil {
		u.IPAddress = r.StatusNET.IPAddress
		u.Hostname = r.StatusNET.Hostname
		u.Mac = r.StatusNET.Mac
	}
	if r.StatusMQT != nil {
		u.MQTTCount = r.StatusMQT.MqttCount
	}
	if r.StatusSNS != nil {
		applySensorReadings(u, r.StatusSNS)
	}
	if r.StatusSTS != nil {
		u.Uptime = r.StatusSTS.Uptime
		if r.StatusSTS.Wifi != nil {
			u.SSID = r.StatusSTS.Wifi.SSID
			u.RSSI = r.StatusSTS.Wifi.RSSI
		}
	}
}

// applySensorReadings maps sensor sub-objects keyed by sensor-type name.
// DS18B20 probes report temperature only.
func applySensorReadings(u *Update, r *sensorReadings) {
	if r.Energy != nil {
		u.PowerW = r.Energy.Power
		u.Voltage = r.Energy.Voltage
		u.Current = r.Energy.Current
	}
	if r.AM2301 != nil {
		u.Temperature = r.AM2301.Temperature
		u.Humidity = r.AM2301.Humidity
	}
	if r.DHT11 != nil {
		u.Temperature = r.DHT11.Temperature
		u.Humidity = r.DHT11.Humidity
	}
	if r.DS18B20 != nil {
		u.Temperature = r.DS18B20.Temperature
	}
}

// moduleString normalizes the firmware's Module value, which arrives
// as a bare number, a descriptive string, or a one-entry object whose
// single key is the module id ({"18":"Generic"}).
func moduleString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil && len(obj) == 1 {
		for key := range obj {
			return key, true
		}
	}
	return "", false
}

func boolPtr(b bool) *bool {
	return &b
}
