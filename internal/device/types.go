package device

import (
	"strings"
	"time"
)

// Device is a registered Tasmota device.
//
// The registry database owns these records; the core reads them once at
// startup to know which device topics to subscribe.
type Device struct {
	// ID uniquely identifies the device registration.
	ID string

	// Name is the operator-facing display name.
	Name string

	// Topic is the device's MQTT topic token, the middle segment of
	// cmnd/stat/tele topics. Unique across the registry.
	Topic string
}

// PowerState is the relay state a device last reported.
type PowerState string

const (
	PowerOn      PowerState = "ON"
	PowerOff     PowerState = "OFF"
	PowerUnknown PowerState = "UNKNOWN"
)

// NormalizePower maps a raw payload token to a PowerState.
// The firmware reports ON/OFF; anything else is unknown.
func NormalizePower(raw string) PowerState {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "ON", "1":
		return PowerOn
	case "OFF", "0":
		return PowerOff
	default:
		return PowerUnknown
	}
}

// Projection is the accumulated live state of one device, built by
// union-merging partial updates as they arrive.
//
// Optional fields are pointers: nil means the device has not reported
// that field yet. LastSeen is the receipt time of the newest applied
// update. Online flips false only on an explicit offline signal (LWT
// or transport disconnect), never by silence.
type Projection struct {
	Power    PowerState
	Online   bool
	LastSeen time.Time

	IPAddress *string
	Hostname  *string
	Mac       *string
	SSID      *string
	RSSI      *int
	Module    *string
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

// Clone returns a deep copy of the projection. Pointer fields are
// duplicated so callers can hold the copy without racing the store.
func (p *Projection) Clone() *Projection {
	c := *p
	c.IPAddress = clonePtr(p.IPAddress)
	c.Hostname = clonePtr(p.Hostname)
	c.Mac = clonePtr(p.Mac)
	c.SSID = clonePtr(p.SSID)
	c.RSSI = clonePtr(p.RSSI)
	c.Module = clonePtr(p.Module)
	c.Version = clonePtr(p.Version)
	c.Uptime = clonePtr(p.Uptime)
	c.FreeMemory = clonePtr(p.FreeMemory)
	c.MQTTCount = clonePtr(p.MQTTCount)
	c.PowerW = clonePtr(p.PowerW)
	c.Voltage = clonePtr(p.Voltage)
	c.Current = clonePtr(p.Current)
	c.Temperature = clonePtr(p.Temperature)
	c.Humidity = clonePtr(p.Humidity)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
