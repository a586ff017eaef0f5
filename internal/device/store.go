package device

import (
	"sync"

	"github.com/yudhap/tasmocore/internal/tasmota"
)

// Store holds the live projection for every device topic seen so far.
//
// Projections are built by union-merging partial updates: only the
// fields an update carries overwrite the projection, everything else
// stays. The transport guarantees neither ordering nor delivery, so
// Apply is commutative per field and idempotent.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Store struct {
	mu          sync.RWMutex
	projections map[string]*Projection

	// onChange is invoked after every applied mutation (optional).
	onChange   func(deviceTopic string)
	callbackMu sync.RWMutex
}

// NewStore creates an empty projection store.
func NewStore() *Store {
	return &Store{
		projections: make(map[string]*Projection),
	}
}

// Apply union-merges a decoded update into the device's projection,
// creating one if the topic is new.
//
// Only non-nil update fields overwrite; LastSeen adopts the update's
// receipt time. Applying the same update twice yields the same
// projection as applying it once.
func (s *Store) Apply(u tasmota.Update) {
	if u.DeviceTopic == "" {
		return
	}

	s.mu.Lock()
	p, exists := s.projections[u.DeviceTopic]
	if !exists {
		p = &Projection{Power: PowerUnknown}
		s.projections[u.DeviceTopic] = p
	}

	p.LastSeen = u.ReceivedAt

	if u.Power != nil {
		p.Power = NormalizePower(*u.Power)
	}
	if u.Online != nil {
		p.Online = *u.Online
	}
	if u.Module != nil {
		p.Module = clonePtr(u.Module)
	}
	if u.IPAddress != nil {
		p.IPAddress = clonePtr(u.IPAddress)
	}
	if u.Hostname != nil {
		p.Hostname = clonePtr(u.Hostname)
	}
	if u.Mac != nil {
		p.Mac = clonePtr(u.Mac)
	}
	if u.SSID != nil {
		p.SSID = clonePtr(u.SSID)
	}
	if u.RSSI != nil {
		p.RSSI = clonePtr(u.RSSI)
	}
	if u.Version != nil {
		p.Version = clonePtr(u.Version)
	}
	if u.Uptime != nil {
		p.Uptime = clonePtr(u.Uptime)
	}
	if u.FreeMemory != nil {
		p.FreeMemory = clonePtr(u.FreeMemory)
	}
	if u.MQTTCount != nil {
		p.MQTTCount = clonePtr(u.MQTTCount)
	}
	if u.PowerW != nil {
		p.PowerW = clonePtr(u.PowerW)
	}
	if u.Voltage != nil {
		p.Voltage = clonePtr(u.Voltage)
	}
	if u.Current != nil {
		p.Current = clonePtr(u.Current)
	}
	if u.Temperature != nil {
		p.Temperature = clonePtr(u.Temperature)
	}
	if u.Humidity != nil {
		p.Humidity = clonePtr(u.Humidity)
	}
	s.mu.Unlock()

	s.notify(u.DeviceTopic)
}

// Get returns a copy of the projection for a device topic.
// The second return value is false when the topic has never reported.
func (s *Store) Get(deviceTopic string) (*Projection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.projections[deviceTopic]
	if !exists {
		return nil, false
	}
	return p.Clone(), true
}

// List returns copies of all projections keyed by device topic.
func (s *Store) List() map[string]*Projection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*Projection, len(s.projections))
	for topic, p := range s.projections {
		out[topic] = p.Clone()
	}
	return out
}

// Len returns the number of device topics with a projection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.projections)
}

// MarkAllOffline flips every projection offline.
//
// Called on transport disconnect: with the session gone there is no
// explicit signal left, and every device must read as offline until the
// reconnected session says otherwise.
func (s *Store) MarkAllOffline() {
	s.mu.Lock()
	topics := make([]string, 0, len(s.projections))
	for topic, p := range s.projections {
		if p.Online {
			p.Online = false
			topics = append(topics, topic)
		}
	}
	s.mu.Unlock()

	for _, topic := range topics {
		s.notify(topic)
	}
}

// SetOnChange registers a callback invoked with the device topic after
// every mutation. Used by the surrounding application to re-render.
func (s *Store) SetOnChange(callback func(deviceTopic string)) {
	s.callbackMu.Lock()
	s.onChange = callback
	s.callbackMu.Unlock()
}

func (s *Store) notify(deviceTopic string) {
	s.callbackMu.RLock()
	callback := s.onChange
	s.callbackMu.RUnlock()
	if callback != nil {
		callback(deviceTopic)
	}
}
