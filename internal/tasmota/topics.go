package tasmota

import "strings"

// Topic kinds in the vendor namespace.
//
// Outbound commands go to cmnd/{deviceTopic}/{command}; devices answer
// on stat/{deviceTopic}/{command} and publish telemetry on
// tele/{deviceTopic}/{command}.
const (
	KindCommand   = "cmnd"
	KindStat      = "stat"
	KindTelemetry = "tele"
)

// Topic is a parsed vendor topic.
type Topic struct {
	Kind        string
	DeviceTopic string
	Command     string
}

// ParseTopic splits a raw topic into its vendor components.
//
// The expected shape is {kind}/{deviceTopic}/{command}[/...]; extra
// trailing segments are folded into Command. Topics with fewer than
// three segments carry no device information and are rejected.
//
// Returns:
//   - Topic: The parsed components
//   - bool: false if the topic has fewer than three segments
func ParseTopic(topic string) (Topic, bool) {
	parts := strings.SplitN(topic, "/", 3)
	if len(parts) < 3 {
		return Topic{}, false
	}
	return Topic{
		Kind:        parts[0],
		DeviceTopic: parts[1],
		Command:     parts[2],
	}, true
}

// CommandTopic builds the outbound topic for a device command.
func CommandTopic(deviceTopic, command string) string {
	return KindCommand + "/" + deviceTopic + "/" + command
}

// statSuffixes are the stat/ responses a device publishes that carry
// projection state. STATUS3 (logging), STATUS9 (power thresholds) and
// STATUS10 (sensor, duplicated by tele SENSOR) carry nothing we project.
var statSuffixes = []string{
	"POWER",
	"RESULT",
	"STATUS",
	"STATUS1",
	"STATUS2",
	"STATUS4",
	"STATUS5",
	"STATUS6",
	"STATUS7",
	"STATUS8",
	"STATUS11",
}

// teleSuffixes are the telemetry topics a device publishes on its own.
var teleSuffixes = []string{
	"LWT",
	"STATE",
	"SENSOR",
}

// StatusSuffixes returns the fixed 14-filter subscription set for one device.
//
// The set covers power state, command results, the status-report
// variants, the last-will topic, and periodic state/sensor telemetry.
func StatusSuffixes(deviceTopic string) []string {
	filters := make([]string, 0, len(statSuffixes)+len(teleSuffixes))
	for _, suffix := range statSuffixes {
		filters = append(filters, KindStat+"/"+deviceTopic+"/"+suffix)
	}
	for _, suffix := range teleSuffixes {
		filters = append(filters, KindTelemetry+"/"+deviceTopic+"/"+suffix)
	}
	return filters
}
