package enums

import "fmt"

// DeviceEvent is the status a dispenser reports over the webhook.
type DeviceEvent string

const (
	DeviceEventDispensing DeviceEvent = "dispensing"
	DeviceEventCompleted  DeviceEvent = "completed"
	DeviceEventError      DeviceEvent = "error"
)

var validDeviceEvents = []DeviceEvent{
	DeviceEventDispensing,
	DeviceEventCompleted,
	DeviceEventError,
}

// String implements fmt.Stringer.
func (d DeviceEvent) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeviceEvent.
func (d DeviceEvent) IsValid() bool {
	for _, candidate := range validDeviceEvents {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeviceEvent converts raw input into a DeviceEvent.
func ParseDeviceEvent(value string) (DeviceEvent, error) {
	for _, candidate := range validDeviceEvents {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid device event %q", value)
}
