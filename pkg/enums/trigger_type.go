package enums

import "fmt"

// TriggerType records what initiated a physical pour.
type TriggerType string

const (
	TriggerTypeOnlineOrder TriggerType = "online_order"
	TriggerTypeButton      TriggerType = "button"
	TriggerTypeNFC         TriggerType = "nfc"
	TriggerTypeTest        TriggerType = "test"
)

var validTriggerTypes = []TriggerType{
	TriggerTypeOnlineOrder,
	TriggerTypeButton,
	TriggerTypeNFC,
	TriggerTypeTest,
}

// String implements fmt.Stringer.
func (t TriggerType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TriggerType.
func (t TriggerType) IsValid() bool {
	for _, candidate := range validTriggerTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTriggerType converts raw input into a TriggerType.
func ParseTriggerType(value string) (TriggerType, error) {
	for _, candidate := range validTriggerTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid trigger type %q", value)
}
