package enums

import "fmt"

// HPPAlertType maps to the hpp_alert_type enum in Postgres.
type HPPAlertType string

const (
	HPPAlertIncrease  HPPAlertType = "hpp_increase"
	HPPAlertDecrease  HPPAlertType = "hpp_decrease"
	HPPAlertMarginLow HPPAlertType = "margin_low"
	HPPAlertCostSpike HPPAlertType = "cost_spike"
)

var validHPPAlertTypes = []HPPAlertType{
	HPPAlertIncrease,
	HPPAlertDecrease,
	HPPAlertMarginLow,
	HPPAlertCostSpike,
}

// IsValid checks whether the value matches the canonical enum.
func (v HPPAlertType) IsValid() bool {
	for _, candidate := range validHPPAlertTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseHPPAlertType converts raw strings into HPPAlertType.
func ParseHPPAlertType(value string) (HPPAlertType, error) {
	for _, candidate := range validHPPAlertTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid hpp alert type %q", value)
}
