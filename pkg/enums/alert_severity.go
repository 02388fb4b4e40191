package enums

import "fmt"

// AlertSeverity maps to the alert_severity enum in Postgres.
type AlertSeverity string

const (
	AlertSeverityLow      AlertSeverity = "low"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

var validAlertSeverities = []AlertSeverity{
	AlertSeverityLow,
	AlertSeverityMedium,
	AlertSeverityHigh,
	AlertSeverityCritical,
}

// IsValid checks whether the value matches the canonical enum.
func (v AlertSeverity) IsValid() bool {
	for _, candidate := range validAlertSeverities {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseAlertSeverity converts raw strings into AlertSeverity.
func ParseAlertSeverity(value string) (AlertSeverity, error) {
	for _, candidate := range validAlertSeverities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid alert severity %q", value)
}

// Rank orders severities from low (1) to critical (4); unknown values rank 0.
func (v AlertSeverity) Rank() int {
	for i, candidate := range validAlertSeverities {
		if candidate == v {
			return i + 1
		}
	}
	return 0
}
