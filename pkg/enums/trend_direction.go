package enums

import "fmt"

// TrendDirection classifies the movement between two snapshot periods.
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

var validTrendDirections = []TrendDirection{
	TrendUp,
	TrendDown,
	TrendStable,
}

// IsValid checks whether the value matches the canonical enum.
func (v TrendDirection) IsValid() bool {
	for _, candidate := range validTrendDirections {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseTrendDirection converts raw strings into TrendDirection.
func ParseTrendDirection(value string) (TrendDirection, error) {
	for _, candidate := range validTrendDirections {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid trend direction %q", value)
}
