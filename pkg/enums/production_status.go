package enums

import "fmt"

// ProductionStatus maps to the production_status enum in Postgres.
type ProductionStatus string

const (
	ProductionStatusPlanned    ProductionStatus = "planned"
	ProductionStatusInProgress ProductionStatus = "in_progress"
	ProductionStatusCompleted  ProductionStatus = "completed"
	ProductionStatusCancelled  ProductionStatus = "cancelled"
)

var validProductionStatuses = []ProductionStatus{
	ProductionStatusPlanned,
	ProductionStatusInProgress,
	ProductionStatusCompleted,
	ProductionStatusCancelled,
}

// IsValid checks whether the value matches the canonical enum.
func (v ProductionStatus) IsValid() bool {
	for _, candidate := range validProductionStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseProductionStatus converts raw strings into ProductionStatus.
func ParseProductionStatus(value string) (ProductionStatus, error) {
	for _, candidate := range validProductionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid production status %q", value)
}
