package enums

import "fmt"

// MaterielStatus maps to the materiels.status CHECK constraint.
type MaterielStatus string

const (
	MaterielStatusAvailable   MaterielStatus = "available"
	MaterielStatusInUse       MaterielStatus = "in_use"
	MaterielStatusMaintenance MaterielStatus = "maintenance"
	MaterielStatusRetired     MaterielStatus = "retired"
)

var validMaterielStatuses = []MaterielStatus{
	MaterielStatusAvailable,
	MaterielStatusInUse,
	MaterielStatusMaintenance,
	MaterielStatusRetired,
}

// String implements fmt.Stringer.
func (s MaterielStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is one of the four lifecycle states.
func (s MaterielStatus) IsValid() bool {
	for _, candidate := range validMaterielStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseMaterielStatus converts raw input into MaterielStatus.
func ParseMaterielStatus(value string) (MaterielStatus, error) {
	for _, candidate := range validMaterielStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid materiel status %q", value)
}

// MaterielStatuses returns the statuses in display order.
func MaterielStatuses() []MaterielStatus {
	out := make([]MaterielStatus, len(validMaterielStatuses))
	copy(out, validMaterielStatuses)
	return out
}

// MaterielLogAction maps to the materiel_logs.action CHECK constraint.
type MaterielLogAction string

const (
	MaterielLogActionCheckout    MaterielLogAction = "checkout"
	MaterielLogActionCheckin     MaterielLogAction = "checkin"
	MaterielLogActionMaintenance MaterielLogAction = "maintenance"
	MaterielLogActionRepair      MaterielLogAction = "repair"
	MaterielLogActionRetire      MaterielLogAction = "retire"
)

var validMaterielLogActions = []MaterielLogAction{
	MaterielLogActionCheckout,
	MaterielLogActionCheckin,
	MaterielLogActionMaintenance,
	MaterielLogActionRepair,
	MaterielLogActionRetire,
}

// String implements fmt.Stringer.
func (a MaterielLogAction) String() string {
	return string(a)
}

// IsValid reports whether the value matches a recorded log action.
func (a MaterielLogAction) IsValid() bool {
	for _, candidate := range validMaterielLogActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseMaterielLogAction converts raw input into MaterielLogAction.
func ParseMaterielLogAction(value string) (MaterielLogAction, error) {
	for _, candidate := range validMaterielLogActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid materiel log action %q", value)
}

// MaterielLogActions returns every log action.
func MaterielLogActions() []MaterielLogAction {
	out := make([]MaterielLogAction, len(validMaterielLogActions))
	copy(out, validMaterielLogActions)
	return out
}
