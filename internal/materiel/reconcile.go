package materiel

import (
	"github.com/angelmondragon/materiel-backend/internal/materiellogs"
	"github.com/angelmondragon/materiel-backend/pkg/enums"
)

// ReconcileLog computes the implicit log entry an edit produces. previous is
// empty for newly created materiel. target is the requested holder when next
// is in_use; priorHolder is the holder derived from the log before the edit.
// A nil result means the edit needs no log row.
func ReconcileLog(previous, next enums.MaterielStatus, target, priorHolder *int64) *materiellogs.Entry {
	wasInUse := previous == enums.MaterielStatusInUse
	isInUse := next == enums.MaterielStatusInUse

	switch {
	case wasInUse && !isInUse:
		return &materiellogs.Entry{Action: enums.MaterielLogActionCheckin}
	case isInUse && target != nil:
		if wasInUse && priorHolder != nil && *priorHolder == *target {
			return nil
		}
		holder := *target
		return &materiellogs.Entry{Action: enums.MaterielLogActionCheckout, UserID: &holder}
	default:
		return nil
	}
}
