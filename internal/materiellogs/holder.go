package materiellogs

import (
	"github.com/angelmondragon/materiel-backend/pkg/db/models"
	"github.com/angelmondragon/materiel-backend/pkg/enums"
)

// HolderFromHistory derives the current holder from log entries ordered
// newest first: the user of the newest checkout, unless a checkin follows it.
func HolderFromHistory(entries []models.MaterielLog) *int64 {
	for _, entry := range entries {
		switch entry.Action {
		case enums.MaterielLogActionCheckin:
			return nil
		case enums.MaterielLogActionCheckout:
			if entry.UserID == nil {
				return nil
			}
			holder := *entry.UserID
			return &holder
		}
	}
	return nil
}

// holdersByMateriel folds newest-first rows for many materiel into a
// materielID -> holder map. Materiel without a holder are absent.
func holdersByMateriel(entries []models.MaterielLog) map[int64]int64 {
	seen := make(map[int64]bool)
	holders := make(map[int64]int64)
	for _, entry := range entries {
		if seen[entry.MaterielID] {
			continue
		}
		switch entry.Action {
		case enums.MaterielLogActionCheckout, enums.MaterielLogActionCheckin:
			seen[entry.MaterielID] = true
			if entry.Action == enums.MaterielLogActionCheckout && entry.UserID != nil {
				holders[entry.MaterielID] = *entry.UserID
			}
		}
	}
	return holders
}
