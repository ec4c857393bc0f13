package materiellogs

import (
	"time"

	"github.com/angelmondragon/materiel-backend/pkg/db/models"
	"github.com/angelmondragon/materiel-backend/pkg/enums"
)

// Entry describes a log row to append.
type Entry struct {
	MaterielID int64
	Action     enums.MaterielLogAction
	UserID     *int64
	Notes      string
	// ActionBy defaults to the acting user when zero.
	ActionBy int64
}

type LogItem struct {
	ID          int64                   `json:"id"`
	MaterielID  int64                   `json:"materiel_id"`
	UserID      *int64                  `json:"user_id"`
	Action      enums.MaterielLogAction `json:"action"`
	Notes       string                  `json:"notes"`
	ActionBy    *int64                  `json:"action_by"`
	TimeCreated time.Time               `json:"time_created"`
}

func toLogItem(m models.MaterielLog) LogItem {
	return LogItem{
		ID:          m.ID,
		MaterielID:  m.MaterielID,
		UserID:      m.UserID,
		Action:      m.Action,
		Notes:       m.Notes,
		ActionBy:    m.ActionBy,
		TimeCreated: m.TimeCreated,
	}
}

func toLogItems(rows []models.MaterielLog) []LogItem {
	items := make([]LogItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toLogItem(row))
	}
	return items
}
