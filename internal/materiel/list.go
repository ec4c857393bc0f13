package materiel

import (
	"strings"
	"time"

	"github.com/angelmondragon/materiel-backend/pkg/db/models"
	"github.com/angelmondragon/materiel-backend/pkg/enums"
)

// ListFilters are the raw list options accepted from callers.
type ListFilters struct {
	Status string
	TypeID int64
	Search string
	Sort   string
	Order  string
}

// sortColumns maps accepted sort keys onto columns. Unknown keys sort by name.
var sortColumns = map[string]string{
	"identifier":   "identifier",
	"name":         "name",
	"status":       "status",
	"timecreated":  "time_created",
	"timemodified": "time_modified",
}

const defaultSortColumn = "name"

type listQuery struct {
	status     enums.MaterielStatus
	typeID     int64
	search     string
	sortColumn string
	descending bool
}

func resolveSort(sort, order string) (string, bool) {
	column, ok := sortColumns[strings.ToLower(strings.TrimSpace(sort))]
	if !ok {
		column = defaultSortColumn
	}
	return column, strings.EqualFold(strings.TrimSpace(order), "desc")
}

// Item is a materiel row enriched with its derived holder.
type Item struct {
	ID           int64                `json:"id"`
	TypeID       *int64               `json:"type_id"`
	Identifier   string               `json:"identifier"`
	Name         string               `json:"name"`
	Status       enums.MaterielStatus `json:"status"`
	Notes        string               `json:"notes"`
	CurrentUser  *int64               `json:"current_user_id"`
	TimeCreated  time.Time            `json:"time_created"`
	TimeModified time.Time            `json:"time_modified"`
}

func toItem(m models.Materiel, holder *int64) Item {
	return Item{
		ID:           m.ID,
		TypeID:       m.TypeID,
		Identifier:   m.Identifier,
		Name:         m.Name,
		Status:       m.Status,
		Notes:        m.Notes,
		CurrentUser:  holder,
		TimeCreated:  m.TimeCreated,
		TimeModified: m.TimeModified,
	}
}
