package models

import (
	"time"

	"github.com/angelmondragon/materiel-backend/pkg/enums"
)

// MaterielType is a flat category referenced by materiel rows.
type MaterielType struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;not null"`
}

func (MaterielType) TableName() string { return "materiel_types" }

// Materiel is a single trackable piece of equipment. The current holder is
// never stored here; it is derived from MaterielLog.
type Materiel struct {
	ID           int64                `gorm:"column:id;primaryKey;autoIncrement"`
	TypeID       *int64               `gorm:"column:type_id;index"`
	Identifier   string               `gorm:"column:identifier;not null;uniqueIndex:ux_materiels_identifier"`
	Name         string               `gorm:"column:name;not null"`
	Status       enums.MaterielStatus `gorm:"column:status;not null;default:'available';check:chk_materiels_status,status IN ('available','in_use','maintenance','retired')"`
	Notes        string               `gorm:"column:notes"`
	TimeCreated  time.Time            `gorm:"column:time_created;autoCreateTime"`
	TimeModified time.Time            `gorm:"column:time_modified;autoUpdateTime"`
}

func (Materiel) TableName() string { return "materiels" }

// MaterielLog is an append-only history row. UserID is the holder for
// checkout entries and nil otherwise; ActionBy is the acting principal.
type MaterielLog struct {
	ID          int64                   `gorm:"column:id;primaryKey;autoIncrement"`
	MaterielID  int64                   `gorm:"column:materiel_id;not null;index:idx_materiel_logs_materiel_time,priority:1"`
	UserID      *int64                  `gorm:"column:user_id;index"`
	Action      enums.MaterielLogAction `gorm:"column:action;not null;check:chk_materiel_logs_action,action IN ('checkout','checkin','maintenance','repair','retire')"`
	Notes       string                  `gorm:"column:notes"`
	ActionBy    *int64                  `gorm:"column:action_by"`
	TimeCreated time.Time               `gorm:"column:time_created;autoCreateTime;index:idx_materiel_logs_materiel_time,priority:2"`
}

func (MaterielLog) TableName() string { return "materiel_logs" }
