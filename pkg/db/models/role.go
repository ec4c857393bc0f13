package models

// Role mirrors the host platform's role table. Only the shortname is read.
type Role struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Shortname string `gorm:"column:shortname;not null;uniqueIndex:ux_roles_shortname"`
}

func (Role) TableName() string { return "roles" }

// RoleAssignment grants a role to a user at a context level (10 = system).
type RoleAssignment struct {
	ID           int64 `gorm:"column:id;primaryKey;autoIncrement"`
	RoleID       int64 `gorm:"column:role_id;not null;index:idx_role_assignments_user_role,priority:2"`
	UserID       int64 `gorm:"column:user_id;not null;index:idx_role_assignments_user_role,priority:1"`
	ContextLevel int   `gorm:"column:context_level;not null;default:10"`
}

func (RoleAssignment) TableName() string { return "role_assignments" }
