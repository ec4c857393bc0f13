package access

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/materiel-backend/internal/repo"
	"github.com/angelmondragon/materiel-backend/pkg/db/models"
)

// SystemContextLevel is the host platform's context level for site-wide
// role assignments.
const SystemContextLevel = 10

// RolePolicy reads the host platform's role assignments. A user has access
// when assigned the configured role at the configured context level.
type RolePolicy struct {
	repo.Base
	shortname    string
	contextLevel int
}

func NewRolePolicy(db *gorm.DB, shortname string, contextLevel int) (*RolePolicy, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if shortname == "" {
		return nil, fmt.Errorf("role shortname required")
	}
	if contextLevel <= 0 {
		contextLevel = SystemContextLevel
	}
	return &RolePolicy{Base: repo.NewBase(db), shortname: shortname, contextLevel: contextLevel}, nil
}

func (p *RolePolicy) HasAccess(ctx context.Context, userID int64) (bool, error) {
	var count int64
	err := p.DB(ctx).
		Model(&models.RoleAssignment{}).
		Joins("JOIN roles ON roles.id = role_assignments.role_id").
		Where("roles.shortname = ?", p.shortname).
		Where("role_assignments.user_id = ?", userID).
		Where("role_assignments.context_level = ?", p.contextLevel).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Grant assigns the configured role to userID, creating the role row if
// needed. Used by the admin CLI and tests.
func (p *RolePolicy) Grant(ctx context.Context, userID int64) error {
	return p.DB(ctx).Transaction(func(tx *gorm.DB) error {
		role := models.Role{Shortname: p.shortname}
		if err := tx.Where("shortname = ?", p.shortname).FirstOrCreate(&role).Error; err != nil {
			return err
		}
		var existing int64
		if err := tx.Model(&models.RoleAssignment{}).
			Where("role_id = ? AND user_id = ? AND context_level = ?", role.ID, userID, p.contextLevel).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		return tx.Create(&models.RoleAssignment{RoleID: role.ID, UserID: userID, ContextLevel: p.contextLevel}).Error
	})
}

// Revoke removes the configured role from userID.
func (p *RolePolicy) Revoke(ctx context.Context, userID int64) error {
	sub := p.DB(ctx).Model(&models.Role{}).Select("id").Where("shortname = ?", p.shortname)
	return p.DB(ctx).
		Where("user_id = ? AND context_level = ? AND role_id IN (?)", userID, p.contextLevel, sub).
		Delete(&models.RoleAssignment{}).Error
}
