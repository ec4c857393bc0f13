package materiel

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/materiel-backend/internal/repo"
	"github.com/angelmondragon/materiel-backend/pkg/db/models"
	"github.com/angelmondragon/materiel-backend/pkg/enums"
)

// Repository defines persistence operations for the materiels table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, m *models.Materiel) error
	FindByID(ctx context.Context, id int64) (*models.Materiel, error)
	FindByIdentifier(ctx context.Context, identifier string) (*models.Materiel, error)
	IdentifierTaken(ctx context.Context, identifier string, excludeID int64) (bool, error)
	TypeExists(ctx context.Context, typeID int64) (bool, error)
	UpdateIfStatus(ctx context.Context, m *models.Materiel, expected enums.MaterielStatus) (bool, error)
	TransitionStatus(ctx context.Context, id int64, from, to enums.MaterielStatus) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, q listQuery) ([]models.Materiel, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds a materiel repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, m *models.Materiel) error {
	return r.DB(ctx).Create(m).Error
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Materiel, error) {
	var row models.Materiel
	if err := r.Take(ctx, &row, "id = ?", id); err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindByIdentifier(ctx context.Context, identifier string) (*models.Materiel, error) {
	var row models.Materiel
	if err := r.Take(ctx, &row, "identifier = ?", identifier); err != nil {
		return nil, err
	}
	return &row, nil
}

// IdentifierTaken reports whether another row already uses identifier.
// Comparison is exact and case-sensitive.
func (r *repository) IdentifierTaken(ctx context.Context, identifier string, excludeID int64) (bool, error) {
	if excludeID > 0 {
		return r.Exists(ctx, &models.Materiel{}, "identifier = ? AND id <> ?", identifier, excludeID)
	}
	return r.Exists(ctx, &models.Materiel{}, "identifier = ?", identifier)
}

func (r *repository) TypeExists(ctx context.Context, typeID int64) (bool, error) {
	return r.Exists(ctx, &models.MaterielType{}, "id = ?", typeID)
}

// UpdateIfStatus writes every editable column of m, provided the stored
// status still equals expected. It returns false when no row matched.
func (r *repository) UpdateIfStatus(ctx context.Context, m *models.Materiel, expected enums.MaterielStatus) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Materiel{}).
		Where("id = ? AND status = ?", m.ID, expected).
		Updates(map[string]any{
			"type_id":    m.TypeID,
			"identifier": m.Identifier,
			"name":       m.Name,
			"status":     m.Status,
			"notes":      m.Notes,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// TransitionStatus moves id from one status to another as a single
// compare-and-swap. It returns false when the row is missing or its status
// is no longer from.
func (r *repository) TransitionStatus(ctx context.Context, id int64, from, to enums.MaterielStatus) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Materiel{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Delete(ctx context.Context, id int64) (bool, error) {
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.Materiel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, q listQuery) ([]models.Materiel, error) {
	query := r.DB(ctx).Model(&models.Materiel{})

	if q.status != "" {
		query = query.Where("status = ?", q.status)
	}
	if q.typeID > 0 {
		query = query.Where("type_id = ?", q.typeID)
	}
	if q.search != "" {
		pattern := "%" + repo.EscapeLike(strings.ToLower(q.search)) + "%"
		query = query.Where(`(LOWER(identifier) LIKE ? ESCAPE '\') OR (LOWER(name) LIKE ? ESCAPE '\')`, pattern, pattern)
	}

	direction := "ASC"
	if q.descending {
		direction = "DESC"
	}
	query = query.Order(q.sortColumn + " " + direction).Order("id " + direction)

	var rows []models.Materiel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
