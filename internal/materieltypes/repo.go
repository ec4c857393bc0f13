package materieltypes

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/materiel-backend/internal/repo"
	"github.com/angelmondragon/materiel-backend/pkg/db/models"
)

// Repository defines persistence operations for materiel_types.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, t *models.MaterielType) error
	Update(ctx context.Context, t *models.MaterielType) error
	FindByID(ctx context.Context, id int64) (*models.MaterielType, error)
	List(ctx context.Context) ([]models.MaterielType, error)
	CountReferences(ctx context.Context, id int64) (int64, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, t *models.MaterielType) error {
	return r.DB(ctx).Create(t).Error
}

func (r *repository) Update(ctx context.Context, t *models.MaterielType) error {
	return r.DB(ctx).Model(&models.MaterielType{}).Where("id = ?", t.ID).Update("name", t.Name).Error
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.MaterielType, error) {
	var row models.MaterielType
	if err := r.Take(ctx, &row, "id = ?", id); err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) List(ctx context.Context) ([]models.MaterielType, error) {
	var rows []models.MaterielType
	if err := r.DB(ctx).Order("name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountReferences returns how many materiel rows point at the type.
func (r *repository) CountReferences(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Materiel{}).Where("type_id = ?", id).Count(&count).Error
	return count, err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return r.DB(ctx).Where("id = ?", id).Delete(&models.MaterielType{}).Error
}
