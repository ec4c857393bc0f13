package materiellogs

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/materiel-backend/internal/repo"
	"github.com/angelmondragon/materiel-backend/pkg/db/models"
	"github.com/angelmondragon/materiel-backend/pkg/enums"
)

// Repository defines persistence operations for the materiel_logs table.
// Rows are only ever inserted; BackfillActionBy is the single exception.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.MaterielLog) error
	ListByMateriel(ctx context.Context, materielID int64, limit int) ([]models.MaterielLog, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]models.MaterielLog, error)
	LatestHoldingEntry(ctx context.Context, materielID int64) (*models.MaterielLog, error)
	HoldingEntriesFor(ctx context.Context, materielIDs []int64) ([]models.MaterielLog, error)
	BackfillActionBy(ctx context.Context, userID int64) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds a log repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, entry *models.MaterielLog) error {
	return r.DB(ctx).Create(entry).Error
}

func (r *repository) ListByMateriel(ctx context.Context, materielID int64, limit int) ([]models.MaterielLog, error) {
	query := r.DB(ctx).Where("materiel_id = ?", materielID)
	return r.newestFirst(query, limit)
}

func (r *repository) ListByUser(ctx context.Context, userID int64, limit int) ([]models.MaterielLog, error) {
	query := r.DB(ctx).Where("user_id = ?", userID)
	return r.newestFirst(query, limit)
}

// LatestHoldingEntry returns the newest checkout or checkin row, or
// gorm.ErrRecordNotFound when the materiel was never checked out.
func (r *repository) LatestHoldingEntry(ctx context.Context, materielID int64) (*models.MaterielLog, error) {
	var row models.MaterielLog
	err := r.DB(ctx).
		Where("materiel_id = ?", materielID).
		Where("action IN ?", holdingActions()).
		Order("time_created DESC").
		Order("id DESC").
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// HoldingEntriesFor returns every checkout/checkin row for the given
// materiel, newest first.
func (r *repository) HoldingEntriesFor(ctx context.Context, materielIDs []int64) ([]models.MaterielLog, error) {
	if len(materielIDs) == 0 {
		return nil, nil
	}
	var rows []models.MaterielLog
	err := r.DB(ctx).
		Where("materiel_id IN ?", materielIDs).
		Where("action IN ?", holdingActions()).
		Order("time_created DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) BackfillActionBy(ctx context.Context, userID int64) (int64, error) {
	res := r.DB(ctx).
		Model(&models.MaterielLog{}).
		Where("action_by IS NULL OR action_by = 0").
		Update("action_by", userID)
	return res.RowsAffected, res.Error
}

func (r *repository) newestFirst(query *gorm.DB, limit int) ([]models.MaterielLog, error) {
	query = query.Order("time_created DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.MaterielLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func holdingActions() []enums.MaterielLogAction {
	return []enums.MaterielLogAction{enums.MaterielLogActionCheckout, enums.MaterielLogActionCheckin}
}
