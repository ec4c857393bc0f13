package materiellogs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/materiel-backend/internal/access"
	"github.com/angelmondragon/materiel-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/materiel-backend/pkg/errors"
)

// Recorder appends log rows inside a caller's transaction and derives the
// current holder. It performs no access checks; callers own the policy.
type Recorder interface {
	Append(ctx context.Context, tx *gorm.DB, actingUserID int64, entry Entry) (*models.MaterielLog, error)
	CurrentHolder(ctx context.Context, tx *gorm.DB, materielID int64) (*int64, error)
	HoldersFor(ctx context.Context, materielIDs []int64) (map[int64]int64, error)
}

// Service exposes history reads and administrative maintenance.
type Service interface {
	ListByMateriel(ctx context.Context, actingUserID, materielID int64, limit int) ([]LogItem, error)
	ListByUser(ctx context.Context, actingUserID, userID int64, limit int) ([]LogItem, error)
	CurrentHolder(ctx context.Context, actingUserID, materielID int64) (*int64, error)
	BackfillActionBy(ctx context.Context, defaultUserID int64) (int64, error)
}

type recorder struct {
	repo Repository
	now  func() time.Time
}

// NewRecorder builds a Recorder backed by repo.
func NewRecorder(repo Repository) (Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("materiel log repository required")
	}
	return &recorder{repo: repo, now: time.Now}, nil
}

func (r *recorder) Append(ctx context.Context, tx *gorm.DB, actingUserID int64, entry Entry) (*models.MaterielLog, error) {
	if entry.MaterielID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "materiel id required")
	}
	if !entry.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid log action")
	}

	actionBy := entry.ActionBy
	if actionBy <= 0 {
		actionBy = actingUserID
	}
	row := &models.MaterielLog{
		MaterielID:  entry.MaterielID,
		UserID:      entry.UserID,
		Action:      entry.Action,
		Notes:       strings.TrimSpace(entry.Notes),
		TimeCreated: r.now().UTC(),
	}
	if actionBy > 0 {
		row.ActionBy = &actionBy
	}

	if err := r.repo.WithTx(tx).Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append materiel log")
	}
	return row, nil
}

func (r *recorder) CurrentHolder(ctx context.Context, tx *gorm.DB, materielID int64) (*int64, error) {
	row, err := r.repo.WithTx(tx).LatestHoldingEntry(ctx, materielID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup current holder")
	}
	return HolderFromHistory([]models.MaterielLog{*row}), nil
}

func (r *recorder) HoldersFor(ctx context.Context, materielIDs []int64) (map[int64]int64, error) {
	rows, err := r.repo.HoldingEntriesFor(ctx, materielIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup current holders")
	}
	return holdersByMateriel(rows), nil
}

type service struct {
	repo     Repository
	recorder Recorder
	policy   access.Policy
}

// NewService builds the history service.
func NewService(repo Repository, recorder Recorder, policy access.Policy) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("materiel log repository required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("materiel log recorder required")
	}
	if policy == nil {
		return nil, fmt.Errorf("access policy required")
	}
	return &service{repo: repo, recorder: recorder, policy: policy}, nil
}

func (s *service) ListByMateriel(ctx context.Context, actingUserID, materielID int64, limit int) ([]LogItem, error) {
	if err := access.Require(ctx, s.policy, actingUserID); err != nil {
		return nil, err
	}
	if materielID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "materiel id required")
	}
	rows, err := s.repo.ListByMateriel(ctx, materielID, normalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list materiel history")
	}
	return toLogItems(rows), nil
}

func (s *service) ListByUser(ctx context.Context, actingUserID, userID int64, limit int) ([]LogItem, error) {
	if err := access.Require(ctx, s.policy, actingUserID); err != nil {
		return nil, err
	}
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, err := s.repo.ListByUser(ctx, userID, normalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list user history")
	}
	return toLogItems(rows), nil
}

func (s *service) CurrentHolder(ctx context.Context, actingUserID, materielID int64) (*int64, error) {
	if err := access.Require(ctx, s.policy, actingUserID); err != nil {
		return nil, err
	}
	return s.recorder.CurrentHolder(ctx, nil, materielID)
}

// BackfillActionBy stamps defaultUserID on rows recorded before the acting
// user was captured. It is an operator task and bypasses the access policy.
func (s *service) BackfillActionBy(ctx context.Context, defaultUserID int64) (int64, error) {
	if defaultUserID <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "default user id required")
	}
	n, err := s.repo.BackfillActionBy(ctx, defaultUserID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backfill action_by")
	}
	return n, nil
}

// normalizeLimit maps non-positive limits to 0, meaning all rows.
func normalizeLimit(limit int) int {
	if limit < 0 {
		return 0
	}
	return limit
}
