package materieltypes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/materiel-backend/internal/access"
	"github.com/angelmondragon/materiel-backend/pkg/db"
	"github.com/angelmondragon/materiel-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/materiel-backend/pkg/errors"
	"github.com/angelmondragon/materiel-backend/pkg/logger"
)

// Error messages surfaced to clients.
const (
	MsgTypeInUse    = "type_in_use"
	MsgTypeNotFound = "type_not_found"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the flat list of materiel categories.
type Service interface {
	Create(ctx context.Context, actingUserID int64, name string) (*models.MaterielType, error)
	Update(ctx context.Context, actingUserID, id int64, name string) (*models.MaterielType, error)
	Delete(ctx context.Context, actingUserID, id int64) error
	Get(ctx context.Context, actingUserID, id int64) (*models.MaterielType, error)
	List(ctx context.Context, actingUserID int64) ([]models.MaterielType, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	policy access.Policy
	logg   *logger.Logger
}

func NewService(repo Repository, tx txRunner, policy access.Policy, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("materiel type repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if policy == nil {
		return nil, fmt.Errorf("access policy required")
	}
	return &service{repo: repo, tx: tx, policy: policy, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, actingUserID int64, name string) (*models.MaterielType, error) {
	if err := access.Require(ctx, s.policy, actingUserID); err != nil {
		return nil, err
	}
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	row := &models.MaterielType{Name: name}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create materiel type")
	}
	s.info(ctx, row.ID, "materiel_type.created")
	return row, nil
}

func (s *service) Update(ctx context.Context, actingUserID, id int64, name string) (*models.MaterielType, error) {
	if err := access.Require(ctx, s.policy, actingUserID); err != nil {
		return nil, err
	}
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	row, err := s.find(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	row.Name = name
	if err := s.repo.Update(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update materiel type")
	}
	s.info(ctx, row.ID, "materiel_type.updated")
	return row, nil
}

// Delete removes the type unless any materiel still references it.
func (s *service) Delete(ctx context.Context, actingUserID, id int64) error {
	if err := access.Require(ctx, s.policy, actingUserID); err != nil {
		return err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.find(ctx, repo, id); err != nil {
			return err
		}
		refs, err := repo.CountReferences(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count materiel using type")
		}
		if refs > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, MsgTypeInUse).WithDetails(map[string]any{"references": refs})
		}
		if err := repo.Delete(ctx, id); err != nil {
			if db.IsForeignKeyViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, MsgTypeInUse)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete materiel type")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.info(ctx, id, "materiel_type.deleted")
	return nil
}

func (s *service) Get(ctx context.Context, actingUserID, id int64) (*models.MaterielType, error) {
	if err := access.Require(ctx, s.policy, actingUserID); err != nil {
		return nil, err
	}
	return s.find(ctx, s.repo, id)
}

func (s *service) List(ctx context.Context, actingUserID int64) ([]models.MaterielType, error) {
	if err := access.Require(ctx, s.policy, actingUserID); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list materiel types")
	}
	return rows, nil
}

func (s *service) find(ctx context.Context, repo Repository, id int64) (*models.MaterielType, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "type id required")
	}
	row, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, MsgTypeNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup materiel type")
	}
	return row, nil
}

func (s *service) info(ctx context.Context, id int64, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "type_id", id), msg)
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		var fields pkgerrors.FieldErrors
		fields.Add("name", "required")
		return "", fields.Err()
	}
	return name, nil
}
