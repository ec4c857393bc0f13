package materiel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/angelmondragon/materiel-backend/internal/access"
	"github.com/angelmondragon/materiel-backend/internal/materiellogs"
	"github.com/angelmondragon/materiel-backend/pkg/db"
	"github.com/angelmondragon/materiel-backend/pkg/db/models"
	"github.com/angelmondragon/materiel-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/materiel-backend/pkg/errors"
	"github.com/angelmondragon/materiel-backend/pkg/logger"
	"github.com/angelmondragon/materiel-backend/pkg/metrics"
	"github.com/angelmondragon/materiel-backend/pkg/tracing"
)

// Messages returned with not-found and state-conflict errors.
const (
	MsgNotFound      = "materiel_not_found"
	MsgNotAvailable  = "materiel_not_available"
	MsgNotInUse      = "materiel_not_in_use"
	MsgRetired       = "materiel_retired"
	MsgStatusChanged = "materiel_status_changed"
)

// Field-level validation reasons.
const (
	ReasonRequired         = "required"
	ReasonInvalid          = "invalid"
	ReasonIdentifierExists = "identifier_exists"
	ReasonTypeNotFound     = "type_not_found"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the materiel lifecycle. Every status-affecting action writes
// the entity and its log row in one transaction.
type Service interface {
	Create(ctx context.Context, actingUserID int64, input Input) (*Item, error)
	Update(ctx context.Context, actingUserID, id int64, input Input) (*Item, error)
	Delete(ctx context.Context, actingUserID, id int64) error
	Get(ctx context.Context, actingUserID, id int64) (*Item, error)
	GetByIdentifier(ctx context.Context, actingUserID int64, identifier string) (*Item, error)
	List(ctx context.Context, actingUserID int64, filters ListFilters) ([]Item, error)
	Checkout(ctx context.Context, actingUserID, id, targetUserID int64, notes string) (*Item, error)
	Checkin(ctx context.Context, actingUserID, id int64, notes string) (*Item, error)
}

// Input carries the editable fields for create and update. UserID is the
// holder to assign when Status is in_use.
type Input struct {
	Identifier string
	Name       string
	TypeID     *int64
	Status     string
	Notes      string
	UserID     *int64
}

// Options tune optional behaviour and instrumentation.
type Options struct {
	AllowRetiredReactivation bool
	Metrics                  *metrics.MaterielMetrics
	Logger                   *logger.Logger
}

type service struct {
	repo     Repository
	recorder materiellogs.Recorder
	tx       txRunner
	policy   access.Policy
	opts     Options
}

// NewService builds the lifecycle service.
func NewService(repo Repository, recorder materiellogs.Recorder, tx txRunner, policy access.Policy, opts Options) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("materiel repository required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("materiel log recorder required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if policy == nil {
		return nil, fmt.Errorf("access policy required")
	}
	return &service{repo: repo, recorder: recorder, tx: tx, policy: policy, opts: opts}, nil
}

func (s *service) Create(ctx context.Context, actingUserID int64, input Input) (item *Item, err error) {
	ctx, done := s.instrument(ctx, "create", actingUserID, 0)
	defer func() { done(err) }()

	if err := access.Require(ctx, s.policy, actingUserID); err != nil {
		return nil, err
	}

	var (
		row   *models.Materiel
		entry *materiellogs.Entry
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		v, err := s.validate(ctx, repo, input, 0, enums.MaterielStatusAvailable, nil)
		if err != nil {
			return err
		}

		row = v.model()
		if err := repo.Create(ctx, row); err != nil {
			if db.IsUniqueViolation(err, "") {
				return identifierExists()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create materiel")
		}

		entry = ReconcileLog("", row.Status, v.target, nil)
		return s.append(ctx, tx, actingUserID, row.ID, entry)
	})
	if err != nil {
		return nil, err
	}

	s.recorded(entry)
	s.info(ctx, row.ID, "materiel.created")
	created := toItem(*row, holderAfter(entry, nil))
	return &created, nil
}

func (s *service) Update(ctx context.Context, actingUserID, id int64, input Input) (item *Item, err error) {
	ctx, done := s.instrument(ctx, "update", actingUserID, id)
	defer func() { done(err) }()

	if err := access.Require(ctx, s.policy, actingUserID); err != nil {
		return nil, err
	}

	var (
		row    *models.Materiel
		entry  *materiellogs.Entry
		holder *int64
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.find(ctx, repo, id)
		if err != nil {
			return err
		}

		prior, err := s.recorder.CurrentHolder(ctx, tx, id)
		if err != nil {
			return err
		}

		var keep *int64
		if current.Status == enums.MaterielStatusInUse {
			keep = prior
		}
		v, err := s.validate(ctx, repo, input, id, current.Status, keep)
		if err != nil {
			return err
		}
		if current.Status == enums.MaterielStatusRetired && v.status != enums.MaterielStatusRetired && !s.opts.AllowRetiredReactivation {
			return pkgerrors.New(pkgerrors.CodeStateConflict, MsgRetired)
		}

		// The implicit entry is written before the entity so the log never
		// trails the status it explains.
		entry = ReconcileLog(current.Status, v.status, v.target, prior)
		if err := s.append(ctx, tx, actingUserID, id, entry); err != nil {
			return err
		}

		row = v.model()
		row.ID = id
		row.TimeCreated = current.TimeCreated
		ok, err := repo.UpdateIfStatus(ctx, row, current.Status)
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return identifierExists()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update materiel")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, MsgStatusChanged)
		}

		holder = holderAfter(entry, prior)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorded(entry)
	s.info(ctx, id, "materiel.updated")
	updated := toItem(*row, holder)
	updated.TimeModified = time.Now().UTC()
	return &updated, nil
}

// Delete hard-deletes the materiel. Its log rows are kept.
func (s *service) Delete(ctx context.Context, actingUserID, id int64) (err error) {
	ctx, done := s.instrument(ctx, "delete", actingUserID, id)
	defer func() { done(err) }()

	if err := access.Require(ctx, s.policy, actingUserID); err != nil {
		return err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.find(ctx, repo, id); err != nil {
			return err
		}
		deleted, err := repo.Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete materiel")
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeNotFound, MsgNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.info(ctx, id, "materiel.deleted")
	return nil
}

func (s *service) Get(ctx context.Context, actingUserID, id int64) (*Item, error) {
	if err := access.Require(ctx, s.policy, actingUserID); err != nil {
		return nil, err
	}
	row, err := s.find(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	return s.withHolder(ctx, row)
}

func (s *service) GetByIdentifier(ctx context.Context, actingUserID int64, identifier string) (*Item, error) {
	if err := access.Require(ctx, s.policy, actingUserID); err != nil {
		return nil, err
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		var fields pkgerrors.FieldErrors
		fields.Add("identifier", ReasonRequired)
		return nil, fields.Err()
	}
	row, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, MsgNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup materiel by identifier")
	}
	return s.withHolder(ctx, row)
}

func (s *service) List(ctx context.Context, actingUserID int64, filters ListFilters) ([]Item, error) {
	if err := access.Require(ctx, s.policy, actingUserID); err != nil {
		return nil, err
	}

	q := listQuery{typeID: filters.TypeID, search: strings.TrimSpace(filters.Search)}
	if raw := strings.TrimSpace(filters.Status); raw != "" {
		status, err := enums.ParseMaterielStatus(raw)
		if err != nil {
			var fields pkgerrors.FieldErrors
			fields.Add("status", ReasonInvalid)
			return nil, fields.Err()
		}
		q.status = status
	}
	q.sortColumn, q.descending = resolveSort(filters.Sort, filters.Order)

	rows, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list materiel")
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	holders, err := s.recorder.HoldersFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		var holder *int64
		if h, ok := holders[row.ID]; ok {
			holder = &h
		}
		items = append(items, toItem(row, holder))
	}
	return items, nil
}

// Checkout assigns available materiel to targetUserID.
func (s *service) Checkout(ctx context.Context, actingUserID, id, targetUserID int64, notes string) (item *Item, err error) {
	ctx, done := s.instrument(ctx, "checkout", actingUserID, id)
	defer func() { done(err) }()

	if err := access.Require(ctx, s.policy, actingUserID); err != nil {
		return nil, err
	}
	if targetUserID <= 0 {
		var fields pkgerrors.FieldErrors
		fields.Add("userid", ReasonRequired)
		return nil, fields.Err()
	}

	entry := &materiellogs.Entry{
		Action: enums.MaterielLogActionCheckout,
		UserID: &targetUserID,
		Notes:  notes,
	}
	row, err := s.transition(ctx, actingUserID, id, enums.MaterielStatusAvailable, enums.MaterielStatusInUse, MsgNotAvailable, entry)
	if err != nil {
		return nil, err
	}

	s.info(s.withField(ctx, "target_user_id", targetUserID), id, "materiel.checkout")
	out := toItem(*row, &targetUserID)
	return &out, nil
}

// Checkin returns in-use materiel to the available pool.
func (s *service) Checkin(ctx context.Context, actingUserID, id int64, notes string) (item *Item, err error) {
	ctx, done := s.instrument(ctx, "checkin", actingUserID, id)
	defer func() { done(err) }()

	if err := access.Require(ctx, s.policy, actingUserID); err != nil {
		return nil, err
	}

	entry := &materiellogs.Entry{
		Action: enums.MaterielLogActionCheckin,
		Notes:  notes,
	}
	row, err := s.transition(ctx, actingUserID, id, enums.MaterielStatusInUse, enums.MaterielStatusAvailable, MsgNotInUse, entry)
	if err != nil {
		return nil, err
	}

	s.info(ctx, id, "materiel.checkin")
	out := toItem(*row, nil)
	return &out, nil
}

// transition applies an explicit checkout/checkin: the precondition is
// checked on the loaded row and again by the conditional update.
func (s *service) transition(ctx context.Context, actingUserID, id int64, from, to enums.MaterielStatus, conflictMsg string, entry *materiellogs.Entry) (*models.Materiel, error) {
	var row *models.Materiel
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.find(ctx, repo, id)
		if err != nil {
			return err
		}
		if current.Status != from {
			return stateConflict(conflictMsg, current.Status)
		}

		ok, err := repo.TransitionStatus(ctx, id, from, to)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update materiel status")
		}
		if !ok {
			return stateConflict(conflictMsg, "")
		}

		if err := s.append(ctx, tx, actingUserID, id, entry); err != nil {
			return err
		}

		current.Status = to
		current.TimeModified = time.Now().UTC()
		row = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recorded(entry)
	return row, nil
}

func (s *service) append(ctx context.Context, tx *gorm.DB, actingUserID, materielID int64, entry *materiellogs.Entry) error {
	if entry == nil {
		return nil
	}
	entry.MaterielID = materielID
	_, err := s.recorder.Append(ctx, tx, actingUserID, *entry)
	return err
}

func (s *service) find(ctx context.Context, repo Repository, id int64) (*models.Materiel, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, MsgNotFound)
	}
	row, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, MsgNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup materiel")
	}
	return row, nil
}

func (s *service) withHolder(ctx context.Context, row *models.Materiel) (*Item, error) {
	holder, err := s.recorder.CurrentHolder(ctx, nil, row.ID)
	if err != nil {
		return nil, err
	}
	item := toItem(*row, holder)
	return &item, nil
}

type validated struct {
	identifier string
	name       string
	typeID     *int64
	status     enums.MaterielStatus
	notes      string
	target     *int64
}

func (v validated) model() *models.Materiel {
	return &models.Materiel{
		TypeID:     v.typeID,
		Identifier: v.identifier,
		Name:       v.name,
		Status:     v.status,
		Notes:      v.notes,
	}
}

// validate normalises input and collects every field error. excludeID skips
// the row being edited in the uniqueness check; fallback fills an empty status.
// holder stands in for an omitted userid when the result is in_use.
func (s *service) validate(ctx context.Context, repo Repository, input Input, excludeID int64, fallback enums.MaterielStatus, holder *int64) (validated, error) {
	var fields pkgerrors.FieldErrors
	v := validated{
		identifier: strings.TrimSpace(input.Identifier),
		name:       strings.TrimSpace(input.Name),
		notes:      strings.TrimSpace(input.Notes),
		status:     fallback,
	}

	if v.identifier == "" {
		fields.Add("identifier", ReasonRequired)
	} else {
		taken, err := repo.IdentifierTaken(ctx, v.identifier, excludeID)
		if err != nil {
			return v, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check identifier")
		}
		if taken {
			fields.Add("identifier", ReasonIdentifierExists)
		}
	}
	if v.name == "" {
		fields.Add("name", ReasonRequired)
	}

	if raw := strings.TrimSpace(input.Status); raw != "" {
		status, err := enums.ParseMaterielStatus(raw)
		if err != nil {
			fields.Add("status", ReasonInvalid)
		} else {
			v.status = status
		}
	}

	if input.TypeID != nil && *input.TypeID > 0 {
		exists, err := repo.TypeExists(ctx, *input.TypeID)
		if err != nil {
			return v, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check materiel type")
		}
		if !exists {
			fields.Add("typeid", ReasonTypeNotFound)
		}
		typeID := *input.TypeID
		v.typeID = &typeID
	}

	if v.status == enums.MaterielStatusInUse {
		switch {
		case input.UserID != nil && *input.UserID > 0:
			target := *input.UserID
			v.target = &target
		case holder != nil:
			target := *holder
			v.target = &target
		default:
			fields.Add("userid", ReasonRequired)
		}
	}

	return v, fields.Err()
}

// holderAfter derives the holder once entry has been applied on top of prior.
func holderAfter(entry *materiellogs.Entry, prior *int64) *int64 {
	if entry == nil {
		return prior
	}
	if entry.Action == enums.MaterielLogActionCheckout {
		return entry.UserID
	}
	return nil
}

func identifierExists() error {
	var fields pkgerrors.FieldErrors
	fields.Add("identifier", ReasonIdentifierExists)
	return fields.Err()
}

func stateConflict(msg string, current enums.MaterielStatus) error {
	err := pkgerrors.New(pkgerrors.CodeStateConflict, msg)
	if current != "" {
		err = err.WithDetails(map[string]any{"status": current})
	}
	return err
}

func (s *service) instrument(ctx context.Context, op string, actingUserID, materielID int64) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "materiel."+op,
		attribute.Int64("user.id", actingUserID),
		attribute.Int64("materiel.id", materielID),
	)
	if s.opts.Logger != nil {
		ctx = s.opts.Logger.WithUserID(ctx, actingUserID)
		if materielID > 0 {
			ctx = s.opts.Logger.WithMaterielID(ctx, materielID)
		}
	}
	return ctx, func(err error) {
		s.opts.Metrics.ObserveDuration(op, time.Since(start))
		if err != nil {
			s.opts.Metrics.IncFailure(op, string(pkgerrors.As(err).Code()))
		}
		tracing.End(span, err)
	}
}

func (s *service) recorded(entry *materiellogs.Entry) {
	if entry != nil {
		s.opts.Metrics.IncTransition(string(entry.Action))
	}
}

func (s *service) withField(ctx context.Context, key string, value any) context.Context {
	if s.opts.Logger == nil {
		return ctx
	}
	return s.opts.Logger.WithField(ctx, key, value)
}

func (s *service) info(ctx context.Context, id int64, msg string) {
	if s.opts.Logger == nil {
		return
	}
	s.opts.Logger.Info(s.opts.Logger.WithMaterielID(ctx, id), msg)
}
