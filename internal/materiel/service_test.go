package materiel

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/materiel-backend/internal/access"
	"github.com/angelmondragon/materiel-backend/internal/materiellogs"
	"github.com/angelmondragon/materiel-backend/pkg/db"
	"github.com/angelmondragon/materiel-backend/pkg/db/models"
	"github.com/angelmondragon/materiel-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/materiel-backend/pkg/errors"
	"github.com/angelmondragon/materiel-backend/pkg/metrics"
	"github.com/angelmondragon/materiel-backend/pkg/migrate"
)

const actingUser = int64(2)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migrate.AutoMigrateModels(context.Background(), conn))
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

type fixture struct {
	db  *gorm.DB
	svc Service
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	conn := newTestDB(t)
	rec, err := materiellogs.NewRecorder(materiellogs.NewRepository(conn))
	require.NoError(t, err)
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewMaterielMetrics(prometheus.NewRegistry())
	}
	svc, err := NewService(NewRepository(conn), rec, db.NewFromGorm(conn), access.NewStaticPolicy(actingUser), opts)
	require.NoError(t, err)
	return &fixture{db: conn, svc: svc}
}

func (f *fixture) create(t *testing.T, input Input) *Item {
	t.Helper()
	item, err := f.svc.Create(context.Background(), actingUser, input)
	require.NoError(t, err)
	return item
}

func (f *fixture) logs(t *testing.T, materielID int64) []models.MaterielLog {
	t.Helper()
	var rows []models.MaterielLog
	require.NoError(t, f.db.Where("materiel_id = ?", materielID).Order("id ASC").Find(&rows).Error)
	return rows
}

func (f *fixture) stored(t *testing.T, id int64) models.Materiel {
	t.Helper()
	var row models.Materiel
	require.NoError(t, f.db.Where("id = ?", id).Take(&row).Error)
	return row
}

func int64Ptr(v int64) *int64 { return &v }

func requireCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
	return typed
}

func TestCheckoutThenCheckin(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	created := f.create(t, Input{Identifier: "PRJ-001", Name: "Projector", Status: "available"})
	assert.Equal(t, enums.MaterielStatusAvailable, created.Status)
	assert.Nil(t, created.CurrentUser)
	assert.Empty(t, f.logs(t, created.ID))

	out, err := f.svc.Checkout(ctx, actingUser, created.ID, 42, "conference room")
	require.NoError(t, err)
	assert.Equal(t, enums.MaterielStatusInUse, out.Status)
	require.NotNil(t, out.CurrentUser)
	assert.Equal(t, int64(42), *out.CurrentUser)

	got, err := f.svc.Get(ctx, actingUser, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentUser)
	assert.Equal(t, int64(42), *got.CurrentUser)

	logs := f.logs(t, created.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, enums.MaterielLogActionCheckout, logs[0].Action)
	assert.Equal(t, int64(42), *logs[0].UserID)
	assert.Equal(t, actingUser, *logs[0].ActionBy)
	assert.Equal(t, "conference room", logs[0].Notes)

	out, err = f.svc.Checkin(ctx, actingUser, created.ID, "")
	require.NoError(t, err)
	assert.Equal(t, enums.MaterielStatusAvailable, out.Status)
	assert.Nil(t, out.CurrentUser)

	got, err = f.svc.Get(ctx, actingUser, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CurrentUser)

	logs = f.logs(t, created.ID)
	require.Len(t, logs, 2)
	assert.Equal(t, enums.MaterielLogActionCheckin, logs[1].Action)
	assert.Nil(t, logs[1].UserID)
}

func TestCreateRejectsDuplicateIdentifier(t *testing.T) {
	f := newFixture(t, Options{})

	f.create(t, Input{Identifier: "BC-01", Name: "Barcode scanner"})
	_, err := f.svc.Create(context.Background(), actingUser, Input{Identifier: "BC-01", Name: "Second scanner"})
	typed := requireCode(t, err, pkgerrors.CodeValidation)
	assert.Equal(t, map[string]string{"identifier": ReasonIdentifierExists}, typed.Details())

	var count int64
	require.NoError(t, f.db.Model(&models.Materiel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIdentifierIsCaseSensitive(t *testing.T) {
	f := newFixture(t, Options{})

	f.create(t, Input{Identifier: "bc-01", Name: "Lower"})
	upper := f.create(t, Input{Identifier: "BC-01", Name: "Upper"})
	assert.Equal(t, "BC-01", upper.Identifier)
}

func TestEditFromInUseToMaintenanceChecksIn(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	created := f.create(t, Input{Identifier: "LAP-7", Name: "Laptop", Status: "in_use", UserID: int64Ptr(7)})
	require.NotNil(t, created.CurrentUser)
	logs := f.logs(t, created.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, enums.MaterielLogActionCheckout, logs[0].Action)

	updated, err := f.svc.Update(ctx, actingUser, created.ID, Input{Identifier: "LAP-7", Name: "Laptop", Status: "maintenance"})
	require.NoError(t, err)
	assert.Equal(t, enums.MaterielStatusMaintenance, updated.Status)
	assert.Nil(t, updated.CurrentUser)

	logs = f.logs(t, created.ID)
	require.Len(t, logs, 2)
	assert.Equal(t, enums.MaterielLogActionCheckin, logs[1].Action)
	assert.Empty(t, logs[1].Notes)
	assert.Equal(t, enums.MaterielStatusMaintenance, f.stored(t, created.ID).Status)
}

func TestEditInUseWithSameHolderIsNoop(t *testing.T) {
	f := newFixture(t, Options{})

	created := f.create(t, Input{Identifier: "LAP-8", Name: "Laptop", Status: "in_use", UserID: int64Ptr(7)})
	updated, err := f.svc.Update(context.Background(), actingUser, created.ID, Input{
		Identifier: "LAP-8",
		Name:       "Laptop 14in",
		Status:     "in_use",
		UserID:     int64Ptr(7),
	})
	require.NoError(t, err)
	assert.Equal(t, "Laptop 14in", updated.Name)
	require.NotNil(t, updated.CurrentUser)
	assert.Equal(t, int64(7), *updated.CurrentUser)
	assert.Len(t, f.logs(t, created.ID), 1)
}

func TestEditInUseToNewHolderChecksOut(t *testing.T) {
	f := newFixture(t, Options{})

	created := f.create(t, Input{Identifier: "LAP-9", Name: "Laptop", Status: "in_use", UserID: int64Ptr(7)})
	updated, err := f.svc.Update(context.Background(), actingUser, created.ID, Input{
		Identifier: "LAP-9",
		Name:       "Laptop",
		Status:     "in_use",
		UserID:     int64Ptr(8),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), *updated.CurrentUser)

	logs := f.logs(t, created.ID)
	require.Len(t, logs, 2)
	assert.Equal(t, enums.MaterielLogActionCheckout, logs[1].Action)
	assert.Equal(t, int64(8), *logs[1].UserID)
}

func TestInUseRequiresUser(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.svc.Create(context.Background(), actingUser, Input{Identifier: "CAM-1", Name: "Camera", Status: "in_use"})
	typed := requireCode(t, err, pkgerrors.CodeValidation)
	assert.Equal(t, map[string]string{"userid": ReasonRequired}, typed.Details())
}

func TestEditInUseWithoutUserKeepsHolder(t *testing.T) {
	f := newFixture(t, Options{})

	created := f.create(t, Input{Identifier: "LAP-10", Name: "Laptop", Status: "in_use", UserID: int64Ptr(7)})
	updated, err := f.svc.Update(context.Background(), actingUser, created.ID, Input{Identifier: "LAP-10", Name: "Laptop 16in"})
	require.NoError(t, err)
	assert.Equal(t, "Laptop 16in", updated.Name)
	assert.Equal(t, enums.MaterielStatusInUse, updated.Status)
	require.NotNil(t, updated.CurrentUser)
	assert.Equal(t, int64(7), *updated.CurrentUser)
	assert.Len(t, f.logs(t, created.ID), 1)
}

func TestCreateCollectsFieldErrors(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.svc.Create(context.Background(), actingUser, Input{Status: "lost", TypeID: int64Ptr(99)})
	typed := requireCode(t, err, pkgerrors.CodeValidation)
	assert.Equal(t, map[string]string{
		"identifier": ReasonRequired,
		"name":       ReasonRequired,
		"status":     ReasonInvalid,
		"typeid":     ReasonTypeNotFound,
	}, typed.Details())
}

func TestCreateWithType(t *testing.T) {
	f := newFixture(t, Options{})
	kind := models.MaterielType{Name: "Audio"}
	require.NoError(t, f.db.Create(&kind).Error)

	created := f.create(t, Input{Identifier: "MIC-1", Name: "Microphone", TypeID: &kind.ID})
	require.NotNil(t, created.TypeID)
	assert.Equal(t, kind.ID, *created.TypeID)
	assert.Equal(t, enums.MaterielStatusAvailable, created.Status)
}

func TestIllegalTransitionsLeaveNoLog(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	created := f.create(t, Input{Identifier: "PRJ-2", Name: "Projector", Status: "maintenance"})

	_, err := f.svc.Checkout(ctx, actingUser, created.ID, 42, "")
	typed := requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Equal(t, MsgNotAvailable, typed.Message())

	_, err = f.svc.Checkin(ctx, actingUser, created.ID, "")
	typed = requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Equal(t, MsgNotInUse, typed.Message())

	assert.Empty(t, f.logs(t, created.ID))
	assert.Equal(t, enums.MaterielStatusMaintenance, f.stored(t, created.ID).Status)
}

func TestCheckoutTwiceConflicts(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	created := f.create(t, Input{Identifier: "PRJ-3", Name: "Projector"})
	_, err := f.svc.Checkout(ctx, actingUser, created.ID, 42, "")
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, actingUser, created.ID, 43, "")
	requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Len(t, f.logs(t, created.ID), 1)
}

func TestCheckoutRequiresTarget(t *testing.T) {
	f := newFixture(t, Options{})

	created := f.create(t, Input{Identifier: "PRJ-4", Name: "Projector"})
	_, err := f.svc.Checkout(context.Background(), actingUser, created.ID, 0, "")
	typed := requireCode(t, err, pkgerrors.CodeValidation)
	assert.Equal(t, map[string]string{"userid": ReasonRequired}, typed.Details())
}

func TestMissingMaterielIsNotFound(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.Get(ctx, actingUser, 404)
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = f.svc.Checkout(ctx, actingUser, 404, 42, "")
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = f.svc.Update(ctx, actingUser, 404, Input{Identifier: "X", Name: "X"})
	requireCode(t, err, pkgerrors.CodeNotFound)
	err = f.svc.Delete(ctx, actingUser, 404)
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = f.svc.GetByIdentifier(ctx, actingUser, "nope")
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestDeleteRetainsHistory(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	created := f.create(t, Input{Identifier: "PRJ-5", Name: "Projector"})
	_, err := f.svc.Checkout(ctx, actingUser, created.ID, 42, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, actingUser, created.ID))
	_, err = f.svc.Get(ctx, actingUser, created.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
	assert.Len(t, f.logs(t, created.ID), 1)
}

func TestUpdateKeepsOwnIdentifier(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	first := f.create(t, Input{Identifier: "A-1", Name: "First"})
	f.create(t, Input{Identifier: "A-2", Name: "Second"})

	_, err := f.svc.Update(ctx, actingUser, first.ID, Input{Identifier: "A-1", Name: "First renamed"})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, actingUser, first.ID, Input{Identifier: "A-2", Name: "First"})
	typed := requireCode(t, err, pkgerrors.CodeValidation)
	assert.Equal(t, map[string]string{"identifier": ReasonIdentifierExists}, typed.Details())
	assert.Equal(t, "A-1", f.stored(t, first.ID).Identifier)
}

var retiredInput = Input{Identifier: "OLD-1", Name: "Old projector", Status: "retired"}

func TestRetiredReactivationAllowed(t *testing.T) {
	f := newFixture(t, Options{AllowRetiredReactivation: true})
	created := f.create(t, retiredInput)

	updated, err := f.svc.Update(context.Background(), actingUser, created.ID, Input{Identifier: "OLD-1", Name: "Old projector", Status: "available"})
	require.NoError(t, err)
	assert.Equal(t, enums.MaterielStatusAvailable, updated.Status)
}

func TestRetiredReactivationDisallowed(t *testing.T) {
	f := newFixture(t, Options{})
	created := f.create(t, retiredInput)

	_, err := f.svc.Update(context.Background(), actingUser, created.ID, Input{Identifier: "OLD-1", Name: "Old projector", Status: "available"})
	typed := requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Equal(t, MsgRetired, typed.Message())
	assert.Equal(t, enums.MaterielStatusRetired, f.stored(t, created.ID).Status)

	_, err = f.svc.Update(context.Background(), actingUser, created.ID, Input{Identifier: "OLD-1", Name: "Old projector, shelf 3", Status: "retired"})
	require.NoError(t, err)
}

func TestListFiltersSortAndSearch(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	kind := models.MaterielType{Name: "Video"}
	require.NoError(t, f.db.Create(&kind).Error)

	f.create(t, Input{Identifier: "PRJ-10", Name: "Projector", TypeID: &kind.ID})
	f.create(t, Input{Identifier: "CAM-10", Name: "Camera", TypeID: &kind.ID, Status: "in_use", UserID: int64Ptr(5)})
	f.create(t, Input{Identifier: "LAP-10", Name: "Laptop 100%", Status: "maintenance"})

	all, err := f.svc.List(ctx, actingUser, ListFilters{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Camera", "Laptop 100%", "Projector"}, names(all))
	require.NotNil(t, all[0].CurrentUser)
	assert.Equal(t, int64(5), *all[0].CurrentUser)
	assert.Nil(t, all[2].CurrentUser)

	desc, err := f.svc.List(ctx, actingUser, ListFilters{Sort: "identifier", Order: "desc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Projector", "Laptop 100%", "Camera"}, names(desc))

	byType, err := f.svc.List(ctx, actingUser, ListFilters{TypeID: kind.ID})
	require.NoError(t, err)
	assert.Len(t, byType, 2)

	inUse, err := f.svc.List(ctx, actingUser, ListFilters{Status: "in_use"})
	require.NoError(t, err)
	require.Len(t, inUse, 1)
	assert.Equal(t, "CAM-10", inUse[0].Identifier)

	search, err := f.svc.List(ctx, actingUser, ListFilters{Search: "prj"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, "Projector", search[0].Name)

	percent, err := f.svc.List(ctx, actingUser, ListFilters{Search: "100%"})
	require.NoError(t, err)
	require.Len(t, percent, 1)
	assert.Equal(t, "LAP-10", percent[0].Identifier)

	_, err = f.svc.List(ctx, actingUser, ListFilters{Status: "missing"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestGetByIdentifier(t *testing.T) {
	f := newFixture(t, Options{})

	created := f.create(t, Input{Identifier: "SCN-1", Name: "Scanner"})
	got, err := f.svc.GetByIdentifier(context.Background(), actingUser, " SCN-1 ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestAccessDenied(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, 99, Input{Identifier: "X-1", Name: "X"})
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = f.svc.List(ctx, 0, ListFilters{})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	var count int64
	require.NoError(t, f.db.Model(&models.Materiel{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	conn := newTestDB(t)
	rec, err := materiellogs.NewRecorder(materiellogs.NewRepository(conn))
	require.NoError(t, err)

	_, err = NewService(nil, rec, db.NewFromGorm(conn), access.NewStaticPolicy(), Options{})
	assert.Error(t, err)
	_, err = NewService(NewRepository(conn), nil, db.NewFromGorm(conn), access.NewStaticPolicy(), Options{})
	assert.Error(t, err)
	_, err = NewService(NewRepository(conn), rec, nil, access.NewStaticPolicy(), Options{})
	assert.Error(t, err)
	_, err = NewService(NewRepository(conn), rec, db.NewFromGorm(conn), nil, Options{})
	assert.Error(t, err)
}

func names(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name)
	}
	return out
}

var errAppend = errors.New("log store unavailable")

// failingRecorder delegates reads but refuses every append.
type failingRecorder struct {
	materiellogs.Recorder
}

func (failingRecorder) Append(context.Context, *gorm.DB, int64, materiellogs.Entry) (*models.MaterielLog, error) {
	return nil, errAppend
}

// staleRepository reports every conditional status write as lost.
type staleRepository struct {
	Repository
}

func (r staleRepository) WithTx(tx *gorm.DB) Repository {
	return staleRepository{Repository: r.Repository.WithTx(tx)}
}

func (staleRepository) TransitionStatus(context.Context, int64, enums.MaterielStatus, enums.MaterielStatus) (bool, error) {
	return false, nil
}

func (staleRepository) UpdateIfStatus(context.Context, *models.Materiel, enums.MaterielStatus) (bool, error) {
	return false, nil
}

func newServiceOn(t *testing.T, conn *gorm.DB, repo Repository, rec materiellogs.Recorder) Service {
	t.Helper()
	svc, err := NewService(repo, rec, db.NewFromGorm(conn), access.NewStaticPolicy(actingUser), Options{
		Metrics: metrics.NewMaterielMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return svc
}

func TestFailedLogAppendRollsBackEntity(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	created := f.create(t, Input{Identifier: "DRL-1", Name: "Drill", Status: "in_use", UserID: int64Ptr(5)})

	rec, err := materiellogs.NewRecorder(materiellogs.NewRepository(f.db))
	require.NoError(t, err)
	broken := newServiceOn(t, f.db, NewRepository(f.db), failingRecorder{Recorder: rec})

	_, err = broken.Checkin(ctx, actingUser, created.ID, "")
	require.ErrorIs(t, err, errAppend)
	assert.Equal(t, enums.MaterielStatusInUse, f.stored(t, created.ID).Status)

	_, err = broken.Update(ctx, actingUser, created.ID, Input{Identifier: "DRL-1", Name: "Drill", Status: "maintenance"})
	require.ErrorIs(t, err, errAppend)
	assert.Equal(t, enums.MaterielStatusInUse, f.stored(t, created.ID).Status)

	assert.Len(t, f.logs(t, created.ID), 1)
}

func TestLostStatusRaceWritesNoLog(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	created := f.create(t, Input{Identifier: "GEN-1", Name: "Generator"})

	rec, err := materiellogs.NewRecorder(materiellogs.NewRepository(f.db))
	require.NoError(t, err)
	racing := newServiceOn(t, f.db, staleRepository{Repository: NewRepository(f.db)}, rec)

	_, err = racing.Checkout(ctx, actingUser, created.ID, 9, "")
	typed := requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Equal(t, MsgNotAvailable, typed.Message())
	assert.Empty(t, f.logs(t, created.ID))

	_, err = racing.Update(ctx, actingUser, created.ID, Input{Identifier: "GEN-1", Name: "Generator", Status: "in_use", UserID: int64Ptr(9)})
	typed = requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Equal(t, MsgStatusChanged, typed.Message())
	assert.Empty(t, f.logs(t, created.ID))
	assert.Equal(t, enums.MaterielStatusAvailable, f.stored(t, created.ID).Status)
}
