package ledgersync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Scribefox/app/models"
	"github.com/ManuelReschke/Scribefox/app/repository"
	"github.com/ManuelReschke/Scribefox/internal/pkg/apperr"
	"github.com/ManuelReschke/Scribefox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/Scribefox/internal/pkg/testdb"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) AppendRow(ctx context.Context, subLedger string, row []string) (string, error) {
	args := m.Called(ctx, subLedger, row)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) CreateSubLedger(ctx context.Context, name string, header []string) (string, error) {
	args := m.Called(ctx, name, header)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) UpdateRow(ctx context.Context, ref string, row []string) error {
	return m.Called(ctx, ref, row).Error(0)
}

func (m *mockProvider) DeleteRow(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}

type fixture struct {
	db       *gorm.DB
	provider *mockProvider
	refs     repository.LedgerReferenceRepository
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	db := testdb.Open(t)
	p := &mockProvider{}
	refs := repository.NewLedgerReferenceRepository(db)
	svc := NewService(NewGormStore(db), refs, p, counter.New(prometheus.NewRegistry(), nil))
	return &fixture{db: db, provider: p, refs: refs, svc: svc}
}

func (f *fixture) profile(t *testing.T, userID uint) *models.OnboardingProfile {
	p := &models.OnboardingProfile{
		UserID:       userID,
		DraftID:      "draft-profile",
		Name:         "Ada",
		Email:        "ada@example.com",
		Language:     "en",
		DeliveryDays: []string{"mon", "fri"},
		Samples:      []string{"one"},
	}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func (f *fixture) style(t *testing.T, userID uint) *models.Style {
	s := &models.Style{UserID: userID, DraftID: "draft-style", Name: "Weekly", Samples: []string{"a"}, Topics: []string{"x"}}
	require.NoError(t, f.db.Create(s).Error)
	return s
}

func TestService_CreateProfileStoresBothReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.profile(t, 1)

	f.provider.On("AppendRow", mock.Anything, "", mock.MatchedBy(func(row []string) bool { return len(row) == 17 })).
		Return("Main!A2:Q2", nil).Once()
	f.provider.On("CreateSubLedger", mock.Anything, SheetName(p), StyleHeader).Return("sheet-42", nil).Once()

	require.NoError(t, f.svc.Handle(ctx, Task{Op: OpCreate, EntityType: models.LedgerEntityProfile, EntityID: p.ID}))

	ref, err := f.refs.Get(ctx, models.LedgerEntityProfile, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Main!A2:Q2", ref.RowRef)
	assert.Equal(t, "sheet-42", ref.SubLedgerID)
	assert.Equal(t, string(OpCreate), ref.LastOp)
	f.provider.AssertExpectations(t)
}

func TestService_StyleCreateUsesOwnerSubLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.profile(t, 2)
	require.NoError(t, f.refs.Upsert(ctx, &models.LedgerReference{
		EntityType: models.LedgerEntityProfile, EntityID: p.ID, RowRef: "Main!A3:Q3", SubLedgerID: "sheet-7",
	}))
	s := f.style(t, 2)

	f.provider.On("AppendRow", mock.Anything, "sheet-7", mock.Anything).Return("sheet-7!A2:G2", nil).Once()

	require.NoError(t, f.svc.Handle(ctx, Task{Op: OpCreate, EntityType: models.LedgerEntityStyle, EntityID: s.ID}))

	ref, err := f.refs.Get(ctx, models.LedgerEntityStyle, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "sheet-7!A2:G2", ref.RowRef)
}

func TestService_StyleWithoutSubLedgerIsDegraded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.style(t, 3)

	err := f.svc.Handle(ctx, Task{Op: OpCreate, EntityType: models.LedgerEntityStyle, EntityID: s.ID})
	require.Error(t, err)
	assert.Equal(t, apperr.KindSyncDegraded, apperr.KindOf(err))
	assert.ErrorIs(t, err, ErrNoSubLedger)
	f.provider.AssertNotCalled(t, "AppendRow", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_ProviderFailureLeavesNoReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.profile(t, 4)

	f.provider.On("AppendRow", mock.Anything, "", mock.Anything).Return("", errors.New("network unreachable")).Once()

	err := f.svc.Handle(ctx, Task{Op: OpCreate, EntityType: models.LedgerEntityProfile, EntityID: p.ID})
	assert.Equal(t, apperr.KindSyncDegraded, apperr.KindOf(err))

	_, err = f.refs.Get(ctx, models.LedgerEntityProfile, p.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var count int64
	require.NoError(t, f.db.Model(&models.OnboardingProfile{}).Where("id = ?", p.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestService_UpdateByUserRewritesMainRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.profile(t, 5)
	require.NoError(t, f.refs.Upsert(ctx, &models.LedgerReference{
		EntityType: models.LedgerEntityProfile, EntityID: p.ID, RowRef: "Main!A4:Q4", SubLedgerID: "sheet-9",
	}))
	end := time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.db.Create(&models.BillingSubscription{
		UserID: 5, Provider: "stripe", ProviderSubscriptionID: "sub_1",
		Status: models.BillingStatusActive, CurrentPeriodEnd: &end,
	}).Error)

	f.provider.On("UpdateRow", mock.Anything, "Main!A4:Q4", mock.MatchedBy(func(row []string) bool {
		return row[11] == "Active" && row[12] == "2026-11-30"
	})).Return(nil).Once()

	require.NoError(t, f.svc.Handle(ctx, Task{Op: OpUpdate, EntityType: models.LedgerEntityProfile, UserID: 5}))
	f.provider.AssertExpectations(t)
}

func TestService_UpdateWithoutReferenceFallsBackToCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.profile(t, 6)

	f.provider.On("AppendRow", mock.Anything, "", mock.Anything).Return("Main!A5:Q5", nil).Once()
	f.provider.On("CreateSubLedger", mock.Anything, mock.Anything, mock.Anything).Return("sheet-5", nil).Once()

	require.NoError(t, f.svc.Handle(ctx, Task{Op: OpUpdate, EntityType: models.LedgerEntityProfile, EntityID: p.ID}))
	f.provider.AssertExpectations(t)
}

func TestService_DeleteWithoutReferenceIsNoop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Handle(context.Background(), Task{Op: OpDelete, EntityType: models.LedgerEntityStyle, EntityID: 99}))
	f.provider.AssertNotCalled(t, "DeleteRow", mock.Anything, mock.Anything)
}

func TestService_DeleteRemovesRowAndReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.refs.Upsert(ctx, &models.LedgerReference{EntityType: models.LedgerEntityStyle, EntityID: 12, RowRef: "s!A2:G2"}))
	f.provider.On("DeleteRow", mock.Anything, "s!A2:G2").Return(nil).Once()

	require.NoError(t, f.svc.Handle(ctx, Task{Op: OpDelete, EntityType: models.LedgerEntityStyle, EntityID: 12}))

	_, err := f.refs.Get(ctx, models.LedgerEntityStyle, 12)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestService_RejectsInvalidTask(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Handle(context.Background(), Task{Op: "merge", EntityType: models.LedgerEntityStyle, EntityID: 1})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestService_RetriedCreateResumesPartialProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.profile(t, 7)

	f.provider.On("AppendRow", mock.Anything, "", mock.Anything).Return("Main!A2:Q2", nil).Once()
	f.provider.On("CreateSubLedger", mock.Anything, SheetName(p), StyleHeader).Return("", errors.New("quota exceeded")).Once()

	task := Task{Op: OpCreate, EntityType: models.LedgerEntityProfile, EntityID: p.ID}
	require.Error(t, f.svc.Handle(ctx, task))

	ref, err := f.refs.Get(ctx, models.LedgerEntityProfile, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Main!A2:Q2", ref.RowRef)
	assert.Empty(t, ref.SubLedgerID)

	f.provider.On("UpdateRow", mock.Anything, "Main!A2:Q2", mock.MatchedBy(func(row []string) bool { return len(row) == 17 })).
		Return(nil).Once()
	f.provider.On("CreateSubLedger", mock.Anything, SheetName(p), StyleHeader).Return("sheet-11", nil).Once()

	require.NoError(t, f.svc.Handle(ctx, task))

	ref, err = f.refs.Get(ctx, models.LedgerEntityProfile, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Main!A2:Q2", ref.RowRef)
	assert.Equal(t, "sheet-11", ref.SubLedgerID)
	f.provider.AssertNumberOfCalls(t, "AppendRow", 1)
	f.provider.AssertExpectations(t)
}

func TestService_UpdateAfterPartialCreateBuildsSubLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.profile(t, 8)
	require.NoError(t, f.refs.Upsert(ctx, &models.LedgerReference{
		EntityType: models.LedgerEntityProfile, EntityID: p.ID, RowRef: "Main!A6:Q6",
	}))

	f.provider.On("UpdateRow", mock.Anything, "Main!A6:Q6", mock.Anything).Return(nil).Once()
	f.provider.On("CreateSubLedger", mock.Anything, SheetName(p), StyleHeader).Return("sheet-12", nil).Once()

	require.NoError(t, f.svc.Handle(ctx, Task{Op: OpUpdate, EntityType: models.LedgerEntityProfile, UserID: 8}))

	ref, err := f.refs.Get(ctx, models.LedgerEntityProfile, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "sheet-12", ref.SubLedgerID)
	f.provider.AssertNotCalled(t, "AppendRow", mock.Anything, mock.Anything, mock.Anything)
	f.provider.AssertExpectations(t)
}
