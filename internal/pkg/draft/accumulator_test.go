package draft

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Scribefox/app/models"
	"github.com/ManuelReschke/Scribefox/app/repository"
	"github.com/ManuelReschke/Scribefox/internal/pkg/apperr"
	"github.com/ManuelReschke/Scribefox/internal/pkg/ledgersync"
	"github.com/ManuelReschke/Scribefox/internal/pkg/testdb"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []ledgersync.Task
	err   error
}

func (r *recordingDispatcher) Dispatch(_ context.Context, task ledgersync.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
	return r.err
}

func (r *recordingDispatcher) Tasks() []ledgersync.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ledgersync.Task(nil), r.tasks...)
}

func str(s string) *string { return &s }

func newAccumulator(t *testing.T) (*Accumulator, *gorm.DB, *recordingDispatcher) {
	db := testdb.Open(t)
	rec := &recordingDispatcher{}
	return NewAccumulator(repository.NewDraftRepository(db), rec, nil), db, rec
}

func TestSaveStep_StartsAndMergesDraft(t *testing.T) {
	acc, _, _ := newAccumulator(t)
	ctx := context.Background()

	id, err := acc.SaveStep(ctx, 7, models.DraftKindArticleStyle, "", Fields{Samples: []string{"First sample", ""}})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := acc.SaveStep(ctx, 7, models.DraftKindArticleStyle, id, Fields{Topics: []string{"Go", " go ", "Redis"}})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = acc.SaveStep(ctx, 7, models.DraftKindArticleStyle, id, Fields{Name: str("  Technical  ")})
	require.NoError(t, err)

	d, err := acc.GetDraft(ctx, 7, models.DraftKindArticleStyle)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, id, d.ID)
	assert.Equal(t, []string{"First sample", ""}, d.Samples, "earlier step survives later steps")
	assert.Equal(t, []string{"Go", "Redis"}, d.Topics)
	assert.Equal(t, "Technical", d.NameValue())
	assert.Equal(t, models.DraftStatusOpen, d.Status)
}

func TestSaveStep_NewStartAbandonsPreviousDraft(t *testing.T) {
	acc, db, _ := newAccumulator(t)
	ctx := context.Background()

	first, err := acc.SaveStep(ctx, 7, models.DraftKindOnboarding, "", Fields{Name: str("Ada")})
	require.NoError(t, err)
	second, err := acc.SaveStep(ctx, 7, models.DraftKindOnboarding, "", Fields{Name: str("Grace")})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	var old models.Draft
	require.NoError(t, db.First(&old, "id = ?", first).Error)
	assert.Equal(t, models.DraftStatusAbandoned, old.Status)

	_, err = acc.SaveStep(ctx, 7, models.DraftKindOnboarding, first, Fields{Email: str("a@b.c")})
	assert.ErrorIs(t, err, ErrDraftNotFound)

	d, err := acc.GetDraft(ctx, 7, models.DraftKindOnboarding)
	require.NoError(t, err)
	assert.Equal(t, second, d.ID)
}

func TestSaveStep_Errors(t *testing.T) {
	acc, _, _ := newAccumulator(t)
	ctx := context.Background()

	id, err := acc.SaveStep(ctx, 7, models.DraftKindArticleStyle, "", Fields{Name: str("n")})
	require.NoError(t, err)

	_, err = acc.SaveStep(ctx, 8, models.DraftKindArticleStyle, id, Fields{Name: str("x")})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = acc.SaveStep(ctx, 7, models.DraftKindArticleStyle, "00000000-0000-0000-0000-000000000000", Fields{Name: str("x")})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = acc.SaveStep(ctx, 7, models.DraftKindOnboarding, id, Fields{Name: str("x")})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err), "draft id of another kind")

	_, err = acc.SaveStep(ctx, 7, "newsletter", "", Fields{Name: str("x")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestGetDraft_NoneIsNil(t *testing.T) {
	acc, _, _ := newAccumulator(t)

	d, err := acc.GetDraft(context.Background(), 42, models.DraftKindArticleStyle)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestSaveStep_ConcurrentStepsKeepBothFields(t *testing.T) {
	acc, _, _ := newAccumulator(t)
	ctx := context.Background()

	id, err := acc.SaveStep(ctx, 7, models.DraftKindOnboarding, "", Fields{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, f := range []Fields{
		{Email: str("Owner@Example.com")},
		{DeliveryDays: []string{"fri", "mon"}},
	} {
		wg.Add(1)
		go func(f Fields) {
			defer wg.Done()
			_, err := acc.SaveStep(ctx, 7, models.DraftKindOnboarding, id, f)
			errs <- err
		}(f)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	d, err := acc.GetDraft(ctx, 7, models.DraftKindOnboarding)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", d.EmailValue())
	assert.Equal(t, []string{"mon", "fri"}, d.DeliveryDays)
}

func TestComplete_CreatesStyleAndDispatchesCreate(t *testing.T) {
	acc, db, rec := newAccumulator(t)
	ctx := context.Background()

	id, err := acc.SaveStep(ctx, 7, models.DraftKindArticleStyle, "", Fields{
		Samples: []string{"One", " ", "Two"},
		Topics:  []string{"Go"},
		Name:    str("Plain"),
	})
	require.NoError(t, err)

	entity, err := acc.Complete(ctx, id, 7, StyleRequiredFields)
	require.NoError(t, err)
	require.NotNil(t, entity)
	assert.Equal(t, models.LedgerEntityStyle, entity.Type)

	var style models.Style
	require.NoError(t, db.First(&style, entity.ID).Error)
	assert.Equal(t, uint(7), style.UserID)
	assert.Equal(t, id, style.DraftID)
	assert.Equal(t, []string{"One", "Two"}, style.Samples)

	var d models.Draft
	require.NoError(t, db.First(&d, "id = ?", id).Error)
	assert.Equal(t, models.DraftStatusFinalized, d.Status)
	require.NotNil(t, d.EntityID)
	assert.Equal(t, entity.ID, *d.EntityID)
	assert.Nil(t, d.OpenSlot)

	require.Len(t, rec.Tasks(), 1)
	assert.Equal(t, ledgersync.Task{
		Op: ledgersync.OpCreate, EntityType: models.LedgerEntityStyle, EntityID: entity.ID, UserID: 7,
	}, rec.Tasks()[0])

	open, err := acc.GetDraft(ctx, 7, models.DraftKindArticleStyle)
	require.NoError(t, err)
	assert.Nil(t, open, "finalized draft is no longer returned as open")
}

func TestComplete_MissingFieldsLeavesDraftOpen(t *testing.T) {
	acc, db, rec := newAccumulator(t)
	ctx := context.Background()

	id, err := acc.SaveStep(ctx, 7, models.DraftKindOnboarding, "", Fields{Name: str("Ada"), Samples: []string{""}})
	require.NoError(t, err)

	_, err = acc.Complete(ctx, id, 7, OnboardingRequiredFields)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.ElementsMatch(t, []string{"email", "language", "delivery_days", "samples"}, apperr.FieldsOf(err))

	var d models.Draft
	require.NoError(t, db.First(&d, "id = ?", id).Error)
	assert.Equal(t, models.DraftStatusOpen, d.Status)
	assert.Empty(t, rec.Tasks())

	var count int64
	require.NoError(t, db.Model(&models.OnboardingProfile{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestComplete_FinalizesOnce(t *testing.T) {
	acc, db, rec := newAccumulator(t)
	ctx := context.Background()

	id, err := acc.SaveStep(ctx, 7, models.DraftKindOnboarding, "", Fields{
		Name:         str("Ada"),
		Email:        str("ada@example.com"),
		Language:     str("EN"),
		DeliveryDays: []string{"tue"},
		Samples:      []string{"Hello"},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := acc.Complete(ctx, id, 7, OnboardingRequiredFields)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, conflicts int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyFinalized):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 2, conflicts)

	var count int64
	require.NoError(t, db.Model(&models.OnboardingProfile{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Len(t, rec.Tasks(), 1)

	var p models.OnboardingProfile
	require.NoError(t, db.First(&p).Error)
	assert.Equal(t, "en", p.Language)

	_, err = acc.SaveStep(ctx, 7, models.DraftKindOnboarding, id, Fields{Name: str("late")})
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestComplete_SecondProfileConflicts(t *testing.T) {
	acc, _, _ := newAccumulator(t)
	ctx := context.Background()
	full := Fields{
		Name:         str("Ada"),
		Email:        str("ada@example.com"),
		Language:     str("en"),
		DeliveryDays: []string{"tue"},
		Samples:      []string{"Hello"},
	}

	first, err := acc.SaveStep(ctx, 7, models.DraftKindOnboarding, "", full)
	require.NoError(t, err)
	_, err = acc.Complete(ctx, first, 7, OnboardingRequiredFields)
	require.NoError(t, err)

	second, err := acc.SaveStep(ctx, 7, models.DraftKindOnboarding, "", full)
	require.NoError(t, err)
	_, err = acc.Complete(ctx, second, 7, OnboardingRequiredFields)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	d, err := acc.GetDraft(ctx, 7, models.DraftKindOnboarding)
	require.NoError(t, err)
	require.NotNil(t, d, "failed finalization rolls back and keeps the draft open")
	assert.Equal(t, second, d.ID)
}

func TestComplete_DispatchFailureDoesNotFailCompletion(t *testing.T) {
	acc, db, rec := newAccumulator(t)
	rec.err = errors.New("queue down")
	ctx := context.Background()

	id, err := acc.SaveStep(ctx, 7, models.DraftKindArticleStyle, "", Fields{
		Samples: []string{"One"}, Topics: []string{"Go"}, Name: str("Plain"),
	})
	require.NoError(t, err)

	entity, err := acc.Complete(ctx, id, 7, StyleRequiredFields)
	require.NoError(t, err)

	var style models.Style
	require.NoError(t, db.First(&style, entity.ID).Error)
	assert.Len(t, rec.Tasks(), 1)
}

func TestComplete_ForeignOwnerForbidden(t *testing.T) {
	acc, _, rec := newAccumulator(t)
	ctx := context.Background()

	id, err := acc.SaveStep(ctx, 7, models.DraftKindArticleStyle, "", Fields{
		Samples: []string{"One"}, Topics: []string{"Go"}, Name: str("Plain"),
	})
	require.NoError(t, err)

	_, err = acc.Complete(ctx, id, 9, StyleRequiredFields)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Empty(t, rec.Tasks())
}

func TestSaveStep_ResubmittedStepReplacesList(t *testing.T) {
	acc, _, _ := newAccumulator(t)
	ctx := context.Background()

	id, err := acc.SaveStep(ctx, 7, models.DraftKindArticleStyle, "", Fields{Samples: []string{"A", "B"}})
	require.NoError(t, err)
	_, err = acc.SaveStep(ctx, 7, models.DraftKindArticleStyle, id, Fields{Topics: []string{"x"}})
	require.NoError(t, err)
	_, err = acc.SaveStep(ctx, 7, models.DraftKindArticleStyle, id, Fields{Samples: []string{"C"}})
	require.NoError(t, err)

	d, err := acc.GetDraft(ctx, 7, models.DraftKindArticleStyle)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, d.Samples)
	assert.Equal(t, []string{"x"}, d.Topics)
}

// interleavingRepo runs before ahead of the wrapped write, simulating a
// concurrent request that lands between the accumulator's read and its write.
type interleavingRepo struct {
	repository.DraftRepository
	before func()
}

func (r *interleavingRepo) UpdateOpenFields(ctx context.Context, id string, userID uint, patch *models.Draft, columns []string) error {
	r.before()
	return r.DraftRepository.UpdateOpenFields(ctx, id, userID, patch, columns)
}

func (r *interleavingRepo) Finalize(ctx context.Context, id string, userID uint, create repository.EntityCreator) (uint, error) {
	r.before()
	return r.DraftRepository.Finalize(ctx, id, userID, create)
}

func TestSaveStep_DraftAbandonedMidStepIsNotFound(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	plain := NewAccumulator(repository.NewDraftRepository(db), &recordingDispatcher{}, nil)
	id, err := plain.SaveStep(ctx, 7, models.DraftKindArticleStyle, "", Fields{Samples: []string{"one"}})
	require.NoError(t, err)

	repo := &interleavingRepo{DraftRepository: repository.NewDraftRepository(db), before: func() {
		require.NoError(t, db.Model(&models.Draft{}).Where("id = ?", id).
			Updates(map[string]interface{}{"status": models.DraftStatusAbandoned, "open_slot": nil}).Error)
	}}
	acc := NewAccumulator(repo, &recordingDispatcher{}, nil)

	_, err = acc.SaveStep(ctx, 7, models.DraftKindArticleStyle, id, Fields{Topics: []string{"Go"}})
	assert.ErrorIs(t, err, ErrDraftNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSaveStep_UnchangedResubmissionSucceeds(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	plain := NewAccumulator(repository.NewDraftRepository(db), &recordingDispatcher{}, nil)
	id, err := plain.SaveStep(ctx, 7, models.DraftKindArticleStyle, "", Fields{Samples: []string{"one"}})
	require.NoError(t, err)

	// a write that matches nothing while the draft is still open must not read as a conflict
	acc := NewAccumulator(noRowsRepo{repository.NewDraftRepository(db)}, &recordingDispatcher{}, nil)

	got, err := acc.SaveStep(ctx, 7, models.DraftKindArticleStyle, id, Fields{Samples: []string{"one"}})
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

type noRowsRepo struct {
	repository.DraftRepository
}

func (noRowsRepo) UpdateOpenFields(context.Context, string, uint, *models.Draft, []string) error {
	return repository.ErrDraftNotOpen
}

func TestComplete_RequiredFieldsCheckedOnCommittedDraft(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	plain := NewAccumulator(repository.NewDraftRepository(db), &recordingDispatcher{}, nil)
	id, err := plain.SaveStep(ctx, 7, models.DraftKindArticleStyle, "", Fields{Samples: []string{"one"}})
	require.NoError(t, err)
	_, err = plain.SaveStep(ctx, 7, models.DraftKindArticleStyle, id, Fields{Topics: []string{"Go"}, Name: str("Weekly")})
	require.NoError(t, err)

	repo := &interleavingRepo{DraftRepository: repository.NewDraftRepository(db), before: func() {
		var d models.Draft
		require.NoError(t, db.First(&d, "id = ?", id).Error)
		d.Samples = []string{"   "}
		require.NoError(t, db.Model(&d).Select("samples").Updates(&d).Error)
	}}
	rec := &recordingDispatcher{}
	acc := NewAccumulator(repo, rec, nil)

	_, err = acc.Complete(ctx, id, 7, StyleRequiredFields)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, apperr.FieldsOf(err), "samples")
	assert.Empty(t, rec.Tasks())

	var count int64
	require.NoError(t, db.Model(&models.Style{}).Count(&count).Error)
	assert.Zero(t, count)
	d, err := plain.GetDraft(ctx, 7, models.DraftKindArticleStyle)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, models.DraftStatusOpen, d.Status)
}
