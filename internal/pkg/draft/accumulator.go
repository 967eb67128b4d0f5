// Package draft accumulates multi-step wizard submissions and finalizes them
// into styles and onboarding profiles.
//
// Steps of the same draft are not locked against each other: each step writes
// only its own columns and the last write per column wins.
package draft

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Scribefox/app/models"
	"github.com/ManuelReschke/Scribefox/app/repository"
	"github.com/ManuelReschke/Scribefox/internal/pkg/apperr"
	"github.com/ManuelReschke/Scribefox/internal/pkg/database"
	"github.com/ManuelReschke/Scribefox/internal/pkg/ledgersync"
)

var (
	// ErrAlreadyFinalized is returned when completing or editing a finalized draft.
	ErrAlreadyFinalized = apperr.Conflict("draft", "draft already finalized")
	// ErrDraftNotFound is returned for unknown or abandoned drafts.
	ErrDraftNotFound = apperr.NotFound("draft", "draft not found")
)

// Accumulator merges step submissions into drafts and finalizes them.
type Accumulator struct {
	drafts     repository.DraftRepository
	finalizers map[string]Finalizer
	dispatcher ledgersync.Dispatcher
	newID      func() string
}

// NewAccumulator creates an accumulator. A nil finalizers map uses DefaultFinalizers.
func NewAccumulator(drafts repository.DraftRepository, dispatcher ledgersync.Dispatcher, finalizers map[string]Finalizer) *Accumulator {
	if finalizers == nil {
		finalizers = DefaultFinalizers()
	}
	if dispatcher == nil {
		dispatcher = ledgersync.Nop
	}
	return &Accumulator{
		drafts:     drafts,
		finalizers: finalizers,
		dispatcher: dispatcher,
		newID:      uuid.NewString,
	}
}

// SupportsKind reports whether kind has a finalizer.
func (a *Accumulator) SupportsKind(kind string) bool {
	_, ok := a.finalizers[kind]
	return ok
}

// SaveStep merges fields into the owner's draft and returns its id. Without a
// draftID a new draft is started and any open draft of the same kind is abandoned.
func (a *Accumulator) SaveStep(ctx context.Context, ownerID uint, kind, draftID string, fields Fields) (string, error) {
	const op = "draft.SaveStep"
	if !a.SupportsKind(kind) {
		return "", apperr.Validation(op, "kind")
	}

	if draftID == "" {
		return a.startDraft(ctx, ownerID, kind, fields)
	}

	d, err := a.load(ctx, op, draftID, ownerID)
	if err != nil {
		return "", err
	}
	if d.Kind != kind {
		return "", ErrDraftNotFound
	}
	if err := openState(d); err != nil {
		return "", err
	}

	patch, columns := fields.patch()
	if len(columns) == 0 {
		return d.ID, nil
	}
	if err := a.drafts.UpdateOpenFields(ctx, d.ID, ownerID, patch, columns); err != nil {
		if errors.Is(err, repository.ErrDraftNotOpen) {
			// zero rows: closed since our read, or (MySQL) nothing changed
			if err := a.recheckOpen(ctx, op, d.ID, ownerID); err != nil {
				return "", err
			}
			return d.ID, nil
		}
		return "", apperr.Unavailable(op, err)
	}
	return d.ID, nil
}

func (a *Accumulator) startDraft(ctx context.Context, ownerID uint, kind string, fields Fields) (string, error) {
	var err error
	// a concurrent first step can win the open-draft slot; the retry abandons it
	for attempt := 0; attempt < 2; attempt++ {
		d := &models.Draft{ID: a.newID(), UserID: ownerID, Kind: kind}
		fields.applyTo(d)
		if err = a.drafts.CreateReplacingOpen(ctx, d); err == nil {
			log.Debugf("[Draft] started %s draft %s for user %d", kind, d.ID, ownerID)
			return d.ID, nil
		}
		if !database.IsWriteConflict(err) {
			break
		}
	}
	return "", apperr.Unavailable("draft.SaveStep", err)
}

// GetDraft returns the owner's open draft of kind, or nil when there is none.
func (a *Accumulator) GetDraft(ctx context.Context, ownerID uint, kind string) (*models.Draft, error) {
	d, err := a.drafts.GetOpen(ctx, ownerID, kind)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Unavailable("draft.GetDraft", err)
	}
	return d, nil
}

// Complete finalizes the draft exactly once. Missing required fields leave the
// draft open. The ledger sync is dispatched after commit and never fails the call.
func (a *Accumulator) Complete(ctx context.Context, draftID string, ownerID uint, check RequiredFieldCheck) (*Entity, error) {
	const op = "draft.Complete"

	d, err := a.load(ctx, op, draftID, ownerID)
	if err != nil {
		return nil, err
	}
	if err := openState(d); err != nil {
		return nil, err
	}
	finalize, ok := a.finalizers[d.Kind]
	if !ok {
		return nil, apperr.Errorf(apperr.KindValidation, op, "draft kind %q cannot be finalized", d.Kind)
	}
	if check != nil {
		if missing := check(d); len(missing) > 0 {
			return nil, apperr.Validation(op, missing...)
		}
	}

	var entity *Entity
	_, err = a.drafts.Finalize(ctx, d.ID, ownerID, func(tx *gorm.DB) (uint, error) {
		// snapshot the draft as closed, including steps that landed after our read
		var closed models.Draft
		if err := tx.Where("id = ?", d.ID).First(&closed).Error; err != nil {
			return 0, err
		}
		if check != nil {
			if missing := check(&closed); len(missing) > 0 {
				return 0, apperr.Validation(op, missing...)
			}
		}
		e, err := finalize(tx, &closed)
		if err != nil {
			return 0, err
		}
		entity = e
		return e.ID, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDraftNotOpen):
			if err := a.recheckOpen(ctx, op, d.ID, ownerID); err != nil {
				return nil, err
			}
			return nil, ErrAlreadyFinalized
		case apperr.KindOf(err) == apperr.KindValidation:
			// a step landed after our read and emptied a required field
			return nil, err
		case database.IsDuplicateKey(err):
			return nil, apperr.Wrap(apperr.KindConflict, op, fmt.Errorf("%s already exists for user %d: %w", d.Kind, ownerID, err))
		default:
			return nil, apperr.Unavailable(op, err)
		}
	}

	log.Infof("[Draft] finalized %s draft %s into %s #%d", d.Kind, d.ID, entity.Type, entity.ID)
	ledgersync.Fire(ctx, a.dispatcher, ledgersync.Task{
		Op:         ledgersync.OpCreate,
		EntityType: entity.Type,
		EntityID:   entity.ID,
		UserID:     ownerID,
	})
	return entity, nil
}

func (a *Accumulator) load(ctx context.Context, op, draftID string, ownerID uint) (*models.Draft, error) {
	d, err := a.drafts.GetByID(ctx, draftID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDraftNotFound
		}
		return nil, apperr.Unavailable(op, err)
	}
	if d.UserID != ownerID {
		return nil, apperr.Forbidden(op, "draft belongs to another user")
	}
	return d, nil
}

// recheckOpen re-reads a draft a conditional write missed, so an abandoned
// draft reports not found and a finalized one reports a conflict.
func (a *Accumulator) recheckOpen(ctx context.Context, op, draftID string, ownerID uint) error {
	d, err := a.load(ctx, op, draftID, ownerID)
	if err != nil {
		return err
	}
	return openState(d)
}

func openState(d *models.Draft) error {
	switch d.Status {
	case models.DraftStatusOpen:
		return nil
	case models.DraftStatusFinalized:
		return ErrAlreadyFinalized
	default:
		return ErrDraftNotFound
	}
}
