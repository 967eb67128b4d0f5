package ledgersync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Scribefox/app/models"
	"github.com/ManuelReschke/Scribefox/app/repository"
	"github.com/ManuelReschke/Scribefox/internal/pkg/apperr"
	"github.com/ManuelReschke/Scribefox/internal/pkg/metrics/counter"
)

// Service projects domain entities onto the external ledger and keeps the
// reference ledger in step. It runs on queue workers, never on the request path.
type Service struct {
	store    Store
	refs     repository.LedgerReferenceRepository
	provider Provider
	metrics  *counter.Recorder
	now      func() time.Time
}

// NewService creates a ledger sync service. metrics may be nil.
func NewService(store Store, refs repository.LedgerReferenceRepository, provider Provider, metrics *counter.Recorder) *Service {
	return &Service{
		store:    store,
		refs:     refs,
		provider: provider,
		metrics:  metrics,
		now:      time.Now,
	}
}

// NewServiceFromDB wires the service on the application database.
func NewServiceFromDB(db *gorm.DB, provider Provider, metrics *counter.Recorder) *Service {
	return NewService(NewGormStore(db), repository.NewLedgerReferenceRepository(db), provider, metrics)
}

// Handle runs task once. Any failure is logged with full context and returned
// wrapped as sync_degraded so the worker can record it.
func (s *Service) Handle(ctx context.Context, task Task) error {
	if err := task.Validate(); err != nil {
		return apperr.Wrap(apperr.KindValidation, "ledgersync.Handle", err)
	}

	var err error
	switch task.Op {
	case OpCreate:
		err = s.SyncCreate(ctx, task)
	case OpUpdate:
		err = s.SyncUpdate(ctx, task)
	case OpDelete:
		err = s.SyncDelete(ctx, task)
	}

	outcome := counter.OutcomeOK
	if err != nil {
		outcome = counter.OutcomeFailed
		if errors.Is(err, errSkipped) {
			outcome = counter.OutcomeSkipped
			err = nil
		}
	}
	s.metrics.LedgerSync(string(task.Op), task.EntityType, outcome)
	if err != nil {
		log.Errorf("[LedgerSync] %s %s id=%d user=%d failed: %v", task.Op, task.EntityType, task.EntityID, task.UserID, err)
		return apperr.SyncDegraded("ledgersync."+string(task.Op), err)
	}
	return nil
}

// errSkipped marks a task that had nothing to do (entity or reference gone).
var errSkipped = errors.New("nothing to sync")

// SyncCreate appends the entity to the ledger and records its reference.
func (s *Service) SyncCreate(ctx context.Context, task Task) error {
	switch task.EntityType {
	case models.LedgerEntityProfile:
		p, err := s.loadProfile(ctx, task)
		if err != nil {
			return err
		}
		return s.createProfile(ctx, p)
	case models.LedgerEntityStyle:
		st, err := s.store.GetStyle(ctx, task.EntityID)
		if err != nil {
			return skipIfMissing(err)
		}
		return s.createStyle(ctx, st)
	}
	return fmt.Errorf("unsupported entity type %q", task.EntityType)
}

// SyncUpdate rewrites the entity's row. Without a reference it falls back to create.
func (s *Service) SyncUpdate(ctx context.Context, task Task) error {
	switch task.EntityType {
	case models.LedgerEntityProfile:
		p, err := s.loadProfile(ctx, task)
		if err != nil {
			return err
		}
		ref, err := s.reference(ctx, models.LedgerEntityProfile, p.ID)
		if err != nil {
			return err
		}
		if ref == nil || ref.RowRef == "" || ref.SubLedgerID == "" {
			return s.createProfile(ctx, p)
		}
		sub, err := s.store.GetSubscription(ctx, p.UserID)
		if err != nil {
			return err
		}
		if err := s.provider.UpdateRow(ctx, ref.RowRef, MainRow(p, sub)); err != nil {
			return err
		}
		return s.saveRef(ctx, ref, OpUpdate)
	case models.LedgerEntityStyle:
		st, err := s.store.GetStyle(ctx, task.EntityID)
		if err != nil {
			return skipIfMissing(err)
		}
		ref, err := s.reference(ctx, models.LedgerEntityStyle, st.ID)
		if err != nil {
			return err
		}
		if ref == nil || ref.RowRef == "" {
			return s.createStyle(ctx, st)
		}
		if err := s.provider.UpdateRow(ctx, ref.RowRef, StyleRow(st)); err != nil {
			return err
		}
		return s.saveRef(ctx, ref, OpUpdate)
	}
	return fmt.Errorf("unsupported entity type %q", task.EntityType)
}

// SyncDelete removes the entity's row. Without a reference there is nothing to do.
func (s *Service) SyncDelete(ctx context.Context, task Task) error {
	ref, err := s.reference(ctx, task.EntityType, task.EntityID)
	if err != nil {
		return err
	}
	if ref == nil || ref.RowRef == "" {
		return errSkipped
	}
	if err := s.provider.DeleteRow(ctx, ref.RowRef); err != nil {
		return err
	}
	return s.refs.Delete(ctx, task.EntityType, task.EntityID)
}

// createProfile resumes from whatever an earlier attempt already wrote: an
// existing main row is rewritten in place and the sub-ledger is only created
// when it is still missing.
func (s *Service) createProfile(ctx context.Context, p *models.OnboardingProfile) error {
	ref, err := s.reference(ctx, models.LedgerEntityProfile, p.ID)
	if err != nil {
		return err
	}
	if ref == nil {
		ref = &models.LedgerReference{EntityType: models.LedgerEntityProfile, EntityID: p.ID}
	}
	sub, err := s.store.GetSubscription(ctx, p.UserID)
	if err != nil {
		return err
	}

	row := MainRow(p, sub)
	if ref.RowRef == "" {
		rowRef, err := s.provider.AppendRow(ctx, "", row)
		if err != nil {
			return fmt.Errorf("append main row: %w", err)
		}
		ref.RowRef = rowRef
	} else if err := s.provider.UpdateRow(ctx, ref.RowRef, row); err != nil {
		return fmt.Errorf("update main row: %w", err)
	}

	if ref.SubLedgerID == "" {
		subLedger, err := s.provider.CreateSubLedger(ctx, SheetName(p), StyleHeader)
		if err != nil {
			// keep the main row reference so a retry does not append a second row
			if saveErr := s.saveRef(ctx, ref, OpCreate); saveErr != nil {
				log.Errorf("[LedgerSync] saving partial reference for profile %d: %v", p.ID, saveErr)
			}
			return fmt.Errorf("create sub-ledger: %w", err)
		}
		ref.SubLedgerID = subLedger
	}
	return s.saveRef(ctx, ref, OpCreate)
}

func (s *Service) createStyle(ctx context.Context, st *models.Style) error {
	owner, err := s.store.GetProfileByUser(ctx, st.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoSubLedger
		}
		return err
	}
	ownerRef, err := s.reference(ctx, models.LedgerEntityProfile, owner.ID)
	if err != nil {
		return err
	}
	if ownerRef == nil || ownerRef.SubLedgerID == "" {
		return ErrNoSubLedger
	}

	rowRef, err := s.provider.AppendRow(ctx, ownerRef.SubLedgerID, StyleRow(st))
	if err != nil {
		return fmt.Errorf("append style row: %w", err)
	}
	return s.saveRef(ctx, &models.LedgerReference{
		EntityType:  models.LedgerEntityStyle,
		EntityID:    st.ID,
		RowRef:      rowRef,
		SubLedgerID: ownerRef.SubLedgerID,
	}, OpCreate)
}

func (s *Service) loadProfile(ctx context.Context, task Task) (*models.OnboardingProfile, error) {
	var (
		p   *models.OnboardingProfile
		err error
	)
	if task.EntityID != 0 {
		p, err = s.store.GetProfile(ctx, task.EntityID)
	} else {
		p, err = s.store.GetProfileByUser(ctx, task.UserID)
	}
	if err != nil {
		return nil, skipIfMissing(err)
	}
	return p, nil
}

func (s *Service) reference(ctx context.Context, entityType string, id uint) (*models.LedgerReference, error) {
	ref, err := s.refs.Get(ctx, entityType, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return ref, nil
}

func (s *Service) saveRef(ctx context.Context, ref *models.LedgerReference, op Op) error {
	ref.LastOp = string(op)
	ref.SyncedAt = s.now().UTC()
	if err := s.refs.Upsert(ctx, ref); err != nil {
		return fmt.Errorf("save reference: %w", err)
	}
	return nil
}

func skipIfMissing(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errSkipped
	}
	return err
}
