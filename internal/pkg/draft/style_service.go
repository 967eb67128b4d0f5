package draft

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Scribefox/app/models"
	"github.com/ManuelReschke/Scribefox/app/repository"
	"github.com/ManuelReschke/Scribefox/internal/pkg/apperr"
	"github.com/ManuelReschke/Scribefox/internal/pkg/ledgersync"
)

// StyleUpdate is a partial edit of a finalized style. Nil means unchanged.
type StyleUpdate struct {
	Name     *string
	Language *string
	Samples  []string
	Topics   []string
}

// StyleService edits and deletes finalized styles and mirrors the change to the ledger.
type StyleService struct {
	styles     repository.StyleRepository
	dispatcher ledgersync.Dispatcher
}

func NewStyleService(styles repository.StyleRepository, dispatcher ledgersync.Dispatcher) *StyleService {
	if dispatcher == nil {
		dispatcher = ledgersync.Nop
	}
	return &StyleService{styles: styles, dispatcher: dispatcher}
}

// List returns the owner's styles, newest first.
func (s *StyleService) List(ctx context.Context, ownerID uint) ([]models.Style, error) {
	styles, err := s.styles.ListByUserID(ctx, ownerID)
	if err != nil {
		return nil, apperr.Unavailable("style.List", err)
	}
	return styles, nil
}

// Update applies u to the owner's style and returns the stored result.
func (s *StyleService) Update(ctx context.Context, ownerID, styleID uint, u StyleUpdate) (*models.Style, error) {
	const op = "style.Update"
	if _, err := s.owned(ctx, op, ownerID, styleID); err != nil {
		return nil, err
	}

	patch, columns, err := u.patch()
	if err != nil {
		return nil, err
	}
	if len(columns) > 0 {
		if err := s.styles.UpdateFields(ctx, styleID, patch, columns); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.NotFound(op, "style not found")
			}
			return nil, apperr.Unavailable(op, err)
		}
		ledgersync.Fire(ctx, s.dispatcher, ledgersync.Task{
			Op:         ledgersync.OpUpdate,
			EntityType: models.LedgerEntityStyle,
			EntityID:   styleID,
			UserID:     ownerID,
		})
	}

	updated, err := s.styles.GetByID(ctx, styleID)
	if err != nil {
		return nil, apperr.Unavailable(op, err)
	}
	return updated, nil
}

// Delete removes the owner's style.
func (s *StyleService) Delete(ctx context.Context, ownerID, styleID uint) error {
	const op = "style.Delete"
	if _, err := s.owned(ctx, op, ownerID, styleID); err != nil {
		return err
	}
	if err := s.styles.Delete(ctx, styleID); err != nil {
		return apperr.Unavailable(op, err)
	}
	ledgersync.Fire(ctx, s.dispatcher, ledgersync.Task{
		Op:         ledgersync.OpDelete,
		EntityType: models.LedgerEntityStyle,
		EntityID:   styleID,
		UserID:     ownerID,
	})
	return nil
}

func (s *StyleService) owned(ctx context.Context, op string, ownerID, styleID uint) (*models.Style, error) {
	style, err := s.styles.GetByID(ctx, styleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "style not found")
		}
		return nil, apperr.Unavailable(op, err)
	}
	if style.UserID != ownerID {
		return nil, apperr.Forbidden(op, "style belongs to another user")
	}
	return style, nil
}

func (u StyleUpdate) patch() (*models.Style, []string, error) {
	p := &models.Style{}
	var columns, invalid []string
	if u.Name != nil {
		p.Name = strings.TrimSpace(*u.Name)
		if p.Name == "" {
			invalid = append(invalid, "name")
		}
		columns = append(columns, "name")
	}
	if u.Language != nil {
		p.Language = strings.ToLower(strings.TrimSpace(*u.Language))
		columns = append(columns, "language")
	}
	if u.Samples != nil {
		d := models.Draft{Samples: u.Samples}
		p.Samples = d.NonEmptySamples()
		if len(p.Samples) == 0 {
			invalid = append(invalid, "samples")
		}
		columns = append(columns, "samples")
	}
	if u.Topics != nil {
		p.Topics = uniqueTrimmed(u.Topics)
		if len(p.Topics) == 0 {
			invalid = append(invalid, "topics")
		}
		columns = append(columns, "topics")
	}
	if len(invalid) > 0 {
		return nil, nil, apperr.Validation("style.Update", invalid...)
	}
	return p, columns, nil
}
