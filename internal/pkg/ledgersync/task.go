package ledgersync

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Scribefox/app/models"
)

// Op is the kind of change propagated to the external ledger
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Task identifies one ledger change. It carries ids only; the worker reloads
// the entity so the request path shares nothing mutable with the sync.
type Task struct {
	Op         Op     `json:"op"`
	EntityType string `json:"entity_type"`
	EntityID   uint   `json:"entity_id"`
	// UserID lets a profile update be addressed by owner when the caller
	// does not know the profile id (billing changes).
	UserID uint `json:"user_id,omitempty"`
}

func (t Task) String() string {
	return fmt.Sprintf("%s %s#%d (user %d)", t.Op, t.EntityType, t.EntityID, t.UserID)
}

// Validate checks that the task names a known entity and operation.
func (t Task) Validate() error {
	switch t.Op {
	case OpCreate, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("unknown ledger op %q", t.Op)
	}
	switch t.EntityType {
	case models.LedgerEntityStyle, models.LedgerEntityProfile:
	default:
		return fmt.Errorf("unknown ledger entity type %q", t.EntityType)
	}
	if t.EntityID == 0 && t.UserID == 0 {
		return fmt.Errorf("ledger task without entity or user id")
	}
	return nil
}

// Dispatcher hands a task to whatever executes it out of band.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, task Task) error

func (f DispatcherFunc) Dispatch(ctx context.Context, task Task) error {
	return f(ctx, task)
}

// Nop drops every task. Used when no ledger provider is configured.
var Nop Dispatcher = DispatcherFunc(func(context.Context, Task) error { return nil })

// Fire dispatches task and only logs a failure. The primary write path must
// never see a ledger problem.
func Fire(ctx context.Context, d Dispatcher, task Task) {
	if d == nil {
		return
	}
	if err := d.Dispatch(ctx, task); err != nil {
		log.Errorf("[LedgerSync] dispatch %s failed: %v", task, err)
	}
}
