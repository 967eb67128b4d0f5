package jobqueue

import (
	"context"
	"fmt"

	"github.com/ManuelReschke/Scribefox/internal/pkg/ledgersync"
)

// LedgerSyncer executes a ledger sync task
type LedgerSyncer interface {
	Handle(ctx context.Context, task ledgersync.Task) error
}

// NewLedgerSyncHandler adapts a LedgerSyncer to a job handler
func NewLedgerSyncHandler(syncer LedgerSyncer) Handler {
	return func(ctx context.Context, job *Job) error {
		payload, err := LedgerSyncJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid ledger sync payload: %w", err)
		}
		return syncer.Handle(ctx, payload.Task())
	}
}
