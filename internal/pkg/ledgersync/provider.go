package ledgersync

import (
	"context"
	"errors"
)

// Provider is an external spreadsheet-like ledger. Row references are opaque
// strings owned by the provider.
type Provider interface {
	// AppendRow adds row to the given sheet ("" = main ledger) and returns its reference.
	AppendRow(ctx context.Context, subLedger string, row []string) (string, error)
	// CreateSubLedger creates a new sheet with a header row and returns its id.
	CreateSubLedger(ctx context.Context, name string, header []string) (string, error)
	UpdateRow(ctx context.Context, ref string, row []string) error
	DeleteRow(ctx context.Context, ref string) error
}

// ErrNoSubLedger is returned when a style is synced before its owner's profile.
var ErrNoSubLedger = errors.New("owner has no sub-ledger")
