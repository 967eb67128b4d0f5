package main

import (
	"context"
	"fmt"

	"github.com/bsm/redislock"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/Scribefox/internal/pkg/env"
	"github.com/ManuelReschke/Scribefox/internal/pkg/ledgersync"
	"github.com/ManuelReschke/Scribefox/internal/pkg/ledgersync/sheets"
	"github.com/ManuelReschke/Scribefox/internal/pkg/ledgersync/workbook"
	"github.com/ManuelReschke/Scribefox/internal/pkg/s3backup"
)

// newLedgerProvider selects the external ledger from LEDGER_PROVIDER.
// "none" returns a nil provider and disables ledger sync.
func newLedgerProvider(ctx context.Context, rdb *redis.Client) (ledgersync.Provider, error) {
	switch kind := env.GetEnv("LEDGER_PROVIDER", "none"); kind {
	case "none", "":
		log.Info("[LedgerSync] disabled")
		return nil, nil
	case "sheets":
		p, err := sheets.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("sheets ledger: %w", err)
		}
		log.Info("[LedgerSync] using Google Sheets ledger")
		return p, nil
	case "workbook":
		opts := []workbook.Option{workbook.WithLocker(redislock.New(rdb))}
		cfg, err := s3backup.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("ledger mirror config: %w", err)
		}
		if cfg.IsEnabled() {
			mirror, err := s3backup.NewClient(ctx, cfg)
			if err != nil {
				return nil, err
			}
			opts = append(opts, workbook.WithMirror(mirror))
		}
		p, err := workbook.New(ctx, env.GetEnv("LEDGER_WORKBOOK_PATH", "data/ledger.xlsx"), env.GetEnv("LEDGER_MAIN_SHEET", "Main"), opts...)
		if err != nil {
			return nil, fmt.Errorf("workbook ledger: %w", err)
		}
		log.Info("[LedgerSync] using workbook ledger")
		return p, nil
	default:
		return nil, fmt.Errorf("unknown LEDGER_PROVIDER %q", kind)
	}
}
