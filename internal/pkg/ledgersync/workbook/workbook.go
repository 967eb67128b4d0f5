// Package workbook stores the external ledger in a local .xlsx workbook,
// optionally mirrored to S3. Row references have the form "<sheet>!<row>".
package workbook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/gofiber/fiber/v2/log"
	"github.com/xuri/excelize/v2"

	"github.com/ManuelReschke/Scribefox/internal/pkg/ledgersync"
	"github.com/ManuelReschke/Scribefox/internal/pkg/s3backup"
)

const (
	lockKey = "lock:ledger:workbook"
	lockTTL = 30 * time.Second
	maxSheetName = ledgersync.MaxSheetName
)

// Mirror copies the workbook to and from remote storage.
type Mirror interface {
	UploadFile(ctx context.Context, localFilePath string) error
	DownloadFile(ctx context.Context, localFilePath string) error
}

// Provider is a ledgersync.Provider on an excelize workbook.
type Provider struct {
	path      string
	mainSheet string
	locker    *redislock.Client
	mirror    Mirror
	mu        sync.Mutex
}

var _ ledgersync.Provider = (*Provider)(nil)

// Option customizes a Provider.
type Option func(*Provider)

// WithLocker serializes writers across processes with a Redis lock.
func WithLocker(l *redislock.Client) Option {
	return func(p *Provider) { p.locker = l }
}

// WithMirror restores the workbook before and uploads it after every write, so
// several processes sharing the mirror and the Redis lock see one ledger.
func WithMirror(m Mirror) Option {
	return func(p *Provider) { p.mirror = m }
}

// New creates a workbook provider writing to path.
func New(ctx context.Context, path, mainSheet string, opts ...Option) (*Provider, error) {
	if path == "" {
		return nil, errors.New("workbook path is empty")
	}
	if mainSheet == "" {
		mainSheet = "Main"
	}
	p := &Provider{path: path, mainSheet: sanitizeSheetName(mainSheet)}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Provider) AppendRow(ctx context.Context, subLedger string, row []string) (string, error) {
	sheet := p.mainSheet
	if subLedger != "" {
		sheet = subLedger
	}
	var ref string
	err := p.withWorkbook(ctx, func(f *excelize.File) error {
		idx, err := f.GetSheetIndex(sheet)
		if err != nil {
			return err
		}
		if idx < 0 {
			return fmt.Errorf("sheet %q does not exist", sheet)
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return err
		}
		n := len(rows) + 1
		if err := setRow(f, sheet, n, row); err != nil {
			return err
		}
		ref = formatRef(sheet, n)
		return nil
	})
	return ref, err
}

func (p *Provider) CreateSubLedger(ctx context.Context, name string, header []string) (string, error) {
	sheet := sanitizeSheetName(name)
	err := p.withWorkbook(ctx, func(f *excelize.File) error {
		idx, err := f.GetSheetIndex(sheet)
		if err != nil {
			return err
		}
		if idx >= 0 {
			// already created by an earlier partial attempt
			return nil
		}
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		return setRow(f, sheet, 1, header)
	})
	if err != nil {
		return "", err
	}
	return sheet, nil
}

func (p *Provider) UpdateRow(ctx context.Context, ref string, row []string) error {
	sheet, n, err := parseRef(ref)
	if err != nil {
		return err
	}
	return p.withWorkbook(ctx, func(f *excelize.File) error {
		if err := clearRow(f, sheet, n); err != nil {
			return err
		}
		return setRow(f, sheet, n, row)
	})
}

// DeleteRow blanks the row so references to later rows stay valid.
func (p *Provider) DeleteRow(ctx context.Context, ref string) error {
	sheet, n, err := parseRef(ref)
	if err != nil {
		return err
	}
	return p.withWorkbook(ctx, func(f *excelize.File) error {
		return clearRow(f, sheet, n)
	})
}

// withWorkbook runs fn on the opened workbook under the process mutex and,
// when configured, the Redis lock. With a mirror the remote copy is pulled
// first and pushed after the save, both while the lock is held.
func (p *Provider) withWorkbook(ctx context.Context, fn func(f *excelize.File) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.locker != nil {
		lock, err := p.locker.Obtain(ctx, lockKey, lockTTL, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(200*time.Millisecond), 25),
		})
		if err != nil {
			if errors.Is(err, redislock.ErrNotObtained) {
				return fmt.Errorf("workbook is locked by another writer: %w", err)
			}
			return fmt.Errorf("obtain workbook lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				log.Warnf("[LedgerSync] release workbook lock: %v", err)
			}
		}()
	}

	if p.mirror != nil {
		if err := p.mirror.DownloadFile(ctx, p.path); err != nil && !errors.Is(err, s3backup.ErrObjectNotFound) {
			return fmt.Errorf("restore workbook: %w", err)
		}
	}

	f, err := p.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	if err := f.SaveAs(p.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	if p.mirror != nil {
		if err := p.mirror.UploadFile(ctx, p.path); err != nil {
			return fmt.Errorf("mirror workbook: %w", err)
		}
	}
	return nil
}

func (p *Provider) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(p.path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	f = excelize.NewFile()
	if err := f.SetSheetName("Sheet1", p.mainSheet); err != nil {
		return nil, err
	}
	if err := setRow(f, p.mainSheet, 1, ledgersync.MainHeader); err != nil {
		return nil, err
	}
	return f, nil
}

func setRow(f *excelize.File, sheet string, n int, row []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func clearRow(f *excelize.File, sheet string, n int) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return err
	}
	if n > len(rows) {
		return nil
	}
	return setRow(f, sheet, n, make([]string, len(rows[n-1])))
}

func formatRef(sheet string, n int) string {
	return sheet + "!" + strconv.Itoa(n)
}

func parseRef(ref string) (string, int, error) {
	i := strings.LastIndex(ref, "!")
	if i <= 0 {
		return "", 0, fmt.Errorf("invalid workbook reference %q", ref)
	}
	n, err := strconv.Atoi(ref[i+1:])
	if err != nil || n < 2 {
		return "", 0, fmt.Errorf("invalid workbook reference %q", ref)
	}
	return ref[:i], n, nil
}

func sanitizeSheetName(name string) string {
	r := strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")", "'", "")
	name = strings.TrimSpace(r.Replace(name))
	if name == "" {
		name = "Sheet"
	}
	if len([]rune(name)) > maxSheetName {
		name = string([]rune(name)[:maxSheetName])
	}
	return name
}
