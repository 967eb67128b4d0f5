// Package sheets stores the external ledger in a Google Sheets spreadsheet.
// Row references are A1 ranges as reported by the Sheets API.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ManuelReschke/Scribefox/internal/pkg/env"
	"github.com/ManuelReschke/Scribefox/internal/pkg/ledgersync"
)

const valueInputRaw = "RAW"

// Provider is a ledgersync.Provider on one spreadsheet.
type Provider struct {
	svc           *sheets.Service
	spreadsheetID string
	mainSheet     string
}

var _ ledgersync.Provider = (*Provider)(nil)

// New creates a provider. opts are passed to the Sheets client, so tests can
// point it at a fake endpoint.
func New(ctx context.Context, spreadsheetID, mainSheet string, opts ...option.ClientOption) (*Provider, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id is empty")
	}
	if mainSheet == "" {
		mainSheet = "Main"
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Provider{svc: svc, spreadsheetID: spreadsheetID, mainSheet: mainSheet}, nil
}

// NewFromEnv builds the provider from LEDGER_SPREADSHEET_ID, LEDGER_MAIN_SHEET
// and GOOGLE_CREDENTIALS_FILE. Without a credentials file the application
// default credentials are used.
func NewFromEnv(ctx context.Context) (*Provider, error) {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if file := env.GetEnv("GOOGLE_CREDENTIALS_FILE", ""); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	return New(ctx, env.GetEnv("LEDGER_SPREADSHEET_ID", ""), env.GetEnv("LEDGER_MAIN_SHEET", "Main"), opts...)
}

func (p *Provider) AppendRow(ctx context.Context, subLedger string, row []string) (string, error) {
	sheet := p.mainSheet
	if subLedger != "" {
		sheet = subLedger
	}
	resp, err := p.svc.Spreadsheets.Values.
		Append(p.spreadsheetID, quoteSheet(sheet)+"!A1", valueRange(row)).
		ValueInputOption(valueInputRaw).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", wrapAPIError("append row", err)
	}
	if resp.Updates == nil || resp.Updates.UpdatedRange == "" {
		return "", errors.New("append row: response carries no updated range")
	}
	return resp.Updates.UpdatedRange, nil
}

// CreateSubLedger adds a sheet titled name and writes header into its first
// row. The returned id is the sheet title, which A1 ranges address. A sheet
// left behind by an earlier partial attempt is reused.
func (p *Provider) CreateSubLedger(ctx context.Context, name string, header []string) (string, error) {
	exists, err := p.hasSheet(ctx, name)
	if err != nil {
		return "", err
	}
	title := name
	if !exists {
		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: name},
				},
			}},
		}
		resp, err := p.svc.Spreadsheets.BatchUpdate(p.spreadsheetID, req).Context(ctx).Do()
		if err != nil {
			return "", wrapAPIError("add sheet", err)
		}
		if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
			title = resp.Replies[0].AddSheet.Properties.Title
		}
	}

	_, err = p.svc.Spreadsheets.Values.
		Update(p.spreadsheetID, quoteSheet(title)+"!A1", valueRange(header)).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return "", wrapAPIError("write header", err)
	}
	if exists {
		log.Infof("[LedgerSync] reused sub-ledger %q", title)
	} else {
		log.Infof("[LedgerSync] created sub-ledger %q", title)
	}
	return title, nil
}

func (p *Provider) hasSheet(ctx context.Context, title string) (bool, error) {
	doc, err := p.svc.Spreadsheets.Get(p.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return false, wrapAPIError("list sheets", err)
	}
	for _, sh := range doc.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func (p *Provider) UpdateRow(ctx context.Context, ref string, row []string) error {
	_, err := p.svc.Spreadsheets.Values.
		Update(p.spreadsheetID, ref, valueRange(row)).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	return wrapAPIError("update row", err)
}

// DeleteRow clears the referenced range. Rows are not removed so that the
// references of later rows stay valid.
func (p *Provider) DeleteRow(ctx context.Context, ref string) error {
	_, err := p.svc.Spreadsheets.Values.
		Clear(p.spreadsheetID, ref, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	return wrapAPIError("clear row", err)
}

func valueRange(row []string) *sheets.ValueRange {
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	return &sheets.ValueRange{Values: [][]interface{}{values}}
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func wrapAPIError(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("%s: status=%d message=%s: %w", op, gerr.Code, gerr.Message, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
