package workbook

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ManuelReschke/Scribefox/app/models"
	"github.com/ManuelReschke/Scribefox/internal/pkg/ledgersync"
	"github.com/ManuelReschke/Scribefox/internal/pkg/s3backup"
)

type recordingMirror struct {
	uploads int
}

func (m *recordingMirror) UploadFile(context.Context, string) error {
	m.uploads++
	return nil
}

func (m *recordingMirror) DownloadFile(context.Context, string) error {
	return s3backup.ErrObjectNotFound
}

func readRows(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestProvider_AppendCreatesWorkbookWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	mirror := &recordingMirror{}
	p, err := New(context.Background(), path, "Main", WithMirror(mirror))
	require.NoError(t, err)

	ref, err := p.AppendRow(context.Background(), "", []string{"Ada #1", "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Main!2", ref)

	ref, err = p.AppendRow(context.Background(), "", []string{"Bob #2", "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "Main!3", ref)

	rows := readRows(t, path, "Main")
	require.Len(t, rows, 3)
	assert.Equal(t, ledgersync.MainHeader, rows[0])
	assert.Equal(t, []string{"Bob #2", "Bob"}, rows[2])
	assert.Equal(t, 2, mirror.uploads)
}

func TestProvider_SubLedgerLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	p, err := New(context.Background(), path, "Main")
	require.NoError(t, err)
	ctx := context.Background()

	sheet, err := p.CreateSubLedger(ctx, "Ada #1", ledgersync.StyleHeader)
	require.NoError(t, err)
	assert.Equal(t, "Ada #1", sheet)

	again, err := p.CreateSubLedger(ctx, "Ada #1", ledgersync.StyleHeader)
	require.NoError(t, err)
	assert.Equal(t, sheet, again)

	ref, err := p.AppendRow(ctx, sheet, []string{"Weekly", "en"})
	require.NoError(t, err)
	second, err := p.AppendRow(ctx, sheet, []string{"Daily", "de"})
	require.NoError(t, err)

	require.NoError(t, p.UpdateRow(ctx, ref, []string{"Weekly v2", "en"}))
	require.NoError(t, p.DeleteRow(ctx, second))

	rows := readRows(t, path, sheet)
	assert.Equal(t, ledgersync.StyleHeader, rows[0])
	assert.Equal(t, []string{"Weekly v2", "en"}, rows[1])
	// blanked rows keep their position
	assert.Equal(t, "Ada #1!3", second)
}

func TestProvider_AppendToUnknownSheetFails(t *testing.T) {
	p, err := New(context.Background(), filepath.Join(t.TempDir(), "l.xlsx"), "Main")
	require.NoError(t, err)
	_, err = p.AppendRow(context.Background(), "nope", []string{"x"})
	assert.Error(t, err)
}

func TestParseRef(t *testing.T) {
	sheet, n, err := parseRef("Ada #1!7")
	require.NoError(t, err)
	assert.Equal(t, "Ada #1", sheet)
	assert.Equal(t, 7, n)

	_, _, err = parseRef("Main!1")
	assert.Error(t, err)
	_, _, err = parseRef("garbage")
	assert.Error(t, err)
}

func TestSanitizeSheetName(t *testing.T) {
	assert.Equal(t, "a b (c)", sanitizeSheetName("a/b [c]"))
	assert.Len(t, []rune(sanitizeSheetName("this name is definitely longer than thirty one")), maxSheetName)
	assert.Equal(t, "Sheet", sanitizeSheetName("  "))
}

func TestProvider_LongCustomerNamesGetSeparateSubLedgers(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	p, err := New(ctx, path, "Main")
	require.NoError(t, err)

	const long = "Alexandra Konstantinopoulou-Smith"
	first, err := p.CreateSubLedger(ctx, ledgersync.SheetName(&models.OnboardingProfile{ID: 1, Name: long}), ledgersync.StyleHeader)
	require.NoError(t, err)
	second, err := p.CreateSubLedger(ctx, ledgersync.SheetName(&models.OnboardingProfile{ID: 2, Name: long}), ledgersync.StyleHeader)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = p.AppendRow(ctx, first, []string{"Weekly"})
	require.NoError(t, err)
	assert.Len(t, readRows(t, path, first), 2)
	assert.Len(t, readRows(t, path, second), 1)
}

// sharedMirror keeps one remote copy in memory, standing in for the bucket
// several processes mirror to.
type sharedMirror struct {
	data []byte
}

func (m *sharedMirror) UploadFile(_ context.Context, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m.data = b
	return nil
}

func (m *sharedMirror) DownloadFile(_ context.Context, path string) error {
	if m.data == nil {
		return s3backup.ErrObjectNotFound
	}
	return os.WriteFile(path, m.data, 0o644)
}

func TestProvider_MirrorIsRestoredBeforeEachWrite(t *testing.T) {
	ctx := context.Background()
	remote := &sharedMirror{}
	first, err := New(ctx, filepath.Join(t.TempDir(), "ledger.xlsx"), "Main", WithMirror(remote))
	require.NoError(t, err)
	secondPath := filepath.Join(t.TempDir(), "ledger.xlsx")
	second, err := New(ctx, secondPath, "Main", WithMirror(remote))
	require.NoError(t, err)

	ref, err := first.AppendRow(ctx, "", []string{"Ada #1"})
	require.NoError(t, err)
	assert.Equal(t, "Main!2", ref)

	ref, err = second.AppendRow(ctx, "", []string{"Bob #2"})
	require.NoError(t, err)
	assert.Equal(t, "Main!3", ref)

	rows := readRows(t, secondPath, "Main")
	require.Len(t, rows, 3)
	assert.Equal(t, "Ada #1", rows[1][0])
	assert.Equal(t, "Bob #2", rows[2][0])
}
