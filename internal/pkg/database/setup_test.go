package database

import (
	"errors"
	"fmt"
	"testing"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Scribefox/app/models"
)

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, IsDuplicateKey(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKey(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsDuplicateKey(fmt.Errorf("insert: %w", &mysqldrv.MySQLError{Number: 1062, Message: "Duplicate entry '1' for key 'user_id'"})))
	assert.True(t, IsDuplicateKey(errors.New("UNIQUE constraint failed: drafts.id")))
	assert.False(t, IsDuplicateKey(&mysqldrv.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}))
	// MySQL errors are matched by number, never by their text
	assert.False(t, IsDuplicateKey(&mysqldrv.MySQLError{Number: 1452, Message: "UNIQUE constraint failed"}))
	assert.False(t, IsDuplicateKey(errors.New("connection refused")))
	assert.False(t, IsDuplicateKey(nil))
}

func TestIsWriteConflict(t *testing.T) {
	assert.True(t, IsWriteConflict(&mysqldrv.MySQLError{Number: 1213}))
	assert.True(t, IsWriteConflict(fmt.Errorf("tx: %w", &mysqldrv.MySQLError{Number: 1205})))
	assert.True(t, IsWriteConflict(&mysqldrv.MySQLError{Number: 1062}))
	assert.True(t, IsWriteConflict(gorm.ErrDuplicatedKey))
	assert.False(t, IsWriteConflict(&mysqldrv.MySQLError{Number: 1146}))
	assert.False(t, IsWriteConflict(errors.New("connection refused")))
	assert.False(t, IsWriteConflict(nil))
}

func TestOpenSQLite_MigratesAllModels(t *testing.T) {
	db, err := OpenSQLite("file:setup_test?mode=memory&cache=shared")
	require.NoError(t, err)

	for _, m := range Models() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}

	// closed drafts do not collide on the open-draft index
	open := "open"
	require.NoError(t, db.Create(&models.Draft{ID: "a", UserID: 1, Kind: models.DraftKindOnboarding, Status: models.DraftStatusAbandoned}).Error)
	require.NoError(t, db.Create(&models.Draft{ID: "b", UserID: 1, Kind: models.DraftKindOnboarding, Status: models.DraftStatusAbandoned}).Error)
	require.NoError(t, db.Create(&models.Draft{ID: "c", UserID: 1, Kind: models.DraftKindOnboarding, OpenSlot: &open}).Error)
	err = db.Create(&models.Draft{ID: "d", UserID: 1, Kind: models.DraftKindOnboarding, OpenSlot: &open}).Error
	assert.True(t, IsDuplicateKey(err))
}
