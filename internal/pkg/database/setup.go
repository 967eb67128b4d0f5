package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Scribefox/app/models"
	"github.com/ManuelReschke/Scribefox/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// Models lists every table owned by the application, in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.UserSettings{},
		&models.Draft{},
		&models.Style{},
		&models.OnboardingProfile{},
		&models.LedgerReference{},
		&models.BillingAccount{},
		&models.BillingPlanMapping{},
		&models.BillingSubscription{},
		&models.BillingWebhookEvent{},
	}
}

// AutoMigrate creates or updates all application tables on db.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		// duplicate-key errors surface as gorm.ErrDuplicatedKey for the upsert retry
		TranslateError: true,
	}
}

// OpenSQLite opens a pure-Go SQLite database and migrates it. Used for local
// development (DB_DRIVER=sqlite) and by tests with an in-memory DSN.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return db, nil
}

// Connect opens the configured database, retrying while a MySQL server comes up.
func Connect() (*gorm.DB, error) {
	if env.GetEnv("DB_DRIVER", "mysql") == "sqlite" {
		path := env.GetEnv("DB_SQLITE_PATH", "scribefox.db")
		log.Infof("[Database] Using SQLite at %s", path)
		return OpenSQLite(path)
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn,
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), gormConfig())
		if err == nil {
			if env.GetBool("DB_AUTOMIGRATE", true) {
				if mErr := AutoMigrate(db); mErr != nil {
					return nil, fmt.Errorf("auto migrate: %w", mErr)
				}
			}
			return db, nil
		}

		log.Warnf("[Database] Failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, err
}

// MySQL server error numbers the write paths react to.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// IsDuplicateKey reports whether err is a unique-constraint violation.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if code, ok := mysqlErrorNumber(err); ok {
		return code == mysqlDuplicateEntry
	}
	// sqlite only: the pure-Go driver reports constraint failures as plain text
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsWriteConflict reports whether a transaction lost a race with a concurrent
// writer and can be run again as a whole: a duplicate key, an InnoDB deadlock
// or a lock wait timeout.
func IsWriteConflict(err error) bool {
	if IsDuplicateKey(err) {
		return true
	}
	code, ok := mysqlErrorNumber(err)
	return ok && (code == mysqlDeadlock || code == mysqlLockWaitTimeout)
}

func mysqlErrorNumber(err error) (uint16, bool) {
	var me *mysqldrv.MySQLError
	if errors.As(err, &me) {
		return me.Number, true
	}
	return 0, false
}
