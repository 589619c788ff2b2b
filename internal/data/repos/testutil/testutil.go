package testutil

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	dbpkg "github.com/yungbote/capacity-checker/internal/data/db"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error

	dbSeq atomic.Int64
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a migrated database private to the test. It is an in-memory SQLite database
// unless TEST_POSTGRES_DSN is set, in which case the registry tables are truncated on cleanup.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	postgres := dsn != ""
	if !postgres {
		dsn = fmt.Sprintf("file:capacity_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	}

	svc, err := dbpkg.Open(dsn, Logger(tb))
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}
	if err := svc.AutoMigrateAll(); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	tb.Cleanup(func() {
		if postgres {
			_ = svc.DB().Exec("TRUNCATE components, unit_registry_entries, rebuild_checkpoints").Error
		}
		_ = svc.Close()
	})
	return svc.DB()
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
