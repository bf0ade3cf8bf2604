// Package testutil provides the sqlite in-memory fixture repository
// tests run against, so these tests need no external database.
package testutil

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
	"github.com/ckguru/orchestrator/internal/domain/ml"
	"github.com/ckguru/orchestrator/internal/domain/registry"
	"github.com/ckguru/orchestrator/internal/domain/vcs"
	"github.com/ckguru/orchestrator/internal/platform/logger"
	registrypkg "github.com/ckguru/orchestrator/internal/data/repos/registry"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error

	dbSeq int64
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

// DB opens a fresh in-memory sqlite database per call, migrated with
// every domain entity -- sqlite in-memory databases are cheap enough
// that a shared fixture buys nothing but test interdependence.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	if err := autoMigrateAll(db); err != nil {
		tb.Fatalf("migrate sqlite: %v", err)
	}
	return db
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

func autoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domainjobs.Job{},
		&domainjobs.JobEvent{},
		&domainjobs.SagaRun{},
		&domainjobs.SagaAction{},

		&ml.Model{},
		&ml.Dataset{},

		&vcs.Repository{},
		&vcs.BotPattern{},
		&vcs.CommitGuruMetric{},
		&vcs.CKMetric{},
		&vcs.CommitDetails{},
	); err != nil {
		return err
	}
	// The three capability registries share registry.Entry's shape but
	// live in distinct tables (see internal/data/repos/registry).
	for _, table := range []string{registrypkg.TableCleaningRule, registrypkg.TableFeatureSelectionAlgorithm, registrypkg.TableModelTypeDefinition} {
		if err := db.Table(table).AutoMigrate(&registry.Entry{}); err != nil {
			return err
		}
	}
	return nil
}
