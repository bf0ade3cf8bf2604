package db

import (
	"fmt"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
	"github.com/ckguru/orchestrator/internal/domain/ml"
	"github.com/ckguru/orchestrator/internal/domain/registry"
	"github.com/ckguru/orchestrator/internal/domain/vcs"
	registryrepo "github.com/ckguru/orchestrator/internal/data/repos/registry"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// Jobs / control plane
		&domainjobs.Job{},
		&domainjobs.JobEvent{},
		&domainjobs.SagaRun{},
		&domainjobs.SagaAction{},

		// Trained artifacts
		&ml.Model{},
		&ml.Dataset{},

		// Repository ingestion
		&vcs.Repository{},
		&vcs.BotPattern{},
		&vcs.CommitGuruMetric{},
		&vcs.CKMetric{},
		&vcs.CommitDetails{},
	); err != nil {
		return err
	}

	// The three capability registries share registry.Entry's shape but
	// live in distinct tables synced independently.
	for _, table := range []string{
		registryrepo.TableCleaningRule,
		registryrepo.TableFeatureSelectionAlgorithm,
		registryrepo.TableModelTypeDefinition,
	} {
		if err := db.Table(table).AutoMigrate(&registry.Entry{}); err != nil {
			return fmt.Errorf("automigrate %s: %w", table, err)
		}
	}

	return EnsureJobIndexes(db)
}

// EnsureJobIndexes creates the partial unique indexes that can't be
// expressed through gorm struct tags: the XAI idempotency pair and
// the optional hyperparameter-search study name.
func EnsureJobIndexes(db *gorm.DB) error {
	for _, stmt := range domainjobs.UniqueIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create job index: %w", err)
		}
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
