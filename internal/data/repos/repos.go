// Package repos re-exports each domain sub-package's repository types
// and constructors at one import path, so internal/app's wiring code
// only needs this one package.
package repos

import (
	"github.com/ckguru/orchestrator/internal/data/repos/jobs"
	"github.com/ckguru/orchestrator/internal/data/repos/ml"
	"github.com/ckguru/orchestrator/internal/data/repos/registry"
	"github.com/ckguru/orchestrator/internal/data/repos/vcs"
	"github.com/ckguru/orchestrator/internal/platform/logger"
	"gorm.io/gorm"
)

type JobRepo = jobs.JobRepo
type JobEventRepo = jobs.JobEventRepo
type SagaRunRepo = jobs.SagaRunRepo
type SagaActionRepo = jobs.SagaActionRepo

type ModelRepo = ml.ModelRepo
type DatasetRepo = ml.DatasetRepo

type RepositoryRepo = vcs.RepositoryRepo
type CommitMetricsRepo = vcs.CommitMetricsRepo

type EntryRepo = registry.EntryRepo

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return jobs.NewJobRepo(db, baseLog)
}
func NewJobEventRepo(db *gorm.DB) JobEventRepo {
	return jobs.NewJobEventRepo(db)
}
func NewSagaRunRepo(db *gorm.DB, baseLog *logger.Logger) SagaRunRepo {
	return jobs.NewSagaRunRepo(db, baseLog)
}
func NewSagaActionRepo(db *gorm.DB, baseLog *logger.Logger) SagaActionRepo {
	return jobs.NewSagaActionRepo(db, baseLog)
}

func NewModelRepo(db *gorm.DB, baseLog *logger.Logger) ModelRepo {
	return ml.NewModelRepo(db, baseLog)
}
func NewDatasetRepo(db *gorm.DB) DatasetRepo {
	return ml.NewDatasetRepo(db)
}

func NewRepositoryRepo(db *gorm.DB) RepositoryRepo {
	return vcs.NewRepositoryRepo(db)
}
func NewCommitMetricsRepo(db *gorm.DB) CommitMetricsRepo {
	return vcs.NewCommitMetricsRepo(db)
}

// NewEntryRepo constructs a registry repo bound to one of the three
// capability-registry tables (registry.TableCleaningRule,
// registry.TableFeatureSelectionAlgorithm,
// registry.TableModelTypeDefinition).
func NewEntryRepo(db *gorm.DB, table string) EntryRepo {
	return registry.NewEntryRepo(db, table)
}

const (
	TableCleaningRule              = registry.TableCleaningRule
	TableFeatureSelectionAlgorithm = registry.TableFeatureSelectionAlgorithm
	TableModelTypeDefinition       = registry.TableModelTypeDefinition
)
