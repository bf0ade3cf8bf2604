package app

import (
	"github.com/ckguru/orchestrator/internal/data/repos"
	"github.com/ckguru/orchestrator/internal/platform/logger"
	"gorm.io/gorm"
)

type Repos struct {
	Job        repos.JobRepo
	JobEvent   repos.JobEventRepo
	SagaRun    repos.SagaRunRepo
	SagaAction repos.SagaActionRepo

	Model   repos.ModelRepo
	Dataset repos.DatasetRepo

	Repository    repos.RepositoryRepo
	CommitMetrics repos.CommitMetricsRepo

	CleaningRuleRegistry    repos.EntryRepo
	FeatureSelectionRegistry repos.EntryRepo
	ModelTypeRegistry       repos.EntryRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Job:        repos.NewJobRepo(db, log),
		JobEvent:   repos.NewJobEventRepo(db),
		SagaRun:    repos.NewSagaRunRepo(db, log),
		SagaAction: repos.NewSagaActionRepo(db, log),

		Model:   repos.NewModelRepo(db, log),
		Dataset: repos.NewDatasetRepo(db),

		Repository:    repos.NewRepositoryRepo(db),
		CommitMetrics: repos.NewCommitMetricsRepo(db),

		CleaningRuleRegistry:     repos.NewEntryRepo(db, repos.TableCleaningRule),
		FeatureSelectionRegistry: repos.NewEntryRepo(db, repos.TableFeatureSelectionAlgorithm),
		ModelTypeRegistry:        repos.NewEntryRepo(db, repos.TableModelTypeDefinition),
	}
}
