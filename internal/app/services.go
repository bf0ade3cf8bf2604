package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/ckguru/orchestrator/internal/broker"
	"github.com/ckguru/orchestrator/internal/controlplane"
	"github.com/ckguru/orchestrator/internal/jobs/cleaning"
	"github.com/ckguru/orchestrator/internal/jobs/commitanalysis"
	"github.com/ckguru/orchestrator/internal/jobs/featureselect"
	"github.com/ckguru/orchestrator/internal/jobs/handlers"
	"github.com/ckguru/orchestrator/internal/jobs/modeltype"
	jobrt "github.com/ckguru/orchestrator/internal/jobs/runtime"
	"github.com/ckguru/orchestrator/internal/jobs/xaitype"
	"github.com/ckguru/orchestrator/internal/platform/logger"
)

// Services bundles everything built on top of Repos+Clients: the
// compiled-in plug-in registries, the Job Handler registry the
// Temporal worker dispatches through, the Broker, and the Control
// Plane facade the HTTP layer calls into -- one struct of every domain
// service, wired once at startup.
type Services struct {
	CleaningRegistry         *cleaning.Registry
	FeatureSelectionRegistry *featureselect.Registry
	ModelTypeRegistry        *modeltype.Registry
	XAIRegistry              *xaitype.Registry

	Analyzer commitanalysis.Analyzer

	Broker *broker.Broker

	JobRegistry *jobrt.Registry

	ControlPlane *controlplane.Service
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	cleaningRegistry := cleaning.DefaultRegistry()
	featureSelectionRegistry := featureselect.DefaultRegistry()
	modelTypeRegistry := modeltype.DefaultRegistry()
	xaiRegistry := xaitype.DefaultRegistry()

	analyzer := commitanalysis.NewHTTPAnalyzer(cfg.CommitAnalysisBaseURL, cfg.CommitAnalysisTimeout)

	brk := broker.New(log, clients.Temporal, repos.Job, clients.CancelBus)

	trainingHandler := &handlers.TrainingHandler{
		Datasets:  repos.Dataset,
		Models:    repos.Model,
		Bucket:    clients.ArtifactsBucket,
		ModelType: modelTypeRegistry,
		Log:       log,
	}
	hpSearchHandler := &handlers.HPSearchHandler{
		Datasets:  repos.Dataset,
		Models:    repos.Model,
		Bucket:    clients.ArtifactsBucket,
		ModelType: modelTypeRegistry,
		Training:  trainingHandler,
	}
	inferenceHandler := &handlers.InferenceHandler{
		Models:    repos.Model,
		Metrics:   repos.CommitMetrics,
		Bucket:    clients.ArtifactsBucket,
		ModelType: modelTypeRegistry,
	}
	explanationOrchHandler := &handlers.ExplanationOrchestrationHandler{
		Models:    repos.Model,
		ModelType: modelTypeRegistry,
		Broker:    brk,
	}
	explanationWorkerHandler := &handlers.ExplanationWorkerHandler{
		Models:    repos.Model,
		Datasets:  repos.Dataset,
		Metrics:   repos.CommitMetrics,
		Bucket:    clients.ArtifactsBucket,
		ModelType: modelTypeRegistry,
		XAIType:   xaiRegistry,
	}
	datasetGenerationHandler := &handlers.DatasetGenerationHandler{
		Datasets:      repos.Dataset,
		Metrics:       repos.CommitMetrics,
		Bucket:        clients.ArtifactsBucket,
		Cleaning:      cleaningRegistry,
		FeatureSelect: featureSelectionRegistry,
	}
	commitIngestionHandler := &handlers.CommitIngestionHandler{
		Repositories: repos.Repository,
		Metrics:      repos.CommitMetrics,
		Analyzer:     analyzer,
	}

	jobRegistry := jobrt.NewRegistry()
	for _, h := range []jobrt.Handler{
		trainingHandler,
		hpSearchHandler,
		inferenceHandler,
		explanationOrchHandler,
		explanationWorkerHandler,
		datasetGenerationHandler,
		commitIngestionHandler,
	} {
		if err := jobRegistry.Register(h); err != nil {
			return Services{}, fmt.Errorf("register job handler: %w", err)
		}
	}

	cp := &controlplane.Service{
		Broker:                   brk,
		Jobs:                     repos.Job,
		JobEvents:                repos.JobEvent,
		Models:                   repos.Model,
		Datasets:                 repos.Dataset,
		Repositories:             repos.Repository,
		CommitMetrics:            repos.CommitMetrics,
		CleaningRegistry:         repos.CleaningRuleRegistry,
		FeatureSelectionRegistry: repos.FeatureSelectionRegistry,
		ModelTypeRegistry:        repos.ModelTypeRegistry,
	}

	return Services{
		CleaningRegistry:         cleaningRegistry,
		FeatureSelectionRegistry: featureSelectionRegistry,
		ModelTypeRegistry:        modelTypeRegistry,
		XAIRegistry:              xaiRegistry,
		Analyzer:                 analyzer,
		Broker:                   brk,
		JobRegistry:              jobRegistry,
		ControlPlane:             cp,
	}, nil
}
