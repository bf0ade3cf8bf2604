package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/ckguru/orchestrator/internal/http/handlers"
	httpMW "github.com/ckguru/orchestrator/internal/http/middleware"
	"github.com/ckguru/orchestrator/internal/observability"
	"github.com/ckguru/orchestrator/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	HealthHandler     *httpH.HealthHandler
	RepositoryHandler *httpH.RepositoryHandler
	MLHandler         *httpH.MLHandler
	XAIHandler        *httpH.XAIHandler
	TaskHandler       *httpH.TaskHandler
	RegistryHandler   *httpH.RegistryHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS())
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	if cfg.RepositoryHandler != nil {
		r.POST("/repositories/:id/commits/:hash/ingest", cfg.RepositoryHandler.IngestCommit)
		r.GET("/repositories/:id/commits/:hash", cfg.RepositoryHandler.GetCommit)
		r.POST("/repositories/:id/datasets", cfg.RepositoryHandler.GenerateDataset)
	}

	if cfg.MLHandler != nil {
		r.POST("/ml/train", cfg.MLHandler.Train)
		r.GET("/ml/train/:job_id", cfg.MLHandler.GetTrain)
		r.POST("/ml/search", cfg.MLHandler.Search)
		r.GET("/ml/search/:job_id", cfg.MLHandler.GetSearch)
		r.POST("/ml/infer", cfg.MLHandler.Infer)
		r.GET("/ml/infer/:job_id", cfg.MLHandler.GetInfer)
	}

	if cfg.XAIHandler != nil {
		r.GET("/xai/infer/:job_id/explanations", cfg.XAIHandler.ListExplanations)
		r.GET("/xai/explanations/:id", cfg.XAIHandler.GetExplanation)
	}

	if cfg.TaskHandler != nil {
		r.GET("/tasks/:task_id", cfg.TaskHandler.GetTask)
		r.POST("/tasks/:task_id/revoke", cfg.TaskHandler.RevokeTask)
	}

	if cfg.RegistryHandler != nil {
		r.GET("/cleaning-rules", cfg.RegistryHandler.ListCleaningRules)
		r.GET("/feature-selection-algorithms", cfg.RegistryHandler.ListFeatureSelectionAlgorithms)
		r.GET("/ml/model-types", cfg.RegistryHandler.ListModelTypes)
	}

	return r
}
