package app

import (
	"github.com/gin-gonic/gin"

	orchhttp "github.com/ckguru/orchestrator/internal/http"
	httpH "github.com/ckguru/orchestrator/internal/http/handlers"
	"github.com/ckguru/orchestrator/internal/observability"
	"github.com/ckguru/orchestrator/internal/platform/logger"
)

// Handlers bundles every HTTP handler this service exposes, all
// backed by the single controlplane.Service built in wireServices.
type Handlers struct {
	Health     *httpH.HealthHandler
	Repository *httpH.RepositoryHandler
	ML         *httpH.MLHandler
	XAI        *httpH.XAIHandler
	Task       *httpH.TaskHandler
	Registry   *httpH.RegistryHandler
}

func wireHandlers(services Services) Handlers {
	return Handlers{
		Health:     httpH.NewHealthHandler(),
		Repository: httpH.NewRepositoryHandler(services.ControlPlane),
		ML:         httpH.NewMLHandler(services.ControlPlane),
		XAI:        httpH.NewXAIHandler(services.ControlPlane),
		Task:       httpH.NewTaskHandler(services.ControlPlane),
		Registry:   httpH.NewRegistryHandler(services.ControlPlane),
	}
}

func wireRouter(log *logger.Logger, metrics *observability.Metrics, handlers Handlers) *gin.Engine {
	return orchhttp.NewRouter(orchhttp.RouterConfig{
		Log:               log,
		Metrics:           metrics,
		HealthHandler:     handlers.Health,
		RepositoryHandler: handlers.Repository,
		MLHandler:         handlers.ML,
		XAIHandler:        handlers.XAI,
		TaskHandler:       handlers.Task,
		RegistryHandler:   handlers.Registry,
	})
}
