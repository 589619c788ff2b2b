package app

import (
	"github.com/yungbote/capacity-checker/internal/http"
	httpH "github.com/yungbote/capacity-checker/internal/http/handlers"
	"github.com/yungbote/capacity-checker/internal/observability"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

type Handlers struct {
	Health *httpH.HealthHandler
	Search *httpH.SearchHandler
	Admin  *httpH.AdminHandler
}

func wireHandlers(log *logger.Logger, svcs Services, checks map[string]httpH.Pinger) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(checks),
		Search: httpH.NewSearchHandler(svcs.Engine),
		Admin:  httpH.NewAdminHandler(svcs.Engine),
	}
}

func wireServer(log *logger.Logger, metrics *observability.Metrics, cfg Config, handlers Handlers) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:           log,
		Metrics:       metrics,
		ServiceName:   cfg.OtelServiceName,
		CORSOrigins:   cfg.CORSOrigins,
		AdminEnabled:  cfg.AdminEnabled,
		HealthHandler: handlers.Health,
		SearchHandler: handlers.Search,
		AdminHandler:  handlers.Admin,
	})
}
