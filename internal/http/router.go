package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/capacity-checker/internal/http/handlers"
	httpMW "github.com/yungbote/capacity-checker/internal/http/middleware"
	"github.com/yungbote/capacity-checker/internal/observability"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string
	// AdminEnabled mounts the rebuild and ingestion endpoints.
	AdminEnabled bool

	HealthHandler *httpH.HealthHandler
	SearchHandler *httpH.SearchHandler
	AdminHandler  *httpH.AdminHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		if cfg.SearchHandler != nil {
			api.GET("/search", cfg.SearchHandler.Search)
			api.GET("/units/:id", cfg.SearchHandler.Unit)
			api.GET("/companies/:key", cfg.SearchHandler.Company)
			api.GET("/locations/lookup", cfg.SearchHandler.LocationLookup)
		}
	}

	admin := api.Group("/admin")
	{
		if cfg.AdminEnabled && cfg.AdminHandler != nil {
			admin.POST("/rebuild/company-index", cfg.AdminHandler.RebuildCompanyIndex)
			admin.POST("/rebuild/location-mapping", cfg.AdminHandler.RebuildLocationMapping)
			admin.POST("/crawl", cfg.AdminHandler.Crawl)
			admin.POST("/backfill/capacity", cfg.AdminHandler.BackfillCapacity)
			admin.GET("/jobs/:job/runs", cfg.AdminHandler.JobRuns)
		}
	}

	return r
}
