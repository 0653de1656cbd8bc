package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"statsdb/controllers"
	"statsdb/database"
	"statsdb/dispatch"
	"statsdb/metrics"
	"statsdb/querycache"
	"statsdb/reports"
	"statsdb/stats"
)

// Options carries the settings SetupRoutes does not derive from its dependencies
type Options struct {
	Production bool

	AllowOrigins []string
}

// SetupRoutes configures all API routes
func SetupRoutes(

	router *gin.Engine,

	db *database.Database,

	machines *database.MachineConfigRepository,

	notifier stats.CrashNotifier,

	authenticator controllers.Authenticator,

	queryCache *querycache.Cache,

	m *metrics.Metrics,

	log *zap.Logger,

	opts Options,

) {

	router.Use(RequestID(), AccessLog(log))

	origins := opts.AllowOrigins

	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Use(cors.New(cors.Config{

		AllowOrigins: origins,

		AllowMethods: []string{"GET", "POST", "OPTIONS"},

		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},

		ExposeHeaders: []string{"Content-Length", requestIDHeader},

		MaxAge: 12 * time.Hour,
	}))

	usageRepo := database.NewUsageRepository(db, database.NewLogSubmissionRepository(db))

	reportRepo := database.NewReportRepository(db)

	registry := dispatch.NewRegistry()

	registry.Register(stats.NewService(machines, usageRepo, notifier, m, log).Handlers()...)

	dispatcher := dispatch.New(registry, opts.Production, log, m)

	queryCache.OnLookup(m.CacheLookup)

	apiController := controllers.NewApiController(dispatcher, authenticator)

	reportController := controllers.NewReportController(reports.NewRegistry(reportRepo, queryCache), log)

	router.POST("/api", apiController.Call)

	router.POST("/api/", apiController.Call)

	reportGroup := router.Group("/reports")

	{
		reportGroup.GET("", reportController.List)

		reportGroup.GET("/:name", reportController.Show)
	}

	router.GET("/metrics", gin.WrapH(m.Handler()))
}
