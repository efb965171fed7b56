// Package api is the thin HTTP view layer over the intelligence
// tracking engine: CRUD for the reference data the engine consumes,
// read-model endpoints over its output (timeline, alerts, risk trend),
// and admin endpoints to inspect job runs, edit schedule config, and
// trigger a pass out of band from the two schedulers. It never touches
// the reconciliation algorithm itself — everything here reads or writes
// through internal/store and the job ledger.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/encasitacov19/CTI-PLATFORM/internal/catalog"
	"github.com/encasitacov19/CTI-PLATFORM/internal/collector"
	"github.com/encasitacov19/CTI-PLATFORM/internal/jobs"
	"github.com/encasitacov19/CTI-PLATFORM/internal/store"
	"github.com/encasitacov19/CTI-PLATFORM/pkg/logger"
	"github.com/encasitacov19/CTI-PLATFORM/pkg/metrics"
	redisx "github.com/encasitacov19/CTI-PLATFORM/pkg/redis"
)

// Service is the gin-facing handle for every view-layer route.
type Service struct {
	store     *store.Store
	collector *collector.Runner
	mitre     *catalog.Syncer
	ledger    *jobs.Ledger
	cache     *redisx.Client // nil when no Redis URL is configured or Redis is unreachable; handlers fall through to the store
	log       logger.Logger
}

// New builds a Service.
func New(s *store.Store, collectorRunner *collector.Runner, mitreSyncer *catalog.Syncer, ledger *jobs.Ledger, cache *redisx.Client, log logger.Logger) *Service {
	return &Service{store: s, collector: collectorRunner, mitre: mitreSyncer, ledger: ledger, cache: cache, log: log}
}

// RegisterRoutes wires every handler onto router.
func (s *Service) RegisterRoutes(router *gin.RouterGroup) {
	actors := router.Group("/actors")
	{
		actors.GET("", s.listActors)
		actors.POST("", s.createActor)
		actors.GET("/:id", s.getActor)
		actors.PATCH("/:id/active", s.setActorActive)
		actors.GET("/:id/timeline", s.actorTimeline)
		actors.GET("/:id/evidence/:techniqueId", s.actorTechniqueEvidence)
		actors.POST("/:id/tags", s.tagActor)
		actors.GET("/:id/tags", s.listActorTags)
		actors.POST("/:id/project-tags", s.tagActorToProject)
		actors.GET("/:id/project-tags", s.listActorProjectTags)
	}

	router.GET("/techniques", s.listTechniques)
	router.GET("/techniques/:code", s.getTechnique)

	router.GET("/alerts", s.listAlerts)

	risk := router.Group("/risk")
	{
		risk.GET("/countries", s.listRiskCountries)
		risk.GET("/:country/latest", s.riskLatest)
		risk.GET("/:country/trend", s.riskTrend)
	}

	jobsGroup := router.Group("/jobs")
	{
		jobsGroup.GET("", s.listJobs)
		jobsGroup.GET("/:id", s.getJob)
	}

	admin := router.Group("/admin")
	{
		admin.POST("/collector/run", s.triggerCollectorRun)
		admin.POST("/mitre-sync/run", s.triggerMitreSync)
		admin.GET("/schedule/collector", s.getCollectorSchedule)
		admin.PUT("/schedule/collector", s.updateCollectorSchedule)
		admin.GET("/schedule/mitre-sync", s.getMitreSchedule)
		admin.PUT("/schedule/mitre-sync", s.updateMitreSchedule)
	}

	detectionUseCases := router.Group("/detection-use-cases")
	{
		detectionUseCases.GET("", s.listDetectionUseCases)
		detectionUseCases.POST("", s.createDetectionUseCase)
		detectionUseCases.PUT("/:id", s.updateDetectionUseCase)
		detectionUseCases.DELETE("/:id", s.deleteDetectionUseCase)
		detectionUseCases.POST("/:id/conditions", s.addDetectionCondition)
		detectionUseCases.GET("/:id/conditions", s.listDetectionConditions)
	}

	clients := router.Group("/clients")
	{
		clients.GET("", s.listClients)
		clients.POST("", s.createClient)
		clients.POST("/:id/projects", s.createClientProject)
		clients.GET("/:id/projects", s.listClientProjects)
	}
}

// LoggingMiddleware logs one line per request: method, path, status,
// latency, client IP.
func LoggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		log.Info("http request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// MetricsMiddleware records request count, latency, and size through
// the shared Prometheus collector.
func MetricsMiddleware(serviceName string, collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}

		c.Next()

		collector.RecordHTTPRequest(
			serviceName,
			c.Request.Method,
			c.FullPath(),
			c.Writer.Status(),
			time.Since(start),
			reqSize,
			int64(c.Writer.Size()),
		)
	}
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func storeStatus(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// backgroundContext detaches a manual-trigger handler's work from the
// HTTP request lifetime: the response returns immediately with the
// job id while the run continues after the client disconnects.
func backgroundContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Minute)
}
