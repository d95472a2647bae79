package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/petroprice/internal/audit/domain"
	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
	"github.com/smallbiznis/petroprice/internal/config"
	dealerdomain "github.com/smallbiznis/petroprice/internal/dealer/domain"
	"github.com/smallbiznis/petroprice/internal/lock"
	"github.com/smallbiznis/petroprice/internal/observability"
	obsmiddleware "github.com/smallbiznis/petroprice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/petroprice/internal/observability/metrics"
	obstracing "github.com/smallbiznis/petroprice/internal/observability/tracing"
	pricebuildupdomain "github.com/smallbiznis/petroprice/internal/pricebuildup/domain"
	windowdomain "github.com/smallbiznis/petroprice/internal/pricingwindow/domain"
	reconciliationdomain "github.com/smallbiznis/petroprice/internal/reconciliation/domain"
	"github.com/smallbiznis/petroprice/internal/scheduler"
	uppfdomain "github.com/smallbiznis/petroprice/internal/uppf/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	genID        *snowflake.Node
	log          *zap.Logger
	componentSvc componentdomain.Service
	calculator   pricebuildupdomain.Service
	windowSvc    windowdomain.Service
	reconSvc     reconciliationdomain.Service
	claimSvc     uppfdomain.Service
	rateSync     uppfdomain.RateSync
	dealerSvc    dealerdomain.Service
	auditSvc     auditdomain.Service
	scheduler    *scheduler.Scheduler
	writeLimiter *lock.WriteLimiter
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	GenID        *snowflake.Node
	Log          *zap.Logger
	ComponentSvc componentdomain.Service
	Calculator   pricebuildupdomain.Service
	WindowSvc    windowdomain.Service
	ReconSvc     reconciliationdomain.Service
	ClaimSvc     uppfdomain.Service
	RateSync     uppfdomain.RateSync
	DealerSvc    dealerdomain.Service
	AuditSvc     auditdomain.Service  `optional:"true"`
	Scheduler    *scheduler.Scheduler `optional:"true"`
	WriteLimiter *lock.WriteLimiter   `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics  `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		genID:        p.GenID,
		log:          p.Log.Named("http.server"),
		componentSvc: p.ComponentSvc,
		calculator:   p.Calculator,
		windowSvc:    p.WindowSvc,
		reconSvc:     p.ReconSvc,
		claimSvc:     p.ClaimSvc,
		rateSync:     p.RateSync,
		dealerSvc:    p.DealerSvc,
		auditSvc:     p.AuditSvc,
		scheduler:    p.Scheduler,
		writeLimiter: p.WriteLimiter,
		obsMetrics:   p.ObsMetrics,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/v1")
	api.Use(OrgContext(s.cfg.DefaultOrgID))
	write := s.WriteRateLimit()

	// -------- Components --------
	api.POST("/components", write, s.UpsertComponent)
	api.GET("/components/active", s.ListActiveComponents)
	api.GET("/components/snapshot", s.GetComponentsSnapshot)
	api.GET("/components/:code/history", s.ListComponentHistory)
	api.POST("/components/import", write, s.ImportComponents)

	// -------- Pricing --------
	api.POST("/prices/calculate", s.CalculatePrice)

	// -------- Windows --------
	api.POST("/windows", write, s.CreateWindow)
	api.POST("/windows/biweekly", write, s.CreateBiWeeklyWindow)
	api.GET("/windows", s.ListWindows)
	api.GET("/windows/active", s.GetActiveWindow)
	api.POST("/windows/transition", write, s.TransitionWindow)
	api.POST("/windows/archive", write, s.ArchiveWindows)
	api.GET("/windows/:id", s.GetWindow)
	api.POST("/windows/:id/publish", write, s.PublishPrices)
	api.GET("/windows/:id/prices", s.ListStationPrices)
	api.GET("/windows/:id/export", s.ExportPriceSchedule)
	api.POST("/windows/:id/claims/submit", write, s.SubmitClaims)

	// -------- Consignments & reconciliation --------
	api.POST("/routes", write, s.UpsertRoute)
	api.GET("/routes/:id", s.GetRoute)
	api.POST("/consignments", write, s.RecordConsignment)
	api.GET("/consignments/:id", s.GetConsignment)
	api.POST("/reconciliations/:consignment_id", write, s.Reconcile)
	api.GET("/reconciliations/:consignment_id", s.GetReconciliation)

	// -------- UPPF claims --------
	api.POST("/claims", write, s.CreateClaim)
	api.GET("/claims", s.ListClaims)
	api.POST("/claims/levy", s.CalculateLevy)
	api.GET("/claims/:number", s.GetClaim)
	api.POST("/claims/:number/response", write, s.RecordClaimResponse)
	api.POST("/claims/:number/settle", write, s.SettleClaim)
	api.POST("/uppf/rates/sync", write, s.SyncRates)

	// -------- Dealers --------
	api.POST("/settlements", write, s.CreateSettlement)
	api.GET("/settlements", s.ListSettlements)
	api.GET("/settlements/:number", s.GetSettlement)
	api.POST("/settlements/:number/approve", write, s.ApproveSettlement)
	api.POST("/settlements/:number/pay", write, s.MarkSettlementPaid)
	api.POST("/loans", write, s.CreateLoan)
	api.POST("/loans/schedule", s.PreviewLoanSchedule)
	api.GET("/loans/:id", s.GetLoan)

	// -------- Jobs --------
	api.GET("/jobs", s.ListJobs)
	api.POST("/jobs/:name/run", s.RunJob)

	// -------- Audit --------
	api.GET("/audit-logs", s.ListAuditLogs)
}
