package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/application"
	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
	fundcache "github.com/wyfcoding/insurancefundamentals/internal/fundamentals/infrastructure/cache"
	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/infrastructure/messaging"
	grpcapi "github.com/wyfcoding/insurancefundamentals/internal/fundamentals/interfaces/grpc"
	httpapi "github.com/wyfcoding/insurancefundamentals/internal/fundamentals/interfaces/http"
	pkgcache "github.com/wyfcoding/insurancefundamentals/pkg/cache"
	"github.com/wyfcoding/insurancefundamentals/pkg/config"
	"github.com/wyfcoding/insurancefundamentals/pkg/logger"
	"github.com/wyfcoding/insurancefundamentals/pkg/metrics"
	"github.com/wyfcoding/insurancefundamentals/pkg/middleware"
	"github.com/wyfcoding/insurancefundamentals/pkg/mq"
	"github.com/wyfcoding/insurancefundamentals/pkg/ratelimit"
	"github.com/wyfcoding/insurancefundamentals/pkg/tracing"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard with its HTTP and gRPC APIs",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	// 1. Config
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// 2. Logger
	if err := logger.Init(loggerConfig(cfg)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Tracing & Metrics
	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Endpoint:     cfg.Tracing.Endpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		ServiceName:  cfg.ServiceName,
		Version:      cfg.Version,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn(sctx, "tracing shutdown failed", "error", err)
		}
	}()

	m := metrics.New(cfg.ServiceName)

	// 4. Infrastructure
	opts := append(serviceOptions(cfg), application.WithMetrics(m))

	resultCache, closeCache, err := buildCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()
	if resultCache != nil {
		opts = append(opts, application.WithCache(resultCache))
	}

	publisher, closePublisher := buildPublisher(cfg)
	defer closePublisher()
	opts = append(opts, application.WithPublisher(publisher))

	// 5. Application
	svc := application.NewSimulationService(opts...)
	dashboard := application.NewDashboard(svc, cfg.Simulation.EventBuffer)

	// 6. Interfaces
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           newEngine(cfg, m, svc, dashboard),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		middleware.GRPCRecoveryInterceptor(),
		middleware.GRPCLoggingInterceptor(),
	))
	grpcapi.NewServer(grpcSrv, svc)
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(grpcapi.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	reflection.Register(grpcSrv)

	// 7. Start
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dashboard.Run(gctx)
	})

	g.Go(func() error {
		logger.Info(gctx, "HTTP server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.GRPC.Enabled {
		g.Go(func() error {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr())
			if err != nil {
				return err
			}
			logger.Info(gctx, "gRPC server starting", "addr", cfg.GRPC.Addr())
			return grpcSrv.Serve(lis)
		})
	}

	// 8. Graceful Shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "shutting down servers...")

		healthSrv.Shutdown()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(sctx)
		grpcSrv.GracefulStop()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error(context.Background(), "server exited with error", "error", err)
		return err
	}
	return nil
}

func newEngine(cfg *config.Config, m *metrics.Metrics, svc *application.SimulationService, dashboard *application.Dashboard) *gin.Engine {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		middleware.GinRequestID(),
		middleware.GinRecoveryMiddleware(),
		middleware.GinLoggingMiddleware(),
		middleware.GinMetricsMiddleware(m),
	)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}
	if cfg.Environment != "prod" {
		pp := r.Group("/debug/pprof")
		{
			pp.GET("/", gin.WrapF(pprof.Index))
			pp.GET("/cmdline", gin.WrapF(pprof.Cmdline))
			pp.GET("/profile", gin.WrapF(pprof.Profile))
			pp.GET("/symbol", gin.WrapF(pprof.Symbol))
			pp.GET("/trace", gin.WrapF(pprof.Trace))
		}
	}

	api := r.Group("/", middleware.RateLimitMiddleware(ratelimit.NewLocalRateLimiter(10000), cfg.RateLimit))
	httpapi.NewFundamentalsHandler(svc, dashboard).RegisterRoutes(api)
	return r
}

// buildCache 本地 bigcache 为一级缓存，启用 Redis 时作为二级缓存；Redis 不可用时仅用本地缓存
func buildCache(ctx context.Context, cfg *config.Config) (domain.ResultCache, func(), error) {
	noop := func() {}
	if !cfg.Cache.Enabled {
		return nil, noop, nil
	}

	local, err := fundcache.NewLocalCache(ctx, time.Duration(cfg.Cache.LocalTTL)*time.Second, cfg.Cache.LocalMaxSizeMB)
	if err != nil {
		return nil, noop, err
	}
	closeLocal := func() { _ = local.Close() }

	rc := cfg.Cache.Redis
	if !rc.Enabled {
		return local, closeLocal, nil
	}

	client, err := pkgcache.New(pkgcache.Config{
		Host:         rc.Host,
		Port:         rc.Port,
		Password:     rc.Password,
		DB:           rc.DB,
		MaxPoolSize:  rc.MaxPoolSize,
		ConnTimeout:  rc.ConnTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
	})
	if err != nil {
		logger.Warn(ctx, "redis unavailable, using local cache only", "error", err)
		return local, closeLocal, nil
	}

	remote := fundcache.NewRedisCache(client, time.Duration(rc.TTL)*time.Second)
	return fundcache.NewTieredCache(local, remote), func() {
		closeLocal()
		_ = client.Close()
	}, nil
}

// buildPublisher 计算事件总是写入日志，启用 Kafka 时同时发布到 broker
func buildPublisher(cfg *config.Config) (domain.EventPublisher, func()) {
	if !cfg.Kafka.Enabled {
		return messaging.LogPublisher{}, func() {}
	}

	producer := mq.NewProducer(mq.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		MaxRetries:   cfg.Kafka.MaxRetries,
		RetryBackoff: cfg.Kafka.RetryBackoff,
	})
	kafkaPub := messaging.NewKafkaPublisher(producer, cfg.Kafka.Topic, messaging.BreakerConfig{})
	return messaging.MultiPublisher{messaging.LogPublisher{}, kafkaPub}, func() { _ = producer.Close() }
}
