package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"virtualbank/internal/config"
	"virtualbank/internal/handler"
	"virtualbank/internal/identity"
	"virtualbank/internal/infrastructure/cache"
	"virtualbank/internal/infrastructure/database"
	"virtualbank/internal/infrastructure/lock"
	"virtualbank/internal/infrastructure/metrics"
	"virtualbank/internal/infrastructure/mq"
	"virtualbank/internal/job"
	"virtualbank/internal/logging"
	"virtualbank/internal/repository"
	"virtualbank/internal/service"
	"virtualbank/pkg/clock"
	"virtualbank/pkg/idgen"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "服务异常退出: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// 加载配置
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logging.SetGlobal(logger)

	// 初始化 ID 生成器
	if err := idgen.Init(cfg.Server.WorkerID); err != nil {
		return err
	}

	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	db, err := database.Open(&cfg.Database, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	ledger := repository.NewGormLedger(db)
	identityRepo := repository.NewIdentityRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	// 账户锁：启用 Redis 时跨进程加锁，否则只在本进程内串行
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, cfg.Redis.LockTTL, cfg.Business.LockWait, cfg.Business.LockRetries)
		logger.Info("使用 Redis 分布式锁")
	} else {
		logger.Warn("Redis 未启用，账户锁只在本进程内生效")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	fundsMetrics := metrics.NewFundsMetrics(registry)

	funds := service.NewFundsService(service.FundsDeps{
		Store:              ledger,
		Locker:             locker,
		Metrics:            fundsMetrics,
		Clock:              clock.RealClock{},
		Logger:             logger,
		MaxConflictRetries: cfg.Business.MaxConflictRetries,
		EventsTopic:        cfg.Kafka.Topic.FundsEvents,
	})
	jwtProvider := identity.NewJWTProvider(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, clock.RealClock{})
	h := handler.NewHandler(
		funds,
		service.NewAccountService(ledger),
		service.NewAuthService(ledger, identityRepo, jwtProvider, clock.RealClock{}),
	)

	// 设置路由
	router := handler.SetupRouter(handler.RouterDeps{
		Handler:  h,
		Provider: jwtProvider,
		Logger:   logger,
		Metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 后台任务：未启用 Kafka 时事件只保留在本地消息表
	var jobs []func(context.Context)
	if cfg.Kafka.Enabled {
		producer, err := mq.NewSyncProducer(&cfg.Kafka)
		if err != nil {
			return err
		}
		publisher := mq.NewKafkaPublisher(producer)
		defer publisher.Close()

		breaker := mq.NewBreakerPublisher(publisher, mq.DefaultBreakerSettings())
		outboxSender := job.NewOutboxSender(outboxRepo, breaker, fundsMetrics, cfg.Business.OutboxMaxRetry)
		requeueJob := job.NewOutboxRequeueJob(outboxRepo, cfg.Business.OutboxRequeueAfter, clock.RealClock{})
		jobs = append(jobs, outboxSender.Start, requeueJob.Start)
	} else {
		logger.Warn("Kafka 未启用，资金事件不会投递")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("服务启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("服务启动失败: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("正在关闭服务...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("服务关闭异常: %w", err)
		}
		return nil
	})

	for _, start := range jobs {
		start := start
		g.Go(func() error {
			start(gctx)
			return nil
		})
	}

	err = g.Wait()
	logger.Info("服务已关闭")
	return err
}
