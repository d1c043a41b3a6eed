package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Register pprof handlers
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frankieli/raffle_engine/internal/config"
	gatewayHttp "github.com/frankieli/raffle_engine/internal/modules/gateway/adapter/http"
	gatewayLocal "github.com/frankieli/raffle_engine/internal/modules/gateway/adapter/local"
	gatewayUseCase "github.com/frankieli/raffle_engine/internal/modules/gateway/usecase"
	"github.com/frankieli/raffle_engine/internal/modules/gateway/ws"
	"github.com/frankieli/raffle_engine/internal/modules/keeper"
	raffleHttp "github.com/frankieli/raffle_engine/internal/modules/raffle/adapter/http"
	raffleKafka "github.com/frankieli/raffle_engine/internal/modules/raffle/adapter/kafka"
	"github.com/frankieli/raffle_engine/internal/modules/raffle/domain"
	"github.com/frankieli/raffle_engine/internal/modules/raffle/machine"
	raffleDB "github.com/frankieli/raffle_engine/internal/modules/raffle/repository/db"
	raffleMemory "github.com/frankieli/raffle_engine/internal/modules/raffle/repository/memory"
	raffleUseCase "github.com/frankieli/raffle_engine/internal/modules/raffle/usecase"
	randomnessMock "github.com/frankieli/raffle_engine/internal/modules/randomness/mock"
	randomnessRedis "github.com/frankieli/raffle_engine/internal/modules/randomness/redis"
	walletModule "github.com/frankieli/raffle_engine/internal/modules/wallet"
	"github.com/frankieli/raffle_engine/pkg/admin"
	"github.com/frankieli/raffle_engine/pkg/auth"
	"github.com/frankieli/raffle_engine/pkg/logger"
	"github.com/frankieli/raffle_engine/pkg/netutil"
	"github.com/frankieli/raffle_engine/pkg/routine"
	"github.com/frankieli/raffle_engine/pkg/service"
)

func main() {
	configFile := flag.String("config", "", "TOML config file (overrides "+config.ConfigFileEnv+")")
	pprofPort := flag.String("pprof-port", "", "Port to run pprof server on (e.g., 6060)")
	background := flag.Bool("d", false, "Run in background mode (disable console logging)")
	portFallback := flag.Bool("port-fallback", false, "Bind a free port if the configured one is taken")
	flag.Parse()

	if *configFile != "" {
		os.Setenv(config.ConfigFileEnv, *configFile)
	}
	cfg, err := config.LoadRaffleConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.Server.LogFile != "" {
		err = logger.InitWithFile(logger.FileConfig{Filename: cfg.Server.LogFile, Console: !*background},
			cfg.Server.LogLevel, cfg.Server.LogFormat)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	} else {
		logger.Init(logger.Config{Level: cfg.Server.LogLevel, Format: cfg.Server.LogFormat})
	}
	defer logger.Flush()

	if *pprofPort != "" {
		go func() {
			addr := "localhost:" + *pprofPort
			logger.InfoGlobal().Str("addr", addr).Msg("starting pprof server")
			if err := http.ListenAndServe(addr, nil); err != nil {
				logger.ErrorGlobal().Err(err).Msg("pprof server failed")
			}
		}()
	}

	logger.InfoGlobal().
		Int64("entrance_fee", cfg.Settings.EntranceFee).
		Dur("interval", cfg.Settings.Interval).
		Str("provider", cfg.Provider.Type).
		Str("wallet", cfg.Wallet.Type).
		Str("db", cfg.Database.Driver).
		Msg("starting raffle monolith")

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()
	routines := routine.NewManager(rootCtx)

	// 1. Infrastructure
	db, err := openDatabase(cfg.Database, cfg.Server.LogLevel == "debug")
	if err != nil {
		logger.FatalGlobal().Err(err).Msg("failed to open database")
	}
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			logger.FatalGlobal().Err(err).Msg("failed to get database instance")
		}
		defer sqlDB.Close()
	}

	var rdb *redis.Client
	if cfg.Provider.Type == "redis" || cfg.Wallet.Type == "redis" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(rootCtx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.FatalGlobal().Err(err).Str("addr", cfg.Redis.Addr()).Msg("failed to connect to redis")
		}
		logger.InfoGlobal().Msg("redis connected")
	}

	// 2. Collaborators
	var walletSvc service.WalletService
	if cfg.Wallet.Type == "redis" {
		walletSvc = walletModule.NewRedisService(rdb, cfg.Wallet.KeyPrefix)
	} else {
		walletSvc = walletModule.NewMockService()
	}

	var provider service.RandomnessProvider
	var redisProvider *randomnessRedis.Provider
	if cfg.Provider.Type == "redis" {
		redisProvider = randomnessRedis.NewProvider(rdb, randomnessRedis.Config{
			RequestChannel: cfg.Provider.RequestChannel,
			FulfillChannel: cfg.Provider.FulfillChannel,
		})
		provider = redisProvider
	} else {
		provider = randomnessMock.NewCoordinator(cfg.Provider.AutoDeliverDelay, routines)
	}

	// 3. Engine
	engine, err := machine.NewStateMachine(machine.Options{
		EntranceFee: cfg.Settings.EntranceFee,
		Interval:    cfg.Settings.Interval,
		Randomness: service.RandomnessRequest{
			NumWords:      cfg.Provider.NumWords,
			Confirmations: cfg.Provider.Confirmations,
		},
	}, provider, walletSvc)
	if err != nil {
		logger.FatalGlobal().Err(err).Msg("failed to create raffle engine")
	}
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		engine.Start(rootCtx)
	}()

	var drawRepo domain.DrawRepository
	if db != nil {
		repo := raffleDB.NewDrawRepository(db)
		if err := repo.AutoMigrate(rootCtx); err != nil {
			logger.FatalGlobal().Err(err).Msg("failed to migrate draw history")
		}
		drawRepo = repo
	} else {
		drawRepo = raffleMemory.NewDrawRepository()
	}

	var publisher domain.EventPublisher
	if cfg.Kafka.Enabled {
		kp := raffleKafka.NewEventPublisher(cfg.Kafka)
		defer kp.Close()
		publisher = kp
		logger.InfoGlobal().Strs("brokers", cfg.Kafka.Brokers).Str("topic", kp.Topic).Msg("kafka publisher enabled")
	}

	// 4. Gateway
	wsCfg := cfg.Gateway.WebSocket
	wsManager, err := ws.NewManager(ws.Options{
		PingInterval:   wsCfg.PingInterval,
		WriteWait:      wsCfg.WriteWait,
		PongWait:       wsCfg.PongWait,
		MaxMessageSize: wsCfg.MaxMessageSize,
		SendBuffer:     wsCfg.SendBuffer,
	})
	if err != nil {
		logger.FatalGlobal().Err(err).Msg("failed to create ws manager")
	}
	mustGo(routines, "ws-manager", func(ctx context.Context) error {
		wsManager.Run(ctx)
		return nil
	})

	raffleUC := raffleUseCase.NewRaffleUseCase(engine, drawRepo, gatewayLocal.NewBroadcaster(wsManager), publisher)
	provider.SetReceiver(raffleUC)

	if redisProvider != nil {
		mustGo(routines, "randomness-consumer", redisProvider.Run)
	}
	if cfg.Keeper.Enabled {
		mustGo(routines, "keeper", keeper.New(raffleUC, cfg.Keeper.Interval).Run)
	}

	issuer := auth.NewIssuer(cfg.Provider.Auth.Secret, cfg.Provider.Auth.Issuer, cfg.Provider.Auth.Duration)

	// 5. HTTP
	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(logger.GinMiddleware(), logger.GinRecovery())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ws_connections": wsManager.Count()})
	})
	raffleHttp.NewHandler(raffleUC, walletSvc, issuer).RegisterRoutes(router.Group("/api/raffle"))
	gatewayHttp.NewHandler(gatewayUseCase.NewGatewayUseCase(raffleUC), wsManager, issuer).
		RegisterRoutes(router, cfg.Gateway.Path)
	router.GET("/admin/profile", issuer.RequireRole(auth.RoleOperator), admin.NewCollector().Handler())

	lis, port, err := netutil.ListenWithFallback(cfg.Server.Addr(), *portFallback)
	if err != nil {
		logger.FatalGlobal().Err(err).Msg("failed to listen")
	}
	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	logger.InfoGlobal().
		Int("port", port).
		Str("api_url", fmt.Sprintf("http://localhost:%d/api/raffle", port)).
		Str("ws_url", fmt.Sprintf("ws://localhost:%d%s", port, cfg.Gateway.Path)).
		Msg("raffle monolith running")

	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalGlobal().Err(err).Msg("http server failed")
		}
	}()

	// 6. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.InfoGlobal().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorGlobal().Err(err).Msg("http server forced to shutdown")
	}
	if err := routines.Shutdown(ctx); err != nil {
		logger.ErrorGlobal().Err(err).Strs("running", routines.Running()).Msg("background routines did not stop in time")
	}

	cancelRoot()
	select {
	case <-engineDone:
	case <-ctx.Done():
		logger.WarnGlobal().Msg("event dispatcher did not drain in time")
	}
	wsManager.Shutdown()

	logger.InfoGlobal().Msg("server exited properly")
}

func openDatabase(cfg config.DatabaseConfig, logQueries bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "none":
		logger.InfoGlobal().Msg("database disabled, draw history kept in memory")
		return nil, nil
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	gormLog := logger.NewGormLogger()
	if logQueries {
		gormLog.LogLevel = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.InfoGlobal().Str("driver", cfg.Driver).Msg("database connected")
	return db, nil
}

func mustGo(m *routine.Manager, name string, h routine.Handler) {
	if err := m.Go(name, h); err != nil {
		logger.FatalGlobal().Err(err).Str("routine", name).Msg("failed to start routine")
	}
}
