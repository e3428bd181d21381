package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aescanero/hubcycle/internal/application/cycle"
	"github.com/aescanero/hubcycle/internal/application/startup"
	"github.com/aescanero/hubcycle/internal/application/workers"
	"github.com/aescanero/hubcycle/internal/config"
	"github.com/aescanero/hubcycle/pkg/adapters/controller/commander"
	"github.com/aescanero/hubcycle/pkg/adapters/controller/sim"
	eventsmemory "github.com/aescanero/hubcycle/pkg/adapters/events/memory"
	"github.com/aescanero/hubcycle/pkg/adapters/events/redis"
	"github.com/aescanero/hubcycle/pkg/adapters/metrics/prometheus"
	storagememory "github.com/aescanero/hubcycle/pkg/adapters/storage/memory"
	redisstorage "github.com/aescanero/hubcycle/pkg/adapters/storage/redis"
	"github.com/aescanero/hubcycle/pkg/adapters/topology/file"
	"github.com/aescanero/hubcycle/pkg/adapters/topology/rest"
	"github.com/aescanero/hubcycle/pkg/api/grpc"
	"github.com/aescanero/hubcycle/pkg/api/http"
	"github.com/aescanero/hubcycle/pkg/api/websocket"
	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/aescanero/hubcycle/pkg/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration; the only argument is the controller address
	cfg, err := config.Load(os.Args[1:]...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Setting ip address of Realtime Controller to: %s\n", cfg.Controller.Addr)

	// Initialize logger
	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("starting hub cycle",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()

	if err != nil {
		logger.Error("hub cycle failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// run wires the components, executes one hub cycle and shuts everything down
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	runID := uuid.New().String()
	logger = logger.With(zap.String("run_id", runID))
	tracker := cycle.NewTracker(runID)

	// Events and state storage
	eventBus, stateStorage, closeBackend, err := initBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	metricsCollector := prometheus.NewCollector(nil)

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:    cfg.HTTPPort,
		Storage: stateStorage,
		Run:     tracker,
		Logger:  logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(eventBus, logger))

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:   cfg.GRPCPort,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	tracker.OnChange(grpcServer.SetPhase)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Error("gRPC server failed", zap.Error(err))
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", zap.Error(err))
		}
		if err := grpcServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("gRPC server shutdown error", zap.Error(err))
		}
	}()

	report, err := runCycle(ctx, cfg, runID, eventBus, stateStorage, metricsCollector, logger)
	if err != nil {
		tracker.Set(domain.RunPhaseFailed)
		return err
	}
	tracker.Set(domain.RunPhaseCompleted)

	logger.Info("hub cycle complete",
		zap.Int("agents", len(report.Agents)),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))
	return nil
}

// runCycle connects to the controller, prepares the agents and runs the
// scheduler to completion
func runCycle(
	ctx context.Context,
	cfg *config.Config,
	runID string,
	eventBus ports.EventBus,
	stateStorage ports.StateStorage,
	metricsCollector ports.MetricsCollector,
	logger *zap.Logger,
) (*domain.CycleReport, error) {
	startupCtx, cancel := context.WithTimeout(ctx, cfg.Timeouts.StartupTimeout)
	defer cancel()

	gateway, topologySource, closeGateway, err := initController(startupCtx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer closeGateway()

	// Faults are cleared before anything else is asked of the controller.
	if err := startup.Recover(startupCtx, gateway, logger); err != nil {
		return nil, fmt.Errorf("startup failed: %w", err)
	}

	topology, err := topologySource.Load(startupCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to load topology: %w", err)
	}
	if err := startup.NewValidator(cfg.Cycle.Workstate, cfg.Cycle.StagingHub).Validate(topology); err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}
	names := topology.Names()
	logger.Info("loaded topology",
		zap.String("group", topology.Group),
		zap.Strings("agents", names))

	assign, err := cycle.NewResolver(cfg.Templates(), logger).Resolve(topology.Agents)
	if err != nil {
		return nil, err
	}
	if cfg.Cycle.RetreatAgent != "" {
		if err := assign.Designate(names, cfg.Cycle.RetreatAgent); err != nil {
			return nil, err
		}
	}
	logger.Info("retreat agent", zap.String("agent", names[assign.RetreatIdx]))

	if err := startup.Prepare(startupCtx, gateway, names, startup.Options{
		Workstate:      cfg.Cycle.Workstate,
		StagingHub:     cfg.Cycle.StagingHub,
		Speed:          cfg.Cycle.Speed,
		ReplanAttempts: cfg.Cycle.ReplanAttempts,
		MoveTimeout:    cfg.Cycle.MoveTimeout,
	}, logger); err != nil {
		return nil, fmt.Errorf("startup failed: %w", err)
	}
	if a, ok := gateway.(interface{ Arm() }); ok {
		a.Arm()
	}

	pool := workers.NewPool(
		cfg.Workers.PoolSize,
		cfg.Workers.QueueSize,
		metricsCollector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)
	if err := pool.Start(); err != nil {
		return nil, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
		defer cancel()
		if err := pool.Shutdown(shutdownCtx); err != nil {
			logger.Error("worker pool shutdown error", zap.Error(err))
		}
	}()

	seed := cfg.Cycle.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var tol domain.Tolerance
	copy(tol[:], cfg.Cycle.Tolerance)

	scheduler := cycle.NewScheduler(&cycle.Config{
		Gateway: gateway,
		Pool:    pool,
		Targets: cycle.NewTargetGenerator(cycle.DefaultBounds(), rand.New(rand.NewSource(seed))),
		Events:  eventBus,
		Storage: stateStorage,
		Metrics: metricsCollector,
		Logger:  logger,
		Options: cycle.Options{
			RunID:      runID,
			Workstate:  cfg.Cycle.Workstate,
			StagingHub: cfg.Cycle.StagingHub,
			Speed:      cfg.Cycle.Speed,
			Tolerance:  tol,
			MaxRetries: cfg.Cycle.MaxRetries,
		},
	})

	return scheduler.Run(ctx, names, assign)
}

// initController returns the move gateway and the topology source
func initController(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.MoveGateway, ports.TopologyService, func(), error) {
	var topologySource ports.TopologyService
	switch {
	case cfg.Topology.File != "":
		topologySource = file.New(cfg.Topology.File, cfg.Topology.Group)
	case cfg.Topology.URL != "":
		topologySource = rest.NewClient(cfg.Topology.URL, cfg.Topology.Group, logger)
	}

	if cfg.Controller.Simulate {
		opts := sim.Options{
			MinLatency:  cfg.Controller.SimMinLatency,
			MaxLatency:  cfg.Controller.SimMaxLatency,
			FailureRate: cfg.Controller.SimFailureRate,
			Seed:        cfg.Cycle.Seed,
		}
		if topologySource == nil {
			opts.Topology = sim.DefaultTopology(cfg.Templates(), cfg.Cycle.StagingHub, cfg.Cycle.Workstate)
		} else {
			topology, err := topologySource.Load(ctx)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("failed to load topology: %w", err)
			}
			opts.Topology = topology
		}
		controller := sim.New(opts, logger)
		logger.Info("using simulated controller",
			zap.Float64("failure_rate", opts.FailureRate),
			zap.Duration("max_latency", opts.MaxLatency))
		return controller, controller, func() {}, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Controller.DialTimeout)
	defer cancel()
	client, err := commander.Dial(dialCtx, cfg.GetControllerAddr(), commander.DefaultReplyTimeout, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	// The control panel is served from the controller host.
	if topologySource == nil {
		topologySource = rest.NewClient("http://"+cfg.Controller.Addr, cfg.Topology.Group, logger)
	}

	closeClient := func() {
		if err := client.Close(); err != nil && !errors.Is(err, commander.ErrClosed) {
			logger.Debug("controller close error", zap.Error(err))
		}
	}
	return client, topologySource, closeClient, nil
}

// initBackend selects Redis or in-memory events and storage
func initBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.EventBus, ports.StateStorage, func(), error) {
	if !cfg.Redis.Enabled {
		eventBus := eventsmemory.NewInMemoryEventBus()
		return eventBus, storagememory.NewInMemoryStateStorage(), func() { _ = eventBus.Close() }, nil
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	// Test Redis connection
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	hostname, _ := os.Hostname()
	eventBus := redis.NewStreamsEventBus(
		redisClient,
		"hubcycle-"+uuid.New().String(),
		fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		10000,
		logger,
	)
	stateStorage := redisstorage.NewStateStorage(redisClient, cfg.Redis.StateTTL, logger)

	closeFn := func() {
		_ = eventBus.Close()
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}
	return eventBus, stateStorage, closeFn, nil
}

// initLogger builds the run logger. It writes to stderr and appends to the
// run log file.
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch cfg.LogLevel {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.Encoding = cfg.LogEncoding
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stderr"}
	if cfg.LogFile != "" {
		config.OutputPaths = append(config.OutputPaths, cfg.LogFile)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}
