package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for a hub cycle run
type Config struct {
	// Server configuration
	HTTPPort int    `env:"HUBCYCLE_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"HUBCYCLE_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Run log
	LogFile     string `env:"LOG_FILE" envDefault:"hub_log.txt"`
	LogEncoding string `env:"LOG_ENCODING" envDefault:"console"`

	Controller ControllerConfig
	Topology   TopologyConfig
	Cycle      CycleConfig

	// Redis configuration
	Redis RedisConfig

	// Worker configuration
	Workers WorkerConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// ControllerConfig holds the motion controller connection settings
type ControllerConfig struct {
	Addr        string        `env:"CONTROLLER_ADDR" envDefault:"127.0.0.1"`
	Port        int           `env:"CONTROLLER_PORT" envDefault:"9999"`
	DialTimeout time.Duration `env:"CONTROLLER_DIAL_TIMEOUT" envDefault:"5s"`

	// Simulated controller, used instead of a real connection
	Simulate       bool          `env:"CONTROLLER_SIMULATE" envDefault:"false"`
	SimMinLatency  time.Duration `env:"CONTROLLER_SIM_MIN_LATENCY" envDefault:"50ms"`
	SimMaxLatency  time.Duration `env:"CONTROLLER_SIM_MAX_LATENCY" envDefault:"250ms"`
	SimFailureRate float64       `env:"CONTROLLER_SIM_FAILURE_RATE" envDefault:"0.05"`
}

// TopologyConfig selects where agents and hubs are read from
type TopologyConfig struct {
	File  string `env:"TOPOLOGY_FILE"`
	URL   string `env:"TOPOLOGY_URL"`
	Group string `env:"TOPOLOGY_GROUP"`
}

// CycleConfig holds the hub cycle parameters
type CycleConfig struct {
	Speed      float64   `env:"CYCLE_SPEED" envDefault:"1.0"`
	Workstate  string    `env:"CYCLE_WORKSTATE" envDefault:"no_part"`
	StagingHub string    `env:"CYCLE_STAGING_HUB" envDefault:"staging"`
	Tolerance  []float64 `env:"CYCLE_TOLERANCE" envDefault:"0.1,0.1,0.1,3.14,3.14,3.14" envSeparator:","`

	TemplateA []string `env:"CYCLE_TEMPLATE_A" envDefault:"place_1_1,place_1_2,place_1_3,place_1_4,place_2_1,place_2_2,place_2_3,place_2_4" envSeparator:","`
	TemplateB []string `env:"CYCLE_TEMPLATE_B" envDefault:"place_1_1,place_1_2,place_1_3,place_1_4,place_2_1,place_2_2,place_2_3,place_2_4" envSeparator:","`

	// RetreatAgent names the agent forced to retreat on failure. Empty means
	// the last agent assigned a template.
	RetreatAgent string `env:"CYCLE_RETREAT_AGENT"`
	// MaxRetries caps in-place retries at one hub; 0 is unbounded.
	MaxRetries int `env:"CYCLE_MAX_RETRIES" envDefault:"0"`

	ReplanAttempts int           `env:"CYCLE_REPLAN_ATTEMPTS" envDefault:"1"`
	MoveTimeout    time.Duration `env:"CYCLE_MOVE_TIMEOUT" envDefault:"500ms"`

	// Seed for target generation; 0 seeds from the clock.
	Seed int64 `env:"CYCLE_SEED" envDefault:"0"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled  bool          `env:"REDIS_ENABLED" envDefault:"false"`
	Addr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string        `env:"REDIS_PASS"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	StateTTL time.Duration `env:"REDIS_STATE_TTL" envDefault:"24h"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"4"`
	QueueSize           int           `env:"WORKER_QUEUE_SIZE" envDefault:"64"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	StartupTimeout  time.Duration `env:"TIMEOUT_STARTUP" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables. A first argument
// overrides the controller address.
func Load(args ...string) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(args) > 0 {
		cfg.Controller.Addr = args[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	// Validate controller config
	if !c.Controller.Simulate {
		if c.Controller.Addr == "" {
			return fmt.Errorf("controller address is required")
		}
		if c.Controller.Port < 1 || c.Controller.Port > 65535 {
			return fmt.Errorf("invalid controller port: %d", c.Controller.Port)
		}
	}
	if c.Controller.SimFailureRate < 0 || c.Controller.SimFailureRate > 1 {
		return fmt.Errorf("simulated failure rate must be within [0, 1]: %v", c.Controller.SimFailureRate)
	}
	if c.Controller.SimMaxLatency < c.Controller.SimMinLatency {
		return fmt.Errorf("simulated max latency %s is below min latency %s",
			c.Controller.SimMaxLatency, c.Controller.SimMinLatency)
	}

	// Validate topology source
	if c.Topology.File != "" && c.Topology.URL != "" {
		return fmt.Errorf("only one of TOPOLOGY_FILE and TOPOLOGY_URL may be set")
	}

	// Validate cycle config
	if c.Cycle.Speed <= 0 || c.Cycle.Speed > 1 {
		return fmt.Errorf("cycle speed must be within (0, 1]: %v", c.Cycle.Speed)
	}
	if len(c.Cycle.Tolerance) != 6 {
		return fmt.Errorf("cycle tolerance needs 6 values, got %d", len(c.Cycle.Tolerance))
	}
	if c.Cycle.StagingHub == "" {
		return fmt.Errorf("staging hub is required")
	}
	if c.Cycle.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}

	// Validate worker config
	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}
	if c.Workers.QueueSize < 1 {
		return fmt.Errorf("worker queue size must be at least 1")
	}

	// Validate log settings
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
	if c.LogEncoding != "console" && c.LogEncoding != "json" {
		return fmt.Errorf("invalid log encoding: %s (must be console or json)", c.LogEncoding)
	}

	return nil
}

// Templates returns the hub-sequence templates in resolver order
func (c *Config) Templates() [][]string {
	return [][]string{c.Cycle.TemplateA, c.Cycle.TemplateB}
}

// GetControllerAddr returns the controller's host:port
func (c *Config) GetControllerAddr() string {
	return fmt.Sprintf("%s:%d", c.Controller.Addr, c.Controller.Port)
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
