package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.GetControllerAddr())
	assert.Equal(t, 4, cfg.Workers.PoolSize)
	assert.Equal(t, "staging", cfg.Cycle.StagingHub)
	assert.Equal(t, "hub_log.txt", cfg.LogFile)
	assert.Len(t, cfg.Cycle.Tolerance, 6)
	assert.Equal(t, 0, cfg.Cycle.MaxRetries)

	templates := cfg.Templates()
	require.Len(t, templates, 2)
	assert.Len(t, templates[0], 8)
	assert.Equal(t, "place_1_1", templates[0][0])
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONTROLLER_ADDR", "10.0.0.7")
	t.Setenv("CYCLE_TEMPLATE_A", "a1,a2")
	t.Setenv("CYCLE_TEMPLATE_B", "b1")
	t.Setenv("CYCLE_RETREAT_AGENT", "left")
	t.Setenv("WORKER_POOL_SIZE", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.7:9999", cfg.GetControllerAddr())
	assert.Equal(t, [][]string{{"a1", "a2"}, {"b1"}}, cfg.Templates())
	assert.Equal(t, "left", cfg.Cycle.RetreatAgent)
	assert.Equal(t, 2, cfg.Workers.PoolSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }},
		{"bad encoding", func(c *Config) { c.LogEncoding = "xml" }},
		{"zero pool", func(c *Config) { c.Workers.PoolSize = 0 }},
		{"short tolerance", func(c *Config) { c.Cycle.Tolerance = []float64{0.1} }},
		{"zero speed", func(c *Config) { c.Cycle.Speed = 0 }},
		{"negative retries", func(c *Config) { c.Cycle.MaxRetries = -1 }},
		{"two topology sources", func(c *Config) {
			c.Topology.File = "cell.yaml"
			c.Topology.URL = "http://127.0.0.1:80"
		}},
		{"failure rate out of range", func(c *Config) { c.Controller.SimFailureRate = 1.5 }},
		{"missing controller", func(c *Config) { c.Controller.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateSimulatedSkipsControllerAddr(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Controller.Simulate = true
	cfg.Controller.Addr = ""
	assert.NoError(t, cfg.Validate())
}

func TestLoadArgumentOverridesControllerAddr(t *testing.T) {
	t.Setenv("CONTROLLER_ADDR", "10.0.0.7")

	cfg, err := Load("192.168.1.20")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20:9999", cfg.GetControllerAddr())
}

func TestLoadRejectsEmptyArgument(t *testing.T) {
	_, err := Load("")
	assert.ErrorContains(t, err, "controller address is required")
}
