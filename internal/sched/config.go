package sched

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors config.yml.
type Config struct {
	TickMS        int                 `yaml:"tick_ms"`        // 1 (by default), preemptive tick period
	HeapBytes     int                 `yaml:"heap_bytes"`     // 262144 (by default), stack budget of running tasks
	MaxTasks      int                 `yaml:"max_tasks"`      // 32 (by default), concurrently running preemptive tasks
	NativeThreads bool                `yaml:"native_threads"` // pin preemptive tasks to OS threads (linux)
	PumpMS        int                 `yaml:"pump_ms"`        // 10 (by default), host control loop period
	LogLevel      string              `yaml:"log_level"`      // info (by default)
	CSVLog        string              `yaml:"csv_log"`        // status event CSV path, empty = off
	MetricsAddr   string              `yaml:"metrics_addr"`   // Prometheus listen address, empty = off
	Tasks         map[string]Schedule `yaml:"tasks"`          // per-task schedule overrides
}

// If the config file is not found, we use default values
func DefaultConfig() Config {
	return Config{
		TickMS:    1,
		HeapBytes: 256 * 1024,
		MaxTasks:  32,
		PumpMS:    10,
		LogLevel:  "info",
	}
}

// Load reads YAML and overrides defaults; empty path or missing file = defaults only.
// A file that exists but does not parse, or holds an invalid schedule, is an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}

	// sanity clamps
	if cfg.TickMS <= 0 {
		cfg.TickMS = 1
	}
	if cfg.HeapBytes <= 0 {
		cfg.HeapBytes = 256 * 1024
	}
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = 32
	}
	if cfg.PumpMS <= 0 {
		cfg.PumpMS = 10
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	for name, s := range cfg.Tasks {
		if err := s.Validate(); err != nil {
			return DefaultConfig(), fmt.Errorf("config %s: task %q: %w", path, name, err)
		}
	}

	return cfg, nil
}

// Schedule returns the configured schedule for a task, or def when the
// config has none.
func (c Config) Schedule(name string, def Schedule) Schedule {
	if s, ok := c.Tasks[name]; ok {
		return s
	}
	return def
}

func (c Config) ticks() TickConverter { return TickConverter{PeriodMs: uint32(c.TickMS)} }
