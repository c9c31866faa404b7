package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the appliance.
type Config struct {
	Server     ServerConfig    `mapstructure:"server" yaml:"server"`
	Console    ConsoleConfig   `mapstructure:"console" yaml:"console"`
	Logging    LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Meter      MeterConfig     `mapstructure:"meter" yaml:"meter"`
	Thresholds ThresholdConfig `mapstructure:"thresholds" yaml:"thresholds"`
	Valve      ValveConfig     `mapstructure:"valve" yaml:"valve"`
	Billing    BillingConfig   `mapstructure:"billing" yaml:"billing"`
	Zones      []ZoneConfig    `mapstructure:"zones" yaml:"zones"`
	Sampler    SamplerConfig   `mapstructure:"sampler" yaml:"sampler"`
}

type ServerConfig struct {
	Port           int     `mapstructure:"port" yaml:"port"`
	Host           string  `mapstructure:"host" yaml:"host"`
	CacheSize      int     `mapstructure:"cache_size" yaml:"cache_size"`
	CacheTTL       int     `mapstructure:"cache_ttl_seconds" yaml:"cache_ttl_seconds"`
	RateLimit      float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
}

type ConsoleConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MeterConfig describes the pulse sensor attached to the appliance.
type MeterConfig struct {
	// PulsesPerLitre is the sensor calibration constant. The stock
	// YF-S201 hall sensor emits 450 pulses per litre.
	PulsesPerLitre float64 `mapstructure:"pulses_per_litre" yaml:"pulses_per_litre"`
	// TickIntervalMs is the nominal flow-update cadence in milliseconds.
	TickIntervalMs int `mapstructure:"tick_interval_ms" yaml:"tick_interval_ms"`
}

// ThresholdConfig carries the numeric limits for every detection rule.
// Loaded once at boot; the engine never reads the file again.
type ThresholdConfig struct {
	MaxFlowLPM        float64 `mapstructure:"max_flow_lpm" yaml:"max_flow_lpm"`
	LeakFlowLPM       float64 `mapstructure:"leak_flow_lpm" yaml:"leak_flow_lpm"`
	AnomalyWindowMin  int     `mapstructure:"anomaly_window_minutes" yaml:"anomaly_window_minutes"`
	NoUsageHours      int     `mapstructure:"no_usage_hours" yaml:"no_usage_hours"`
	SuddenDropPercent float64 `mapstructure:"sudden_drop_percent" yaml:"sudden_drop_percent"`
	TempMinC          float64 `mapstructure:"temp_min_c" yaml:"temp_min_c"`
	TempMaxC          float64 `mapstructure:"temp_max_c" yaml:"temp_max_c"`
	PHMin             float64 `mapstructure:"ph_min" yaml:"ph_min"`
	PHMax             float64 `mapstructure:"ph_max" yaml:"ph_max"`
	MinFreeMemory     uint64  `mapstructure:"min_free_memory" yaml:"min_free_memory"`
	MinSignalDBM      int     `mapstructure:"min_signal_dbm" yaml:"min_signal_dbm"`
}

type ValveConfig struct {
	AutoShutdown bool `mapstructure:"auto_shutdown" yaml:"auto_shutdown"`
}

type BillingConfig struct {
	CostPerLitre  float64 `mapstructure:"cost_per_litre" yaml:"cost_per_litre"`
	MonthlyBudget float64 `mapstructure:"monthly_budget" yaml:"monthly_budget"`
}

type ZoneConfig struct {
	Name          string  `mapstructure:"name" yaml:"name"`
	LeakFlowLPM   float64 `mapstructure:"leak_flow_lpm" yaml:"leak_flow_lpm"`
	LeakWindowMin int     `mapstructure:"leak_window_minutes" yaml:"leak_window_minutes"`
}

type SamplerConfig struct {
	// Spec is a cron expression (with seconds field) for the external
	// sensor refresh cadence.
	Spec string `mapstructure:"spec" yaml:"spec"`
}

// TickInterval returns the nominal flow-update cadence as a duration.
func (m MeterConfig) TickInterval() time.Duration {
	return time.Duration(m.TickIntervalMs) * time.Millisecond
}

// AnomalyWindow returns the leak detection window as a duration.
func (t ThresholdConfig) AnomalyWindow() time.Duration {
	return time.Duration(t.AnomalyWindowMin) * time.Minute
}

// NoUsageWindow returns the no-usage detection window as a duration.
func (t ThresholdConfig) NoUsageWindow() time.Duration {
	return time.Duration(t.NoUsageHours) * time.Hour
}

// LeakWindow returns the per-zone leak window as a duration.
func (z ZoneConfig) LeakWindow() time.Duration {
	return time.Duration(z.LeakWindowMin) * time.Minute
}

// Load reads configuration from file with environment variable expansion.
// Callers should fall back to Default() when an error is returned; a bad
// or missing file is a degradation, never fatal.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the compiled-in configuration used when the persisted
// config is absent or unreadable.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Unmarshal of pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)

	cfg.Zones = []ZoneConfig{
		{Name: "kitchen", LeakFlowLPM: 0.3, LeakWindowMin: 30},
		{Name: "bathroom", LeakFlowLPM: 0.3, LeakWindowMin: 30},
		{Name: "garden", LeakFlowLPM: 0.5, LeakWindowMin: 30},
	}
	return &cfg
}

func (c *Config) validate() error {
	if c.Meter.PulsesPerLitre <= 0 {
		return fmt.Errorf("meter.pulses_per_litre must be positive, got %v", c.Meter.PulsesPerLitre)
	}
	if c.Meter.TickIntervalMs <= 0 {
		return fmt.Errorf("meter.tick_interval_ms must be positive, got %d", c.Meter.TickIntervalMs)
	}
	if c.Thresholds.LeakFlowLPM >= c.Thresholds.MaxFlowLPM {
		return fmt.Errorf("thresholds.leak_flow_lpm (%v) must be below thresholds.max_flow_lpm (%v)",
			c.Thresholds.LeakFlowLPM, c.Thresholds.MaxFlowLPM)
	}
	if c.Thresholds.PHMin >= c.Thresholds.PHMax {
		return fmt.Errorf("thresholds.ph_min (%v) must be below thresholds.ph_max (%v)",
			c.Thresholds.PHMin, c.Thresholds.PHMax)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.cache_size", 256)
	v.SetDefault("server.cache_ttl_seconds", 2)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_limit_burst", 20)

	v.SetDefault("console.enabled", true)
	v.SetDefault("console.port", 2323)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("meter.pulses_per_litre", 450.0)
	v.SetDefault("meter.tick_interval_ms", 1000)

	v.SetDefault("thresholds.max_flow_lpm", 25.0)
	v.SetDefault("thresholds.leak_flow_lpm", 0.3)
	v.SetDefault("thresholds.anomaly_window_minutes", 60)
	v.SetDefault("thresholds.no_usage_hours", 24)
	v.SetDefault("thresholds.sudden_drop_percent", 50.0)
	v.SetDefault("thresholds.temp_min_c", 5.0)
	v.SetDefault("thresholds.temp_max_c", 40.0)
	v.SetDefault("thresholds.ph_min", 6.5)
	v.SetDefault("thresholds.ph_max", 8.5)
	v.SetDefault("thresholds.min_free_memory", uint64(20000))
	v.SetDefault("thresholds.min_signal_dbm", -80)

	v.SetDefault("valve.auto_shutdown", true)

	v.SetDefault("billing.cost_per_litre", 0.004)
	v.SetDefault("billing.monthly_budget", 45.0)

	v.SetDefault("sampler.spec", "*/30 * * * * *")
}
