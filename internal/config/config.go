package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the run history backend. Driver "none" disables persistence.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ScoringConfig configures the pillar evaluators and the presence summary.
type ScoringConfig struct {
	Seed           uint64             `yaml:"seed" mapstructure:"seed"`
	TestRatio      float64            `yaml:"test_ratio" mapstructure:"test_ratio"`
	TargetColumn   string             `yaml:"target_column" mapstructure:"target_column"`
	Epsilon        float64            `yaml:"epsilon" mapstructure:"epsilon"`
	AdversarialEps float64            `yaml:"adversarial_eps" mapstructure:"adversarial_eps"`
	MaxIter        int                `yaml:"max_iter" mapstructure:"max_iter"`
	LearningRate   float64            `yaml:"learning_rate" mapstructure:"learning_rate"`
	Thresholds     map[string]float64 `yaml:"thresholds" mapstructure:"thresholds"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentDatasets int  `yaml:"max_concurrent_datasets" mapstructure:"max_concurrent_datasets"`
	ConcurrentPillars     bool `yaml:"concurrent_pillars" mapstructure:"concurrent_pillars"`
}

// OutputConfig configures where and how report artifacts are written.
type OutputConfig struct {
	Dir            string `yaml:"dir" mapstructure:"dir"`
	ReportFormat   string `yaml:"report_format" mapstructure:"report_format"`
	SummaryXLSX    bool   `yaml:"summary_xlsx" mapstructure:"summary_xlsx"`
	WriteProcessed bool   `yaml:"write_processed" mapstructure:"write_processed"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port          int      `yaml:"port" mapstructure:"port"`
	RatePerSecond float64  `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int      `yaml:"burst" mapstructure:"burst"`
	MaxUploadMB   int64    `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	AllowedOrigin []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures the background alert checker run by serve.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinCompositeScore    float64 `yaml:"min_composite_score" mapstructure:"min_composite_score"`
}

// DefaultThresholds returns the presence thresholds applied when none are configured.
func DefaultThresholds() map[string]float64 {
	return map[string]float64{
		"fairness":       0.0,
		"transparency":   0.5,
		"robustness":     0.5,
		"privacy":        0.5,
		"accountability": 0.33,
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COMPLIANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "compliance.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("scoring.seed", 42)
	v.SetDefault("scoring.test_ratio", 0.2)
	v.SetDefault("scoring.target_column", "")
	v.SetDefault("scoring.epsilon", 1.0)
	v.SetDefault("scoring.adversarial_eps", 0.2)
	v.SetDefault("scoring.max_iter", 1000)
	v.SetDefault("scoring.learning_rate", 0.1)
	for pillar, threshold := range DefaultThresholds() {
		v.SetDefault("scoring.thresholds."+pillar, threshold)
	}
	v.SetDefault("batch.max_concurrent_datasets", 4)
	v.SetDefault("batch.concurrent_pillars", true)
	v.SetDefault("output.dir", "Output_report")
	v.SetDefault("output.report_format", "json")
	v.SetDefault("output.summary_xlsx", false)
	v.SetDefault("output.write_processed", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_second", 2.0)
	v.SetDefault("server.burst", 4)
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_composite_score", 0.5)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []string

	if c.Scoring.TestRatio <= 0 || c.Scoring.TestRatio >= 1 {
		errs = append(errs, fmt.Sprintf("scoring.test_ratio must be in (0,1), got %g", c.Scoring.TestRatio))
	}
	if c.Scoring.Epsilon <= 0 {
		errs = append(errs, "scoring.epsilon must be > 0")
	}
	if c.Scoring.AdversarialEps < 0 {
		errs = append(errs, "scoring.adversarial_eps must be >= 0")
	}
	if c.Scoring.MaxIter <= 0 {
		errs = append(errs, "scoring.max_iter must be > 0")
	}
	if c.Batch.MaxConcurrentDatasets <= 0 {
		errs = append(errs, "batch.max_concurrent_datasets must be > 0")
	}
	switch c.Output.ReportFormat {
	case "json", "yaml":
	default:
		errs = append(errs, fmt.Sprintf("output.report_format must be json or yaml, got %q", c.Output.ReportFormat))
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite, postgres or none, got %q", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
