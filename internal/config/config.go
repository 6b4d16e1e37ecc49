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
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	Scorer        ScorerConfig        `yaml:"scorer" mapstructure:"scorer"`
	Matcher       MatcherConfig       `yaml:"matcher" mapstructure:"matcher"`
	Aggregator    AggregatorConfig    `yaml:"aggregator" mapstructure:"aggregator"`
	Contradiction ContradictionConfig `yaml:"contradiction" mapstructure:"contradiction"`
	Recalc        RecalcConfig        `yaml:"recalc" mapstructure:"recalc"`
	Temporal      TemporalConfig      `yaml:"temporal" mapstructure:"temporal"`
	Monitoring    MonitoringConfig    `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	CORSOrigins    []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ScorerConfig holds the versioned similarity weights and scoring rules.
// Weights are fractions and must sum to 1.0.
type ScorerConfig struct {
	Version string `yaml:"version" mapstructure:"version"`

	IndustryWeight   float64 `yaml:"industry_weight" mapstructure:"industry_weight"`
	RevenueWeight    float64 `yaml:"revenue_weight" mapstructure:"revenue_weight"`
	TeamSizeWeight   float64 `yaml:"team_size_weight" mapstructure:"team_size_weight"`
	CapabilityWeight float64 `yaml:"capability_weight" mapstructure:"capability_weight"`
	ChallengeWeight  float64 `yaml:"challenge_weight" mapstructure:"challenge_weight"`

	// IndustryPartialScore is awarded when industries share a parent category.
	IndustryPartialScore float64 `yaml:"industry_partial_score" mapstructure:"industry_partial_score"`
	// SubIndustryMismatchScore is awarded for the same industry with
	// different, known sub-industries.
	SubIndustryMismatchScore float64 `yaml:"sub_industry_mismatch_score" mapstructure:"sub_industry_mismatch_score"`
	// BandSteps[d] is the score for a band distance of d; distances past the
	// end score 0.
	BandSteps []float64 `yaml:"band_steps" mapstructure:"band_steps"`
	// StrongMatchCutoff is the dimension score that counts toward the
	// explanation.
	StrongMatchCutoff float64 `yaml:"strong_match_cutoff" mapstructure:"strong_match_cutoff"`

	// IndustryParents maps an industry to its parent category.
	IndustryParents map[string]string `yaml:"industry_parents" mapstructure:"industry_parents"`
}

// MatcherConfig configures profile matching.
type MatcherConfig struct {
	Threshold  float64 `yaml:"threshold" mapstructure:"threshold"`
	MaxResults int     `yaml:"max_results" mapstructure:"max_results"`
	SummaryTop int     `yaml:"summary_top" mapstructure:"summary_top"`
}

// AggregatorConfig configures path metric aggregation.
type AggregatorConfig struct {
	HighConfidenceMin   int     `yaml:"high_confidence_min" mapstructure:"high_confidence_min"`
	MediumConfidenceMin int     `yaml:"medium_confidence_min" mapstructure:"medium_confidence_min"`
	ShrinkageSamples    float64 `yaml:"shrinkage_samples" mapstructure:"shrinkage_samples"`
}

// ContradictionConfig configures the severity policy.
type ContradictionConfig struct {
	LowMaxPercent    float64 `yaml:"low_max_percent" mapstructure:"low_max_percent"`
	MediumMaxPercent float64 `yaml:"medium_max_percent" mapstructure:"medium_max_percent"`
	TolerancePercent float64 `yaml:"tolerance_percent" mapstructure:"tolerance_percent"`
	MinSamples       int     `yaml:"min_samples" mapstructure:"min_samples"`
	TopLimit         int     `yaml:"top_limit" mapstructure:"top_limit"`
}

// RecalcConfig configures the recalculation scheduler.
type RecalcConfig struct {
	ThresholdOutcomes int `yaml:"threshold_outcomes" mapstructure:"threshold_outcomes"`
	JobTimeoutSecs    int `yaml:"job_timeout_secs" mapstructure:"job_timeout_secs"`
	MaxConcurrent     int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	CommitRetries     int `yaml:"commit_retries" mapstructure:"commit_retries"`
	StaleAfterSecs    int `yaml:"stale_after_secs" mapstructure:"stale_after_secs"`
}

// TemporalConfig configures the scheduled recalculation worker.
type TemporalConfig struct {
	HostPort     string `yaml:"host_port" mapstructure:"host_port"`
	Namespace    string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue    string `yaml:"task_queue" mapstructure:"task_queue"`
	ScheduleID   string `yaml:"schedule_id" mapstructure:"schedule_id"`
	ScheduleCron string `yaml:"schedule_cron" mapstructure:"schedule_cron"`
}

// MonitoringConfig configures recalculation health checks and alerting.
type MonitoringConfig struct {
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// Load reads configuration from ./config.yaml when present, then the
// environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. Unlike the default lookup,
// a named file that cannot be read is an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	// Environment
	v.SetEnvPrefix("FUTURETREE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "futuretree.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:4000"})
	v.SetDefault("server.rate_limit_rps", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("scorer.version", "v1")
	v.SetDefault("scorer.industry_weight", 0.30)
	v.SetDefault("scorer.revenue_weight", 0.25)
	v.SetDefault("scorer.capability_weight", 0.20)
	v.SetDefault("scorer.challenge_weight", 0.15)
	v.SetDefault("scorer.team_size_weight", 0.10)
	v.SetDefault("scorer.industry_partial_score", 50.0)
	v.SetDefault("scorer.sub_industry_mismatch_score", 85.0)
	v.SetDefault("scorer.band_steps", []float64{100, 75, 50, 25})
	v.SetDefault("scorer.strong_match_cutoff", 70.0)
	v.SetDefault("matcher.threshold", 30.0)
	v.SetDefault("matcher.max_results", 50)
	v.SetDefault("matcher.summary_top", 10)
	v.SetDefault("aggregator.high_confidence_min", 20)
	v.SetDefault("aggregator.medium_confidence_min", 8)
	v.SetDefault("aggregator.shrinkage_samples", 5.0)
	v.SetDefault("contradiction.low_max_percent", 10.0)
	v.SetDefault("contradiction.medium_max_percent", 25.0)
	v.SetDefault("contradiction.tolerance_percent", 5.0)
	v.SetDefault("contradiction.min_samples", 2)
	v.SetDefault("contradiction.top_limit", 10)
	v.SetDefault("recalc.threshold_outcomes", 5)
	v.SetDefault("recalc.job_timeout_secs", 120)
	v.SetDefault("recalc.max_concurrent", 4)
	v.SetDefault("recalc.commit_retries", 3)
	v.SetDefault("recalc.stale_after_secs", 900)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "futuretree-recalc")
	v.SetDefault("temporal.schedule_id", "futuretree-nightly-recalc")
	v.SetDefault("temporal.schedule_cron", "0 3 * * *")
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrapf(err, "config: read %s", v.ConfigFileUsed())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required by the given command mode are set.
// Modes: "serve", "recalc", "worker", "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "store", "recalc", "serve", "worker":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimitRPS <= 0 {
			errs = append(errs, "server.rate_limit_rps must be > 0")
		}
	}

	if c.Matcher.Threshold < 0 || c.Matcher.Threshold > 100 {
		errs = append(errs, "matcher.threshold must be between 0 and 100")
	}
	if c.Matcher.MaxResults < 1 {
		errs = append(errs, "matcher.max_results must be >= 1")
	}
	if c.Contradiction.LowMaxPercent <= 0 || c.Contradiction.MediumMaxPercent <= c.Contradiction.LowMaxPercent {
		errs = append(errs, "contradiction thresholds must satisfy 0 < low_max_percent < medium_max_percent")
	}
	if c.Aggregator.MediumConfidenceMin < 1 || c.Aggregator.HighConfidenceMin <= c.Aggregator.MediumConfidenceMin {
		errs = append(errs, "aggregator confidence minimums must satisfy 1 <= medium < high")
	}

	if mode == "serve" || mode == "recalc" || mode == "worker" {
		if c.Recalc.JobTimeoutSecs <= 0 {
			errs = append(errs, "recalc.job_timeout_secs must be > 0")
		}
		if c.Recalc.MaxConcurrent < 1 || c.Recalc.MaxConcurrent > 32 {
			errs = append(errs, "recalc.max_concurrent must be between 1 and 32")
		}
		if c.Recalc.ThresholdOutcomes < 1 {
			errs = append(errs, "recalc.threshold_outcomes must be >= 1")
		}
		if c.Recalc.StaleAfterSecs > 0 && c.Recalc.StaleAfterSecs <= c.Recalc.JobTimeoutSecs {
			errs = append(errs, "recalc.stale_after_secs must exceed recalc.job_timeout_secs")
		}
	}

	if mode == "serve" && c.Monitoring.LookbackWindowHours < 1 {
		errs = append(errs, "monitoring.lookback_window_hours must be >= 1")
	}

	if mode == "worker" {
		if c.Temporal.HostPort == "" {
			errs = append(errs, "temporal.host_port is required")
		}
		if c.Temporal.TaskQueue == "" {
			errs = append(errs, "temporal.task_queue is required")
		}
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
