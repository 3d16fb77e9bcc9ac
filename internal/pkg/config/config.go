package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/samirrijal/surveyplot/internal/pkg/labels"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Survey    SurveyConfig    `mapstructure:"survey"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// SurveyConfig tunes the survey engine.
type SurveyConfig struct {
	// PrecisionThreshold is the closure ratio (1:N) below which a traverse
	// is flagged as imprecise.
	PrecisionThreshold float64 `mapstructure:"precision_threshold"`
	LabelRadius        float64 `mapstructure:"label_radius"`
	LabelSpacing       float64 `mapstructure:"label_spacing"`
	LabelMargin        float64 `mapstructure:"label_margin"`
	LabelSteps         int     `mapstructure:"label_steps"`
	ViewWidth          float64 `mapstructure:"view_width"`
	ViewHeight         float64 `mapstructure:"view_height"`
	ViewPadding        float64 `mapstructure:"view_padding"`
	CacheTTLSeconds    int     `mapstructure:"cache_ttl_seconds"`
}

// LabelOptions returns the label layout settings for the configured viewport.
func (s SurveyConfig) LabelOptions() labels.Options {
	opts := labels.DefaultOptions()
	opts.Width = s.ViewWidth
	opts.Height = s.ViewHeight
	opts.Radius = s.LabelRadius
	opts.Spacing = s.LabelSpacing
	opts.Margin = s.LabelMargin
	opts.Steps = s.LabelSteps
	return opts
}

// Load reads configuration from .env, an optional config file and
// environment variables, in increasing order of precedence.
func Load(service string) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: SURVEYPLOT_DATABASE_HOST → database.host
	v.SetEnvPrefix("SURVEYPLOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "survey")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "surveyplot")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "survey-imports")
	v.SetDefault("survey.precision_threshold", 5000)
	v.SetDefault("survey.label_radius", 26)
	v.SetDefault("survey.label_spacing", 20)
	v.SetDefault("survey.label_margin", 18)
	v.SetDefault("survey.label_steps", 8)
	v.SetDefault("survey.view_width", 500)
	v.SetDefault("survey.view_height", 500)
	v.SetDefault("survey.view_padding", 20)
	v.SetDefault("survey.cache_ttl_seconds", 600)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be positive, got %d", c.Database.MaxConns))
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required")
	}
	if c.Survey.PrecisionThreshold <= 0 {
		errs = append(errs, fmt.Sprintf("survey.precision_threshold must be positive, got %v", c.Survey.PrecisionThreshold))
	}
	if c.Survey.LabelRadius <= 0 || c.Survey.LabelSpacing < 0 || c.Survey.LabelMargin < 0 {
		errs = append(errs, "survey.label_radius must be positive and label spacing/margin non-negative")
	}
	if c.Survey.LabelSteps < 0 || c.Survey.LabelSteps > 12 {
		errs = append(errs, fmt.Sprintf("survey.label_steps must be 0-12, got %d", c.Survey.LabelSteps))
	}
	if c.Survey.ViewWidth <= 2*c.Survey.ViewPadding || c.Survey.ViewHeight <= 2*c.Survey.ViewPadding {
		errs = append(errs, "survey.view_width and view_height must exceed twice view_padding")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
