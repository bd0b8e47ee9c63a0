package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/weldalign/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Align  AlignConfig  `yaml:"align" mapstructure:"align"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AlignConfig configures the base-distance search and defect matching.
type AlignConfig struct {
	Concurrency int              `yaml:"concurrency" mapstructure:"concurrency"`
	Candidates  []float64        `yaml:"candidates" mapstructure:"candidates"` // overrides the derived candidates
	Tolerances  model.Tolerances `yaml:"tolerances" mapstructure:"tolerances"`
}

// IngestConfig configures how source files are read.
type IngestConfig struct {
	Sheet1      string `yaml:"sheet1" mapstructure:"sheet1"`
	Sheet2      string `yaml:"sheet2" mapstructure:"sheet2"`
	Charset     string `yaml:"charset" mapstructure:"charset"`
	AliasesPath string `yaml:"aliases_path" mapstructure:"aliases_path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int   `yaml:"port" mapstructure:"port"`
	MaxUploadMB int64 `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	SaveRuns    bool  `yaml:"save_runs" mapstructure:"save_runs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WELDALIGN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	tol := model.DefaultTolerances()
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "weldalign.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("server.save_runs", true)
	v.SetDefault("align.concurrency", 3)
	v.SetDefault("align.tolerances.distance", tol.Distance)
	v.SetDefault("align.tolerances.clock_position", tol.ClockPosition)
	v.SetDefault("align.tolerances.length", tol.Length)
	v.SetDefault("align.tolerances.width", tol.Width)
	v.SetDefault("align.tolerances.depth", tol.Depth)
	v.SetDefault("align.tolerances.min_confidence", tol.MinConfidence)
	v.SetDefault("ingest.sheet1", "0")
	v.SetDefault("ingest.sheet2", "0")
	v.SetDefault("ingest.charset", "")
	v.SetDefault("ingest.aliases_path", "")

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

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "align", "serve" and "runs".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "align", "serve":
		if c.Align.Concurrency < 1 || c.Align.Concurrency > 64 {
			errs = append(errs, "align.concurrency must be between 1 and 64")
		}
		for _, b := range c.Align.Candidates {
			if b <= 0 {
				errs = append(errs, "align.candidates values must be > 0")
				break
			}
		}
		if err := c.Align.Tolerances.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "runs":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode == "runs" || (mode == "serve" && c.Server.SaveRuns) {
		if err := c.Store.validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s StoreConfig) validate() error {
	switch s.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("store.driver must be sqlite or postgres, got %q", s.Driver)
	}
	if s.DatabaseURL == "" {
		return eris.New("store.database_url is required")
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
