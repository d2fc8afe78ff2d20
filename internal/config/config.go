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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	ICC       ICCConfig       `yaml:"icc" mapstructure:"icc"`
	NEC       NECConfig       `yaml:"nec" mapstructure:"nec"`
	IECC      IECCConfig      `yaml:"iecc" mapstructure:"iecc"`
	Municipal MunicipalConfig `yaml:"municipal" mapstructure:"municipal"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FetchConfig configures outbound document fetching.
type FetchConfig struct {
	UserAgent            string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs          int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries           int    `yaml:"max_retries" mapstructure:"max_retries"`
	MinDelayMs           int    `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	RateLimitBackoffSecs int    `yaml:"rate_limit_backoff_secs" mapstructure:"rate_limit_backoff_secs"`
}

// ICCConfig configures the ICC adoption chart source.
type ICCConfig struct {
	URLs          []string `yaml:"urls" mapstructure:"urls"`
	PdfToTextPath string   `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	WorkDir       string   `yaml:"work_dir" mapstructure:"work_dir"`
}

// NECConfig configures the electrical code source.
type NECConfig struct {
	PrimaryURL   string `yaml:"primary_url" mapstructure:"primary_url"`
	SecondaryURL string `yaml:"secondary_url" mapstructure:"secondary_url"`
	Live         bool   `yaml:"live" mapstructure:"live"`
}

// IECCConfig configures the energy code source. PortalURL is a format
// string taking the lowercase state abbreviation.
type IECCConfig struct {
	PortalURL string `yaml:"portal_url" mapstructure:"portal_url"`
	Live      bool   `yaml:"live" mapstructure:"live"`
}

// MunicipalConfig configures the municipal ordinance source.
type MunicipalConfig struct {
	MunicodeBaseURL  string `yaml:"municode_base_url" mapstructure:"municode_base_url"`
	Ecode360BaseURL  string `yaml:"ecode360_base_url" mapstructure:"ecode360_base_url"`
	MaxJurisdictions int    `yaml:"max_jurisdictions" mapstructure:"max_jurisdictions"`
	Concurrency      int    `yaml:"concurrency" mapstructure:"concurrency"`
	BreakerThreshold int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ExportConfig configures the hierarchy export.
type ExportConfig struct {
	Output string `yaml:"output" mapstructure:"output"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.ahj-registry")

	// Environment
	v.SetEnvPrefix("AHJ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "ahj_registry.db")
	v.SetDefault("store.max_conns", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("fetch.user_agent", "AHJ-Registry/1.0 (building-code research)")
	v.SetDefault("fetch.timeout_secs", 20)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.min_delay_ms", 1200)
	v.SetDefault("fetch.rate_limit_backoff_secs", 5)
	v.SetDefault("icc.urls", []string{
		"https://www.iccsafe.org/wp-content/uploads/Master-I-Code-Adoption-Chart.pdf",
		"https://www.mitek-us.com/wp-content/uploads/2023/03/Master-I-Code-Adoption-Chart.pdf",
	})
	v.SetDefault("icc.pdftotext_path", "pdftotext")
	v.SetDefault("nec.primary_url", "https://www.nfpa.org/education-and-research/electrical/nec-enforcement-maps")
	v.SetDefault("nec.secondary_url", "https://citel.us/en/where-is-the-national-electrical-code-in-effect-as-of-2025")
	v.SetDefault("nec.live", true)
	v.SetDefault("iecc.portal_url", "https://www.energycodes.gov/status/states/%s")
	v.SetDefault("iecc.live", false)
	v.SetDefault("municipal.municode_base_url", "https://library.municode.com")
	v.SetDefault("municipal.ecode360_base_url", "https://ecode360.com")
	v.SetDefault("municipal.max_jurisdictions", 50)
	v.SetDefault("municipal.concurrency", 4)
	v.SetDefault("municipal.breaker_threshold", 5)
	v.SetDefault("municipal.breaker_reset_secs", 60)
	v.SetDefault("export.output", "ahj_data.json")
	v.SetDefault("server.port", 8080)

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

// Validate checks the fields a command needs. Mode is one of "ingest",
// "export", "serve" or empty for store-only commands.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	switch mode {
	case "ingest":
		if c.Municipal.Concurrency < 1 {
			problems = append(problems, "municipal.concurrency must be at least 1")
		}
		if c.Municipal.MaxJurisdictions < 1 {
			problems = append(problems, "municipal.max_jurisdictions must be at least 1")
		}
		if c.Fetch.TimeoutSecs < 1 {
			problems = append(problems, "fetch.timeout_secs must be at least 1")
		}
	case "export":
		if c.Export.Output == "" {
			problems = append(problems, "export.output is required")
		}
	case "serve":
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
