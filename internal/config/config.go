package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data    DataConfig    `yaml:"data" mapstructure:"data"`
	Harvest HarvestConfig `yaml:"harvest" mapstructure:"harvest"`
	RunLog  RunLogConfig  `yaml:"runlog" mapstructure:"runlog"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the persisted corpus.
type DataConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	MasterFile string `yaml:"master_file" mapstructure:"master_file"`
}

// HarvestConfig tunes collector behavior.
type HarvestConfig struct {
	MaxPages  int    `yaml:"max_pages" mapstructure:"max_pages"`
	DelayMS   int    `yaml:"delay_ms" mapstructure:"delay_ms"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
	Parallel  int    `yaml:"parallel" mapstructure:"parallel"`
}

// RunLogConfig configures the session log backend. Driver is one of
// "off", "sqlite" or "postgres".
type RunLogConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the read-only HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.master_file", "master_announcements.json")
	v.SetDefault("harvest.max_pages", 10)
	v.SetDefault("harvest.delay_ms", 1000)
	v.SetDefault("harvest.user_agent", "Mozilla/5.0 (compatible; harvester/1.0)")
	v.SetDefault("harvest.parallel", 2)
	v.SetDefault("runlog.driver", "sqlite")
	v.SetDefault("runlog.path", "data/harvest_sessions.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
