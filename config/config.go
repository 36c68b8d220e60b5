package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"zkgm/chains"
	"zkgm/ucs03"
)

// EnvPrefix prefixes environment overrides, e.g. ZKGM_INDEXER_URL.
const EnvPrefix = "ZKGM"

// DefaultName is the config file searched in the home directory.
const DefaultName = ".zkgm"

type IndexerConfig struct {
	URL          string        `mapstructure:"url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type SafeConfig struct {
	URL string `mapstructure:"url"`
}

type CodecConfig struct {
	MaxDepth int `mapstructure:"max_depth"`
}

type ChannelsConfig struct {
	// File is a TOML list of [[channel]] records. When empty, channels are
	// listed from the indexer.
	File      string `mapstructure:"file"`
	CacheSize int    `mapstructure:"cache_size"`
}

// HistoryConfig - submission history database; disabled when DSN is empty
type HistoryConfig struct {
	DSN string `mapstructure:"dsn"`
}

type APIConfig struct {
	Listen string `mapstructure:"listen"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// Config - everything the client and its commands are built from
type Config struct {
	Indexer  IndexerConfig  `mapstructure:"indexer"`
	Safe     SafeConfig     `mapstructure:"safe"`
	Codec    CodecConfig    `mapstructure:"codec"`
	Channels ChannelsConfig `mapstructure:"channels"`
	History  HistoryConfig  `mapstructure:"history"`
	API      APIConfig      `mapstructure:"api"`
	Log      LogConfig      `mapstructure:"log"`
	Chains   []chains.Chain `mapstructure:"chains"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Indexer:  IndexerConfig{PollInterval: 2 * time.Second, Timeout: 10 * time.Minute},
		Codec:    CodecConfig{MaxDepth: ucs03.DefaultMaxDepth},
		Channels: ChannelsConfig{CacheSize: 128},
		API:      APIConfig{Listen: ":8080"},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("indexer.url", d.Indexer.URL)
	v.SetDefault("indexer.poll_interval", d.Indexer.PollInterval)
	v.SetDefault("indexer.timeout", d.Indexer.Timeout)
	v.SetDefault("safe.url", d.Safe.URL)
	v.SetDefault("codec.max_depth", d.Codec.MaxDepth)
	v.SetDefault("channels.file", d.Channels.File)
	v.SetDefault("channels.cache_size", d.Channels.CacheSize)
	v.SetDefault("history.dsn", d.History.DSN)
	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads path, or $HOME/.zkgm.toml when path is empty, then applies
// ZKGM_* environment overrides. A missing home config is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return Config{}, err
		}
		v.AddConfigPath(home)
		v.SetConfigName(DefaultName)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		log.WithField("file", v.ConfigFileUsed()).Debug("using config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	if c.Indexer.PollInterval <= 0 {
		return fmt.Errorf("indexer.poll_interval must be positive")
	}
	if c.Indexer.Timeout < c.Indexer.PollInterval {
		return fmt.Errorf("indexer.timeout must be at least indexer.poll_interval")
	}
	if c.Codec.MaxDepth <= 0 {
		return fmt.Errorf("codec.max_depth must be positive")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if _, err := c.Registry(); err != nil {
		return err
	}
	return nil
}

// Registry indexes the configured chains.
func (c Config) Registry() (*chains.Registry, error) {
	return chains.NewRegistry(c.Chains)
}

// InstructionCodec returns the instruction codec for the configured depth.
func (c Config) InstructionCodec() ucs03.Codec {
	return ucs03.Codec{MaxDepth: c.Codec.MaxDepth}
}

// Logger builds a logrus logger from the log section.
func (c LogConfig) Logger() (*log.Logger, error) {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	l := log.New()
	l.SetLevel(level)
	if c.Format == "json" {
		l.SetFormatter(&log.JSONFormatter{})
	} else {
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}
