package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"pkg.mon.icu/wumpus/internal/config/hook"
)

const EnvPrefix = "wumpus"

type Config struct {
	Discord  Discord
	Storage  Storage
	Archive  Archive
	API      API `mapstructure:"api"`
	Download Download
	Watch    Watch
	Logging  Logging
}

type Discord struct {
	Token  string
	Guilds []snowflake.ID
}

type Storage struct {
	DSN string `mapstructure:"dsn"`
}

type Archive struct {
	Concurrency    int
	PageSize       int           `mapstructure:"page_size"`
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Members        bool
	ReactionUsers  bool `mapstructure:"reaction_users"`
	Threads        bool
	// Channels listed here or whose name matches IgnoreRegexp are not archived.
	ExcludeChannels []snowflake.ID `mapstructure:"exclude_channels"`
	IgnoreRegexp    *regexp.Regexp `mapstructure:"ignore_regexp"`
}

type API struct {
	Host           string
	Port           uint16
	PageSize       int    `mapstructure:"page_size"`
	AttachmentsDir string `mapstructure:"attachments_dir"`
}

type Download struct {
	Dir         string
	Concurrency int
	Timeout     time.Duration
}

type Watch struct {
	Schedule string
}

type Logging struct {
	Level zapcore.Level
}

// Read loads the configuration from file, or from config.yaml in the working
// directory when file is empty. A missing default file is not an error since
// every key can come from the environment.
func Read(file string) (*Config, error) {
	v := viper.New()
	configureDefaults(v)
	configureEnv(v)
	configureLocation(v, file)
	return readUnmarshalConfig(v, file != "")
}

func configureDefaults(v *viper.Viper) {
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.guilds", []string{})
	v.SetDefault("storage.dsn", "wumpus.db")
	v.SetDefault("archive.concurrency", 4)
	v.SetDefault("archive.page_size", 100)
	v.SetDefault("archive.max_retries", 5)
	v.SetDefault("archive.initial_backoff", "1s")
	v.SetDefault("archive.max_backoff", "1m")
	v.SetDefault("archive.members", true)
	v.SetDefault("archive.reaction_users", false)
	v.SetDefault("archive.threads", true)
	v.SetDefault("archive.exclude_channels", []string{})
	v.SetDefault("archive.ignore_regexp", "")
	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.page_size", 50)
	v.SetDefault("api.attachments_dir", "attachments")
	v.SetDefault("download.dir", "attachments")
	v.SetDefault("download.concurrency", 4)
	v.SetDefault("download.timeout", "30s")
	v.SetDefault("watch.schedule", "@every 6h")
	v.SetDefault("logging.level", "info")
}

func configureEnv(v *viper.Viper) {
	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

func configureLocation(v *viper.Viper, file string) {
	if file != "" {
		v.SetConfigFile(file)
		return
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
}

func readUnmarshalConfig(v *viper.Viper, explicit bool) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, err
		}
	}
	c := &Config{}
	if err := v.Unmarshal(c, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		hook.Regexp(), hook.Level(), hook.Snowflake(),
	))); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.Storage.DSN != "", "storage.dsn must be set")
	check(c.Archive.Concurrency >= 1, "archive.concurrency must be at least 1, got %d", c.Archive.Concurrency)
	check(c.Archive.PageSize >= 1 && c.Archive.PageSize <= 100, "archive.page_size must be between 1 and 100, got %d", c.Archive.PageSize)
	check(c.Archive.MaxRetries >= 0, "archive.max_retries must not be negative, got %d", c.Archive.MaxRetries)
	check(c.Archive.InitialBackoff > 0, "archive.initial_backoff must be positive, got %s", c.Archive.InitialBackoff)
	check(c.Archive.MaxBackoff >= c.Archive.InitialBackoff, "archive.max_backoff must not be below archive.initial_backoff")
	check(c.API.Port >= 1, "api.port must be between 1 and 65535")
	check(c.API.PageSize >= 1 && c.API.PageSize <= 200, "api.page_size must be between 1 and 200, got %d", c.API.PageSize)
	check(c.Download.Concurrency >= 1, "download.concurrency must be at least 1, got %d", c.Download.Concurrency)
	check(c.Download.Timeout > 0, "download.timeout must be positive, got %s", c.Download.Timeout)
	return errors.Join(errs...)
}

// Excluded reports whether the channel is excluded from archival by ID or name.
func (a *Archive) Excluded(id snowflake.ID, name string) bool {
	for _, ex := range a.ExcludeChannels {
		if ex == id {
			return true
		}
	}
	return a.IgnoreRegexp != nil && a.IgnoreRegexp.MatchString(name)
}
