package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("postsiva version %s, commit %s, built at %s", version, commit, date)
}

// DefaultBaseURL is the production backend used when api.base_url is unset.
const DefaultBaseURL = "https://backend.postsiva.com"

type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Logging LoggingConfig `mapstructure:"logging"`
	Session SessionConfig `mapstructure:"session"`
	Auth    AuthConfig    `mapstructure:"auth"`
	OAuth   OAuthConfig   `mapstructure:"oauth"`
	Media   MediaConfig   `mapstructure:"media"`
}

type APIConfig struct {
	BaseURL   string            `mapstructure:"base_url"`
	Timeout   time.Duration     `mapstructure:"timeout"`
	RateLimit float64           `mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst int               `mapstructure:"rate_burst"`
	Headers   map[string]string `mapstructure:"headers"`
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path"`
	AppendToFile      bool   `mapstructure:"append_to_file"`
	DisableConsole    bool   `mapstructure:"disable_console"`
}

// StorageBackend selects where the durable session lives.
type StorageBackend string

const (
	StorageFile   StorageBackend = "file"
	StorageSQLite StorageBackend = "sqlite"
	StorageRedis  StorageBackend = "redis"
	StorageMemory StorageBackend = "memory"
	StorageNone   StorageBackend = "none"
)

type SessionConfig struct {
	Backend  StorageBackend `mapstructure:"backend"`
	Path     string         `mapstructure:"path"` // file or sqlite location
	TokenKey string         `mapstructure:"token_key"`
	UserKey  string         `mapstructure:"user_key"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type AuthConfig struct {
	AutoRestore bool `mapstructure:"auto_restore"`
}

type OAuthConfig struct {
	CallbackHost   string        `mapstructure:"callback_host"`
	CallbackPort   int           `mapstructure:"callback_port"`
	DeliveryGrace  time.Duration `mapstructure:"delivery_grace"`
	RedirectDelay  time.Duration `mapstructure:"redirect_delay"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	AbandonTimeout time.Duration `mapstructure:"abandon_timeout"`
	PopupWidth     int           `mapstructure:"popup_width"`
	PopupHeight    int           `mapstructure:"popup_height"`
	ScreenWidth    int           `mapstructure:"screen_width"`
	ScreenHeight   int           `mapstructure:"screen_height"`
}

// Origin is the scheme://host:port the callback server answers on.
func (c OAuthConfig) Origin() string {
	return fmt.Sprintf("http://%s:%d", c.CallbackHost, c.CallbackPort)
}

type MediaConfig struct {
	Bucket        string        `mapstructure:"bucket"`
	Region        string        `mapstructure:"region"`
	Endpoint      string        `mapstructure:"endpoint"`
	Prefix        string        `mapstructure:"prefix"`
	PublicBaseURL string        `mapstructure:"public_base_url"`
	PresignTTL    time.Duration `mapstructure:"presign_ttl"`
}

// Enabled reports whether local media can be staged to object storage.
func (c MediaConfig) Enabled() bool {
	return strings.TrimSpace(c.Bucket) != ""
}

// InitFlags initializes command line flags (without parsing)
func InitFlags(fs *pflag.FlagSet) {
	fs.String("api-base-url", "", "Postsiva backend base URL")
	fs.String("session-backend", "", "Session storage backend (file|sqlite|redis|memory|none)")
	fs.String("log-level", "", "Log level (debug|info|warn|error)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.rate_limit", 0)
	v.SetDefault("api.rate_burst", 1)

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")

	v.SetDefault("session.backend", string(StorageFile))
	v.SetDefault("session.token_key", "auth_token")
	v.SetDefault("session.user_key", "auth_user")
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.key_prefix", "postsiva:")

	v.SetDefault("auth.auto_restore", true)

	v.SetDefault("oauth.callback_host", "127.0.0.1")
	v.SetDefault("oauth.callback_port", 8765)
	v.SetDefault("oauth.delivery_grace", time.Second)
	v.SetDefault("oauth.redirect_delay", 2*time.Second)
	v.SetDefault("oauth.poll_interval", 500*time.Millisecond)
	v.SetDefault("oauth.abandon_timeout", 5*time.Minute)
	v.SetDefault("oauth.popup_width", 600)
	v.SetDefault("oauth.popup_height", 700)
	v.SetDefault("oauth.screen_width", 1920)
	v.SetDefault("oauth.screen_height", 1080)

	v.SetDefault("media.prefix", "postsiva")
	v.SetDefault("media.presign_ttl", time.Hour)
}

// Load reads configuration from defaults, an optional config.yaml, POSTSIVA_*
// environment variables and the given flags, in increasing precedence.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("POSTSIVA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "postsiva"))
	}
	v.AddConfigPath("/etc/postsiva")

	if err := v.ReadInConfig(); err != nil {
		// It's OK if the file doesn't exist, only error if it's another problem
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if flags != nil {
		if s, _ := flags.GetString("api-base-url"); s != "" {
			cfg.API.BaseURL = s
		}
		if s, _ := flags.GetString("session-backend"); s != "" {
			cfg.Session.Backend = StorageBackend(s)
		}
		if s, _ := flags.GetString("log-level"); s != "" {
			cfg.Logging.Level = s
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}

	switch c.Session.Backend {
	case StorageFile, StorageSQLite:
		if c.Session.Path == "" {
			dir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("session.path is required when no user config dir is available: %w", err)
			}
			name := "session.json"
			if c.Session.Backend == StorageSQLite {
				name = "session.db"
			}
			c.Session.Path = filepath.Join(dir, "postsiva", name)
		}
	case StorageRedis, StorageMemory, StorageNone:
	default:
		return fmt.Errorf("unsupported session backend: %s", c.Session.Backend)
	}

	if c.OAuth.CallbackPort <= 0 || c.OAuth.CallbackPort > 65535 {
		return fmt.Errorf("oauth.callback_port out of range: %d", c.OAuth.CallbackPort)
	}
	return nil
}
