package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Log           LogConfig
	Sentry        SentryConfig
	Tracing       TracingConfig
	Relay         RelayConfig
	Storage       StorageConfig
	Notifications NotificationConfig
}

type ServerConfig struct {
	Port            string
	Mode            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver       string // postgres | sqlite
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	LogLevel     string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type LogConfig struct {
	Level       string
	Development bool
}

type SentryConfig struct {
	DSN         string
	Environment string
}

type TracingConfig struct {
	Endpoint    string
	ServiceName string
	Insecure    bool
}

type RelayConfig struct {
	QueueSize       int
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	FramesPerSecond float64
	Burst           int
	RedisBridge     bool
	RedisChannel    string
}

type StorageConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	UploadURL string
}

type NotificationConfig struct {
	BroadcastWorkers int
	BroadcastBatch   int
	PollInterval     time.Duration
}

// Load 读取 config/config.yaml（可选），再用 SOCIALNET_* 环境变量覆盖。
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("SOCIALNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if c.JWT.Secret == "" {
		return nil, errors.New("jwt.secret is required")
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdowntimeout", 10*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=socialnet port=5432 sslmode=disable")
	v.SetDefault("database.maxopenconns", 50)
	v.SetDefault("database.maxidleconns", 10)
	v.SetDefault("database.loglevel", "warn")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.cachettl", 10*time.Minute)

	v.SetDefault("jwt.ttl", 24*time.Hour)

	v.SetDefault("log.level", "info")

	v.SetDefault("tracing.servicename", "socialnet")
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("relay.queuesize", 64)
	v.SetDefault("relay.pinginterval", 30*time.Second)
	v.SetDefault("relay.writetimeout", 10*time.Second)
	v.SetDefault("relay.framespersecond", 10)
	v.SetDefault("relay.burst", 20)
	v.SetDefault("relay.redischannel", "socialnet:relay")

	v.SetDefault("storage.uploadurl", "https://api.cloudinary.com/v1_1/%s/image/upload")

	v.SetDefault("notifications.broadcastworkers", 2)
	v.SetDefault("notifications.broadcastbatch", 500)
	v.SetDefault("notifications.pollinterval", 2*time.Second)
}
