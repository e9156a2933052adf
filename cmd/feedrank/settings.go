package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// envPrefix 是环境变量前缀。嵌套层级用双下划线分隔：
// FEEDRANK_STORE__KEY_PREFIX -> store.key_prefix
const envPrefix = "FEEDRANK_"

// Settings 是 feedrank 进程配置。
type Settings struct {
	Server   ServerSettings `koanf:"server"`
	Log      LogSettings    `koanf:"log"`
	Store    StoreSettings  `koanf:"store"`
	Rank     RankSettings   `koanf:"rank"`
	Pipeline string         `koanf:"pipeline"` // pipeline YAML/JSON 路径，空表示默认 Pipeline
}

type ServerSettings struct {
	Addr         string        `koanf:"addr" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`
	MaxBodyBytes int64         `koanf:"max_body_bytes" validate:"gt=0"`

	// RateLimit 是每个客户端 IP 在 RateWindow 内允许的 /v1 请求数，0 表示不限流
	RateLimit  int           `koanf:"rate_limit" validate:"gte=0"`
	RateWindow time.Duration `koanf:"rate_window" validate:"gt=0"`
}

type LogSettings struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type StoreSettings struct {
	Backend   string          `koanf:"backend" validate:"oneof=memory redis badger"`
	KeyPrefix string          `koanf:"key_prefix"`
	Redis     RedisSettings   `koanf:"redis"`
	Badger    BadgerSettings  `koanf:"badger"`
	Breaker   BreakerSettings `koanf:"breaker"`
}

type BadgerSettings struct {
	Dir string `koanf:"dir"` // 为空时使用纯内存模式
}

// BreakerSettings 控制存储熔断，只对 redis 后端生效。
type BreakerSettings struct {
	Enabled      bool          `koanf:"enabled"`
	Timeout      time.Duration `koanf:"timeout" validate:"gte=0"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gte=0,lte=1"`
}

type RedisSettings struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
}

type RankSettings struct {
	MaxCandidates    int `koanf:"max_candidates" validate:"gt=0"`
	BatchConcurrency int `koanf:"batch_concurrency" validate:"gt=0"`
}

func defaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			MaxBodyBytes: 4 << 20,
			RateWindow:   time.Minute,
		},
		Log:   LogSettings{Level: "info", Format: "json"},
		Store: StoreSettings{
			Backend:   "memory",
			KeyPrefix: "feedrank:",
			Redis:     RedisSettings{Addr: "localhost:6379"},
			Badger:    BadgerSettings{Dir: "data/feedrank"},
			Breaker:   BreakerSettings{Enabled: true, Timeout: 30 * time.Second, MinRequests: 10, FailureRatio: 0.6},
		},
		Rank:  RankSettings{MaxCandidates: 5000, BatchConcurrency: 8},
	}
}

// loadSettings 按 默认值 → 配置文件（可选）→ 环境变量 的顺序叠加配置。
func loadSettings(path string) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultSettings(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	s := &Settings{}
	if err := k.Unmarshal("", s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(s); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if s.Store.Backend == "redis" && s.Store.Redis.Addr == "" {
		return nil, fmt.Errorf("invalid settings: store.redis.addr is required for the redis backend")
	}
	return s, nil
}

func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// newLogger 按配置构建根 logger。
func newLogger(cfg LogSettings, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
