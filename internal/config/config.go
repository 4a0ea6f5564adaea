package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	PublicURL string
	UseSSL    bool
	Region    string
}

// CanvasConfig tunes the render engine. Alpha thresholds are empirically
// tuned for the bundled art; different edge anti-aliasing may need retuning.
type CanvasConfig struct {
	Size                 int
	FitRatio             float64
	AlphaThreshold       uint8
	AlphaBottomThreshold uint8
	SelectRadius         float64
	RenderDebounce       time.Duration
	SyncDebounce         time.Duration
	CacheMaxEntries      int
	CacheMaxBytes        int64
}

type ExportPreset struct {
	MaxDim  int
	Quality float64
}

type ExportConfig struct {
	MaxBytes int64
	Presets  []ExportPreset
	Fallback ExportPreset
}

type SaveConfig struct {
	Endpoint    string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
}

type OfflineQueueConfig struct {
	Path          string
	FlushTimeout  time.Duration
	FlushAttempts int
	FlushDelay    time.Duration
}

type AssetsConfig struct {
	BaseURL string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Canvas           CanvasConfig
	Export           ExportConfig
	Save             SaveConfig
	OfflineQueue     OfflineQueueConfig
	Assets           AssetsConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("MEMEFORGE")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.Export.Presets) == 0 {
		cfg.Export.Presets = DefaultExportPresets()
	}

	return &cfg, nil
}

// DefaultExportPresets is the descending quality/size ladder tried by the
// exporter. Values are sized against typical chat-attachment limits.
func DefaultExportPresets() []ExportPreset {
	return []ExportPreset{
		{MaxDim: 600, Quality: 0.75},
		{MaxDim: 500, Quality: 0.65},
		{MaxDim: 400, Quality: 0.55},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucket", "memes")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("canvas.size", 400)
	v.SetDefault("canvas.fitratio", 0.6)
	v.SetDefault("canvas.alphathreshold", 24)
	v.SetDefault("canvas.alphabottomthreshold", 180)
	v.SetDefault("canvas.selectradius", 25.0)
	v.SetDefault("canvas.renderdebounce", "100ms")
	v.SetDefault("canvas.syncdebounce", "150ms")
	v.SetDefault("canvas.cachemaxentries", 20)
	v.SetDefault("canvas.cachemaxbytes", 50*1024*1024)

	v.SetDefault("export.maxbytes", 800_000)
	v.SetDefault("export.fallback.maxdim", 400)
	v.SetDefault("export.fallback.quality", 0.5)

	v.SetDefault("save.endpoint", "http://127.0.0.1:8080/api/v1")
	v.SetDefault("save.timeout", "30s")
	v.SetDefault("save.maxattempts", 3)
	v.SetDefault("save.basedelay", "1500ms")

	v.SetDefault("assets.baseurl", "https://assets.memeforge.dev")

	v.SetDefault("offlinequeue.path", "offline-queue.json")
	v.SetDefault("offlinequeue.flushtimeout", "20s")
	v.SetDefault("offlinequeue.flushattempts", 2)
	v.SetDefault("offlinequeue.flushdelay", "1s")
}
