package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Provider ProviderConfig
	FFmpeg   FFmpegConfig
	Storage  StorageConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ProviderConfig describes how the upstream music-sharing site is reached.
type ProviderConfig struct {
	BaseURL         string
	UserAgent       string
	Referer         string
	FetchTimeout    int // seconds, share/detail page fetches
	DownloadTimeout int // seconds, media downloads
}

type FFmpegConfig struct {
	BinPath   string
	ProbePath string
}

// StorageConfig controls the transient asset directory and its cleanup.
type StorageConfig struct {
	TempDir       string
	CleanupGrace  int    // seconds a served-by-reference file survives after the response
	SweepInterval string // cron-style @every spec for the defensive sweep
	SweepTTL      int    // seconds after which an orphaned temp entry is removed
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("provider.base_url", "PROVIDER_BASE_URL")
	_ = viper.BindEnv("provider.user_agent", "PROVIDER_USER_AGENT")
	_ = viper.BindEnv("provider.referer", "PROVIDER_REFERER")
	_ = viper.BindEnv("provider.fetch_timeout", "PROVIDER_FETCH_TIMEOUT")
	_ = viper.BindEnv("provider.download_timeout", "PROVIDER_DOWNLOAD_TIMEOUT")
	_ = viper.BindEnv("ffmpeg.bin_path", "FFMPEG_BIN_PATH")
	_ = viper.BindEnv("ffmpeg.probe_path", "FFPROBE_BIN_PATH")
	_ = viper.BindEnv("storage.temp_dir", "TEMP_DIR")
	_ = viper.BindEnv("storage.cleanup_grace", "CLEANUP_GRACE")
	_ = viper.BindEnv("storage.sweep_interval", "SWEEP_INTERVAL")
	_ = viper.BindEnv("storage.sweep_ttl", "SWEEP_TTL")

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Provider defaults match what the share pages accept
	viper.SetDefault("provider.base_url", "https://music.douyin.com")
	viper.SetDefault("provider.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	viper.SetDefault("provider.referer", "https://music.douyin.com/")
	viper.SetDefault("provider.fetch_timeout", 10)
	viper.SetDefault("provider.download_timeout", 30)

	// FFmpeg defaults assume binaries on PATH
	viper.SetDefault("ffmpeg.bin_path", "ffmpeg")
	viper.SetDefault("ffmpeg.probe_path", "ffprobe")

	// Storage defaults
	viper.SetDefault("storage.temp_dir", "temp")
	viper.SetDefault("storage.cleanup_grace", 180)
	viper.SetDefault("storage.sweep_interval", "@every 1h")
	viper.SetDefault("storage.sweep_ttl", 86400)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Provider: ProviderConfig{
			BaseURL:         viper.GetString("provider.base_url"),
			UserAgent:       viper.GetString("provider.user_agent"),
			Referer:         viper.GetString("provider.referer"),
			FetchTimeout:    viper.GetInt("provider.fetch_timeout"),
			DownloadTimeout: viper.GetInt("provider.download_timeout"),
		},
		FFmpeg: FFmpegConfig{
			BinPath:   viper.GetString("ffmpeg.bin_path"),
			ProbePath: viper.GetString("ffmpeg.probe_path"),
		},
		Storage: StorageConfig{
			TempDir:       viper.GetString("storage.temp_dir"),
			CleanupGrace:  viper.GetInt("storage.cleanup_grace"),
			SweepInterval: viper.GetString("storage.sweep_interval"),
			SweepTTL:      viper.GetInt("storage.sweep_ttl"),
		},
	}

	return cfg, nil
}
