package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	OpenAI   OpenAIConfig
	Share    ShareConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	ChatModel       string
	VisionModel     string
	TranscribeModel string
}

type ShareConfig struct {
	FlicToken string
}

type StorageConfig struct {
	MediaDir string
}

type PipelineConfig struct {
	CallTimeout  int // seconds, per external call
	FetchTimeout int // seconds
	FrameCount   int
}

type WorkerConfig struct {
	Concurrency    int
	RetentionHours int
}

func Load() (*Config, error) {
	// Read Docker secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("OPENAI_API_KEY")
	readSecret("FLIC_TOKEN")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	_ = viper.BindEnv("openai.chat_model", "OPENAI_CHAT_MODEL")
	_ = viper.BindEnv("openai.vision_model", "OPENAI_VISION_MODEL")
	_ = viper.BindEnv("openai.transcribe_model", "OPENAI_TRANSCRIBE_MODEL")
	_ = viper.BindEnv("share.flic_token", "FLIC_TOKEN")
	_ = viper.BindEnv("storage.media_dir", "MEDIA_DIR")
	_ = viper.BindEnv("pipeline.call_timeout", "PIPELINE_CALL_TIMEOUT")
	_ = viper.BindEnv("pipeline.fetch_timeout", "PIPELINE_FETCH_TIMEOUT")
	_ = viper.BindEnv("pipeline.frame_count", "PIPELINE_FRAME_COUNT")
	_ = viper.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = viper.BindEnv("worker.retention_hours", "WORKER_RETENTION_HOURS")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("openai.base_url", "")
	viper.SetDefault("openai.chat_model", "gpt-4o")
	viper.SetDefault("openai.vision_model", "gpt-4o")
	viper.SetDefault("openai.transcribe_model", "whisper-1")
	viper.SetDefault("storage.media_dir", "uploaded_videos")
	viper.SetDefault("pipeline.call_timeout", 120)
	viper.SetDefault("pipeline.fetch_timeout", 60)
	viper.SetDefault("pipeline.frame_count", 5)
	viper.SetDefault("worker.concurrency", 4)
	viper.SetDefault("worker.retention_hours", 24)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		OpenAI: OpenAIConfig{
			APIKey:          viper.GetString("openai.api_key"),
			BaseURL:         viper.GetString("openai.base_url"),
			ChatModel:       viper.GetString("openai.chat_model"),
			VisionModel:     viper.GetString("openai.vision_model"),
			TranscribeModel: viper.GetString("openai.transcribe_model"),
		},
		Share: ShareConfig{
			FlicToken: viper.GetString("share.flic_token"),
		},
		Storage: StorageConfig{
			MediaDir: viper.GetString("storage.media_dir"),
		},
		Pipeline: PipelineConfig{
			CallTimeout:  viper.GetInt("pipeline.call_timeout"),
			FetchTimeout: viper.GetInt("pipeline.fetch_timeout"),
			FrameCount:   viper.GetInt("pipeline.frame_count"),
		},
		Worker: WorkerConfig{
			Concurrency:    viper.GetInt("worker.concurrency"),
			RetentionHours: viper.GetInt("worker.retention_hours"),
		},
	}

	return cfg, nil
}
