package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"persona-chat-be/pkg/llm/factory"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Chat     ChatConfig
	Title    TitleConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type AuthConfig struct {
	JwtSecret     string
	TokenLifetime time.Duration
}

type ChatConfig struct {
	// TierOrder is the waterfall priority order, highest first.
	TierOrder          []string
	ContextWindowTurns int

	OllamaBaseURL        string
	OllamaModel          string
	OllamaTimeoutSeconds int

	GeminiAPIKey         string
	GeminiModel          string
	GeminiTimeoutSeconds int

	HfAPIKey         string
	HfBaseURL        string
	HfModel          string
	HfTimeoutSeconds int
}

type TitleConfig struct {
	// Tier label the summarizer should use. Empty means last configured tier.
	Tier                 string
	TopicName            string
	SweepIntervalSeconds int
	SweepBatchSize       int
	SweepItemDelaySecs   int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			JwtSecret:     getEnv("JWT_SECRET", ""),
			TokenLifetime: time.Duration(getEnvAsInt("JWT_LIFETIME_HOURS", 72)) * time.Hour,
		},
		Chat: ChatConfig{
			TierOrder:          splitAndTrim(getEnv("TIER_ORDER", "local-ollama,gemini-flash,hf-router")),
			ContextWindowTurns: getEnvAsInt("CONTEXT_WINDOW_TURNS", 15),

			OllamaBaseURL:        getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:          getEnv("OLLAMA_MODEL", "llama3"),
			OllamaTimeoutSeconds: getEnvAsInt("OLLAMA_TIMEOUT_SECONDS", 90),

			GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
			GeminiModel:          getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			GeminiTimeoutSeconds: getEnvAsInt("GEMINI_TIMEOUT_SECONDS", 20),

			HfAPIKey:         getEnv("HF_API_KEY", ""),
			HfBaseURL:        getEnv("HF_BASE_URL", "https://router.huggingface.co/v1"),
			HfModel:          getEnv("HF_MODEL", "meta-llama/Llama-3.1-8B-Instruct"),
			HfTimeoutSeconds: getEnvAsInt("HF_TIMEOUT_SECONDS", 20),
		},
		Title: TitleConfig{
			Tier:                 getEnv("TITLE_TIER", "gemini-flash"),
			TopicName:            getEnv("TITLE_TOPIC_NAME", "SUMMARIZE_THREAD_TITLE"),
			SweepIntervalSeconds: getEnvAsInt("TITLE_SWEEP_INTERVAL_SECONDS", 120),
			SweepBatchSize:       getEnvAsInt("TITLE_SWEEP_BATCH_SIZE", 5),
			SweepItemDelaySecs:   getEnvAsInt("TITLE_SWEEP_ITEM_DELAY_SECONDS", 2),
		},
	}
}

// TierConfigs maps the chat configuration into the factory's tier list,
// honoring TierOrder. Unknown labels fail loud at startup.
func (c *Config) TierConfigs() []factory.TierConfig {
	available := map[string]factory.TierConfig{
		"local-ollama": {
			Label:        "local-ollama",
			ProviderType: "ollama",
			Model:        c.Chat.OllamaModel,
			BaseURL:      c.Chat.OllamaBaseURL,
			Timeout:      time.Duration(c.Chat.OllamaTimeoutSeconds) * time.Second,
		},
		"gemini-flash": {
			Label:        "gemini-flash",
			ProviderType: "gemini",
			Model:        c.Chat.GeminiModel,
			APIKey:       c.Chat.GeminiAPIKey,
			Timeout:      time.Duration(c.Chat.GeminiTimeoutSeconds) * time.Second,
		},
		"hf-router": {
			Label:        "hf-router",
			ProviderType: "huggingface",
			Model:        c.Chat.HfModel,
			BaseURL:      c.Chat.HfBaseURL,
			APIKey:       c.Chat.HfAPIKey,
			Timeout:      time.Duration(c.Chat.HfTimeoutSeconds) * time.Second,
		},
	}

	configs := make([]factory.TierConfig, 0, len(c.Chat.TierOrder))
	for _, label := range c.Chat.TierOrder {
		cfg, ok := available[label]
		if !ok {
			log.Fatalf("Unknown generation tier in TIER_ORDER: %q", label)
		}
		configs = append(configs, cfg)
	}
	return configs
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
