package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Database  DatabaseConfig
	LLM       LLMConfig
	Agent     AgentConfig
	Vector    VectorConfig
	Auth      AuthConfig
	Reference ReferenceConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig describes how to reach the PostgreSQL market store.
// URL wins over the discrete host fields when both are set.
type DatabaseConfig struct {
	URL            string
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConnections int
	MigrationsDir  string
}

// LLMConfig selects and tunes the chat-completion provider.
type LLMConfig struct {
	Provider          string
	Model             string
	OpenAIAPIKey      string
	UpstageAPIKey     string
	AnthropicAPIKey   string
	BaseURL           string
	Temperature       float32
	MaxTokens         int
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
}

// AgentConfig bounds the tool loop and post-processing policy.
type AgentConfig struct {
	MaxIterations        int
	SpecialistIterations int
	WeightTolerance      float64
	ParallelTools        int
	Mode                 string
}

// VectorConfig configures news embedding and similarity search.
type VectorConfig struct {
	Backend        string
	QdrantURL      string
	QdrantAPIKey   string
	Collection     string
	Embedder       string
	EmbeddingModel string
	OllamaURL      string
	Dimension      int
}

// AuthConfig holds admin authentication settings.
type AuthConfig struct {
	JWTSecret         string
	AdminPassword     string
	AdminPasswordHash string
	TokenDuration     time.Duration
}

// ReferenceConfig controls the company/sector snapshot refresh.
type ReferenceConfig struct {
	RefreshInterval time.Duration
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 120 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultDBHost         = "localhost"
	defaultDBPort         = "5432"
	defaultDBName         = "sectorfolio"
	defaultDBSSLMode      = "disable"
	defaultMaxConnections = 20
	defaultMigrationsDir  = "./migrations"

	defaultLLMProvider       = "openai"
	defaultLLMModel          = "gpt-4o-mini"
	defaultTemperature       = 0.3
	defaultMaxTokens         = 4096
	defaultLLMTimeout        = 90 * time.Second
	defaultMaxRetries        = 3
	defaultRequestsPerSecond = 2.0

	defaultMaxIterations        = 20
	defaultSpecialistIterations = 4
	defaultWeightTolerance      = 0.05
	defaultParallelTools        = 1
	defaultMode                 = "single"

	defaultVectorBackend  = "memory"
	defaultCollection     = "sector_news_rag"
	defaultEmbedder       = "openai"
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultOllamaURL      = "http://localhost:11434"
	defaultDimension      = 1536

	defaultJWTSecret     = "change-this-secret"
	defaultTokenDuration = 24 * time.Hour

	defaultRefreshInterval = 30 * time.Minute
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid. A .env file in the working directory
// (or ENV_FILE) is loaded first without overriding variables already set.
func Load() (Config, error) {
	if err := loadDotEnv(getEnv("ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}

	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL:            os.Getenv("DATABASE_URL"),
			Host:           getEnv("DB_HOST", defaultDBHost),
			Port:           getEnv("DB_PORT", defaultDBPort),
			User:           os.Getenv("DB_USER"),
			Password:       os.Getenv("DB_PASSWORD"),
			Name:           getEnv("DB_NAME", defaultDBName),
			SSLMode:        getEnv("DB_SSLMODE", defaultDBSSLMode),
			MaxConnections: defaultMaxConnections,
			MigrationsDir:  getEnv("MIGRATIONS_DIR", defaultMigrationsDir),
		},
		LLM: LLMConfig{
			Provider:          getEnv("LLM_PROVIDER", defaultLLMProvider),
			Model:             getEnv("LLM_MODEL", defaultLLMModel),
			OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
			UpstageAPIKey:     os.Getenv("UPSTAGE_API_KEY"),
			AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
			BaseURL:           os.Getenv("LLM_BASE_URL"),
			Temperature:       defaultTemperature,
			MaxTokens:         defaultMaxTokens,
			Timeout:           defaultLLMTimeout,
			MaxRetries:        defaultMaxRetries,
			RequestsPerSecond: defaultRequestsPerSecond,
		},
		Agent: AgentConfig{
			MaxIterations:        defaultMaxIterations,
			SpecialistIterations: defaultSpecialistIterations,
			WeightTolerance:      defaultWeightTolerance,
			ParallelTools:        defaultParallelTools,
			Mode:                 getEnv("AGENT_MODE", defaultMode),
		},
		Vector: VectorConfig{
			Backend:        getEnv("VECTOR_BACKEND", defaultVectorBackend),
			QdrantURL:      os.Getenv("QDRANT_URL"),
			QdrantAPIKey:   os.Getenv("QDRANT_API_KEY"),
			Collection:     getEnv("QDRANT_COLLECTION", defaultCollection),
			Embedder:       getEnv("EMBEDDER", defaultEmbedder),
			EmbeddingModel: getEnv("EMBEDDING_MODEL", defaultEmbeddingModel),
			OllamaURL:      getEnv("OLLAMA_URL", defaultOllamaURL),
			Dimension:      defaultDimension,
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("ADMIN_JWT_SECRET", defaultJWTSecret),
			AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
			AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
			TokenDuration:     defaultTokenDuration,
		},
		Reference: ReferenceConfig{
			RefreshInterval: defaultRefreshInterval,
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("DB_MAX_CONNECTIONS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DB_MAX_CONNECTIONS: %w", err)
		}
		cfg.Database.MaxConnections = n
	}

	switch cfg.LLM.Provider {
	case "openai", "upstage", "anthropic":
	default:
		return Config{}, fmt.Errorf("invalid LLM_PROVIDER: must be one of openai, upstage, anthropic")
	}

	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil || f < 0 || f > 2 {
			return Config{}, fmt.Errorf("invalid LLM_TEMPERATURE: must be a number between 0 and 2")
		}
		cfg.LLM.Temperature = float32(f)
	}

	if v := os.Getenv("LLM_MAX_TOKENS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LLM_MAX_TOKENS: %w", err)
		}
		cfg.LLM.MaxTokens = n
	}

	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LLM_TIMEOUT_SECONDS: %w", err)
		}
		cfg.LLM.Timeout = d
	}

	if v := os.Getenv("LLM_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid LLM_MAX_RETRIES: must be a non-negative integer")
		}
		cfg.LLM.MaxRetries = n
	}

	if v := os.Getenv("LLM_REQUESTS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return Config{}, fmt.Errorf("invalid LLM_REQUESTS_PER_SECOND: must be a non-negative number")
		}
		cfg.LLM.RequestsPerSecond = f
	}

	if v := os.Getenv("AGENT_MAX_ITERATIONS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AGENT_MAX_ITERATIONS: %w", err)
		}
		cfg.Agent.MaxIterations = n
	}

	if v := os.Getenv("AGENT_SPECIALIST_ITERATIONS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AGENT_SPECIALIST_ITERATIONS: %w", err)
		}
		cfg.Agent.SpecialistIterations = n
	}

	if v := os.Getenv("AGENT_WEIGHT_TOLERANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f >= 1 {
			return Config{}, fmt.Errorf("invalid AGENT_WEIGHT_TOLERANCE: must be a number in [0, 1)")
		}
		cfg.Agent.WeightTolerance = f
	}

	if v := os.Getenv("AGENT_PARALLEL_TOOLS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AGENT_PARALLEL_TOOLS: %w", err)
		}
		cfg.Agent.ParallelTools = n
	}

	switch cfg.Agent.Mode {
	case "single", "multi":
	default:
		return Config{}, fmt.Errorf("invalid AGENT_MODE: must be 'single' or 'multi'")
	}

	switch cfg.Vector.Backend {
	case "memory", "qdrant":
	default:
		return Config{}, fmt.Errorf("invalid VECTOR_BACKEND: must be 'memory' or 'qdrant'")
	}
	if cfg.Vector.Backend == "qdrant" && cfg.Vector.QdrantURL == "" {
		return Config{}, fmt.Errorf("QDRANT_URL is required when VECTOR_BACKEND=qdrant")
	}

	switch cfg.Vector.Embedder {
	case "openai", "ollama":
	default:
		return Config{}, fmt.Errorf("invalid EMBEDDER: must be 'openai' or 'ollama'")
	}

	if v := os.Getenv("EMBEDDING_DIMENSION"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid EMBEDDING_DIMENSION: %w", err)
		}
		cfg.Vector.Dimension = n
	}

	if v := os.Getenv("ADMIN_TOKEN_HOURS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ADMIN_TOKEN_HOURS: %w", err)
		}
		cfg.Auth.TokenDuration = time.Duration(n) * time.Hour
	}

	if v := os.Getenv("REFERENCE_REFRESH_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REFERENCE_REFRESH_SECONDS: %w", err)
		}
		cfg.Reference.RefreshInterval = d
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
