package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Env      string
	Server   ServerConfig
	DB       DBConfig
	Models   ModelConfig
	Pipeline PipelineConfig
	Cache    CacheConfig
	Obs      ObsConfig
}

type ServerConfig struct {
	Port string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	MaxConns int32
	MinConns int32
}

func (d DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type ModelConfig struct {
	OpenAIKey           string
	AnthropicKey        string
	EmbeddingModel      string
	EmbeddingDimensions int
	AuxModel            string
	GenerationModel     string
	RequestsPerSecond   float64
	Burst               int
}

type PipelineConfig struct {
	TopK                  int
	MaxIterations         int
	MaxTokens             int
	SimilarityThreshold   float64
	VerificationThreshold float64
	LexicalWeight         float64
	QualityThreshold      float64
	AccuracyThreshold     int
	AgreementThreshold    int
	GateOnAccuracy        bool
	ExpansionEnabled      bool
}

type CacheConfig struct {
	Size int
}

type ObsConfig struct {
	ServiceName   string
	OTLPEndpoint  string
	LogsAPIURL    string
	LogsReadToken string
}

func Load() *Config {
	return &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			Port: getEnv("PORT", "8000"),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "qa-db"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "qa_user"),
			Password: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "qa_password"),
			Name:     getEnv("DB_NAME", "qa_db"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 20)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 5)),
		},
		Models: ModelConfig{
			OpenAIKey:           getSecret("OPENAI_API_KEY", "OPENAI_API_KEY_FILE", ""),
			AnthropicKey:        getSecret("ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY_FILE", ""),
			EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimensions: getEnvInt("EMBEDDING_DIMENSIONS", 1536),
			AuxModel:            getEnv("AUX_MODEL", "gpt-4o-mini"),
			GenerationModel:     getEnv("GENERATION_MODEL", "claude-sonnet-4-20250514"),
			RequestsPerSecond:   getEnvFloat64("MODEL_REQUESTS_PER_SECOND", 5.0),
			Burst:               getEnvInt("MODEL_REQUEST_BURST", 10),
		},
		Pipeline: PipelineConfig{
			TopK:                  getEnvInt("QA_TOP_K", 20),
			MaxIterations:         getEnvInt("QA_MAX_ITERATIONS", 1),
			MaxTokens:             getEnvInt("QA_MAX_TOKENS", 2000),
			SimilarityThreshold:   getEnvFloat64("QA_SIMILARITY_THRESHOLD", 0.3),
			VerificationThreshold: getEnvFloat64("QA_VERIFICATION_THRESHOLD", 0.30),
			LexicalWeight:         getEnvFloat64("QA_LEXICAL_WEIGHT", 0.4),
			QualityThreshold:      getEnvFloat64("QA_QUALITY_THRESHOLD", 85),
			AccuracyThreshold:     getEnvInt("QA_ACCURACY_THRESHOLD", 70),
			AgreementThreshold:    getEnvInt("QA_AGREEMENT_THRESHOLD", 10),
			GateOnAccuracy:        getEnvBool("QA_GATE_ON_ACCURACY", false),
			ExpansionEnabled:      getEnvBool("QA_QUERY_EXPANSION", true),
		},
		Cache: CacheConfig{
			Size: getEnvInt("QA_EMBED_CACHE_SIZE", 256),
		},
		Obs: ObsConfig{
			ServiceName:   getEnv("OTEL_SERVICE_NAME", "qa-orchestrator"),
			OTLPEndpoint:  getEnvWithAlt("OTEL_EXPORTER_OTLP_ENDPOINT", "OTLP_ENDPOINT", ""),
			LogsAPIURL:    getEnv("LOGS_API_URL", ""),
			LogsReadToken: getSecret("LOGS_READ_TOKEN", "LOGS_READ_TOKEN_FILE", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvWithAlt(key, altKey, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if value, ok := os.LookupEnv(altKey); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat64(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
