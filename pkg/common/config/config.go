package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers []string
	KafkaGroupID string

	// Terminology data
	TerminologyManifest string
	ConceptMapFile      string
	DataDir             string

	// WHO ICD API
	WHOTokenEndpoint  string
	WHOAPIBaseURL     string
	WHOReleaseID      string
	WHOClientID       string
	WHOClientSecret   string
	WHORequestTimeout time.Duration

	// ABDM sandbox tokens
	ABDMIssuer         string
	ABDMAudience       string
	ABDMPrivateKeyPath string
	ABDMPublicKeyPath  string
	ABDMTokenTTL       time.Duration

	// Resolver / fallback
	MapLikeScoreThreshold float64
	FuzzyResultLimit      int
	SemanticResultLimit   int
	SuggestionLimit       int

	// Map builder
	BuilderWorkers     int
	BuilderOutputFile  string
	BuilderConceptCap  int
	BuilderTargetLimit int

	// Service ports
	TerminologyServicePort string
	EMRServicePort         string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "ayushsetu"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "ayushsetu123"),
		PostgresDB:       getEnv("POSTGRES_DB", "ayushsetu"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "ayushsetu-platform"),

		TerminologyManifest: getEnv("TERMINOLOGY_MANIFEST", "data/sources.yaml"),
		ConceptMapFile:      getEnv("CONCEPT_MAP_FILE", "data/namc_to_icd11_conceptmap.json"),
		DataDir:             getEnv("DATA_DIR", "data"),

		WHOTokenEndpoint:  getEnv("WHO_TOKEN_ENDPOINT", "https://icdaccessmanagement.who.int/connect/token"),
		WHOAPIBaseURL:     getEnv("WHO_API_BASE_URL", "https://id.who.int"),
		WHOReleaseID:      getEnv("WHO_RELEASE_ID", "2024-01"),
		WHOClientID:       getEnv("WHO_CLIENT_ID", ""),
		WHOClientSecret:   getEnv("WHO_CLIENT_SECRET", ""),
		WHORequestTimeout: getDuration("WHO_REQUEST_TIMEOUT", 10*time.Second),

		ABDMIssuer:         getEnv("ABDM_ISSUER", "https://sandbox.abdm.gov.in"),
		ABDMAudience:       getEnv("ABDM_AUDIENCE", "facility"),
		ABDMPrivateKeyPath: getEnv("ABDM_PRIVATE_KEY_PATH", "private_key.pem"),
		ABDMPublicKeyPath:  getEnv("ABDM_PUBLIC_KEY_PATH", "public_key.pem"),
		ABDMTokenTTL:       getDuration("ABDM_TOKEN_TTL", 24*time.Hour),

		MapLikeScoreThreshold: getFloatEnv("FUZZY_MAPLIKE_THRESHOLD", 100),
		FuzzyResultLimit:      getIntEnv("FUZZY_RESULT_LIMIT", 10),
		SemanticResultLimit:   getIntEnv("SEMANTIC_RESULT_LIMIT", 5),
		SuggestionLimit:       getIntEnv("SUGGESTION_LIMIT", 50),

		BuilderWorkers:     getIntEnv("BUILDER_WORKERS", 8),
		BuilderOutputFile:  getEnv("BUILDER_OUTPUT_FILE", "data/namc_to_icd11_conceptmap.json"),
		BuilderConceptCap:  getIntEnv("BUILDER_CONCEPT_CAP", 0),
		BuilderTargetLimit: getIntEnv("BUILDER_TARGET_LIMIT", 20),

		TerminologyServicePort: getEnv("TERMINOLOGY_SERVICE_PORT", "8080"),
		EMRServicePort:         getEnv("EMR_SERVICE_PORT", "8081"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
