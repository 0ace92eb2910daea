package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Pipeline PipelineConfig
	Parser   ParserConfig
	LLM      LLMConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
}

// StoreConfig holds the session store configuration.
type StoreConfig struct {
	Path string // SQLite file path
}

// PipelineConfig holds extraction pipeline behavior knobs.
type PipelineConfig struct {
	OutputRoot       string  // root under which session directories are created
	PDFTextThreshold float64 // avg non-whitespace chars/page for text-native PDFs
	Workers          int
	QueueSize        int
	JobTimeout       time.Duration
}

// ParserConfig holds the external document-vision parser configuration.
type ParserConfig struct {
	BaseURL     string
	Language    string
	ParseMethod string
	Formula     bool
	Table       bool
	Timeout     time.Duration
}

// LLMConfig holds chat-completion extraction configuration.
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("FILINGS_ADDR", ":8080"),
			MaxUploadBytes:  getEnvAsInt64("FILINGS_MAX_UPLOAD_BYTES", 32<<20),
			ShutdownTimeout: getEnvAsDuration("FILINGS_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Store: StoreConfig{
			Path: getEnv("FILINGS_STORE_PATH", "./filings.db"),
		},
		Pipeline: PipelineConfig{
			OutputRoot:       getEnv("FILINGS_OUTPUT_ROOT", "./output"),
			PDFTextThreshold: getEnvAsFloat64("FILINGS_PDF_TEXT_THRESHOLD", 100),
			Workers:          getEnvAsInt("FILINGS_WORKERS", 4),
			QueueSize:        getEnvAsInt("FILINGS_QUEUE_SIZE", 256),
			JobTimeout:       getEnvAsDuration("FILINGS_JOB_TIMEOUT", 5*time.Minute),
		},
		Parser: ParserConfig{
			BaseURL:     getEnv("PARSER_BASE_URL", "http://localhost:9000"),
			Language:    getEnv("PARSER_LANG", "ch"),
			ParseMethod: getEnv("PARSER_METHOD", "auto"),
			Formula:     getEnvAsBool("PARSER_FORMULA", true),
			Table:       getEnvAsBool("PARSER_TABLE", true),
			Timeout:     getEnvAsDuration("PARSER_TIMEOUT", 2*time.Minute),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      getEnv("LLM_API_KEY", ""),
			Model:       getEnv("LLM_MODEL", "gpt-4o-mini"),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 90*time.Second),
		},
	}
}

// Validate validates the loaded configuration.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "LLM_API_KEY is required", ErrInvalidInput)
	}
	if c.Parser.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "PARSER_BASE_URL is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "FILINGS_ADDR is required", ErrInvalidInput)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
