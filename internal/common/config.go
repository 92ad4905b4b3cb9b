package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Engine EngineConfig
	OCR    OCRConfig
	Store  StoreConfig
	Server ServerConfig
	Queue  QueueConfig
}

// EngineConfig holds extraction engine tunables
type EngineConfig struct {
	MinTextChars     int
	RasterScale      float64
	OCRLanguage      string
	ToleranceRatio   float64
	ToleranceFloor   float64
	DescriptionLimit int
	TemplatesFile    string
}

// OCRConfig holds OCR backend configuration
type OCRConfig struct {
	Backend        string // tesseract | azure | gemini
	Tesseract      string
	TessdataDir    string
	PSM            int
	OEM            int
	Preprocess     bool
	AzureEndpoint  string
	AzureKey       string
	GeminiAPIKey   string
	GeminiModel    string
	RequestTimeout time.Duration
}

// StoreConfig holds record persistence configuration
type StoreConfig struct {
	Driver           string // sqlite | postgres | bolt
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr       string
	HTTPAddr       string
	MaxUploadBytes int64
}

// QueueConfig holds batch worker configuration
type QueueConfig struct {
	Workers int
	Size    int
	Timeout time.Duration
}

// LoadConfig loads configuration from environment variables, reading an optional .env first.
func LoadConfig() *Config {
	// a missing .env is fine; real environment variables take precedence
	_ = godotenv.Load()

	return &Config{
		Engine: EngineConfig{
			MinTextChars:     getEnvAsInt("ENGINE_MIN_TEXT_CHARS", 50),
			RasterScale:      getEnvAsFloat64("ENGINE_RASTER_SCALE", 2.0),
			OCRLanguage:      getEnv("ENGINE_OCR_LANG", "eng"),
			ToleranceRatio:   getEnvAsFloat64("ENGINE_TOLERANCE_RATIO", 0.10),
			ToleranceFloor:   getEnvAsFloat64("ENGINE_TOLERANCE_FLOOR", 1.00),
			DescriptionLimit: getEnvAsInt("ENGINE_DESCRIPTION_LIMIT", 100),
			TemplatesFile:    getEnv("ENGINE_TEMPLATES_FILE", ""),
		},
		OCR: OCRConfig{
			Backend:        strings.ToLower(getEnv("OCR_BACKEND", "tesseract")),
			Tesseract:      getEnv("TESSERACT_BIN", "tesseract"),
			TessdataDir:    getEnv("TESSDATA_PREFIX", ""),
			PSM:            getEnvAsInt("TESSERACT_PSM", 0),
			OEM:            getEnvAsInt("TESSERACT_OEM", 0),
			Preprocess:     getEnvAsBool("OCR_PREPROCESS", true),
			AzureEndpoint:  getEnv("AZURE_VISION_ENDPOINT", ""),
			AzureKey:       getEnv("AZURE_VISION_KEY", ""),
			GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
			GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			RequestTimeout: getEnvAsDuration("OCR_REQUEST_TIMEOUT", 0),
		},
		Store: StoreConfig{
			Driver:           strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
			DSN:              getEnv("DB_URL", "file:invoices.db?_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:       getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr:       getEnv("HTTP_ADDR", ":8081"),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 32<<20)),
		},
		Queue: QueueConfig{
			Workers: getEnvAsInt("QUEUE_WORKERS", 1),
			Size:    getEnvAsInt("QUEUE_SIZE", 256),
			Timeout: getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", 3*time.Minute),
		},
	}
}

// Helper functions for environment variable parsing
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

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
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
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.OCR.Backend {
	case "tesseract":
	case "azure":
		if c.OCR.AzureEndpoint == "" || c.OCR.AzureKey == "" {
			return NewAppError("CONFIG_ERROR", "AZURE_VISION_ENDPOINT and AZURE_VISION_KEY are required for the azure backend", ErrInvalidInput)
		}
	case "gemini":
		if c.OCR.GeminiAPIKey == "" {
			return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required for the gemini backend", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "OCR_BACKEND must be one of tesseract, azure, gemini", ErrInvalidInput)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "bolt":
	default:
		return NewAppError("CONFIG_ERROR", "STORE_DRIVER must be one of sqlite, postgres, bolt", ErrInvalidInput)
	}
	if c.Store.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Engine.MinTextChars < 0 || c.Engine.RasterScale <= 0 {
		return NewAppError("CONFIG_ERROR", "ENGINE_MIN_TEXT_CHARS must be >= 0 and ENGINE_RASTER_SCALE > 0", ErrInvalidInput)
	}
	if c.Engine.ToleranceRatio < 0 || c.Engine.ToleranceFloor < 0 {
		return NewAppError("CONFIG_ERROR", "tolerance values must be non-negative", ErrInvalidInput)
	}
	return nil
}
