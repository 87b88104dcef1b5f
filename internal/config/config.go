// Package config provides configuration for the test plan agent.
package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the agent configuration.
type Config struct {
	// Server settings
	HTTPPort      int
	PublicBaseURL string
	CORSOrigins   []string

	// Database
	DatabaseURL string

	// Timeouts
	JiraTimeout       time.Duration
	GenerationTimeout time.Duration
	LLMTestTimeout    time.Duration

	// History
	FailedHistoryLimit   int
	HistoryPruneInterval time.Duration

	// History feed websocket
	WSPingInterval   time.Duration
	WSWriteTimeout   time.Duration
	WSReadTimeout    time.Duration
	WSMaxMessageSize int64

	// Secrets
	KeyringBackend  string
	KeyringDir      string
	KeyringPassword string

	// Jira field that holds acceptance criteria, e.g. customfield_10035.
	AcceptanceCriteriaField string

	// Mode selects mock providers when set to MOCK.
	Mode string

	// Logging
	LogLevel string
}

// Load loads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	loadDotEnv(getEnv("ENV_FILE", ".env"))

	cfg := &Config{
		HTTPPort:                getEnvInt("HTTP_PORT", 8000),
		PublicBaseURL:           strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", "http://localhost:8000"), "/"),
		CORSOrigins:             splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")),
		DatabaseURL:             getEnv("DATABASE_URL", "file:tpagent.db?cache=shared&mode=rwc"),
		JiraTimeout:             time.Duration(getEnvInt("JIRA_TIMEOUT_MS", 10000)) * time.Millisecond,
		GenerationTimeout:       time.Duration(getEnvInt("GENERATION_TIMEOUT_MS", 120000)) * time.Millisecond,
		LLMTestTimeout:          time.Duration(getEnvInt("LLM_TEST_TIMEOUT_MS", 10000)) * time.Millisecond,
		FailedHistoryLimit:      getEnvInt("FAILED_HISTORY_LIMIT", 100),
		HistoryPruneInterval:    time.Duration(getEnvInt("HISTORY_PRUNE_INTERVAL_MS", 60000)) * time.Millisecond,
		WSPingInterval:          time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		WSWriteTimeout:          time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		WSReadTimeout:           time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 60000)) * time.Millisecond,
		WSMaxMessageSize:        int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 4096)),
		KeyringDir:              getEnv("KEYRING_DIR", ".tpagent-keyring"),
		KeyringPassword:         getEnv("KEYRING_PASSWORD", ""),
		AcceptanceCriteriaField: getEnv("JIRA_ACCEPTANCE_CRITERIA_FIELD", ""),
		Mode:                    getEnv("TPAGENT_MODE", ""),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
	}
	cfg.KeyringBackend = keyringBackend(cfg.KeyringPassword)
	return cfg
}

// keyringBackend returns KEYRING_BACKEND when set. Otherwise the encrypted
// file backend is used if a password is configured, and the in-memory one
// if not, so a bare start does not fail.
func keyringBackend(password string) string {
	if backend := os.Getenv("KEYRING_BACKEND"); backend != "" {
		return backend
	}
	if password != "" {
		return "file"
	}
	log.Printf("WARN: KEYRING_PASSWORD not set, using in-memory keyring; saved credentials are lost on restart")
	return "memory"
}

// loadDotEnv populates the environment from path. Variables that are already
// set win over the file.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("WARN: failed to load %s: %v", path, err)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
