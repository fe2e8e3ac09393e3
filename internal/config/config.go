package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string
	LogLevel   string

	IngestWorkers int
	LoadBatchSize int
	LoadTimeoutMs int
	YearMin       int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleRefreshToken string

	// GoogleRequestsPerSecond paces per-message Gmail calls.
	GoogleRequestsPerSecond int

	SheetsSpreadsheetID string
	SheetsRange         string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider    string
	MailListenerLabel       string
	MailListenerIntervalSec int
	MailListenerFetchMax    int
	MailListenerIngestBatch int
	MailListenerAutoExport  bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "fs1.db")),
		RawMailDir: getEnv("RAW_MAIL_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		IngestWorkers: getEnvInt("INGEST_WORKERS", runtime.GOMAXPROCS(0)),
		LoadBatchSize: getEnvInt("LOAD_BATCH_SIZE", 500),
		LoadTimeoutMs: getEnvInt("LOAD_TIMEOUT_MS", 30000),
		YearMin:       getEnvInt("YEAR_MIN", 1980),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),

		GoogleRequestsPerSecond: getEnvInt("GOOGLE_REQUESTS_PER_SECOND", 5),

		SheetsSpreadsheetID: getEnv("SHEETS_SPREADSHEET_ID", ""),
		SheetsRange:         getEnv("SHEETS_RANGE", "Sheet1"),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:    getEnv("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:       getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec: getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 60),
		MailListenerFetchMax:    getEnvInt("MAIL_LISTENER_FETCH_MAX", 50),
		MailListenerIngestBatch: getEnvInt("MAIL_LISTENER_INGEST_BATCH", 200),
		MailListenerAutoExport:  getEnvBool("MAIL_LISTENER_AUTO_EXPORT", false),
	}

	if cfg.IngestWorkers <= 0 {
		cfg.IngestWorkers = 1
	}
	if cfg.LoadBatchSize <= 0 {
		cfg.LoadBatchSize = 500
	}

	return cfg, nil
}

// LoadTimeout bounds one upsert transaction.
func (c Config) LoadTimeout() time.Duration {
	if c.LoadTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.LoadTimeoutMs) * time.Millisecond
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
