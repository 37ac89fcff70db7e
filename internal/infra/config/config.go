// internal/infra/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Backend names for STORE_BACKEND.
const (
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

// Config はアプリケーション全体の環境変数設定を保持します。
type Config struct {
	Port         string
	StoreBackend string

	GCPProjectID             string
	FirestoreProjectID       string
	FirestoreCredentialsFile string
	// Secret Manager の secret 名。設定されていればサービスアカウント JSON をそこから読む
	FirestoreCredentialsSecret string
	GCPCreds                   string

	GCSBucket string

	// 伝票番号
	InvoicePrefix        string
	InvoiceInitialNumber int64
	InvoiceMaxAttempts   int

	// ledger transaction の再試行回数
	LedgerMaxAttempts int

	SeedOnBoot bool
	SeedFile   string

	CORSAllowedOrigin string
	ReportTimezone    string

	OTelServiceName  string
	OTelEndpoint     string
	OTelTracesStdout bool
}

// Load は .env（あれば）と環境変数を読み込み Config を返します。
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}

	defaultProject := getenvDefault("GCP_PROJECT_ID", "freesia-pos-dev")

	return &Config{
		Port:         getenvDefault("PORT", "8080"),
		StoreBackend: strings.ToLower(getenvDefault("STORE_BACKEND", BackendFirestore)),

		GCPProjectID:               defaultProject,
		FirestoreProjectID:         getenvDefault("FIRESTORE_PROJECT_ID", defaultProject),
		FirestoreCredentialsFile:   os.Getenv("FIRESTORE_CREDENTIALS_FILE"),
		FirestoreCredentialsSecret: os.Getenv("FIRESTORE_CREDENTIALS_SECRET"),
		GCPCreds:                   os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),

		GCSBucket: os.Getenv("GCS_BUCKET"),

		InvoicePrefix:        getenvDefault("INVOICE_PREFIX", "Inv-"),
		InvoiceInitialNumber: int64(getenvInt("INVOICE_INITIAL_NUMBER", 12320)),
		InvoiceMaxAttempts:   getenvInt("INVOICE_MAX_ATTEMPTS", 5),
		LedgerMaxAttempts:    getenvInt("LEDGER_MAX_ATTEMPTS", 5),

		SeedOnBoot: getenvBool("SEED_ON_BOOT", false),
		SeedFile:   os.Getenv("SEED_FILE"),

		CORSAllowedOrigin: os.Getenv("CORS_ALLOWED_ORIGIN"),
		ReportTimezone:    getenvDefault("REPORT_TIMEZONE", "UTC"),

		OTelServiceName:  getenvDefault("OTEL_SERVICE_NAME", "freesia-api"),
		OTelEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelTracesStdout: getenvBool("OTEL_TRACES_STDOUT", false),
	}
}

// GetFirestoreProjectID は Firestore/GCP プロジェクト ID を返します。
func (c *Config) GetFirestoreProjectID() string {
	return c.FirestoreProjectID
}

// ReportLocation resolves ReportTimezone, falling back to UTC.
func (c *Config) ReportLocation() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.ReportTimezone))
	if err != nil {
		log.Printf("[config] WARN: REPORT_TIMEZONE=%q: %v (using UTC)", c.ReportTimezone, err)
		return time.UTC
	}
	return loc
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] WARN: %s=%q is not an integer (using %d)", key, v, def)
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
