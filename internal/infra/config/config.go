// backend/internal/infra/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Ledger backends
const (
	LedgerBackendFirestore = "firestore"
	LedgerBackendPostgres  = "postgres"
)

// Config はアプリケーション全体の環境変数設定を保持します。
//
// Secrets (*Secret) may be given directly or resolved from Secret Manager via
// the matching *SecretName; see platform/di/shared.
type Config struct {
	Port                     string
	GCPCreds                 string
	FirestoreProjectID       string
	FirestoreCredentialsFile string
	FirebaseProjectID        string

	// firestore | postgres
	LedgerBackend string
	DatabaseURL   string

	// payment gateway
	GatewayBaseURL          string
	GatewayClientID         string
	GatewayClientSecret     string
	GatewayClientSecretName string
	GatewayTimeout          time.Duration
	CaptureTimeout          time.Duration

	// commerce backend
	CommerceBaseURL            string
	CommerceConsumerKey        string
	CommerceConsumerSecret     string
	CommerceConsumerSecretName string
	CommerceTimeout            time.Duration

	// operator alerts / export
	SendGridAPIKey             string
	SendGridAPIKeySecretName   string
	SendGridFrom               string
	ReconciliationAlertTo      string
	ReconciliationExportBucket string
	OperatorEmails             []string

	// http
	CORSAllowedOrigins []string
	CheckoutRateRPS    float64
	CheckoutRateBurst  int
}

// Load は環境変数を読み込み Config を返します。
func Load() *Config {
	// ベースとなる GCP プロジェクト ID
	defaultProject := os.Getenv("GCP_PROJECT_ID")

	cfg := &Config{
		Port:                     getenvDefault("PORT", "8080"),
		GCPCreds:                 os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		FirestoreProjectID:       getenvDefault("FIRESTORE_PROJECT_ID", defaultProject),
		FirestoreCredentialsFile: os.Getenv("FIRESTORE_CREDENTIALS_FILE"),
		FirebaseProjectID:        getenvDefault("FIREBASE_PROJECT_ID", defaultProject),

		LedgerBackend: strings.ToLower(getenvDefault("LEDGER_BACKEND", LedgerBackendFirestore)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		GatewayBaseURL:          getenvDefault("GATEWAY_BASE_URL", "https://api-m.sandbox.paypal.com"),
		GatewayClientID:         os.Getenv("GATEWAY_CLIENT_ID"),
		GatewayClientSecret:     os.Getenv("GATEWAY_CLIENT_SECRET"),
		GatewayClientSecretName: os.Getenv("GATEWAY_CLIENT_SECRET_NAME"),
		GatewayTimeout:          getenvDuration("GATEWAY_TIMEOUT", 15*time.Second),
		CaptureTimeout:          getenvDuration("CAPTURE_TIMEOUT", 30*time.Second),

		CommerceBaseURL:            os.Getenv("COMMERCE_BASE_URL"),
		CommerceConsumerKey:        os.Getenv("COMMERCE_CONSUMER_KEY"),
		CommerceConsumerSecret:     os.Getenv("COMMERCE_CONSUMER_SECRET"),
		CommerceConsumerSecretName: os.Getenv("COMMERCE_CONSUMER_SECRET_NAME"),
		CommerceTimeout:            getenvDuration("COMMERCE_TIMEOUT", 20*time.Second),

		SendGridAPIKey:             os.Getenv("SENDGRID_API_KEY"),
		SendGridAPIKeySecretName:   os.Getenv("SENDGRID_API_KEY_SECRET_NAME"),
		SendGridFrom:               os.Getenv("SENDGRID_FROM"),
		ReconciliationAlertTo:      os.Getenv("RECONCILIATION_ALERT_TO"),
		ReconciliationExportBucket: os.Getenv("RECONCILIATION_EXPORT_BUCKET"),
		OperatorEmails:             splitCSV(os.Getenv("OPERATOR_EMAILS")),

		CORSAllowedOrigins: splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
		CheckoutRateRPS:    getenvFloat("CHECKOUT_RATE_RPS", 2),
		CheckoutRateBurst:  getenvInt("CHECKOUT_RATE_BURST", 10),
	}

	return cfg
}

// UsePostgres reports whether the ledger / order index / intents live in SQL.
func (c *Config) UsePostgres() bool {
	return c != nil && c.LedgerBackend == LedgerBackendPostgres
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// getenvDuration accepts "15s" style values or plain seconds ("15").
func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	log.Printf("[config] WARN invalid duration %s=%q (using %s)", key, v, def)
	return def
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] WARN invalid int %s=%q (using %d)", key, v, def)
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] WARN invalid float %s=%q (using %g)", key, v, def)
		return def
	}
	return f
}

// splitCSV parses "a,b,c" / "a, b, c" into []string (empty items are removed).
func splitCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
