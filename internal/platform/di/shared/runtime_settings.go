// backend/internal/platform/di/shared/runtime_settings.go
package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	appcfg "storefront/internal/infra/config"
)

// SecretSource resolves a value given directly or by Secret Manager name.
type SecretSource interface {
	ValueOrSecret(ctx context.Context, direct, secretName string) (string, error)
}

// RuntimeSettings is env/config-resolved runtime settings (normalized once).
// It intentionally contains only "values" (no external clients).
//
// Policy:
// - Keep normalization (trim, trailing slash removal) here.
// - Keep hard validation in runtime_settings_validate.go.
type RuntimeSettings struct {
	LedgerBackend string
	DatabaseURL   string

	GatewayBaseURL      string
	GatewayClientID     string
	GatewayClientSecret string
	GatewayTimeout      time.Duration
	CaptureTimeout      time.Duration

	CommerceBaseURL        string
	CommerceConsumerKey    string
	CommerceConsumerSecret string
	CommerceTimeout        time.Duration

	SendGridAPIKey string
	SendGridFrom   string
	AlertTo        string
	ExportBucket   string
	OperatorEmails []string

	CORSAllowedOrigins []string
	CheckoutRateRPS    float64
	CheckoutRateBurst  int
}

// AlertsEnabled reports whether operator alert mail can be sent.
func (s RuntimeSettings) AlertsEnabled() bool {
	return s.SendGridAPIKey != "" && s.SendGridFrom != "" && s.AlertTo != ""
}

// ResolveRuntimeSettings resolves and normalizes runtime settings from cfg.
// src may be nil when no Secret Manager is available; then a *_SECRET_NAME
// without a direct value is an error.
//
// Notes:
// - This function is side-effect free (no logging).
// - It returns warnings as strings so callers can decide how to surface them.
func ResolveRuntimeSettings(ctx context.Context, cfg *appcfg.Config, src SecretSource) (RuntimeSettings, []string, error) {
	if cfg == nil {
		return RuntimeSettings{}, nil, errors.New("shared.runtime_settings: cfg is nil")
	}

	var warns []string
	s := RuntimeSettings{
		LedgerBackend: strings.ToLower(strings.TrimSpace(cfg.LedgerBackend)),
		DatabaseURL:   strings.TrimSpace(cfg.DatabaseURL),

		GatewayBaseURL:  normalizeBaseURL(cfg.GatewayBaseURL),
		GatewayClientID: strings.TrimSpace(cfg.GatewayClientID),
		GatewayTimeout:  cfg.GatewayTimeout,
		CaptureTimeout:  cfg.CaptureTimeout,

		CommerceBaseURL:     normalizeBaseURL(cfg.CommerceBaseURL),
		CommerceConsumerKey: strings.TrimSpace(cfg.CommerceConsumerKey),
		CommerceTimeout:     cfg.CommerceTimeout,

		SendGridFrom:   strings.TrimSpace(cfg.SendGridFrom),
		AlertTo:        strings.TrimSpace(cfg.ReconciliationAlertTo),
		ExportBucket:   strings.TrimSpace(cfg.ReconciliationExportBucket),
		OperatorEmails: cfg.OperatorEmails,

		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		CheckoutRateRPS:    cfg.CheckoutRateRPS,
		CheckoutRateBurst:  cfg.CheckoutRateBurst,
	}
	if s.LedgerBackend == "" {
		s.LedgerBackend = appcfg.LedgerBackendFirestore
	}

	var err error
	if s.GatewayClientSecret, err = resolveSecret(ctx, src, "GATEWAY_CLIENT_SECRET", cfg.GatewayClientSecret, cfg.GatewayClientSecretName); err != nil {
		return RuntimeSettings{}, nil, err
	}
	if s.CommerceConsumerSecret, err = resolveSecret(ctx, src, "COMMERCE_CONSUMER_SECRET", cfg.CommerceConsumerSecret, cfg.CommerceConsumerSecretName); err != nil {
		return RuntimeSettings{}, nil, err
	}
	if s.SendGridAPIKey, err = resolveSecret(ctx, src, "SENDGRID_API_KEY", cfg.SendGridAPIKey, cfg.SendGridAPIKeySecretName); err != nil {
		// alerts are best-effort; a missing key only disables them
		warns = append(warns, err.Error())
		s.SendGridAPIKey = ""
	}

	if !s.AlertsEnabled() {
		warns = append(warns, "SENDGRID_API_KEY/SENDGRID_FROM/RECONCILIATION_ALERT_TO incomplete (reconciliation alerts disabled)")
	}
	if len(s.OperatorEmails) == 0 {
		warns = append(warns, "OPERATOR_EMAILS is empty (only tokens with operator=true claim can read the ledger)")
	}
	if len(s.CORSAllowedOrigins) == 0 {
		warns = append(warns, "CORS_ALLOWED_ORIGINS is empty (browser checkout calls will be rejected)")
	}

	return s, warns, nil
}

func resolveSecret(ctx context.Context, src SecretSource, key, direct, secretName string) (string, error) {
	if v := strings.TrimSpace(direct); v != "" {
		return v, nil
	}
	if strings.TrimSpace(secretName) == "" {
		return "", nil
	}
	if src == nil {
		return "", fmt.Errorf("shared.runtime_settings: %s_SECRET_NAME set but secret manager is unavailable", key)
	}
	v, err := src.ValueOrSecret(ctx, "", secretName)
	if err != nil {
		return "", fmt.Errorf("shared.runtime_settings: resolve %s: %w", key, err)
	}
	return v, nil
}

func normalizeBaseURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	return strings.TrimRight(u, "/")
}
