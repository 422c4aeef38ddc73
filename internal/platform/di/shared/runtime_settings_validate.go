// backend/internal/platform/di/shared/runtime_settings_validate.go
package shared

import (
	"fmt"
	"strings"

	appcfg "storefront/internal/infra/config"
)

// Validate performs hard validation for RuntimeSettings.
//
// Policy:
//   - fail fast for values the checkout cannot run without
//   - optional features (alerts, export) stay disabled when their settings are empty
func (s RuntimeSettings) Validate() error {
	if err := s.ValidateStore(); err != nil {
		return err
	}

	if err := validateBaseURL("GatewayBaseURL", s.GatewayBaseURL); err != nil {
		return err
	}
	if err := validateBaseURL("CommerceBaseURL", s.CommerceBaseURL); err != nil {
		return err
	}
	if s.GatewayClientID == "" || s.GatewayClientSecret == "" {
		return fmt.Errorf("shared.runtime_settings: gateway client id/secret are required")
	}
	if s.CommerceConsumerKey == "" || s.CommerceConsumerSecret == "" {
		return fmt.Errorf("shared.runtime_settings: commerce consumer key/secret are required")
	}

	if s.GatewayTimeout <= 0 || s.CommerceTimeout <= 0 || s.CaptureTimeout <= 0 {
		return fmt.Errorf("shared.runtime_settings: timeouts must be positive")
	}
	if s.CheckoutRateRPS < 0 {
		return fmt.Errorf("shared.runtime_settings: CHECKOUT_RATE_RPS must not be negative")
	}
	return nil
}

// ValidateStore checks only what the ledger readers need (reconcile CLI).
func (s RuntimeSettings) ValidateStore() error {
	switch s.LedgerBackend {
	case appcfg.LedgerBackendFirestore:
	case appcfg.LedgerBackendPostgres:
		if strings.TrimSpace(s.DatabaseURL) == "" {
			return fmt.Errorf("shared.runtime_settings: DATABASE_URL is required when LEDGER_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("shared.runtime_settings: LEDGER_BACKEND must be firestore or postgres (got %q)", s.LedgerBackend)
	}

	// GCS bucket names cannot contain spaces.
	if strings.ContainsAny(s.ExportBucket, " \t\r\n") {
		return fmt.Errorf("shared.runtime_settings: ExportBucket contains whitespace (got %q)", s.ExportBucket)
	}

	return nil
}

// validateBaseURL allows only scheme://host[:port].
func validateBaseURL(name, u string) error {
	u = strings.TrimSpace(u)
	if u == "" {
		return fmt.Errorf("shared.runtime_settings: %s is required", name)
	}
	var rest string
	switch {
	case strings.HasPrefix(u, "https://"):
		rest = strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		rest = strings.TrimPrefix(u, "http://")
	default:
		return fmt.Errorf("shared.runtime_settings: %s must start with http:// or https:// (got %q)", name, u)
	}
	if rest == "" || strings.Contains(rest, "/") {
		return fmt.Errorf("shared.runtime_settings: %s must not include a path (got %q)", name, u)
	}
	return nil
}
