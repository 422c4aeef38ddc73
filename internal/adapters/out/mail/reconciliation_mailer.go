// backend/internal/adapters/out/mail/reconciliation_mailer.go
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	recondom "storefront/internal/domain/reconciliation"
)

// EmailClient は実際のメール送信クライアント（SendGrid など）を抽象化したインターフェースです。
type EmailClient interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// ReconciliationMailer tells operators that a captured payment needs a manual order.
// It implements usecase.ReconciliationNotifier.
type ReconciliationMailer struct {
	client      EmailClient
	fromAddress string
	toAddresses []string
	timeout     time.Duration
}

// toAddresses: comma separated list is accepted (RECONCILIATION_ALERT_TO).
func NewReconciliationMailer(client EmailClient, fromAddress, toAddresses string) *ReconciliationMailer {
	to := []string{}
	for _, a := range strings.Split(toAddresses, ",") {
		if a = strings.TrimSpace(a); a != "" {
			to = append(to, a)
		}
	}
	return &ReconciliationMailer{
		client:      client,
		fromAddress: strings.TrimSpace(fromAddress),
		toAddresses: to,
		timeout:     10 * time.Second,
	}
}

func (m *ReconciliationMailer) NotifyReconciliation(ctx context.Context, e recondom.Entry, cause error) error {
	if m == nil || m.client == nil {
		return errors.New("reconciliation mailer is not configured")
	}
	if len(m.toAddresses) == 0 {
		return errors.New("reconciliation mailer: no recipients")
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	subject, body := buildReconciliationMail(e, cause)

	var errs []error
	for _, to := range m.toAddresses {
		if err := m.client.Send(ctx, m.fromAddress, to, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}

func buildReconciliationMail(e recondom.Entry, cause error) (string, string) {
	subject := fmt.Sprintf("[reconciliation] %s %s %s (txn %s)", e.Outcome, e.Amount, e.Currency, e.TransactionID)

	var b strings.Builder
	b.WriteString("A captured payment needs manual reconciliation.\n\n")
	fmt.Fprintf(&b, "Transaction ID : %s\n", e.TransactionID)
	fmt.Fprintf(&b, "Gateway order  : %s\n", e.GatewayOrderID)
	fmt.Fprintf(&b, "Amount         : %s %s\n", e.Amount, e.Currency)
	fmt.Fprintf(&b, "Outcome        : %s\n", e.Outcome)
	if !e.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Captured at    : %s\n", e.CreatedAt.UTC().Format(time.RFC3339))
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, "Detail         : %s\n", e.Detail)
	}
	if cause != nil {
		fmt.Fprintf(&b, "Cause          : %v\n", cause)
	}
	b.WriteString("\nThe customer was charged. Do not refund or re-capture before checking the commerce backend.\n")
	return subject, b.String()
}
