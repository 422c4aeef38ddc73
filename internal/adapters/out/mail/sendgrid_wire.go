package mail

import (
	"log"
)

// NewReconciliationMailerWithSendGrid wires ReconciliationMailer on SendGrid.
//
// - apiKey : SENDGRID_API_KEY (env or Secret Manager)
// - from   : SENDGRID_FROM
// - to     : RECONCILIATION_ALERT_TO (comma separated)
func NewReconciliationMailerWithSendGrid(apiKey, from, to string) *ReconciliationMailer {
	if apiKey == "" {
		log.Printf("[mail] WARN: SENDGRID_API_KEY is empty. ReconciliationMailer will fail to send mail.")
	}
	if from == "" {
		log.Printf("[mail] WARN: SENDGRID_FROM is empty. ReconciliationMailer will fail to send mail.")
	}

	mailer := NewReconciliationMailer(NewSendGridClient(apiKey), from, to)

	log.Printf("[mail] ReconciliationMailer initialized. from=%s recipients=%d", from, len(mailer.toAddresses))
	return mailer
}
