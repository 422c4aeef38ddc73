// backend/internal/application/usecase/reconciliation_usecase.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	recondom "storefront/internal/domain/reconciliation"
)

// ExportSink stores an export object and returns where it went (gs://... for GCS).
type ExportSink interface {
	Put(ctx context.Context, objectName, contentType string, data []byte) (string, error)
}

const (
	defaultReconciliationPerPage = 50
	maxReconciliationPerPage     = 500
	// export walks pages until this many rows
	maxExportRows = 10000
)

// ReconciliationUsecase is the operator read side of the capture ledger.
// It never mutates entries: resolution is manual.
type ReconciliationUsecase struct {
	ledger recondom.LedgerPort
	sink   ExportSink
	now    func() time.Time
}

func NewReconciliationUsecase(ledger recondom.LedgerPort) *ReconciliationUsecase {
	return &ReconciliationUsecase{ledger: ledger, now: time.Now}
}

// WithExportSink: optional (GCS). Without it Export only returns the snapshot.
func (u *ReconciliationUsecase) WithExportSink(s ExportSink) *ReconciliationUsecase {
	u.sink = s
	return u
}

func (u *ReconciliationUsecase) Get(ctx context.Context, transactionID string) (recondom.Entry, error) {
	id := strings.TrimSpace(transactionID)
	if id == "" {
		return recondom.Entry{}, recondom.ErrInvalidTransactionID
	}
	return u.ledger.GetByTransactionID(ctx, id)
}

func (u *ReconciliationUsecase) List(ctx context.Context, filter recondom.Filter, page recondom.Page) (recondom.PageResult, error) {
	if filter.Outcome != "" && !recondom.IsValidOutcome(filter.Outcome) {
		return recondom.PageResult{}, recondom.ErrInvalidOutcome
	}
	return u.ledger.List(ctx, filter, normalizePage(page))
}

// Pending lists captures still waiting for a manual order.
func (u *ReconciliationUsecase) Pending(ctx context.Context, page recondom.Page) (recondom.PageResult, error) {
	return u.List(ctx, recondom.Filter{Outcome: recondom.OutcomeOrderRecordFailed}, page)
}

// ExportResult describes one snapshot.
type ExportResult struct {
	ExportID    string           `json:"exportId" yaml:"exportId"`
	GeneratedAt time.Time        `json:"generatedAt" yaml:"generatedAt"`
	Filter      string           `json:"filter" yaml:"filter"`
	Count       int              `json:"count" yaml:"count"`
	Location    string           `json:"location,omitempty" yaml:"location,omitempty"`
	Entries     []recondom.Entry `json:"entries" yaml:"entries"`
}

// Export collects every entry matching filter and, when a sink is wired,
// uploads the JSON snapshot as reconciliation/<date>/<exportId>.json.
func (u *ReconciliationUsecase) Export(ctx context.Context, filter recondom.Filter) (ExportResult, error) {
	if filter.Outcome != "" && !recondom.IsValidOutcome(filter.Outcome) {
		return ExportResult{}, recondom.ErrInvalidOutcome
	}

	now := u.now().UTC()
	res := ExportResult{
		ExportID:    uuid.NewString(),
		GeneratedAt: now,
		Filter:      string(filter.Outcome),
		Entries:     []recondom.Entry{},
	}
	if res.Filter == "" {
		res.Filter = "ALL"
	}

	page := recondom.Page{Number: 1, PerPage: maxReconciliationPerPage}
	for {
		pr, err := u.ledger.List(ctx, filter, page)
		if err != nil {
			return ExportResult{}, err
		}
		res.Entries = append(res.Entries, pr.Items...)
		if len(pr.Items) < page.PerPage || page.Number >= pr.TotalPages || len(res.Entries) >= maxExportRows {
			break
		}
		page.Number++
	}
	res.Count = len(res.Entries)

	if u.sink == nil {
		return res, nil
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return ExportResult{}, err
	}
	name := fmt.Sprintf("reconciliation/%s/%s.json", now.Format("2006-01-02"), res.ExportID)
	loc, err := u.sink.Put(ctx, name, "application/json", data)
	if err != nil {
		return ExportResult{}, fmt.Errorf("reconciliation export: %w", err)
	}
	res.Location = loc

	log.Printf("[reconciliation] OK export id=%s count=%d location=%s", res.ExportID, res.Count, loc)
	return res, nil
}

// IsNotFound lets handlers map ledger misses to 404.
func IsNotFound(err error) bool {
	return errors.Is(err, recondom.ErrNotFound)
}

func normalizePage(p recondom.Page) recondom.Page {
	if p.Number <= 0 {
		p.Number = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = defaultReconciliationPerPage
	}
	if p.PerPage > maxReconciliationPerPage {
		p.PerPage = maxReconciliationPerPage
	}
	return p
}
