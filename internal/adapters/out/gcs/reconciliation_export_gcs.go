// backend/internal/adapters/out/gcs/reconciliation_export_gcs.go
package gcs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"cloud.google.com/go/storage"
)

// ReconciliationExportGCS uploads ledger snapshots for operators.
// Objects are private; the returned location is a gs:// URI.
type ReconciliationExportGCS struct {
	Client *storage.Client
	Bucket string
}

func NewReconciliationExportGCS(client *storage.Client, bucket string) *ReconciliationExportGCS {
	return &ReconciliationExportGCS{Client: client, Bucket: strings.TrimSpace(bucket)}
}

// Put implements usecase.ExportSink.
func (r *ReconciliationExportGCS) Put(ctx context.Context, objectName, contentType string, data []byte) (string, error) {
	if r == nil || r.Client == nil {
		return "", errors.New("gcs client is nil")
	}
	if r.Bucket == "" {
		return "", errors.New("gcs: export bucket is empty")
	}

	obj := cleanObjectPath(objectName)
	if obj == "" {
		return "", errors.New("gcs: object name is empty")
	}

	w := r.Client.Bucket(r.Bucket).Object(obj).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-store"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs: write %s: %w", obj, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs: close %s: %w", obj, err)
	}

	loc := "gs://" + r.Bucket + "/" + obj
	log.Printf("[gcs] OK uploaded %s bytes=%d", loc, len(data))
	return loc, nil
}
