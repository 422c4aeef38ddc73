// backend/internal/platform/di/shared/infra.go
package shared

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/storage"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	appcfg "storefront/internal/infra/config"
	"storefront/internal/infra/database"
	"storefront/internal/infra/secrets"
)

// Infra is shared runtime infrastructure for DI.
// - owns external clients (Firestore/Postgres/FirebaseAuth/GCS/SecretManager)
// - owns env/config-resolved runtime settings (secrets resolved once)
//
// IMPORTANT:
// Infra must NOT depend on mall/console routers, handlers, or usecases.
type Infra struct {
	// Config
	Config    *appcfg.Config
	ProjectID string

	// Clients (owned; Close-managed)
	Firestore     *firestore.Client
	SQL           *database.DB
	GCS           *storage.Client
	FirebaseApp   *firebase.App
	FirebaseAuth  *firebaseauth.Client
	SecretManager *secretmanager.Client

	// Runtime settings (resolved once)
	Settings RuntimeSettings
}

// NewInfra initializes shared infra for the checkout server.
// The ledger store (Firestore or Postgres) is strict (return error).
// Firebase/Auth, SecretManager and GCS are best-effort (warn + continue).
func NewInfra(ctx context.Context) (*Infra, error) {
	return newInfra(ctx, true)
}

// NewOperatorInfra is NewInfra without the checkout credential checks
// (reconcile CLI only reads the ledger).
func NewOperatorInfra(ctx context.Context) (*Infra, error) {
	return newInfra(ctx, false)
}

func newInfra(ctx context.Context, checkout bool) (*Infra, error) {
	cfg := appcfg.Load()
	if cfg == nil {
		return nil, errors.New("shared.infra: config is nil")
	}

	projectID := resolveProjectID(cfg)
	if projectID == "" && !cfg.UsePostgres() {
		// Firestore cannot start without a project.
		return nil, errors.New("shared.infra: projectID is empty (set FIRESTORE_PROJECT_ID or GOOGLE_CLOUD_PROJECT)")
	}

	inf := &Infra{
		Config:    cfg,
		ProjectID: projectID,
	}

	// Credentials file (optional; mainly for local dev)
	credFile := strings.TrimSpace(cfg.FirestoreCredentialsFile)
	if credFile == "" {
		credFile = strings.TrimSpace(cfg.GCPCreds) // GOOGLE_APPLICATION_CREDENTIALS
	}
	var clientOpts []option.ClientOption
	if credFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credFile))
		log.Printf("[shared.infra] Using credentials file for GCP clients: %s", redactPath(credFile))
	} else {
		log.Printf("[shared.infra] Using Application Default Credentials (no credentials file configured)")
	}

	// 1) Optional: Secret Manager (only when some *_SECRET_NAME is set)
	if needsSecretManager(cfg) {
		sm, err := secretmanager.NewClient(ctx, clientOpts...)
		if err != nil {
			log.Printf("[shared.infra] WARN: secretmanager.NewClient failed: %v (secrets must come from env)", err)
		} else {
			inf.SecretManager = sm
		}
	}

	// 2) Runtime settings (secrets resolved here, once)
	{
		var resolver *secrets.Resolver
		if inf.SecretManager != nil {
			resolver = secrets.NewResolver(inf.SecretManager, projectID)
		}
		s, warns, err := ResolveRuntimeSettings(ctx, cfg, resolver)
		if err != nil {
			_ = inf.Close()
			return nil, err
		}
		for _, w := range warns {
			log.Printf("[shared.infra] WARN: %s", w)
		}
		validate := s.ValidateStore
		if checkout {
			validate = s.Validate
		}
		if err := validate(); err != nil {
			_ = inf.Close()
			return nil, err
		}
		inf.Settings = s
	}

	// 3) Ledger store (strict)
	if cfg.UsePostgres() {
		db, err := database.NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = inf.Close()
			return nil, fmt.Errorf("shared.infra: postgres connect failed: %w", err)
		}
		inf.SQL = db
	} else {
		fsClient, err := firestore.NewClient(ctx, inf.ProjectID, clientOpts...)
		if err != nil {
			_ = inf.Close()
			return nil, fmt.Errorf("shared.infra: firestore.NewClient failed (project=%s): %w", inf.ProjectID, err)
		}
		inf.Firestore = fsClient
		log.Printf("[shared.infra] Firestore connected project=%s", inf.ProjectID)
	}

	// 4) Optional: GCS (reconciliation export)
	if inf.Settings.ExportBucket != "" {
		gcsClient, err := storage.NewClient(ctx, clientOpts...)
		if err != nil {
			log.Printf("[shared.infra] WARN: storage.NewClient failed: %v (reconciliation export disabled)", err)
		} else {
			inf.GCS = gcsClient
			log.Printf("[shared.infra] GCS storage client initialized bucket=%s", inf.Settings.ExportBucket)
		}
	} else {
		log.Printf("[shared.infra] RECONCILIATION_EXPORT_BUCKET empty (export returns snapshots only)")
	}

	// 5) Firebase App/Auth (best-effort; admin routes answer 503 without it)
	if pid := firstNonEmpty(cfg.FirebaseProjectID, inf.ProjectID); pid != "" {
		fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: pid}, clientOpts...)
		if err != nil {
			log.Printf("[shared.infra] WARN: firebase app init failed: %v", err)
		} else {
			inf.FirebaseApp = fbApp
			authClient, err := fbApp.Auth(ctx)
			if err != nil {
				log.Printf("[shared.infra] WARN: firebase auth init failed: %v", err)
			} else {
				inf.FirebaseAuth = authClient
				log.Printf("[shared.infra] Firebase Auth initialized")
			}
		}
	}

	return inf, nil
}

func (i *Infra) Close() error {
	if i == nil {
		return nil
	}
	if i.Firestore != nil {
		_ = i.Firestore.Close()
	}
	if i.SQL != nil {
		_ = i.SQL.Close()
	}
	if i.GCS != nil {
		_ = i.GCS.Close()
	}
	if i.SecretManager != nil {
		_ = i.SecretManager.Close()
	}
	return nil
}

func needsSecretManager(cfg *appcfg.Config) bool {
	return strings.TrimSpace(cfg.GatewayClientSecretName) != "" ||
		strings.TrimSpace(cfg.CommerceConsumerSecretName) != "" ||
		strings.TrimSpace(cfg.SendGridAPIKeySecretName) != ""
}

func resolveProjectID(cfg *appcfg.Config) string {
	// Priority:
	// 1) cfg.FirestoreProjectID (resolved by config.Load)
	// 2) FIRESTORE_PROJECT_ID / GCP_PROJECT_ID
	// 3) GOOGLE_CLOUD_PROJECT (often set in Cloud Run)
	// 4) FIREBASE_PROJECT_ID (fallback)
	if cfg != nil {
		if v := strings.TrimSpace(cfg.FirestoreProjectID); v != "" {
			return v
		}
	}
	for _, k := range []string{
		"FIRESTORE_PROJECT_ID",
		"GCP_PROJECT_ID",
		"GOOGLE_CLOUD_PROJECT",
		"FIREBASE_PROJECT_ID",
	} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func redactPath(p string) string {
	// Do not log full path (Windows/Unix compatible light masking)
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(p, "/")
	last := parts[len(parts)-1]
	if last == "" {
		return "***"
	}
	return "***" + "/" + last
}
