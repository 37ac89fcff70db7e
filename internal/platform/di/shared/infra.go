// internal/platform/di/shared/infra.go
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
	"google.golang.org/api/option"

	appcfg "freesia/internal/infra/config"
	firestoreinfra "freesia/internal/infra/firestore"
)

// Infra is shared runtime infrastructure for the Firestore backend.
// - owns external clients (Firestore/GCS/SecretManager)
// - resolves credentials once
//
// IMPORTANT:
// Infra must NOT depend on routers, handlers, or usecases.
type Infra struct {
	Config    *appcfg.Config
	ProjectID string

	// Clients (owned; Close-managed)
	Firestore     *firestore.Client
	GCS           *storage.Client
	SecretManager *secretmanager.Client

	GCSBucket string

	fsClient *firestoreinfra.ClientWrapper
}

// NewInfra initializes shared infra.
// Firestore is strict (return error).
// SecretManager and GCS are best-effort (warn + continue), except that a
// configured credentials secret that cannot be read is an error.
func NewInfra(ctx context.Context, cfg *appcfg.Config) (*Infra, error) {
	if cfg == nil {
		return nil, errors.New("shared.infra: config is nil")
	}

	projectID := resolveProjectID(cfg)
	if projectID == "" {
		return nil, errors.New("shared.infra: projectID is empty (set FIRESTORE_PROJECT_ID or GOOGLE_CLOUD_PROJECT)")
	}

	inf := &Infra{
		Config:    cfg,
		ProjectID: projectID,
		GCSBucket: strings.TrimSpace(cfg.GCSBucket),
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

	// 1) Optional: Secret Manager client
	{
		sm, err := secretmanager.NewClient(ctx, clientOpts...)
		if err != nil {
			log.Printf("[shared.infra] WARN: secretmanager.NewClient failed: %v (FIRESTORE_CREDENTIALS_SECRET unavailable)", err)
			sm = nil
		}
		inf.SecretManager = sm
	}

	// 2) Optional: service account JSON from Secret Manager overrides the file
	if name := strings.TrimSpace(cfg.FirestoreCredentialsSecret); name != "" {
		p := &secretProviderSM{sm: inf.SecretManager, projectID: projectID}
		raw, err := p.Access(ctx, name)
		if err != nil {
			_ = inf.Close()
			return nil, fmt.Errorf("shared.infra: load credentials secret: %w", err)
		}
		clientOpts = []option.ClientOption{option.WithCredentialsJSON(raw)}
		log.Printf("[shared.infra] Using credentials from Secret Manager secret=%s", name)
	}

	// 3) Firestore (strict)
	{
		cw, err := firestoreinfra.NewClient(ctx, projectID, clientOpts...)
		if err != nil {
			_ = inf.Close()
			return nil, fmt.Errorf("shared.infra: firestore init failed (project=%s): %w", projectID, err)
		}
		inf.fsClient = cw
		inf.Firestore = cw.Client
		log.Printf("[shared.infra] Firestore connected project=%s", projectID)
	}

	// 4) GCS (best-effort; only when a bucket is configured)
	if inf.GCSBucket != "" {
		gcsClient, err := storage.NewClient(ctx, clientOpts...)
		if err != nil {
			log.Printf("[shared.infra] WARN: storage.NewClient failed: %v (product images disabled)", err)
		} else {
			inf.GCS = gcsClient
			log.Printf("[shared.infra] GCS storage client initialized bucket=%s", inf.GCSBucket)
		}
	} else {
		log.Printf("[shared.infra] WARN: GCS_BUCKET is empty (product images disabled)")
	}

	return inf, nil
}

func (i *Infra) Close() error {
	if i == nil {
		return nil
	}
	if i.fsClient != nil {
		_ = i.fsClient.Close()
	} else if i.Firestore != nil {
		_ = i.Firestore.Close()
	}
	if i.GCS != nil {
		_ = i.GCS.Close()
	}
	if i.SecretManager != nil {
		_ = i.SecretManager.Close()
	}
	return nil
}

// Ping checks that Firestore answers a read.
func (i *Infra) Ping(ctx context.Context) error {
	if i == nil || i.fsClient == nil {
		return errors.New("shared.infra: firestore is not initialized")
	}
	return i.fsClient.Ping(ctx)
}

func resolveProjectID(cfg *appcfg.Config) string {
	// Priority:
	// 1) cfg.FirestoreProjectID (resolved by config.Load)
	// 2) FIRESTORE_PROJECT_ID
	// 3) GCP_PROJECT_ID
	// 4) GOOGLE_CLOUD_PROJECT (often set in Cloud Run)
	if cfg != nil {
		if v := strings.TrimSpace(cfg.FirestoreProjectID); v != "" {
			return v
		}
	}
	for _, k := range []string{
		"FIRESTORE_PROJECT_ID",
		"GCP_PROJECT_ID",
		"GOOGLE_CLOUD_PROJECT",
	} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
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
