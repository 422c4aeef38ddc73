// backend/internal/infra/secrets/secret_manager.go
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
)

var (
	ErrNotConfigured = errors.New("secrets: secret manager not configured")
	ErrEmptyPayload  = errors.New("secrets: empty payload")
)

// VersionAccessor is satisfied by *secretmanager.Client.
type VersionAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// Resolver reads checkout credentials from Secret Manager.
type Resolver struct {
	sm        VersionAccessor
	projectID string
}

func NewResolver(sm VersionAccessor, projectID string) *Resolver {
	return &Resolver{sm: sm, projectID: strings.TrimSpace(projectID)}
}

// Access returns the secret payload (trimmed).
// name is either a full resource name (projects/.../secrets/x[/versions/v])
// or a bare secret id resolved against the project at version "latest".
func (r *Resolver) Access(ctx context.Context, name string) (string, error) {
	if r == nil || r.sm == nil {
		return "", ErrNotConfigured
	}
	full, err := r.resourceName(name)
	if err != nil {
		return "", err
	}

	resp, err := r.sm.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: full})
	if err != nil {
		return "", fmt.Errorf("secrets: AccessSecretVersion failed (%s): %w", full, err)
	}
	if resp == nil || resp.Payload == nil {
		return "", fmt.Errorf("%w (%s)", ErrEmptyPayload, full)
	}
	v := strings.TrimSpace(string(resp.Payload.Data))
	if v == "" {
		return "", fmt.Errorf("%w (%s)", ErrEmptyPayload, full)
	}
	return v, nil
}

// ValueOrSecret returns direct when set, otherwise the secret named secretName.
// Both empty is not an error: the caller decides whether the value is optional.
func (r *Resolver) ValueOrSecret(ctx context.Context, direct, secretName string) (string, error) {
	if v := strings.TrimSpace(direct); v != "" {
		return v, nil
	}
	if strings.TrimSpace(secretName) == "" {
		return "", nil
	}
	return r.Access(ctx, secretName)
}

func (r *Resolver) resourceName(name string) (string, error) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		return "", errors.New("secrets: secret name is empty")
	}
	if strings.HasPrefix(name, "projects/") {
		if strings.Contains(name, "/versions/") {
			return name, nil
		}
		return name + "/versions/latest", nil
	}
	if r.projectID == "" {
		return "", fmt.Errorf("%w: projectID is empty", ErrNotConfigured)
	}
	return "projects/" + r.projectID + "/secrets/" + name + "/versions/latest", nil
}
