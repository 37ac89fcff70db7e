// internal/platform/di/shared/secret_provider_sm.go
package shared

import (
	"context"
	"errors"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

var errSecretProviderNotConfigured = errors.New("di.shared: secretProviderSM not configured")

// secretProviderSM reads secret payloads from Secret Manager.
type secretProviderSM struct {
	sm        *secretmanager.Client
	projectID string
}

// secretVersionName accepts a short secret id ("fs-creds"), an id with a
// version ("fs-creds/versions/3") or a full resource name.
func secretVersionName(projectID, secret string) (string, error) {
	s := strings.Trim(strings.TrimSpace(secret), "/")
	if s == "" {
		return "", errors.New("secretProviderSM: secret name is empty")
	}
	if strings.HasPrefix(s, "projects/") {
		if !strings.Contains(s, "/versions/") {
			s += "/versions/latest"
		}
		return s, nil
	}
	prj := strings.TrimSpace(projectID)
	if prj == "" {
		return "", errors.New("secretProviderSM: projectID is empty")
	}
	if !strings.Contains(s, "/versions/") {
		s += "/versions/latest"
	}
	return "projects/" + prj + "/secrets/" + s, nil
}

func (p *secretProviderSM) Access(ctx context.Context, secret string) ([]byte, error) {
	if p == nil || p.sm == nil {
		return nil, errSecretProviderNotConfigured
	}
	name, err := secretVersionName(p.projectID, secret)
	if err != nil {
		return nil, err
	}
	resp, err := p.sm.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return nil, errors.New("secretProviderSM: AccessSecretVersion failed (" + name + "): " + err.Error())
	}
	if resp == nil || resp.Payload == nil || len(resp.Payload.Data) == 0 {
		return nil, errors.New("secretProviderSM: empty payload (" + name + ")")
	}
	return resp.Payload.Data, nil
}
