package registry

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	"github.com/keywheel/keywheel/internal/config"
	"github.com/keywheel/keywheel/internal/domain/models"
	"github.com/keywheel/keywheel/pkg/errors"
)

// VaultRegistry stores key records in a Vault KV v2 mount under
// "{namespace}/{key_id}". Only public JWK material goes through here;
// Vault is used as a shared registry, not as a private-key store.
type VaultRegistry struct {
	client    *vault.Client
	mountPath string
}

// NewVaultRegistry builds a Vault client from the configuration.
func NewVaultRegistry(cfg *config.VaultConfig) (*VaultRegistry, error) {
	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Address
	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to create vault client")
	}
	client.SetToken(cfg.Token)
	return &VaultRegistry{client: client, mountPath: cfg.MountPath}, nil
}

func (r *VaultRegistry) secretPath(namespace, keyID string) string {
	return namespace + "/" + keyID
}

func (r *VaultRegistry) Create(ctx context.Context, record *models.KeyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to marshal key record")
	}
	_, err = r.client.KVv2(r.mountPath).Put(ctx, r.secretPath(record.Namespace, record.KeyID), map[string]interface{}{
		"record": string(data),
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "failed to write key record to vault")
	}
	return nil
}

func (r *VaultRegistry) Fetch(ctx context.Context, namespace, keyID string) (*models.KeyRecord, error) {
	secret, err := r.client.KVv2(r.mountPath).Get(ctx, r.secretPath(namespace, keyID))
	if goerrors.Is(err, vault.ErrSecretNotFound) {
		return nil, errors.ErrRecordNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to read key record from vault")
	}
	raw, ok := secret.Data["record"].(string)
	if !ok {
		return nil, errors.New(errors.CodeInternal, "vault secret is missing the record field")
	}
	var record models.KeyRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to unmarshal key record")
	}
	return &record, nil
}

func (r *VaultRegistry) List(ctx context.Context, namespace string) ([]*models.KeyRecord, error) {
	listPath := fmt.Sprintf("%s/metadata/%s", r.mountPath, namespace)
	secret, err := r.client.Logical().ListWithContext(ctx, listPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to list vault registry keys")
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}
	keys, ok := secret.Data["keys"].([]interface{})
	if !ok {
		return nil, nil
	}
	out := make([]*models.KeyRecord, 0, len(keys))
	for _, k := range keys {
		keyID, ok := k.(string)
		if !ok {
			continue
		}
		record, err := r.Fetch(ctx, namespace, keyID)
		if errors.IsNotFound(err) {
			// Deleted between list and read.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}
