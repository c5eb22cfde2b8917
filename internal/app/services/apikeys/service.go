// Package apikeys manages the org-bound credentials accepted on the push
// ingestion path. Key material is returned exactly once at creation; only its
// SHA-256 hash is stored.
package apikeys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	auditsvc "github.com/skymaintain/service-layer/internal/app/services/audit"

	"github.com/skymaintain/service-layer/internal/app/domain/audit"
	"github.com/skymaintain/service-layer/internal/app/domain/ingestion"
	"github.com/skymaintain/service-layer/internal/app/rbac"
	"github.com/skymaintain/service-layer/internal/app/storage"
	"github.com/skymaintain/service-layer/internal/errors"
	"github.com/skymaintain/service-layer/pkg/logger"
)

const keyPrefix = "sk_live_"

// MintedKey pairs the stored key record with the plaintext secret. The secret
// is never derivable again after this response.
type MintedKey struct {
	Key    ingestion.APIKey `json:"key"`
	Secret string           `json:"secret"`
}

// Service mints, validates and revokes ingestion API keys.
type Service struct {
	keys  storage.APIKeyStore
	audit *auditsvc.Logger
	log   *logger.Logger
}

// NewService wires the API key manager.
func NewService(keys storage.APIKeyStore, auditLog *auditsvc.Logger, log *logger.Logger) *Service {
	return &Service{keys: keys, audit: auditLog, log: log}
}

// Mint creates a key for the actor's organization. Requires Fleet Manager or
// above.
func (s *Service) Mint(ctx context.Context, actor rbac.Actor, label string, allowedSources []ingestion.Source) (MintedKey, error) {
	if err := rbac.Require(actor, rbac.RoleFleetManager); err != nil {
		return MintedKey{}, err
	}
	if label == "" {
		return MintedKey{}, errors.Validation("key label is required")
	}
	for _, src := range allowedSources {
		if !src.Valid() {
			return MintedKey{}, errors.Validation("unknown ingestion source").WithField("allowedSources", string(src))
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return MintedKey{}, errors.Internal("failed to generate key material").WithCause(err)
	}

	key, err := s.keys.CreateAPIKey(ctx, ingestion.APIKey{
		OrgID:          actor.OrgID,
		Label:          label,
		KeyHash:        HashKey(secret),
		AllowedSources: allowedSources,
		Active:         true,
	})
	if err != nil {
		return MintedKey{}, errors.Internal("failed to persist api key").WithCause(err)
	}

	s.audit.Record(ctx, actor, audit.ActionAPIKeyCreated, "IngestionAPIKey", key.ID, map[string]any{
		"label": label,
	})
	return MintedKey{Key: key, Secret: secret}, nil
}

// Validate resolves the org-bound key record for a presented secret. Missing
// and unrecognised keys are authentication failures; a revoked key is an
// authorization failure so clients can tell the difference.
func (s *Service) Validate(ctx context.Context, secret string) (ingestion.APIKey, error) {
	if secret == "" {
		return ingestion.APIKey{}, errors.Unauthorized("api key is required")
	}
	if !strings.HasPrefix(secret, keyPrefix) {
		return ingestion.APIKey{}, errors.Unauthorized("api key is not recognized")
	}

	key, err := s.keys.GetAPIKeyByHash(ctx, HashKey(secret))
	if err != nil {
		return ingestion.APIKey{}, errors.Unauthorized("api key is not recognized")
	}
	if !key.Active || key.RevokedAt != nil {
		return ingestion.APIKey{}, errors.Forbidden("api key has been revoked")
	}

	// Last-used tracking is fire and forget.
	go func(id string) {
		if err := s.keys.TouchAPIKey(context.Background(), id, time.Now().UTC()); err != nil {
			s.log.WithError(err).WithField("keyId", id).Warn("api key last-used update failed")
		}
	}(key.ID)

	return key, nil
}

// List returns the org's keys. Hashes never leave the service.
func (s *Service) List(ctx context.Context, actor rbac.Actor) ([]ingestion.APIKey, error) {
	if err := rbac.Require(actor, rbac.RoleFleetManager); err != nil {
		return nil, err
	}
	return s.keys.ListAPIKeys(ctx, actor.OrgID)
}

// Revoke deactivates a key within the actor's organization.
func (s *Service) Revoke(ctx context.Context, actor rbac.Actor, id string) error {
	if err := rbac.Require(actor, rbac.RoleFleetManager); err != nil {
		return err
	}
	if err := s.keys.RevokeAPIKey(ctx, actor.OrgID, id); err != nil {
		return errors.NotFound("api key not found").WithCause(err)
	}

	s.audit.Record(ctx, actor, audit.ActionAPIKeyRevoked, "IngestionAPIKey", id, nil)
	return nil
}

// HashKey returns the hex SHA-256 of a key secret, the only form persisted.
func HashKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func generateSecret() (string, error) {
	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return keyPrefix + hex.EncodeToString(raw), nil
}
