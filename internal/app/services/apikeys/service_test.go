package apikeys

import (
	"context"
	"strings"
	"testing"
	"time"

	auditsvc "github.com/skymaintain/service-layer/internal/app/services/audit"

	"github.com/skymaintain/service-layer/internal/app/domain/audit"
	"github.com/skymaintain/service-layer/internal/app/domain/ingestion"
	"github.com/skymaintain/service-layer/internal/app/rbac"
	"github.com/skymaintain/service-layer/internal/app/storage/memory"
	"github.com/skymaintain/service-layer/internal/errors"
	"github.com/skymaintain/service-layer/pkg/logger"
)

func newTestService(store *memory.Store) *Service {
	log := logger.NewDefault("test")
	return NewService(store, auditsvc.NewLogger(store, log, nil), log)
}

func manager() rbac.Actor {
	return rbac.Actor{UserID: "mgr-1", Role: rbac.RoleFleetManager, OrgID: "org-1"}
}

func TestService_MintAndValidate(t *testing.T) {
	store := memory.New()
	svc := newTestService(store)

	minted, err := svc.Mint(context.Background(), manager(), "connector", nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !strings.HasPrefix(minted.Secret, "sk_live_") || len(minted.Secret) != len("sk_live_")+40 {
		t.Fatalf("unexpected secret format: %q", minted.Secret)
	}
	if minted.Key.KeyHash == minted.Secret {
		t.Fatalf("plaintext secret must not be stored")
	}

	key, err := svc.Validate(context.Background(), minted.Secret)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if key.ID != minted.Key.ID || key.OrgID != "org-1" {
		t.Fatalf("unexpected key: %#v", key)
	}

	events := store.AuditEvents("org-1")
	if len(events) != 1 || events[0].Action != audit.ActionAPIKeyCreated {
		t.Fatalf("expected API_KEY_CREATED audit entry, got %#v", events)
	}
}

func TestService_MintRequiresFleetManager(t *testing.T) {
	svc := newTestService(memory.New())

	eng := rbac.Actor{UserID: "u", Role: rbac.RoleMaintenanceEngineer, OrgID: "org-1"}
	if _, err := svc.Mint(context.Background(), eng, "k", nil); !errors.Is(err, errors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestService_ValidateFailures(t *testing.T) {
	store := memory.New()
	svc := newTestService(store)

	if _, err := svc.Validate(context.Background(), ""); !errors.Is(err, errors.CodeUnauthorized) {
		t.Fatalf("missing key: expected unauthorized, got %v", err)
	}
	if _, err := svc.Validate(context.Background(), "sk_live_"+strings.Repeat("0", 40)); !errors.Is(err, errors.CodeUnauthorized) {
		t.Fatalf("unknown key: expected unauthorized, got %v", err)
	}

	minted, err := svc.Mint(context.Background(), manager(), "to-revoke", nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := svc.Revoke(context.Background(), manager(), minted.Key.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.Validate(context.Background(), minted.Secret); !errors.Is(err, errors.CodeForbidden) {
		t.Fatalf("revoked key: expected forbidden, got %v", err)
	}
}

func TestService_AllowedSources(t *testing.T) {
	svc := newTestService(memory.New())

	minted, err := svc.Mint(context.Background(), manager(), "acms-only", []ingestion.Source{ingestion.SourceACMSOutputs})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !minted.Key.SourceAllowed(ingestion.SourceACMSOutputs) {
		t.Fatalf("allowed source rejected")
	}
	if minted.Key.SourceAllowed(ingestion.SourceFaultCodes) {
		t.Fatalf("disallowed source accepted")
	}

	if _, err := svc.Mint(context.Background(), manager(), "bad", []ingestion.Source{"Telemetry"}); !errors.Is(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for unknown source, got %v", err)
	}
}

func TestService_ValidateTouchesLastUsed(t *testing.T) {
	store := memory.New()
	svc := newTestService(store)

	minted, err := svc.Mint(context.Background(), manager(), "touched", nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := svc.Validate(context.Background(), minted.Secret); err != nil {
		t.Fatalf("validate: %v", err)
	}

	// The last-used update is asynchronous.
	deadline := time.Now().Add(2 * time.Second)
	for {
		keys, err := svc.List(context.Background(), manager())
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(keys) == 1 && keys[0].LastUsedAt != nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("last-used timestamp never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
