package memory

import (
	"context"
	"testing"
	"time"

	"github.com/skymaintain/service-layer/internal/app/domain/decision"
	"github.com/skymaintain/service-layer/internal/app/domain/ingestion"
	"github.com/skymaintain/service-layer/internal/app/domain/org"
)

func TestStore_RecordsAreOrgScoped(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, orgID := range []string{"org-1", "org-1", "org-2"} {
		_, err := store.AppendRecord(ctx, ingestion.Record{
			OrgID:      orgID,
			Source:     ingestion.SourceFaultCodes,
			AircraftID: "ac-1",
			Timestamp:  "2026-08-30T10:00:00Z",
			Payload:    map[string]any{"fault_code": "A24-1"},
		})
		if err != nil {
			t.Fatalf("append record: %v", err)
		}
	}

	one, err := store.ListRecords(ctx, "org-1")
	if err != nil {
		t.Fatalf("list org-1: %v", err)
	}
	two, err := store.ListRecords(ctx, "org-2")
	if err != nil {
		t.Fatalf("list org-2: %v", err)
	}
	if len(one) != 2 || len(two) != 1 {
		t.Fatalf("expected 2/1 records, got %d/%d", len(one), len(two))
	}
}

func TestStore_ReturnsClones(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec, err := store.AppendRecord(ctx, ingestion.Record{
		OrgID:      "org-1",
		Source:     ingestion.SourceACMSOutputs,
		AircraftID: "ac-1",
		Timestamp:  "2026-08-30T10:00:00Z",
		Payload:    map[string]any{"egt_margin": 12.5},
	})
	if err != nil {
		t.Fatalf("append record: %v", err)
	}

	rec.Payload["egt_margin"] = "tampered"

	fetched, err := store.ListRecords(ctx, "org-1")
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if fetched[0].Payload["egt_margin"] != 12.5 {
		t.Fatalf("stored payload was mutated through the returned copy: %#v", fetched[0].Payload)
	}
}

func TestStore_DecisionEventsAppendOnlyPerOrg(t *testing.T) {
	store := New()
	ctx := context.Background()

	ev, err := store.AppendEvent(ctx, decision.Event{
		OrgID:       "org-1",
		Disposition: decision.DispositionComply,
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}
	if ev.ID == "" {
		t.Fatalf("expected generated id")
	}

	if events, _ := store.ListEvents(ctx, "org-2"); len(events) != 0 {
		t.Fatalf("org-2 must not see org-1 events")
	}
}

func TestStore_APIKeyLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()

	key, err := store.CreateAPIKey(ctx, ingestion.APIKey{
		OrgID:   "org-1",
		Label:   "connector",
		KeyHash: "abc123",
		Active:  true,
	})
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	byHash, err := store.GetAPIKeyByHash(ctx, "abc123")
	if err != nil {
		t.Fatalf("get by hash: %v", err)
	}
	if byHash.ID != key.ID {
		t.Fatalf("hash lookup returned wrong key")
	}

	if err := store.TouchAPIKey(ctx, key.ID, time.Now().UTC()); err != nil {
		t.Fatalf("touch: %v", err)
	}

	if err := store.RevokeAPIKey(ctx, "org-2", key.ID); err == nil {
		t.Fatalf("cross-org revoke must fail")
	}
	if err := store.RevokeAPIKey(ctx, "org-1", key.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	keys, err := store.ListAPIKeys(ctx, "org-1")
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 1 || keys[0].Active || keys[0].RevokedAt == nil {
		t.Fatalf("expected revoked key, got %#v", keys[0])
	}
}

func TestStore_OrganizationUpsert(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, err := store.UpsertOrganization(ctx, org.Organization{ID: "org-1", Name: "Alpha", Tier: org.TierStarter})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	updated, err := store.UpsertOrganization(ctx, org.Organization{ID: "org-1", Name: "Alpha", Tier: org.TierEnterprise, RequireGovernance: true})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if updated.CreatedAt != created.CreatedAt {
		t.Fatalf("upsert must keep the original creation time")
	}

	got, err := store.GetOrganization(ctx, "org-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Tier != org.TierEnterprise || !got.RequireGovernance {
		t.Fatalf("update not applied: %#v", got)
	}

	if _, err := store.GetOrganization(ctx, "org-404"); err == nil {
		t.Fatalf("expected not-found error")
	}
}
