package audit

import (
	"context"
	"testing"

	"github.com/skymaintain/service-layer/internal/app/domain/audit"
	"github.com/skymaintain/service-layer/internal/app/rbac"
	"github.com/skymaintain/service-layer/internal/app/storage/memory"
	"github.com/skymaintain/service-layer/internal/errors"
	"github.com/skymaintain/service-layer/pkg/logger"
)

func TestLogger_RecordPersistsAndBuffers(t *testing.T) {
	store := memory.New()
	l := NewLogger(store, logger.NewDefault("test"), nil)

	actor := rbac.Actor{UserID: "user-1", Role: rbac.RoleAdmin, OrgID: "org-1"}
	l.Record(context.Background(), actor, audit.ActionSettingsChange, "Organization", "org-1", map[string]any{"field": "tier"})

	recent := l.Recent("org-1")
	if len(recent) != 1 {
		t.Fatalf("expected 1 buffered event, got %d", len(recent))
	}
	if recent[0].Action != audit.ActionSettingsChange || recent[0].ActorID != "user-1" {
		t.Fatalf("unexpected event: %#v", recent[0])
	}

	stored := store.AuditEvents("org-1")
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(stored))
	}
}

func TestLogger_RecentIsOrgScoped(t *testing.T) {
	l := NewLogger(memory.New(), logger.NewDefault("test"), nil)

	l.Record(context.Background(), rbac.Actor{UserID: "a", Role: rbac.RoleAdmin, OrgID: "org-1"}, audit.ActionLogin, "Session", "", nil)
	l.Record(context.Background(), rbac.Actor{UserID: "b", Role: rbac.RoleAdmin, OrgID: "org-2"}, audit.ActionLogin, "Session", "", nil)

	if got := l.Recent("org-1"); len(got) != 1 || got[0].ActorID != "a" {
		t.Fatalf("org-1 sees wrong events: %#v", got)
	}
	if got := l.Recent("org-2"); len(got) != 1 || got[0].ActorID != "b" {
		t.Fatalf("org-2 sees wrong events: %#v", got)
	}
}

func TestLogger_StoreFailureIsSwallowed(t *testing.T) {
	l := NewLogger(failingStore{}, logger.NewDefault("test"), nil)

	actor := rbac.Actor{UserID: "user-1", Role: rbac.RoleAdmin, OrgID: "org-1"}
	// Must not panic or surface the store error.
	l.Record(context.Background(), actor, audit.ActionIngest, "IngestionRecord", "ac-1", nil)

	if got := l.Recent("org-1"); len(got) != 1 {
		t.Fatalf("ring must keep the event even when the store fails: %#v", got)
	}
}

func TestLogger_RingIsBounded(t *testing.T) {
	l := NewLogger(nil, logger.NewDefault("test"), nil)
	actor := rbac.Actor{UserID: "user-1", Role: rbac.RoleAdmin, OrgID: "org-1"}

	for i := 0; i < ringSize+25; i++ {
		l.Record(context.Background(), actor, audit.ActionIngest, "IngestionRecord", "ac-1", nil)
	}
	if got := l.Recent("org-1"); len(got) != ringSize {
		t.Fatalf("expected ring capped at %d, got %d", ringSize, len(got))
	}
}

type failingStore struct{}

func (failingStore) AppendAudit(context.Context, audit.Event) error {
	return errors.Internal("audit store unavailable")
}
