package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/skymaintain/service-layer/internal/app/domain/decision"
	"github.com/skymaintain/service-layer/internal/app/domain/ingestion"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestStore_AppendRecord(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO ingestion_records").
		WithArgs(sqlmock.AnyArg(), "org-1", string(ingestion.SourceFaultCodes), "ac-100",
			sqlmock.AnyArg(), "2026-08-30T10:00:00Z", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := store.AppendRecord(context.Background(), ingestion.Record{
		OrgID:      "org-1",
		Source:     ingestion.SourceFaultCodes,
		AircraftID: "ac-100",
		Timestamp:  "2026-08-30T10:00:00Z",
		Payload:    map[string]any{"fault_code": "A24-1"},
	})
	if err != nil {
		t.Fatalf("append record: %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("id and creation time must be assigned: %#v", rec)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStore_ListRecordsDecodesRows(t *testing.T) {
	store, mock := newMockStore(t)

	payload, _ := json.Marshal(map[string]any{"fault_code": "A24-1"})
	governance, _ := json.Marshal(ingestion.DataOwnership{
		Owner:          "ops",
		Steward:        "steward",
		LineageSource:  "cmc",
		Classification: ingestion.ClassificationInternal,
		RetentionDays:  730,
	})
	rows := sqlmock.NewRows([]string{
		"id", "org_id", "source", "aircraft_id", "tail_number", "event_timestamp", "payload", "governance", "created_at",
	}).AddRow("rec-1", "org-1", string(ingestion.SourceFaultCodes), "ac-100", "N123AB",
		"2026-08-30T10:00:00Z", payload, governance, time.Now().UTC())

	mock.ExpectQuery("SELECT (.+) FROM ingestion_records").
		WithArgs("org-1").
		WillReturnRows(rows)

	records, err := store.ListRecords(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.Payload["fault_code"] != "A24-1" {
		t.Fatalf("payload not decoded: %#v", rec.Payload)
	}
	if rec.Governance == nil || rec.Governance.RetentionDays != 730 {
		t.Fatalf("governance not decoded: %#v", rec.Governance)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStore_AppendEvent(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO decision_events").
		WithArgs(sqlmock.AnyArg(), "org-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"user-1", "2026-08-30T10:00:00Z", string(decision.DispositionComply), sqlmock.AnyArg(),
			string(decision.ActionRecordDecision), false, sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := store.AppendEvent(context.Background(), decision.Event{
		OrgID:    "org-1",
		Advisory: json.RawMessage(`{"title":"x"}`),
		Acknowledgement: decision.Acknowledgement{
			AcknowledgedBy: "user-1",
			AcknowledgedAt: "2026-08-30T10:00:00Z",
		},
		Disposition: decision.DispositionComply,
		UserAction:  decision.ActionRecordDecision,
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStore_GetAPIKeyByHash(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{
		"id", "org_id", "label", "key_hash", "allowed_sources", "is_active", "revoked_at", "last_used_at", "created_at",
	}).AddRow("key-1", "org-1", "connector", "hash-1", nil, true, nil, nil, time.Now().UTC())

	mock.ExpectQuery("SELECT (.+) FROM ingestion_api_keys").
		WithArgs("hash-1").
		WillReturnRows(rows)

	key, err := store.GetAPIKeyByHash(context.Background(), "hash-1")
	if err != nil {
		t.Fatalf("get key: %v", err)
	}
	if key.ID != "key-1" || !key.Active || key.RevokedAt != nil {
		t.Fatalf("unexpected key: %#v", key)
	}
}

func TestStore_RevokeAPIKeyMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE ingestion_api_keys").
		WithArgs("key-404", "org-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.RevokeAPIKey(context.Background(), "org-1", "key-404")
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}
