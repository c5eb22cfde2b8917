// Package audit records governance-relevant actions. Writes are best effort:
// an audit failure must never fail the operation that produced it.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/skymaintain/service-layer/internal/app/domain/audit"
	"github.com/skymaintain/service-layer/internal/app/rbac"
	"github.com/skymaintain/service-layer/internal/app/storage"
	"github.com/skymaintain/service-layer/pkg/logger"
)

const ringSize = 500

// Logger appends audit events to the store and keeps a bounded in-process
// ring of recent entries for the read endpoint.
type Logger struct {
	store    storage.AuditStore
	log      *logger.Logger
	failures prometheus.Counter

	mu     sync.Mutex
	recent []audit.Event
}

// NewLogger creates an audit logger. The failures counter may be nil.
func NewLogger(store storage.AuditStore, log *logger.Logger, failures prometheus.Counter) *Logger {
	return &Logger{
		store:    store,
		log:      log,
		failures: failures,
		recent:   make([]audit.Event, 0, ringSize),
	}
}

// Record persists an audit event. Errors are logged and counted, never
// returned; callers must not branch on audit success.
func (l *Logger) Record(ctx context.Context, actor rbac.Actor, action, resourceType, resourceID string, metadata map[string]any) {
	ev := audit.Event{
		ID:           uuid.NewString(),
		OccurredAt:   time.Now().UTC(),
		ActorID:      actor.UserID,
		ActorRole:    actor.Role,
		OrgID:        actor.OrgID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     metadata,
	}

	l.mu.Lock()
	if len(l.recent) >= ringSize {
		l.recent = l.recent[1:]
	}
	l.recent = append(l.recent, ev)
	l.mu.Unlock()

	if l.store == nil {
		return
	}
	if err := l.store.AppendAudit(ctx, ev); err != nil {
		if l.failures != nil {
			l.failures.Inc()
		}
		l.log.WithError(err).WithField("action", action).Warn("audit write failed")
	}
}

// Recent returns the buffered audit events for an organization, newest last.
func (l *Logger) Recent(orgID string) []audit.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]audit.Event, 0, len(l.recent))
	for _, ev := range l.recent {
		if ev.OrgID == orgID {
			out = append(out, ev)
		}
	}
	return out
}
