// Package app wires the service layer: domain services over pluggable
// org-scoped stores, with shared logging, metrics and audit.
package app

import (
	"github.com/skymaintain/service-layer/internal/app/metrics"
	"github.com/skymaintain/service-layer/internal/app/policy"
	apikeyssvc "github.com/skymaintain/service-layer/internal/app/services/apikeys"
	auditsvc "github.com/skymaintain/service-layer/internal/app/services/audit"
	decisionsvc "github.com/skymaintain/service-layer/internal/app/services/decision"
	entitlementssvc "github.com/skymaintain/service-layer/internal/app/services/entitlements"
	ingestionsvc "github.com/skymaintain/service-layer/internal/app/services/ingestion"
	"github.com/skymaintain/service-layer/internal/app/storage"
	"github.com/skymaintain/service-layer/internal/app/storage/memory"
	"github.com/skymaintain/service-layer/pkg/logger"
)

// Stores collects the persistence interfaces the application depends on. Any
// nil store falls back to a shared in-memory implementation, which keeps tests
// and local development free of external dependencies.
type Stores struct {
	Ingestion storage.IngestionStore
	Decisions storage.DecisionEventStore
	Audit     storage.AuditStore
	APIKeys   storage.APIKeyStore
	Orgs      storage.OrgStore
}

// Options configures application construction.
type Options struct {
	Stores     Stores
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
	Thresholds policy.Thresholds
	// StampKey is the advisory pipeline's signing key; advisories must carry
	// a stamp minted with it to be actionable.
	StampKey []byte
}

// Application aggregates the wired services.
type Application struct {
	Ingestion    *ingestionsvc.Service
	Decisions    *decisionsvc.Service
	APIKeys      *apikeyssvc.Service
	Entitlements *entitlementssvc.Service
	Audit        *auditsvc.Logger
	Orgs         storage.OrgStore
	Metrics      *metrics.Metrics
	Log          *logger.Logger
}

// New wires the application from options.
func New(opts Options) *Application {
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault("app")
	}

	var fallback *memory.Store
	sharedMemory := func() *memory.Store {
		if fallback == nil {
			fallback = memory.New()
		}
		return fallback
	}

	stores := opts.Stores
	if stores.Ingestion == nil {
		stores.Ingestion = sharedMemory()
	}
	if stores.Decisions == nil {
		stores.Decisions = sharedMemory()
	}
	if stores.Audit == nil {
		stores.Audit = sharedMemory()
	}
	if stores.APIKeys == nil {
		stores.APIKeys = sharedMemory()
	}
	if stores.Orgs == nil {
		stores.Orgs = sharedMemory()
	}

	thresholds := opts.Thresholds
	if thresholds == (policy.Thresholds{}) {
		thresholds = policy.DefaultThresholds()
	}

	var auditLog *auditsvc.Logger
	if opts.Metrics != nil {
		auditLog = auditsvc.NewLogger(stores.Audit, log.WithField("component", "audit"), opts.Metrics.AuditWriteFailures)
	} else {
		auditLog = auditsvc.NewLogger(stores.Audit, log.WithField("component", "audit"), nil)
	}

	engine := policy.NewEngine(thresholds)
	verifier := policy.NewStampVerifier(opts.StampKey)

	return &Application{
		Ingestion:    ingestionsvc.NewService(stores.Ingestion, stores.Orgs, auditLog, opts.Metrics, log.WithField("component", "ingestion")),
		Decisions:    decisionsvc.NewService(stores.Decisions, engine, verifier, auditLog, opts.Metrics, log.WithField("component", "decision")),
		APIKeys:      apikeyssvc.NewService(stores.APIKeys, auditLog, log.WithField("component", "apikeys")),
		Entitlements: entitlementssvc.NewService(stores.Orgs, log.WithField("component", "entitlements")),
		Audit:        auditLog,
		Orgs:         stores.Orgs,
		Metrics:      opts.Metrics,
		Log:          log,
	}
}
