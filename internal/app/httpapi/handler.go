// Package httpapi exposes the service layer over REST. Identity is resolved
// once per request; every failure surfaces as a coded JSON error.
package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	app "github.com/skymaintain/service-layer/internal/app"
	"github.com/skymaintain/service-layer/internal/app/domain/ingestion"
	"github.com/skymaintain/service-layer/internal/app/metrics"
	"github.com/skymaintain/service-layer/internal/app/rbac"
	decisionsvc "github.com/skymaintain/service-layer/internal/app/services/decision"
	"github.com/skymaintain/service-layer/internal/errors"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app      *app.Application
	identity IdentityResolver
}

// NewHandler returns the API router. resolver may be nil, in which case the
// default header resolver without bearer-token support is used.
func NewHandler(application *app.Application, resolver IdentityResolver) http.Handler {
	if resolver == nil {
		resolver = NewHeaderResolver(nil)
	}
	h := &handler{app: application, identity: resolver}

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/ingestion/records", h.ingestRecord).Methods(http.MethodPost)
	api.HandleFunc("/ingestion/records", h.listRecords).Methods(http.MethodGet)
	api.HandleFunc("/ingestion/batch", h.ingestBatch).Methods(http.MethodPost)
	api.HandleFunc("/ingestion/log", h.listIngestionLog).Methods(http.MethodGet)
	api.HandleFunc("/decision-events", h.recordDecision).Methods(http.MethodPost)
	api.HandleFunc("/decision-events", h.listDecisions).Methods(http.MethodGet)
	api.HandleFunc("/audit", h.listAudit).Methods(http.MethodGet)
	api.HandleFunc("/entitlements", h.entitlements).Methods(http.MethodGet)
	api.HandleFunc("/api-keys", h.mintAPIKey).Methods(http.MethodPost)
	api.HandleFunc("/api-keys", h.listAPIKeys).Methods(http.MethodGet)
	api.HandleFunc("/api-keys/{id}", h.revokeAPIKey).Methods(http.MethodDelete)

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	if m := application.Metrics; m != nil {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
		return instrument(m, r)
	}
	return r
}

// instrument wraps the router so request metrics carry the route template as
// the path label.
func instrument(m *metrics.Metrics, r *mux.Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path := req.URL.Path
		var match mux.RouteMatch
		if r.Match(req, &match) && match.Route != nil {
			if template, err := match.Route.GetPathTemplate(); err == nil {
				path = template
			}
		}
		m.InstrumentHandler(path, r).ServeHTTP(w, req)
	})
}

// actor resolves the request identity, preferring an ingestion API key when
// one is presented. A key-authenticated request acts as a Maintenance
// Engineer scoped to the key's organization.
func (h *handler) actor(r *http.Request) (rbac.Actor, *ingestion.APIKey, error) {
	if secret := r.Header.Get("X-API-Key"); secret != "" {
		key, err := h.app.APIKeys.Validate(r.Context(), secret)
		if err != nil {
			return rbac.Actor{}, nil, err
		}
		return rbac.Actor{
			UserID: "api-key:" + key.ID,
			Role:   rbac.RoleMaintenanceEngineer,
			OrgID:  key.OrgID,
		}, &key, nil
	}
	return h.identity.Resolve(r), nil, nil
}

type ingestRequest struct {
	Source     ingestion.Source         `json:"source"`
	AircraftID string                   `json:"aircraftId"`
	TailNumber string                   `json:"tailNumber,omitempty"`
	Timestamp  string                   `json:"timestamp"`
	Payload    map[string]any           `json:"payload"`
	Governance *ingestion.DataOwnership `json:"governance,omitempty"`
}

func (req ingestRequest) record() ingestion.Record {
	return ingestion.Record{
		Source:     req.Source,
		AircraftID: req.AircraftID,
		TailNumber: req.TailNumber,
		Timestamp:  req.Timestamp,
		Payload:    req.Payload,
		Governance: req.Governance,
	}
}

func (h *handler) ingestRecord(w http.ResponseWriter, r *http.Request) {
	actor, key, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req ingestRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, errors.Validation("invalid request body").WithCause(err))
		return
	}
	if key != nil && !key.SourceAllowed(req.Source) {
		writeError(w, errors.Forbidden("api key is not permitted to submit this source"))
		return
	}

	if _, err := h.app.Ingestion.Ingest(r.Context(), actor, req.record()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *handler) listRecords(w http.ResponseWriter, r *http.Request) {
	actor, _, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	records, err := h.app.Ingestion.ListRecords(r.Context(), actor.OrgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (h *handler) ingestBatch(w http.ResponseWriter, r *http.Request) {
	actor, key, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Kind    ingestion.BatchKind `json:"kind"`
		Records []ingestRequest     `json:"records"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, errors.Validation("invalid request body").WithCause(err))
		return
	}
	if req.Kind == "" {
		req.Kind = ingestion.BatchAPIPush
	}

	apiKeyID := ""
	if key != nil {
		apiKeyID = key.ID
		for _, rec := range req.Records {
			if !key.SourceAllowed(rec.Source) {
				writeError(w, errors.Forbidden("api key is not permitted to submit this source"))
				return
			}
		}
	}

	records := make([]ingestion.Record, 0, len(req.Records))
	for _, rec := range req.Records {
		records = append(records, rec.record())
	}

	entry, err := h.app.Ingestion.IngestBatch(r.Context(), actor, req.Kind, records, apiKeyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"log": entry})
}

func (h *handler) listIngestionLog(w http.ResponseWriter, r *http.Request) {
	actor, _, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.app.Ingestion.ListLog(r.Context(), actor.OrgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *handler) recordDecision(w http.ResponseWriter, r *http.Request) {
	actor, _, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req decisionsvc.RecordRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, errors.Validation("invalid request body").WithCause(err))
		return
	}

	event, err := h.app.Decisions.Record(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": event})
}

func (h *handler) listDecisions(w http.ResponseWriter, r *http.Request) {
	actor, _, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	events, err := h.app.Decisions.List(r.Context(), actor.OrgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *handler) listAudit(w http.ResponseWriter, r *http.Request) {
	actor, _, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rbac.Require(actor, rbac.RoleComplianceOfficer); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": h.app.Audit.Recent(actor.OrgID)})
}

func (h *handler) entitlements(w http.ResponseWriter, r *http.Request) {
	actor, _, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.app.Entitlements.Resolve(r.Context(), actor.OrgID))
}

func (h *handler) mintAPIKey(w http.ResponseWriter, r *http.Request) {
	actor, _, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Label          string             `json:"label"`
		AllowedSources []ingestion.Source `json:"allowedSources,omitempty"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, errors.Validation("invalid request body").WithCause(err))
		return
	}

	minted, err := h.app.APIKeys.Mint(r.Context(), actor, req.Label, req.AllowedSources)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, minted)
}

func (h *handler) listAPIKeys(w http.ResponseWriter, r *http.Request) {
	actor, _, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	keys, err := h.app.APIKeys.List(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (h *handler) revokeAPIKey(w http.ResponseWriter, r *http.Request) {
	actor, _, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.app.APIKeys.Revoke(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(body io.ReadCloser, dst any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errors.StatusOf(err))

	payload := map[string]any{
		"code":  string(errors.CodeOf(err)),
		"error": err.Error(),
	}
	var coded *errors.Error
	if stderrors.As(err, &coded) && len(coded.Fields) > 0 {
		payload["fields"] = coded.Fields
	}
	_ = json.NewEncoder(w).Encode(payload)
}
