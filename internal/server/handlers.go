package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"fleet-manifests/internal/adapters"
	"fleet-manifests/internal/app"
	"fleet-manifests/internal/types"
)

type checkinRequest struct {
	Attributes types.Attributes `json:"attributes"`
}

type reportRequest struct {
	ResolutionID string                `json:"resolution_id"`
	Outcomes     []types.OutcomeReport `json:"outcomes"`
}

type reportResponse struct {
	ResolutionID string   `json:"resolution_id"`
	Seq          int64    `json:"seq"`
	Drift        []string `json:"drift"`
}

type publishRequest struct {
	Entries []types.PackageEntry `json:"entries"`
}

type versionResponse struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
}

type aliasesRequest struct {
	Aliases []types.Alias `json:"aliases"`
}

type modificationsRequest struct {
	Modifications []types.Modification `json:"modifications"`
}

type driftResponse struct {
	ClientID string   `json:"client_id"`
	Drift    []string `json:"drift"`
}

type sweepResponse struct {
	Drift    []types.ClientDrift   `json:"drift"`
	Inactive []types.ClientSummary `json:"inactive"`
}

func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	var body checkinRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	identity := identityFrom(r.Context())
	result, err := s.svc.CheckIn(r.Context(), app.CheckinRequest{
		ResolveRequest:   app.ResolveRequest{ClientID: identity.ClientID, Attributes: body.Attributes},
		KnownFingerprint: r.Header.Get("If-None-Match"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", `"`+result.Result.Fingerprint+`"`)
	if result.Unchanged {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, r, http.StatusOK, result.Result)
}

func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	asOf, err := adapters.ParseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	catalog, err := s.svc.Catalogs.Get(r.Context(), chi.URLParam(r, "name"), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, catalog)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var body reportRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	identity := identityFrom(r.Context())
	record, err := s.svc.Report(r.Context(), app.ReportRequest{
		ClientID:     identity.ClientID,
		ResolutionID: body.ResolutionID,
		Outcomes:     body.Outcomes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	drift, err := s.svc.Drift(r.Context(), identity.ClientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, reportResponse{ResolutionID: record.ResolutionID(), Seq: record.Seq, Drift: drift})
}

func (s *Server) handlePublishCatalog(w http.ResponseWriter, r *http.Request) {
	var body publishRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	name := chi.URLParam(r, "name")
	version, err := s.svc.PublishCatalog(r.Context(), name, body.Entries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, versionResponse{Name: name, Version: version})
}

func (s *Server) handleUpsertManifest(w http.ResponseWriter, r *http.Request) {
	var manifest types.Manifest
	if err := decodeJSON(w, r, &manifest); err != nil {
		writeError(w, r, err)
		return
	}
	name := chi.URLParam(r, "name")
	version, err := s.svc.UpsertManifest(r.Context(), name, manifest)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, versionResponse{Name: name, Version: version})
}

func (s *Server) handleGetManifest(w http.ResponseWriter, r *http.Request) {
	asOf, err := adapters.ParseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	manifest, err := s.svc.Manifests.Get(r.Context(), chi.URLParam(r, "name"), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, manifest)
}

func (s *Server) handleSetAliases(w http.ResponseWriter, r *http.Request) {
	var body aliasesRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Manifests.SetAliases(r.Context(), body.Aliases); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetModifications(w http.ResponseWriter, r *http.Request) {
	var body modificationsRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Manifests.SetModifications(r.Context(), body.Modifications); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.svc.Checkins.Clients(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if clients == nil {
		clients = []types.ClientSummary{}
	}
	writeJSON(w, r, http.StatusOK, clients)
}

func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(chi.URLParam(r, "client"))
	drift, err := s.svc.Drift(r.Context(), clientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, driftResponse{ClientID: clientID, Drift: drift})
}

func (s *Server) handleDriftSweep(w http.ResponseWriter, r *http.Request) {
	policy := s.activity
	if days := r.URL.Query().Get("active_days"); days != "" {
		parsed, err := parseDays(days)
		if err != nil {
			writeError(w, r, err)
			return
		}
		policy.ActiveDays = parsed
	}
	result, err := s.svc.SweepDrift(r.Context(), app.DriftSweepRequest{Policy: policy})
	if err != nil {
		writeError(w, r, err)
		return
	}
	inactive := result.Inactive
	if inactive == nil {
		inactive = []types.ClientSummary{}
	}
	writeJSON(w, r, http.StatusOK, sweepResponse{Drift: result.Drift, Inactive: inactive})
}

func parseDays(value string) (int, error) {
	days, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || days <= 0 {
		return 0, types.NewError(types.KindValidation, "active_days must be a positive number of days", value)
	}
	return days, nil
}
