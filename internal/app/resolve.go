package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"fleet-manifests/internal/adapters"
	"fleet-manifests/internal/types"
)

// AssignManifest picks the root manifest: the first matching assignment
// rule, else the client's declared track, else the default manifest.
func (s Service) AssignManifest(attrs types.Attributes) string {
	if s.Assignment != nil {
		if manifest, ok := s.Assignment.Assign(attrs); ok {
			return manifest
		}
	}
	if track, ok := attrs.Get(types.AttrTrack); ok {
		return track
	}
	if s.DefaultManifest != "" {
		return s.DefaultManifest
	}
	return DefaultManifest
}

// Resolve computes the client's plan against the current store snapshots.
// The client's last reported installed state feeds removals and the
// already-installed flag.
func (s Service) Resolve(ctx context.Context, req ResolveRequest) (types.ResolutionResult, error) {
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		return types.ResolutionResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("client id is required")
	}
	attrs := req.Attributes.Normalized()
	root := strings.TrimSpace(req.Manifest)
	if root == "" {
		root = s.AssignManifest(attrs)
	}
	client := types.ClientContext{ClientID: clientID, Attributes: attrs, RootManifest: root}

	prior, err := s.priorState(ctx, clientID)
	if err != nil {
		return types.ResolutionResult{}, err
	}
	result, err := s.Resolver.Resolve(ctx, client, s.Manifests.Snapshot(), s.Catalogs.Snapshot(), prior)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("client_id", clientID).
			Str("manifest", root).
			Msg("resolution failed")
		return types.ResolutionResult{}, err
	}
	result.ID = s.NewID()
	result.ResolvedAt = s.now()

	if req.Record {
		if _, err := s.Checkins.RecordResolution(ctx, clientID, result); err != nil {
			return types.ResolutionResult{}, err
		}
	}
	log.Ctx(ctx).Debug().
		Str("client_id", clientID).
		Str("manifest", root).
		Str("resolution_id", result.ID).
		Int("installs", len(result.Installs())).
		Int("removals", len(result.Removals())).
		Msg("client resolved")
	return result, nil
}

func (s Service) priorState(ctx context.Context, clientID string) (map[string]string, error) {
	if s.Checkins == nil {
		return nil, nil
	}
	record, err := s.Checkins.Current(ctx, clientID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record.Installed, nil
}

// Export writes plan.lock and resolution.report for result.
func (s Service) Export(req ExportRequest) error {
	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output directory is required")
	}
	writer := adapters.NewOutputFileAdapter(outputDir)
	if err := writer.WritePlanLock(req.Result); err != nil {
		return err
	}
	return writer.WriteResolutionReport(ResolutionReport(req.Result))
}

// ResolutionReport is the metadata of result in its exported form.
func ResolutionReport(result types.ResolutionResult) types.ResolutionReport {
	return types.ResolutionReport{
		ResolutionID:     result.ID,
		ClientID:         result.ClientID,
		RootManifest:     result.Plan.RootManifest,
		Fingerprint:      result.Fingerprint,
		ResolvedAt:       result.ResolvedAt.Format(time.RFC3339),
		ManifestVersions: result.Plan.ManifestVersions,
		CatalogVersions:  result.Plan.CatalogVersions,
	}
}
