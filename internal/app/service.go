package app

import (
	"time"

	"github.com/google/uuid"

	"fleet-manifests/internal/adapters"
	"fleet-manifests/internal/core"
	"fleet-manifests/internal/ports"
)

// DefaultManifest is the root manifest for clients no rule or track
// attribute assigns.
const DefaultManifest = "site_default"

type Service struct {
	Catalogs        ports.CatalogStorePort
	Manifests       ports.ManifestStorePort
	Checkins        ports.CheckinPort
	Assignment      ports.AssignmentPort
	Seeds           ports.SeedSourcePort
	OutputReader    ports.PlanReaderPort
	Resolver        core.ManifestResolver
	DefaultManifest string
	Clock           func() time.Time
	NewID           func() string
}

// NewService wires in-memory stores and tracker. Callers swap in a
// persistent tracker or an assignment policy as configured.
func NewService() Service {
	return newService(time.Now)
}

func newService(clock func() time.Time) Service {
	catalogs := adapters.NewCatalogStore(clock)
	return Service{
		Catalogs:        catalogs,
		Manifests:       adapters.NewManifestStore(catalogs, clock),
		Checkins:        adapters.NewMemoryCheckinTracker(clock),
		Seeds:           adapters.NewSeedFileAdapter(),
		OutputReader:    adapters.NewOutputReaderAdapter(),
		Resolver:        core.NewManifestResolver(),
		DefaultManifest: DefaultManifest,
		Clock:           clock,
		NewID:           uuid.NewString,
	}
}

// fresh returns a copy of s with empty stores, sharing its loaders and
// clock. Validation seeds into it so nothing leaks into s.
func (s Service) fresh() Service {
	clock := s.Clock
	if clock == nil {
		clock = time.Now
	}
	out := newService(clock)
	if s.Seeds != nil {
		out.Seeds = s.Seeds
	}
	if s.OutputReader != nil {
		out.OutputReader = s.OutputReader
	}
	out.Assignment = s.Assignment
	out.DefaultManifest = s.DefaultManifest
	if s.NewID != nil {
		out.NewID = s.NewID
	}
	return out
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock().UTC()
}
