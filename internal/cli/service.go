package cli

import (
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/viper"

	"fleet-manifests/internal/adapters"
	"fleet-manifests/internal/app"
	"fleet-manifests/internal/policies"
	"fleet-manifests/internal/types"
)

type serviceOptions struct {
	// DBPath selects the SQLite check-in tracker; empty keeps check-ins
	// in memory.
	DBPath string
}

// newAppService wires the service from configuration. The returned close
// function releases the tracker database, if any.
func newAppService(opts serviceOptions) (app.Service, func(), error) {
	service := app.NewService()
	if manifest := strings.TrimSpace(viper.GetString("default_manifest")); manifest != "" {
		service.DefaultManifest = manifest
	}

	rules, err := loadAssignmentRules()
	if err != nil {
		return app.Service{}, nil, err
	}
	if len(rules) > 0 {
		policy, err := policies.NewAssignmentPolicy(rules)
		if err != nil {
			return app.Service{}, nil, err
		}
		service.Assignment = policy
	}

	closeService := func() {}
	if path := strings.TrimSpace(opts.DBPath); path != "" {
		tracker, err := adapters.NewSQLiteCheckinTracker(path, service.Clock)
		if err != nil {
			return app.Service{}, nil, err
		}
		service.Checkins = tracker
		closeService = func() { _ = tracker.Close() }
	}
	return service, closeService, nil
}

func loadAssignmentRules() ([]types.AssignmentRule, error) {
	var rules []types.AssignmentRule
	if !viper.IsSet("assignments") {
		return nil, nil
	}
	if err := viper.UnmarshalKey("assignments", &rules); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid assignments configuration").
			WithCause(err)
	}
	return rules, nil
}

// parseAttributes turns repeated key=value flags into client attributes.
// Repeating a key adds values.
func parseAttributes(pairs []string, tags []string) (types.Attributes, error) {
	attrs := types.Attributes{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("attribute must be key=value: " + pair)
		}
		attrs[key] = append(attrs[key], strings.TrimSpace(value))
	}
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			attrs[types.AttrTags] = append(attrs[types.AttrTags], tag)
		}
	}
	return attrs, nil
}
