package types

import (
	"encoding/json"
	"sort"
	"strings"
)

// Attribute keys a condition may reference.
const (
	AttrOSVersion     = "os_version"
	AttrMachineModel  = "machine_model"
	AttrSerial        = "serial"
	AttrTags          = "tags"
	AttrSite          = "site"
	AttrOffice        = "office"
	AttrOwner         = "owner"
	AttrHostname      = "hostname"
	AttrTrack         = "track"
	AttrClientVersion = "client_version"
	AttrUUID          = "uuid"
)

// AttributeVocabulary is the fixed set of attribute keys clients may
// declare. Unknown keys are dropped when attributes are normalized.
var AttributeVocabulary = map[string]struct{}{
	AttrOSVersion:     {},
	AttrMachineModel:  {},
	AttrSerial:        {},
	AttrTags:          {},
	AttrSite:          {},
	AttrOffice:        {},
	AttrOwner:         {},
	AttrHostname:      {},
	AttrTrack:         {},
	AttrClientVersion: {},
	AttrUUID:          {},
}

// Attributes is a client's declared attribute vector. Single-valued
// attributes hold one element; tags hold any number.
type Attributes map[string][]string

// Get returns the first value of key.
func (a Attributes) Get(key string) (string, bool) {
	values, ok := a[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Has reports whether key is declared with at least one value.
func (a Attributes) Has(key string) bool {
	return len(a[key]) > 0
}

// Normalized returns a copy restricted to the vocabulary with trimmed,
// non-empty values; tags are deduplicated and sorted.
func (a Attributes) Normalized() Attributes {
	out := Attributes{}
	for key, values := range a {
		key = strings.ToLower(strings.TrimSpace(key))
		if _, ok := AttributeVocabulary[key]; !ok {
			continue
		}
		var kept []string
		for _, value := range values {
			value = strings.TrimSpace(value)
			if value != "" {
				kept = append(kept, value)
			}
		}
		if len(kept) == 0 {
			continue
		}
		if key == AttrTags {
			kept = uniqueSorted(kept)
		} else {
			kept = kept[:1]
		}
		out[key] = kept
	}
	return out
}

// UnmarshalJSON accepts either a string or a list of strings per key.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := Attributes{}
	for key, value := range raw {
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			out[key] = []string{single}
			continue
		}
		var many []string
		if err := json.Unmarshal(value, &many); err != nil {
			return err
		}
		out[key] = many
	}
	*a = out
	return nil
}

func uniqueSorted(values []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

// Identity is what the auth collaborator vouches for.
type Identity struct {
	ClientID string
}

// ClientContext is the per-request bundle handed to the resolver. It is
// built fresh for every request and never shared.
type ClientContext struct {
	ClientID     string
	Attributes   Attributes
	RootManifest string
}
