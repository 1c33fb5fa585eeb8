package core

import (
	"slices"
	"sort"
	"strings"

	"fleet-manifests/internal/types"
)

// ModificationEffect is one package addition or removal a modification
// applies to a client.
type ModificationEffect struct {
	Name   string
	Remove bool
	Source types.Modification
}

// modificationAttribute maps a modification type onto the client
// attribute it is keyed on.
var modificationAttribute = map[types.ModificationType]string{
	types.ModificationSite:      types.AttrSite,
	types.ModificationOSVersion: types.AttrOSVersion,
	types.ModificationOwner:     types.AttrOwner,
	types.ModificationUUID:      types.AttrUUID,
	types.ModificationTag:       types.AttrTags,
}

// MatchModifications returns the effects of every enabled modification
// that targets the client, in application order: by type (site,
// os_version, owner, uuid, tag), then target, then value.
func MatchModifications(mods []types.Modification, attrs types.Attributes, root string) []ModificationEffect {
	var matched []types.Modification
	for _, mod := range mods {
		if !mod.Enabled || strings.TrimSpace(mod.Value) == "" {
			continue
		}
		if len(mod.Manifests) > 0 && !slices.Contains(mod.Manifests, root) {
			continue
		}
		key, ok := modificationAttribute[mod.Type]
		if !ok {
			continue
		}
		if !slices.Contains(attrs[key], mod.Target) {
			continue
		}
		matched = append(matched, mod)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		oi, oj := modificationRank(matched[i].Type), modificationRank(matched[j].Type)
		if oi != oj {
			return oi < oj
		}
		if matched[i].Target != matched[j].Target {
			return matched[i].Target < matched[j].Target
		}
		return matched[i].Value < matched[j].Value
	})

	effects := make([]ModificationEffect, 0, len(matched))
	for _, mod := range matched {
		value := strings.TrimSpace(mod.Value)
		effect := ModificationEffect{Name: value, Source: mod}
		if name, ok := strings.CutPrefix(value, "-"); ok {
			effect.Name = strings.TrimSpace(name)
			effect.Remove = true
		}
		if effect.Name == "" {
			continue
		}
		effects = append(effects, effect)
	}
	return effects
}

func modificationRank(kind types.ModificationType) int {
	if idx := slices.Index(types.ModificationOrder, kind); idx >= 0 {
		return idx
	}
	return len(types.ModificationOrder)
}

// ValidateModification checks a modification before it is stored.
func ValidateModification(mod types.Modification) error {
	if _, ok := modificationAttribute[mod.Type]; !ok {
		return types.NewError(types.KindValidation, "unknown modification type "+string(mod.Type), string(mod.Type))
	}
	if strings.TrimSpace(mod.Target) == "" {
		return types.NewError(types.KindValidation, "modification target is required", string(mod.Type))
	}
	value := strings.TrimPrefix(strings.TrimSpace(mod.Value), "-")
	if strings.TrimSpace(value) == "" {
		return types.NewError(types.KindValidation, "modification value is required", mod.Target)
	}
	if _, err := ParseReference(value, "modification"); err != nil {
		return types.WrapError(types.KindValidation, "invalid modification value "+mod.Value, err, mod.Value)
	}
	return nil
}
