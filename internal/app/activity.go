package app

import (
	"strings"
	"time"

	"fleet-manifests/internal/types"
)

// BuildActivityPlan splits clients into active and inactive by their last
// check-in. Protected clients are always active.
func BuildActivityPlan(clients []types.ClientSummary, policy types.ActivityPolicy, now time.Time) types.ActivityPlan {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	normalized := normalizeActivityPolicy(policy)
	protected := normalizeSet(normalized.ProtectClients)
	cutoff := now.AddDate(0, 0, -normalized.ActiveDays)

	var plan types.ActivityPlan
	for _, client := range clients {
		_, isProtected := protected[strings.ToLower(client.ClientID)]
		if isProtected || !client.LastCheckin.Before(cutoff) {
			plan.Active = append(plan.Active, client)
		} else {
			plan.Inactive = append(plan.Inactive, client)
		}
	}
	return plan
}

func normalizeActivityPolicy(policy types.ActivityPolicy) types.ActivityPolicy {
	normalized := policy
	if normalized.ActiveDays <= 0 {
		normalized.ActiveDays = types.DefaultActiveDays
	}
	return normalized
}

func normalizeSet(values []string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, value := range values {
		key := strings.ToLower(strings.TrimSpace(value))
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	return set
}
