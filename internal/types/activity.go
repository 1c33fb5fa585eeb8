package types

// DefaultActiveDays is how long a client may stay silent before it is
// treated as inactive.
const DefaultActiveDays = 30

type ActivityPolicy struct {
	ActiveDays     int
	ProtectClients []string
}

type ActivityPlan struct {
	Active   []ClientSummary
	Inactive []ClientSummary
}
