package ports

import "fleet-manifests/internal/types"

type AssignmentPort interface {
	// Assign returns the root manifest for the first matching rule.
	Assign(attrs types.Attributes) (string, bool)
}
