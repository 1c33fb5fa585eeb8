package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// Validate loads a seed directory into empty stores. Every catalog
// consistency, cycle and scope check that a live server would apply runs,
// but the service's own stores are left untouched.
func (s Service) Validate(ctx context.Context, req ValidateRequest) (ValidateResult, error) {
	seedDir := strings.TrimSpace(req.SeedDir)
	if seedDir == "" {
		return ValidateResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("seed directory is required")
	}
	return s.fresh().Seed(ctx, SeedRequest{Dir: seedDir})
}
