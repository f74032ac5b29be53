// Package identity is the trust boundary to the external auth collaborator.
// The service never authenticates; it takes the owner id it is handed and
// only asks this package which plan tier that owner is on.
package identity

import "context"

// Static resolves plan tiers from a fixed set of premium owner ids loaded
// from configuration. It stands in for a real profile lookup; swapping in an
// auth-provider backed implementation only has to satisfy the service's
// IsPremium interface.
type Static struct {
	premium map[string]struct{}
}

func NewStatic(premiumOwners []string) *Static {
	premium := make(map[string]struct{}, len(premiumOwners))
	for _, id := range premiumOwners {
		premium[id] = struct{}{}
	}
	return &Static{premium: premium}
}

func (s *Static) IsPremium(_ context.Context, ownerID string) (bool, error) {
	_, ok := s.premium[ownerID]
	return ok, nil
}
