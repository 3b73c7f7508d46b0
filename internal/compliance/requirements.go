package compliance

import (
	"context"
	"fmt"
	"time"

	"clearance/internal/certification"
	"clearance/internal/platform/config"
	id "clearance/pkg/domain"
	strutil "clearance/pkg/platform/strings"
)

// RequirementResolver builds the set of certification types an evaluation
// checks.
type RequirementResolver struct {
	store   certification.RequirementStore
	catalog *config.Catalog
}

// NewRequirementResolver creates a resolver. A nil catalog uses the embedded
// default.
func NewRequirementResolver(store certification.RequirementStore, catalog *config.Catalog) *RequirementResolver {
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}
	return &RequirementResolver{store: store, catalog: catalog}
}

// Resolve returns the organisation's required types (or the catalog default
// when it has none) joined with driving, context and additional requirements.
func (r *RequirementResolver) Resolve(ctx context.Context, orgID id.OrganisationID, evalCtx EvaluationContext) ([]string, error) {
	base, err := r.store.ListRequirements(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list organisation requirements: %w", err)
	}
	if len(strutil.DedupeAndTrimLower(base)) == 0 {
		base = r.catalog.DefaultRequired
	}

	var driving []string
	if evalCtx.RequiresDriving {
		driving = r.catalog.DrivingRequired
	}
	return strutil.UnionLower(
		base,
		driving,
		r.catalog.ContextRequired[string(evalCtx.Type)],
		evalCtx.AdditionalRequirements,
	), nil
}

// Window is how far ahead an expiry counts as expiring soon.
func (r *RequirementResolver) Window() time.Duration {
	return r.catalog.ExpiringWindow()
}
