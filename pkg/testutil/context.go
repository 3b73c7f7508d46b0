package testutil

import (
	"net/http"

	"github.com/google/uuid"

	id "clearance/pkg/domain"
	"clearance/pkg/requestcontext"
)

// NewActor builds an authenticated actor in org with the given role.
func NewActor(org id.OrganisationID, role id.Role) id.Actor {
	userID := uuid.New()
	return id.Actor{
		UserID:         id.UserID(userID),
		OrganisationID: org,
		Role:           role,
		Name:           string(role) + " " + userID.String()[:8],
		Email:          string(role) + "@example.com",
	}
}

// WithActor adds an actor to the request context, as the auth middleware
// would for a valid bearer token.
func WithActor(req *http.Request, actor id.Actor) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}
