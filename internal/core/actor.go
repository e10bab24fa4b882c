package core

import (
	"context"

	"github.com/valter-silva-au/mpt/pkg/models"
)

type actorKey struct{}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor *models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorResolver resolves the authenticated actor of a request.
type ActorResolver interface {
	ResolveActor(ctx context.Context) (*models.Actor, bool)
}

// ContextActorResolver reads the actor placed in the context by WithActor.
type ContextActorResolver struct{}

// ResolveActor returns the context's actor, or false when there is none.
func (ContextActorResolver) ResolveActor(ctx context.Context) (*models.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(*models.Actor)
	if !ok || a == nil {
		return nil, false
	}
	return a, true
}

// actorID returns a pointer to the actor's id, or nil for an unresolved actor.
func actorID(actor *models.Actor) *int64 {
	if actor == nil {
		return nil
	}
	id := actor.ID
	return &id
}
