package shared

import "context"

type contextKey string

const actorKey contextKey = "actor"

// Actor identifies the authenticated caller of an operation.
type Actor struct {
	ID   string
	Name string
}

// ContextWithActor stores the actor identity in the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the actor identity, or the zero Actor when absent.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorKey).(Actor)
	return actor
}
