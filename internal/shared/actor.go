package shared

import "context"

// ActorType distinguishes who performed an action on an order or quote.
type ActorType string

const (
	ActorCustomer ActorType = "customer"
	ActorAdmin    ActorType = "admin"
	ActorVendor   ActorType = "vendor"
	ActorSystem   ActorType = "system"
)

// Actor identifies the party behind a request.
type Actor struct {
	ID   string
	Type ActorType
	Name string
}

// SystemActor is used by background jobs and sweeps.
var SystemActor = Actor{ID: "system", Type: ActorSystem, Name: "system"}

type actorContextKey struct{}

// ContextWithActor stores the acting party in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting party from context. Falls back to
// SystemActor when the request carried no identity.
func ActorFromContext(ctx context.Context) Actor {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok {
		return SystemActor
	}
	return actor
}
