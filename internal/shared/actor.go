package shared

import "context"

// Actor identifies the authenticated caller as resolved by the upstream
// session layer. Role is the legacy single-role string kept for users not
// yet migrated onto explicit role assignments.
type Actor struct {
	UserID     string
	Role       string
	PracticeID *int64
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context, nil when absent.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}
