package actorcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ProfileType identifies which kind of marketplace profile is acting.
type ProfileType string

const (
	ProfileBrand      ProfileType = "brand"
	ProfileCreator    ProfileType = "creator"
	ProfileArbitrator ProfileType = "arbitrator"
	ProfileSystem     ProfileType = "system"
)

func (p ProfileType) Valid() bool {
	switch p {
	case ProfileBrand, ProfileCreator, ProfileArbitrator, ProfileSystem:
		return true
	default:
		return false
	}
}

// ParseProfileType normalizes a header or query value into a ProfileType.
func ParseProfileType(value string) (ProfileType, bool) {
	profile := ProfileType(strings.ToLower(strings.TrimSpace(value)))
	return profile, profile.Valid()
}

// Actor is the profile on whose behalf a request runs.
type Actor struct {
	Type ProfileType
	ID   snowflake.ID
}

func (a Actor) IsZero() bool {
	return a.Type == "" && a.ID == 0
}

// System returns the actor used by scheduled jobs.
func System() Actor {
	return Actor{Type: ProfileSystem}
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || actor.IsZero() {
		return Actor{}, false
	}
	return actor, true
}
