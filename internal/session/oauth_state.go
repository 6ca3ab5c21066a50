package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/guildgate/internal/repository"
)

const (
	statePrefix = "oauth:state:"
	stateTTL    = 5 * time.Minute
	stateMarker = "1"
)

// StateGuard issues single-use OAuth state values for the identity-provider redirect.
type StateGuard struct {
	store repository.EphemeralStore
	ttl   time.Duration
}

// NewStateGuard constructs a guard with the default state lifetime.
func NewStateGuard(store repository.EphemeralStore) *StateGuard {
	return &StateGuard{store: store, ttl: stateTTL}
}

// Issue stores and returns a fresh random state value.
func (g *StateGuard) Issue(ctx context.Context) (string, error) {
	state, err := repository.NewOpaqueKey(32)
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	if err := g.store.Set(ctx, buildStateKey(state), stateMarker, g.ttl); err != nil {
		return "", fmt.Errorf("persist state: %w", err)
	}
	return state, nil
}

// Redeem reports whether state was outstanding, removing it in the same step.
func (g *StateGuard) Redeem(ctx context.Context, state string) (bool, error) {
	if strings.TrimSpace(state) == "" {
		return false, nil
	}
	_, ok, err := g.store.GetAndDelete(ctx, buildStateKey(state))
	if err != nil {
		return false, fmt.Errorf("redeem state: %w", err)
	}
	return ok, nil
}

func buildStateKey(state string) string {
	return statePrefix + strings.TrimSpace(state)
}
