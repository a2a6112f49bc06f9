// Package capability holds the assistant's units of behavior and the
// registry that routes intents to them.
package capability

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/alfredlabs/alfred/agent/contract"
)

// Registry maps intents to capabilities. Registration happens once at
// startup; the set is static. Intents without a registered handler route to
// the general-inquiry fallback; a closed intent enum should make that
// unreachable, but the registry does not trust its callers.
type Registry struct {
	handlers map[contractx.Intent]contractx.Capability
	fallback contractx.Capability
}

func NewRegistry(fallback contractx.Capability) (*Registry, error) {
	if fallback == nil {
		return nil, errors.New("registry requires a fallback capability")
	}
	r := &Registry{
		handlers: make(map[contractx.Intent]contractx.Capability, 4),
		fallback: fallback,
	}
	r.handlers[contractx.IntentGeneralInquiry] = fallback
	return r, nil
}

func (r *Registry) Register(intent contractx.Intent, c contractx.Capability) error {
	if c == nil {
		return fmt.Errorf("nil capability for intent %s", intent)
	}
	if _, exists := r.handlers[intent]; exists && intent != contractx.IntentGeneralInquiry {
		return fmt.Errorf("capability already registered for intent %s", intent)
	}
	r.handlers[intent] = c
	return nil
}

// Dispatch routes one turn to the capability registered for intent.
func (r *Registry) Dispatch(ctx context.Context, intent contractx.Intent, req contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
	handler, ok := r.handlers[intent]
	if !ok {
		handler = r.fallback
	}
	return handler.Handle(ctx, req)
}

// Handler returns the capability registered for intent, or nil.
func (r *Registry) Handler(intent contractx.Intent) contractx.Capability {
	return r.handlers[intent]
}
