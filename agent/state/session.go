package state

import (
	"errors"
	"fmt"
	"time"

	slotsx "github.com/alfredlabs/alfred/agent/slots"
)

// Phase is the controller's conversation state. SLOT_FILLING is the only
// phase with a payload: the pending capability and its fill-state.
type Phase string

const (
	PhaseIntentDetection    Phase = "INTENT_DETECTION"
	PhaseSlotFilling        Phase = "SLOT_FILLING"
	PhaseThankYou           Phase = "THANK_YOU"
	PhaseNormalConversation Phase = "NORMAL_CONVERSATION"
	PhaseTerminated         Phase = "TERMINATED"
)

// PendingCapability is an in-flight multi-turn capability: which one, and
// how far its slots have been filled.
type PendingCapability struct {
	Capability string      `json:"capability"`
	Slots      *slotsx.Set `json:"slots"`
}

// Clone returns an independent copy, so a caller can snapshot the payload
// before handing the session to code that may mutate it and roll back on
// failure.
func (p *PendingCapability) Clone() *PendingCapability {
	if p == nil {
		return nil
	}
	return &PendingCapability{Capability: p.Capability, Slots: p.Slots.Clone()}
}

var (
	ErrNilSession     = errors.New("session is nil")
	ErrInvalidSession = errors.New("session id is empty")
)

// Session is the per-conversation unit of state and isolation. It is owned
// exclusively by the controller; turns for one session never run concurrently.
type Session struct {
	ID        string             `json:"id"`
	Phase     Phase              `json:"phase"`
	Context   *TurnContext       `json:"context"`
	Pending   *PendingCapability `json:"pending,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func NewSession(id string, contextCapacity int, now time.Time) *Session {
	return &Session{
		ID:        id,
		Phase:     PhaseIntentDetection,
		Context:   NewTurnContext(contextCapacity),
		UpdatedAt: now.UTC(),
	}
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

func (s *Session) Terminated() bool {
	return s != nil && s.Phase == PhaseTerminated
}

// BeginSlotFilling attaches a pending capability. The controller derives the
// SLOT_FILLING phase from Pending after dispatch; this only sets the payload.
func (s *Session) BeginSlotFilling(capability string, set *slotsx.Set) {
	s.Pending = &PendingCapability{Capability: capability, Slots: set}
}

func (s *Session) ClearPending() {
	s.Pending = nil
}

// Validate enforces the phase/payload invariant: a pending capability exists
// exactly when the phase is SLOT_FILLING.
func (s *Session) Validate() error {
	if s == nil {
		return ErrNilSession
	}
	if s.ID == "" {
		return ErrInvalidSession
	}
	switch s.Phase {
	case PhaseIntentDetection, PhaseSlotFilling, PhaseThankYou, PhaseNormalConversation, PhaseTerminated:
	default:
		return fmt.Errorf("invalid phase %q", s.Phase)
	}
	if s.Phase == PhaseSlotFilling && s.Pending == nil {
		return errors.New("slot filling phase requires a pending capability")
	}
	if s.Phase != PhaseSlotFilling && s.Pending != nil {
		return fmt.Errorf("phase %s must not carry a pending capability", s.Phase)
	}
	if s.Pending != nil && s.Pending.Slots == nil {
		return errors.New("pending capability has no slot set")
	}
	if s.Context == nil {
		return errors.New("session has no turn context")
	}
	return nil
}
