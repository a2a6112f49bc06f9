package slots

import (
	"context"
	"time"
)

// ValidateFunc checks one extracted slot value. now is the turn clock so
// date validators can reject the past deterministically in tests.
type ValidateFunc func(value string, now time.Time) error

// Decl declares one required slot of a multi-turn capability. Declaration
// order is the order the engine asks for missing slots.
type Decl struct {
	Name     string
	Prompt   string
	Validate ValidateFunc
}

// ExtractFunc supplies candidate values for the still-missing slots of the
// latest utterance. The engine validates; the extractor only proposes.
type ExtractFunc func(ctx context.Context, utterance string, missing []string) (map[string]string, error)

// Set is the fill-state of a capability's declared slots. It persists across
// turns inside the session's pending capability, so it carries no functions,
// only names, values, and the last validation-failure reason per slot.
type Set struct {
	Order   []string          `json:"order"`
	Values  map[string]string `json:"values,omitempty"`
	Reasons map[string]string `json:"reasons,omitempty"`
}

func NewSet(decls []Decl) *Set {
	order := make([]string, 0, len(decls))
	for _, d := range decls {
		order = append(order, d.Name)
	}
	return &Set{
		Order:  order,
		Values: make(map[string]string, len(decls)),
	}
}

func (s *Set) Filled(name string) bool {
	if s == nil || s.Values == nil {
		return false
	}
	_, ok := s.Values[name]
	return ok
}

func (s *Set) Value(name string) (string, bool) {
	if s == nil || s.Values == nil {
		return "", false
	}
	v, ok := s.Values[name]
	return v, ok
}

func (s *Set) fill(name, value string) {
	if s.Values == nil {
		s.Values = make(map[string]string, len(s.Order))
	}
	s.Values[name] = value
	delete(s.Reasons, name)
}

// Unfill drops a slot's value and records why, so the next prompt for it can
// explain the rejection.
func (s *Set) Unfill(name, reason string) {
	if s == nil {
		return
	}
	delete(s.Values, name)
	if reason != "" {
		if s.Reasons == nil {
			s.Reasons = make(map[string]string, 2)
		}
		s.Reasons[name] = reason
	}
}

// Clone returns an independent copy of the fill-state.
func (s *Set) Clone() *Set {
	if s == nil {
		return nil
	}
	out := &Set{Order: append([]string(nil), s.Order...)}
	if s.Values != nil {
		out.Values = make(map[string]string, len(s.Values))
		for k, v := range s.Values {
			out.Values[k] = v
		}
	}
	if s.Reasons != nil {
		out.Reasons = make(map[string]string, len(s.Reasons))
		for k, v := range s.Reasons {
			out.Reasons[k] = v
		}
	}
	return out
}

// Missing returns unfilled slot names in declared order.
func (s *Set) Missing() []string {
	if s == nil {
		return nil
	}
	var missing []string
	for _, name := range s.Order {
		if !s.Filled(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Complete reports whether every declared slot holds a value.
func (s *Set) Complete() bool {
	return s != nil && len(s.Missing()) == 0
}
