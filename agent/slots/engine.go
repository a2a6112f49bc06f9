package slots

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNoDecls = errors.New("slot engine has no declared slots")

// Engine drives a multi-turn capability's slot filling: extract candidates
// for the still-missing slots, validate them, and either report completion
// or produce the follow-up prompt for the first missing slot. It never asks
// for more than one slot per turn.
type Engine struct {
	decls   []Decl
	extract ExtractFunc
	now     func() time.Time
}

// StepResult is what one engine turn produced. Complete means every declared
// slot holds a valid value; otherwise Prompt asks for the next missing one.
type StepResult struct {
	Complete bool
	Prompt   string
}

func NewEngine(decls []Decl, extract ExtractFunc, now func() time.Time) (*Engine, error) {
	if len(decls) == 0 {
		return nil, ErrNoDecls
	}
	if extract == nil {
		return nil, errors.New("slot engine requires an extract func")
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{decls: decls, extract: extract, now: now}, nil
}

// NewSet builds an empty fill-state for this engine's declarations.
func (e *Engine) NewSet() *Set {
	return NewSet(e.decls)
}

// Step processes one user turn against the given fill-state. Extraction
// failures propagate; validation failures never do: an invalid value leaves
// its slot unfilled with a recorded reason and the slot is re-asked.
func (e *Engine) Step(ctx context.Context, utterance string, set *Set) (StepResult, error) {
	if set == nil {
		return StepResult{}, errors.New("slot set is nil")
	}

	// An empty utterance carries no candidates; skip straight to the prompt.
	missing := set.Missing()
	if len(missing) > 0 && strings.TrimSpace(utterance) != "" {
		candidates, err := e.extract(ctx, utterance, missing)
		if err != nil {
			return StepResult{}, fmt.Errorf("extract slots: %w", err)
		}
		now := e.now()
		for _, d := range e.decls {
			raw, ok := candidates[d.Name]
			if !ok || set.Filled(d.Name) {
				continue
			}
			value := strings.TrimSpace(raw)
			if value == "" {
				continue
			}
			if d.Validate != nil {
				if verr := d.Validate(value, now); verr != nil {
					set.Unfill(d.Name, verr.Error())
					continue
				}
			}
			set.fill(d.Name, value)
		}
	}

	if set.Complete() {
		return StepResult{Complete: true}, nil
	}
	return StepResult{Prompt: e.promptFor(set)}, nil
}

// promptFor asks for the first missing slot in declared order, prefixed with
// the last validation-failure reason for that slot if there is one.
func (e *Engine) promptFor(set *Set) string {
	missing := set.Missing()
	if len(missing) == 0 {
		return ""
	}
	next := missing[0]
	prompt := next
	for _, d := range e.decls {
		if d.Name == next {
			prompt = d.Prompt
			break
		}
	}
	if reason := set.Reasons[next]; reason != "" {
		return fmt.Sprintf("Sorry, %s. %s", strings.TrimRight(reason, "."), prompt)
	}
	return prompt
}
