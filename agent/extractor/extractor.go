// Package extractor pulls slot values out of utterances via a structured
// model graph, constrained to the slots still missing.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/alfredlabs/alfred/agent/contract"
	llmx "github.com/alfredlabs/alfred/agent/llm"
)

type llmOutput struct {
	Slots map[string]string `json:"slots"`
}

type Extractor struct {
	runner compose.Runnable[map[string]any, llmOutput]
	now    func() time.Time
}

var _ contractx.Extractor = (*Extractor)(nil)

type Option func(*Extractor)

// WithClock pins the extractor's notion of "today" for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, opts ...Option) (*Extractor, error) {
	runner, err := llmx.CompileStructuredGraph[llmOutput](ctx, chatModel, systemPrompt, "extractor.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile extractor graph: %v", contractx.ErrModelInvoke, err)
	}
	e := &Extractor{runner: runner, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Extract returns candidate values keyed by slot name. The prompt carries
// today's date so relative dates resolve; keys outside missing are dropped.
func (e *Extractor) Extract(ctx context.Context, utterance string, missing []string) (map[string]string, error) {
	if len(missing) == 0 {
		return nil, nil
	}

	now := e.now()
	payload := map[string]any{
		"utterance": utterance,
		"missing":   missing,
		"today":     now.Format("2006-01-02"),
		"weekday":   now.Weekday().String(),
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal extractor payload: %v", contractx.ErrValidation, err)
	}

	out, err := e.runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: extractor invoke: %v", contractx.ErrModelInvoke, err)
	}

	wanted := make(map[string]struct{}, len(missing))
	for _, name := range missing {
		wanted[name] = struct{}{}
	}

	candidates := make(map[string]string, len(out.Slots))
	for name, value := range out.Slots {
		if _, ok := wanted[name]; ok {
			candidates[name] = value
		}
	}
	return candidates, nil
}
