package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/alfredlabs/alfred/agent/contract"
	llmx "github.com/alfredlabs/alfred/agent/llm"
)

// Inquiry answers general conversation with free text from the responder
// model, seeded with the rendered turn history.
type Inquiry struct {
	runner compose.Runnable[map[string]any, *schema.Message]
}

var _ contractx.Capability = (*Inquiry)(nil)

func NewInquiry(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*Inquiry, error) {
	runner, err := llmx.CompileMessageGraph(ctx, chatModel, systemPrompt, "inquiry.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile inquiry graph: %v", contractx.ErrModelInvoke, err)
	}
	return &Inquiry{runner: runner}, nil
}

func (i *Inquiry) Handle(ctx context.Context, req contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
	payload := map[string]any{
		"utterance": req.Utterance,
		"history":   req.History,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return contractx.CapabilityResult{}, fmt.Errorf("%w: marshal inquiry payload: %v", contractx.ErrValidation, err)
	}

	msg, err := i.runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return contractx.CapabilityResult{}, fmt.Errorf("%w: inquiry invoke: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		// The controller's anti-stall guarantee supplies the reply.
		return contractx.Done(""), nil
	}
	return contractx.Done(msg.Content), nil
}
