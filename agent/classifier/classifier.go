// Package classifier maps user utterances onto the closed intent set. Its
// fallback policy is load-bearing: model output that cannot be mapped never
// fails the turn, it degrades to GENERAL_INQUIRY.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/alfredlabs/alfred/agent/contract"
	llmx "github.com/alfredlabs/alfred/agent/llm"
)

type Classifier struct {
	runner compose.Runnable[map[string]any, *schema.Message]
}

var _ contractx.Classifier = (*Classifier)(nil)

func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*Classifier, error) {
	runner, err := llmx.CompileMessageGraph(ctx, chatModel, systemPrompt, "classifier.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile classifier graph: %v", contractx.ErrModelInvoke, err)
	}
	return &Classifier{runner: runner}, nil
}

// Classify assembles the prompt from the utterance and rendered history,
// invokes the model, and strictly maps the raw output onto the intent set.
// A model failure returns an error; unmappable output does not.
func (c *Classifier) Classify(ctx context.Context, utterance string, history string) (contractx.Intent, error) {
	payload := map[string]any{
		"utterance": utterance,
		"history":   history,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal classifier payload: %v", contractx.ErrValidation, err)
	}

	msg, err := c.runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return "", fmt.Errorf("%w: classifier invoke: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: classifier returned no message", contractx.ErrModelInvoke)
	}

	return MapIntent(msg.Content), nil
}

// MapIntent maps raw model output onto the closed intent set. Exact labels
// win; otherwise a few keyword heuristics catch near-misses; everything else
// is GENERAL_INQUIRY. Never an error, never user-visible.
func MapIntent(raw string) contractx.Intent {
	if intent, err := contractx.ParseIntent(raw); err == nil {
		return intent
	}

	upper := strings.ToUpper(raw)
	switch {
	case strings.Contains(upper, string(contractx.IntentRecommendRestaurant)),
		strings.Contains(upper, "SEARCH"), strings.Contains(upper, "RECOMMEND"):
		return contractx.IntentRecommendRestaurant
	case strings.Contains(upper, string(contractx.IntentMakeReservation)),
		strings.Contains(upper, "RESERV"), strings.Contains(upper, "BOOK"):
		return contractx.IntentMakeReservation
	case strings.Contains(upper, string(contractx.IntentThankYou)),
		strings.Contains(upper, "THANK"):
		return contractx.IntentThankYou
	case strings.Contains(upper, string(contractx.IntentExit)),
		strings.Contains(upper, "GOODBYE"), strings.Contains(upper, "QUIT"):
		return contractx.IntentExit
	case strings.Contains(upper, string(contractx.IntentGeneralInquiry)):
		return contractx.IntentGeneralInquiry
	default:
		log.Debug().Str("raw", raw).Msg("unmappable classifier output, defaulting to general inquiry")
		return contractx.IntentGeneralInquiry
	}
}
