package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	backendx "github.com/alfredlabs/alfred/agent/backend"
	contractx "github.com/alfredlabs/alfred/agent/contract"
	llmx "github.com/alfredlabs/alfred/agent/llm"
)

const (
	searchResultLimit   = 5
	searchFallbackLimit = 3
)

// Search is the single-turn restaurant recommendation capability: extract
// filters from the utterance, query the index, render suggestions. When
// nothing matches it falls back to the top-rated restaurants rather than
// answering empty-handed.
type Search struct {
	filters compose.Runnable[map[string]any, backendx.SearchFilter]
	index   backendx.RestaurantIndex
}

var _ contractx.Capability = (*Search)(nil)

func NewSearch(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, index backendx.RestaurantIndex) (*Search, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: search requires a restaurant index", contractx.ErrValidation)
	}
	runner, err := llmx.CompileStructuredGraph[backendx.SearchFilter](ctx, chatModel, systemPrompt, "search.filter_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile search filter graph: %v", contractx.ErrModelInvoke, err)
	}
	return &Search{filters: runner, index: index}, nil
}

func (s *Search) Handle(ctx context.Context, req contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
	if req.Session == nil {
		return contractx.CapabilityResult{}, fmt.Errorf("%w: search requires a session", contractx.ErrValidation)
	}

	filter, err := s.extractFilter(ctx, req)
	if err != nil {
		return contractx.CapabilityResult{}, err
	}

	restaurants, err := s.index.Search(ctx, filter, searchResultLimit)
	if err != nil {
		return contractx.CapabilityResult{}, fmt.Errorf("search index: %w", err)
	}

	fellBack := false
	if len(restaurants) == 0 {
		restaurants, err = s.index.TopRated(ctx, searchFallbackLimit)
		if err != nil {
			return contractx.CapabilityResult{}, fmt.Errorf("top rated fallback: %w", err)
		}
		fellBack = true
	}
	if len(restaurants) == 0 {
		return contractx.Done("I couldn't find any restaurants right now. Would you like to try again later?"), nil
	}

	log.Debug().
		Str("session_id", req.Session.ID).
		Int("results", len(restaurants)).
		Bool("fallback", fellBack).
		Msg("restaurant search served")

	return contractx.Done(renderSuggestions(restaurants, fellBack)), nil
}

func (s *Search) extractFilter(ctx context.Context, req contractx.CapabilityRequest) (backendx.SearchFilter, error) {
	payload := map[string]any{
		"utterance": req.Utterance,
		"history":   req.History,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return backendx.SearchFilter{}, fmt.Errorf("%w: marshal search payload: %v", contractx.ErrValidation, err)
	}

	filter, err := s.filters.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return backendx.SearchFilter{}, fmt.Errorf("%w: search filter invoke: %v", contractx.ErrModelInvoke, err)
	}
	return filter, nil
}

func renderSuggestions(restaurants []backendx.Restaurant, fellBack bool) string {
	var b strings.Builder
	if fellBack {
		b.WriteString("I couldn't find an exact match, but here are some of our best-rated spots:\n")
	} else {
		b.WriteString("Here's what I found for you:\n")
	}
	for _, r := range restaurants {
		fmt.Fprintf(&b, "- %s (%s, %s), rated %.1f, %s\n",
			r.Name, r.Cuisine, r.Location, r.Rating, r.PriceRange)
	}
	b.WriteString("Would you like to book a table at one of these?")
	return b.String()
}
