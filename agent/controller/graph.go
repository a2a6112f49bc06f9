package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/alfredlabs/alfred/agent/contract"
	statex "github.com/alfredlabs/alfred/agent/state"
)

type turnInput struct {
	SessionID string
	Utterance string
}

type turnOutput struct {
	Reply string
}

type turnState struct {
	SessionID string
	Utterance string
	Now       time.Time

	Session *statex.Session
	History string

	// Snapshot of the loaded state, taken before any dispatch can mutate
	// the session; the apology path rolls back to it.
	LoadedPhase   statex.Phase
	LoadedPending *statex.PendingCapability

	Intent        contractx.Intent
	ClassifyError error

	Result     contractx.CapabilityResult
	NextPhase  statex.Phase
	Dispatched bool

	Reply string
}

func (c *Controller) compileTurnGraph(ctx context.Context) (compose.Runnable[turnInput, turnOutput], error) {
	graph := compose.NewGraph[turnInput, turnOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in turnInput) (*turnState, error) {
			return c.validateRequest(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_session",
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (*turnState, error) {
			return c.loadSession(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_session: %w", err)
	}

	if err := graph.AddLambdaNode("classify",
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (*turnState, error) {
			return c.classify(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node classify: %w", err)
	}

	if err := graph.AddLambdaNode("handle_exit",
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (*turnState, error) {
			return c.handleExit(st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node handle_exit: %w", err)
	}

	if err := graph.AddLambdaNode("handle_pending",
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (*turnState, error) {
			return c.handlePending(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node handle_pending: %w", err)
	}

	if err := graph.AddLambdaNode("handle_intent",
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (*turnState, error) {
			return c.handleIntent(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node handle_intent: %w", err)
	}

	if err := graph.AddLambdaNode("handle_failure",
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (*turnState, error) {
			return c.handleFailure(st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node handle_failure: %w", err)
	}

	if err := graph.AddLambdaNode("apply_result",
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (*turnState, error) {
			return c.applyResult(st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node apply_result: %w", err)
	}

	if err := graph.AddLambdaNode("persist",
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (*turnState, error) {
			return c.persist(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node persist: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (turnOutput, error) {
			if st == nil {
				return turnOutput{}, fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
			}
			return turnOutput{Reply: st.Reply}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, st *turnState) (string, error) {
			switch {
			case st == nil:
				return "", fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
			case st.ClassifyError != nil:
				return "handle_failure", nil
			case st.Intent == contractx.IntentExit:
				return "handle_exit", nil
			case st.Session.Pending != nil:
				return "handle_pending", nil
			default:
				return "handle_intent", nil
			}
		},
		map[string]bool{
			"handle_failure": true,
			"handle_exit":    true,
			"handle_pending": true,
			"handle_intent":  true,
		},
	)

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_session"},
		{"load_session", "classify"},
		{"handle_failure", "apply_result"},
		{"handle_exit", "apply_result"},
		{"handle_pending", "apply_result"},
		{"handle_intent", "apply_result"},
		{"apply_result", "persist"},
		{"persist", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	if err := graph.AddBranch("classify", branch); err != nil {
		return nil, fmt.Errorf("add turn branch: %w", err)
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("controller.process_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}

func (c *Controller) validateRequest(in turnInput) (*turnState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	utterance := strings.TrimSpace(in.Utterance)
	if utterance == "" {
		return nil, ErrInvalidMessage
	}
	return &turnState{
		SessionID: sessionID,
		Utterance: utterance,
		Now:       c.now(),
	}, nil
}

func (c *Controller) loadSession(ctx context.Context, st *turnState) (*turnState, error) {
	session, err := c.store.Load(ctx, st.SessionID)
	if errors.Is(err, statex.ErrStateNotFound) {
		return nil, fmt.Errorf("%w: id=%s", contractx.ErrSessionNotFound, st.SessionID)
	}
	if err != nil {
		return nil, err
	}
	if session.Terminated() {
		return nil, fmt.Errorf("%w: id=%s", contractx.ErrSessionTerminated, st.SessionID)
	}

	// THANK_YOU and NORMAL_CONVERSATION are one-turn detours; this cycle
	// starts back at intent detection.
	if session.Phase == statex.PhaseThankYou || session.Phase == statex.PhaseNormalConversation {
		session.Phase = statex.PhaseIntentDetection
	}

	st.Session = session
	st.History = session.Context.Render()
	st.LoadedPhase = session.Phase
	st.LoadedPending = session.Pending.Clone()
	return st, nil
}

func (c *Controller) classify(ctx context.Context, st *turnState) (*turnState, error) {
	cctx, cancel := context.WithTimeout(ctx, c.cfg.ModelTimeout)
	defer cancel()

	intent, err := c.classifier.Classify(cctx, st.Utterance, st.History)
	if err != nil {
		log.Warn().Err(err).Str("session_id", st.SessionID).Msg("classification failed, degrading to apology")
		st.ClassifyError = err
		return st, nil
	}
	st.Intent = intent
	return st, nil
}

// handleFailure absorbs model failures into the configured apology. A failed
// dispatch may already have mutated the pending payload, so both phase and
// pending roll back to the loaded snapshot.
func (c *Controller) handleFailure(st *turnState) (*turnState, error) {
	st.Session.Pending = st.LoadedPending.Clone()
	st.Result = contractx.Done(c.cfg.ApologyReply)
	st.NextPhase = st.LoadedPhase
	return st, nil
}

func (c *Controller) handleExit(st *turnState) (*turnState, error) {
	st.Session.ClearPending()
	st.Result = contractx.Done(c.cfg.GoodbyeReply)
	st.NextPhase = statex.PhaseTerminated
	return st, nil
}

// handlePending runs while a multi-turn capability is in flight. Courtesy
// and general utterances flow into the slot engine (they are usually slot
// answers); a different actionable intent applies the interrupt policy.
func (c *Controller) handlePending(ctx context.Context, st *turnState) (*turnState, error) {
	if st.Intent == contractx.IntentRecommendRestaurant {
		if c.cfg.AbandonOnInterrupt {
			log.Debug().Str("session_id", st.SessionID).Msg("abandoning pending capability on interrupt")
			st.Session.ClearPending()
			return c.handleIntent(ctx, st)
		}
		// Answer the interruption, keep the reservation pending for the
		// next turn.
		if err := c.dispatch(ctx, st, contractx.IntentRecommendRestaurant); err != nil {
			return c.handleFailure(st)
		}
		st.NextPhase = statex.PhaseSlotFilling
		return st, nil
	}

	pendingIntent := contractx.IntentMakeReservation
	if err := c.dispatch(ctx, st, pendingIntent); err != nil {
		return c.handleFailure(st)
	}
	if st.Session.Pending != nil {
		st.NextPhase = statex.PhaseSlotFilling
	} else {
		st.NextPhase = statex.PhaseIntentDetection
	}
	return st, nil
}

func (c *Controller) handleIntent(ctx context.Context, st *turnState) (*turnState, error) {
	switch st.Intent {
	case contractx.IntentThankYou:
		st.Result = contractx.Done(c.cfg.CourtesyReply)
		st.NextPhase = statex.PhaseThankYou
		return st, nil

	case contractx.IntentMakeReservation:
		if err := c.dispatch(ctx, st, contractx.IntentMakeReservation); err != nil {
			return c.handleFailure(st)
		}
		if st.Session.Pending != nil {
			st.NextPhase = statex.PhaseSlotFilling
		} else {
			st.NextPhase = statex.PhaseIntentDetection
		}
		return st, nil

	case contractx.IntentRecommendRestaurant:
		if err := c.dispatch(ctx, st, contractx.IntentRecommendRestaurant); err != nil {
			return c.handleFailure(st)
		}
		st.NextPhase = statex.PhaseIntentDetection
		return st, nil

	default:
		// GENERAL_INQUIRY, plus anything defensive routing catches.
		if err := c.dispatch(ctx, st, contractx.IntentGeneralInquiry); err != nil {
			return c.handleFailure(st)
		}
		st.NextPhase = statex.PhaseNormalConversation
		return st, nil
	}
}

// dispatch invokes at most one capability for the turn.
func (c *Controller) dispatch(ctx context.Context, st *turnState, intent contractx.Intent) error {
	if st.Dispatched {
		return fmt.Errorf("%w: turn already dispatched", contractx.ErrValidation)
	}
	st.Dispatched = true

	dctx, cancel := context.WithTimeout(ctx, c.cfg.ModelTimeout)
	defer cancel()

	result, err := c.registry.Dispatch(dctx, intent, contractx.CapabilityRequest{
		Utterance: st.Utterance,
		History:   st.History,
		Session:   st.Session,
		Now:       st.Now,
	})
	if err != nil {
		log.Warn().Err(err).
			Str("session_id", st.SessionID).
			Str("intent", string(intent)).
			Msg("capability dispatch failed, degrading to apology")
		return err
	}
	st.Result = result
	return nil
}

// applyResult commits the turn's single phase transition and enforces the
// anti-stall guarantee: a processed, non-terminated turn never goes silent.
func (c *Controller) applyResult(st *turnState) (*turnState, error) {
	if st == nil || st.Session == nil {
		return nil, fmt.Errorf("%w: turn state is incomplete", contractx.ErrValidation)
	}

	st.Reply = strings.TrimSpace(st.Result.Reply)
	if st.Reply == "" {
		st.Reply = c.cfg.ClarifyReply
	}

	st.Session.Phase = st.NextPhase
	return st, nil
}

func (c *Controller) persist(ctx context.Context, st *turnState) (*turnState, error) {
	st.Session.Context.Append(st.Utterance, st.Reply)
	st.Session.Touch(st.Now)
	if err := st.Session.Validate(); err != nil {
		return nil, fmt.Errorf("session validation failed: %w", err)
	}
	if err := c.store.Save(ctx, st.Session); err != nil {
		return nil, err
	}
	return st, nil
}
