// Package controller owns the per-turn state machine: it classifies the
// utterance, routes it to a capability, applies the resulting transition,
// and persists the session. Sessions are the unit of isolation; turns for
// one session run strictly sequentially.
package controller

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	capabilityx "github.com/alfredlabs/alfred/agent/capability"
	contractx "github.com/alfredlabs/alfred/agent/contract"
	statex "github.com/alfredlabs/alfred/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("session id is empty")
)

const (
	defaultModelTimeout = 15 * time.Second

	defaultApologyReply = "I'm sorry, I'm having a little trouble right now. Could you say that again?"
	defaultClarifyReply = "I'm not sure what you're looking for. Would you like to search for restaurants or make a reservation?"
	defaultCourtesy     = "You're very welcome! Is there anything else I can help you with?"
	defaultGoodbye      = "Goodbye! Thanks for chatting with Alfred."
)

type Config struct {
	// ContextCapacity bounds the per-session turn history.
	ContextCapacity int
	// ModelTimeout bounds every model call made during a turn.
	ModelTimeout time.Duration
	// AbandonOnInterrupt controls what a pending reservation does when the
	// user switches to a different actionable intent mid-flow: true drops
	// the pending capability and starts fresh, false answers the
	// interruption and resumes the reservation next turn.
	AbandonOnInterrupt bool

	ApologyReply  string
	ClarifyReply  string
	CourtesyReply string
	GoodbyeReply  string
}

func (c *Config) setDefaults() {
	if c.ContextCapacity <= 0 {
		c.ContextCapacity = statex.DefaultContextCapacity
	}
	if c.ModelTimeout <= 0 {
		c.ModelTimeout = defaultModelTimeout
	}
	if strings.TrimSpace(c.ApologyReply) == "" {
		c.ApologyReply = defaultApologyReply
	}
	if strings.TrimSpace(c.ClarifyReply) == "" {
		c.ClarifyReply = defaultClarifyReply
	}
	if strings.TrimSpace(c.CourtesyReply) == "" {
		c.CourtesyReply = defaultCourtesy
	}
	if strings.TrimSpace(c.GoodbyeReply) == "" {
		c.GoodbyeReply = defaultGoodbye
	}
}

// DefaultConfig is the standard policy: bounded history of ten turns and
// abandon-on-interrupt.
func DefaultConfig() Config {
	cfg := Config{AbandonOnInterrupt: true}
	cfg.setDefaults()
	return cfg
}

type Controller struct {
	store      statex.Store
	classifier contractx.Classifier
	registry   *capabilityx.Registry
	cfg        Config

	runner compose.Runnable[turnInput, turnOutput]
	locks  *sessionLocks

	now func() time.Time
}

func New(store statex.Store, classifier contractx.Classifier, registry *capabilityx.Registry, cfg Config) (*Controller, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if registry == nil {
		return nil, errors.New("capability registry is required")
	}
	cfg.setDefaults()

	c := &Controller{
		store:      store,
		classifier: classifier,
		registry:   registry,
		cfg:        cfg,
		locks:      newSessionLocks(),
		now:        time.Now,
	}

	runner, err := c.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	c.runner = runner

	return c, nil
}

// ProcessTurn is the sole conversational entry point. Not idempotent: each
// call mutates session state and may trigger external side effects.
func (c *Controller) ProcessTurn(ctx context.Context, sessionID string, utterance string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", ErrInvalidSession
	}

	lock := c.locks.acquire(sessionID)
	defer c.locks.release(sessionID, lock)

	out, err := c.runner.Invoke(ctx, turnInput{
		SessionID: sessionID,
		Utterance: utterance,
	})
	if err != nil {
		return "", err
	}
	return out.Reply, nil
}

// CreateSession mints a session and persists it in the initial phase.
func (c *Controller) CreateSession(ctx context.Context) (string, error) {
	session := statex.NewSession(uuid.NewString(), c.cfg.ContextCapacity, c.now())
	if err := c.store.Save(ctx, session); err != nil {
		return "", err
	}
	log.Debug().Str("session_id", session.ID).Msg("session created")
	return session.ID, nil
}

// EndSession drops a session. Ending an unknown session is not an error.
func (c *Controller) EndSession(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidSession
	}
	lock := c.locks.acquire(sessionID)
	defer c.locks.release(sessionID, lock)
	return c.store.Delete(ctx, sessionID)
}
