package capability

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	backendx "github.com/alfredlabs/alfred/agent/backend"
	contractx "github.com/alfredlabs/alfred/agent/contract"
	slotsx "github.com/alfredlabs/alfred/agent/slots"
	statex "github.com/alfredlabs/alfred/agent/state"
)

// Name under which the reservation capability registers and parks its
// pending state on the session.
const ReservationCapability = "reservation"

const DefaultMaxPartySize = 12

// Reservation is the multi-turn booking capability. It drives the slot
// engine across turns and performs the terminal booking exactly once, only
// when every declared slot is filled and valid.
type Reservation struct {
	engine   *slotsx.Engine
	book     backendx.ReservationBook
	notifier backendx.Notifier
	now      func() time.Time
}

var _ contractx.Capability = (*Reservation)(nil)

type ReservationOption func(*Reservation)

// WithNotifier wires best-effort confirmation delivery.
func WithNotifier(n backendx.Notifier) ReservationOption {
	return func(r *Reservation) {
		r.notifier = n
	}
}

func WithReservationClock(now func() time.Time) ReservationOption {
	return func(r *Reservation) {
		if now != nil {
			r.now = now
		}
	}
}

func NewReservation(extract contractx.Extractor, book backendx.ReservationBook, maxParty int, opts ...ReservationOption) (*Reservation, error) {
	if extract == nil {
		return nil, fmt.Errorf("%w: reservation requires an extractor", contractx.ErrValidation)
	}
	if book == nil {
		return nil, fmt.Errorf("%w: reservation requires a reservation book", contractx.ErrValidation)
	}
	if maxParty <= 0 {
		maxParty = DefaultMaxPartySize
	}

	r := &Reservation{
		book: book,
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	engine, err := slotsx.NewEngine(slotsx.ReservationDecls(maxParty), extract.Extract, r.now)
	if err != nil {
		return nil, err
	}
	r.engine = engine
	return r, nil
}

func (r *Reservation) Handle(ctx context.Context, req contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
	session := req.Session
	if session == nil {
		return contractx.CapabilityResult{}, fmt.Errorf("%w: reservation requires a session", contractx.ErrValidation)
	}

	set := r.pendingSet(session)
	step, err := r.engine.Step(ctx, req.Utterance, set)
	if err != nil {
		// Extraction failed; pending state is untouched so the turn can be
		// retried after the controller's apology.
		return contractx.CapabilityResult{}, err
	}

	if !step.Complete {
		return contractx.FollowUp(step.Prompt), nil
	}

	at, err := slotsx.CombineDateTime(set, req.Now.Location())
	if err != nil {
		return contractx.CapabilityResult{}, fmt.Errorf("%w: combine reservation datetime: %v", contractx.ErrValidation, err)
	}
	if !at.After(req.Now) {
		set.Unfill(slotsx.SlotTime, "that time has already passed")
		set.Unfill(slotsx.SlotDate, "that time has already passed")
		next, _ := r.engine.Step(ctx, "", set)
		return contractx.FollowUp(next.Prompt), nil
	}

	partySize := mustAtoi(set, slotsx.SlotPartySize)
	guestName, _ := set.Value(slotsx.SlotName)

	booked, err := r.book.Create(ctx, backendx.Reservation{
		GuestName: guestName,
		At:        at,
		PartySize: partySize,
		Status:    "confirmed",
	})
	if errors.Is(err, backendx.ErrRejected) {
		// Roll back to slot filling with a slot to fix rather than falsely
		// completing; the party size is the one slot a refusal can hinge on.
		set.Unfill(slotsx.SlotPartySize, err.Error())
		next, _ := r.engine.Step(ctx, "", set)
		return contractx.FollowUp(fmt.Sprintf("I couldn't complete the booking: %v. %s", err, next.Prompt)), nil
	}
	if err != nil {
		return contractx.CapabilityResult{}, fmt.Errorf("create reservation: %w", err)
	}

	if r.notifier != nil {
		if nerr := r.notifier.NotifyReservation(ctx, booked); nerr != nil {
			log.Warn().Err(nerr).Int64("reservation_id", booked.ID).Msg("reservation notification failed")
		}
	}

	session.ClearPending()
	return contractx.Done(fmt.Sprintf(
		"Your reservation is confirmed! %s, party of %d, on %s. We look forward to serving you.",
		booked.GuestName, booked.PartySize, booked.At.Format("Monday, January 2 at 3:04 PM"),
	)), nil
}

// pendingSet returns the session's in-flight slot set, starting a fresh one
// on the first reservation turn.
func (r *Reservation) pendingSet(session *statex.Session) *slotsx.Set {
	if session.Pending != nil &&
		session.Pending.Capability == ReservationCapability &&
		session.Pending.Slots != nil {
		return session.Pending.Slots
	}
	set := r.engine.NewSet()
	session.BeginSlotFilling(ReservationCapability, set)
	return set
}

func mustAtoi(set *slotsx.Set, name string) int {
	v, _ := set.Value(name)
	n, _ := strconv.Atoi(strings.TrimSpace(v))
	return n
}
