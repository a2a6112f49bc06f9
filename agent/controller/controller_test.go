package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	capabilityx "github.com/alfredlabs/alfred/agent/capability"
	contractx "github.com/alfredlabs/alfred/agent/contract"
	slotsx "github.com/alfredlabs/alfred/agent/slots"
	statex "github.com/alfredlabs/alfred/agent/state"
)

type classifierStep struct {
	intent contractx.Intent
	err    error
}

type fakeClassifier struct {
	steps []classifierStep
	calls int
}

func (f *fakeClassifier) Classify(ctx context.Context, utterance string, history string) (contractx.Intent, error) {
	if f.calls >= len(f.steps) {
		return "", fmt.Errorf("no classifier step left at call %d", f.calls+1)
	}
	step := f.steps[f.calls]
	f.calls++
	if step.err != nil {
		return "", step.err
	}
	return step.intent, nil
}

type scriptedCapability struct {
	steps      []func(req contractx.CapabilityRequest) (contractx.CapabilityResult, error)
	calls      int
	utterances []string
}

func (s *scriptedCapability) Handle(ctx context.Context, req contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
	s.utterances = append(s.utterances, req.Utterance)
	if s.calls >= len(s.steps) {
		return contractx.CapabilityResult{}, fmt.Errorf("no scripted step left at call %d", s.calls+1)
	}
	fn := s.steps[s.calls]
	s.calls++
	return fn(req)
}

func done(reply string) func(contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
	return func(contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
		return contractx.Done(reply), nil
	}
}

// beginPending opens slot filling on the session like the real reservation
// capability does on its first turn.
func beginPending(prompt string) func(contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
	return func(req contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
		if req.Session.Pending == nil {
			req.Session.BeginSlotFilling("reservation", slotsx.NewSet(slotsx.ReservationDecls(12)))
		}
		return contractx.FollowUp(prompt), nil
	}
}

func completePending(reply string) func(contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
	return func(req contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
		req.Session.ClearPending()
		return contractx.Done(reply), nil
	}
}

type testHarness struct {
	ctrl        *Controller
	store       *statex.MemoryStore
	classifier  *fakeClassifier
	search      *scriptedCapability
	reservation *scriptedCapability
	inquiry     *scriptedCapability
}

func newHarness(t *testing.T, cfg Config, classifier *fakeClassifier) *testHarness {
	t.Helper()

	h := &testHarness{
		store:       statex.NewMemoryStore(),
		classifier:  classifier,
		search:      &scriptedCapability{},
		reservation: &scriptedCapability{},
		inquiry:     &scriptedCapability{},
	}

	registry, err := capabilityx.NewRegistry(h.inquiry)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if err := registry.Register(contractx.IntentRecommendRestaurant, h.search); err != nil {
		t.Fatalf("Register(search) error = %v", err)
	}
	if err := registry.Register(contractx.IntentMakeReservation, h.reservation); err != nil {
		t.Fatalf("Register(reservation) error = %v", err)
	}

	ctrl, err := New(h.store, classifier, registry, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.ctrl = ctrl
	return h
}

func (h *testHarness) newSession(t *testing.T) string {
	t.Helper()
	id, err := h.ctrl.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return id
}

func (h *testHarness) loadSession(t *testing.T, id string) *statex.Session {
	t.Helper()
	s, err := h.store.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("Load(%s) error = %v", id, err)
	}
	return s
}

func TestProcessTurnInvalidInput(t *testing.T) {
	t.Parallel()

	h := newHarness(t, DefaultConfig(), &fakeClassifier{})

	_, err := h.ctrl.ProcessTurn(context.Background(), "  ", "hello")
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}

	id := h.newSession(t)
	_, err = h.ctrl.ProcessTurn(context.Background(), id, "   ")
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestProcessTurnUnknownSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, DefaultConfig(), &fakeClassifier{})
	_, err := h.ctrl.ProcessTurn(context.Background(), "never-created", "hello")
	if !errors.Is(err, contractx.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestProcessTurnReservationFlow(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{steps: []classifierStep{
		{intent: contractx.IntentMakeReservation},
		{intent: contractx.IntentGeneralInquiry}, // "John Smith" reads as general chatter
		{intent: contractx.IntentGeneralInquiry},
	}}
	h := newHarness(t, DefaultConfig(), classifier)
	h.reservation.steps = []func(contractx.CapabilityRequest) (contractx.CapabilityResult, error){
		beginPending("Under what name should I make the reservation?"),
		beginPending("What date would you like?"),
		completePending("Your reservation is confirmed!"),
	}

	id := h.newSession(t)

	reply, err := h.ctrl.ProcessTurn(context.Background(), id, "I want to book a table")
	if err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}
	if !strings.Contains(reply, "Under what name") {
		t.Fatalf("turn 1 reply = %q", reply)
	}
	if got := h.loadSession(t, id); got.Phase != statex.PhaseSlotFilling || got.Pending == nil {
		t.Fatalf("turn 1 saved phase = %s pending = %v", got.Phase, got.Pending)
	}

	// Mid-fill, an utterance that classifies as general inquiry still feeds
	// the pending capability, not the fallback.
	reply, err = h.ctrl.ProcessTurn(context.Background(), id, "John Smith")
	if err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}
	if !strings.Contains(reply, "What date") {
		t.Fatalf("turn 2 reply = %q", reply)
	}
	if h.inquiry.calls != 0 {
		t.Fatal("inquiry must not see a slot-filling turn")
	}
	if len(h.reservation.utterances) != 2 || h.reservation.utterances[1] != "John Smith" {
		t.Fatalf("reservation saw %v", h.reservation.utterances)
	}

	reply, err = h.ctrl.ProcessTurn(context.Background(), id, "4 people")
	if err != nil {
		t.Fatalf("turn 3 error = %v", err)
	}
	if !strings.Contains(reply, "confirmed") {
		t.Fatalf("turn 3 reply = %q", reply)
	}
	got := h.loadSession(t, id)
	if got.Phase != statex.PhaseIntentDetection || got.Pending != nil {
		t.Fatalf("turn 3 saved phase = %s pending = %v", got.Phase, got.Pending)
	}
	if got.Context.Len() != 3 {
		t.Fatalf("context turns = %d, want 3", got.Context.Len())
	}
}

func TestProcessTurnInterruptAbandonsPending(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{steps: []classifierStep{
		{intent: contractx.IntentMakeReservation},
		{intent: contractx.IntentRecommendRestaurant},
	}}
	h := newHarness(t, DefaultConfig(), classifier)
	h.reservation.steps = []func(contractx.CapabilityRequest) (contractx.CapabilityResult, error){
		beginPending("Under what name?"),
	}
	h.search.steps = []func(contractx.CapabilityRequest) (contractx.CapabilityResult, error){
		done("Here are some options."),
	}

	id := h.newSession(t)
	if _, err := h.ctrl.ProcessTurn(context.Background(), id, "book a table"); err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}

	reply, err := h.ctrl.ProcessTurn(context.Background(), id, "actually, show me italian places")
	if err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}
	if reply != "Here are some options." {
		t.Fatalf("turn 2 reply = %q", reply)
	}
	got := h.loadSession(t, id)
	if got.Phase != statex.PhaseIntentDetection || got.Pending != nil {
		t.Fatalf("pending must be abandoned: phase=%s pending=%v", got.Phase, got.Pending)
	}
}

func TestProcessTurnInterruptKeepsPendingWhenConfigured(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{steps: []classifierStep{
		{intent: contractx.IntentMakeReservation},
		{intent: contractx.IntentRecommendRestaurant},
	}}
	cfg := DefaultConfig()
	cfg.AbandonOnInterrupt = false
	h := newHarness(t, cfg, classifier)
	h.reservation.steps = []func(contractx.CapabilityRequest) (contractx.CapabilityResult, error){
		beginPending("Under what name?"),
	}
	h.search.steps = []func(contractx.CapabilityRequest) (contractx.CapabilityResult, error){
		done("Here are some options."),
	}

	id := h.newSession(t)
	if _, err := h.ctrl.ProcessTurn(context.Background(), id, "book a table"); err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}
	if _, err := h.ctrl.ProcessTurn(context.Background(), id, "show me italian places"); err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}

	got := h.loadSession(t, id)
	if got.Phase != statex.PhaseSlotFilling || got.Pending == nil {
		t.Fatalf("pending must survive the detour: phase=%s pending=%v", got.Phase, got.Pending)
	}
}

func TestProcessTurnClassifierFailureApologizesWithoutPhaseChange(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{steps: []classifierStep{
		{intent: contractx.IntentMakeReservation},
		{err: context.DeadlineExceeded},
	}}
	h := newHarness(t, DefaultConfig(), classifier)
	h.reservation.steps = []func(contractx.CapabilityRequest) (contractx.CapabilityResult, error){
		beginPending("Under what name?"),
	}

	id := h.newSession(t)
	if _, err := h.ctrl.ProcessTurn(context.Background(), id, "book a table"); err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}

	reply, err := h.ctrl.ProcessTurn(context.Background(), id, "John Smith")
	if err != nil {
		t.Fatalf("classifier failure must not fail the turn, got %v", err)
	}
	if reply != DefaultConfig().ApologyReply {
		t.Fatalf("reply = %q, want apology", reply)
	}

	got := h.loadSession(t, id)
	if got.Phase != statex.PhaseSlotFilling || got.Pending == nil {
		t.Fatalf("apology must not change phase: phase=%s pending=%v", got.Phase, got.Pending)
	}
	if got.Context.Len() != 2 {
		t.Fatalf("apology turn must still be recorded, len=%d", got.Context.Len())
	}
}

func TestProcessTurnCapabilityFailureApologizes(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{steps: []classifierStep{
		{intent: contractx.IntentRecommendRestaurant},
	}}
	h := newHarness(t, DefaultConfig(), classifier)
	h.search.steps = []func(contractx.CapabilityRequest) (contractx.CapabilityResult, error){
		func(contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
			return contractx.CapabilityResult{}, errors.New("index down")
		},
	}

	id := h.newSession(t)
	reply, err := h.ctrl.ProcessTurn(context.Background(), id, "show me thai food")
	if err != nil {
		t.Fatalf("capability failure must degrade, got %v", err)
	}
	if reply != DefaultConfig().ApologyReply {
		t.Fatalf("reply = %q, want apology", reply)
	}
	if got := h.loadSession(t, id); got.Phase != statex.PhaseIntentDetection {
		t.Fatalf("phase = %s, want INTENT_DETECTION", got.Phase)
	}
}

func TestProcessTurnCapabilityFailureRollsBackPendingMutation(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{steps: []classifierStep{
		{intent: contractx.IntentMakeReservation},
	}}
	h := newHarness(t, DefaultConfig(), classifier)
	h.reservation.steps = []func(contractx.CapabilityRequest) (contractx.CapabilityResult, error){
		func(req contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
			// The real capability opens slot filling before its extractor
			// can fail; the session is already mutated when the error
			// surfaces.
			req.Session.BeginSlotFilling("reservation", slotsx.NewSet(slotsx.ReservationDecls(12)))
			return contractx.CapabilityResult{}, errors.New("model unavailable")
		},
	}

	id := h.newSession(t)
	reply, err := h.ctrl.ProcessTurn(context.Background(), id, "book a table for four")
	if err != nil {
		t.Fatalf("mutating capability failure must degrade, got %v", err)
	}
	if reply != DefaultConfig().ApologyReply {
		t.Fatalf("reply = %q, want apology", reply)
	}

	got := h.loadSession(t, id)
	if got.Phase != statex.PhaseIntentDetection {
		t.Fatalf("phase = %s, want INTENT_DETECTION", got.Phase)
	}
	if got.Pending != nil {
		t.Fatalf("pending = %v, want rollback to nil", got.Pending)
	}
	if got.Context.Len() != 1 {
		t.Fatalf("context len = %d, want the turn recorded once", got.Context.Len())
	}
}

func TestProcessTurnInterruptFailureRestoresPending(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{steps: []classifierStep{
		{intent: contractx.IntentMakeReservation},
		{intent: contractx.IntentRecommendRestaurant},
	}}
	h := newHarness(t, DefaultConfig(), classifier)
	h.reservation.steps = []func(contractx.CapabilityRequest) (contractx.CapabilityResult, error){
		beginPending("Under what name?"),
	}
	h.search.steps = []func(contractx.CapabilityRequest) (contractx.CapabilityResult, error){
		func(contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
			return contractx.CapabilityResult{}, errors.New("index down")
		},
	}

	id := h.newSession(t)
	if _, err := h.ctrl.ProcessTurn(context.Background(), id, "book a table"); err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}

	// The interrupt abandons the reservation, then the search fails; the
	// apology turn must leave the reservation exactly as it was.
	reply, err := h.ctrl.ProcessTurn(context.Background(), id, "show me italian places")
	if err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}
	if reply != DefaultConfig().ApologyReply {
		t.Fatalf("reply = %q, want apology", reply)
	}

	got := h.loadSession(t, id)
	if got.Phase != statex.PhaseSlotFilling || got.Pending == nil {
		t.Fatalf("pending must survive the failed interrupt: phase=%s pending=%v", got.Phase, got.Pending)
	}
	if got.Pending.Capability != "reservation" {
		t.Fatalf("pending capability = %q, want reservation", got.Pending.Capability)
	}
}

func TestProcessTurnExitTerminatesSession(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{steps: []classifierStep{
		{intent: contractx.IntentExit},
	}}
	h := newHarness(t, DefaultConfig(), classifier)

	id := h.newSession(t)
	reply, err := h.ctrl.ProcessTurn(context.Background(), id, "goodbye")
	if err != nil {
		t.Fatalf("exit turn error = %v", err)
	}
	if reply != DefaultConfig().GoodbyeReply {
		t.Fatalf("reply = %q, want goodbye", reply)
	}
	if got := h.loadSession(t, id); got.Phase != statex.PhaseTerminated {
		t.Fatalf("phase = %s, want TERMINATED", got.Phase)
	}

	// Terminated sessions absorb everything after.
	_, err = h.ctrl.ProcessTurn(context.Background(), id, "hello again")
	if !errors.Is(err, contractx.ErrSessionTerminated) {
		t.Fatalf("expected ErrSessionTerminated, got %v", err)
	}
}

func TestProcessTurnExitMidSlotFillingDropsPending(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{steps: []classifierStep{
		{intent: contractx.IntentMakeReservation},
		{intent: contractx.IntentExit},
	}}
	h := newHarness(t, DefaultConfig(), classifier)
	h.reservation.steps = []func(contractx.CapabilityRequest) (contractx.CapabilityResult, error){
		beginPending("Under what name?"),
	}

	id := h.newSession(t)
	if _, err := h.ctrl.ProcessTurn(context.Background(), id, "book a table"); err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}
	if _, err := h.ctrl.ProcessTurn(context.Background(), id, "bye"); err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}

	got := h.loadSession(t, id)
	if got.Phase != statex.PhaseTerminated || got.Pending != nil {
		t.Fatalf("exit must drop pending: phase=%s pending=%v", got.Phase, got.Pending)
	}
}

func TestProcessTurnThankYouDetour(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{steps: []classifierStep{
		{intent: contractx.IntentThankYou},
		{intent: contractx.IntentMakeReservation},
	}}
	h := newHarness(t, DefaultConfig(), classifier)
	h.reservation.steps = []func(contractx.CapabilityRequest) (contractx.CapabilityResult, error){
		beginPending("Under what name?"),
	}

	id := h.newSession(t)
	reply, err := h.ctrl.ProcessTurn(context.Background(), id, "thanks so much")
	if err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}
	if reply != DefaultConfig().CourtesyReply {
		t.Fatalf("reply = %q, want courtesy", reply)
	}
	if got := h.loadSession(t, id); got.Phase != statex.PhaseThankYou {
		t.Fatalf("phase = %s, want THANK_YOU", got.Phase)
	}

	// The detour is one turn long; the next turn classifies fresh.
	if _, err := h.ctrl.ProcessTurn(context.Background(), id, "book a table"); err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}
	if got := h.loadSession(t, id); got.Phase != statex.PhaseSlotFilling {
		t.Fatalf("phase = %s, want SLOT_FILLING", got.Phase)
	}
}

func TestProcessTurnAntiStall(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{steps: []classifierStep{
		{intent: contractx.IntentGeneralInquiry},
	}}
	h := newHarness(t, DefaultConfig(), classifier)
	h.inquiry.steps = []func(contractx.CapabilityRequest) (contractx.CapabilityResult, error){
		done(""),
	}

	id := h.newSession(t)
	reply, err := h.ctrl.ProcessTurn(context.Background(), id, "hmm")
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if reply != DefaultConfig().ClarifyReply {
		t.Fatalf("reply = %q, want clarifying prompt", reply)
	}
}

func TestProcessTurnContextStaysBounded(t *testing.T) {
	t.Parallel()

	const capacity = 3
	steps := make([]classifierStep, 0, 8)
	inquirySteps := make([]func(contractx.CapabilityRequest) (contractx.CapabilityResult, error), 0, 8)
	for i := 0; i < 8; i++ {
		steps = append(steps, classifierStep{intent: contractx.IntentGeneralInquiry})
		inquirySteps = append(inquirySteps, done(fmt.Sprintf("reply %d", i)))
	}

	cfg := DefaultConfig()
	cfg.ContextCapacity = capacity
	h := newHarness(t, cfg, &fakeClassifier{steps: steps})
	h.inquiry.steps = inquirySteps

	id := h.newSession(t)
	for i := 0; i < 8; i++ {
		if _, err := h.ctrl.ProcessTurn(context.Background(), id, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("turn %d error = %v", i, err)
		}
	}

	got := h.loadSession(t, id)
	if got.Context.Len() != capacity {
		t.Fatalf("context len = %d, want %d", got.Context.Len(), capacity)
	}
	if got.Context.Turns[0].User != "message 5" {
		t.Fatalf("oldest turn = %q, want message 5", got.Context.Turns[0].User)
	}
}

func TestProcessTurnPassesHistoryToClassifier(t *testing.T) {
	t.Parallel()

	var seenHistory []string
	classifier := &recordingClassifier{history: &seenHistory}
	h2 := &testHarness{
		store:   statex.NewMemoryStore(),
		inquiry: &scriptedCapability{steps: []func(contractx.CapabilityRequest) (contractx.CapabilityResult, error){done("a"), done("b")}},
	}
	registry, err := capabilityx.NewRegistry(h2.inquiry)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	ctrl, err := New(h2.store, classifier, registry, DefaultConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h2.ctrl = ctrl

	id, err := ctrl.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := ctrl.ProcessTurn(context.Background(), id, "first"); err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}
	if _, err := ctrl.ProcessTurn(context.Background(), id, "second"); err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}

	if len(seenHistory) != 2 {
		t.Fatalf("classifier calls = %d, want 2", len(seenHistory))
	}
	if seenHistory[0] != "" {
		t.Fatalf("first turn history = %q, want empty", seenHistory[0])
	}
	if !strings.Contains(seenHistory[1], "User: first") || !strings.Contains(seenHistory[1], "Assistant: a") {
		t.Fatalf("second turn history = %q", seenHistory[1])
	}
}

type recordingClassifier struct {
	history *[]string
}

func (r *recordingClassifier) Classify(ctx context.Context, utterance string, history string) (contractx.Intent, error) {
	*r.history = append(*r.history, history)
	return contractx.IntentGeneralInquiry, nil
}

func TestCreateAndEndSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, DefaultConfig(), &fakeClassifier{})

	first := h.newSession(t)
	second := h.newSession(t)
	if first == second {
		t.Fatal("session ids must be unique")
	}

	if err := h.ctrl.EndSession(context.Background(), first); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}
	if _, err := h.store.Load(context.Background(), first); !errors.Is(err, statex.ErrStateNotFound) {
		t.Fatalf("ended session still loads: %v", err)
	}
	if _, err := h.store.Load(context.Background(), second); err != nil {
		t.Fatalf("unrelated session lost: %v", err)
	}

	if err := h.ctrl.EndSession(context.Background(), "  "); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("EndSession(blank) error = %v, want ErrInvalidSession", err)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{steps: []classifierStep{
		{intent: contractx.IntentMakeReservation},
		{intent: contractx.IntentGeneralInquiry},
	}}
	h := newHarness(t, DefaultConfig(), classifier)
	h.reservation.steps = []func(contractx.CapabilityRequest) (contractx.CapabilityResult, error){
		beginPending("Under what name?"),
	}
	h.inquiry.steps = []func(contractx.CapabilityRequest) (contractx.CapabilityResult, error){
		done("hello there"),
	}

	a := h.newSession(t)
	b := h.newSession(t)

	if _, err := h.ctrl.ProcessTurn(context.Background(), a, "book a table"); err != nil {
		t.Fatalf("session a turn error = %v", err)
	}
	if _, err := h.ctrl.ProcessTurn(context.Background(), b, "hi"); err != nil {
		t.Fatalf("session b turn error = %v", err)
	}

	if got := h.loadSession(t, a); got.Phase != statex.PhaseSlotFilling {
		t.Fatalf("session a phase = %s", got.Phase)
	}
	if got := h.loadSession(t, b); got.Phase != statex.PhaseNormalConversation {
		t.Fatalf("session b phase = %s", got.Phase)
	}
	if got := h.loadSession(t, b); got.Context.Len() != 1 || got.Context.Turns[0].User != "hi" {
		t.Fatalf("session b context = %#v", got.Context)
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.ContextCapacity != statex.DefaultContextCapacity {
		t.Fatalf("ContextCapacity = %d", cfg.ContextCapacity)
	}
	if cfg.ModelTimeout != defaultModelTimeout {
		t.Fatalf("ModelTimeout = %v", cfg.ModelTimeout)
	}
	if !cfg.AbandonOnInterrupt {
		t.Fatal("AbandonOnInterrupt must default to true")
	}
	for _, s := range []string{cfg.ApologyReply, cfg.ClarifyReply, cfg.CourtesyReply, cfg.GoodbyeReply} {
		if strings.TrimSpace(s) == "" {
			t.Fatal("default replies must be non-empty")
		}
	}
	if DefaultConfig().ModelTimeout != 15*time.Second {
		t.Fatalf("unexpected default timeout %v", DefaultConfig().ModelTimeout)
	}
}
