package capability

import (
	"context"
	"testing"

	contractx "github.com/alfredlabs/alfred/agent/contract"
)

type fakeCapability struct {
	result contractx.CapabilityResult
	err    error
	calls  int
}

func (f *fakeCapability) Handle(ctx context.Context, req contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
	f.calls++
	if f.err != nil {
		return contractx.CapabilityResult{}, f.err
	}
	return f.result, nil
}

func TestRegistryDispatchRoutesByIntent(t *testing.T) {
	t.Parallel()

	fallback := &fakeCapability{result: contractx.Done("fallback")}
	search := &fakeCapability{result: contractx.Done("search")}

	r, err := NewRegistry(fallback)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if err := r.Register(contractx.IntentRecommendRestaurant, search); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	out, err := r.Dispatch(context.Background(), contractx.IntentRecommendRestaurant, contractx.CapabilityRequest{})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if out.Reply != "search" {
		t.Fatalf("Dispatch() reply = %q, want search", out.Reply)
	}
	if search.calls != 1 || fallback.calls != 0 {
		t.Fatalf("unexpected call counts: search=%d fallback=%d", search.calls, fallback.calls)
	}
}

func TestRegistryDispatchUnknownIntentFallsBack(t *testing.T) {
	t.Parallel()

	fallback := &fakeCapability{result: contractx.Done("fallback")}
	r, err := NewRegistry(fallback)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	out, err := r.Dispatch(context.Background(), contractx.Intent("NEVER_REGISTERED"), contractx.CapabilityRequest{})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if out.Reply != "fallback" {
		t.Fatalf("Dispatch() reply = %q, want fallback", out.Reply)
	}
}

func TestRegistryGeneralInquiryRoutesToFallback(t *testing.T) {
	t.Parallel()

	fallback := &fakeCapability{result: contractx.Done("general")}
	r, err := NewRegistry(fallback)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	out, err := r.Dispatch(context.Background(), contractx.IntentGeneralInquiry, contractx.CapabilityRequest{})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if out.Reply != "general" {
		t.Fatalf("Dispatch() reply = %q, want general", out.Reply)
	}
}

func TestRegistryRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(&fakeCapability{})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if err := r.Register(contractx.IntentMakeReservation, &fakeCapability{}); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := r.Register(contractx.IntentMakeReservation, &fakeCapability{}); err == nil {
		t.Fatal("duplicate registration must fail")
	}
	if err := r.Register(contractx.IntentThankYou, nil); err == nil {
		t.Fatal("nil capability must fail")
	}
}

func TestNewRegistryRequiresFallback(t *testing.T) {
	t.Parallel()

	if _, err := NewRegistry(nil); err == nil {
		t.Fatal("nil fallback must fail")
	}
}
