package contract

import "context"

// Classifier maps one utterance plus rendered history onto the closed intent
// set. Implementations must never fail on unmappable model output; an
// unmappable reply is IntentGeneralInquiry. A returned error means the model
// call itself failed (timeout, transport) and the caller owns the recovery.
type Classifier interface {
	Classify(ctx context.Context, utterance string, history string) (Intent, error)
}

// Extractor pulls candidate slot values out of an utterance, constrained to
// the still-missing slot names. Values for slots not in missing are dropped.
type Extractor interface {
	Extract(ctx context.Context, utterance string, missing []string) (map[string]string, error)
}

// Capability is one unit of assistant behavior invoked by intent.
type Capability interface {
	Handle(ctx context.Context, req CapabilityRequest) (CapabilityResult, error)
}
