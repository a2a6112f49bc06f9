package contract

import (
	"fmt"
	"strings"
	"time"

	statex "github.com/alfredlabs/alfred/agent/state"
)

// Intent is the classified purpose of a user utterance. The set is closed;
// anything the classifier cannot map onto it degrades to IntentGeneralInquiry.
type Intent string

const (
	IntentRecommendRestaurant Intent = "RECOMMEND_RESTAURANT"
	IntentMakeReservation     Intent = "MAKE_RESERVATION"
	IntentGeneralInquiry      Intent = "GENERAL_INQUIRY"
	IntentThankYou            Intent = "THANK_YOU"
	IntentExit                Intent = "EXIT"
)

// ParseIntent maps a raw string onto the closed intent set. It normalizes
// case and whitespace but nothing fuzzier; fuzzy recovery belongs to the
// classifier's fallback policy, not here.
func ParseIntent(raw string) (Intent, error) {
	switch Intent(strings.ToUpper(strings.TrimSpace(raw))) {
	case IntentRecommendRestaurant:
		return IntentRecommendRestaurant, nil
	case IntentMakeReservation:
		return IntentMakeReservation, nil
	case IntentGeneralInquiry:
		return IntentGeneralInquiry, nil
	case IntentThankYou:
		return IntentThankYou, nil
	case IntentExit:
		return IntentExit, nil
	default:
		return "", fmt.Errorf("%w: unknown intent %q", ErrSchemaViolation, raw)
	}
}

// CapabilityRequest is what the controller hands a capability for one turn.
type CapabilityRequest struct {
	Utterance string
	History   string
	Session   *statex.Session
	Now       time.Time
}

// CapabilityResult is a two-variant outcome: either the capability finished
// and Reply is its final response, or it needs another turn and Reply is the
// follow-up prompt. Build it with Done or FollowUp, never both variants.
type CapabilityResult struct {
	Reply    string `json:"reply"`
	FollowUp bool   `json:"follow_up,omitempty"`
}

func Done(reply string) CapabilityResult {
	return CapabilityResult{Reply: strings.TrimSpace(reply)}
}

func FollowUp(prompt string) CapabilityResult {
	return CapabilityResult{Reply: strings.TrimSpace(prompt), FollowUp: true}
}
