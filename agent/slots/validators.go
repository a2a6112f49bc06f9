package slots

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	SlotName      = "name"
	SlotDate      = "date"
	SlotTime      = "time"
	SlotPartySize = "party_size"

	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// ReservationDecls is the reservation capability's required slot list, in the
// order missing slots are asked for.
func ReservationDecls(maxParty int) []Decl {
	return []Decl{
		{
			Name:     SlotName,
			Prompt:   "Under what name should I make the reservation?",
			Validate: ValidateName,
		},
		{
			Name:     SlotDate,
			Prompt:   "What date would you like? Please give a date like 2026-09-01.",
			Validate: ValidateDate,
		},
		{
			Name:     SlotTime,
			Prompt:   "What time works for you? Please give a time like 19:30.",
			Validate: ValidateTime,
		},
		{
			Name:     SlotPartySize,
			Prompt:   "How many people will be in your party?",
			Validate: ValidatePartySize(maxParty),
		},
	}
}

func ValidateName(value string, _ time.Time) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("a name is required")
	}
	return nil
}

func ValidateDate(value string, now time.Time) error {
	d, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("I couldn't read that as a date (expected YYYY-MM-DD)")
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if d.Before(today) {
		return fmt.Errorf("that date has already passed")
	}
	return nil
}

func ValidateTime(value string, _ time.Time) error {
	if _, err := time.Parse(timeLayout, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("I couldn't read that as a time (expected HH:MM)")
	}
	return nil
}

func ValidatePartySize(max int) ValidateFunc {
	return func(value string, _ time.Time) error {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("party size must be a number")
		}
		if n <= 0 {
			return fmt.Errorf("party size must be positive")
		}
		if max > 0 && n > max {
			return fmt.Errorf("I can only book parties of up to %d", max)
		}
		return nil
	}
}

// CombineDateTime builds the reservation instant from the date and time slot
// values. Both must already be individually valid.
func CombineDateTime(set *Set, loc *time.Location) (time.Time, error) {
	date, ok := set.Value(SlotDate)
	if !ok {
		return time.Time{}, fmt.Errorf("date slot is unfilled")
	}
	clock, ok := set.Value(SlotTime)
	if !ok {
		return time.Time{}, fmt.Errorf("time slot is unfilled")
	}
	return time.ParseInLocation(dateLayout+" "+timeLayout,
		strings.TrimSpace(date)+" "+strings.TrimSpace(clock), loc)
}
