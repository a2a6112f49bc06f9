package state

import "strings"

const DefaultContextCapacity = 10

// Turn is one user-utterance/assistant-response exchange.
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// TurnContext is the bounded conversation history: at most Capacity turns,
// oldest first, strict FIFO eviction. Size never exceeds Capacity observably.
type TurnContext struct {
	Capacity int    `json:"capacity"`
	Turns    []Turn `json:"turns,omitempty"`
}

func NewTurnContext(capacity int) *TurnContext {
	if capacity <= 0 {
		capacity = DefaultContextCapacity
	}
	return &TurnContext{Capacity: capacity}
}

// Append records one exchange, evicting the oldest turn when at capacity.
func (c *TurnContext) Append(user, assistant string) {
	turn := Turn{User: user, Assistant: assistant}
	if c.Capacity <= 0 {
		c.Capacity = DefaultContextCapacity
	}
	if len(c.Turns) >= c.Capacity {
		// Slide the window instead of copying in place; append reclaims the
		// backing array when it reallocates, keeping this amortized O(1).
		c.Turns = append(c.Turns[len(c.Turns)-c.Capacity+1:], turn)
		return
	}
	c.Turns = append(c.Turns, turn)
}

// Render produces the deterministic transcript consumed by the classifier
// and capability prompts. Pure read, insertion order preserved.
func (c *TurnContext) Render() string {
	if c == nil || len(c.Turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range c.Turns {
		b.WriteString("User: ")
		b.WriteString(t.User)
		b.WriteString("\nAssistant: ")
		b.WriteString(t.Assistant)
		b.WriteString("\n")
	}
	return b.String()
}

func (c *TurnContext) Clear() {
	c.Turns = nil
}

func (c *TurnContext) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Turns)
}
