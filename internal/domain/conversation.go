package domain

import "time"

// Conversation is one user's in-progress standup flow.
// While active, len(Answers) == Step.
type Conversation struct {
	UserID    string
	RoundID   string
	Step      int
	Answers   []string
	StartedAt time.Time
}

// Clone returns a deep copy so callers never alias the stored answers slice.
func (c Conversation) Clone() Conversation {
	out := c
	if c.Answers != nil {
		out.Answers = append(make([]string, 0, len(c.Answers)), c.Answers...)
	}
	return out
}

// Inbound is the transport-agnostic shape of a direct message from a user.
type Inbound struct {
	UserID string
	Text   string
}
