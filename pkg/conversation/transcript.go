package conversation

// Transcript is the ordered, append-only record of all turns of one session.
//
// Transcript is not safe for concurrent use; the owner (the session) guards it.
type Transcript struct {
	messages []Message
}

func NewTranscript(messages ...Message) *Transcript {
	t := &Transcript{}
	for _, m := range messages {
		t.Append(m)
	}
	return t
}

// Append adds m at the end of the transcript and returns its index.
func (t *Transcript) Append(m Message) int {
	t.messages = append(t.messages, m)
	return len(t.messages) - 1
}

func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.messages)
}

// Messages returns a copy of the transcript, so callers can never reorder or
// edit recorded turns.
func (t *Transcript) Messages() []Message {
	if t == nil || len(t.messages) == 0 {
		return []Message{}
	}
	ret := make([]Message, len(t.messages))
	copy(ret, t.messages)
	return ret
}
