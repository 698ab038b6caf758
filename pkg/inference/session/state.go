package session

// RequestState tells whether an exchange with the completion endpoint is in
// flight for a session.
type RequestState int

const (
	StateIdle RequestState = iota
	StatePending
)

func (s RequestState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	default:
		return "unknown"
	}
}
