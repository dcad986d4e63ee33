package whois

// State is the progress of a single query. A query starts in StateIdle and
// ends in either StateComplete or StateFailed; it never leaves a terminal state.
type State int

const (
	// StateIdle indicates the query has not started yet.
	StateIdle State = iota
	// StateConnecting indicates the TCP connection is being dialed.
	StateConnecting
	// StateConnected indicates the connection is open and nothing was sent yet.
	StateConnected
	// StateSent indicates the query line has been written.
	StateSent
	// StateReadingResponse indicates the client is reading until the server closes.
	StateReadingResponse
	// StateComplete indicates the whole response was read. It is terminal.
	StateComplete
	// StateFailed indicates the query failed in any phase. It is terminal.
	StateFailed
)

var stateNames = [...]string{ //nolint: gochecknoglobals
	StateIdle:            "idle",
	StateConnecting:      "connecting",
	StateConnected:       "connected",
	StateSent:            "sent",
	StateReadingResponse: "reading_response",
	StateComplete:        "complete",
	StateFailed:          "failed",
}

// String returns the lower-case name of s as used in log fields, or "unknown"
// for values outside the defined states.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}

	return stateNames[s]
}

// Terminal reports whether s is StateComplete or StateFailed.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// Next reports whether a query in state s may move to next. Every
// non-terminal state may fail; otherwise states advance one step at a time.
func (s State) Next(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}

	return next == s+1
}
