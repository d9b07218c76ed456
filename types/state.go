package types

// State represents the elector lifecycle state.
//
// States follow a defined progression during normal operation:
//
//	StateIdle → StateAcquiring → StateLeading
//
// When leadership is lost or given up:
//
//	StateLeading → StateReleased → StateAcquiring
//
// Shutdown is terminal:
//
//	any → StateShutdown
type State int

const (
	// StateIdle is the initial state before Start.
	StateIdle State = iota

	// StateAcquiring indicates the elector is running and attempting to
	// acquire the lease.
	StateAcquiring

	// StateLeading indicates the elector holds the lease and is renewing it.
	StateLeading

	// StateReleased indicates leadership just ended; the elector moves back
	// to StateAcquiring if it is still running.
	StateReleased

	// StateShutdown is the terminal state after Stop or context
	// cancellation. A stopped elector cannot be restarted.
	StateShutdown
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAcquiring:
		return "Acquiring"
	case StateLeading:
		return "Leading"
	case StateReleased:
		return "Released"
	case StateShutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}
