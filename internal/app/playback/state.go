// Package playback provides the per-guild music queue state machine.
package playback

// State represents the playback state.
type State int

const (
	StateStopped State = iota // Nothing playing (initial and idle state)
	StatePlaying              // Track is playing
	StatePaused               // Track is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Status is the playing status of a guild together with the active song name.
type Status struct {
	State State
	Name  string // Display name of the active song (empty when stopped)
}

// Playing returns a playing status for the named song.
func Playing(name string) Status {
	return Status{State: StatePlaying, Name: name}
}

// Paused returns a paused status for the named song.
func Paused(name string) Status {
	return Status{State: StatePaused, Name: name}
}

// Stopped returns the idle status.
func Stopped() Status {
	return Status{State: StateStopped}
}

// String returns the string representation of the status.
func (s Status) String() string {
	if s.State == StateStopped {
		return s.State.String()
	}
	return s.State.String() + "(" + s.Name + ")"
}
