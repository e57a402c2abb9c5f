package engine

import (
	"fmt"
	"time"
)

// State is the lifecycle position of one generator loop.
type State int

const (
	Waiting State = iota
	Running
	Crashed
	Stopped
)

var stateNames = [...]string{"waiting", "running", "crashed", "stopped"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of one generator.
type Status struct {
	Name      string    `json:"name"`
	State     State     `json:"state"`
	Ticks     uint64    `json:"ticks"`
	Failures  uint64    `json:"failures"`
	Restarts  uint64    `json:"restarts"`
	LastError string    `json:"last_error,omitempty"`
	Since     time.Time `json:"since"`
}
