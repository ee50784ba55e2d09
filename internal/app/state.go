package app

import "sync/atomic"

// State is the ApplicationState enum of spec §3: monotone progress
// except that any state may transition to Stopping or Failed.
type State int32

const (
	Created State = iota
	Initialized
	Starting
	Running
	Stopping
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Initialized:
		return "initialized"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// stateBox is an atomic holder for State. set stores the new state
// unconditionally; it does not check whether the transition is allowed.
type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) get() State { return State(b.v.Load()) }
func (b *stateBox) set(s State) { b.v.Store(int32(s)) }
