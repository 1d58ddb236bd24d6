package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseScript   Phase = iota // 0: scenario scripts spawn and despawn actors
	PhaseDispatch              // 1: deliver last tick's transition events
	PhaseUpdate                // 2: expiry, metrics sampling
	PhasePersist               // 3: journal flush
	PhaseCleanup               // 4: destroy queued actors
)

func (p Phase) String() string {
	switch p {
	case PhaseScript:
		return "script"
	case PhaseDispatch:
		return "dispatch"
	case PhaseUpdate:
		return "update"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// System is the interface every arena system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
